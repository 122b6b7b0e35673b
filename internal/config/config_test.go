package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("OTP_TTL", "")
	cfg := load()

	if cfg.Storage.Backend != StorageMemory {
		t.Fatalf("expected memory backend by default, got %q", cfg.Storage.Backend)
	}
	if cfg.OTP.TTL != 5*time.Minute {
		t.Fatalf("expected 5m OTP TTL, got %v", cfg.OTP.TTL)
	}
	if cfg.OTP.SweepInterval != time.Minute {
		t.Fatalf("expected 1m sweep interval, got %v", cfg.OTP.SweepInterval)
	}
	if cfg.LLM.MaxRetries != 3 || cfg.LLM.RequestTimeout != 30*time.Second {
		t.Fatalf("unexpected LLM retry settings: %+v", cfg.LLM)
	}
}

func TestMinConfidenceForProvider(t *testing.T) {
	cases := []struct {
		provider string
		want     float64
	}{
		{LLMProviderGemini, 0.9},
		{LLMProviderMock, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.provider, func(t *testing.T) {
			t.Setenv("LLM_PROVIDER", tc.provider)
			t.Setenv("LLM_MIN_CONFIDENCE", "")
			t.Setenv("LLM_MOCK_MIN_CONFIDENCE", "")
			cfg := load()
			if got := cfg.MinConfidenceForProvider(); got != tc.want {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
		})
	}
}

func TestListAndOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " k1:9092, ,k2:9092 ")
	t.Setenv("STORAGE_BACKEND", "remote")
	t.Setenv("SERVER_PORT", "not-a-number")
	cfg := load()

	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Fatalf("unexpected brokers: %v", cfg.Kafka.Brokers)
	}
	if !cfg.UsesRemoteStorage() {
		t.Fatal("expected remote storage")
	}
	if cfg.GetServerAddress() != ":8080" {
		t.Fatalf("invalid port should fall back to default, got %s", cfg.GetServerAddress())
	}
}

func validConfig() *Config {
	return &Config{
		Storage: StorageConfig{Backend: StorageRemote},
		Server:  ServerConfig{WriteTimeout: 90 * time.Second},
		Hashing: HashingConfig{Pepper: "stable-pepper"},
		KMS:     KMSConfig{MasterKey: "bWFzdGVyLWtleQ=="},
		LLM:     LLMConfig{AnalysisTimeout: 75 * time.Second},
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid remote", func(c *Config) {}, ""},
		{"remote without pepper", func(c *Config) { c.Hashing.Pepper = "" }, "HASHING_PEPPER"},
		{"remote without master key", func(c *Config) { c.KMS.MasterKey = "" }, "ENCRYPTION_MASTER_KEY"},
		{"kms without key id", func(c *Config) {
			c.KMS = KMSConfig{Enabled: true}
		}, "KMS_KEY_ID"},
		{"kms replaces master key", func(c *Config) {
			c.KMS = KMSConfig{Enabled: true, KeyID: "alias/qa"}
		}, ""},
		{"memory keeps random keys", func(c *Config) {
			c.Storage.Backend = StorageMemory
			c.Hashing.Pepper = ""
			c.KMS.MasterKey = ""
		}, ""},
		{"analysis outlives write deadline", func(c *Config) {
			c.LLM.AnalysisTimeout = 90 * time.Second
		}, "LLM_ANALYSIS_TIMEOUT"},
		{"analysis budget missing", func(c *Config) { c.LLM.AnalysisTimeout = 0 }, "must be positive"},
		{"no write deadline", func(c *Config) {
			c.Server.WriteTimeout = 0
			c.LLM.AnalysisTimeout = 5 * time.Minute
		}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %q, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestDefaultsValidate(t *testing.T) {
	t.Setenv("STORAGE_BACKEND", "")
	t.Setenv("SERVER_WRITE_TIMEOUT", "")
	t.Setenv("LLM_ANALYSIS_TIMEOUT", "")
	cfg := load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
	if cfg.LLM.AnalysisTimeout >= cfg.Server.WriteTimeout {
		t.Fatalf("analysis budget %v must end before write timeout %v", cfg.LLM.AnalysisTimeout, cfg.Server.WriteTimeout)
	}
}
