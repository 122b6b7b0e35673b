package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageRemote = "remote"

	LLMProviderGemini = "gemini"
	LLMProviderMock   = "mock"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Logging       LoggingConfig
	Storage       StorageConfig
	Redis         RedisConfig
	Scylla        ScyllaConfig
	Kafka         KafkaConfig
	Elasticsearch ElasticsearchConfig
	Clickhouse    ClickhouseConfig
	KMS           KMSConfig
	Hashing       HashingConfig
	Bucketing     BucketingConfig
	OTP           OTPConfig
	Session       SessionConfig
	LLM           LLMConfig
	Questions     QuestionsConfig
}

type ServerConfig struct {
	Port           int
	TLSPort        int
	EnableTLS      bool
	AutoCert       bool
	Domain         string
	CertFile       string
	KeyFile        string
	AutoCertDir    string
	Email          string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// StorageConfig selects the backing stores at construction time.
type StorageConfig struct {
	Backend string
}

type RedisConfig struct {
	URL      string
	Password string
	DB       int
	PoolSize int
}

type ScyllaConfig struct {
	Nodes       []string
	Keyspace    string
	Username    string
	Password    string
	AutoMigrate bool
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	EventTopic string
}

type ElasticsearchConfig struct {
	Enabled       bool
	URL           string
	Username      string
	Password      string
	QuestionIndex string
}

type ClickhouseConfig struct {
	Enabled  bool
	URL      string
	Username string
	Password string
	Database string
}

type KMSConfig struct {
	Enabled   bool
	KeyID     string
	Region    string
	MasterKey string // base64 AES-256 key used to wrap data keys when KMS is disabled
}

type HashingConfig struct {
	Argon2MemoryCost  int
	Argon2TimeCost    int
	Argon2Parallelism int
	Pepper            string
}

type BucketingConfig struct {
	UserBuckets int
}

type OTPConfig struct {
	TTL            time.Duration
	SweepInterval  time.Duration
	EchoCode       bool
	RequestsPerMin int
}

type SessionConfig struct {
	TTL time.Duration
}

type LLMConfig struct {
	Provider          string
	APIKey            string
	APIURL            string
	Model             string
	Temperature       float64
	MaxTokens         int
	MinConfidence     float64
	MockMinConfidence float64
	RequestTimeout    time.Duration
	MaxRetries        int
	RetryDelay        time.Duration

	// AnalysisTimeout bounds categorization plus answer generation for one
	// submission. It must end before the server write deadline.
	AnalysisTimeout time.Duration
}

type QuestionsConfig struct {
	SeedSampleQuestions bool
	Retention           time.Duration
	RetentionInterval   time.Duration
}

var (
	globalConfig *Config
	once         sync.Once
)

// LoadConfig reads the process environment, optionally seeded from a .env file.
func LoadConfig() *Config {
	once.Do(func() {
		_ = godotenv.Load()
		globalConfig = load()
	})
	return globalConfig
}

// Get returns the loaded configuration, loading it on first use.
func Get() *Config {
	return LoadConfig()
}

func load() *Config {
	return &Config{
		Environment: getString("APP_ENV", "development"),
		Server: ServerConfig{
			Port:           getInt("SERVER_PORT", 8080),
			TLSPort:        getInt("SERVER_TLS_PORT", 8443),
			EnableTLS:      getBool("SERVER_ENABLE_TLS", false),
			AutoCert:       getBool("SERVER_AUTO_CERT", false),
			Domain:         getString("SERVER_DOMAIN", "localhost"),
			CertFile:       getString("SERVER_CERT_FILE", ""),
			KeyFile:        getString("SERVER_KEY_FILE", ""),
			AutoCertDir:    getString("SERVER_AUTO_CERT_DIR", "./certs"),
			Email:          getString("SERVER_ACME_EMAIL", ""),
			ReadTimeout:    getDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDuration("SERVER_WRITE_TIMEOUT", 90*time.Second),
			IdleTimeout:    getDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getList("SERVER_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
		},
		Logging: LoggingConfig{
			Level:  getString("LOG_LEVEL", "info"),
			Format: getString("LOG_FORMAT", "console"),
		},
		Storage: StorageConfig{
			Backend: getString("STORAGE_BACKEND", StorageMemory),
		},
		Redis: RedisConfig{
			URL:      getString("REDIS_URL", "redis://localhost:6379/0"),
			Password: getString("REDIS_PASSWORD", ""),
			DB:       getInt("REDIS_DB", 0),
			PoolSize: getInt("REDIS_POOL_SIZE", 20),
		},
		Scylla: ScyllaConfig{
			Nodes:       getList("SCYLLA_NODES", []string{"localhost:9042"}),
			Keyspace:    getString("SCYLLA_KEYSPACE", "student_qa"),
			Username:    getString("SCYLLA_USERNAME", ""),
			Password:    getString("SCYLLA_PASSWORD", ""),
			AutoMigrate: getBool("SCYLLA_AUTO_MIGRATE", true),
		},
		Kafka: KafkaConfig{
			Enabled:    getBool("KAFKA_ENABLED", false),
			Brokers:    getList("KAFKA_BROKERS", []string{"localhost:9092"}),
			EventTopic: getString("KAFKA_QUESTION_EVENTS_TOPIC", "question-events"),
		},
		Elasticsearch: ElasticsearchConfig{
			Enabled:       getBool("ELASTICSEARCH_ENABLED", false),
			URL:           getString("ELASTICSEARCH_URL", "http://localhost:9200"),
			Username:      getString("ELASTICSEARCH_USERNAME", ""),
			Password:      getString("ELASTICSEARCH_PASSWORD", ""),
			QuestionIndex: getString("ELASTICSEARCH_QUESTION_INDEX", "questions"),
		},
		Clickhouse: ClickhouseConfig{
			Enabled:  getBool("CLICKHOUSE_ENABLED", false),
			URL:      getString("CLICKHOUSE_URL", "localhost:9000"),
			Username: getString("CLICKHOUSE_USERNAME", "default"),
			Password: getString("CLICKHOUSE_PASSWORD", ""),
			Database: getString("CLICKHOUSE_DATABASE", "default"),
		},
		KMS: KMSConfig{
			Enabled:   getBool("KMS_ENABLED", false),
			KeyID:     getString("KMS_KEY_ID", ""),
			Region:    getString("AWS_REGION", "ap-south-1"),
			MasterKey: getString("ENCRYPTION_MASTER_KEY", ""),
		},
		Hashing: HashingConfig{
			Argon2MemoryCost:  getInt("ARGON2_MEMORY_COST", 64*1024),
			Argon2TimeCost:    getInt("ARGON2_TIME_COST", 1),
			Argon2Parallelism: getInt("ARGON2_PARALLELISM", 2),
			Pepper:            getString("HASHING_PEPPER", ""),
		},
		Bucketing: BucketingConfig{
			UserBuckets: getInt("USER_BUCKETS", 64),
		},
		OTP: OTPConfig{
			TTL:            getDuration("OTP_TTL", 5*time.Minute),
			SweepInterval:  getDuration("OTP_SWEEP_INTERVAL", time.Minute),
			EchoCode:       getBool("OTP_ECHO", false),
			RequestsPerMin: getInt("OTP_REQUESTS_PER_MINUTE", 5),
		},
		Session: SessionConfig{
			TTL: getDuration("SESSION_TTL", 24*time.Hour),
		},
		LLM: LLMConfig{
			Provider:          getString("LLM_PROVIDER", LLMProviderMock),
			APIKey:            getString("GEMINI_API_KEY", ""),
			APIURL:            getString("GEMINI_API_URL", "https://generativelanguage.googleapis.com/v1beta/models"),
			Model:             getString("GEMINI_MODEL", "gemini-1.5-flash"),
			Temperature:       getFloat("LLM_TEMPERATURE", 0.1),
			MaxTokens:         getInt("LLM_MAX_TOKENS", 1000),
			MinConfidence:     getFloat("LLM_MIN_CONFIDENCE", 0.9),
			MockMinConfidence: getFloat("LLM_MOCK_MIN_CONFIDENCE", 0.5),
			RequestTimeout:    getDuration("LLM_REQUEST_TIMEOUT", 30*time.Second),
			MaxRetries:        getInt("LLM_MAX_RETRIES", 3),
			RetryDelay:        getDuration("LLM_RETRY_DELAY", time.Second),
			AnalysisTimeout:   getDuration("LLM_ANALYSIS_TIMEOUT", 75*time.Second),
		},
		Questions: QuestionsConfig{
			SeedSampleQuestions: getBool("SEED_SAMPLE_QUESTIONS", false),
			Retention:           getDuration("QUESTION_RETENTION", 0),
			RetentionInterval:   getDuration("QUESTION_RETENTION_INTERVAL", time.Hour),
		},
	}
}

// Validate rejects combinations that would break at runtime: remote stores
// need stable hashing and encryption keys, and LLM analysis has to finish
// before the response deadline.
func (c *Config) Validate() error {
	var errs []error

	if c.UsesRemoteStorage() {
		if c.Hashing.Pepper == "" {
			errs = append(errs, errors.New("HASHING_PEPPER is required with remote storage"))
		}
		if c.KMS.Enabled && c.KMS.KeyID == "" {
			errs = append(errs, errors.New("KMS_KEY_ID is required when KMS is enabled"))
		}
		if !c.KMS.Enabled && c.KMS.MasterKey == "" {
			errs = append(errs, errors.New("ENCRYPTION_MASTER_KEY is required with remote storage when KMS is disabled"))
		}
	}

	switch {
	case c.LLM.AnalysisTimeout <= 0:
		errs = append(errs, errors.New("LLM_ANALYSIS_TIMEOUT must be positive"))
	case c.Server.WriteTimeout > 0 && c.LLM.AnalysisTimeout >= c.Server.WriteTimeout:
		errs = append(errs, fmt.Errorf("LLM_ANALYSIS_TIMEOUT (%v) must be shorter than SERVER_WRITE_TIMEOUT (%v)",
			c.LLM.AnalysisTimeout, c.Server.WriteTimeout))
	}

	return errors.Join(errs...)
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

func (c *Config) UsesRemoteStorage() bool {
	return c.Storage.Backend == StorageRemote
}

func (c *Config) GetServerAddress() string {
	return fmt.Sprintf(":%d", c.Server.Port)
}

// MinConfidenceForProvider returns the categorization threshold for the active LLM provider.
func (c *Config) MinConfidenceForProvider() float64 {
	if c.LLM.Provider == LLMProviderMock {
		return c.LLM.MockMinConfidence
	}
	return c.LLM.MinConfidence
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(getString(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(getString(key, ""), 64)
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(getString(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(getString(key, ""))
	if err != nil {
		return def
	}
	return v
}

func getList(key string, def []string) []string {
	raw := getString(key, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return def
	}
	return out
}
