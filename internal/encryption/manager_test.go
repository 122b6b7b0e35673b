package encryption

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"qa-service/internal/config"

	"github.com/aws/aws-sdk-go-v2/service/kms"
)

type stubKMS struct {
	key        []byte
	decryptErr error
	decrypts   int
}

func (s *stubKMS) GenerateDataKey(ctx context.Context, in *kms.GenerateDataKeyInput, _ ...func(*kms.Options)) (*kms.GenerateDataKeyOutput, error) {
	return &kms.GenerateDataKeyOutput{Plaintext: s.key, CiphertextBlob: []byte("wrapped-" + *in.KeyId)}, nil
}

func (s *stubKMS) Decrypt(ctx context.Context, in *kms.DecryptInput, _ ...func(*kms.Options)) (*kms.DecryptOutput, error) {
	s.decrypts++
	if s.decryptErr != nil {
		return nil, s.decryptErr
	}
	return &kms.DecryptOutput{Plaintext: s.key}, nil
}

func localConfig(masterKey string) *config.Config {
	cfg := &config.Config{}
	cfg.KMS.MasterKey = masterKey
	return cfg
}

func TestLocalRoundTrip(t *testing.T) {
	master := base64.StdEncoding.EncodeToString(make([]byte, 32))
	em, err := NewEncryptionManager(localConfig(master), nil)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}

	enc, err := em.EncryptField(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if enc.KeyID != localKeyID {
		t.Fatalf("unexpected key id %q", enc.KeyID)
	}

	// Force the unwrap path through the master key.
	em.ClearCache()
	got, err := em.DecryptField(context.Background(), enc)
	if err != nil || got != "9876543210" {
		t.Fatalf("decrypt: got %q err=%v", got, err)
	}

	other, _ := NewEncryptionManager(localConfig(""), nil)
	if _, err := other.DecryptField(context.Background(), enc); !errors.Is(err, ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed with a different master key, got %v", err)
	}
}

func TestInvalidMasterKey(t *testing.T) {
	if _, err := NewEncryptionManager(localConfig("c2hvcnQ="), nil); !errors.Is(err, ErrInvalidMasterKey) {
		t.Fatalf("expected ErrInvalidMasterKey, got %v", err)
	}
}

func TestKMSRoundTripUsesCache(t *testing.T) {
	cfg := &config.Config{}
	cfg.KMS.Enabled = true
	cfg.KMS.KeyID = "alias/qa"
	stub := &stubKMS{key: make([]byte, 32)}

	em, err := NewEncryptionManager(cfg, stub)
	if err != nil {
		t.Fatalf("new manager: %v", err)
	}
	enc, err := em.EncryptField(context.Background(), "9123456789")
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := em.DecryptField(context.Background(), enc); err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if stub.decrypts != 0 {
		t.Fatalf("expected cached DEK, got %d KMS decrypts", stub.decrypts)
	}

	em.ClearCache()
	got, err := em.DecryptField(context.Background(), enc)
	if err != nil || got != "9123456789" || stub.decrypts != 1 {
		t.Fatalf("got %q err=%v decrypts=%d", got, err, stub.decrypts)
	}
}

func TestKMSEnabledRequiresClient(t *testing.T) {
	cfg := &config.Config{}
	cfg.KMS.Enabled = true
	if _, err := NewEncryptionManager(cfg, nil); err == nil {
		t.Fatal("expected error without KMS client")
	}
}
