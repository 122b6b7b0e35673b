package hashing

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"

	"qa-service/internal/config"

	"golang.org/x/crypto/argon2"
)

var (
	ErrInvalidHash    = errors.New("invalid hash format")
	ErrPepperMismatch = errors.New("hash was produced with an unknown pepper version")
)

const (
	algorithm         = "argon2id-v1"
	contextOTP        = "otp"
	contextMobile     = "mobile"
	currentPepperVers = 1
)

type Argon2Params struct {
	Memory      uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

type Hasher struct {
	params Argon2Params
	pepper string
}

type HashResult struct {
	Hash          string `json:"hash"`
	Salt          string `json:"salt"`
	PepperVersion int    `json:"pepper_version"`
	Algorithm     string `json:"algorithm"`
}

// NewHasher builds a hasher from config. An empty pepper gets a random one,
// so hashes do not survive a restart; Config.Validate refuses that for
// remote storage.
func NewHasher(cfg *config.Config) (*Hasher, error) {
	params := Argon2Params{
		Memory:      uint32(cfg.Hashing.Argon2MemoryCost),
		Iterations:  uint32(cfg.Hashing.Argon2TimeCost),
		Parallelism: uint8(cfg.Hashing.Argon2Parallelism),
		SaltLength:  16,
		KeyLength:   32,
	}

	pepper := cfg.Hashing.Pepper
	if pepper == "" {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			return nil, fmt.Errorf("failed to generate pepper: %w", err)
		}
		pepper = base64.RawURLEncoding.EncodeToString(b)
	}
	return NewHasherWithParams(params, pepper), nil
}

func NewHasherWithParams(params Argon2Params, pepper string) *Hasher {
	return &Hasher{params: params, pepper: pepper}
}

func (h *Hasher) HashOTP(otp string) (*HashResult, error) {
	salt := make([]byte, h.params.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := h.derive(otp, salt, h.params.KeyLength)

	return &HashResult{
		Hash:          base64.RawURLEncoding.EncodeToString(hash),
		Salt:          base64.RawURLEncoding.EncodeToString(salt),
		PepperVersion: currentPepperVers,
		Algorithm:     algorithm,
	}, nil
}

func (h *Hasher) VerifyOTP(otp string, hashResult *HashResult) (bool, error) {
	if hashResult.PepperVersion != currentPepperVers {
		return false, ErrPepperMismatch
	}

	salt, err := base64.RawURLEncoding.DecodeString(hashResult.Salt)
	if err != nil {
		return false, ErrInvalidHash
	}
	expectedHash, err := base64.RawURLEncoding.DecodeString(hashResult.Hash)
	if err != nil || len(expectedHash) == 0 {
		return false, ErrInvalidHash
	}

	computedHash := h.derive(otp, salt, uint32(len(expectedHash)))

	// Use constant time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare(computedHash, expectedHash) == 1, nil
}

// LookupHash is a deterministic peppered digest of a mobile number, used as
// the partition key for mobile lookups.
func (h *Hasher) LookupHash(mobile string) string {
	sum := sha256.Sum256([]byte(mobile + h.pepper + contextMobile))
	return hex.EncodeToString(sum[:])
}

func (h *Hasher) derive(data string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey(
		[]byte(data+h.pepper+contextOTP),
		salt,
		h.params.Iterations,
		h.params.Memory,
		h.params.Parallelism,
		keyLen,
	)
}
