package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"qa-service/internal/hashing"
	"qa-service/internal/models"
	"qa-service/internal/repository"
	"qa-service/internal/util"
)

const (
	DefaultOTPTTL = 5 * time.Minute
	otpDigits     = 6
)

var (
	mobilePattern = regexp.MustCompile(`^[6-9]\d{9}$`)
	otpSpace      = big.NewInt(1_000_000)
)

// AuthService turns a claimed mobile number into a verified identity.
type AuthService struct {
	otps   repository.OTPStore
	users  repository.UserRepository
	hasher *hashing.Hasher
	sender OTPSender
	clock  clockwork.Clock
	logger *zap.Logger
	otpTTL time.Duration
}

func NewAuthService(
	otps repository.OTPStore,
	users repository.UserRepository,
	hasher *hashing.Hasher,
	sender OTPSender,
	clk clockwork.Clock,
	logger *zap.Logger,
	otpTTL time.Duration,
) *AuthService {
	if otpTTL <= 0 {
		otpTTL = DefaultOTPTTL
	}
	return &AuthService{
		otps:   otps,
		users:  users,
		hasher: hasher,
		sender: sender,
		clock:  clk,
		logger: logger,
		otpTTL: otpTTL,
	}
}

// ValidateMobileNumber accepts 10-digit Indian mobile numbers starting with 6-9.
func ValidateMobileNumber(mobile string) error {
	if !mobilePattern.MatchString(mobile) {
		return ErrInvalidMobileFormat
	}
	return nil
}

func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, otpSpace)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}

// SendOTP issues a new code for mobile, replacing any previous one, and
// returns it so the caller can hand it to a delivery channel.
func (s *AuthService) SendOTP(ctx context.Context, mobile string) (string, error) {
	if err := ValidateMobileNumber(mobile); err != nil {
		return "", err
	}

	code, err := generateOTP()
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	hashed, err := s.hasher.HashOTP(code)
	if err != nil {
		return "", fmt.Errorf("failed to hash otp: %w", err)
	}

	now := s.clock.Now()
	record := &models.OTPRecord{
		MobileNumber:  mobile,
		CodeHash:      hashed.Hash,
		CodeSalt:      hashed.Salt,
		PepperVersion: hashed.PepperVersion,
		ExpiresAt:     now.Add(s.otpTTL),
		CreatedAt:     now,
	}
	if err := s.otps.SaveOTP(ctx, record); err != nil {
		return "", fmt.Errorf("%w: save otp: %v", ErrPersistence, err)
	}

	if err := s.sender.SendOTP(ctx, mobile, code); err != nil {
		s.logger.Warn("OTP delivery failed",
			util.String("mobile", util.MaskMobile(mobile)),
			util.ErrorField(err),
		)
	}
	return code, nil
}

// VerifyOTP checks code against the active record. A successful check leaves
// the record in place so the same code can complete signup or login.
func (s *AuthService) VerifyOTP(ctx context.Context, mobile, code string) error {
	record, err := s.otps.GetOTP(ctx, mobile)
	if errors.Is(err, repository.ErrNotFound) {
		return ErrOTPNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: load otp: %v", ErrPersistence, err)
	}

	if record.IsExpired(s.clock.Now()) {
		if err := s.otps.DeleteOTP(ctx, mobile); err != nil {
			s.logger.Warn("failed to delete expired OTP",
				util.String("mobile", util.MaskMobile(mobile)),
				util.ErrorField(err),
			)
		}
		return ErrOTPExpired
	}

	ok, err := s.hasher.VerifyOTP(code, &hashing.HashResult{
		Hash:          record.CodeHash,
		Salt:          record.CodeSalt,
		PepperVersion: record.PepperVersion,
	})
	if err != nil {
		// A record hashed under another pepper can never match.
		s.logger.Warn("OTP record unverifiable",
			util.String("mobile", util.MaskMobile(mobile)),
			util.ErrorField(err),
		)
		return ErrOTPMismatch
	}
	if !ok {
		return ErrOTPMismatch
	}
	return nil
}

// VerifyOTPAndSignup creates the account for a verified mobile number and
// consumes the OTP.
func (s *AuthService) VerifyOTPAndSignup(ctx context.Context, mobile, code, fullName string) (*models.User, error) {
	if err := s.VerifyOTP(ctx, mobile, code); err != nil {
		return nil, err
	}

	existing, err := s.users.GetUserByMobile(ctx, mobile)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%w: lookup user: %v", ErrPersistence, err)
	}
	if existing != nil {
		return nil, ErrDuplicateUser
	}

	name := strings.TrimSpace(fullName)
	if name == "" {
		return nil, ErrEmptyName
	}

	user := &models.User{
		ID:           uuid.NewString(),
		FullName:     name,
		MobileNumber: mobile,
		CreatedAt:    s.clock.Now(),
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrDuplicateUser
		}
		return nil, fmt.Errorf("%w: create user: %v", ErrPersistence, err)
	}

	s.consumeOTP(ctx, mobile)
	s.logger.Info("user signed up",
		util.String("user_id", user.ID),
		util.String("mobile", util.MaskMobile(mobile)),
	)
	return user, nil
}

// Login returns the existing account for a verified mobile number.
func (s *AuthService) Login(ctx context.Context, mobile, code string) (*models.User, error) {
	if err := s.VerifyOTP(ctx, mobile, code); err != nil {
		return nil, err
	}

	user, err := s.GetUserByMobile(ctx, mobile)
	if err != nil {
		return nil, err
	}

	s.consumeOTP(ctx, mobile)
	return user, nil
}

func (s *AuthService) consumeOTP(ctx context.Context, mobile string) {
	if err := s.otps.DeleteOTP(ctx, mobile); err != nil {
		s.logger.Warn("failed to clear OTP",
			util.String("mobile", util.MaskMobile(mobile)),
			util.ErrorField(err),
		)
	}
}

func (s *AuthService) GetUserByID(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", ErrPersistence, err)
	}
	return user, nil
}

func (s *AuthService) GetUserByMobile(ctx context.Context, mobile string) (*models.User, error) {
	user, err := s.users.GetUserByMobile(ctx, mobile)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get user: %v", ErrPersistence, err)
	}
	return user, nil
}

// SweepExpiredOTPs drops every record past its expiry.
func (s *AuthService) SweepExpiredOTPs(ctx context.Context) error {
	removed, err := s.otps.DeleteExpiredOTPs(ctx, s.clock.Now())
	if err != nil {
		return fmt.Errorf("failed to sweep expired otps: %w", err)
	}
	if removed > 0 {
		s.logger.Debug("expired OTPs swept", util.Int("removed", removed))
	}
	return nil
}
