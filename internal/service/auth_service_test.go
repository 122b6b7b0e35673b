package service

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"qa-service/internal/hashing"
	"qa-service/internal/repository"
	"qa-service/internal/repository/memory"
)

var testStart = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

type captureSender struct {
	mu    sync.Mutex
	codes map[string]string
}

func (c *captureSender) SendOTP(ctx context.Context, mobile, code string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.codes == nil {
		c.codes = make(map[string]string)
	}
	c.codes[mobile] = code
	return nil
}

func testHasher() *hashing.Hasher {
	return hashing.NewHasherWithParams(hashing.Argon2Params{
		Memory:      64,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}, "test-pepper")
}

type authFixture struct {
	svc    *AuthService
	otps   *memory.OTPStore
	users  *memory.UserRepository
	sender *captureSender
	clock  *clockwork.FakeClock
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		otps:   memory.NewOTPStore(),
		users:  memory.NewUserRepository(),
		sender: &captureSender{},
		clock:  clockwork.NewFakeClockAt(testStart),
	}
	f.svc = NewAuthService(f.otps, f.users, testHasher(), f.sender, f.clock, zap.NewNop(), 0)
	return f
}

func otherCode(code string) string {
	if code == "000000" {
		return "000001"
	}
	return "000000"
}

func TestSendOTPRejectsInvalidMobile(t *testing.T) {
	cases := []string{
		"",
		"12345",
		"5876543210",
		"0876543210",
		"98765432101",
		"98765abcde",
		" 9876543210",
		"+919876543210",
	}

	for _, mobile := range cases {
		t.Run(mobile, func(t *testing.T) {
			f := newAuthFixture()
			code, err := f.svc.SendOTP(context.Background(), mobile)
			if !errors.Is(err, ErrInvalidMobileFormat) || !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected invalid mobile error, got %v", err)
			}
			if code != "" {
				t.Fatalf("no code should be issued, got %q", code)
			}
			if _, err := f.otps.GetOTP(context.Background(), mobile); !errors.Is(err, repository.ErrNotFound) {
				t.Fatalf("no OTP record should be stored, got %v", err)
			}
		})
	}
}

func TestSendThenVerify(t *testing.T) {
	ctx := context.Background()
	valid := []string{"9876543210", "6000000000", "7123456789", "8999999999"}

	for _, mobile := range valid {
		t.Run(mobile, func(t *testing.T) {
			f := newAuthFixture()
			code, err := f.svc.SendOTP(ctx, mobile)
			if err != nil {
				t.Fatalf("send: %v", err)
			}
			if !regexp.MustCompile(`^\d{6}$`).MatchString(code) {
				t.Fatalf("code %q is not 6 digits", code)
			}
			if f.sender.codes[mobile] != code {
				t.Fatalf("sender got %q, want %q", f.sender.codes[mobile], code)
			}

			if err := f.svc.VerifyOTP(ctx, mobile, otherCode(code)); !errors.Is(err, ErrOTPMismatch) {
				t.Fatalf("expected mismatch, got %v", err)
			}
			if err := f.svc.VerifyOTP(ctx, mobile, code); err != nil {
				t.Fatalf("verify: %v", err)
			}
			// Verification does not consume the code.
			if err := f.svc.VerifyOTP(ctx, mobile, code); err != nil {
				t.Fatalf("second verify: %v", err)
			}
		})
	}
}

func TestOTPStoresOnlyHash(t *testing.T) {
	f := newAuthFixture()
	code, err := f.svc.SendOTP(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	rec, err := f.otps.GetOTP(context.Background(), "9876543210")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CodeHash == "" || rec.CodeHash == code || rec.CodeSalt == "" {
		t.Fatalf("expected hashed code, got %+v", rec)
	}
	if !rec.ExpiresAt.Equal(testStart.Add(5 * time.Minute)) {
		t.Fatalf("expiry = %v, want issue time + 5m", rec.ExpiresAt)
	}
}

func TestVerifyOTPNotFound(t *testing.T) {
	f := newAuthFixture()
	err := f.svc.VerifyOTP(context.Background(), "9876543210", "123456")
	if !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("expected ErrOTPNotFound, got %v", err)
	}
	if UserMessage(err) != "OTP not found. Please request a new OTP." {
		t.Fatalf("unexpected message %q", UserMessage(err))
	}
}

func TestVerifyOTPExpiry(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	code, _ := f.svc.SendOTP(ctx, "9876543210")

	f.clock.Advance(5 * time.Minute)
	if err := f.svc.VerifyOTP(ctx, "9876543210", code); err != nil {
		t.Fatalf("code should still be valid at exactly 5m: %v", err)
	}

	f.clock.Advance(time.Second)
	err := f.svc.VerifyOTP(ctx, "9876543210", code)
	if !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
	if UserMessage(err) != "OTP has expired. Please request a new OTP." {
		t.Fatalf("unexpected message %q", UserMessage(err))
	}

	// The expired record is removed as a side effect.
	if err := f.svc.VerifyOTP(ctx, "9876543210", code); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("expected ErrOTPNotFound after expiry, got %v", err)
	}
}

func TestExpiredWinsOverMismatch(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	code, _ := f.svc.SendOTP(ctx, "9876543210")
	f.clock.Advance(6 * time.Minute)

	if err := f.svc.VerifyOTP(ctx, "9876543210", otherCode(code)); !errors.Is(err, ErrOTPExpired) {
		t.Fatalf("expected ErrOTPExpired, got %v", err)
	}
}

func TestResendOverwritesPreviousCode(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	first, _ := f.svc.SendOTP(ctx, "9876543210")
	f.clock.Advance(4 * time.Minute)
	second, _ := f.svc.SendOTP(ctx, "9876543210")
	if first == second {
		t.Skip("random codes collided")
	}

	if err := f.svc.VerifyOTP(ctx, "9876543210", first); !errors.Is(err, ErrOTPMismatch) {
		t.Fatalf("old code should no longer match, got %v", err)
	}
	// The new code gets a fresh five minutes.
	f.clock.Advance(4 * time.Minute)
	if err := f.svc.VerifyOTP(ctx, "9876543210", second); err != nil {
		t.Fatalf("verify new code: %v", err)
	}
}

func TestSignupScenario(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	code, err := f.svc.SendOTP(ctx, "9876543210")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := f.svc.VerifyOTP(ctx, "9876543210", code); err != nil {
		t.Fatalf("verify: %v", err)
	}

	user, err := f.svc.VerifyOTPAndSignup(ctx, "9876543210", code, "Jane Doe")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if user.MobileNumber != "9876543210" || user.FullName != "Jane Doe" || user.ID == "" {
		t.Fatalf("unexpected user %+v", user)
	}
	if !user.CreatedAt.Equal(testStart) {
		t.Fatalf("createdAt = %v", user.CreatedAt)
	}

	stored, err := f.svc.GetUserByMobile(ctx, "9876543210")
	if err != nil || stored.ID != user.ID {
		t.Fatalf("user not persisted: %+v err=%v", stored, err)
	}
	if err := f.svc.VerifyOTP(ctx, "9876543210", code); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("signup should clear the OTP, got %v", err)
	}
}

func TestSignupDuplicateUser(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	code, _ := f.svc.SendOTP(ctx, "9876543210")
	if _, err := f.svc.VerifyOTPAndSignup(ctx, "9876543210", code, "Jane Doe"); err != nil {
		t.Fatalf("first signup: %v", err)
	}

	fresh, _ := f.svc.SendOTP(ctx, "9876543210")
	_, err := f.svc.VerifyOTPAndSignup(ctx, "9876543210", fresh, "Jane Again")
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser, got %v", err)
	}
	if UserMessage(err) != "User with this mobile number already exists." {
		t.Fatalf("unexpected message %q", UserMessage(err))
	}

	// Duplicate is reported before the name is looked at.
	_, err = f.svc.VerifyOTPAndSignup(ctx, "9876543210", fresh, "   ")
	if !errors.Is(err, ErrDuplicateUser) {
		t.Fatalf("expected ErrDuplicateUser for blank name, got %v", err)
	}
}

func TestSignupFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("blank name keeps otp", func(t *testing.T) {
		f := newAuthFixture()
		code, _ := f.svc.SendOTP(ctx, "9876543210")
		_, err := f.svc.VerifyOTPAndSignup(ctx, "9876543210", code, " \t ")
		if !errors.Is(err, ErrEmptyName) || !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("expected ErrEmptyName, got %v", err)
		}
		if err := f.svc.VerifyOTP(ctx, "9876543210", code); err != nil {
			t.Fatalf("OTP should survive a failed signup: %v", err)
		}
	})

	t.Run("wrong code", func(t *testing.T) {
		f := newAuthFixture()
		code, _ := f.svc.SendOTP(ctx, "9876543210")
		_, err := f.svc.VerifyOTPAndSignup(ctx, "9876543210", otherCode(code), "Jane Doe")
		if !errors.Is(err, ErrOTPMismatch) {
			t.Fatalf("expected ErrOTPMismatch, got %v", err)
		}
	})

	t.Run("name is trimmed", func(t *testing.T) {
		f := newAuthFixture()
		code, _ := f.svc.SendOTP(ctx, "9876543210")
		user, err := f.svc.VerifyOTPAndSignup(ctx, "9876543210", code, "  Jane Doe ")
		if err != nil {
			t.Fatalf("signup: %v", err)
		}
		if user.FullName != "Jane Doe" {
			t.Fatalf("name = %q", user.FullName)
		}
	})
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	code, _ := f.svc.SendOTP(ctx, "9876543210")
	if _, err := f.svc.Login(ctx, "9876543210", code); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}

	created, err := f.svc.VerifyOTPAndSignup(ctx, "9876543210", code, "Jane Doe")
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	code, _ = f.svc.SendOTP(ctx, "9876543210")
	user, err := f.svc.Login(ctx, "9876543210", code)
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("logged in as %s, want %s", user.ID, created.ID)
	}
	if _, err := f.svc.Login(ctx, "9876543210", code); !errors.Is(err, ErrOTPNotFound) {
		t.Fatalf("login should consume the OTP, got %v", err)
	}
}

func TestGetUserByIDNotFound(t *testing.T) {
	f := newAuthFixture()
	if _, err := f.svc.GetUserByID(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestSweepExpiredOTPs(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()

	_, _ = f.svc.SendOTP(ctx, "9876543210")
	f.clock.Advance(3 * time.Minute)
	_, _ = f.svc.SendOTP(ctx, "9123456789")
	f.clock.Advance(3 * time.Minute)

	if err := f.svc.SweepExpiredOTPs(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if _, err := f.otps.GetOTP(ctx, "9876543210"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expired record should be swept, got %v", err)
	}
	if _, err := f.otps.GetOTP(ctx, "9123456789"); err != nil {
		t.Fatalf("live record should survive, got %v", err)
	}
}

func TestGenerateOTPFormat(t *testing.T) {
	pattern := regexp.MustCompile(`^\d{6}$`)
	for i := 0; i < 200; i++ {
		code, err := generateOTP()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if !pattern.MatchString(code) {
			t.Fatalf("code %q is not 6 digits", code)
		}
	}
}
