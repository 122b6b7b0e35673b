package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"qa-service/internal/hashing"
	"qa-service/internal/repository"
	"qa-service/internal/repository/memory"
	"qa-service/internal/service"
)

var start = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

func waitRun(t *testing.T, runs <-chan struct{}) {
	t.Helper()
	select {
	case <-runs:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run")
	}
}

func TestSchedulerRunsOnEveryTick(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clockwork.NewFakeClockAt(start)
	runs := make(chan struct{}, 10)
	calls := 0
	s := New(clk, zap.NewNop(),
		Task{Name: "count", Interval: time.Minute, Run: func(ctx context.Context) error {
			calls++
			runs <- struct{}{}
			if calls == 1 {
				return errors.New("first run fails")
			}
			return nil
		}},
		Task{Name: "disabled", Interval: 0, Run: func(ctx context.Context) error {
			t.Error("disabled task must not run")
			return nil
		}},
	)
	s.Start(ctx)

	if err := clk.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ticker not registered: %v", err)
	}
	select {
	case <-runs:
		t.Fatal("task ran before its interval")
	default:
	}

	clk.Advance(time.Minute)
	waitRun(t, runs)
	// A failed run keeps the schedule.
	clk.Advance(time.Minute)
	waitRun(t, runs)

	cancel()
	s.Wait()
}

func TestOTPSweepTask(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clockwork.NewFakeClockAt(start)
	otps := memory.NewOTPStore()
	hasher := hashing.NewHasherWithParams(hashing.Argon2Params{
		Memory: 64, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32,
	}, "pepper")
	auth := service.NewAuthService(otps, memory.NewUserRepository(), hasher,
		service.NewLogOTPSender(zap.NewNop()), clk, zap.NewNop(), 5*time.Minute)

	if _, err := auth.SendOTP(ctx, "9876543210"); err != nil {
		t.Fatalf("send: %v", err)
	}

	runs := make(chan struct{}, 10)
	s := New(clk, zap.NewNop(), Task{
		Name:     "otp-sweep",
		Interval: time.Minute,
		Run: func(ctx context.Context) error {
			defer func() { runs <- struct{}{} }()
			return auth.SweepExpiredOTPs(ctx)
		},
	})
	s.Start(ctx)
	if err := clk.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ticker not registered: %v", err)
	}

	for i := 0; i < 5; i++ {
		clk.Advance(time.Minute)
		waitRun(t, runs)
	}
	if _, err := otps.GetOTP(ctx, "9876543210"); err != nil {
		t.Fatalf("record at exactly 5m should survive: %v", err)
	}

	clk.Advance(time.Minute)
	waitRun(t, runs)
	if _, err := otps.GetOTP(ctx, "9876543210"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected swept record, got %v", err)
	}

	cancel()
	s.Wait()
}
