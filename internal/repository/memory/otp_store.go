package memory

import (
	"context"
	"sync"
	"time"

	"qa-service/internal/models"
	"qa-service/internal/repository"
)

type OTPStore struct {
	mu      sync.RWMutex
	records map[string]models.OTPRecord
}

func NewOTPStore() *OTPStore {
	return &OTPStore{records: make(map[string]models.OTPRecord)}
}

func (s *OTPStore) SaveOTP(ctx context.Context, record *models.OTPRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[record.MobileNumber] = *record
	return nil
}

func (s *OTPStore) GetOTP(ctx context.Context, mobile string) (*models.OTPRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[mobile]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &rec, nil
}

func (s *OTPStore) DeleteOTP(ctx context.Context, mobile string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, mobile)
	return nil
}

func (s *OTPStore) DeleteExpiredOTPs(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for mobile, rec := range s.records {
		if rec.IsExpired(now) {
			delete(s.records, mobile)
			removed++
		}
	}
	return removed, nil
}
