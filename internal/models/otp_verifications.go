package models

import "time"

// OTPRecord is the single active verification code for a mobile number.
// Only the argon2 hash of the code is kept.
type OTPRecord struct {
	MobileNumber  string    `json:"mobile_number"`
	CodeHash      string    `json:"hash"`
	CodeSalt      string    `json:"salt"`
	PepperVersion int       `json:"pepper_version"`
	ExpiresAt     time.Time `json:"expires_at"`
	CreatedAt     time.Time `json:"created_at"`
}

func (r *OTPRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}
