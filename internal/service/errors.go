package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrInvalidMobileFormat = fmt.Errorf("%w: invalid mobile number", ErrInvalidInput)
	ErrQuestionTooShort    = fmt.Errorf("%w: question text too short", ErrInvalidInput)
	ErrEmptyName           = fmt.Errorf("%w: full name is required", ErrInvalidInput)

	ErrOTPNotFound      = errors.New("otp not found")
	ErrOTPExpired       = errors.New("otp expired")
	ErrOTPMismatch      = errors.New("otp mismatch")
	ErrDuplicateUser    = errors.New("user already exists")
	ErrUserNotFound     = errors.New("user not found")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrPermissionDenied = errors.New("permission denied")

	ErrQuestionNotFound = errors.New("question not found")
	ErrPersistence      = errors.New("persistence failure")
)

// UserMessage returns the message shown to the end user for err.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidMobileFormat):
		return "Please enter a valid Indian mobile number (10 digits starting with 6-9)"
	case errors.Is(err, ErrQuestionTooShort):
		return fmt.Sprintf("Question must be at least %d characters long.", MinQuestionLength)
	case errors.Is(err, ErrEmptyName):
		return "Please enter your full name."
	case errors.Is(err, ErrInvalidInput):
		return "Invalid request. Please check your input and try again."
	case errors.Is(err, ErrOTPNotFound):
		return "OTP not found. Please request a new OTP."
	case errors.Is(err, ErrOTPExpired):
		return "OTP has expired. Please request a new OTP."
	case errors.Is(err, ErrOTPMismatch):
		return "Invalid OTP. Please check and try again."
	case errors.Is(err, ErrDuplicateUser):
		return "User with this mobile number already exists."
	case errors.Is(err, ErrUserNotFound):
		return "No account found for this mobile number. Please sign up first."
	case errors.Is(err, ErrUnauthorized):
		return "Please log in to continue."
	case errors.Is(err, ErrPermissionDenied):
		return "You do not have access to this question."
	case errors.Is(err, ErrQuestionNotFound):
		return "Question not found."
	default:
		return "Something went wrong. Please try again."
	}
}
