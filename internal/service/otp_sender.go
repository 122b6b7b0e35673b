package service

import (
	"context"

	"go.uber.org/zap"

	"qa-service/internal/util"
)

// OTPSender delivers a freshly issued code to the user.
type OTPSender interface {
	SendOTP(ctx context.Context, mobile, code string) error
}

// LogOTPSender writes codes to the log instead of sending an SMS.
type LogOTPSender struct {
	logger *zap.Logger
}

func NewLogOTPSender(logger *zap.Logger) *LogOTPSender {
	return &LogOTPSender{logger: logger}
}

func (s *LogOTPSender) SendOTP(ctx context.Context, mobile, code string) error {
	s.logger.Info("OTP issued",
		util.String("mobile", util.MaskMobile(mobile)),
		util.String("otp", code),
	)
	return nil
}
