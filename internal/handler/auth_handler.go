package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"qa-service/internal/models"
	"qa-service/internal/service"
	"qa-service/internal/util"
)

type SendOTPRequest struct {
	MobileNumber string `json:"mobile_number" validate:"required"`
}

type VerifyOTPRequest struct {
	MobileNumber string `json:"mobile_number" validate:"required"`
	OTP          string `json:"otp" validate:"required,len=6,numeric"`
}

type SignupRequest struct {
	MobileNumber string `json:"mobile_number" validate:"required"`
	OTP          string `json:"otp" validate:"required,len=6,numeric"`
	FullName     string `json:"full_name" validate:"max=100"`
}

type SendOTPResponse struct {
	MobileNumber     string `json:"mobile_number"`
	ExpiresInSeconds int    `json:"expires_in_seconds"`
	OTP              string `json:"otp,omitempty"`
}

type SessionResponse struct {
	User         *models.User `json:"user"`
	SessionToken string       `json:"session_token"`
}

// AuthHandler serves the OTP signup and login flow.
type AuthHandler struct {
	responder
	auth      *service.AuthService
	sessions  *service.SessionService
	questions *service.QuestionService
	limiter   *IPRateLimiter
	otpTTL    time.Duration
	echoOTP   bool
}

type AuthHandlerOptions struct {
	Limiter *IPRateLimiter
	OTPTTL  time.Duration
	// EchoOTP returns the issued code in the response. Development only.
	EchoOTP bool
}

func NewAuthHandler(
	auth *service.AuthService,
	sessions *service.SessionService,
	questions *service.QuestionService,
	validate *validator.Validate,
	logger *zap.Logger,
	opts AuthHandlerOptions,
) *AuthHandler {
	if opts.OTPTTL <= 0 {
		opts.OTPTTL = service.DefaultOTPTTL
	}
	return &AuthHandler{
		responder: responder{logger: logger, validate: validate},
		auth:      auth,
		sessions:  sessions,
		questions: questions,
		limiter:   opts.Limiter,
		otpTTL:    opts.OTPTTL,
		echoOTP:   opts.EchoOTP,
	}
}

// RegisterRoutes registers all auth routes
func (h *AuthHandler) RegisterRoutes(router chi.Router) {
	router.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if h.limiter != nil {
				r.Use(h.limiter.Middleware(h.logger))
			}
			r.Post("/otp", h.SendOTP)
		})
		r.Post("/otp/verify", h.VerifyOTP)
		r.Post("/signup", h.Signup)
		r.Post("/login", h.Login)

		r.Group(func(r chi.Router) {
			r.Use(RequireSession(h.sessions, h.logger))
			r.Post("/logout", h.Logout)
			r.Get("/me", h.Me)
		})
	})
}

// SendOTP handles POST /auth/otp
func (h *AuthHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithError(w, http.StatusBadRequest, err, service.UserMessage(service.ErrInvalidMobileFormat))
		return
	}

	code, err := h.auth.SendOTP(r.Context(), req.MobileNumber)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	resp := SendOTPResponse{
		MobileNumber:     req.MobileNumber,
		ExpiresInSeconds: int(h.otpTTL / time.Second),
	}
	if h.echoOTP {
		resp.OTP = code
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(resp, "OTP sent successfully to your mobile number"))
}

// VerifyOTP handles POST /auth/otp/verify. The code stays valid for signup.
func (h *AuthHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req VerifyOTPRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	if err := h.auth.VerifyOTP(r.Context(), req.MobileNumber, req.OTP); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "OTP verified successfully!"))
}

// Signup handles POST /auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req SignupRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	if util.ContainsSuspicious(req.FullName) {
		h.respondWithServiceError(w, fmt.Errorf("%w: full name contains markup", service.ErrInvalidInput))
		return
	}

	user, err := h.auth.VerifyOTPAndSignup(ctx, req.MobileNumber, req.OTP, req.FullName)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	token, err := h.sessions.Create(ctx, user)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.questions.PrepareNewUser(ctx, user)

	h.respondWithJSON(w, http.StatusCreated, successResponse(
		SessionResponse{User: user, SessionToken: token},
		"Account created successfully!",
	))
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req VerifyOTPRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	user, err := h.auth.Login(ctx, req.MobileNumber, req.OTP)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}

	token, err := h.sessions.Create(ctx, user)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(
		SessionResponse{User: user, SessionToken: token},
		"Login successful!",
	))
}

// Logout handles POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Delete(r.Context(), tokenFromContext(r.Context())); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(nil, "Logged out successfully"))
}

// Me handles GET /auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	h.respondWithJSON(w, http.StatusOK, successResponse(userFromContext(r.Context()), ""))
}
