package handler

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"qa-service/internal/service"
	"qa-service/internal/util"
)

type SubmitQuestionRequest struct {
	QuestionText string `json:"question_text" validate:"required,max=5000"`
}

// QuestionHandler serves question submission and the dashboard.
type QuestionHandler struct {
	responder
	questions *service.QuestionService
	sessions  *service.SessionService
}

func NewQuestionHandler(
	questions *service.QuestionService,
	sessions *service.SessionService,
	validate *validator.Validate,
	logger *zap.Logger,
) *QuestionHandler {
	return &QuestionHandler{
		responder: responder{logger: logger, validate: validate},
		questions: questions,
		sessions:  sessions,
	}
}

// RegisterRoutes registers all question routes
func (h *QuestionHandler) RegisterRoutes(router chi.Router) {
	router.Group(func(r chi.Router) {
		r.Use(RequireSession(h.sessions, h.logger))

		r.Route("/questions", func(r chi.Router) {
			r.Post("/", h.SubmitQuestion)
			r.Get("/", h.ListQuestions)
			r.Get("/search", h.SearchQuestions)
			r.Get("/{questionID}", h.GetQuestion)
		})
		r.Get("/dashboard", h.Dashboard)
	})
}

// SubmitQuestion handles POST /questions
func (h *QuestionHandler) SubmitQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := userFromContext(ctx)

	var req SubmitQuestionRequest
	if err := h.decode(r, &req); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	if err := service.ValidateQuestionText(req.QuestionText); err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	if util.ContainsSuspicious(req.QuestionText) {
		h.respondWithServiceError(w, fmt.Errorf("%w: question contains markup", service.ErrInvalidInput))
		return
	}

	result, err := h.questions.SubmitQuestion(ctx, strings.TrimSpace(req.QuestionText), user)
	if err != nil {
		h.respondWithError(w, getStatusCode(err), err, result.Message)
		return
	}
	h.respondWithJSON(w, http.StatusCreated, successResponse(result.Question, result.Message))
}

// ListQuestions handles GET /questions
func (h *QuestionHandler) ListQuestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	questions, err := h.questions.GetQuestionsByUserID(ctx, userFromContext(ctx).ID)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(questions, ""))
}

// SearchQuestions handles GET /questions/search?q=
func (h *QuestionHandler) SearchQuestions(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	questions, err := h.questions.SearchQuestions(ctx, userFromContext(ctx).ID, r.URL.Query().Get("q"))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(questions, ""))
}

// GetQuestion handles GET /questions/{questionID}. Only the owner may read it.
func (h *QuestionHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q, err := h.questions.GetQuestionByID(ctx, chi.URLParam(r, "questionID"))
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	if q.UserID != userFromContext(ctx).ID {
		h.respondWithServiceError(w, service.ErrPermissionDenied)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(q, ""))
}

// Dashboard handles GET /dashboard
func (h *QuestionHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	dash, err := h.questions.GetDashboard(ctx, userFromContext(ctx).ID)
	if err != nil {
		h.respondWithServiceError(w, err)
		return
	}
	h.respondWithJSON(w, http.StatusOK, successResponse(dash, ""))
}
