package service

import (
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"qa-service/internal/config"
	"qa-service/internal/hashing"
	"qa-service/internal/llm"
	"qa-service/internal/repository"
)

// Stores bundles the storage backends the services run on.
type Stores struct {
	OTPs      repository.OTPStore
	Users     repository.UserRepository
	Questions repository.QuestionRepository
	Sessions  repository.SessionStore
}

// ServiceFactory creates and manages service instances
type ServiceFactory struct {
	cfg         *config.Config
	stores      Stores
	hasher      *hashing.Hasher
	categorizer llm.Categorizer
	generator   llm.AnswerGenerator
	questionOpt QuestionOptions
	clock       clockwork.Clock
	logger      *zap.Logger

	authService     *AuthService
	questionService *QuestionService
	sessionService  *SessionService
}

// NewServiceFactory creates a new service factory. opts carries the optional
// side channels; thresholds and seeding flags are filled in from cfg.
func NewServiceFactory(
	cfg *config.Config,
	stores Stores,
	hasher *hashing.Hasher,
	categorizer llm.Categorizer,
	generator llm.AnswerGenerator,
	opts QuestionOptions,
	clk clockwork.Clock,
	logger *zap.Logger,
) *ServiceFactory {
	opts.MinConfidence = cfg.MinConfidenceForProvider()
	opts.Provider = cfg.LLM.Provider
	opts.SeedSampleQuestions = cfg.Questions.SeedSampleQuestions
	opts.AnalysisTimeout = cfg.LLM.AnalysisTimeout

	return &ServiceFactory{
		cfg:         cfg,
		stores:      stores,
		hasher:      hasher,
		categorizer: categorizer,
		generator:   generator,
		questionOpt: opts,
		clock:       clk,
		logger:      logger,
	}
}

// AuthService returns the auth service instance (singleton)
func (f *ServiceFactory) AuthService() *AuthService {
	if f.authService == nil {
		f.authService = NewAuthService(
			f.stores.OTPs,
			f.stores.Users,
			f.hasher,
			NewLogOTPSender(f.logger),
			f.clock,
			f.logger,
			f.cfg.OTP.TTL,
		)
	}
	return f.authService
}

// QuestionService returns the question service instance (singleton)
func (f *ServiceFactory) QuestionService() *QuestionService {
	if f.questionService == nil {
		f.questionService = NewQuestionService(
			f.stores.Questions,
			f.categorizer,
			f.generator,
			f.clock,
			f.logger,
			f.questionOpt,
		)
	}
	return f.questionService
}

func (f *ServiceFactory) SessionService() *SessionService {
	if f.sessionService == nil {
		f.sessionService = NewSessionService(f.stores.Sessions, f.cfg.Session.TTL)
	}
	return f.sessionService
}
