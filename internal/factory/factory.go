package factory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"qa-service/internal/analytics"
	"qa-service/internal/bucketing"
	"qa-service/internal/client"
	"qa-service/internal/config"
	"qa-service/internal/encryption"
	"qa-service/internal/events"
	"qa-service/internal/handler"
	"qa-service/internal/hashing"
	"qa-service/internal/llm"
	"qa-service/internal/repository/memory"
	"qa-service/internal/repository/redis"
	"qa-service/internal/repository/scylla"
	"qa-service/internal/scheduler"
	"qa-service/internal/search"
	"qa-service/internal/service"
	"qa-service/internal/tls"
	"qa-service/internal/util"
)

const (
	healthCheckTimeout  = 5 * time.Second
	rateLimitPruneEvery = 5 * time.Minute
	rateLimitIdle       = 10 * time.Minute
)

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

// Factory manages the lifecycle of all application dependencies
type Factory struct {
	config     *config.Config
	clock      clockwork.Clock
	logger     *zap.Logger
	tlsManager *tls.TLSManager

	// Clients, nil unless the matching backend is configured
	redisClient      *client.RedisClient
	scyllaClient     *scylla.ScyllaClient
	kafkaProducer    *client.KafkaProducer
	esClient         *client.ESClient
	clickhouseClient *client.ClickHouseClient

	hasher            *hashing.Hasher
	encryptionManager *encryption.EncryptionManager
	bucketingManager  *bucketing.BucketingManager

	stores         service.Stores
	questionOpts   service.QuestionOptions
	serviceFactory *service.ServiceFactory
	otpLimiter     *handler.IPRateLimiter
	checks         []healthCheck

	closeOnce sync.Once
}

// NewFactory wires every dependency described by cfg. Optional side channels
// (Kafka, Elasticsearch, ClickHouse) that fail to connect are logged and
// skipped; the primary stores must come up.
func NewFactory(ctx context.Context, cfg *config.Config, clk clockwork.Clock) (*Factory, error) {
	logger := util.Init(cfg.Environment, cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	f := &Factory{
		config: cfg,
		clock:  clk,
		logger: logger,
	}

	if cfg.Server.EnableTLS {
		f.tlsManager = tls.NewTLSManager(cfg.Server)
	}

	hasher, err := hashing.NewHasher(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create hasher: %w", err)
	}
	f.hasher = hasher

	if err := f.initializeStores(ctx); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to initialize stores: %w", err)
	}
	f.initializeSideChannels(ctx)

	categorizer, generator := f.initializeLLM()
	f.serviceFactory = service.NewServiceFactory(cfg, f.stores, f.hasher, categorizer, generator, f.questionOpts, clk, logger)
	f.otpLimiter = handler.NewIPRateLimiter(cfg.OTP.RequestsPerMin, clk)

	util.Info("Factory initialized successfully",
		util.String("environment", cfg.Environment),
		util.String("storage", cfg.Storage.Backend),
		util.String("llm_provider", cfg.LLM.Provider),
		util.Bool("tls_enabled", cfg.Server.EnableTLS),
	)
	return f, nil
}

func (f *Factory) initializeStores(ctx context.Context) error {
	if !f.config.UsesRemoteStorage() {
		users := memory.NewUserRepository()
		questions := memory.NewQuestionRepository()
		f.stores = service.Stores{
			OTPs:      memory.NewOTPStore(),
			Users:     users,
			Questions: questions,
			Sessions:  memory.NewSessionStore(f.clock),
		}
		// The in-memory store doubles as the search index.
		f.questionOpts.Index = questions
		f.checks = append(f.checks,
			healthCheck{"users", users.HealthCheck},
			healthCheck{"questions", questions.HealthCheck},
		)
		return nil
	}

	if err := f.initializeManagers(ctx); err != nil {
		return err
	}

	redisClient, err := client.NewRedisClient(f.config)
	if err != nil {
		return fmt.Errorf("failed to create Redis client: %w", err)
	}
	f.redisClient = redisClient

	scyllaClient, err := scylla.NewScyllaClient(f.config)
	if err != nil {
		return fmt.Errorf("failed to create ScyllaDB client: %w", err)
	}
	f.scyllaClient = scyllaClient

	if f.config.Scylla.AutoMigrate {
		if err := scyllaClient.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("failed to migrate ScyllaDB schema: %w", err)
		}
	}

	f.stores = service.Stores{
		OTPs:      redis.NewOTPCache(redisClient),
		Users:     scylla.NewUserRepository(scyllaClient, f.hasher, f.encryptionManager, f.bucketingManager),
		Questions: scylla.NewQuestionRepository(scyllaClient),
		Sessions:  redis.NewSessionCache(redisClient),
	}
	f.checks = append(f.checks,
		healthCheck{"redis", redisClient.HealthCheck},
		healthCheck{"scylla", scyllaClient.HealthCheck},
	)
	return nil
}

// initializeManagers sets up the encryption and bucketing managers used by
// the durable user store.
func (f *Factory) initializeManagers(ctx context.Context) error {
	var kmsClient encryption.KMSAPI
	if f.config.KMS.Enabled {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(f.config.KMS.Region))
		if err != nil {
			return fmt.Errorf("failed to load AWS config: %w", err)
		}
		kmsClient = kms.NewFromConfig(awsCfg)
	}

	em, err := encryption.NewEncryptionManager(f.config, kmsClient)
	if err != nil {
		return fmt.Errorf("failed to create encryption manager: %w", err)
	}
	f.encryptionManager = em
	f.bucketingManager = bucketing.NewBucketingManager(f.config)

	util.Info("Managers initialized",
		util.Bool("kms_enabled", f.config.KMS.Enabled),
		util.Int("user_buckets", f.bucketingManager.GetUserBuckets()),
	)
	return nil
}

func (f *Factory) initializeSideChannels(ctx context.Context) {
	cfg := f.config

	if cfg.Kafka.Enabled {
		producer, err := client.NewKafkaProducer(cfg)
		if err != nil {
			util.Warn("Kafka unavailable, question events disabled", util.ErrorField(err))
		} else {
			f.kafkaProducer = producer
			f.questionOpts.Events = events.NewKafkaPublisher(producer, cfg.Kafka.EventTopic)
			f.checks = append(f.checks, healthCheck{"kafka", producer.HealthCheck})
		}
	}

	if cfg.Elasticsearch.Enabled {
		es, err := client.NewElasticsearchClient(cfg)
		if err != nil {
			util.Warn("Elasticsearch unavailable, using store search", util.ErrorField(err))
		} else {
			index := search.NewESIndex(es, cfg.Elasticsearch.QuestionIndex)
			if err := index.EnsureIndex(ctx); err != nil {
				util.Warn("Failed to create question index", util.ErrorField(err))
			} else {
				f.esClient = es
				f.questionOpts.Index = index
				f.checks = append(f.checks, healthCheck{"elasticsearch", es.HealthCheck})
			}
		}
	}

	if cfg.Clickhouse.Enabled {
		ch, err := client.NewClickHouseClient(cfg)
		if err != nil {
			util.Warn("ClickHouse unavailable, analysis records disabled", util.ErrorField(err))
			return
		}
		recorder := analytics.NewClickHouseRecorder(ch)
		if err := recorder.EnsureTable(ctx); err != nil {
			util.Warn("Failed to create analysis table", util.ErrorField(err))
			ch.Close()
			return
		}
		f.clickhouseClient = ch
		f.questionOpts.Recorder = recorder
		f.checks = append(f.checks, healthCheck{"clickhouse", ch.HealthCheck})
	}
}

func (f *Factory) initializeLLM() (llm.Categorizer, llm.AnswerGenerator) {
	if f.config.LLM.Provider == config.LLMProviderGemini {
		if f.config.LLM.APIKey == "" {
			util.Warn("Gemini selected without an API key; requests will fail")
		}
		gemini := llm.NewGeminiClient(llm.GeminiOptionsFromConfig(f.config), nil, f.clock, f.logger)
		return gemini, gemini
	}
	mock := llm.NewMockLLM()
	return mock, mock
}

// Router builds the HTTP handler tree.
func (f *Factory) Router() chi.Router {
	validate := validator.New()
	services := f.serviceFactory

	authHandler := handler.NewAuthHandler(
		services.AuthService(),
		services.SessionService(),
		services.QuestionService(),
		validate,
		f.logger,
		handler.AuthHandlerOptions{
			Limiter: f.otpLimiter,
			OTPTTL:  f.config.OTP.TTL,
			EchoOTP: f.config.OTP.EchoCode,
		},
	)
	questionHandler := handler.NewQuestionHandler(
		services.QuestionService(),
		services.SessionService(),
		validate,
		f.logger,
	)

	return handler.NewRouter(handler.RouterOptions{
		AllowedOrigins: f.config.Server.AllowedOrigins,
		RequireTLS:     f.config.Server.EnableTLS && f.config.IsProduction(),
		RequestTimeout: f.config.Server.WriteTimeout,
	}, authHandler, questionHandler, f, f.logger)
}

// ScheduledTasks returns the background jobs the server runs.
func (f *Factory) ScheduledTasks() []scheduler.Task {
	auth := f.serviceFactory.AuthService()
	questions := f.serviceFactory.QuestionService()
	retention := f.config.Questions.Retention

	tasks := []scheduler.Task{
		{
			Name:     "otp-sweep",
			Interval: f.config.OTP.SweepInterval,
			Run:      auth.SweepExpiredOTPs,
		},
		{
			Name:     "rate-limit-prune",
			Interval: rateLimitPruneEvery,
			Run: func(ctx context.Context) error {
				f.otpLimiter.Prune(rateLimitIdle)
				return nil
			},
		},
	}
	if retention > 0 {
		tasks = append(tasks, scheduler.Task{
			Name:     "question-retention",
			Interval: f.config.Questions.RetentionInterval,
			Run: func(ctx context.Context) error {
				removed, err := questions.CleanupOldQuestions(ctx, retention)
				if removed > 0 {
					util.Info("Removed old questions", util.Int("count", removed))
				}
				return err
			},
		})
	}
	return tasks
}

// HealthReport runs every registered check concurrently. A nil entry means
// the dependency is healthy.
func (f *Factory) HealthReport(ctx context.Context) map[string]error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	results := make([]error, len(f.checks))
	var g errgroup.Group
	for i, c := range f.checks {
		g.Go(func() error {
			results[i] = c.check(ctx)
			return nil
		})
	}
	g.Wait()

	report := make(map[string]error, len(f.checks))
	for i, c := range f.checks {
		report[c.name] = results[i]
	}
	return report
}

func (f *Factory) HealthCheck(ctx context.Context) error {
	report := f.HealthReport(ctx)
	names := make([]string, 0, len(report))
	for name := range report {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		if err := report[name]; err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	return errors.Join(errs...)
}

// Close releases clients in reverse order of creation. Safe to call twice.
func (f *Factory) Close() error {
	var errs []error
	f.closeOnce.Do(func() {
		if f.clickhouseClient != nil {
			if err := f.clickhouseClient.Close(); err != nil {
				errs = append(errs, fmt.Errorf("clickhouse: %w", err))
			}
		}
		if f.kafkaProducer != nil {
			if err := f.kafkaProducer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("kafka: %w", err))
			}
		}
		if f.scyllaClient != nil {
			f.scyllaClient.Close()
		}
		if f.redisClient != nil {
			if err := f.redisClient.Close(); err != nil {
				errs = append(errs, fmt.Errorf("redis: %w", err))
			}
		}
		if f.encryptionManager != nil {
			f.encryptionManager.ClearCache()
		}
		util.Info("Factory closed")
	})
	return errors.Join(errs...)
}

func (f *Factory) Config() *config.Config {
	return f.config
}

func (f *Factory) Logger() *zap.Logger {
	return f.logger
}

func (f *Factory) Clock() clockwork.Clock {
	return f.clock
}

func (f *Factory) TLSManager() *tls.TLSManager {
	return f.tlsManager
}
