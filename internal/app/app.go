// Package app wires configuration into a running pipeline. Both the HTTP
// server and the command line tool build their services through it.
package app

import (
	"fmt"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"aforo/internal/classifier"
	"aforo/internal/config"
	"aforo/internal/consolidate"
	emailnoop "aforo/internal/email/noop"
	"aforo/internal/email/ses"
	eventsnats "aforo/internal/events/nats"
	eventsnoop "aforo/internal/events/noop"
	"aforo/internal/extract"
	"aforo/internal/finance"
	"aforo/internal/handler"
	"aforo/internal/observability/metrics"
	"aforo/internal/parser"
	"aforo/internal/parser/claude"
	"aforo/internal/parser/gemini"
	"aforo/internal/parser/openai"
	"aforo/internal/port"
	repomemory "aforo/internal/repository/memory"
	"aforo/internal/repository/postgres"
	"aforo/internal/resilience"
	"aforo/internal/service"
	storagememory "aforo/internal/storage/memory"
	s3storage "aforo/internal/storage/s3"
	"aforo/internal/translate"
	"aforo/internal/validator"
)

// App holds the wired pipeline and the resources that need closing.
type App struct {
	Pipeline *service.Pipeline
	Metrics  *metrics.Metrics
	// DB is nil with the memory driver.
	DB      *sqlx.DB
	storage port.ObjectStorage
	events  port.EventPublisher
}

var registerOnce sync.Once

// RegisterParsers makes the built-in model providers available to parser.NewChain.
func RegisterParsers() {
	registerOnce.Do(func() {
		parser.RegisterProvider("claude", func(cfg *config.ParserProviderConfig) (port.DocumentParser, error) {
			return claude.NewParser(cfg), nil
		})
		parser.RegisterProvider("gemini", func(cfg *config.ParserProviderConfig) (port.DocumentParser, error) {
			return gemini.NewParser(cfg), nil
		})
		parser.RegisterProvider("openai", func(cfg *config.ParserProviderConfig) (port.DocumentParser, error) {
			return openai.NewParser(cfg), nil
		})
	})
}

// New builds every collaborator named by cfg. docParser overrides the
// configured model chain when non-nil.
func New(cfg *config.Config, docParser port.DocumentParser) (*App, error) {
	a := &App{Metrics: metrics.New("aforo")}

	deps := service.Dependencies{Metrics: a.Metrics}
	if err := a.wireStores(cfg, &deps); err != nil {
		return nil, err
	}

	storage, err := newStorage(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.storage = storage
	deps.Storage = storage

	if docParser == nil {
		RegisterParsers()
		docParser, err = parser.NewChain(&cfg.Parser)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("building parser chain: %w", err)
		}
	}
	guard := resilience.NewExecutor(resilienceConfig(cfg))

	vocab, err := translate.LoadVocabulary(cfg.Vocabulary.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("loading vocabulary: %w", err)
	}

	deps.Classifier = classifier.New(cfg.Pipeline.ClassifierThreshold)
	deps.Extractor = extract.NewExtractor(docParser, guard, cfg.Pipeline.TextModeMinChars)
	deps.Consolidator = consolidate.NewEngine(cfg.Consolidate.WeightTolerance)
	deps.Finance = finance.NewEngine(cfg.Finance.WeightCoverageThreshold, cfg.Finance.DefaultInsuranceRate)
	deps.Translator = translate.NewTranslator(vocab)
	deps.Catalog = vocab.Entries()

	deps.Email, err = newEmailSender(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.events, err = newEventPublisher(cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	deps.Events = a.events

	a.Pipeline = service.NewPipeline(deps, service.Config{
		Bucket:        cfg.S3.Bucket,
		Concurrency:   cfg.Pipeline.Concurrency,
		MaxFileSize:   cfg.S3.MaxFileSizeMB * 1024 * 1024,
		PresignExpiry: cfg.S3.PresignExpiry,
		Thresholds: validator.Thresholds{
			Green:  cfg.Pipeline.BandGreen,
			Yellow: cfg.Pipeline.BandYellow,
		},
		ReviewerEmails: cfg.Email.ReviewerEmails,
		FrontendURL:    cfg.Email.FrontendURL,
	})
	return a, nil
}

// ReadinessChecks returns the backends /readyz pings, keyed by name.
func (a *App) ReadinessChecks() map[string]handler.Pinger {
	checks := make(map[string]handler.Pinger)
	if a.DB != nil {
		checks["database"] = a.DB
	}
	if p, ok := a.storage.(handler.Pinger); ok {
		checks["storage"] = p
	}
	return checks
}

// Close releases the database and the event connection.
func (a *App) Close() {
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			zap.L().Warn("app: closing event publisher", zap.Error(err))
		}
	}
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			zap.L().Warn("app: closing database", zap.Error(err))
		}
	}
}

func (a *App) wireStores(cfg *config.Config, deps *service.Dependencies) error {
	switch cfg.Store.Driver {
	case "postgres":
		db, err := postgres.NewDB(&cfg.DB)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		a.DB = db
		deps.Batches = postgres.NewBatchRepo(db)
		deps.Documents = postgres.NewDocumentRepo(db)
		deps.Records = postgres.NewRecordRepo(db)
	case "memory", "":
		deps.Batches = repomemory.NewBatchRepo()
		deps.Documents = repomemory.NewDocumentRepo()
		deps.Records = repomemory.NewRecordRepo()
	default:
		return fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
	zap.L().Info("app: stores ready", zap.String("driver", cfg.Store.Driver))
	return nil
}

func newStorage(cfg *config.Config) (port.ObjectStorage, error) {
	switch cfg.Store.Storage {
	case "s3":
		store, err := s3storage.NewStore(&cfg.S3)
		if err != nil {
			return nil, fmt.Errorf("initializing S3 store: %w", err)
		}
		return store, nil
	case "memory", "":
		return storagememory.NewStore(), nil
	default:
		return nil, fmt.Errorf("unknown object storage %q", cfg.Store.Storage)
	}
}

func newEmailSender(cfg *config.Config) (port.EmailSender, error) {
	switch cfg.Email.Provider {
	case "ses":
		sender, err := ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName)
		if err != nil {
			return nil, fmt.Errorf("initializing SES sender: %w", err)
		}
		return sender, nil
	case "noop", "":
		return emailnoop.NewNoopSender(), nil
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

func newEventPublisher(cfg *config.Config) (port.EventPublisher, error) {
	switch cfg.Events.Provider {
	case "nats":
		// publishing gets its own breaker, separate from model calls
		executor := resilience.NewExecutor(resilience.Config{
			RetryMaxAttempts: 2,
			BreakerEnabled:   true,
		})
		pub, err := eventsnats.NewPublisher(cfg.Events.NATSURL, cfg.Events.SubjectPrefix, eventsnats.Options{
			Executor: executor,
		})
		if err != nil {
			return nil, fmt.Errorf("connecting to NATS: %w", err)
		}
		return pub, nil
	case "noop", "":
		return eventsnoop.NewPublisher(), nil
	default:
		return nil, fmt.Errorf("unknown events provider %q", cfg.Events.Provider)
	}
}

func resilienceConfig(cfg *config.Config) resilience.Config {
	r := cfg.Resilience
	return resilience.Config{
		RateLimit:               cfg.Pipeline.ModelRateLimit,
		RateBurst:               cfg.Pipeline.ModelRateBurst,
		RetryMaxAttempts:        r.RetryMaxAttempts,
		RetryInitialBackoff:     r.RetryInitialBackoff,
		RetryMaxBackoff:         r.RetryMaxBackoff,
		RetryMultiplier:         r.RetryMultiplier,
		BreakerEnabled:          r.BreakerEnabled,
		BreakerMinRequests:      r.BreakerMinRequests,
		BreakerFailureRatio:     r.BreakerFailureRatio,
		BreakerOpenTimeout:      r.BreakerOpenTimeout,
		BreakerHalfOpenMaxCalls: r.BreakerHalfOpenMaxCalls,
	}
}
