package bootstrap

import (
	"context"
	"fmt"
	"time"

	"invoice-agent/internal/ai"
	"invoice-agent/internal/app"
	"invoice-agent/internal/config"
	"invoice-agent/internal/core"
	"invoice-agent/internal/db"
	"invoice-agent/internal/events"
	"invoice-agent/internal/intent"
	"invoice-agent/internal/jobs"
	"invoice-agent/internal/memory"
	"invoice-agent/internal/metrics"
	"invoice-agent/internal/resilience"
	"invoice-agent/internal/store"
	"invoice-agent/internal/tools"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// App holds the wired components shared by the server and the CLI.
type App struct {
	Config    config.Config
	Service   app.ApplicationService
	Scheduler *jobs.Scheduler
	Metrics   *metrics.Metrics
	Logger    *zap.Logger

	closeFn func()
}

// Overrides replaces individual components, mainly for tests.
type Overrides struct {
	Model   ai.ModelClient
	Gateway core.Gateway
	Memory  memory.Store
	Events  events.Publisher
	Now     func() time.Time
}

// New wires every component from cfg. Without DATABASE_URL the gateway and
// conversation memory are kept in process.
func New(ctx context.Context, cfg config.Config, log *zap.Logger, ov Overrides) (*App, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	var (
		pool    *pgxpool.Pool
		closers []func()
	)
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	if cfg.DatabaseURL != "" && (ov.Gateway == nil || (ov.Memory == nil && cfg.MemoryBackend == config.MemoryBackendPostgres)) {
		if cfg.RunMigrations {
			if err := db.Migrate(cfg.DatabaseURL, log); err != nil {
				return nil, fmt.Errorf("migrate: %w", err)
			}
		}
		p, err := db.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		pool = p
		closers = append(closers, pool.Close)
	}

	gw := ov.Gateway
	if gw == nil {
		if pool != nil {
			gw = store.NewPostgres(pool)
		} else {
			gw = store.NewMemory()
		}
	}

	mem := ov.Memory
	if mem == nil {
		if cfg.MemoryBackend == config.MemoryBackendPostgres {
			if pool == nil {
				cleanup()
				return nil, fmt.Errorf("memory backend %q requires DATABASE_URL", cfg.MemoryBackend)
			}
			mem = memory.NewPostgres(pool, cfg.MemoryTTL, ov.Now)
		} else {
			mem = memory.NewInProcess(cfg.MemoryTTL, ov.Now)
		}
	}

	execCfg := resilience.DefaultConfig()
	if cfg.ModelCallTimeout > 0 {
		execCfg.AttemptTimeout = cfg.ModelCallTimeout
	}
	if cfg.ModelMaxAttempts > 0 {
		execCfg.MaxAttempts = cfg.ModelMaxAttempts
	}
	exec := resilience.NewExecutor(execCfg, log)

	pub := ov.Events
	if pub == nil {
		if cfg.NATSURL != "" {
			nats, err := events.NewNATSPublisher(cfg.NATSURL, events.NATSOptions{
				SubjectPrefix: cfg.NATSSubjectPrefix,
				Executor:      resilience.NewExecutor(resilience.DefaultConfig(), log),
			}, log)
			if err != nil {
				cleanup()
				return nil, err
			}
			pub = nats
		} else {
			pub = events.Nop{}
		}
	}
	closers = append(closers, pub.Close)

	model := ov.Model
	if model == nil {
		if cfg.OpenAIAPIKey == "" {
			log.Warn("OPENAI_API_KEY is not set; model calls will fail and classification falls back to rules")
		}
		model = ai.NewOpenAIClient(ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, BaseURL: cfg.OpenAIBaseURL}, log)
	}

	m := metrics.New()
	engine := tools.NewEngine(gw, mem, pub, tools.Config{FreeTierLimit: cfg.FreeTierLimit, Now: ov.Now}, log)
	loop := app.NewLoop(model, engine, exec, m, app.LoopConfig{MaxSteps: cfg.AgentMaxSteps, Budget: cfg.AgentBudget}, log)

	svc := app.NewAppService(app.Deps{
		Gateway:    gw,
		Memory:     mem,
		Classifier: intent.NewClassifier(model, cfg.ClassifierModel, exec, log),
		Engine:     engine,
		Loop:       loop,
		Builder:    app.NewContextBuilder(gw, mem, cfg.FreeTierLimit, cfg.HistoryTurns, log),
		Models:     intent.Models{Budget: cfg.ModelBudget, Mid: cfg.ModelMid, Premium: cfg.ModelPremium},
		Metrics:    m,
		Logger:     log,
		Now:        ov.Now,
	})

	sched := jobs.NewScheduler(svc, m, log)
	if err := sched.Register(cfg.OverdueSweepCron); err != nil {
		cleanup()
		return nil, err
	}

	log.Info("application wired",
		zap.Bool("postgres", pool != nil),
		zap.String("memory_backend", cfg.MemoryBackend),
		zap.Bool("nats", cfg.NATSURL != ""),
	)

	return &App{
		Config:    cfg,
		Service:   svc,
		Scheduler: sched,
		Metrics:   m,
		Logger:    log,
		closeFn:   cleanup,
	}, nil
}

// Close releases the database pool and the event publisher.
func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
