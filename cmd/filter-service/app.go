package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"notifilter/internal/audit"
	"notifilter/internal/broker"
	"notifilter/internal/config"
	"notifilter/internal/config_handler"
	"notifilter/internal/constants"
	"notifilter/internal/engine"
	"notifilter/internal/idempotency"
	"notifilter/internal/logger"
	"notifilter/internal/management"
	"notifilter/internal/noise"
	"notifilter/internal/rules"
	"notifilter/pkg/bootstrap"
	"notifilter/pkg/health"
	"notifilter/pkg/logging"
	"notifilter/pkg/metrics"
	"notifilter/pkg/middleware"
	"notifilter/pkg/ratelimit"
	"notifilter/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	engine         *engine.Engine
	store          *rules.CircuitBreakerRepository
	fileRepo       *rules.FileRepository
	guard          *idempotency.Guard
	limiter        *ratelimit.Limiter
	configConsumer broker.Consumer
	tracerProvider *tracing.TracerProvider
	server         *http.Server
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	if sugaredLogger, ok := log.(*logger.SugaredLogger); ok {
		sugaredLogger.SetServiceName(constants.ServiceName)
	}
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	metrics.RegisterAll()

	if err := a.initDatabases(ctx); err != nil {
		return fmt.Errorf("failed to initialize databases: %w", err)
	}

	if a.brokerEnabled() {
		if err := a.InitBroker(constants.ServiceName); err != nil {
			return fmt.Errorf("failed to initialize broker: %w", err)
		}
	}

	if err := a.initEngine(); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}

	if err := a.initRules(ctx); err != nil {
		return fmt.Errorf("failed to initialize rules: %w", err)
	}

	a.initIdempotency()

	if err := a.initHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}

	return nil
}

func (a *App) brokerEnabled() bool {
	return a.Config.Broker.Type != "" && a.Config.Broker.Type != "none"
}

func (a *App) initDatabases(ctx context.Context) error {
	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb
	return nil
}

func (a *App) initEngine() error {
	sinks := []engine.Sink{audit.NewLoggerSink(a.Logger)}
	if a.Producer != nil && a.Config.Broker.Kafka.DecisionTopic != "" {
		sinks = append(sinks, audit.NewKafkaSink(a.Producer, a.Config.Broker.Kafka.DecisionTopic, a.Logger))
	}

	eng, err := engine.New(engineOptions(a.Config.Engine, a.Logger, sinks...)...)
	if err != nil {
		return err
	}
	a.engine = eng
	return nil
}

func engineOptions(cfg config.EngineConfig, log logger.Logger, sinks ...engine.Sink) []engine.Option {
	opts := []engine.Option{
		engine.WithLogger(log),
		engine.WithNoiseOptions(
			noise.WithWindow(cfg.Noise.Window),
			noise.WithThreshold(cfg.Noise.Threshold),
			noise.WithBotMarkers(cfg.Noise.BotMarkers),
		),
	}
	if len(sinks) > 0 {
		opts = append(opts, engine.WithSinks(sinks...))
	}
	if !cfg.Rules.SeedDefaults {
		opts = append(opts, engine.WithoutSeedRules())
	}
	return opts
}

// initRules loads the rule set from Postgres when configured, otherwise from
// the rule file. A broken rule file stops startup; an unreachable database
// only leaves the seed rules active until the next reload.
func (a *App) initRules(ctx context.Context) error {
	initCtx := logging.WithServiceName(ctx, constants.ServiceName)

	if a.db != nil {
		repo := rules.NewRepository(a.db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		a.store = rules.NewCircuitBreakerRepository(repo, a.Config.CircuitBreaker)
		if err := a.engine.ReloadRules(ctx, a.store); err != nil {
			a.Logger.WarnwCtx(initCtx, "Failed to load initial rules", "error", err)
		}
		return nil
	}

	if path := a.Config.Engine.Rules.File; path != "" {
		a.fileRepo = rules.NewFileRepository(path)
		return a.engine.ReloadRules(ctx, a.fileRepo)
	}

	a.Logger.InfowCtx(initCtx, "No rule source configured, using seed rules only")
	return nil
}

func (a *App) initIdempotency() {
	if !a.Config.Idempotency.Enabled || a.redis == nil {
		return
	}
	repo := idempotency.NewCircuitBreakerRepository(idempotency.NewRedisRepository(a.redis), a.Config.CircuitBreaker)
	ttl := time.Duration(a.Config.Idempotency.TTLSeconds) * time.Second
	a.guard = idempotency.NewGuard(repo, ttl, a.Logger)
}

func (a *App) initHTTPServer() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(tracing.GinMiddleware(constants.ServiceName))
	router.Use(middleware.Recovery(a.Logger))
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(a.Logger))

	if a.Config.Management.RateLimit.Enabled {
		a.limiter = ratelimit.NewLimiter(ratelimit.FromConfig(a.Config.Management.RateLimit))
		router.Use(a.limiter.Middleware())
	}

	healthRegistry := health.NewRegistry()
	if a.db != nil {
		healthRegistry.RegisterOptional(health.NewPostgreSQLChecker(a.db))
	}
	if a.redis != nil {
		healthRegistry.RegisterOptional(health.NewRedisChecker(a.redis))
	}
	healthRegistry.Register(health.NewCheckFunc("engine", func(context.Context) error {
		if a.engine == nil {
			return fmt.Errorf("engine not initialized")
		}
		return nil
	}))

	router.GET("/health", func(c *gin.Context) {
		h := healthRegistry.Check(c.Request.Context())
		status := http.StatusOK
		if h.Status == health.StatusUnhealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, h)
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	validator, err := management.NewRuleValidator()
	if err != nil {
		return err
	}
	opts := []management.ServiceOption{management.WithLogger(a.Logger)}
	if a.store != nil {
		opts = append(opts, management.WithStore(a.store))
		if a.Producer != nil {
			opts = append(opts, management.WithPublisher(
				config_handler.NewPublisher(a.Producer, a.Config.Broker.Kafka.ConfigUpdateTopic),
			))
		}
	}
	svc := management.NewService(a.engine, validator, opts...)
	management.NewHandler(svc, a.Logger).RegisterRoutes(router)

	a.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  a.Config.Server.ReadTimeoutSeconds,
		WriteTimeout: a.Config.Server.WriteTimeoutSeconds,
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		return a.server.Shutdown(shutdownCtx)
	})

	if a.limiter != nil {
		g.Go(func() error {
			a.limiter.Run(gCtx)
			return nil
		})
	}

	if a.Consumer != nil {
		p := newPipeline(a.engine, a.guard, a.Producer, a.Config.Broker.Kafka.OutputTopic, a.Logger)
		g.Go(func() error {
			return ignoreCanceled(a.Consumer.Consume(gCtx, a.Config.Broker.Kafka.InputTopic, p.handle))
		})
	}

	if a.store != nil {
		a.startStoreReload(g, gCtx)
	}

	if a.fileRepo != nil && a.Config.Engine.Rules.Watch {
		watcher := rules.NewWatcher(a.fileRepo.Path(), func(ctx context.Context) error {
			return a.engine.ReloadRules(ctx, a.fileRepo)
		}, a.Logger)
		g.Go(func() error {
			return ignoreCanceled(watcher.Run(gCtx))
		})
	}

	return g.Wait()
}

// startStoreReload keeps the rule set in sync with Postgres: immediately on
// config update events, and on a fixed interval as a fallback.
func (a *App) startStoreReload(g *errgroup.Group, ctx context.Context) {
	reload := config_handler.ReloadFunc(func(ctx context.Context) error {
		return a.engine.ReloadRules(ctx, a.store)
	})

	topic := a.Config.Broker.Kafka.ConfigUpdateTopic
	if a.brokerEnabled() && topic != "" {
		// every replica must see every update, so each gets its own group
		groupID := fmt.Sprintf("%s-config-%s", a.Config.Broker.Kafka.GroupID, uuid.New().String()[:8])
		consumer, err := a.NewConsumer(groupID, constants.ServiceName)
		if err != nil {
			a.Logger.WarnwCtx(ctx, "Failed to create config event consumer, event-driven reload disabled",
				"error", err,
			)
		} else {
			a.configConsumer = consumer
			handler := config_handler.NewHandler(reload, a.Logger)
			g.Go(func() error {
				a.Logger.InfowCtx(ctx, "Starting config update event consumer", "topic", topic, "group_id", groupID)
				return ignoreCanceled(consumer.Consume(ctx, topic, handler.Handle))
			})
		}
	}

	interval := constants.DefaultRuleReloadInterval
	if s := a.Config.Engine.Rules.ReloadIntervalSeconds; s > 0 {
		interval = time.Duration(s) * time.Second
	}
	g.Go(func() error {
		return ignoreCanceled(a.engine.StartReloader(ctx, a.store, interval))
	})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (a *App) Shutdown(ctx context.Context) error {
	additionalShutdown := func(ctx context.Context) []error {
		var errs []error

		if a.configConsumer != nil {
			if err := a.configConsumer.Close(); err != nil {
				errs = append(errs, fmt.Errorf("config consumer close error: %w", err))
			}
		}

		if a.tracerProvider != nil {
			if err := a.tracerProvider.Shutdown(ctx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		return append(errs, a.dbConnector.ShutdownDatabases(a.redis, a.db)...)
	}

	return a.Base.Shutdown(ctx, additionalShutdown)
}
