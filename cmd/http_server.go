package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/frahmantamala/payment-gateway/internal"
	"github.com/frahmantamala/payment-gateway/internal/auth"
	"github.com/frahmantamala/payment-gateway/internal/bank"
	"github.com/frahmantamala/payment-gateway/internal/core/events"
	"github.com/frahmantamala/payment-gateway/internal/idempotency"
	"github.com/frahmantamala/payment-gateway/internal/idempotency/redisstore"
	"github.com/frahmantamala/payment-gateway/internal/idempotency/sqlstore"
	"github.com/frahmantamala/payment-gateway/internal/observability"
	"github.com/frahmantamala/payment-gateway/internal/payment"
	"github.com/frahmantamala/payment-gateway/internal/payment/postgres"
	"github.com/frahmantamala/payment-gateway/internal/transport/rest"
	"github.com/frahmantamala/payment-gateway/pkg/logger"
)

var httpServerCmd = &cobra.Command{
	Use:   "server",
	Short: "Start HTTP server",
	Long:  `Start the HTTP server that accepts and records card payments`,
	Run: func(cmd *cobra.Command, args []string) {
		startHTTPServer()
	},
}

type Dependencies struct {
	Config         *internal.Config
	DB             *gorm.DB
	SQLX           *sqlx.DB
	Redis          *redis.Client
	EventBus       *events.EventBus
	Metrics        *observability.Metrics
	Router         *chi.Mux
	HealthChecker  *rest.HealthHandler
	Logger         *slog.Logger
	ShutdownTracer func(context.Context) error
}

func startHTTPServer() {
	ctx := context.Background()

	deps, err := initializeDependencies(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize dependencies: %v\n", err)
		os.Exit(1)
	}

	if err := setupRoutes(deps); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to set up routes: %v\n", err)
		os.Exit(1)
	}

	addr := fmt.Sprintf(":%d", deps.Config.Server.Port)
	deps.Logger.Info("Starting HTTP server", "address", addr, "env", deps.Config.Server.Env)

	server := &http.Server{
		Addr:              addr,
		Handler:           deps.Router,
		ReadHeaderTimeout: deps.Config.Server.ReadHeaderTimeout,
		ReadTimeout:       deps.Config.Server.ReadTimeout,
		WriteTimeout:      deps.Config.Server.WriteTimeout,
		IdleTimeout:       deps.Config.Server.IdleTimeout,
	}

	// Signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- server.ListenAndServe()
	}()

	select {
	case sig := <-sigChan:
		deps.Logger.Info("Received signal, shutting down...", "signal", sig)
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			deps.Logger.Error("Server shutdown error", "error", err)
		}
		deps.close(ctx)
	case err := <-serverErrChan:
		if err != nil && err != http.ErrServerClosed {
			deps.Logger.Error("Server failed to start", "error", err)
			os.Exit(1)
		}
	}

	deps.Logger.Info("Server stopped")
}

// close releases resources in reverse order of acquisition.
func (d *Dependencies) close(ctx context.Context) {
	d.EventBus.Wait()

	if d.ShutdownTracer != nil {
		if err := d.ShutdownTracer(ctx); err != nil {
			d.Logger.Error("Tracer shutdown error", "error", err)
		}
	}
	if d.Redis != nil {
		if err := d.Redis.Close(); err != nil {
			d.Logger.Error("Redis close error", "error", err)
		}
	}
	if err := d.SQLX.Close(); err != nil {
		d.Logger.Error("Database close error", "error", err)
	}
}

func setupRoutes(deps *Dependencies) error {
	cfg := deps.Config

	store, err := newIdempotencyStore(deps)
	if err != nil {
		return err
	}
	guard := idempotency.NewGuard(store, idempotency.Config{
		LockTTL:      cfg.Idempotency.LockTTL,
		RecordTTL:    cfg.Idempotency.RecordTTL,
		WaitTimeout:  cfg.Idempotency.WaitTimeout,
		PollInterval: cfg.Idempotency.PollInterval,
	}, deps.Logger)

	bankClient := bank.NewClient(bank.Config{
		BaseURL:     cfg.Bank.BaseURL,
		PaymentPath: cfg.Bank.PaymentPath,
		Timeout:     cfg.Bank.Timeout,
	}, bank.NewHTTPClient(cfg.Bank.Timeout), deps.Logger)

	routerDeps := rest.RouterDeps{
		Health: deps.HealthChecker,
		Logger: deps.Logger,
	}

	if deps.Metrics != nil {
		bankClient = bankClient.WithRecorder(deps.Metrics)
		deps.Metrics.RegisterEventHandlers(deps.EventBus)
		routerDeps.Metrics = deps.Metrics.Handler()
		routerDeps.MetricsPath = cfg.Observability.Metrics.Path
		routerDeps.HTTPObserver = deps.Metrics
	}

	if cfg.Observability.Tracing.Enabled {
		routerDeps.Tracing = observability.NewTracingMiddleware(cfg.Observability.Tracing.ServiceName)
	}

	repository := postgres.NewTransactionRepository(deps.DB)
	validator := payment.NewRequestValidator(nil)
	paymentService := payment.NewService(repository, validator, bankClient, guard, deps.EventBus, deps.Logger)
	routerDeps.PaymentHandler = payment.NewHandler(paymentService, deps.Logger)

	if cfg.Security.MerchantAuthEnabled {
		authService := auth.NewService(auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.TokenDuration))
		routerDeps.AuthMiddleware = auth.NewHandler(authService, deps.Logger).AuthMiddleware
	}

	// Register health endpoint and other routes
	rest.RegisterAllRoutes(deps.Router, routerDeps)
	return nil
}

func newIdempotencyStore(deps *Dependencies) (idempotency.Store, error) {
	switch deps.Config.Idempotency.Backend {
	case "redis":
		if deps.Redis == nil {
			return nil, fmt.Errorf("redis backend selected but no redis client")
		}
		store := redisstore.New(deps.Redis, deps.Config.Idempotency.KeyPrefix)
		deps.HealthChecker.WithChecker("redis", store)
		return store, nil
	case "database":
		return sqlstore.New(deps.SQLX), nil
	default:
		return idempotency.NewMemoryStore(), nil
	}
}

func initializeDependencies(ctx context.Context) (*Dependencies, error) {
	config, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	lg := logger.Configure(os.Stdout, config.Observability.Logging.Level, config.Observability.Logging.Format)

	db, sqlxDB, err := initDB(ctx, config.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	deps := &Dependencies{
		Config:        config,
		Logger:        lg,
		DB:            db,
		SQLX:          sqlxDB,
		EventBus:      events.NewEventBus(lg),
		Router:        chi.NewRouter(),
		HealthChecker: rest.NewHealthHandler(sqlxDB.DB),
	}

	if config.Idempotency.Backend == "redis" {
		rdb, err := redisstore.NewClient(ctx, config.Idempotency.RedisAddr)
		if err != nil {
			_ = sqlxDB.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		deps.Redis = rdb
	}

	if config.Observability.Metrics.Enabled {
		deps.Metrics = observability.NewMetrics()
	}

	if config.Observability.Tracing.Enabled {
		shutdown, err := observability.InitTracer(ctx, observability.TracingConfig{
			Endpoint:     config.Observability.Tracing.Endpoint,
			ServiceName:  config.Observability.Tracing.ServiceName,
			SamplingRate: config.Observability.Tracing.SamplingRate,
		})
		if err != nil {
			lg.Warn("tracing disabled, exporter setup failed", "error", err)
			config.Observability.Tracing.Enabled = false
		} else {
			deps.ShutdownTracer = shutdown
		}
	}

	return deps, nil
}
