package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/concierge-tc/portal-backend/shared/audit"
	"github.com/concierge-tc/portal-backend/shared/monitoring"
	"github.com/concierge-tc/portal-backend/shared/redis"
	"github.com/concierge-tc/portal-backend/shared/utils"
	v1 "github.com/concierge-tc/portal-backend/v1"
	v1handlers "github.com/concierge-tc/portal-backend/v1/handlers"
	v1middleware "github.com/concierge-tc/portal-backend/v1/middleware"
	v1models "github.com/concierge-tc/portal-backend/v1/models"
	"github.com/concierge-tc/portal-backend/v1/policy"
	"github.com/concierge-tc/portal-backend/v1/services"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

const serviceName = "portal-backend"

func newServeCommand() *cobra.Command {
	var (
		port       string
		sqlitePath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the setup-link worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			if port == "" {
				port = utils.GetEnvOrDefault("PORT", "3000")
			}
			return runServer(port, sqlitePath)
		},
	}
	cmd.Flags().StringVarP(&port, "port", "p", "", "listen port (default $PORT or 3000)")
	cmd.Flags().StringVar(&sqlitePath, "sqlite", "", "use a SQLite database file instead of Postgres")
	return cmd
}

func runServer(port, sqlitePath string) error {
	slog.Info("Starting Portal Backend initialization")

	if err := monitoring.Initialize(monitoring.DefaultConfig(serviceName)); err != nil {
		// metrics are optional; /metrics answers 503
		slog.Warn("Failed to initialize metrics", "error", err)
	}

	dbConfig := v1.NewDatabaseConfig()
	if sqlitePath != "" {
		dbConfig.SQLitePath = sqlitePath
		dbConfig.RunMigration = true
	}
	db, err := v1.ConnectGormDB(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer closeDB(db)

	jwtConfig := v1middleware.NewJWTAuthConfig()
	if err := jwtConfig.Validate(); err != nil {
		return fmt.Errorf("invalid JWT configuration: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	evaluator, err := policy.NewEvaluator(ctx)
	if err != nil {
		return fmt.Errorf("failed to prepare authorization policy: %w", err)
	}

	redisClient := connectRedis()
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				slog.Error("Failed to close Redis connection", "error", err)
			}
		}()
	}

	var background sync.WaitGroup
	feed := newChangeFeed(ctx, db, dbConfig, &background)
	deps := newDependencies(db, feed, redisClient)

	worker := services.NewSetupLinkWorker(db, services.NewFunctionsClient(services.NewFunctionsConfig()), services.SetupLinkWorkerConfig{
		PollInterval:  utils.GetEnvDurationOrDefault("SETUP_LINK_POLL_INTERVAL", 10*time.Second),
		InvitationTTL: utils.GetEnvDurationOrDefault("INVITATION_TTL", services.DefaultInvitationTTL),
	})
	background.Add(1)
	go func() {
		defer background.Done()
		worker.Start(ctx)
	}()

	healthChecks := map[string]v1handlers.HealthCheck{}
	if redisClient != nil {
		healthChecks["redis"] = redisClient.HealthCheck
	}
	if streamAuditor, ok := deps.Auditor.(*audit.StreamAuditor); ok {
		healthChecks["audit_stream"] = streamAuditor.HealthCheck
	}

	apiHandler := v1handlers.NewV1Handler(deps)
	router := newRouter(routerConfig{
		DB:        db,
		Handler:   apiHandler,
		JWT:       jwtConfig,
		Evaluator: evaluator,
		AuthMode:  v1models.AuthorizationMode(utils.GetEnvOrDefault("AUTHORIZATION_MODE", string(v1models.AuthorizationModeFailClosed))),
		CORS:      v1middleware.NewCORSConfig(),

		HealthChecks: healthChecks,
	})

	addr := ":" + port
	server := &http.Server{
		Addr:        addr,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
		// WriteTimeout stays unset: the change stream holds its response open
	}
	server.RegisterOnShutdown(apiHandler.CloseStreams)

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("Portal Backend starting", "port", port, "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			background.Wait()
			return fmt.Errorf("failed to start Portal Backend: %w", err)
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down Portal Backend...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}
	background.Wait()

	slog.Info("Portal Backend exited")
	return nil
}

// connectRedis returns nil when REDIS_ADDR is unset or unreachable
func connectRedis() *redis.RedisClient {
	addr := utils.GetEnvOrDefault("REDIS_ADDR", "")
	if addr == "" {
		slog.Info("Redis not configured, using in-memory drafts and log notifications")
		return nil
	}
	client, err := redis.NewClient(&redis.Config{
		Addr:     addr,
		Password: utils.GetEnvOrDefault("REDIS_PASSWORD", ""),
		DB:       utils.GetEnvIntOrDefault("REDIS_DB", 0),
	})
	if err != nil {
		slog.Warn("Redis unavailable, using in-memory drafts and log notifications", "addr", addr, "error", err)
		return nil
	}
	slog.Info("Connected to Redis", "addr", addr)
	return client
}

// newChangeFeed uses Postgres LISTEN/NOTIFY when enabled so every replica sees every write
func newChangeFeed(ctx context.Context, db *gorm.DB, config *v1.DatabaseConfig, background *sync.WaitGroup) services.ChangeFeed {
	if !utils.GetEnvBoolOrDefault("CHANGE_FEED_ENABLED", false) || config.SQLitePath != "" {
		return services.NewLocalChangeFeed()
	}
	feed := services.NewPostgresChangeFeed(db, config.DSN(), utils.GetEnvOrDefault("CHANGE_FEED_CHANNEL", services.DefaultChangeChannel))
	background.Add(1)
	go func() {
		defer background.Done()
		if err := feed.Run(ctx); err != nil {
			slog.Error("Change feed stopped", "error", err)
		}
	}()
	return feed
}

func newDependencies(db *gorm.DB, feed services.ChangeFeed, redisClient *redis.RedisClient) v1handlers.Dependencies {
	var (
		drafts   services.DraftStore = services.NewMemoryDraftStore()
		notifier services.Notifier   = services.LogNotifier{}
		auditor  audit.Auditor       = audit.NoopAuditor{}
	)
	if redisClient != nil {
		drafts = services.NewRedisDraftStore(redisClient, utils.GetEnvDurationOrDefault("DRAFT_TTL", services.DefaultDraftTTL))
		notifier = services.NewRedisNotifier(redisClient)
		auditor = audit.NewStreamAuditor(redisClient, utils.GetEnvOrDefault("AUDIT_STREAM", audit.DefaultStreamName)).
			WithMaxLength(int64(utils.GetEnvIntOrDefault("AUDIT_STREAM_MAX_LENGTH", audit.DefaultMaxStreamLength)))
	}

	transactions := services.NewTransactionService(db, feed)
	agents := services.NewAgentService(db, feed)
	offers := services.NewOfferService(db, feed)
	return v1handlers.Dependencies{
		Transactions: transactions,
		Agents:       agents,
		Offers:       offers,
		Vendors:      services.NewVendorService(db, feed),
		Wizards:      services.NewWizardService(drafts, transactions, offers, agents),
		Feed:         feed,
		Notifier:     notifier,
		Auditor:      auditor,
	}
}

type routerConfig struct {
	DB        *gorm.DB
	Handler   *v1handlers.V1Handler
	JWT       v1middleware.JWTAuthConfig
	Evaluator v1middleware.PolicyEvaluator
	AuthMode  v1models.AuthorizationMode
	CORS      v1middleware.CORSConfig

	// HealthChecks are reported by /health next to the database
	HealthChecks map[string]v1handlers.HealthCheck
}

// newRouter applies the middleware chain (request id -> recovery -> metrics -> CORS -> JWT -> authorization).
// /health and /metrics are mounted outside authentication.
func newRouter(config routerConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(v1middleware.RequestContextMiddleware)
	r.Use(utils.PanicRecoveryMiddleware)
	r.Use(monitoring.HTTPMetricsMiddleware)
	r.Use(v1middleware.CORSMiddleware(config.CORS))

	r.Get("/health", v1handlers.HealthHandler(config.DB, config.HealthChecks))
	r.Handle("/metrics", monitoring.Handler())

	jwtAuth := v1middleware.NewJWTAuthMiddleware(config.JWT)
	authz := v1middleware.NewAuthorizationMiddleware(config.Evaluator, v1middleware.AuthorizationConfig{Mode: config.AuthMode})
	r.Group(func(r chi.Router) {
		r.Use(jwtAuth.AuthenticateJWT)
		r.Use(authz.AuthorizeRequest)
		config.Handler.SetupV1Routes(r)
	})
	return r
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err := sqlDB.Close(); err != nil {
		slog.Error("Failed to close database connection", "error", err)
	}
}

