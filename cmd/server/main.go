// Package main is the entry point for the TeamDesk server.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aydin-o/go-teamdesk/internal/api/middleware"
	v1 "github.com/aydin-o/go-teamdesk/internal/api/v1"
	"github.com/aydin-o/go-teamdesk/internal/auth"
	"github.com/aydin-o/go-teamdesk/internal/config"
	"github.com/aydin-o/go-teamdesk/internal/domain"
	"github.com/aydin-o/go-teamdesk/internal/repository"
	"github.com/aydin-o/go-teamdesk/internal/service"
	"github.com/aydin-o/go-teamdesk/internal/uow"
	"github.com/aydin-o/go-teamdesk/internal/utils"
	"github.com/aydin-o/go-teamdesk/internal/worker"
)

func main() {
	cfg := config.Load()

	utils.InitLogger(cfg.Environment, "go-teamdesk")

	metricsCollector := utils.NewMetricsCollector()

	ctx := context.Background()
	shutdownTracer, err := utils.InitTracer(ctx, "go-teamdesk", "1.0.0", "jaeger:4317")
	if err != nil {
		utils.Error("failed to initialize tracer", "error", err.Error())
		os.Exit(1)
	}
	defer shutdownTracer()

	if cfg.DBUrl == "" {
		utils.Error("DB_URL is required")
		os.Exit(1)
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, 10*time.Second)
	db, err := repository.Connect(connectCtx, cfg.DBUrl)
	cancelConnect()
	if err != nil {
		utils.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer db.Close()

	var redisClient *repository.RedisClient
	redisClient, err = repository.NewRedisClient(repository.RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err != nil {
		utils.Warn("failed to connect to Redis, running without cache", slog.String("error", err.Error()))
		redisClient = nil
	} else {
		defer redisClient.Close()
	}

	repos := &repository.Repositories{
		Users:       repository.NewUsersRepo(db.Pool),
		Projects:    repository.NewProjectsRepo(db.Pool),
		Delegations: repository.NewDelegationsRepo(db.Pool),
		Outbox:      repository.NewOutboxRepo(db.Pool),
		Audit:       repository.NewAuditRepo(db.Pool),
	}

	jwtManager := auth.NewJWTManager(cfg.JWTSecret, "go-teamdesk")

	// The bus carries in-scope handlers: they run inside the same transaction
	// as the operation that recorded the event, so any handler error rolls
	// everything back.
	bus := uow.NewBus()
	registerInScopeHandlers(bus, repos)

	uowManager := uow.NewManager(db.Pool, bus, repos.Outbox)
	uowManager.SetMetricsCollector(metricsCollector)

	var cacheService service.CacheService
	if redisClient != nil {
		cacheService = service.NewCacheService(redisClient)
	}

	dispatcherSvc := service.NewDispatcherService(repos, metricsCollector)
	dispatcherSvc.Subscribe("event-log", func(ctx context.Context, events []*domain.Event) error {
		for _, ev := range events {
			utils.Info("event published",
				slog.String("event_type", ev.EventType),
				slog.String("aggregate_type", ev.AggregateType),
				slog.String("aggregate_id", ev.AggregateID.String()),
				slog.Int64("seq", ev.Seq),
			)
		}
		return nil
	})

	delegationSvc := service.NewDelegationService(repos, uowManager, cacheService, cfg.MaxDelegationWindow)
	delegationSvc.SetMetricsCollector(metricsCollector)

	services := &service.Services{
		Auth:       service.NewAuthService(repos, jwtManager, uowManager, cacheService),
		User:       service.NewUserService(repos, uowManager, cacheService),
		Project:    service.NewProjectService(repos, uowManager, cacheService),
		Delegation: delegationSvc,
		Event:      service.NewEventService(repos),
		Dispatcher: dispatcherSvc,
		Cache:      cacheService,
	}

	// Worker pool parallelizes dispatch across aggregates; ordering within an
	// aggregate is preserved because one job holds one aggregate's batch.
	jobQueue := worker.NewJobQueue(100)
	workerPool := worker.NewPool(jobQueue, dispatcherSvc)

	dispatcherWorker := worker.NewDispatcherWorker(dispatcherSvc, workerPool, redisClient)
	expiryWorker := worker.NewExpiryWorker(delegationSvc)

	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	mux.Handle("/metrics", promhttp.Handler())

	mux.HandleFunc("/api/v1/metrics/basic", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(metricsCollector.GetMetrics())
	})

	mux.HandleFunc("/api/v1/metrics/circuit-breakers", middleware.CircuitBreakerMetricsHandler)

	apiRouter := v1.NewRouter(repos, services, jwtManager)
	apiRouter.RegisterRoutes(mux)

	server := &http.Server{
		Addr: cfg.GetAddr(),
		Handler: middleware.LoggingMiddleware(
			middleware.TracingMiddleware("go-teamdesk")(
				middleware.MetricsMiddleware(metricsCollector)(
					middleware.RateLimitMiddleware(cacheService, 300, time.Minute)(mux),
				),
			),
		),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	workerPool.Start(4)
	dispatcherWorker.Start(cfg.DispatchInterval)
	expiryWorker.Start(cfg.ExpiryInterval)

	go func() {
		utils.Info("server starting",
			slog.String("addr", cfg.GetAddr()),
			slog.String("env", cfg.Environment),
		)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			utils.Error("server failed to start", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	<-quit
	utils.Info("shutting down server")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := dispatcherWorker.Stop(shutdownCtx); err != nil {
		utils.Error("dispatcher worker shutdown error", slog.String("error", err.Error()))
	}
	if err := expiryWorker.Stop(shutdownCtx); err != nil {
		utils.Error("expiry worker shutdown error", slog.String("error", err.Error()))
	}
	if err := workerPool.Stop(shutdownCtx); err != nil {
		utils.Error("worker pool shutdown error", slog.String("error", err.Error()))
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		utils.Error("server forced to shutdown", slog.String("error", err.Error()))
		os.Exit(1)
	}

	utils.Info("server stopped gracefully")
}

// registerInScopeHandlers wires the handlers that must succeed for their
// triggering operation to commit.
func registerInScopeHandlers(bus *uow.Bus, repos *repository.Repositories) {
	// Every new user gets a personal workspace. The project insert shares the
	// registration transaction, so a failure here aborts the registration.
	bus.Subscribe(domain.EventUserRegistered, func(ctx context.Context, event *domain.Event, tx pgx.Tx) error {
		var payload domain.UserRegisteredEvent
		if err := event.UnmarshalPayload(&payload); err != nil {
			return fmt.Errorf("failed to decode registration payload: %w", err)
		}

		workspace := &domain.Project{
			OwnerID:     payload.UserID,
			Name:        fmt.Sprintf("%s's workspace", payload.Username),
			Description: "Personal workspace",
			Status:      string(domain.ProjectActive),
		}
		if err := repos.Projects.CreateTx(ctx, tx, workspace); err != nil {
			return fmt.Errorf("failed to create personal workspace: %w", err)
		}

		utils.Debug("personal workspace created",
			slog.String("user_id", payload.UserID.String()),
			slog.String("project_id", workspace.ID.String()),
		)
		return nil
	})
}
