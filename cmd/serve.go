package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"productflow/internal/api"
	"productflow/internal/auth"
	"productflow/internal/config"
	"productflow/internal/events"
	"productflow/internal/store"
)

var migrateOnStart bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&migrateOnStart, "migrate", false, "apply pending migrations before serving (postgres only)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := boot()
	if err != nil {
		return err
	}
	defer logger.Sync()

	logger.Info("starting service",
		zap.String("app_env", cfg.AppEnv),
		zap.String("store_driver", cfg.StoreDriver),
	)

	dataStore, err := openStore(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := dataStore.Close(); err != nil {
			logger.Warn("error closing store", zap.Error(err))
		}
	}()

	publisher := newPublisher(cfg, logger)
	defer func() {
		if err := publisher.Close(); err != nil {
			logger.Warn("error closing event publisher", zap.Error(err))
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	httpHandler := api.NewHTTPHandler(dataStore, cfg.APIKey, auth.NewTokenMaker(cfg.JWTSecret), publisher, logger)
	httpServer := &http.Server{
		Addr:         ":" + cfg.HttpServer.Port,
		Handler:      newRouter(cfg, logger, registry, httpHandler),
		ReadTimeout:  cfg.HttpServer.TimeoutRead,
		WriteTimeout: cfg.HttpServer.TimeoutWrite,
		IdleTimeout:  cfg.HttpServer.TimeoutIdle,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 2)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", httpServer.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("http server: %w", err)
		}
	}()

	var grpcServer *grpc.Server
	if cfg.GrpcServer.Port != "" {
		grpcServer = newGRPCServer(logger, dataStore)
		lis, err := net.Listen("tcp", ":"+cfg.GrpcServer.Port)
		if err != nil {
			return fmt.Errorf("listen for gRPC on port %s: %w", cfg.GrpcServer.Port, err)
		}
		go func() {
			logger.Info("gRPC server listening", zap.String("addr", lis.Addr().String()))
			if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				serveErr <- fmt.Errorf("grpc server: %w", err)
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("server failed, shutting down", zap.Error(err))
	}

	shutdown(logger, cfg, httpServer, grpcServer)
	return nil
}

// openStore picks the backend named by STORE_DRIVER.
func openStore(cfg *config.Config, logger *zap.Logger) (store.Store, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Info("using in-memory store")
		return store.NewMemoryStore(), nil
	}

	db, err := openPostgres(cfg)
	if err != nil {
		return nil, err
	}
	if migrateOnStart {
		if err := store.MigrateUp(db); err != nil {
			db.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
	}
	logger.Info("database connection established", zap.String("host", cfg.Postgres.Host), zap.String("dbname", cfg.Postgres.DBName))
	return store.NewPostgresStore(db), nil
}

func newPublisher(cfg *config.Config, logger *zap.Logger) events.Publisher {
	if !cfg.Kafka.Enabled() {
		return events.NopPublisher{}
	}
	logger.Info("publishing product events", zap.Strings("brokers", cfg.Kafka.Brokers), zap.String("topic", cfg.Kafka.Topic))
	return events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
}

func newRouter(cfg *config.Config, logger *zap.Logger, registry *prometheus.Registry, h *api.HTTPHandler) http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(api.Logging(logger))
	router.Use(middleware.Recoverer)

	if cfg.Metrics.Enabled {
		router.Use(api.NewHTTPMetrics(registry).Middleware(defaultAppName))
		router.With(api.MetricsAuth(cfg.Metrics.Token)).
			Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	}

	h.RegisterRoutes(router)
	return router
}

func newGRPCServer(logger *zap.Logger, s store.Store) *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(api.UnaryLoggingInterceptor(logger)))

	api.RegisterCatalogServiceServer(srv, api.NewGRPCHandler(s, logger))
	grpc_health_v1.RegisterHealthServer(srv, health.NewServer())
	reflection.Register(srv)
	return srv
}

// shutdown drains both servers within the configured deadline.
func shutdown(logger *zap.Logger, cfg *config.Config, httpServer *http.Server, grpcServer *grpc.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.HttpServer.ShutdownTimeout)
	defer cancel()

	stoppedGRPC := make(chan struct{})
	if grpcServer == nil {
		close(stoppedGRPC)
	} else {
		go func() {
			grpcServer.GracefulStop()
			close(stoppedGRPC)
		}()
	}

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Warn("HTTP server graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("HTTP server stopped")
	}

	if grpcServer == nil {
		return
	}
	select {
	case <-stoppedGRPC:
		logger.Info("gRPC server stopped")
	case <-ctx.Done():
		logger.Warn("gRPC graceful shutdown timed out, forcing stop")
		grpcServer.Stop()
	}
}
