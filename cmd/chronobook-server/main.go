package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"

	chronobookv1 "chronobook/backend/internal/api/chronobook/v1"
	"chronobook/backend/internal/catalog"
	"chronobook/backend/internal/config"
	"chronobook/backend/internal/identity"
	"chronobook/backend/internal/lock"
	"chronobook/backend/internal/notify"
	"chronobook/backend/internal/service/bookings"
	"chronobook/backend/internal/store"
	"chronobook/backend/internal/store/memory"
	"chronobook/backend/internal/store/postgres"
	"chronobook/backend/internal/telemetry"
	grpcTransport "chronobook/backend/internal/transport/grpc"
	httpTransport "chronobook/backend/internal/transport/http"
)

const serviceName = "chronobook-server"

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})).With(
		slog.String("service", serviceName),
	)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr()),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("storage", cfg.StorageDriver),
		slog.String("lock", cfg.LockBackend),
		slog.String("log_level", cfg.LogLevel),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Warn("tracer shutdown failed", slog.Any("err", err))
		}
	}()

	repo, cat, ready, closeStorage, err := openStorage(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeStorage()

	locker, closeLocker, err := openLocker(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeLocker()

	sinks := []notify.Sink{notify.NewLogSink(log)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink := notify.NewKafkaSink(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := kafkaSink.Close(); err != nil {
				log.Warn("kafka writer close failed", slog.Any("err", err))
			}
		}()
		sinks = append(sinks, kafkaSink)
		log.Info("kafka notifications enabled", slog.Any("brokers", cfg.KafkaBrokers), slog.String("topic", cfg.KafkaTopic))
	}
	dispatcher := notify.NewDispatcher(notify.Multi(sinks...), cfg.NotifyQueueLen, log)

	svc := bookings.NewService(repo, cat,
		bookings.WithLocker(locker),
		bookings.WithNotifier(dispatcher),
		bookings.WithLogger(log),
		bookings.WithTracer(telemetry.Tracer()),
		bookings.WithOccurrenceCount(cfg.RecurrenceOccurrences),
	)
	verifier := identity.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, 0)

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			grpcTransport.RequestTimeoutInterceptor(cfg.GRPCRequestTimeout),
			grpcTransport.AuthInterceptor(verifier, log),
		),
	)
	chronobookv1.RegisterBookingServiceServer(grpcServer, grpcTransport.NewBookingsServer(svc, log, cfg.RetryAttempts))

	limiter, closeLimiter := openRateLimiter(cfg)
	defer closeLimiter()
	router := httpTransport.NewRouter(httpTransport.Options{
		Service:  svc,
		Verifier: verifier,
		Limiter:  limiter,
		Ready:    ready,
		Retries:  cfg.RetryAttempts,
		Logger:   log,
	})
	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(router, "chronobook.http"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lis, err := net.Listen("tcp", cfg.GRPCAddr())
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr()))
		return err
	}

	// The dispatcher outlives the servers so events from in-flight requests are delivered.
	dispatchCtx, stopDispatch := context.WithCancel(context.Background())
	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		_ = dispatcher.Run(dispatchCtx)
	}()
	defer func() {
		stopDispatch()
		<-dispatchDone
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("grpc server started", slog.String("grpc_addr", cfg.GRPCAddr()))
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("http server started", slog.String("http_addr", cfg.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			log.Info("shutdown signal received")
		}
		httpCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(httpCtx); err != nil {
			log.Warn("http graceful shutdown failed", slog.Any("err", err))
		}
		shutdown(log, grpcServer, cfg.ShutdownTimeout)
		return nil
	})

	return g.Wait()
}

func openStorage(ctx context.Context, cfg config.Config, log *slog.Logger) (store.BookingRepository, catalog.Reader, func(context.Context) error, func(), error) {
	seed, seedErr := catalog.LoadSeed(cfg.CatalogSeedFile)
	if seedErr != nil && cfg.StorageDriver == config.StorageMemory {
		log.Error("catalog seed load failed", slog.Any("err", seedErr), slog.String("path", cfg.CatalogSeedFile))
		return nil, nil, nil, nil, seedErr
	}

	if cfg.StorageDriver == config.StorageMemory {
		cat, err := catalog.NewMemory(seed)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		log.Info("using in-memory storage", slog.Int("services", len(seed.Services)), slog.Int("staff", len(seed.Staff)))
		return memory.NewBookingRepo(), cat, nil, func() {}, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, nil, nil, nil, err
	}
	closeDB := func() {
		if err := postgres.Close(db); err != nil {
			log.Warn("database close failed", slog.Any("err", err))
		}
	}

	catalogRepo := postgres.NewCatalogRepo(db)
	if seedErr != nil {
		log.Warn("catalog seed skipped", slog.Any("err", seedErr), slog.String("path", cfg.CatalogSeedFile))
	} else if err := catalogRepo.ImportSeed(ctx, seed); err != nil {
		closeDB()
		return nil, nil, nil, nil, err
	}

	ready := func(ctx context.Context) error { return postgres.Ping(ctx, db) }
	return postgres.NewBookingRepo(db, cfg.DBLockTimeout), catalogRepo, ready, closeDB, nil
}

func openLocker(ctx context.Context, cfg config.Config, log *slog.Logger) (lock.Locker, func(), error) {
	if cfg.LockBackend != config.LockRedis {
		return lock.NewLocal(cfg.LockWait), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		return nil, nil, err
	}
	locker := lock.NewRedis(rdb, cfg.LockWait, lock.WithTTL(cfg.LockTTL), lock.WithLogger(log))
	return locker, func() { _ = rdb.Close() }, nil
}

// openRateLimiter shares counters through Redis when the distributed lock uses it.
func openRateLimiter(cfg config.Config) (httpTransport.Limiter, func()) {
	if cfg.RateLimit <= 0 {
		return nil, func() {}
	}
	if cfg.LockBackend != config.LockRedis {
		return httpTransport.NewMemoryLimiter(cfg.RateLimit, cfg.RateLimitWindow), func() {}
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	return httpTransport.NewRedisLimiter(rdb, cfg.RateLimit, cfg.RateLimitWindow, "chronobook:rl"), func() { _ = rdb.Close() }
}

func shutdown(log *slog.Logger, s *grpc.Server, timeout time.Duration) {
	log.Info("shutting down grpc server", slog.Duration("timeout", timeout))

	done := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(done)
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-timer.C:
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		s.Stop()
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func databaseLogArgs(databaseURL string) []any {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return []any{slog.String("db_url", "invalid")}
	}
	name := strings.TrimPrefix(u.Path, "/")
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		port = "default"
	}
	if host == "" {
		host = "unknown"
	}
	if name == "" {
		name = "unknown"
	}
	return []any{
		slog.String("db_host", host),
		slog.String("db_port", port),
		slog.String("db_name", name),
	}
}
