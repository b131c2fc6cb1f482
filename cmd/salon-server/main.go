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

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"salon/backend/internal/config"
	"salon/backend/internal/events"
	"salon/backend/internal/invoice"
	"salon/backend/internal/lock"
	"salon/backend/internal/logging"
	"salon/backend/internal/service/appointments"
	"salon/backend/internal/store"
	"salon/backend/internal/store/memory"
	"salon/backend/internal/store/postgres"
	"salon/backend/internal/telemetry"
	grpcTransport "salon/backend/internal/transport/grpc"
	"salon/backend/internal/transport/httpapi"
)

const serviceName = "salon-server"

func main() {
	log := logging.New("info", logging.FormatJSON).With(slog.String("service", serviceName))
	slog.SetDefault(log)

	cfg, err := config.Load()
	if err != nil {
		log.Error("config load failed", slog.Any("err", err))
		os.Exit(1)
	}

	log = logging.New(cfg.LogLevel, cfg.LogFormat).With(slog.String("service", serviceName))
	slog.SetDefault(log)

	log.Info("starting",
		slog.String("grpc_addr", cfg.GRPCAddr),
		slog.String("http_addr", cfg.HTTPAddr),
		slog.String("store", cfg.StoreDriver),
		slog.String("log_level", cfg.LogLevel),
	)

	if err := run(log, cfg); err != nil {
		log.Error("server stopped with error", slog.Any("err", err))
		os.Exit(1)
	}
}

func run(log *slog.Logger, cfg config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:      cfg.OTelEnabled,
		ServiceName:  serviceName,
		OTLPEndpoint: cfg.OTelEndpoint,
		SampleRatio:  cfg.OTelSampleRatio,
	})
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			log.Warn("telemetry shutdown failed", slog.Any("err", err))
		}
	}()

	grid, err := cfg.SlotGrid()
	if err != nil {
		return err
	}

	st, closeStore, err := openStore(ctx, log, cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(log, "store", closeStore)

	locker, closeLocker, err := openLocker(log, cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(log, "lock", closeLocker)

	publisher, closePublisher, err := openPublisher(log, cfg)
	if err != nil {
		return err
	}
	defer closeQuietly(log, "publisher", closePublisher)

	emitter := invoice.NewHTMLEmitter(cfg.InvoiceDir, invoice.Issuer{
		Name:         cfg.InvoiceIssuerName,
		TaxID:        cfg.InvoiceIssuerTaxID,
		TradeName:    cfg.InvoiceTradeName,
		AddressLines: cfg.InvoiceAddressLines,
		Series:       cfg.InvoiceSeries,
		DTENumber:    cfg.InvoiceDTENumber,
		Currency:     cfg.InvoiceCurrency,
	})

	svc := appointments.NewService(st, emitter, appointments.Options{
		Grid:        grid,
		TaxIDDigits: cfg.InvoiceTaxIDDigits,
		Locker:      locker,
		LockTTL:     cfg.RedisLockTTL,
		Publisher:   publisher,
		Logger:      log,
	})

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(grpcTransport.RequestTimeoutInterceptor(cfg.GRPCRequestTimeout)),
	)
	grpcTransport.RegisterAppointmentsServiceServer(grpcServer, grpcTransport.NewAppointmentsServer(svc, log))
	healthServer := health.NewServer()
	healthServer.SetServingStatus(grpcTransport.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(grpcServer, healthServer)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Error("grpc listen failed", slog.Any("err", err), slog.String("grpc_addr", cfg.GRPCAddr))
		return err
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(svc, cfg.InvoiceDir, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- grpcServer.Serve(lis)
	}()
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	log.Info("servers started", slog.String("grpc_addr", cfg.GRPCAddr), slog.String("http_addr", cfg.HTTPAddr))

	var serveErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			log.Error("server stopped with error", slog.Any("err", err))
			serveErr = err
		}
	}

	healthServer.Shutdown()
	shutdown(log, grpcServer, httpServer, cfg.ShutdownTimeout)
	return serveErr
}

func openStore(ctx context.Context, log *slog.Logger, cfg config.Config) (store.Store, func() error, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		st := memory.New()
		if err := memory.Seed(ctx, st); err != nil {
			return nil, nil, err
		}
		log.Warn("using in-memory store; data is lost on restart")
		return st, nil, nil
	}

	log.Info("connecting to database", databaseLogArgs(cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, postgres.Config{
		URL:             cfg.DatabaseURL,
		ApplicationName: serviceName,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: cfg.DBConnMaxIdleTime,
		SlowQuery:       cfg.DBSlowQuery,
		Logger:          log.With(slog.String("component", "postgres")),
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(cfg.DatabaseURL)...)
		log.Error("database connection failed", args...)
		return nil, nil, err
	}
	return postgres.NewRepo(db), func() error { return postgres.Close(db) }, nil
}

func openLocker(log *slog.Logger, cfg config.Config) (lock.Locker, func() error, error) {
	if cfg.RedisAddr == "" {
		log.Info("using process-local attend lock")
		return lock.NewLocalLock(), nil, nil
	}
	l, err := lock.NewRedisLock(cfg.RedisAddr)
	if err != nil {
		log.Error("redis connection failed", slog.Any("err", err), slog.String("redis_addr", cfg.RedisAddr))
		return nil, nil, err
	}
	log.Info("using redis attend lock", slog.String("redis_addr", cfg.RedisAddr))
	return l, l.Close, nil
}

func openPublisher(log *slog.Logger, cfg config.Config) (events.Publisher, func() error, error) {
	if len(events.SplitBrokers(cfg.KafkaBrokers)) == 0 {
		return events.Nop{}, nil, nil
	}
	p, err := events.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
	if err != nil {
		return nil, nil, err
	}
	log.Info("publishing appointment events", slog.String("topic", cfg.KafkaTopic))
	return p, p.Close, nil
}

func closeQuietly(log *slog.Logger, what string, closeFn func() error) {
	if closeFn == nil {
		return
	}
	if err := closeFn(); err != nil {
		log.Warn(what+" close failed", slog.Any("err", err))
	}
}

func shutdown(log *slog.Logger, g *grpc.Server, h *http.Server, timeout time.Duration) {
	log.Info("shutting down servers", slog.Duration("timeout", timeout))

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := h.Shutdown(ctx); err != nil {
		log.Warn("http graceful shutdown failed", slog.Any("err", err))
	}

	done := make(chan struct{})
	go func() {
		g.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc server stopped")
	case <-ctx.Done():
		log.Warn("grpc graceful shutdown timed out; forcing stop")
		g.Stop()
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
