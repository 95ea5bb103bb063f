// Command pmscan-server runs the PMScan REST API.
//
// Configuration comes from an optional YAML file (--config or
// PMSCAN_CONFIG), a .env file, an optional AWS Secrets Manager secret,
// environment variables and flags, in that order of precedence.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"

	"github.com/MrEthical07/pmscanauth"
	"github.com/MrEthical07/pmscanauth/internal/accounts"
	"github.com/MrEthical07/pmscanauth/internal/audit"
	"github.com/MrEthical07/pmscanauth/internal/config"
	"github.com/MrEthical07/pmscanauth/internal/fleet"
	"github.com/MrEthical07/pmscanauth/internal/httpapi"
	"github.com/MrEthical07/pmscanauth/internal/logging"
	"github.com/MrEthical07/pmscanauth/internal/mailer"
	"github.com/MrEthical07/pmscanauth/internal/repository"
	"github.com/MrEthical07/pmscanauth/internal/telemetry"
	promexport "github.com/MrEthical07/pmscanauth/metrics/export/prometheus"
	otelexport "github.com/MrEthical07/pmscanauth/metrics/export/otel"
	"github.com/MrEthical07/pmscanauth/password"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "pmscan-server:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	cfg, err := config.Load(ctx, args)
	if err != nil {
		return err
	}

	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)

	shutdownTracing, err := telemetry.Setup(ctx, cfg.OTLPEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracer shutdown failed", "error", err)
		}
	}()

	// -------- POSTGRES --------
	db, err := repository.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := repository.Migrate(ctx, db); err != nil {
		return err
	}

	users := repository.NewUserRepository(db)
	devices := repository.NewDeviceRepository(db)
	records := repository.NewRecordRepository(db)

	// -------- REDIS --------
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}

	// -------- ENGINE --------
	engineCfg := cfg.Engine()
	hasher, err := password.NewHasher(password.Config{
		Memory:      engineCfg.Password.Memory,
		Time:        engineCfg.Password.Time,
		Parallelism: engineCfg.Password.Parallelism,
		SaltLength:  engineCfg.Password.SaltLength,
		KeyLength:   engineCfg.Password.KeyLength,
	})
	if err != nil {
		return err
	}

	mail, closeMail, err := buildMailer(cfg, logger)
	if err != nil {
		return err
	}
	defer closeMail()

	sink, closeSink, err := buildAuditSink(cfg, logger)
	if err != nil {
		return err
	}
	defer closeSink()

	engine, err := pmscanauth.New().
		WithConfig(engineCfg).
		WithRedis(rdb).
		WithUserDirectory(repository.NewDirectory(users)).
		WithPasswordHasher(hasher).
		WithMailer(mail).
		WithAuditSink(sink).
		WithLogger(logger).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	// -------- METRICS --------
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		promexport.NewCollector(engine),
	)
	otelMetrics, err := otelexport.NewOTelExporter(otel.Meter("github.com/MrEthical07/pmscanauth"), engine)
	if err != nil {
		return err
	}
	defer otelMetrics.Close()

	// -------- HTTP --------
	handler := httpapi.NewRouter(httpapi.Options{
		Engine:           engine,
		Accounts:         accounts.NewService(users, hasher),
		Fleet:            fleet.NewService(users, devices, records),
		DB:               db,
		Redis:            rdb,
		Logger:           logger,
		Registry:         reg,
		CORSOrigins:      cfg.HTTP.CORSOrigins,
		CookieSecure:     cfg.HTTP.CookieSecure,
		RefreshCookieTTL: cfg.JWT.RefreshTTL,
	})

	return httpapi.Serve(ctx, cfg.Addr(), handler, cfg.ShutdownTimeout, logger)
}

func buildMailer(cfg config.Config, logger *slog.Logger) (pmscanauth.Mailer, func(), error) {
	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		logger.Info("mail via smtp", "host", cfg.Mail.SMTPHost, "port", cfg.Mail.SMTPPort)
		return mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     cfg.Mail.SMTPHost,
			Port:     fmt.Sprint(cfg.Mail.SMTPPort),
			Username: cfg.Mail.SMTPUser,
			Password: cfg.Mail.SMTPPassword,
		}), func() {}, nil
	case config.MailDriverAMQP:
		m, conn, err := mailer.DialAMQPMailer(cfg.Mail.AMQPURL, cfg.Mail.AMQPQueue)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("mail via amqp", "queue", cfg.Mail.AMQPQueue)
		return m, func() { _ = conn.Close() }, nil
	default:
		logger.Warn("mail driver is log; reset mails are not delivered")
		return mailer.NewLogMailer(logger), func() {}, nil
	}
}

func buildAuditSink(cfg config.Config, logger *slog.Logger) (pmscanauth.AuditSink, func(), error) {
	if !cfg.Audit.Enabled {
		return pmscanauth.NoOpSink{}, func() {}, nil
	}
	if cfg.Audit.NATSURL == "" {
		return pmscanauth.NewJSONWriterSink(os.Stderr), func() {}, nil
	}

	sink, nc, err := audit.ConnectNATSSink(cfg.Audit.NATSURL, cfg.Audit.NATSSubject, logger)
	if err != nil {
		return nil, nil, err
	}
	logger.Info("audit via nats", "subject", cfg.Audit.NATSSubject)
	return sink, func() { _ = nc.Drain() }, nil
}
