package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/lenderapp/lender/internal/api"
	"github.com/lenderapp/lender/internal/config"
	"github.com/lenderapp/lender/internal/db"
	"github.com/lenderapp/lender/internal/metrics"
	"github.com/lenderapp/lender/internal/notify"
	"github.com/lenderapp/lender/internal/store"
)

func main() {
	fs := flag.NewFlagSet("lender", flag.ContinueOnError)

	var configPath string
	fs.StringVar(&configPath, "config", "", "")
	fs.StringVar(&configPath, "c", "", "")

	fs.Usage = func() {
		fmt.Fprint(os.Stdout, `Usage: lender [flags]

Flags:
  -c, -config <path>   YAML config file (default: $CONFIG_PATH or ./config.yaml)
  -h, -help            show this help and exit

Every setting can also be given through the environment, e.g. SERVER_ADDR,
DATABASE_PATH, MAIL_DRIVER, LOG_LEVEL.
`)
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		if err == flag.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(os.Stderr, "unexpected argument: %s\n", fs.Arg(0))
		fs.Usage()
		os.Exit(1)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog, err := newLogger(cfg.Log, os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	slog.SetDefault(logger)

	if err := run(cfg); err != nil {
		slog.Error("server error", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	database, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(ctx, database); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}
	slog.Info("database ready", "path", cfg.Database.Path)

	secret := cfg.Auth.SessionSecret
	if secret == "" {
		// Generated on first run and kept in the database.
		secret, err = store.GetSessionSecret(ctx, database)
		if err != nil {
			return fmt.Errorf("loading session secret: %w", err)
		}
	}

	sender, err := newSender(cfg.Mail)
	if err != nil {
		return err
	}
	slog.Info("mail configured", "driver", cfg.Mail.Driver)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           newHandler(cfg, database, secret, sender),
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	shutdownErr := make(chan error, 1)

	go func() {
		sig := <-quit
		slog.Info("shutdown signal received", "signal", sig.String())

		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		shutdownErr <- server.Shutdown(ctx)
	}()

	slog.Info("server started", "addr", cfg.Server.Addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	if err := <-shutdownErr; err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("server stopped, closing database")
	return nil
}

func newSender(cfg config.MailConfig) (notify.Sender, error) {
	if cfg.Driver != "smtp" {
		return notify.LogSender{Log: slog.Default()}, nil
	}
	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
		FromName: cfg.FromName,
		TLS:      cfg.TLS,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("configuring smtp: %w", err)
	}
	return sender, nil
}

// newHandler combines the API, health and metrics endpoints behind request
// logging and instrumentation.
func newHandler(cfg *config.Config, database *sql.DB, secret string, sender notify.Sender) http.Handler {
	apiRouter := api.NewRouter(api.Config{
		DB:            database,
		SessionSecret: secret,
		SessionTTL:    cfg.Auth.SessionTTL,
		SecureCookies: cfg.Auth.SecureCookies,
		Notifier:      notify.NewDispatcher(sender, slog.Default()),
		Reminders:     api.NewReminderLimiter(cfg.Reminders.PerHour, cfg.Reminders.Burst),
	})

	mux := http.NewServeMux()
	mux.Handle("/api/", apiRouter)
	mux.Handle("GET /healthz", api.HealthHandler(database))
	mux.Handle("GET /metrics", metrics.Handler())

	return api.LoggingMiddleware(metrics.Instrument(mux))
}
