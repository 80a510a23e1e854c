package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/controller"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/filestore"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/qr"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/secrets"
	sqliteadapter "github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driven/sqlite"
	httphandler "github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driving/http"
	webhandler "github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/adapter/driving/web"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/application"
	"github.com/AlteproSolutions/tsk-arista-wifi-psk-rotator/internal/config"
)

// clientIdentifier is sent with every controller login.
const clientIdentifier = "psk-rotator"

type options struct {
	configPath        string
	once              bool
	setCredentials    bool
	encryptRecipients []string
}

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options
	fs := pflag.NewFlagSet("pskrotator", pflag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVarP(&opts.configPath, "config", "c", "config.json", "path to the JSON or YAML configuration file")
	fs.BoolVar(&opts.once, "once", false, "run a single rotation and exit")
	fs.BoolVar(&opts.setCredentials, "set-credentials", false, "read the controller username and password from stdin and store them encrypted")
	fs.StringSliceVar(&opts.encryptRecipients, "encrypt-credentials", nil, "read the controller login from stdin and write an age file for these recipients to stdout")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if fs.NArg() > 0 {
		return options{}, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	modes := 0
	for _, set := range []bool{opts.once, opts.setCredentials, len(opts.encryptRecipients) > 0} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return options{}, errors.New("--once, --set-credentials and --encrypt-credentials are mutually exclusive")
	}
	return opts, nil
}

func run(args []string, stdin io.Reader, stdout io.Writer) error {
	opts, err := parseFlags(args, os.Stderr)
	if errors.Is(err, pflag.ErrHelp) {
		return nil
	}
	if err != nil {
		return err
	}

	if len(opts.encryptRecipients) > 0 {
		return encryptCredentials(stdin, stdout, opts.encryptRecipients)
	}

	// 1. Load configuration. Only unusable values are fatal.
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}

	// 2. Replace the default logger.
	logger, closeLog, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	if cfg.ScheduleErr != nil {
		logger.Error("cannot load rotation schedule, falling back", "error", cfg.ScheduleErr, "schedule", cfg.Schedule.String())
	}
	logger.Info("config loaded",
		"config", opts.configPath,
		"listen_addr", cfg.ListenAddr,
		"data_dir", cfg.DataDir,
		"db_path", cfg.DBPath,
		"schedule", cfg.Schedule.String(),
	)

	// 3. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Open database and run migrations.
	db, err := sqliteadapter.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			logger.Error("error closing database", "error", closeErr)
		}
	}()
	credentialRepo := sqliteadapter.NewCredentialRepo(db, sqliteadapter.DeriveKey(cfg.SecretKey))

	if opts.setCredentials {
		return storeCredentials(ctx, credentialRepo, stdin, logger)
	}

	// 5. Wire adapters.
	store, err := filestore.New(cfg.DataDir, qr.NewRenderer(qr.DefaultSize))
	if err != nil {
		return err
	}
	credentials := secrets.NewChainProvider(logger,
		secrets.NamedProvider{Name: "sqlite", Provider: credentialRepo},
		secrets.NamedProvider{Name: "age", Provider: secrets.NewAgeFileProvider(cfg.AgeFile, cfg.AgeIdentityFile)},
		secrets.NamedProvider{Name: "env", Provider: secrets.NewEnvProvider()},
	)
	rotationSvc := application.NewRotationService(
		config.NewSource(opts.configPath),
		credentials,
		controller.NewClient(clientIdentifier, logger),
		store,
		application.NewPassphraseGenerator(),
		logger,
	)

	if opts.once {
		result := rotationSvc.RotateOnce(ctx)
		if !result.OK {
			return fmt.Errorf("rotation %s failed: %w", result.ID, result.Cause)
		}
		return nil
	}

	// 6. Start the scheduler.
	scheduler := application.NewScheduler(cfg.Schedule, rotationSvc, application.RealClock(), logger)
	schedulerDone := make(chan error, 1)
	go func() { schedulerDone <- scheduler.Run(ctx) }()

	// 7. Status surface: JSON API and HTML page on one mux.
	apiHandler := httphandler.NewHandler(store, scheduler, cfg.AdminToken, logger)
	webHandler := webhandler.NewHandler(store, scheduler, cfg.StatusNotice, cfg.AdminToken, logger)
	mux := http.NewServeMux()
	httphandler.RegisterRoutes(mux, apiHandler)
	webhandler.RegisterRoutes(mux, webHandler)

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.Wrap(mux, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	logger.Info("pskrotator started",
		"listen_addr", cfg.ListenAddr,
		"manual_rotation", cfg.AdminToken != "",
	)

	// 8. Wait for a shutdown signal or a fatal server error.
	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err, ok := <-serveErr:
		if ok {
			runErr = fmt.Errorf("http server: %w", err)
		}
		stop()
	}

	// 9. Graceful shutdown. An in-flight rotation runs to completion.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := <-schedulerDone; err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("scheduler stopped with error", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

// newLogger builds a text logger writing to stderr and, when configured,
// appending to cfg.LogFile.
func newLogger(cfg *config.Config) (*slog.Logger, func(), error) {
	var out io.Writer = os.Stderr
	closeFn := func() {}

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600) //nolint:gosec // path comes from operator config
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = io.MultiWriter(os.Stderr, f)
		closeFn = func() { _ = f.Close() }
	}

	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.LogLevel})
	return slog.New(handler), closeFn, nil
}
