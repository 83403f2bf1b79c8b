package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/sushihentaime/blogclient/internal/blogservice"
	"github.com/sushihentaime/blogclient/internal/common"
	"github.com/sushihentaime/blogclient/internal/storage"
	"github.com/sushihentaime/blogclient/internal/userservice"
)

type application struct {
	config   *Config
	logger   *slog.Logger
	store    storage.Store
	sessions *userservice.Manager
	auth     *userservice.AuthClient
	blogs    *blogservice.BlogClient
	mirror   *blogservice.Mirror
	broker   *common.MessageBroker
	// origin tags change events published by this process.
	origin string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
	prompt *prompter
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("blogist", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", ".env", "path to the configuration file")
	fs.Usage = func() { usage(stderr) }
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		usage(stderr)
		return 2
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "failed to load configuration: %v\n", err)
		return 1
	}

	logger := newLogger(cfg.LogLevel, stderr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", slog.String("error", err.Error()))
		return 1
	}
	defer app.close()

	app.stdin, app.stdout, app.stderr = stdin, stdout, stderr

	if err := app.dispatch(ctx, fs.Arg(0), fs.Args()[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		if errors.Is(err, errUsage) {
			return 2
		}
		attrs := []any{slog.String("command", fs.Arg(0)), slog.String("error", err.Error())}
		if kind, ok := common.KindOf(err); ok {
			attrs = append(attrs, slog.String("kind", kind.String()))
		}
		logger.Debug("command failed", attrs...)
		fmt.Fprintln(stderr, "error:", messageFor(err))
		return 1
	}

	return 0
}

func newLogger(level string, w io.Writer) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func newApplication(ctx context.Context, cfg *Config, logger *slog.Logger) (*application, error) {
	store, err := storage.Open(ctx, storage.Config{
		Backend:      storage.Backend(cfg.Store.Backend),
		Path:         cfg.Store.Path,
		DSN:          cfg.Store.PostgresDSN,
		MaxOpenConns: cfg.Store.MaxOpenConns,
		MaxIdleConns: cfg.Store.MaxIdleConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open session store: %w", err)
	}

	app := &application{
		config: cfg,
		logger: logger,
		store:  store,
		origin: uuid.NewString(),
	}

	var sealer *common.Sealer
	if cfg.SessionSecret != "" {
		sealer, err = common.NewSealer(cfg.SessionSecret)
		if err != nil {
			app.close()
			return nil, err
		}
	}

	apiTransport, err := common.NewTransport(common.TransportConfig{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.RateBurst,
	}, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	authTransport, err := common.NewTransport(common.TransportConfig{
		BaseURL:   cfg.API.AuthBaseURL,
		Timeout:   cfg.API.Timeout,
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.RateBurst,
	}, logger)
	if err != nil {
		app.close()
		return nil, err
	}

	app.sessions = userservice.NewManager(store, sealer, logger)
	app.auth = userservice.NewAuthClient(authTransport, app.sessions)
	app.mirror = blogservice.NewMirror(store, cfg.MirrorMaxAge, logger)

	invalidators := blogservice.Invalidators{app.mirror}
	if cfg.RabbitMQURL != "" {
		broker, err := common.NewMessageBroker(cfg.RabbitMQURL)
		if err != nil {
			app.close()
			return nil, fmt.Errorf("connect to message broker: %w", err)
		}
		app.broker = broker

		if err := common.SetupBlogExchange(broker); err != nil {
			app.close()
			return nil, fmt.Errorf("setup blog exchange: %w", err)
		}

		invalidators = append(invalidators, blogservice.NewBroadcaster(broker, app.origin))
	}

	app.blogs = blogservice.NewBlogClient(apiTransport, app.sessions, app.mirror, invalidators, logger)

	if err := app.sessions.Restore(ctx); err != nil {
		app.close()
		return nil, fmt.Errorf("restore session: %w", err)
	}

	if err := app.mirror.Load(ctx); err != nil {
		logger.Warn("could not load blog mirror", slog.String("error", err.Error()))
	}

	return app, nil
}

func (app *application) close() {
	if app.broker != nil {
		if err := app.broker.Close(); err != nil {
			app.logger.Warn("failed to close message broker", slog.String("error", err.Error()))
		}
	}

	if err := app.store.Close(); err != nil {
		app.logger.Warn("failed to close session store", slog.String("error", err.Error()))
	}
}

// messageFor turns err into the text shown to the user.
func messageFor(err error) string {
	switch {
	case errors.Is(err, blogservice.ErrNotConfirmed):
		return "delete cancelled"
	case errors.Is(err, errNotOwner), errors.Is(err, errNoInput), errors.Is(err, errNoBroker):
		return err.Error()
	default:
		return common.UserMessage(err)
	}
}
