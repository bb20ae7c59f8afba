package app

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/welloul/CyptoTerminal/internal/collab"
	"github.com/welloul/CyptoTerminal/internal/config"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// RunOptions tune the long-running terminal.
type RunOptions struct {
	// Symbol overrides feed.initial_symbol when set.
	Symbol string
	// Console forces the console renderer on regardless of config.
	Console bool
}

// Run streams market state until SIGINT/SIGTERM or ctx cancellation.
func (a *App) Run(ctx context.Context, opts RunOptions) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	symbol := a.Config.Feed.InitialSymbol
	if opts.Symbol != "" {
		symbol = opts.Symbol
	}

	cfg := *a.Config
	if opts.Console {
		cfg.Console.Enabled = true
	}

	p := NewPipeline(&cfg, symbol, a.Logger)
	a.Logger.Info().Str("url", cfg.Feed.URL).Str("symbol", p.Subject.Current()).Msg("starting terminal")
	if err := p.Run(ctx); err != nil {
		a.Logger.Error().Err(err).Msg("terminal terminated with error")
		return err
	}
	a.Logger.Info().Msg("terminal stopped")
	return nil
}

func (a *App) newCollab() *collab.Client {
	c := a.Config.Collab
	return collab.NewClient(collab.Options{
		BaseURL:           c.BaseURL,
		Timeout:           c.Timeout,
		RequestsPerSecond: c.RequestsPerSecond,
		Burst:             c.Burst,
	}, a.Logger)
}
