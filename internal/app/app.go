package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/five82/contentstream/internal/config"
	"github.com/five82/contentstream/internal/coordinator"
	"github.com/five82/contentstream/internal/events"
	"github.com/five82/contentstream/internal/logging"
	"github.com/five82/contentstream/internal/prefs"
	"github.com/five82/contentstream/internal/state"
	"github.com/five82/contentstream/internal/storage"
	"github.com/five82/contentstream/internal/stream"
	"github.com/five82/contentstream/internal/ui"
	"github.com/five82/contentstream/internal/viewport"
)

// Options configure a contentstream session.
type Options struct {
	ConfigPath string
	// Hash is the location-style filter spec applied when the TUI starts.
	Hash    string
	Verbose bool
	// Headless logs to LogOutput instead of the configured log file.
	Headless  bool
	LogOutput io.Writer
}

// Session holds the collaborators shared by the TUI and the headless
// commands.
type Session struct {
	Config config.Config
	Logger zerolog.Logger
	Store  *state.Store
	Client *stream.Client

	medium    storage.Medium
	logCloser io.Closer
}

// Open loads configuration and builds the logger, storage medium, filter
// store and transport client.
func Open(opts Options) (*Session, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}

	var (
		logger    zerolog.Logger
		logCloser io.Closer = io.NopCloser(nil)
	)
	if opts.Headless {
		out := opts.LogOutput
		if out == nil {
			out = os.Stderr
		}
		if !opts.Verbose {
			level = "warn"
		}
		logger = logging.New(out, level)
	} else {
		logger, logCloser, err = logging.Open(cfg.LogFile, level)
		if err != nil {
			return nil, fmt.Errorf("open log: %w", err)
		}
	}

	medium, err := storage.Open(cfg.Storage, cfg.StoragePath)
	switch {
	case errors.Is(err, storage.ErrNoMedium):
		medium = nil
	case err != nil:
		_ = logCloser.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}

	store := state.NewStore(medium, logging.Component(logger, "state"))

	client, err := stream.NewClient(stream.Options{
		Endpoint: cfg.Endpoint,
		Logger:   logging.Component(logger, "stream"),
	})
	if err != nil {
		closeMedium(medium)
		_ = logCloser.Close()
		return nil, fmt.Errorf("init stream client: %w", err)
	}

	logger.Debug().
		Str("endpoint", client.Endpoint()).
		Str("storage", string(cfg.Storage)).
		Bool("persistent", store.Persistent()).
		Msg("session opened")

	return &Session{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Client:    client,
		medium:    medium,
		logCloser: logCloser,
	}, nil
}

// Close releases the storage medium and the log file.
func (s *Session) Close() error {
	var errs []error
	if s.medium != nil {
		if err := s.medium.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage: %w", err))
		}
	}
	if err := s.logCloser.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close log: %w", err))
	}
	return errors.Join(errs...)
}

// CoordinatorOptions returns coordinator options drawn from the session
// configuration. The caller supplies the renderer, layout and bus.
func (s *Session) CoordinatorOptions(renderer coordinator.Renderer, layout viewport.Layout, bus *events.Bus) coordinator.Options {
	return coordinator.Options{
		Store:    s.Store,
		Fetcher:  s.Client,
		Renderer: renderer,
		Layout:   layout,
		Viewport: viewport.Options{
			ScrollDebounce:  s.Config.ScrollDebounce,
			ResizeDebounce:  s.Config.ResizeDebounce,
			NotReadyDelay:   s.Config.NotReadyDelay,
			NotReadyRetries: s.Config.NotReadyRetries,
		},
		Policy:    s.Config.Policy(),
		Bus:       bus,
		PageLimit: s.Config.PageLimit,
		Logger:    logging.Component(s.Logger, "coordinator"),
	}
}

// Run boots the TUI until the user quits or the context is cancelled.
func Run(ctx context.Context, opts Options) error {
	session, err := Open(opts)
	if err != nil {
		return err
	}
	defer session.Close()

	cfg := session.Config
	userPrefs, _ := prefs.Load(cfg.PrefsPath)
	themeName := userPrefs.Theme
	if cfg.Theme != "" {
		themeName = cfg.Theme
	}

	bus := events.NewBus(0)
	defer bus.Close()

	board := ui.NewBoard(userPrefs.CardWidth, userPrefs.CardHeight)
	coord, err := coordinator.New(session.CoordinatorOptions(board, board, bus))
	if err != nil {
		return fmt.Errorf("init coordinator: %w", err)
	}
	defer coord.Close()

	model := ui.New(ui.Options{
		Context:    ctx,
		Board:      board,
		Controller: coord,
		Signals:    coord.Monitor(),
		Events:     bus.SubscribeAll(),
		Hash:       opts.Hash,
		ThemeName:  themeName,
		PrefsPath:  cfg.PrefsPath,
		Policy:     cfg.Policy(),
		Logger:     logging.Component(session.Logger, "ui"),
	})

	session.Logger.Info().Str("hash", opts.Hash).Msg("starting contentstream")
	if _, err := tea.NewProgram(model, tea.WithContext(ctx)).Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func closeMedium(m storage.Medium) {
	if m != nil {
		_ = m.Close()
	}
}
