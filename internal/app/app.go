// Package app provides application-level orchestration and dependency injection.
// This package wires together all components and manages the application lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	gobeep "github.com/gopxl/beep"

	"github.com/tejashwikalptaru/cyder/internal/adapter/audio/beep"
	"github.com/tejashwikalptaru/cyder/internal/adapter/audio/mock"
	"github.com/tejashwikalptaru/cyder/internal/adapter/eventbus"
	"github.com/tejashwikalptaru/cyder/internal/adapter/fswatch"
	"github.com/tejashwikalptaru/cyder/internal/adapter/metadata"
	"github.com/tejashwikalptaru/cyder/internal/adapter/repository/kv"
	"github.com/tejashwikalptaru/cyder/internal/adapter/repository/sqlite"
	"github.com/tejashwikalptaru/cyder/internal/adapter/toolchain"
	"github.com/tejashwikalptaru/cyder/internal/adapter/ui/console"
	"github.com/tejashwikalptaru/cyder/internal/config"
	"github.com/tejashwikalptaru/cyder/internal/logger"
	"github.com/tejashwikalptaru/cyder/internal/ports"
	"github.com/tejashwikalptaru/cyder/internal/service"
)

// Application is the root application structure that holds all dependencies.
// It follows the Dependency Injection pattern with constructor-based injection.
//
// The Application struct is responsible for:
// - Creating and wiring all dependencies
// - Managing the application lifecycle (startup, shutdown)
// - Providing a clean entry point for the CLI
type Application struct {
	// Core dependencies
	logger    *slog.Logger
	logCloser io.Closer
	settings  *config.Config

	// Infrastructure
	eventBus  *eventbus.SyncEventBus
	decoder   ports.Decoder
	toolchain *toolchain.Toolchain
	store     *sqlite.Store
	prefs     *kv.Store

	// Repositories
	durationCache   ports.DurationCache
	historyRepo     ports.HistoryRepository
	preferencesRepo ports.PreferencesRepository

	// Services
	libraryService    *service.LibraryService
	playbackService   *service.PlaybackService
	playlistService   *service.PlaylistService
	progressService   *service.ProgressService
	transcodeService  *service.TranscodeService
	preferenceService *service.PreferenceService
	player            *service.PlayerService

	// UI
	view      *console.View
	presenter *console.Presenter

	shutdownOnce sync.Once
	shutdownErr  error
}

// Config holds application configuration.
type Config struct {
	// Settings is the loaded configuration file plus environment overrides
	Settings *config.Config

	// UseMockAudio replaces the speaker with a mock decoder (for testing)
	UseMockAudio bool

	// Output receives the console view, os.Stdout when nil
	Output io.Writer

	// ShowProgress draws the progress bar on Output
	ShowProgress bool
}

// DefaultConfig returns the default application configuration.
func DefaultConfig() Config {
	settings := config.Default()
	settings.ResolvePaths()
	return ConfigFrom(settings)
}

// ConfigFrom wraps loaded settings in an application configuration.
func ConfigFrom(settings *config.Config) Config {
	return Config{
		Settings:     settings,
		ShowProgress: true,
	}
}

// NewApplication creates a new application with all dependencies wired.
// This is the main dependency injection function.
func NewApplication(cfg Config) (*Application, error) {
	if cfg.Settings == nil {
		cfg = DefaultConfig()
	}
	settings := cfg.Settings
	out := cfg.Output
	if out == nil {
		out = os.Stdout
	}

	app := &Application{settings: settings}

	// Step 1: Create logger
	app.logger, app.logCloser = logger.NewLogger(logger.Config{
		Level:  logger.ParseLevel(settings.Log.Level),
		Format: settings.Log.Format,
		File:   settings.Log.File,
	})
	app.logger.Info("initializing application",
		slog.String("version", GetVersionInfo().Version),
		slog.String("data_dir", settings.Paths.DataDir))

	// Step 2: Create an event bus
	app.eventBus = eventbus.NewSyncEventBus(app.logger.With(slog.String("component", "eventbus")))

	// Step 3: Create repositories
	if err := app.openRepositories(); err != nil {
		_ = app.closeInfrastructure()
		_ = app.logCloser.Close()
		return nil, err
	}

	// Step 4: Create the toolchain and file adapters
	app.toolchain = toolchain.New(
		app.logger.With(slog.String("component", "toolchain")),
		toolchain.Config{
			ExesDir:         settings.Paths.ExesDir,
			BaseURL:         settings.Toolchain.BaseURL,
			DownloadTimeout: settings.Toolchain.DownloadTimeout.Duration,
			ProbeTimeout:    settings.Toolchain.ProbeTimeout.Duration,
		},
		app.durationCache,
	)

	waiterCfg := fswatch.DefaultWaiterConfig()
	waiterCfg.Quiet = settings.Transcode.QuietPeriod.Duration
	waiter := fswatch.NewWaiter(app.logger.With(slog.String("component", "waiter")), waiterCfg)
	watcher := fswatch.NewDirWatcher(app.logger.With(slog.String("component", "dirwatch")), settings.Watch.Debounce.Duration)

	// Step 5: Create the decoder
	if cfg.UseMockAudio {
		app.decoder = mock.NewDecoder()
	} else {
		app.decoder = beep.NewDecoder(
			app.logger.With(slog.String("engine", "beep")),
			gobeep.SampleRate(settings.Playback.SampleRate),
			settings.Playback.Buffer.Duration,
		)
	}

	// Step 6: Create services (with dependency injection)
	app.libraryService = service.NewLibraryService(app.logger, app.toolchain, metadata.NewReader(app.logger))

	app.playbackService = service.NewPlaybackService(app.logger, app.decoder, app.eventBus, service.PlaybackConfig{
		ReactionOffset: settings.Playback.ReactionOffset.Duration,
		MaxRestarts:    settings.Playback.MaxRestarts,
	})

	app.playlistService = service.NewPlaylistService(app.logger, app.libraryService, app.historyRepo, app.eventBus)

	app.progressService = service.NewProgressService(app.logger, app.eventBus, app.playbackService,
		settings.Playback.ProgressInterval.Duration)

	app.transcodeService = service.NewTranscodeService(app.logger, app.toolchain, waiter, metadata.NewWriter(), app.eventBus,
		service.TranscodeConfig{
			TempDir:           settings.Paths.TempDir,
			DreamifyFilter:    settings.Transcode.DreamifyFilter,
			DurationTolerance: settings.Transcode.DurationTolerance.Duration,
			Timeout:           settings.Transcode.Timeout.Duration,
			MatchTimeout:      settings.Transcode.MatchTimeout.Duration,
		})

	app.preferenceService = service.NewPreferenceService(app.logger, app.preferencesRepo)

	// Step 7: Create the view and the player that reports through it
	app.view = console.NewView(out, cfg.ShowProgress)

	autoInstall := settings.Toolchain.AutoInstall == nil || *settings.Toolchain.AutoInstall
	app.player = service.NewPlayerService(app.logger, service.PlayerDeps{
		Bus:         app.eventBus,
		Toolchain:   app.toolchain,
		Cache:       app.durationCache,
		History:     app.historyRepo,
		Notifier:    app.view,
		Watcher:     watcher,
		Library:     app.libraryService,
		Playback:    app.playbackService,
		Playlist:    app.playlistService,
		Progress:    app.progressService,
		Transcode:   app.transcodeService,
		Preferences: app.preferenceService,
	}, service.PlayerConfig{
		Throttle:    settings.Playback.Throttle.Duration,
		AutoInstall: autoInstall,
	})

	// Step 8: Create the presenter
	app.presenter = console.NewPresenter(app.logger, app.player, app.playlistService, app.eventBus, app.view)

	return app, nil
}

// openRepositories opens the sqlite database for durations and history and the
// TOML preferences file. Without a usable database, history falls back to the
// preferences file and durations are not cached.
func (a *Application) openRepositories() error {
	paths := a.settings.Paths

	prefs, err := kv.OpenFile(paths.Preferences)
	if err != nil {
		return fmt.Errorf("failed to open preferences: %w", err)
	}
	a.prefs = prefs
	a.preferencesRepo = kv.NewPreferencesRepository(prefs)

	store, err := sqlite.Open(paths.Database)
	if err != nil {
		a.logger.Warn("database unavailable, durations will not be cached",
			slog.String("path", paths.Database),
			slog.Any("error", err))
		a.historyRepo = kv.NewHistoryRepository(prefs)
		return nil
	}

	a.store = store
	a.durationCache = sqlite.NewDurationCache(store)
	a.historyRepo = sqlite.NewHistoryRepository(store)
	return nil
}

// Open loads path into the player.
func (a *Application) Open(ctx context.Context, path string) error {
	return a.player.Open(ctx, path)
}

// Restore opens the last track of the previous session, if there was one.
// It returns false when there is nothing to restore.
func (a *Application) Restore(ctx context.Context) (bool, error) {
	last, err := a.historyRepo.LoadLastTrack()
	if err != nil {
		return false, fmt.Errorf("failed to load last track: %w", err)
	}
	if last == "" {
		return false, nil
	}
	if _, err := os.Stat(last); err != nil {
		a.logger.Info("last track is gone", slog.String("path", last))
		return false, nil
	}

	if err := a.player.Open(ctx, last); err != nil {
		return false, err
	}
	return true, nil
}

// Run plays the loaded track and hands in to the presenter until the user quits.
func (a *Application) Run(ctx context.Context, in io.Reader) error {
	a.logger.Info("Cyder started")

	if err := a.player.Play(); err != nil {
		return err
	}
	a.view.Println("%s", "h for help")

	return a.presenter.Run(ctx, in)
}

// Shutdown gracefully shuts down the application.
// It is safe to call more than once; later calls return the first result.
func (a *Application) Shutdown() error {
	a.shutdownOnce.Do(func() {
		a.logger.Info("shutting down application")

		if a.presenter != nil {
			a.presenter.Shutdown()
		}

		var errs []error
		if a.player != nil {
			// The player owns the services and adapters it was given
			if err := a.player.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close player: %w", err))
			}
		}
		if a.transcodeService != nil {
			a.transcodeService.Wait()
		}

		errs = append(errs, a.closeInfrastructure())
		a.shutdownErr = errors.Join(errs...)

		if a.shutdownErr != nil {
			a.logger.Warn("application shutdown finished with errors", slog.Any("error", a.shutdownErr))
		} else {
			a.logger.Info("application shutdown complete")
		}
		_ = a.logCloser.Close()
	})

	return a.shutdownErr
}

func (a *Application) closeInfrastructure() error {
	var errs []error
	if a.eventBus != nil {
		if err := a.eventBus.Close(); err != nil && !errors.Is(err, eventbus.ErrBusClosed) {
			errs = append(errs, err)
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Player returns the player.
func (a *Application) Player() *service.PlayerService {
	return a.player
}

// Toolchain returns the binary resolver and installer.
func (a *Application) Toolchain() *toolchain.Toolchain {
	return a.toolchain
}

// GetServices returns the services for direct use by commands and tests.
func (a *Application) GetServices() (*service.LibraryService, *service.PlaylistService, *service.TranscodeService, *service.PreferenceService) {
	return a.libraryService, a.playlistService, a.transcodeService, a.preferenceService
}

// GetEventBus returns the event bus.
func (a *Application) GetEventBus() ports.EventBus {
	return a.eventBus
}

// Decoder returns the decoder the engine plays through.
func (a *Application) Decoder() ports.Decoder {
	return a.decoder
}

// View returns the console view.
func (a *Application) View() *console.View {
	return a.view
}

// Logger returns the application logger.
func (a *Application) Logger() *slog.Logger {
	return a.logger
}
