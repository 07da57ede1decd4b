package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/recnode/recnode/cmd"
	"github.com/recnode/recnode/internal/api"
	"github.com/recnode/recnode/internal/capture"
	"github.com/recnode/recnode/internal/config"
	"github.com/recnode/recnode/internal/engine"
	"github.com/recnode/recnode/internal/events"
	"github.com/recnode/recnode/internal/export"
	"github.com/recnode/recnode/internal/library"
	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/metrics"
	"github.com/recnode/recnode/internal/session"
	"github.com/recnode/recnode/internal/store"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"recnode.toml"`

	// Server settings
	Port string `help:"Address to listen on" short:"p" default:":8080" toml:"server.port" env:"SERVER_PORT"`

	// Storage settings
	StorePath string `help:"Path to the recording store" default:"recnode.db" toml:"storage.path" env:"STORE_PATH"`

	// Transcoding engine settings
	FFmpegPath  string `help:"Path to the ffmpeg binary" default:"" toml:"engine.ffmpeg" env:"FFMPEG_PATH"`
	FFprobePath string `help:"Path to the ffprobe binary" default:"" toml:"engine.ffprobe" env:"FFPROBE_PATH"`

	// Auth settings
	AuthUsername string `help:"Basic auth username" default:"" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Metrics settings
	MetricsEnabled bool `help:"Expose Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Logging settings
	LoggingLevel    string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat   string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingSession  string `help:"Session logging level" default:"info" toml:"logging.session" env:"LOGGING_SESSION"`
	LoggingExport   string `help:"Export logging level" default:"info" toml:"logging.export" env:"LOGGING_EXPORT"`
	LoggingAPI      string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingFFmpeg   string `help:"FFmpeg output logging level" default:"warn" toml:"logging.ffmpeg" env:"LOGGING_FFMPEG"`
	LoggingHTTP     string `help:"HTTP request logging level" default:"info" toml:"logging.http" env:"LOGGING_HTTP"`
}

func main() {
	cli := humacli.New(func(hooks humacli.Hooks, opts *Options) {
		if loadErr := config.LoadConfig(opts, nil); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"session": opts.LoggingSession,
				"export":  opts.LoggingExport,
				"api":     opts.LoggingAPI,
				"ffmpeg":  opts.LoggingFFmpeg,
				"http":    opts.LoggingHTTP,
			},
		})
		logger := logging.GetLogger("main")

		eventBus := events.New()

		// Forward every log entry onto the bus for the SSE log stream.
		var logSeq atomic.Uint64
		logging.SetCallback(func(e logging.Entry) {
			eventBus.Publish(events.LogEntryEvent{
				Seq:        logSeq.Add(1),
				Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
				Level:      e.Level,
				Module:     e.Module,
				Message:    e.Message,
				Attributes: e.Attributes,
			})
		})

		// Session and recording metrics derive from bus events so sessions
		// finalized outside the API (display track ended) are counted too.
		eventBus.Subscribe(func(e events.SessionStateEvent) {
			switch e.State {
			case string(session.StateActive):
				metrics.SessionActive.Set(1)
			case string(session.StateIdle), string(session.StateFailed):
				metrics.SessionActive.Set(0)
			}
		})
		eventBus.Subscribe(func(e events.RecordingSavedEvent) {
			metrics.RecordingBytes.Observe(float64(e.Bytes))
			metrics.RecordingDurationSeconds.Observe(e.Duration)
		})

		recordingStore, err := store.Open(opts.StorePath, logging.GetLogger("store"))
		if err != nil {
			logger.Error("Failed to open recording store", "error", err, "path", opts.StorePath)
			os.Exit(1)
		}

		execEngine := engine.NewExecEngine(logging.GetLogger("engine"))
		execEngine.FFmpegPath = opts.FFmpegPath
		execEngine.FFprobePath = opts.FFprobePath

		editCfg, err := config.LoadEditConfig(opts.Config)
		if err != nil {
			logger.Warn("Failed to load edit config, using defaults", "error", err)
		}

		lib := library.New(recordingStore, execEngine, editCfg.Policy, logging.GetLogger("library"))
		if err := lib.Restore(context.Background()); err != nil {
			logger.Warn("Failed to restore persisted recording", "error", err)
		}

		presets := export.DefaultPresets()
		if len(editCfg.Presets) > 0 {
			presets = export.NewPresets(editCfg.Presets)
		}
		exporter := export.New(execEngine, presets, eventBus, logging.GetLogger("export"))

		// The synthetic engine stands in for a platform capture backend;
		// sources and permissions behave like the real thing.
		sessions := session.NewManager(capture.NewTestEngine(), eventBus, logging.GetLogger("session"))

		// Edit thresholds and the preset table reload live.
		watcher := config.NewConfigWatcher(opts.Config, config.LoadEditConfig, logger)
		watcher.OnReload(func(cfg config.EditConfig) {
			lib.SetPolicy(cfg.Policy)
			if len(cfg.Presets) > 0 {
				exporter.SetPresets(export.NewPresets(cfg.Presets))
			}
			logger.Info("Edit configuration reloaded")
		})

		apiOpts := &api.Options{
			AuthUsername: opts.AuthUsername,
			AuthPassword: opts.AuthPassword,
			Sessions:     sessions,
			Library:      lib,
			Exporter:     exporter,
			EventBus:     eventBus,
		}
		if opts.MetricsEnabled {
			apiOpts.PrometheusHandler = promhttp.Handler()
		}
		server := api.NewServer(apiOpts)

		hooks.OnStart(func() {
			if watchErr := watcher.Start(); watchErr != nil {
				logger.Warn("Config watcher failed to start, hot-reload disabled", "error", watchErr)
			}

			logger.Info("Starting HTTP server", "addr", opts.Port)
			if startErr := server.Start(opts.Port); startErr != nil && !errors.Is(startErr, http.ErrServerClosed) {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")

			// Finalize any live session before the process exits so the
			// recording is not lost.
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			sessions.Shutdown(shutdownCtx)
			cancel()

			if stopErr := server.Stop(); stopErr != nil {
				logger.Error("Error stopping HTTP server", "error", stopErr)
			}
			_ = watcher.Stop()
			_ = recordingStore.Close()
		})
	})

	cli.Root().AddCommand(cmd.CreateRecordCmd())

	cli.Run()
}
