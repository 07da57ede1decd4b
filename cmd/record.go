// Package cmd holds auxiliary CLI commands attached to the main binary.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/recnode/recnode/internal/capture"
	"github.com/recnode/recnode/internal/events"
	"github.com/recnode/recnode/internal/logging"
	"github.com/recnode/recnode/internal/session"
)

// CreateRecordCmd creates the record command: a headless capture session
// against the synthetic engine, written straight to a file. Useful for
// smoke-testing the pipeline without the HTTP surface.
func CreateRecordCmd() *cobra.Command {
	var (
		mic      bool
		camera   bool
		duration time.Duration
		output   string
		logJSON  bool
	)

	cmd := &cobra.Command{
		Use:   "record",
		Short: "Run one headless capture session",
		Long: `Starts a capture session over the synthetic test sources, records for ` +
			`the given duration (or until interrupted), finalizes and writes the ` +
			`recording blob to the output file.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			loggingConfig := logging.Config{Level: "info", Format: "text"}
			if logJSON {
				loggingConfig.Format = "json"
			}
			logging.Initialize(loggingConfig)
			logger := logging.GetLogger("record")

			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			bus := events.New()
			manager := session.NewManager(capture.NewTestEngine(), bus, logger)

			sess, err := manager.Start(ctx, session.Options{Mic: mic, Camera: camera})
			if err != nil {
				return err
			}
			logger.Info("Recording started", "mode", sess.Mode(), "duration", duration)

			select {
			case <-time.After(duration):
			case <-ctx.Done():
				logger.Info("Interrupted, finalizing")
			}

			sess.Stop()
			result, err := sess.Wait(context.Background())
			if err != nil {
				return err
			}

			if err := os.WriteFile(output, result.Blob, 0o644); err != nil {
				return err
			}
			logger.Info("Recording written", "path", output,
				"bytes", len(result.Blob), "recorded", result.Duration)
			return nil
		},
	}

	cmd.Flags().BoolVar(&mic, "mic", false, "Capture the synthetic microphone track")
	cmd.Flags().BoolVar(&camera, "camera", false, "Composite the synthetic camera as a PIP overlay")
	cmd.Flags().DurationVar(&duration, "duration", 5*time.Second, "Recording duration")
	cmd.Flags().StringVar(&output, "output", "recording.bin", "Output file for the recording blob")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Use JSON log format")

	return cmd
}
