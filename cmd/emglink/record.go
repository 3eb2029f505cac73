package main

import (
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openemg/emglink/internal/session"
	"github.com/openemg/emglink/internal/transport/blegatt"
)

// recordCmd represents the record command
var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Record a bounded capture window to a CSV log",
	Long: `Connects to the device and appends decoded samples to a CSV log until
the recording window elapses. The window ends the whole session: the device
is disconnected when the capture is done.

The log has a header row naming the 8 channels; each data row carries the
elapsed seconds since the first recorded sample.

Examples:
  # 30 second capture (default window)
  emglink record --out capture.csv

  # 5 minute capture from a specific device
  emglink record --out capture.csv --duration 5m --name CC0479`,
	Args: cobra.NoArgs,
	RunE: runRecord,
}

var (
	recordOut      string
	recordDuration time.Duration
)

func init() {
	addSessionFlags(recordCmd)
	recordCmd.Flags().StringVar(&recordOut, "out", "", "Destination CSV file (required)")
	recordCmd.Flags().DurationVar(&recordDuration, "duration", 0, "Recording window length (default from config)")
	_ = recordCmd.MarkFlagRequired("out")
}

func runRecord(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := sessionConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Recording.Enabled = true
	cfg.Recording.Path = recordOut
	if cmd.Flags().Changed("duration") {
		cfg.Recording.Duration = recordDuration
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	s, err := session.New(cfg, blegatt.New(logger), logger)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Recording %s for %s. Press Ctrl+C to abort...\n",
		cfg.DeviceName, cfg.Recording.Duration)

	if err := s.Run(ctx); err != nil {
		return err
	}

	fmt.Println(color.GreenString("Recording complete: %s", recordOut))
	return nil
}
