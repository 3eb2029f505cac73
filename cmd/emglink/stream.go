package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openemg/emglink/internal/session"
	"github.com/openemg/emglink/internal/transport/blegatt"
	"github.com/openemg/emglink/internal/wire"
)

// streamCmd represents the stream command
var streamCmd = &cobra.Command{
	Use:   "stream",
	Short: "Stream live samples from the device",
	Long: `Connects to the device, starts the heartbeat exchange, and prints one
line per decoded 8-channel sample frame until the link dies or Ctrl+C.

Examples:
  # Stream from the default device
  emglink stream

  # Stream from a specific device with a longer hard timeout
  emglink stream --name CC0479 --hard-timeout 10s`,
	Args: cobra.NoArgs,
	RunE: runStream,
}

func init() {
	addSessionFlags(streamCmd)
}

func runStream(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	cfg, err := sessionConfig(cmd)
	if err != nil {
		return err
	}
	cfg.Recording.Enabled = false

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	printSampleHeader()

	s, err := session.New(cfg, blegatt.New(logger), logger,
		session.WithSampleSink(printSampleRow))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Connecting to %s. Press Ctrl+C to stop...\n", cfg.DeviceName)
	return s.Run(ctx)
}

func printSampleHeader() {
	header := make([]string, wire.ChannelCount)
	for i := range header {
		header[i] = fmt.Sprintf("ch%d", i+1)
	}
	fmt.Println(color.CyanString(strings.Join(header, "\t")))
}

func printSampleRow(channels [wire.ChannelCount]uint16) {
	row := make([]string, wire.ChannelCount)
	for i, v := range channels {
		row[i] = fmt.Sprintf("%d", v)
	}
	fmt.Println(strings.Join(row, "\t"))
}
