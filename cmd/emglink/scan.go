package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/openemg/emglink/internal/scan"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby BLE devices",
	Long: `Lists nearby BLE peripherals so you can find the advertised name to
pass to 'stream' or 'record' via --name.

Examples:
  # Default 10 second scan
  emglink scan

  # Longer scan filtered by name
  emglink scan --timeout 30s --name CC0479`,
	Args: cobra.NoArgs,
	RunE: runScan,
}

var (
	scanTimeout time.Duration
	scanName    string
)

func init() {
	scanCmd.Flags().DurationVar(&scanTimeout, "timeout", 10*time.Second, "Scan duration")
	scanCmd.Flags().StringVar(&scanName, "name", "", "Only list devices advertising this name")
}

func runScan(cmd *cobra.Command, args []string) error {
	logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	ctx, cancel := signalContext()
	defer cancel()

	scanner := scan.NewScanner(logger)
	devices, err := scanner.Scan(ctx, &scan.Options{
		Duration:   scanTimeout,
		NameFilter: scanName,
	})
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No devices found.")
		return nil
	}

	bold := color.New(color.Bold)
	_, _ = bold.Printf("%-24s %-20s %6s\n", "NAME", "ADDRESS", "RSSI")
	for _, dev := range devices {
		name := dev.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Printf("%-24s %-20s %6d\n", name, dev.Address, dev.RSSI)
	}
	return nil
}
