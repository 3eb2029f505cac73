package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/openemg/emglink/internal/session"
)

// addSessionFlags registers the connection and heartbeat flags shared by
// the stream and record commands. Zero values mean "keep the config/default
// value"; only flags the user actually set override the config file.
func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Device name filter (e.g. CC0479)")
	cmd.Flags().Duration("interval", 0, "Inter-beat interval between heartbeats")
	cmd.Flags().Duration("soft-timeout", 0, "Wait bound for a single heartbeat response")
	cmd.Flags().Duration("hard-timeout", 0, "Total silence bound before the link is declared dead")
	cmd.Flags().Duration("scan-timeout", 0, "Device discovery timeout")
	cmd.Flags().Duration("connect-timeout", 0, "Connection timeout")
}

// sessionConfig loads the YAML config named by --config (or defaults) and
// applies explicit flag overrides on top.
func sessionConfig(cmd *cobra.Command) (*session.Config, error) {
	cfgPath, _ := cmd.Flags().GetString("config")
	cfg, err := session.LoadConfig(cfgPath)
	if err != nil {
		return nil, err
	}

	setString := func(flag string, dst *string) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetString(flag)
		}
	}
	setDuration := func(flag string, dst *time.Duration) {
		if cmd.Flags().Changed(flag) {
			*dst, _ = cmd.Flags().GetDuration(flag)
		}
	}

	setString("name", &cfg.DeviceName)
	setDuration("interval", &cfg.HeartbeatInterval)
	setDuration("soft-timeout", &cfg.SoftTimeout)
	setDuration("hard-timeout", &cfg.HardTimeout)
	setDuration("scan-timeout", &cfg.ScanTimeout)
	setDuration("connect-timeout", &cfg.ConnectTimeout)

	return cfg, nil
}
