package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openemg/emglink/internal/session"
	"github.com/openemg/emglink/internal/transport"
)

func TestFormatVersion(t *testing.T) {
	assert.Equal(t, "v1.2.3", formatVersion("1.2.3"))
	assert.Equal(t, "v2.0", formatVersion("2.0"))
	assert.Equal(t, "dev", formatVersion("dev"))
	assert.Equal(t, "", formatVersion(""))
}

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{
			name:     "device not found suggests scan",
			err:      fmt.Errorf("%w: no advertisement named %q", transport.ErrDeviceNotFound, "CC0479"),
			contains: "emglink scan",
		},
		{
			name:     "endpoint not found mentions UUIDs",
			err:      fmt.Errorf("%w: service xyz", transport.ErrEndpointNotFound),
			contains: "UUIDs",
		},
		{
			name:     "heartbeat timeout is user friendly",
			err:      session.ErrHeartbeatTimeout,
			contains: "stopped responding",
		},
		{
			name:     "other errors pass through",
			err:      errors.New("something else"),
			contains: "something else",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, formatUserError(tt.err), tt.contains)
		})
	}
}

func TestSessionConfigFlagOverrides(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("config", "", "")
	addSessionFlags(cmd)

	require.NoError(t, cmd.Flags().Set("name", "EMG-7"))
	require.NoError(t, cmd.Flags().Set("hard-timeout", "9s"))

	cfg, err := sessionConfig(cmd)
	require.NoError(t, err)

	assert.Equal(t, "EMG-7", cfg.DeviceName)
	assert.Equal(t, 9*time.Second, cfg.HardTimeout)
	// Flags left untouched keep the defaults.
	assert.Equal(t, 2*time.Second, cfg.SoftTimeout)
	assert.Equal(t, 2*time.Second, cfg.HeartbeatInterval)
}

func TestConfigureLoggerRejectsBadLevel(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("log-level", "chatty", "")
	cmd.Flags().Bool("verbose", false, "")
	cmd.Flags().String("log-file", "", "")

	_, err := configureLogger(cmd)
	assert.Error(t, err)
}
