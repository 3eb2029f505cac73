package main

import (
	"errors"
	"fmt"

	"github.com/openemg/emglink/internal/session"
	"github.com/openemg/emglink/internal/transport"
)

// formatUserError turns internal errors into actionable one-liners for the
// terminal.
func formatUserError(err error) string {
	switch {
	case errors.Is(err, transport.ErrDeviceNotFound):
		return fmt.Sprintf("%v - is the device powered on and in range? Try 'emglink scan'", err)
	case errors.Is(err, transport.ErrEndpointNotFound):
		return fmt.Sprintf("%v - the device does not expose the expected service; check the UUIDs in your config", err)
	case errors.Is(err, session.ErrHeartbeatTimeout):
		return "device stopped responding to heartbeats; link presumed dead"
	default:
		return err.Error()
	}
}
