package sensor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// Command names accepted by DoCommand
const (
	CommandStartListening = "start_listening"
	CommandStopListening  = "stop_listening"
	CommandGetStatus      = "get_status"
)

var (
	// ErrUnrecognizedCommand is returned for command names the sensor does not know
	ErrUnrecognizedCommand = errors.New("unrecognized command")
	// ErrMissingCommand is returned when the request has no usable "command" key
	ErrMissingCommand = errors.New("missing command")
	// ErrSensorClosed is returned by start_listening after the sensor was closed
	ErrSensorClosed = errors.New("sensor is closed")
)

// Dispatcher maps command names onto a Controller
type Dispatcher struct {
	ctrl   *Controller
	logger zerolog.Logger
}

// NewDispatcher creates a dispatcher for ctrl
func NewDispatcher(ctrl *Controller, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{ctrl: ctrl, logger: logger}
}

// Dispatch runs the named command
func (d *Dispatcher) Dispatch(ctx context.Context, name string) (map[string]any, error) {
	logger := d.logger.With().Str("command", name).Logger()

	switch name {
	case CommandStartListening:
		if d.ctrl.Start() {
			logger.Info().Msg("Listening started")
		} else if d.ctrl.IsClosed() {
			return nil, ErrSensorClosed
		}
		return map[string]any{"status": "started"}, nil

	case CommandStopListening:
		if d.ctrl.Stop() {
			logger.Info().Msg("Listening stopped")
		}
		return map[string]any{"status": "stopped"}, nil

	case CommandGetStatus:
		return d.ctrl.Status().Map(), nil
	}

	logger.Warn().Msg("Rejected unrecognized command")
	return nil, fmt.Errorf("%w: %q", ErrUnrecognizedCommand, name)
}
