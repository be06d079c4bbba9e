package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/lexiqai/mic-speech-sentiment/internal/observability"
	"github.com/lexiqai/mic-speech-sentiment/internal/sensor"
)

const correlationHeader = "X-Correlation-ID"

// maxCommandBytes bounds the /command request body
const maxCommandBytes = 64 << 10

func (a *api) getReadings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, a.sensor.GetReadings())
}

func (a *api) doCommand(w http.ResponseWriter, r *http.Request) {
	correlationID := r.Header.Get(correlationHeader)
	if correlationID == "" {
		correlationID = observability.NewCorrelationID()
	}
	w.Header().Set(correlationHeader, correlationID)
	logger := observability.WithCorrelationID(a.logger, correlationID)

	var cmd map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxCommandBytes)).Decode(&cmd); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	resp, err := a.sensor.DoCommand(logger.WithContext(r.Context()), cmd)
	switch {
	case errors.Is(err, sensor.ErrUnrecognizedCommand), errors.Is(err, sensor.ErrMissingCommand):
		logger.Warn().Err(err).Msg("Rejected command")
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, sensor.ErrSensorClosed):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		logger.Error().Err(err).Msg("Command failed")
		observability.RecordError("command", "httpapi")
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
