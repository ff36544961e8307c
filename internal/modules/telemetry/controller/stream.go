package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"hkco-server/internal/modules/telemetry/types"
	"hkco-server/internal/utils"
)

// handleStream pushes the current reading on connect and again after every
// accepted write until the client goes away.
func (c *telemetryControllerImpl) handleStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.WriteError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	heartbeat := time.NewTicker(c.heartbeat)
	defer heartbeat.Stop()

	// Subscribe before reading so a write between the two is not missed.
	changed := c.service.Changed()
	if err := writeReadingEvent(w, c.service.Current()); err != nil {
		slog.Debug("stream: client write failed", "error", err)
		return
	}
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-changed:
			changed = c.service.Changed()
			if err := writeReadingEvent(w, c.service.Current()); err != nil {
				slog.Debug("stream: client write failed", "error", err)
				return
			}
		case <-heartbeat.C:
			if _, err := io.WriteString(w, ": heartbeat\n\n"); err != nil {
				slog.Debug("stream: heartbeat write failed", "error", err)
				return
			}
		}
		flusher.Flush()
	}
}

func writeReadingEvent(w io.Writer, reading types.Reading) error {
	data, err := json.Marshal(reading)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: reading\ndata: %s\n\n", data)
	return err
}
