package controller

import (
	"context"
	"net/http"
	"time"

	"hkco-server/internal/modules/telemetry/types"
)

// TelemetryService is the part of the telemetry service the HTTP layer uses.
type TelemetryService interface {
	Current() types.Reading
	Changed() <-chan struct{}
	ReportPayload(ctx context.Context, source types.Source, payload []byte) (types.Reading, error)
	History(ctx context.Context, limit int) ([]types.JournalEntry, error)
}

type TelemetryController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type telemetryControllerImpl struct {
	service   TelemetryService
	heartbeat time.Duration
}

const defaultHeartbeat = 15 * time.Second

// NewTelemetryController builds the HTTP handlers. A non-positive heartbeat
// falls back to 15s.
func NewTelemetryController(service TelemetryService, heartbeat time.Duration) TelemetryController {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &telemetryControllerImpl{service: service, heartbeat: heartbeat}
}

func (c *telemetryControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/temperature", c.handleGetTemperature)
	mux.HandleFunc("POST /api/temperature", c.handlePostTemperature)
	mux.HandleFunc("GET /api/temperature/stream", c.handleStream)
	mux.HandleFunc("GET /api/temperature/history", c.handleHistory)
	mux.HandleFunc("GET /live-temp", c.handleLiveTemp)
	mux.HandleFunc("GET /partials/current-reading", c.handleCurrentReadingPartial)
}
