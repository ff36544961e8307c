package telemetry

import (
	"net/http"
	"time"

	"hkco-server/internal/modules/telemetry/controller"
	"hkco-server/internal/modules/telemetry/service"
)

func RegisterFeature(mux *http.ServeMux, svc *service.Service, streamHeartbeat time.Duration) {
	telemetryController := controller.NewTelemetryController(svc, streamHeartbeat)
	telemetryController.RegisterRoutes(mux)
}
