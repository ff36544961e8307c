package httpapi

import (
	"database/sql"
	"net/http"
)

// Deps are the infrastructure endpoints mounted next to the feature modules.
// Nil fields are skipped.
type Deps struct {
	DB      *sql.DB
	MQTT    ConnectionStatus
	Metrics http.Handler
}

func NewMux(deps Deps) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, deps.DB, deps.MQTT)
	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics)
	}
	return mux
}
