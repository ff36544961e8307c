package httpapi

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"hkco-server/internal/config"
)

// NewServer wraps handler with request IDs and access logging. There is no
// write timeout because /api/temperature/stream holds responses open.
// Request contexts are cancelled as soon as Shutdown starts, so long-lived
// streams return instead of holding the server open until the deadline.
func NewServer(cfg config.Config, handler http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	baseCtx, cancel := context.WithCancel(context.Background())
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           requestID(requestLogger(logger, handler)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	srv.RegisterOnShutdown(cancel)
	return srv
}
