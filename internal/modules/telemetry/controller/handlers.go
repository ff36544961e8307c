package controller

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"

	"hkco-server/internal/modules/telemetry/store"
	"hkco-server/internal/modules/telemetry/types"
	"hkco-server/internal/modules/telemetry/views"
	"hkco-server/internal/utils"
)

const pollSeconds = 1

func (c *telemetryControllerImpl) handleGetTemperature(w http.ResponseWriter, r *http.Request) {
	utils.WriteJSON(w, http.StatusOK, types.Response{Success: true, Data: c.service.Current()})
}

func (c *telemetryControllerImpl) handlePostTemperature(w http.ResponseWriter, r *http.Request) {
	// One byte over the limit is enough for the parser to reject the body.
	body, err := io.ReadAll(io.LimitReader(r.Body, store.MaxPayloadBytes+1))
	if err != nil {
		slog.Warn("temperature: read body failed", "error", err)
		writeFailure(w, http.StatusBadRequest, invalidRequestMsg)
		return
	}

	reading, err := c.service.ReportPayload(r.Context(), types.SourceHTTP, body)
	if err != nil {
		slog.Warn("temperature: rejected report", "error", err)
		writeFailure(w, http.StatusBadRequest, invalidRequestMsg)
		return
	}

	utils.WriteJSON(w, http.StatusOK, types.Response{
		Success: true,
		Message: updatedMsg,
		Data:    reading,
	})
}

func (c *telemetryControllerImpl) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, err := parseHistoryLimit(r)
	if err != nil {
		writeFailure(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := c.service.History(r.Context(), limit)
	if err != nil {
		slog.Error("history: read journal failed", "error", err)
		writeFailure(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	utils.WriteJSON(w, http.StatusOK, types.Response{Success: true, Data: entries})
}

func (c *telemetryControllerImpl) handleLiveTemp(w http.ResponseWriter, r *http.Request) {
	data := views.LiveTempData{
		PollSeconds: pollSeconds,
		Reading:     views.NewReadingPartial(c.service.Current()),
	}
	var buf bytes.Buffer
	if err := views.RenderLiveTemp(&buf, data); err != nil {
		slog.Error("live-temp template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("live-temp: write response failed", "error", err)
	}
}

func (c *telemetryControllerImpl) handleCurrentReadingPartial(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := views.RenderCurrentReadingPartial(&buf, views.NewReadingPartial(c.service.Current())); err != nil {
		slog.Error("current reading partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if _, err := w.Write(buf.Bytes()); err != nil {
		slog.Error("current reading: write response failed", "error", err)
	}
}
