package controller

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"hkco-server/internal/modules/telemetry/service"
	"hkco-server/internal/modules/telemetry/store"
	"hkco-server/internal/modules/telemetry/types"
	"hkco-server/internal/modules/telemetry/views"
)

var testTime = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type historyStub struct {
	*service.Service
	entries []types.JournalEntry
	err     error
}

func (h *historyStub) History(context.Context, int) ([]types.JournalEntry, error) {
	return h.entries, h.err
}

func newTestService() *service.Service {
	st := store.New(store.WithClock(func() time.Time { return testTime }))
	return service.NewService(st, nil, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func newTestController(svc TelemetryService) *telemetryControllerImpl {
	return NewTelemetryController(svc, time.Hour).(*telemetryControllerImpl)
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return env
}

func decodeReading(t *testing.T, raw json.RawMessage) types.Reading {
	t.Helper()
	var r types.Reading
	if err := json.Unmarshal(raw, &r); err != nil {
		t.Fatalf("decode reading %q: %v", raw, err)
	}
	return r
}

func post(ctrl *telemetryControllerImpl, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/temperature", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ctrl.handlePostTemperature(rec, req)
	return rec
}

func get(ctrl *telemetryControllerImpl) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/temperature", nil)
	rec := httptest.NewRecorder()
	ctrl.handleGetTemperature(rec, req)
	return rec
}

func Test_handleGetTemperature(t *testing.T) {
	t.Run("returns default reading on fresh store", func(t *testing.T) {
		ctrl := newTestController(newTestService())

		rec := get(ctrl)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
			t.Errorf("Content-Type = %q; want application/json", ct)
		}
		env := decodeEnvelope(t, rec)
		if !env.Success {
			t.Error("success = false; want true")
		}
		got := decodeReading(t, env.Data)
		want := types.Reading{Temperature: 25, Humidity: 60, Location: "Storage Facility", ObservedAt: testTime}
		if !got.ObservedAt.Equal(want.ObservedAt) || got.Temperature != want.Temperature ||
			got.Humidity != want.Humidity || got.Location != want.Location {
			t.Errorf("data = %+v; want %+v", got, want)
		}
	})

	t.Run("timestamp is RFC 3339", func(t *testing.T) {
		ctrl := newTestController(newTestService())

		body := get(ctrl).Body.String()

		if !strings.Contains(body, `"timestamp":"2026-06-01T12:00:00Z"`) {
			t.Errorf("body = %q; want RFC 3339 timestamp", body)
		}
	})
}

func Test_handlePostTemperature(t *testing.T) {
	t.Run("partial update keeps other fields", func(t *testing.T) {
		ctrl := newTestController(newTestService())

		rec := post(ctrl, `{"temperature": 4.5, "location": "Cold Room B"}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d, body %q", rec.Code, http.StatusOK, rec.Body.String())
		}
		env := decodeEnvelope(t, rec)
		if !env.Success || env.Message != "Temperature updated successfully" {
			t.Errorf("envelope = %+v", env)
		}
		got := decodeReading(t, env.Data)
		if got.Temperature != 4.5 || got.Humidity != 60 || got.Location != "Cold Room B" {
			t.Errorf("data = %+v", got)
		}

		after := decodeReading(t, decodeEnvelope(t, get(ctrl)).Data)
		if after != got {
			t.Errorf("GET after POST = %+v; want %+v", after, got)
		}
	})

	t.Run("empty object changes only timestamp", func(t *testing.T) {
		ctrl := newTestController(newTestService())

		rec := post(ctrl, `{}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		got := decodeReading(t, decodeEnvelope(t, rec).Data)
		if got.Temperature != 25 || got.Humidity != 60 || got.Location != "Storage Facility" {
			t.Errorf("data = %+v; want defaults", got)
		}
	})

	t.Run("zero values are applied", func(t *testing.T) {
		ctrl := newTestController(newTestService())

		got := decodeReading(t, decodeEnvelope(t, post(ctrl, `{"temperature":0,"humidity":0}`)).Data)

		if got.Temperature != 0 || got.Humidity != 0 {
			t.Errorf("data = %+v; want zero temperature and humidity", got)
		}
	})

	t.Run("wrong field type retains previous value", func(t *testing.T) {
		ctrl := newTestController(newTestService())
		post(ctrl, `{"temperature": 3}`)

		rec := post(ctrl, `{"temperature": "warm", "humidity": 90}`)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		got := decodeReading(t, decodeEnvelope(t, rec).Data)
		if got.Temperature != 3 || got.Humidity != 90 {
			t.Errorf("data = %+v", got)
		}
	})

	bad := []struct {
		name string
		body string
	}{
		{"invalid json", `{"temperature":`},
		{"empty body", ``},
		{"array", `[1,2]`},
		{"null", `null`},
		{"oversized", `{"location":"` + strings.Repeat("x", store.MaxPayloadBytes) + `"}`},
	}
	for _, tt := range bad {
		t.Run("rejects "+tt.name, func(t *testing.T) {
			ctrl := newTestController(newTestService())
			before := get(ctrl).Body.String()

			rec := post(ctrl, tt.body)

			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d; want %d", rec.Code, http.StatusBadRequest)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != `{"success":false,"error":"Invalid request"}` {
				t.Errorf("body = %q", got)
			}
			if after := get(ctrl).Body.String(); after != before {
				t.Errorf("reading changed after rejected report: %q -> %q", before, after)
			}
		})
	}
}

func Test_handleHistory(t *testing.T) {
	t.Run("returns entries", func(t *testing.T) {
		stub := &historyStub{
			Service: newTestService(),
			entries: []types.JournalEntry{{ID: 7, Temperature: 4, Location: "Dock 3", Source: types.SourceMQTT, ObservedAt: testTime}},
		}
		ctrl := newTestController(stub)
		req := httptest.NewRequest(http.MethodGet, "/api/temperature/history?limit=10", nil)
		rec := httptest.NewRecorder()

		ctrl.handleHistory(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		var got struct {
			Success bool                 `json:"success"`
			Data    []types.JournalEntry `json:"data"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if !got.Success || len(got.Data) != 1 || got.Data[0].ID != 7 || got.Data[0].Source != types.SourceMQTT {
			t.Errorf("body = %+v", got)
		}
	})

	t.Run("empty journal is an empty list", func(t *testing.T) {
		ctrl := newTestController(newTestService())
		req := httptest.NewRequest(http.MethodGet, "/api/temperature/history", nil)
		rec := httptest.NewRecorder()

		ctrl.handleHistory(rec, req)

		if got := strings.TrimSpace(rec.Body.String()); got != `{"success":true,"data":[]}` {
			t.Errorf("body = %q", got)
		}
	})

	t.Run("journal error is 500", func(t *testing.T) {
		ctrl := newTestController(&historyStub{Service: newTestService(), err: errors.New("locked")})
		req := httptest.NewRequest(http.MethodGet, "/api/temperature/history", nil)
		rec := httptest.NewRecorder()

		ctrl.handleHistory(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("status = %d; want %d", rec.Code, http.StatusInternalServerError)
		}
	})

	for _, q := range []string{"abc", "0", "-1", "501"} {
		t.Run("invalid limit "+q, func(t *testing.T) {
			ctrl := newTestController(newTestService())
			req := httptest.NewRequest(http.MethodGet, "/api/temperature/history?limit="+q, nil)
			rec := httptest.NewRecorder()

			ctrl.handleHistory(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d; want %d", rec.Code, http.StatusBadRequest)
			}
			if env := decodeEnvelope(t, rec); env.Success || env.Error == "" {
				t.Errorf("envelope = %+v", env)
			}
		})
	}
}

func Test_parseHistoryLimit(t *testing.T) {
	tests := []struct {
		query   string
		want    int
		wantErr bool
	}{
		{"", 50, false},
		{"?limit=1", 1, false},
		{"?limit=500", 500, false},
		{"?limit=501", 0, true},
		{"?limit=x", 0, true},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/api/temperature/history"+tt.query, nil)
		got, err := parseHistoryLimit(req)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("parseHistoryLimit(%q) = %d, %v; want %d, err=%v", tt.query, got, err, tt.want, tt.wantErr)
		}
	}
}

func Test_handleLiveTemp(t *testing.T) {
	if err := views.LoadTemplates(); err != nil {
		t.Fatalf("LoadTemplates: %v", err)
	}
	ctrl := newTestController(newTestService())

	t.Run("page", func(t *testing.T) {
		rec := httptest.NewRecorder()
		ctrl.handleLiveTemp(rec, httptest.NewRequest(http.MethodGet, "/live-temp", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("Content-Type = %q", ct)
		}
		if body := rec.Body.String(); !strings.Contains(body, "25.0&deg;C") || !strings.Contains(body, "77.0&deg;F") {
			t.Errorf("body missing reading: %q", body)
		}
	})

	t.Run("partial", func(t *testing.T) {
		post(ctrl, `{"temperature": 10, "location": "Dock 3"}`)
		rec := httptest.NewRecorder()
		ctrl.handleCurrentReadingPartial(rec, httptest.NewRequest(http.MethodGet, "/partials/current-reading", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d; want %d", rec.Code, http.StatusOK)
		}
		body := rec.Body.String()
		for _, want := range []string{"10.0&deg;C", "50.0&deg;F", "Dock 3", "Jun 1, 12:00:00 PM UTC"} {
			if !strings.Contains(body, want) {
				t.Errorf("partial missing %q", want)
			}
		}
	})
}

func TestRegisterRoutes_stream(t *testing.T) {
	svc := newTestService()
	mux := http.NewServeMux()
	NewTelemetryController(svc, time.Hour).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/temperature/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("stream request: %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("Content-Type = %q", ct)
	}

	scanner := bufio.NewScanner(resp.Body)
	readEvent := func() types.Reading {
		t.Helper()
		var name, data string
		for scanner.Scan() {
			line := scanner.Text()
			switch {
			case strings.HasPrefix(line, "event: "):
				name = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = strings.TrimPrefix(line, "data: ")
			case line == "" && data != "":
				if name != "reading" {
					t.Fatalf("event = %q; want reading", name)
				}
				var r types.Reading
				if err := json.Unmarshal([]byte(data), &r); err != nil {
					t.Fatalf("decode event data: %v", err)
				}
				return r
			}
		}
		t.Fatalf("stream ended: %v", scanner.Err())
		return types.Reading{}
	}

	if first := readEvent(); first.Temperature != 25 {
		t.Errorf("initial event = %+v; want default reading", first)
	}

	resp2, err := http.Post(srv.URL+"/api/temperature", "application/json", strings.NewReader(`{"temperature": -3.5}`))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp2.Body.Close()

	if second := readEvent(); second.Temperature != -3.5 {
		t.Errorf("event after write = %+v; want temperature -3.5", second)
	}
}

func Test_handleStream_heartbeat(t *testing.T) {
	ctrl := NewTelemetryController(newTestService(), 10*time.Millisecond).(*telemetryControllerImpl)
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/temperature/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	// Returns once the context expires.
	ctrl.handleStream(rec, req)

	body := rec.Body.String()
	if !strings.HasPrefix(body, "event: reading\n") {
		t.Errorf("stream did not start with a reading event: %q", body)
	}
	if !strings.Contains(body, ": heartbeat\n\n") {
		t.Errorf("no heartbeat in %q", body)
	}
}
