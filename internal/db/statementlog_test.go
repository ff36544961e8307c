package db

import (
	"context"
	"database/sql"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"hkco-server/internal/config"
)

// captureHandler records log records for assertion in tests.
type captureHandler struct {
	mu    sync.Mutex
	attrs []map[string]slog.Value
}

func (h *captureHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	m := make(map[string]slog.Value)
	m["msg"] = slog.StringValue(r.Message)
	r.Attrs(func(a slog.Attr) bool {
		m[a.Key] = a.Value
		return true
	})
	h.attrs = append(h.attrs, m)
	return nil
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler { return h }

func (h *captureHandler) WithGroup(name string) slog.Handler { return h }

func (h *captureHandler) last(t *testing.T, msg string) map[string]slog.Value {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.attrs) - 1; i >= 0; i-- {
		if h.attrs[i]["msg"].String() == msg {
			return h.attrs[i]
		}
	}
	t.Fatalf("no %q log record", msg)
	return nil
}

func openLogged(t *testing.T) (*sql.DB, *captureHandler) {
	t.Helper()
	handler := &captureHandler{}
	connector, err := NewLoggingConnector(":memory:", slog.New(handler))
	if err != nil {
		t.Fatalf("NewLoggingConnector: %v", err)
	}
	db := sql.OpenDB(connector)
	// :memory: databases are per connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db, handler
}

func TestNewLoggingConnector(t *testing.T) {
	t.Run("nil logger uses default", func(t *testing.T) {
		conn, err := NewLoggingConnector(":memory:", nil)
		if err != nil {
			t.Fatalf("NewLoggingConnector: %v", err)
		}
		if conn.(*statementLogConnector).logger == nil {
			t.Fatal("logger is nil")
		}
	})

	t.Run("empty dsn is rejected", func(t *testing.T) {
		if _, err := NewLoggingConnector("", nil); err == nil {
			t.Fatal("NewLoggingConnector(\"\") = nil error; want error")
		}
	})

	t.Run("driver cannot open directly", func(t *testing.T) {
		conn, _ := NewLoggingConnector(":memory:", nil)
		if _, err := conn.Driver().Open(":memory:"); err == nil {
			t.Fatal("Driver().Open = nil error; want error")
		}
	})
}

func TestLoggingConnector_execWithArgs(t *testing.T) {
	db, handler := openLogged(t)

	if _, err := db.Exec(`CREATE TABLE report_journal (location TEXT, temperature_c REAL)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO report_journal (location, temperature_c) VALUES (?, ?)`, "Cold Room B", 4.5); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got := handler.last(t, "sql")
	if got["op"].String() != "exec" {
		t.Errorf("op = %q; want exec", got["op"].String())
	}
	if !strings.HasPrefix(got["sql"].String(), "INSERT INTO report_journal") {
		t.Errorf("sql = %q", got["sql"].String())
	}
	args := got["args"].String()
	if !strings.Contains(args, "Cold Room B") || !strings.Contains(args, "4.5") {
		t.Errorf("args = %q; want location and temperature", args)
	}
	if _, ok := got["duration_ms"]; !ok {
		t.Error("expected duration_ms attribute")
	}
	if _, ok := got["error"]; ok {
		t.Error("unexpected error attribute on success")
	}
}

func TestLoggingConnector_queryLogged(t *testing.T) {
	db, handler := openLogged(t)

	var one int
	if err := db.QueryRow(`SELECT 1`).Scan(&one); err != nil {
		t.Fatalf("query row: %v", err)
	}

	got := handler.last(t, "sql")
	if got["op"].String() != "query" {
		t.Errorf("op = %q; want query", got["op"].String())
	}
	if got["sql"].String() != `SELECT 1` {
		t.Errorf("sql = %q", got["sql"].String())
	}
}

func TestLoggingConnector_failedPrepareLogged(t *testing.T) {
	db, handler := openLogged(t)

	if _, err := db.Exec(`INSERT INTO missing_table VALUES (1)`); err == nil {
		t.Fatal("insert into missing table succeeded")
	}

	got := handler.last(t, "sql prepare failed")
	if _, ok := got["error"]; !ok {
		t.Error("expected error attribute")
	}
}

func TestOpen_fileBackedWithStatementLogging(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "journal.db")
	cfg := config.Config{
		SQLiteDriver:        "sqlite3",
		SQLitePath:          path,
		SQLiteMaxOpenConns:  1,
		SQLiteMaxIdleConns:  1,
		SQLiteLogStatements: true,
	}
	handler := &captureHandler{}

	conn, err := Open(cfg, slog.New(handler))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = Close(conn) })

	var ok int
	if err := conn.QueryRow(`SELECT 1`).Scan(&ok); err != nil {
		t.Fatalf("select: %v", err)
	}
	handler.last(t, "sql")
}

func TestClose_nil(t *testing.T) {
	if err := Close(nil); err != nil {
		t.Fatalf("Close(nil) = %v; want nil", err)
	}
}

func TestBuildDSN(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		cfg  config.Config
		want string
	}{
		{
			name: "explicit dsn wins",
			cfg:  config.Config{SQLiteDSN: "file::memory:?cache=shared", SQLitePath: "ignored.db"},
			want: "file::memory:?cache=shared",
		},
		{
			name: "plain path",
			cfg:  config.Config{SQLitePath: filepath.Join(dir, "app.db")},
			want: "file:" + filepath.Join(dir, "app.db") + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL",
		},
		{
			name: "file uri with query",
			cfg:  config.Config{SQLitePath: "file:app.db?mode=rwc"},
			want: "file:app.db?mode=rwc&_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := buildDSN(tt.cfg)
			if err != nil {
				t.Fatalf("buildDSN: %v", err)
			}
			if got != tt.want {
				t.Errorf("buildDSN = %q; want %q", got, tt.want)
			}
		})
	}
}
