package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"hkco-server/internal/modules/telemetry/types"
)

//go:embed sql/insert-report.sql
var insertReportSQL string

//go:embed sql/get-recent-reports.sql
var getRecentReportsSQL string

//go:embed sql/get-reports-count.sql
var getReportsCountSQL string

// JournalRepository is the append-only log of accepted reports. It is never
// read back into the store.
type JournalRepository interface {
	Append(ctx context.Context, source types.Source, reading types.Reading) error
	Recent(ctx context.Context, limit int) ([]types.JournalEntry, error)
	Count(ctx context.Context) (int, error)
}

type repositoryImpl struct {
	db  *sql.DB
	now func() time.Time
}

func NewRepository(db *sql.DB) JournalRepository {
	return &repositoryImpl{db: db, now: time.Now}
}

func (r *repositoryImpl) Append(ctx context.Context, source types.Source, reading types.Reading) error {
	_, err := r.db.ExecContext(ctx, insertReportSQL,
		reading.ObservedAt.UTC().Format(time.RFC3339Nano),
		reading.Temperature,
		reading.Humidity,
		reading.Location,
		string(source),
		r.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert report: %w", err)
	}
	return nil
}

func (r *repositoryImpl) Recent(ctx context.Context, limit int) ([]types.JournalEntry, error) {
	rows, err := r.db.QueryContext(ctx, getRecentReportsSQL, limit)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("close recent reports rows", "error", err)
		}
	}()

	out := []types.JournalEntry{}
	for rows.Next() {
		var (
			e      types.JournalEntry
			ts     string
			source string
		)
		if err := rows.Scan(&e.ID, &ts, &e.Temperature, &e.Humidity, &e.Location, &source); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("parse observed_at %q: %w", ts, err)
		}
		e.ObservedAt = t
		e.Source = types.Source(source)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *repositoryImpl) Count(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, getReportsCountSQL).Scan(&n)
	return n, err
}

type nopRepository struct{}

// NewNopRepository is used when the journal is disabled.
func NewNopRepository() JournalRepository {
	return nopRepository{}
}

func (nopRepository) Append(context.Context, types.Source, types.Reading) error { return nil }

func (nopRepository) Recent(context.Context, int) ([]types.JournalEntry, error) {
	return []types.JournalEntry{}, nil
}

func (nopRepository) Count(context.Context) (int, error) { return 0, nil }
