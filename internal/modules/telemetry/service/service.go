package service

import (
	"context"
	"fmt"
	"log/slog"

	"hkco-server/internal/metrics"
	"hkco-server/internal/modules/telemetry/repository"
	"hkco-server/internal/modules/telemetry/store"
	"hkco-server/internal/modules/telemetry/types"
)

// Observer receives each reading after the store has accepted it.
type Observer interface {
	ObserveReading(r types.Reading)
	CountReport(source types.Source, outcome string)
}

type Service struct {
	store    *store.Store
	journal  repository.JournalRepository
	observer Observer
	logger   *slog.Logger
}

// NewService wires the store to its side observers. A nil journal or observer
// disables that side effect.
func NewService(st *store.Store, journal repository.JournalRepository, observer Observer, logger *slog.Logger) *Service {
	if journal == nil {
		journal = repository.NewNopRepository()
	}
	if logger == nil {
		logger = slog.Default()
	}
	s := &Service{store: st, journal: journal, observer: observer, logger: logger}
	if observer != nil {
		observer.ObserveReading(st.Current())
	}
	return s
}

func (s *Service) Current() types.Reading {
	return s.store.Current()
}

// Changed forwards the store's change notification.
func (s *Service) Changed() <-chan struct{} {
	return s.store.Changed()
}

func (s *Service) Report(ctx context.Context, source types.Source, u types.Update) types.Reading {
	reading := s.store.Report(u)

	if s.observer != nil {
		s.observer.ObserveReading(reading)
		s.observer.CountReport(source, metrics.OutcomeAccepted)
	}
	// The write is already accepted, so a caller hanging up must not drop its journal row.
	if err := s.journal.Append(context.WithoutCancel(ctx), source, reading); err != nil {
		s.logger.Error("journal append failed", "source", source, "error", err)
	}

	s.logger.Debug("reading updated",
		"source", source,
		"temperature", reading.Temperature,
		"humidity", reading.Humidity,
		"location", reading.Location,
	)
	return reading
}

// ReportPayload parses a raw JSON report and applies it. The store is left
// untouched when parsing fails.
func (s *Service) ReportPayload(ctx context.Context, source types.Source, payload []byte) (types.Reading, error) {
	u, err := store.ParseUpdate(payload)
	if err != nil {
		if s.observer != nil {
			s.observer.CountReport(source, metrics.OutcomeRejected)
		}
		return types.Reading{}, fmt.Errorf("report from %s: %w", source, err)
	}
	return s.Report(ctx, source, u), nil
}

// History returns the newest journal entries first.
func (s *Service) History(ctx context.Context, limit int) ([]types.JournalEntry, error) {
	entries, err := s.journal.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}
