package store

import (
	"sync"
	"time"

	"hkco-server/internal/modules/telemetry/types"
)

const (
	DefaultTemperature = 25.0
	DefaultHumidity    = 60.0
	DefaultLocation    = "Storage Facility"
)

// Store owns the single current Reading. All access goes through its methods,
// so callers only ever see complete snapshots.
type Store struct {
	mu      sync.RWMutex
	reading types.Reading
	changed chan struct{}
	now     func() time.Time
}

type Option func(*Store)

// WithClock replaces time.Now as the source of ObservedAt.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(opts ...Option) *Store {
	s := &Store{
		changed: make(chan struct{}),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.reading = types.Reading{
		Temperature: DefaultTemperature,
		Humidity:    DefaultHumidity,
		Location:    DefaultLocation,
		ObservedAt:  s.now().UTC(),
	}
	return s
}

// Current returns a copy of the stored Reading.
func (s *Store) Current() types.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.reading
}

// Report merges u into the stored Reading, stamps ObservedAt and returns the result.
func (s *Store) Report(u types.Update) types.Reading {
	s.mu.Lock()
	next := s.reading
	if u.Temperature != nil {
		next.Temperature = *u.Temperature
	}
	if u.Humidity != nil {
		next.Humidity = *u.Humidity
	}
	if u.Location != nil {
		next.Location = *u.Location
	}
	next.ObservedAt = s.now().UTC()
	s.reading = next

	close(s.changed)
	s.changed = make(chan struct{})
	s.mu.Unlock()

	return next
}

// Changed returns a channel that is closed by the next Report.
func (s *Store) Changed() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.changed
}
