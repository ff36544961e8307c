package types

import "time"

// Reading is the current environmental state of the storage facility.
type Reading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Location    string    `json:"location"`
	ObservedAt  time.Time `json:"timestamp"`
}

// Update is a partial report. A nil field keeps the stored value.
type Update struct {
	Temperature *float64
	Humidity    *float64
	Location    *string
}

// Source identifies how a report reached the server.
type Source string

const (
	SourceHTTP Source = "http"
	SourceMQTT Source = "mqtt"
)

// JournalEntry is one accepted report as recorded in the report journal.
type JournalEntry struct {
	ID          int64     `json:"id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Location    string    `json:"location"`
	ObservedAt  time.Time `json:"timestamp"`
	Source      Source    `json:"source"`
}

// Response is the envelope used by every /api/temperature endpoint.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}
