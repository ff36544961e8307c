package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"hkco-server/internal/modules/telemetry/types"
)

// MaxPayloadBytes bounds a single report body.
const MaxPayloadBytes = 64 << 10

// ErrMalformedPayload is returned when a report is not a JSON object.
var ErrMalformedPayload = errors.New("malformed report payload")

// ParseUpdate decodes a report body into a partial update.
//
// Only the payload as a whole can fail. A field that is missing, null, or of the
// wrong type is left nil so the stored value is kept. Zero is a valid number.
func ParseUpdate(payload []byte) (types.Update, error) {
	if len(payload) > MaxPayloadBytes {
		return types.Update{}, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedPayload, MaxPayloadBytes)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return types.Update{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	// "null" decodes into a nil map without error.
	if fields == nil {
		return types.Update{}, fmt.Errorf("%w: body is null", ErrMalformedPayload)
	}

	return types.Update{
		Temperature: numberField(fields, "temperature"),
		Humidity:    numberField(fields, "humidity"),
		Location:    labelField(fields, "location"),
	}, nil
}

func numberField(fields map[string]json.RawMessage, key string) *float64 {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	// null unmarshals into a float64 without error and would read as zero.
	if strings.TrimSpace(string(raw)) == "null" {
		return nil
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	return &v
}

func labelField(fields map[string]json.RawMessage, key string) *string {
	raw, ok := fields[key]
	if !ok {
		return nil
	}
	var v string
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil
	}
	v = strings.TrimSpace(v)
	if v == "" {
		return nil
	}
	return &v
}
