// Package transform maps raw APOD API payloads onto the fixed Record schema.
// Pure: no I/O, deterministic given the payload and the clock value.
package transform

import (
	"time"

	"apod_pipeline/internal/domain"
	"apod_pipeline/internal/source/apod"
)

// DateLayout is the calendar-date wire format used by the API and both sinks.
const DateLayout = "2006-01-02"

// Transform builds a Record from a raw payload. Missing optional fields map
// to nil; a missing or unparseable date, or a missing url, is a SchemaError.
// ExtractedAt is set from now, normalized to UTC.
func Transform(raw *apod.APIResponse, now time.Time) (*domain.Record, error) {
	if raw.Date == "" {
		return nil, &domain.SchemaError{Field: "date", Reason: "is required"}
	}
	if _, err := time.Parse(DateLayout, raw.Date); err != nil {
		return nil, &domain.SchemaError{Field: "date", Reason: "is not a YYYY-MM-DD date"}
	}
	if raw.URL == "" {
		return nil, &domain.SchemaError{Field: "url", Reason: "is required"}
	}

	return &domain.Record{
		Date:           raw.Date,
		Title:          optional(raw.Title),
		Explanation:    optional(raw.Explanation),
		URL:            raw.URL,
		MediaType:      raw.MediaType,
		HDURL:          optional(raw.HDURL),
		Copyright:      optional(raw.Copyright),
		ServiceVersion: optional(raw.ServiceVersion),
		ExtractedAt:    now.UTC(),
	}, nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
