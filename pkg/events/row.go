// Package events ships fetch events out of the process: to Pub/Sub for live
// consumers and, in batches, to BigQuery for analysis.
package events

import (
	"time"

	"github.com/illmade-knight/go-gdcache/pkg/fetch"
)

// Row is the flattened form of a fetch.Event, suitable for BigQuery schema
// inference and JSON encoding.
type Row struct {
	EventID     string    `bigquery:"event_id" json:"event_id"`
	Op          string    `bigquery:"op" json:"op"`
	Request     string    `bigquery:"request" json:"request"`
	Fingerprint string    `bigquery:"fingerprint" json:"fingerprint"`
	State       string    `bigquery:"state" json:"state,omitempty"`
	Shared      bool      `bigquery:"shared" json:"shared"`
	Depth       int64     `bigquery:"depth" json:"depth"`
	DurationMs  float64   `bigquery:"duration_ms" json:"duration_ms"`
	Error       string    `bigquery:"error" json:"error,omitempty"`
	At          time.Time `bigquery:"at" json:"at"`
}

// RowOf flattens ev.
func RowOf(ev fetch.Event) Row {
	row := Row{
		EventID:     ev.ID,
		Op:          string(ev.Op),
		Request:     ev.Request,
		Fingerprint: ev.Fingerprint,
		State:       ev.State,
		Shared:      ev.Shared,
		Depth:       int64(ev.Depth),
		DurationMs:  float64(ev.Duration) / float64(time.Millisecond),
		At:          ev.At.UTC(),
	}
	if ev.Err != nil {
		row.Error = ev.Err.Error()
	}
	return row
}
