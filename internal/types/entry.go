package types

import "time"

// StatusEntry is the crop a collector monitored during an interval.
// EndDate is nil while the interval is open.
type StatusEntry struct {
	StartDate time.Time  `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Crop      string     `json:"crop"`
}

// Key returns the timestamp half of the entry's key.
func (e StatusEntry) Key() time.Time { return e.StartDate }

// RecordEntry is one raw humidity reading.
type RecordEntry struct {
	CollectionDate time.Time `json:"collection_date"`
	ReadHumidity   int64     `json:"read_humidity"`
}

// Key returns the timestamp half of the entry's key.
func (e RecordEntry) Key() time.Time { return e.CollectionDate }

// HumidityEntry is a humidity percentage calculated from raw readings.
type HumidityEntry struct {
	CalculationDate    time.Time  `json:"calculation_date"`
	HumidityPercentage Percentage `json:"humidity_percentage"`
}

// Key returns the timestamp half of the entry's key.
func (e HumidityEntry) Key() time.Time { return e.CalculationDate }

// GatewayEntry is a receptor buffer report. The stream has no collector.
type GatewayEntry struct {
	UpdateDate      time.Time `json:"update_date"`
	RecordsInBuffer int64     `json:"records_in_buffer"`
}

// Key returns the entry's key.
func (e GatewayEntry) Key() time.Time { return e.UpdateDate }

// Entry is implemented by every record kind.
type Entry interface {
	StatusEntry | RecordEntry | HumidityEntry | GatewayEntry
	Key() time.Time
}

// Group is one collector's window of entries, most recent first.
type Group[E any] struct {
	CollectorID int64 `json:"collector_id"`
	Data        []E   `json:"data"`
}

// Len returns the number of entries in the group.
func (g Group[E]) Len() int {
	return len(g.Data)
}

// =============================================================================
// Timestamp encoding
// =============================================================================

// FromUnixNano converts a stored timestamp back to UTC.
func FromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// MinTime and MaxTime bound the instants a timestamp column can hold.
var (
	MinTime = time.Unix(0, -1<<63).UTC()
	MaxTime = time.Unix(0, 1<<63-1).UTC()
)

// Representable reports whether t survives the nanosecond encoding.
func Representable(t time.Time) bool {
	return !t.IsZero() && !t.Before(MinTime) && !t.After(MaxTime)
}
