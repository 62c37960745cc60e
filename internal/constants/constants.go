// Package constants provides centralized domain-specific constants
// for the entire soilwatch application.
//
// Table names, column names and query defaults live here so the store,
// the HTTP layer and the exporters agree on them.
package constants

// =============================================================================
// Record Kinds
// =============================================================================

const (
	// KindStatus is a collector status interval (crop planted between two dates).
	KindStatus = "collector_status"

	// KindRecord is a raw humidity reading taken by a collector.
	KindRecord = "collector_record"

	// KindHumidity is a humidity percentage derived from raw readings.
	KindHumidity = "calculated_humidity"

	// KindGateway is the buffer status reported by receptors.
	KindGateway = "receptor_status"
)

// Kinds lists every record kind in schema order.
var Kinds = []string{KindStatus, KindRecord, KindHumidity, KindGateway}

// IsValidKind checks if a kind is known.
func IsValidKind(kind string) bool {
	for _, k := range Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// =============================================================================
// Columns
// =============================================================================

const (
	ColCollectorID = "collector_id"

	ColStartNs       = "start_date_ns"
	ColEndNs         = "end_date_ns"
	ColCrop          = "crop"
	ColCollectionNs  = "collection_date_ns"
	ColReadHumidity  = "read_humidity"
	ColCalculationNs = "calculation_date_ns"
	ColHumidityCenti = "humidity_centi"
	ColUpdateNs      = "update_date_ns"
	ColRecordsInBuf  = "records_in_buffer"
)

// =============================================================================
// Window Defaults
// =============================================================================

const (
	// DefaultListLimit is the limit for all-collector views.
	DefaultListLimit = 1

	// DefaultDeviceLimit is the limit for single-collector views.
	DefaultDeviceLimit = 100

	// DefaultOffset is the rank the window starts at.
	DefaultOffset = 0
)
