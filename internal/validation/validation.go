// Package validation provides centralized input validation for soilwatch.
//
// Every check returns an error from internal/errors so callers can map it
// with IsValidation. Nothing here clamps or rewrites a value except the
// two-digit rounding of percentages, which is part of the data model.
package validation

import (
	"math"
	"time"

	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/types"
)

// =============================================================================
// Window Validation
// =============================================================================

// Window is an offset/limit pair over rank positions.
type Window struct {
	Offset int64
	Limit  int64
}

// Validate checks offset >= 0 and limit >= 1.
func (w Window) Validate() error {
	if w.Offset < 0 {
		return errors.NewInvalidWindow(w.Offset, w.Limit, "offset must not be negative")
	}
	if w.Limit < 1 {
		return errors.NewInvalidWindow(w.Offset, w.Limit, "limit must be positive")
	}
	return nil
}

// InclusiveRange returns the closed rank interval [offset, offset+limit]
// used by all-collector views. It fails on a non-positive limit and on
// an upper bound that does not fit in int64.
func (w Window) InclusiveRange() (lo, hi int64, err error) {
	if err := w.Validate(); err != nil {
		return 0, 0, err
	}
	if w.Offset > math.MaxInt64-w.Limit {
		return 0, 0, errors.NewInvalidWindow(w.Offset, w.Limit, "offset+limit overflows")
	}
	return w.Offset, w.Offset + w.Limit, nil
}

// =============================================================================
// Timestamp Validation
// =============================================================================

// ValidateTimestamp checks that t is set and fits the storage encoding.
func ValidateTimestamp(field string, t time.Time) error {
	if t.IsZero() {
		return errors.NewMissingField(field)
	}
	if !types.Representable(t) {
		return errors.NewInvalidValue(field, t.Format(time.RFC3339), "outside storable range")
	}
	return nil
}

// =============================================================================
// Integer Validation
// =============================================================================

// ValidateInt32 checks that v fits the INTEGER columns the firmware writes.
func ValidateInt32(field string, v int64) error {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return errors.NewInvalidValue(field, v, "does not fit a 32-bit integer")
	}
	return nil
}

// =============================================================================
// Entry Validation
// =============================================================================

// Status validates a status entry. The crop is stored as given, empty
// included; its presence is checked when the payload is decoded.
func Status(e types.StatusEntry) (types.StatusEntry, error) {
	errs := errors.NewValidationErrors()
	errs.Add(ValidateTimestamp("start_date", e.StartDate))
	if e.EndDate != nil {
		errs.Add(ValidateTimestamp("end_date", *e.EndDate))
	}
	return e, errs.Err()
}

// Record validates a raw reading.
func Record(e types.RecordEntry) (types.RecordEntry, error) {
	errs := errors.NewValidationErrors()
	errs.Add(ValidateTimestamp("collection_date", e.CollectionDate))
	errs.Add(ValidateInt32("read_humidity", e.ReadHumidity))
	return e, errs.Err()
}

// Humidity validates a calculated percentage and rounds it to two digits.
func Humidity(e types.HumidityEntry) (types.HumidityEntry, error) {
	errs := errors.NewValidationErrors()
	errs.Add(ValidateTimestamp("calculation_date", e.CalculationDate))

	e.HumidityPercentage = types.NewPercentage(e.HumidityPercentage.Decimal)
	if !e.HumidityPercentage.InRange() {
		errs.Add(errors.NewInvalidValue("humidity_percentage", e.HumidityPercentage, "must be within (-1000, 1000)"))
	}

	return e, errs.Err()
}

// Gateway validates a receptor report. records_in_buffer is stored as given.
func Gateway(e types.GatewayEntry) (types.GatewayEntry, error) {
	errs := errors.NewValidationErrors()
	errs.Add(ValidateTimestamp("update_date", e.UpdateDate))
	errs.Add(ValidateInt32("records_in_buffer", e.RecordsInBuffer))
	return e, errs.Err()
}
