package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/relvacode/iso8601"

	"github.com/xtxerr/soilwatch/config"
	"github.com/xtxerr/soilwatch/internal/errors"
	"github.com/xtxerr/soilwatch/internal/logging"
	"github.com/xtxerr/soilwatch/internal/types"
)

// maxBodyBytes bounds a single POST payload.
const maxBodyBytes = config.DefaultMaxBodyBytes

// =============================================================================
// Payloads
// =============================================================================

// Payload fields are pointers so an absent field is distinguishable from
// a zero value. Timestamps accept any ISO 8601 form; ones without a zone
// are taken as UTC.

type statusPayload struct {
	StartDate *iso8601.Time `json:"start_date"`
	EndDate   *iso8601.Time `json:"end_date"`
	Crop      *string       `json:"crop"`
}

func (p statusPayload) entry() (types.StatusEntry, error) {
	errs := errors.NewValidationErrors()
	e := types.StatusEntry{StartDate: timeOf(p.StartDate, "start_date", errs)}
	if p.EndDate != nil {
		end := p.EndDate.Time.UTC()
		e.EndDate = &end
	}
	if p.Crop == nil {
		errs.AddMissing("crop")
	} else {
		e.Crop = *p.Crop
	}
	return e, errs.Err()
}

type recordPayload struct {
	CollectionDate *iso8601.Time `json:"collection_date"`
	ReadHumidity   *int64        `json:"read_humidity"`
}

func (p recordPayload) entry() (types.RecordEntry, error) {
	errs := errors.NewValidationErrors()
	e := types.RecordEntry{CollectionDate: timeOf(p.CollectionDate, "collection_date", errs)}
	e.ReadHumidity = intOf(p.ReadHumidity, "read_humidity", errs)
	return e, errs.Err()
}

type humidityPayload struct {
	CalculationDate    *iso8601.Time     `json:"calculation_date"`
	HumidityPercentage *types.Percentage `json:"humidity_percentage"`
}

func (p humidityPayload) entry() (types.HumidityEntry, error) {
	errs := errors.NewValidationErrors()
	e := types.HumidityEntry{CalculationDate: timeOf(p.CalculationDate, "calculation_date", errs)}
	if p.HumidityPercentage == nil {
		errs.AddMissing("humidity_percentage")
	} else {
		e.HumidityPercentage = *p.HumidityPercentage
	}
	return e, errs.Err()
}

type gatewayPayload struct {
	UpdateDate      *iso8601.Time `json:"update_date"`
	RecordsInBuffer *int64        `json:"records_in_buffer"`
}

func (p gatewayPayload) entry() (types.GatewayEntry, error) {
	errs := errors.NewValidationErrors()
	e := types.GatewayEntry{UpdateDate: timeOf(p.UpdateDate, "update_date", errs)}
	e.RecordsInBuffer = intOf(p.RecordsInBuffer, "records_in_buffer", errs)
	return e, errs.Err()
}

func timeOf(t *iso8601.Time, field string, errs *errors.ValidationErrors) time.Time {
	if t == nil {
		errs.AddMissing(field)
		return time.Time{}
	}
	return t.Time.UTC()
}

func intOf(v *int64, field string, errs *errors.ValidationErrors) int64 {
	if v == nil {
		errs.AddMissing(field)
		return 0
	}
	return *v
}

// decode reads a JSON body into dst.
func decode(r *http.Request, dst any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
	if err != nil {
		return errors.Wrap(errors.ErrInvalidPayload, "read body")
	}
	if len(body) > maxBodyBytes {
		return errors.Wrapf(errors.ErrInvalidPayload, "body exceeds %d bytes", maxBodyBytes)
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.Wrapf(errors.ErrInvalidPayload, "malformed JSON: %v", err)
	}
	return nil
}

// =============================================================================
// Path and Query Parameters
// =============================================================================

// collectorID parses the {collector_id} path variable.
func collectorID(r *http.Request) (int64, error) {
	raw := mux.Vars(r)["collector_id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, errors.NewInvalidValue("collector_id", raw, "must be an integer")
	}
	return id, nil
}

// window parses offset and limit, falling back to the given defaults.
// Range checks are left to the core so every caller sees the same errors.
func window(r *http.Request, defOffset, defLimit int64) (offset, limit int64, err error) {
	q := r.URL.Query()
	errs := errors.NewValidationErrors()

	offset = queryInt(q.Get("offset"), "offset", defOffset, errs)
	limit = queryInt(q.Get("limit"), "limit", defLimit, errs)

	return offset, limit, errs.Err()
}

func queryInt(raw, field string, def int64, errs *errors.ValidationErrors) int64 {
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		errs.Add(errors.NewInvalidValue(field, raw, "must be an integer"))
		return def
	}
	return v
}

func requestID(r *http.Request) string {
	id, _ := logging.RequestID(r.Context())
	return id
}
