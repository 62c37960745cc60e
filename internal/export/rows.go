package export

import (
	"github.com/xtxerr/soilwatch/internal/types"
)

// Rows mirror the table layout: timestamps are Unix nanoseconds in UTC
// and percentages are hundredths.

// StatusRow is one collector_status row.
type StatusRow struct {
	CollectorID int64  `parquet:"collector_id"`
	StartDateNs int64  `parquet:"start_date_ns"`
	EndDateNs   *int64 `parquet:"end_date_ns,optional"`
	Crop        string `parquet:"crop,dict,zstd"`
}

// RecordRow is one collector_record row.
type RecordRow struct {
	CollectorID      int64 `parquet:"collector_id"`
	CollectionDateNs int64 `parquet:"collection_date_ns"`
	ReadHumidity     int64 `parquet:"read_humidity"`
}

// HumidityRow is one calculated_humidity row.
type HumidityRow struct {
	CollectorID       int64 `parquet:"collector_id"`
	CalculationDateNs int64 `parquet:"calculation_date_ns"`
	HumidityCenti     int64 `parquet:"humidity_centi"`
}

// GatewayRow is one receptor_status row.
type GatewayRow struct {
	UpdateDateNs    int64 `parquet:"update_date_ns"`
	RecordsInBuffer int64 `parquet:"records_in_buffer"`
}

// StatusToRow converts a stored status entry.
func StatusToRow(collectorID int64, e types.StatusEntry) StatusRow {
	row := StatusRow{
		CollectorID: collectorID,
		StartDateNs: e.StartDate.UnixNano(),
		Crop:        e.Crop,
	}
	if e.EndDate != nil {
		end := e.EndDate.UnixNano()
		row.EndDateNs = &end
	}
	return row
}

// RowToStatus converts a row back to an entry.
func RowToStatus(r StatusRow) (int64, types.StatusEntry) {
	e := types.StatusEntry{StartDate: types.FromUnixNano(r.StartDateNs), Crop: r.Crop}
	if r.EndDateNs != nil {
		end := types.FromUnixNano(*r.EndDateNs)
		e.EndDate = &end
	}
	return r.CollectorID, e
}

// RecordToRow converts a stored raw reading.
func RecordToRow(collectorID int64, e types.RecordEntry) RecordRow {
	return RecordRow{
		CollectorID:      collectorID,
		CollectionDateNs: e.CollectionDate.UnixNano(),
		ReadHumidity:     e.ReadHumidity,
	}
}

// HumidityToRow converts a stored calculated humidity.
func HumidityToRow(collectorID int64, e types.HumidityEntry) HumidityRow {
	return HumidityRow{
		CollectorID:       collectorID,
		CalculationDateNs: e.CalculationDate.UnixNano(),
		HumidityCenti:     e.HumidityPercentage.Hundredths(),
	}
}

// GatewayToRow converts a stored receptor report. The stream has no
// collector, so collectorID is ignored.
func GatewayToRow(_ int64, e types.GatewayEntry) GatewayRow {
	return GatewayRow{
		UpdateDateNs:    e.UpdateDate.UnixNano(),
		RecordsInBuffer: e.RecordsInBuffer,
	}
}
