package types

import (
	"strconv"
	"time"

	"github.com/xtxerr/soilwatch/internal/constants"
)

// Point is a stored entry flattened for time-series sinks.
type Point struct {
	Kind        string
	CollectorID *int64
	Time        time.Time
	Fields      map[string]any
	Tags        map[string]string
}

// TagSet returns the point's tags including the collector, if any.
func (p Point) TagSet() map[string]string {
	tags := make(map[string]string, len(p.Tags)+1)
	for k, v := range p.Tags {
		tags[k] = v
	}
	if p.CollectorID != nil {
		tags[constants.ColCollectorID] = strconv.FormatInt(*p.CollectorID, 10)
	}
	return tags
}

// StatusPoint flattens a status entry.
func StatusPoint(collectorID int64, e StatusEntry) Point {
	fields := map[string]any{"open": e.EndDate == nil}
	if e.EndDate != nil {
		fields["end_date"] = e.EndDate.UnixNano()
	}
	return Point{
		Kind:        constants.KindStatus,
		CollectorID: &collectorID,
		Time:        e.StartDate,
		Fields:      fields,
		Tags:        map[string]string{constants.ColCrop: e.Crop},
	}
}

// RecordPoint flattens a raw reading.
func RecordPoint(collectorID int64, e RecordEntry) Point {
	return Point{
		Kind:        constants.KindRecord,
		CollectorID: &collectorID,
		Time:        e.CollectionDate,
		Fields:      map[string]any{constants.ColReadHumidity: e.ReadHumidity},
	}
}

// HumidityPoint flattens a calculated percentage.
func HumidityPoint(collectorID int64, e HumidityEntry) Point {
	return Point{
		Kind:        constants.KindHumidity,
		CollectorID: &collectorID,
		Time:        e.CalculationDate,
		Fields:      map[string]any{"humidity_percentage": e.HumidityPercentage.Float64()},
	}
}

// GatewayPoint flattens a receptor report.
func GatewayPoint(e GatewayEntry) Point {
	return Point{
		Kind:   constants.KindGateway,
		Time:   e.UpdateDate,
		Fields: map[string]any{constants.ColRecordsInBuf: e.RecordsInBuffer},
	}
}
