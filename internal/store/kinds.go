package store

import (
	"database/sql"

	c "github.com/xtxerr/soilwatch/internal/constants"
	"github.com/xtxerr/soilwatch/internal/types"
)

// =============================================================================
// Record Kinds
// =============================================================================

func newStatusSeries(s *Store) *Series[types.StatusEntry] {
	return &Series[types.StatusEntry]{
		store:   s,
		table:   c.KindStatus,
		grouped: true,
		order:   c.ColStartNs,
		columns: []string{c.ColStartNs, c.ColEndNs, c.ColCrop},
		values: func(e types.StatusEntry) []any {
			var end sql.NullInt64
			if e.EndDate != nil {
				end = sql.NullInt64{Int64: e.EndDate.UnixNano(), Valid: true}
			}
			return []any{e.StartDate.UnixNano(), end, e.Crop}
		},
		decode: func(scan func(dest ...any) error) (types.StatusEntry, error) {
			var (
				start int64
				end   sql.NullInt64
				crop  string
			)
			if err := scan(&start, &end, &crop); err != nil {
				return types.StatusEntry{}, err
			}
			e := types.StatusEntry{StartDate: types.FromUnixNano(start), Crop: crop}
			if end.Valid {
				t := types.FromUnixNano(end.Int64)
				e.EndDate = &t
			}
			return e, nil
		},
	}
}

func newRecordSeries(s *Store) *Series[types.RecordEntry] {
	return &Series[types.RecordEntry]{
		store:   s,
		table:   c.KindRecord,
		grouped: true,
		order:   c.ColCollectionNs,
		columns: []string{c.ColCollectionNs, c.ColReadHumidity},
		values: func(e types.RecordEntry) []any {
			return []any{e.CollectionDate.UnixNano(), e.ReadHumidity}
		},
		decode: func(scan func(dest ...any) error) (types.RecordEntry, error) {
			var ts, v int64
			if err := scan(&ts, &v); err != nil {
				return types.RecordEntry{}, err
			}
			return types.RecordEntry{CollectionDate: types.FromUnixNano(ts), ReadHumidity: v}, nil
		},
	}
}

func newHumiditySeries(s *Store) *Series[types.HumidityEntry] {
	return &Series[types.HumidityEntry]{
		store:   s,
		table:   c.KindHumidity,
		grouped: true,
		order:   c.ColCalculationNs,
		columns: []string{c.ColCalculationNs, c.ColHumidityCenti},
		values: func(e types.HumidityEntry) []any {
			return []any{e.CalculationDate.UnixNano(), e.HumidityPercentage.Hundredths()}
		},
		decode: func(scan func(dest ...any) error) (types.HumidityEntry, error) {
			var ts, centi int64
			if err := scan(&ts, &centi); err != nil {
				return types.HumidityEntry{}, err
			}
			return types.HumidityEntry{
				CalculationDate:    types.FromUnixNano(ts),
				HumidityPercentage: types.PercentageFromHundredths(centi),
			}, nil
		},
	}
}

func newGatewaySeries(s *Store) *Series[types.GatewayEntry] {
	return &Series[types.GatewayEntry]{
		store:   s,
		table:   c.KindGateway,
		grouped: false,
		order:   c.ColUpdateNs,
		columns: []string{c.ColUpdateNs, c.ColRecordsInBuf},
		values: func(e types.GatewayEntry) []any {
			return []any{e.UpdateDate.UnixNano(), e.RecordsInBuffer}
		},
		decode: func(scan func(dest ...any) error) (types.GatewayEntry, error) {
			var ts, n int64
			if err := scan(&ts, &n); err != nil {
				return types.GatewayEntry{}, err
			}
			return types.GatewayEntry{UpdateDate: types.FromUnixNano(ts), RecordsInBuffer: n}, nil
		},
	}
}
