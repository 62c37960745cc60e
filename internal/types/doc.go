// Package types defines the record kinds shared by the store, the manager
// and the HTTP layer.
//
// Key types:
//   - StatusEntry: a crop interval reported by a collector
//   - RecordEntry: a raw humidity reading
//   - HumidityEntry: a derived humidity percentage
//   - GatewayEntry: a receptor buffer report
//   - Group: one collector's window of entries
package types
