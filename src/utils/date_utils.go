// backend/src/utils/date_utils.go
package utils

import (
	"fmt"
	"time"
)

const (
	// LedgerTimeFormat is the UTC_Time column of the Binance export.
	LedgerTimeFormat = "2006-01-02 15:04:05"
	// ExportTimeFormat is the Date column of the CoinTracker import format:
	// MM/DD/YYYY with a zero-padded 24-hour clock.
	ExportTimeFormat = "01/02/2006 15:04:05"
)

// ParseLedgerTime parses a UTC_Time value from the source export. The export
// carries wall-clock UTC with no offset.
func ParseLedgerTime(value string) (time.Time, error) {
	t, err := time.ParseInLocation(LedgerTimeFormat, value, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid ledger timestamp %q: %w", value, err)
	}
	return t, nil
}

// FormatExportTime renders a record date for the CoinTracker CSV in the given
// location. A nil location means local time.
func FormatExportTime(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return t.In(loc).Format(ExportTimeFormat)
}
