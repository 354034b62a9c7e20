// backend/src/exporters/cointracker/writer.go
package cointracker

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/security/validation"
	"github.com/username/coinfolio/backend/src/utils"
)

// header is the CoinTracker import schema. The in-memory record also carries
// a Remark, which is deliberately excluded here.
var header = []string{
	"Date",
	"Received Quantity",
	"Received Currency",
	"Sent Quantity",
	"Sent Currency",
	"Fee Amount",
	"Fee Currency",
	"Tag",
}

// Writer renders transaction records as a CoinTracker CSV. Dates are written
// in the configured location because the import format expects local
// wall-clock time.
type Writer struct {
	location *time.Location
}

func NewWriter(location *time.Location) *Writer {
	if location == nil {
		location = time.Local
	}
	return &Writer{location: location}
}

// Write emits the header and one row per record, in the order given. Unset
// legs serialize as empty cells.
func (w *Writer) Write(records []models.TransactionRecord, out io.Writer) error {
	cw := csv.NewWriter(out)

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, record := range records {
		row := make([]string, len(header))
		row[0] = utils.FormatExportTime(record.Date, w.location)
		if record.Received != nil {
			row[1] = record.Received.Quantity.String()
			row[2] = validation.SanitizeForFormulaInjection(record.Received.Currency)
		}
		if record.Sent != nil {
			row[3] = record.Sent.Quantity.String()
			row[4] = validation.SanitizeForFormulaInjection(record.Sent.Currency)
		}
		if record.Fee != nil {
			row[5] = record.Fee.Quantity.String()
			row[6] = validation.SanitizeForFormulaInjection(record.Fee.Currency)
		}
		row[7] = record.Tag

		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	cw.Flush()
	return cw.Error()
}
