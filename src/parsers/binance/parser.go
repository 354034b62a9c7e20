// backend/src/parsers/binance/parser.go
package binance

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/security/validation"
	"github.com/username/coinfolio/backend/src/utils"
)

// fieldCount is the number of positional columns in the Binance account
// statement: User_ID, UTC_Time, Account, Operation, Coin, Change, Remark.
const fieldCount = 7

// BinanceParser implements the parsers.Parser interface for Binance account
// statement CSV files.
type BinanceParser struct{}

func NewParser() *BinanceParser {
	return &BinanceParser{}
}

// Parse reads a Binance statement and converts its rows into strongly typed
// ledger entries. The first row is a header and is discarded. Malformed
// timestamps or change amounts are errors; classification of the operation
// strings happens later, during correlation.
func (p *BinanceParser) Parse(file io.Reader) ([]models.LedgerEntry, error) {
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read all CSV records: %w", err)
	}

	var entries []models.LedgerEntry
	for i, record := range records {
		// Header row is line 1, so data row i is line i+2 in the file.
		line := i + 2
		if len(record) < fieldCount {
			return nil, fmt.Errorf("line %d: expected %d fields, got %d", line, fieldCount, len(record))
		}

		timestamp, err := utils.ParseLedgerTime(strings.TrimSpace(record[1]))
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		change, err := decimal.NewFromString(strings.TrimSpace(record[5]))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid change amount %q: %w", line, record[5], err)
		}

		entries = append(entries, models.LedgerEntry{
			UserID:    strings.TrimSpace(record[0]),
			Timestamp: timestamp,
			Account:   strings.TrimSpace(record[2]),
			Operation: strings.TrimSpace(record[3]),
			Coin:      strings.TrimSpace(record[4]),
			Change:    change,
			Remark:    validation.StripUnprintable(strings.TrimSpace(record[6])),
		})
	}

	return entries, nil
}
