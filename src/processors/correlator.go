// backend/src/processors/correlator.go
package processors

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/utils"
)

// ErrLegConflict is returned when two ledger entries resolved to the same
// correlation key both try to set the same leg. Each field pair is written at
// most once per record; a second write means correlation matched unrelated
// entries and the run must stop.
var ErrLegConflict = errors.New("transaction leg already set")

// TransactionLedger maps correlation keys to in-progress transaction records.
// Insertion order is semantically meaningful: the output sequence must equal
// the order in which records were first created, so the hash index is paired
// with an append-only key list.
type TransactionLedger struct {
	records map[string]*models.TransactionRecord
	order   []string
}

func NewTransactionLedger() *TransactionLedger {
	return &TransactionLedger{records: make(map[string]*models.TransactionRecord)}
}

func (l *TransactionLedger) get(key string) (*models.TransactionRecord, bool) {
	record, ok := l.records[key]
	return record, ok
}

func (l *TransactionLedger) insert(key string, record *models.TransactionRecord) {
	l.records[key] = record
	l.order = append(l.order, key)
}

func (l *TransactionLedger) Len() int {
	return len(l.order)
}

// Records flattens the ledger into a sequence ordered by first creation.
func (l *TransactionLedger) Records() []models.TransactionRecord {
	records := make([]models.TransactionRecord, 0, len(l.order))
	for _, key := range l.order {
		records = append(records, *l.records[key])
	}
	return records
}

// CorrelationStats reports the row counts of one correlation run.
type CorrelationStats struct {
	EntriesRead    int
	EntriesIgnored int
	RecordCount    int
}

// Correlator assembles transaction records from classified ledger entries.
// Processing is strictly sequential in original file order; both the ±1s
// timestamp tolerance and the composite-key disambiguation depend on it.
type Correlator struct{}

func NewCorrelator() *Correlator {
	return &Correlator{}
}

// Correlate runs the full batch: classify every entry, resolve it to an
// existing or new record, and merge its contribution. A sign-assertion
// failure or a leg conflict aborts the whole run with no partial result.
func (c *Correlator) Correlate(entries []models.LedgerEntry) (*TransactionLedger, CorrelationStats, error) {
	ledger := NewTransactionLedger()
	stats := CorrelationStats{EntriesRead: len(entries)}

	for _, entry := range entries {
		contribution, err := Classify(entry)
		if err != nil {
			return nil, stats, err
		}
		if contribution.Kind == models.ContributionIgnored {
			logger.L.Warn("Skipping unrecognized operation",
				"operation", entry.Operation,
				"coin", entry.Coin,
				"utcTime", entry.Timestamp.UTC().Format(utils.LedgerTimeFormat))
			stats.EntriesIgnored++
			continue
		}

		key := resolveKey(ledger, entry)
		record, ok := ledger.get(key)
		if !ok {
			// Date and Remark come from the creating entry only; later
			// entries merged into this record never touch them.
			record = &models.TransactionRecord{Date: entry.Timestamp, Remark: entry.Remark}
			ledger.insert(key, record)
		}

		if err := merge(record, entry, contribution); err != nil {
			return nil, stats, err
		}
	}

	stats.RecordCount = ledger.Len()
	logger.L.Info("Correlation complete",
		"entriesRead", stats.EntriesRead,
		"entriesIgnored", stats.EntriesIgnored,
		"recordsProduced", stats.RecordCount)
	return ledger, stats, nil
}

// resolveKey finds the correlation key for an entry. Independent legs of one
// transaction can be logged at whole-second timestamps up to one second
// apart, so the probe order is exact, minus one, plus one; the first hit
// wins. With no hit the entry starts a new record at its exact second.
func resolveKey(ledger *TransactionLedger, entry models.LedgerEntry) string {
	seconds := entry.Timestamp.Round(time.Second).Unix()

	key := strconv.FormatInt(seconds, 10)
	for _, delta := range []int64{0, -1, 1} {
		probe := strconv.FormatInt(seconds+delta, 10)
		if _, ok := ledger.get(probe); ok {
			key = probe
			break
		}
	}

	// Multiple independent dust conversions can share the exact same second;
	// the remark text is the only disambiguator the export carries. The
	// composite key is matched exactly, with no ±1s tolerance.
	if entry.Operation == models.OpSmallAssetsExchange {
		key = key + "|" + entry.Remark
	}

	return key
}

// merge writes the contribution's field pair onto the record. Fields not
// touched by the contribution keep their prior values; a previously set leg
// is never overwritten.
func merge(record *models.TransactionRecord, entry models.LedgerEntry, contribution models.Contribution) error {
	kind := contribution.Kind
	if kind == models.ContributionSignDirected {
		if entry.Change.IsNegative() {
			kind = models.ContributionSent
		} else {
			kind = models.ContributionReceived
		}
	}

	leg := &models.Money{Quantity: contribution.Quantity, Currency: contribution.Currency}

	switch kind {
	case models.ContributionSent:
		if record.Sent != nil {
			return legConflict("sent", entry)
		}
		record.Sent = leg
	case models.ContributionReceived:
		if record.Received != nil {
			return legConflict("received", entry)
		}
		record.Received = leg
	case models.ContributionFee:
		if record.Fee != nil {
			return legConflict("fee", entry)
		}
		record.Fee = leg
	}

	if contribution.Tag != "" {
		record.Tag = contribution.Tag
	}
	return nil
}

func legConflict(leg string, entry models.LedgerEntry) error {
	return fmt.Errorf("%w: %s leg from %s %s %s at %s",
		ErrLegConflict, leg, entry.Operation, entry.Change, entry.Coin,
		entry.Timestamp.UTC().Format(utils.LedgerTimeFormat))
}
