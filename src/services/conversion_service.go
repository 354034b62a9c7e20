// backend/src/services/conversion_service.go
package services

import (
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/username/coinfolio/backend/src/database"
	"github.com/username/coinfolio/backend/src/exporters/cointracker"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/parsers"
	"github.com/username/coinfolio/backend/src/processors"
)

const (
	ckLatestSummary = "agg_latest_conversion_summary"

	DefaultCacheExpiration = 15 * time.Minute
	CacheCleanupInterval   = 30 * time.Minute
)

type conversionServiceImpl struct {
	correlator  *processors.Correlator
	exporter    *cointracker.Writer
	resultCache *cache.Cache
}

func NewConversionService(
	correlator *processors.Correlator,
	exporter *cointracker.Writer,
	resultCache *cache.Cache,
) ConversionService {
	return &conversionServiceImpl{
		correlator:  correlator,
		exporter:    exporter,
		resultCache: resultCache,
	}
}

// ProcessUpload runs the whole batch transform: read the full export, then
// correlate in memory, then persist. A fatal correlation error means nothing
// is written; there is no partial-failure mode.
func (s *conversionServiceImpl) ProcessUpload(fileReader io.Reader, source string) (*ConversionSummary, error) {
	overallStartTime := time.Now()
	logger.L.Info("ProcessUpload START", "source", source)

	parser, err := parsers.GetParser(source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	entries, err := parser.Parse(fileReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParsingFailed, err)
	}

	ledger, stats, err := s.correlator.Correlate(entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProcessingFailed, err)
	}
	records := ledger.Records()

	runID := uuid.NewString()
	uploadedAt := time.Now().UTC()

	// --- Database Insertion ---
	dbTx, err := database.DB.Begin()
	if err != nil {
		return nil, fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	_, err = dbTx.Exec(`INSERT INTO conversion_runs (id, source, uploaded_at, entries_read, entries_ignored, record_count) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, source, uploadedAt.Format(time.RFC3339Nano), stats.EntriesRead, stats.EntriesIgnored, stats.RecordCount)
	if err != nil {
		return nil, fmt.Errorf("error inserting conversion run: %w", err)
	}

	stmt, err := dbTx.Prepare(`INSERT INTO transaction_records (run_id, seq, date, received_quantity, received_currency, sent_quantity, sent_currency, fee_amount, fee_currency, tag, remark) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("error preparing insert statement: %w", err)
	}
	defer stmt.Close()

	for seq, record := range records {
		rq, rc := moneyColumns(record.Received)
		sq, sc := moneyColumns(record.Sent)
		fq, fc := moneyColumns(record.Fee)
		_, err := stmt.Exec(runID, seq, record.Date.UTC().Format(time.RFC3339Nano), rq, rc, sq, sc, fq, fc, record.Tag, record.Remark)
		if err != nil {
			return nil, fmt.Errorf("error inserting transaction record (seq %d): %w", seq, err)
		}
	}

	if err := dbTx.Commit(); err != nil {
		return nil, fmt.Errorf("error committing transaction records: %w", err)
	}

	summary := &ConversionSummary{
		RunID:          runID,
		Source:         source,
		UploadedAt:     uploadedAt,
		EntriesRead:    stats.EntriesRead,
		EntriesIgnored: stats.EntriesIgnored,
		RecordCount:    stats.RecordCount,
		Records:        records,
	}
	s.resultCache.Set(ckLatestSummary, summary, DefaultCacheExpiration)

	logger.L.Info("ProcessUpload END",
		"runID", runID,
		"entriesRead", stats.EntriesRead,
		"entriesIgnored", stats.EntriesIgnored,
		"recordsProduced", stats.RecordCount,
		"duration", time.Since(overallStartTime))
	return summary, nil
}

func (s *conversionServiceImpl) GetLatestSummary() (*ConversionSummary, error) {
	if cached, found := s.resultCache.Get(ckLatestSummary); found {
		logger.L.Debug("Cache hit for GetLatestSummary")
		return cached.(*ConversionSummary), nil
	}
	logger.L.Info("Cache miss for GetLatestSummary, fetching from DB")

	var summary ConversionSummary
	var uploadedAtStr string
	err := database.DB.QueryRow(`SELECT id, source, uploaded_at, entries_read, entries_ignored, record_count FROM conversion_runs ORDER BY uploaded_at DESC, id DESC LIMIT 1`).
		Scan(&summary.RunID, &summary.Source, &uploadedAtStr, &summary.EntriesRead, &summary.EntriesIgnored, &summary.RecordCount)
	if err == sql.ErrNoRows {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying latest conversion run: %w", err)
	}
	if summary.UploadedAt, err = time.Parse(time.RFC3339Nano, uploadedAtStr); err != nil {
		return nil, fmt.Errorf("error parsing uploaded_at for run %s: %w", summary.RunID, err)
	}

	if summary.Records, err = s.GetRunRecords(summary.RunID); err != nil {
		return nil, err
	}

	s.resultCache.Set(ckLatestSummary, &summary, DefaultCacheExpiration)
	return &summary, nil
}

func (s *conversionServiceImpl) GetRunRecords(runID string) ([]models.TransactionRecord, error) {
	var exists int
	if err := database.DB.QueryRow(`SELECT COUNT(1) FROM conversion_runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("error checking conversion run %s: %w", runID, err)
	}
	if exists == 0 {
		return nil, ErrRunNotFound
	}

	rows, err := database.DB.Query(`SELECT date, received_quantity, received_currency, sent_quantity, sent_currency, fee_amount, fee_currency, tag, remark FROM transaction_records WHERE run_id = ? ORDER BY seq ASC`, runID)
	if err != nil {
		return nil, fmt.Errorf("error querying records for run %s: %w", runID, err)
	}
	defer rows.Close()

	var records []models.TransactionRecord
	for rows.Next() {
		var dateStr, rq, rc, sq, sc, fq, fc, tag, remark string
		if err := rows.Scan(&dateStr, &rq, &rc, &sq, &sc, &fq, &fc, &tag, &remark); err != nil {
			return nil, fmt.Errorf("error scanning record row for run %s: %w", runID, err)
		}

		var record models.TransactionRecord
		if record.Date, err = time.Parse(time.RFC3339Nano, dateStr); err != nil {
			return nil, fmt.Errorf("error parsing record date for run %s: %w", runID, err)
		}
		record.Tag = tag
		record.Remark = remark
		if record.Received, err = moneyFromColumns(rq, rc); err != nil {
			return nil, fmt.Errorf("error restoring received leg for run %s: %w", runID, err)
		}
		if record.Sent, err = moneyFromColumns(sq, sc); err != nil {
			return nil, fmt.Errorf("error restoring sent leg for run %s: %w", runID, err)
		}
		if record.Fee, err = moneyFromColumns(fq, fc); err != nil {
			return nil, fmt.Errorf("error restoring fee leg for run %s: %w", runID, err)
		}
		records = append(records, record)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over record rows for run %s: %w", runID, err)
	}
	return records, nil
}

// ExportRun streams a stored run as a CoinTracker CSV.
func (s *conversionServiceImpl) ExportRun(runID string, w io.Writer) error {
	records, err := s.GetRunRecords(runID)
	if err != nil {
		return err
	}
	return s.exporter.Write(records, w)
}

func (s *conversionServiceImpl) DeleteAllRecords() error {
	dbTx, err := database.DB.Begin()
	if err != nil {
		return fmt.Errorf("error beginning database transaction: %w", err)
	}
	defer dbTx.Rollback()

	if _, err := dbTx.Exec(`DELETE FROM transaction_records`); err != nil {
		return fmt.Errorf("error deleting transaction records: %w", err)
	}
	if _, err := dbTx.Exec(`DELETE FROM conversion_runs`); err != nil {
		return fmt.Errorf("error deleting conversion runs: %w", err)
	}
	if err := dbTx.Commit(); err != nil {
		return fmt.Errorf("error committing deletes: %w", err)
	}

	s.resultCache.Delete(ckLatestSummary)
	logger.L.Info("Deleted all conversion runs and records")
	return nil
}

func moneyColumns(m *models.Money) (quantity, currency string) {
	if m == nil {
		return "", ""
	}
	return m.Quantity.String(), m.Currency
}

func moneyFromColumns(quantity, currency string) (*models.Money, error) {
	if quantity == "" {
		return nil, nil
	}
	q, err := decimal.NewFromString(quantity)
	if err != nil {
		return nil, fmt.Errorf("invalid stored quantity %q: %w", quantity, err)
	}
	return &models.Money{Quantity: q, Currency: currency}, nil
}
