// backend/src/services/interfaces.go
package services

import (
	"errors"
	"io"
	"time"

	"github.com/username/coinfolio/backend/src/models"
)

var (
	ErrParsingFailed    = errors.New("parsing failed")
	ErrProcessingFailed = errors.New("processing failed")
	ErrRunNotFound      = errors.New("conversion run not found")
)

// ConversionSummary holds the outcome of one converted upload.
type ConversionSummary struct {
	RunID          string                     `json:"run_id"`
	Source         string                     `json:"source"`
	UploadedAt     time.Time                  `json:"uploaded_at"`
	EntriesRead    int                        `json:"entries_read"`
	EntriesIgnored int                        `json:"entries_ignored"`
	RecordCount    int                        `json:"record_count"`
	Records        []models.TransactionRecord `json:"records"`
}

// ConversionService defines the interface for the core conversion logic:
// parse an exchange export, correlate its entries into transaction records,
// persist the result, and export it in the CoinTracker format.
type ConversionService interface {
	ProcessUpload(fileReader io.Reader, source string) (*ConversionSummary, error)
	GetLatestSummary() (*ConversionSummary, error)
	GetRunRecords(runID string) ([]models.TransactionRecord, error)
	ExportRun(runID string, w io.Writer) error
	DeleteAllRecords() error
}
