package services

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/coinfolio/backend/src/database"
	"github.com/username/coinfolio/backend/src/exporters/cointracker"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/processors"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

const sampleStatement = `"User_ID","UTC_Time","Account","Operation","Coin","Change","Remark"
"100001","2023-03-10 09:15:30","Spot","Sell","BTC","-0.5",""
"100001","2023-03-10 09:15:30","Spot","Buy","USDT","11250",""
"100001","2023-03-10 09:15:31","Spot","Fee","BNB","-0.0125",""
"100001","2023-04-01 10:00:00","Spot","Deposit","EUR","500",""
"100001","2023-04-02 11:00:00","Spot","Super BNB Mining","BNB","0.5",""
`

func newTestService(t *testing.T) ConversionService {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { database.DB.Close() })

	return NewConversionService(
		processors.NewCorrelator(),
		cointracker.NewWriter(time.UTC),
		cache.New(DefaultCacheExpiration, CacheCleanupInterval),
	)
}

func TestProcessUploadPersistsRun(t *testing.T) {
	service := newTestService(t)

	summary, err := service.ProcessUpload(strings.NewReader(sampleStatement), "binance")
	if err != nil {
		t.Fatalf("ProcessUpload() unexpected error: %v", err)
	}
	if summary.RunID == "" {
		t.Error("RunID is empty")
	}
	if summary.Source != "binance" {
		t.Errorf("Source = %q, want binance", summary.Source)
	}
	if summary.EntriesRead != 5 {
		t.Errorf("EntriesRead = %d, want 5", summary.EntriesRead)
	}
	if summary.EntriesIgnored != 1 {
		t.Errorf("EntriesIgnored = %d, want 1", summary.EntriesIgnored)
	}
	if summary.RecordCount != 2 {
		t.Errorf("RecordCount = %d, want 2", summary.RecordCount)
	}

	records, err := service.GetRunRecords(summary.RunID)
	if err != nil {
		t.Fatalf("GetRunRecords() unexpected error: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	trade := records[0]
	if trade.Sent == nil || trade.Sent.Currency != "BTC" {
		t.Errorf("Sent = %+v, want BTC leg restored from the database", trade.Sent)
	}
	if trade.Fee == nil || trade.Fee.Currency != "BNB" {
		t.Errorf("Fee = %+v, want BNB leg restored from the database", trade.Fee)
	}
	wantDate := time.Date(2023, 3, 10, 9, 15, 30, 0, time.UTC)
	if !trade.Date.Equal(wantDate) {
		t.Errorf("Date = %s, want %s", trade.Date, wantDate)
	}
	deposit := records[1]
	if deposit.Received == nil || deposit.Received.Currency != "EUR" {
		t.Errorf("Received = %+v, want EUR deposit as the second record", deposit.Received)
	}
	if deposit.Sent != nil || deposit.Fee != nil {
		t.Errorf("deposit record has unexpected legs: %+v", deposit)
	}
}

func TestProcessUploadRejectsUnknownSource(t *testing.T) {
	service := newTestService(t)

	_, err := service.ProcessUpload(strings.NewReader(sampleStatement), "kraken")
	if !errors.Is(err, ErrParsingFailed) {
		t.Fatalf("ProcessUpload() error = %v, want ErrParsingFailed", err)
	}
}

func TestProcessUploadMalformedFile(t *testing.T) {
	service := newTestService(t)

	malformed := `"User_ID","UTC_Time","Account","Operation","Coin","Change","Remark"
"100001","not a date","Spot","Sell","BTC","-0.5",""
`
	_, err := service.ProcessUpload(strings.NewReader(malformed), "binance")
	if !errors.Is(err, ErrParsingFailed) {
		t.Fatalf("ProcessUpload() error = %v, want ErrParsingFailed", err)
	}
}

func TestProcessUploadCorrelationFailureWritesNothing(t *testing.T) {
	service := newTestService(t)

	// Positive Sell contradicts the operation direction.
	bad := `"User_ID","UTC_Time","Account","Operation","Coin","Change","Remark"
"100001","2023-03-10 09:15:30","Spot","Sell","BTC","0.5",""
`
	_, err := service.ProcessUpload(strings.NewReader(bad), "binance")
	if !errors.Is(err, ErrProcessingFailed) {
		t.Fatalf("ProcessUpload() error = %v, want ErrProcessingFailed", err)
	}

	if _, err := service.GetLatestSummary(); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetLatestSummary() after failed upload = %v, want ErrRunNotFound", err)
	}
}

func TestGetLatestSummaryFromCacheAndDB(t *testing.T) {
	service := newTestService(t)

	uploaded, err := service.ProcessUpload(strings.NewReader(sampleStatement), "binance")
	if err != nil {
		t.Fatalf("ProcessUpload() unexpected error: %v", err)
	}

	// Cache hit path.
	cached, err := service.GetLatestSummary()
	if err != nil {
		t.Fatalf("GetLatestSummary() unexpected error: %v", err)
	}
	if cached.RunID != uploaded.RunID {
		t.Errorf("cached RunID = %q, want %q", cached.RunID, uploaded.RunID)
	}

	// Force the DB path with a fresh service sharing the same database.
	fresh := NewConversionService(
		processors.NewCorrelator(),
		cointracker.NewWriter(time.UTC),
		cache.New(DefaultCacheExpiration, CacheCleanupInterval),
	)
	fromDB, err := fresh.GetLatestSummary()
	if err != nil {
		t.Fatalf("GetLatestSummary() from DB unexpected error: %v", err)
	}
	if fromDB.RunID != uploaded.RunID {
		t.Errorf("DB RunID = %q, want %q", fromDB.RunID, uploaded.RunID)
	}
	if len(fromDB.Records) != uploaded.RecordCount {
		t.Errorf("len(Records) = %d, want %d", len(fromDB.Records), uploaded.RecordCount)
	}
}

func TestExportRun(t *testing.T) {
	service := newTestService(t)

	summary, err := service.ProcessUpload(strings.NewReader(sampleStatement), "binance")
	if err != nil {
		t.Fatalf("ProcessUpload() unexpected error: %v", err)
	}

	var buf bytes.Buffer
	if err := service.ExportRun(summary.RunID, &buf); err != nil {
		t.Fatalf("ExportRun() unexpected error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}
	if lines[1] != "03/10/2023 09:15:30,11250,USDT,0.5,BTC,0.0125,BNB," {
		t.Errorf("row 1 = %q", lines[1])
	}
	if lines[2] != "04/01/2023 10:00:00,500,EUR,,,,," {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestExportRunUnknownID(t *testing.T) {
	service := newTestService(t)

	var buf bytes.Buffer
	err := service.ExportRun("does-not-exist", &buf)
	if !errors.Is(err, ErrRunNotFound) {
		t.Fatalf("ExportRun() error = %v, want ErrRunNotFound", err)
	}
	if buf.Len() != 0 {
		t.Errorf("ExportRun() wrote %d bytes for a missing run, want 0", buf.Len())
	}
}

func TestDeleteAllRecords(t *testing.T) {
	service := newTestService(t)

	if _, err := service.ProcessUpload(strings.NewReader(sampleStatement), "binance"); err != nil {
		t.Fatalf("ProcessUpload() unexpected error: %v", err)
	}

	if err := service.DeleteAllRecords(); err != nil {
		t.Fatalf("DeleteAllRecords() unexpected error: %v", err)
	}

	if _, err := service.GetLatestSummary(); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("GetLatestSummary() after delete = %v, want ErrRunNotFound", err)
	}
}
