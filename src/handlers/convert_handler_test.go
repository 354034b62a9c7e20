package handlers

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/database"
	"github.com/username/coinfolio/backend/src/exporters/cointracker"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/models"
	"github.com/username/coinfolio/backend/src/processors"
	"github.com/username/coinfolio/backend/src/services"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	config.Cfg = &config.AppConfig{
		MaxUploadSizeBytes: 10 * 1024 * 1024,
		OutputTimezone:     "UTC",
		OutputLocation:     time.UTC,
	}
	os.Exit(m.Run())
}

const sampleStatement = `"User_ID","UTC_Time","Account","Operation","Coin","Change","Remark"
"100001","2023-03-10 09:15:30","Spot","Sell","BTC","-0.5",""
"100001","2023-03-10 09:15:30","Spot","Buy","USDT","11250",""
"100001","2023-04-01 10:00:00","Spot","Deposit","EUR","500",""
`

func newTestMux(t *testing.T) *http.ServeMux {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	t.Cleanup(func() { database.DB.Close() })

	service := services.NewConversionService(
		processors.NewCorrelator(),
		cointracker.NewWriter(time.UTC),
		cache.New(services.DefaultCacheExpiration, services.CacheCleanupInterval),
	)
	handler := NewConvertHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/convert", handler.HandleConvert)
	mux.HandleFunc("GET /api/conversions/latest", handler.HandleGetLatestSummary)
	mux.HandleFunc("GET /api/conversions/{id}/export", handler.HandleExportRun)
	mux.HandleFunc("GET /api/records", handler.HandleGetRecords)
	mux.HandleFunc("DELETE /api/records/all", handler.HandleDeleteAllRecords)
	return mux
}

func uploadSample(t *testing.T, mux *http.ServeMux) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "statement.csv")
	if err != nil {
		t.Fatalf("CreateFormFile() unexpected error: %v", err)
	}
	if _, err := part.Write([]byte(sampleStatement)); err != nil {
		t.Fatalf("writing form file: %v", err)
	}
	writer.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/convert", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /api/convert status = %d, body = %s", rec.Code, rec.Body.String())
	}
}

func TestHandleConvertAndGetRecords(t *testing.T) {
	mux := newTestMux(t)
	uploadSample(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/records status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var records []models.TransactionRecord
	if err := json.NewDecoder(rec.Body).Decode(&records); err != nil {
		t.Fatalf("decoding record list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("len(records) = %d, want 2", len(records))
	}
	if records[0].Sent == nil || records[0].Sent.Currency != "BTC" {
		t.Errorf("records[0].Sent = %+v, want BTC leg", records[0].Sent)
	}
	if records[1].Received == nil || records[1].Received.Currency != "EUR" {
		t.Errorf("records[1].Received = %+v, want EUR deposit", records[1].Received)
	}
}

func TestHandleGetRecordsEmpty(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/records", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /api/records status = %d, want 404 before any conversion", rec.Code)
	}
}

func TestHandleDeleteAllRecordsRoute(t *testing.T) {
	mux := newTestMux(t)
	uploadSample(t, mux)

	req := httptest.NewRequest(http.MethodDelete, "/api/records/all", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /api/records/all status = %d, body = %s", rec.Code, rec.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/api/records", nil)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("GET /api/records after delete status = %d, want 404", rec.Code)
	}
}

func TestHandleExportRunNotFound(t *testing.T) {
	mux := newTestMux(t)

	req := httptest.NewRequest(http.MethodGet, "/api/conversions/does-not-exist/export", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Errorf("export of unknown run status = %d, want 404", rec.Code)
	}
}

func TestHandleGetLatestSummaryETag(t *testing.T) {
	mux := newTestMux(t)
	uploadSample(t, mux)

	req := httptest.NewRequest(http.MethodGet, "/api/conversions/latest", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/conversions/latest status = %d", rec.Code)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("response has no ETag header")
	}
	if !strings.HasPrefix(etag, `"`) {
		t.Errorf("ETag %q is not quoted", etag)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/conversions/latest", nil)
	req.Header.Set("If-None-Match", etag)
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotModified {
		t.Errorf("conditional GET status = %d, want 304", rec.Code)
	}
}
