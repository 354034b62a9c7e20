// backend/src/handlers/convert_handler.go
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/username/coinfolio/backend/src/config"
	"github.com/username/coinfolio/backend/src/logger"
	"github.com/username/coinfolio/backend/src/security/validation"
	"github.com/username/coinfolio/backend/src/services"
	"github.com/username/coinfolio/backend/src/utils"
)

type ConvertHandler struct {
	conversionService services.ConversionService
}

func NewConvertHandler(service services.ConversionService) *ConvertHandler {
	return &ConvertHandler{
		conversionService: service,
	}
}

// HandleConvert accepts a multipart upload of an exchange export and responds
// with the conversion summary of the new run.
func (h *ConvertHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(config.Cfg.MaxUploadSizeBytes); err != nil {
		logger.L.Warn("Failed to parse multipart form or request too large", "error", err, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("Failed to parse form or request too large (max %d MB)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		logger.L.Warn("Failed to retrieve file from request", "error", err)
		utils.SendJSONError(w, "Failed to retrieve file from request. Ensure 'file' field is used.", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if fileHeader.Size > config.Cfg.MaxUploadSizeBytes {
		logger.L.Warn("Uploaded file header reports size too large", "fileSize", fileHeader.Size, "limit", config.Cfg.MaxUploadSizeBytes)
		utils.SendJSONError(w, fmt.Sprintf("File too large, max %d MB (header check)", config.Cfg.MaxUploadSizeBytes/(1024*1024)), http.StatusBadRequest)
		return
	}

	clientContentType := fileHeader.Header.Get("Content-Type")
	if err := validation.ValidateClientContentType(clientContentType); err != nil {
		logger.L.Warn("Invalid client-declared file type", "contentType", clientContentType, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	detectedContentType, err := validation.ValidateFileContentByMagicBytes(file)
	if err != nil {
		logger.L.Warn("Server-side file content validation failed", "filename", fileHeader.Filename, "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	logger.L.Info("File content validated by magic bytes", "filename", fileHeader.Filename, "clientType", clientContentType, "detectedType", detectedContentType)

	source := r.FormValue("source")
	if source == "" {
		source = "binance"
	}

	logger.L.Info("Processing conversion request", "filename", fileHeader.Filename, "source", source)
	result, err := h.conversionService.ProcessUpload(file, source)
	if err != nil {
		if errors.Is(err, services.ErrParsingFailed) {
			logger.L.Warn("Conversion failed due to CSV parsing errors", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error parsing CSV file: %v", err), http.StatusBadRequest)
		} else if errors.Is(err, services.ErrProcessingFailed) {
			logger.L.Warn("Conversion failed during correlation", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, fmt.Sprintf("Error correlating ledger entries: %v", err), http.StatusUnprocessableEntity)
		} else {
			logger.L.Error("Internal error processing conversion", "filename", fileHeader.Filename, "error", err)
			utils.SendJSONError(w, "An internal error occurred while processing the file. Please try again later.", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(result); err != nil {
		logger.L.Error("Error encoding JSON response for conversion result", "error", err)
	}
}

// HandleGetLatestSummary serves the most recent conversion with ETag support.
func (h *ConvertHandler) HandleGetLatestSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.conversionService.GetLatestSummary()
	if err != nil {
		if errors.Is(err, services.ErrRunNotFound) {
			utils.SendJSONError(w, "no conversions yet", http.StatusNotFound)
			return
		}
		logger.L.Error("Error retrieving latest conversion summary", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving latest conversion: %v", err), http.StatusInternalServerError)
		return
	}

	currentETag, etagErr := utils.GenerateETag(summary)

	w.Header().Set("Cache-Control", "no-cache, private")

	if etagErr == nil && currentETag != "" {
		quotedETag := fmt.Sprintf("%q", currentETag)
		w.Header().Set("ETag", quotedETag)
		for _, cETag := range strings.Split(r.Header.Get("If-None-Match"), ",") {
			if strings.TrimSpace(cETag) == quotedETag {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
	} else {
		logger.L.Warn("Proceeding without ETag check due to ETag generation error or empty ETag")
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary); err != nil {
		logger.L.Error("Error generating JSON response for conversion summary", "error", err)
	}
}

// HandleGetRecords serves the transaction records of the most recent run as
// a JSON array, without the run metadata wrapper.
func (h *ConvertHandler) HandleGetRecords(w http.ResponseWriter, r *http.Request) {
	summary, err := h.conversionService.GetLatestSummary()
	if err != nil {
		if errors.Is(err, services.ErrRunNotFound) {
			utils.SendJSONError(w, "no conversions yet", http.StatusNotFound)
			return
		}
		logger.L.Error("Error retrieving records of latest conversion", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error retrieving records: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(summary.Records); err != nil {
		logger.L.Error("Error encoding JSON response for record list", "error", err)
	}
}

// HandleExportRun streams a stored run as a CoinTracker CSV download.
func (h *ConvertHandler) HandleExportRun(w http.ResponseWriter, r *http.Request) {
	runID := r.PathValue("id")
	if runID == "" {
		utils.SendJSONError(w, "missing run id", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "cointracker-"+runID+".csv"))

	if err := h.conversionService.ExportRun(runID, w); err != nil {
		if errors.Is(err, services.ErrRunNotFound) {
			// Headers above are already set, but no body has been written yet.
			w.Header().Del("Content-Disposition")
			utils.SendJSONError(w, fmt.Sprintf("conversion run %s not found", runID), http.StatusNotFound)
			return
		}
		logger.L.Error("Error exporting conversion run", "runID", runID, "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error exporting run %s: %v", runID, err), http.StatusInternalServerError)
	}
}

// HandleDeleteAllRecords wipes every stored run and record.
func (h *ConvertHandler) HandleDeleteAllRecords(w http.ResponseWriter, r *http.Request) {
	if err := h.conversionService.DeleteAllRecords(); err != nil {
		logger.L.Error("Error deleting conversion data", "error", err)
		utils.SendJSONError(w, fmt.Sprintf("Error deleting conversion data: %v", err), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "all conversion data deleted"})
}
