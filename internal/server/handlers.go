package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/mkelechi/docextract/constants"
	"github.com/mkelechi/docextract/internal/common"
	"github.com/mkelechi/docextract/internal/repository"
	"github.com/mkelechi/docextract/internal/storage"
)

const maxUploadBytes = 50 << 20

// extractResponse is the body returned by POST /extract and GET /status.
type extractResponse struct {
	RequestID string          `json:"request_id"`
	Status    string          `json:"status"`
	Message   string          `json:"message,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
	Errors    json.RawMessage `json:"errors,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

func toResponse(rec *repository.RequestRecord) extractResponse {
	return extractResponse{
		RequestID: rec.RequestID,
		Status:    string(rec.Status),
		Message:   rec.Message,
		Data:      rec.ExtractedData,
		Errors:    rec.Errors,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// handleExtract accepts a multipart upload, deduplicates it by content
// checksum, records the request and schedules background processing.
//
// Duplicate handling: a completed prior request for the same content
// returns its result immediately; a pending or processing one returns its
// request id so the caller can poll. A failed prior request does not block
// resubmission.
func (s *Service) handleExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "malformed multipart body")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "missing file field")
		return
	}
	defer file.Close()

	fileName := filepath.Base(header.Filename)
	ext := constants.NormalizeExt(filepath.Ext(fileName))
	format := constants.MapExtToFormat(ext)
	if format == "" {
		writeError(w, http.StatusUnsupportedMediaType, "UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("unsupported file type %q, allowed: %v", ext, constants.FileTypes))
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "READ_ERROR", "failed to read upload")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "empty file")
		return
	}
	if len(data) > maxUploadBytes {
		writeError(w, http.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "upload exceeds size limit")
		return
	}

	checksum := fmt.Sprintf("%08x", crc32.ChecksumIEEE(data))

	prior, err := s.tracker.FindByChecksum(r.Context(), s.cfg.ApplicationID, checksum)
	if err != nil && !errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "duplicate lookup failed")
		return
	}
	if prior != nil && prior.Status != constants.StatusFailed {
		s.logger.Info("server.extract.duplicate",
			"request_id", prior.RequestID, "status", prior.Status, "checksum", checksum)
		code := http.StatusAccepted
		if prior.Status == constants.StatusCompleted {
			code = http.StatusOK
		}
		writeJSON(w, code, toResponse(prior))
		return
	}
	if prior != nil && prior.Status == constants.StatusFailed {
		// The new attempt supersedes the failed one; drop its archived copy
		// so the bucket holds one object per live request.
		priorKey := storage.ObjectKey(s.cfg.ApplicationID, prior.RequestID, ext)
		if err := s.store.Delete(r.Context(), priorKey); err != nil {
			s.logger.Warn("server.extract.archive_cleanup_failed", "request_id", prior.RequestID, "error", err)
		}
	}

	rec, err := s.tracker.Submit(r.Context(), s.cfg.ApplicationID, repository.RequestMetadata{
		FileName: fileName,
		FileType: format,
		Checksum: checksum,
		Size:     int64(len(data)),
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to record request")
		return
	}

	tmp, err := os.CreateTemp("", "dx-upload-*."+ext)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "IO_ERROR", "failed to stage upload")
		return
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		writeError(w, http.StatusInternalServerError, "IO_ERROR", "failed to stage upload")
		return
	}
	tmp.Close()

	// Archive the original best effort; the pipeline runs from the staged
	// copy either way.
	if _, err := s.store.Upload(r.Context(), storage.ObjectKey(s.cfg.ApplicationID, rec.RequestID, ext),
		data, constants.MapExtToMime(ext)); err != nil {
		s.logger.Warn("server.extract.archive_failed", "request_id", rec.RequestID, "error", err)
	}

	go s.processBackground(rec.RequestID, tmp.Name())

	writeJSON(w, http.StatusAccepted, toResponse(rec))
}

func (s *Service) processBackground(requestID, path string) {
	defer os.Remove(path)
	// Detached from the request context; the upload response has already
	// been sent when this runs.
	s.processor.ProcessRequest(context.Background(), requestID, path)
}

// handleStatus returns the current tracker record for a request.
func (s *Service) handleStatus(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")
	rec, err := s.tracker.Get(r.Context(), requestID)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("unknown request id %q", requestID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to load request")
		return
	}
	writeJSON(w, http.StatusOK, toResponse(rec))
}

// handleHistory lists the application's past requests, newest first, with
// limit/offset paging.
func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	recs, err := s.tracker.List(r.Context(), s.cfg.ApplicationID, limit, offset)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to list requests")
		return
	}
	out := make([]extractResponse, len(recs))
	for i, rec := range recs {
		out[i] = toResponse(rec)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(out),
		"requests": out,
	})
}

// handleGetBase64 returns the archived original file for a request,
// base64-encoded. 404 when the request is unknown or the original was never
// archived (no object storage configured).
func (s *Service) handleGetBase64(w http.ResponseWriter, r *http.Request) {
	requestID := chi.URLParam(r, "request_id")
	rec, err := s.tracker.Get(r.Context(), requestID)
	if errors.Is(err, common.ErrNotFound) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("unknown request id %q", requestID))
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "DB_ERROR", "failed to load request")
		return
	}

	ext := constants.NormalizeExt(filepath.Ext(rec.Metadata.FileName))
	data, err := s.store.Fetch(r.Context(), storage.ObjectKey(s.cfg.ApplicationID, rec.RequestID, ext))
	if err != nil {
		s.logger.Warn("server.base64.fetch_failed", "request_id", requestID, "error", err)
		writeError(w, http.StatusBadGateway, "STORAGE_ERROR", "failed to fetch original file")
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusNotFound, "NOT_ARCHIVED", "original file was not archived for this request")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"request_id":     rec.RequestID,
		"file_name":      rec.Metadata.FileName,
		"file_type":      rec.Metadata.FileType,
		"content_base64": base64.StdEncoding.EncodeToString(data),
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, errCode, msg string) {
	writeJSON(w, code, map[string]string{"error": errCode, "message": msg})
}
