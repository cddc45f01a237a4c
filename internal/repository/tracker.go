package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/mkelechi/docextract/constants"
	"github.com/mkelechi/docextract/internal/common"
)

// RequestMetadata is stored alongside every tracked request and drives
// duplicate detection.
type RequestMetadata struct {
	FileName string `json:"file_name"`
	FileType string `json:"file_type"`
	Checksum string `json:"checksum"`
	Size     int64  `json:"size,omitempty"`
}

// RequestRecord is one row of the extraction tracker.
type RequestRecord struct {
	RequestID     string
	ApplicationID string
	Metadata      RequestMetadata
	Status        constants.RequestStatus
	ExtractedData json.RawMessage
	Message       string
	Errors        json.RawMessage
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// StatusUpdate carries the optional payload of a status transition.
type StatusUpdate struct {
	Data    json.RawMessage
	Message string
	Errors  json.RawMessage
}

// RequestRepository tracks extraction requests through their lifecycle.
type RequestRepository interface {
	Submit(ctx context.Context, applicationID string, meta RequestMetadata) (*RequestRecord, error)
	SetStatus(ctx context.Context, requestID string, status constants.RequestStatus, upd StatusUpdate) error
	Get(ctx context.Context, requestID string) (*RequestRecord, error)
	FindByChecksum(ctx context.Context, applicationID, checksum string) (*RequestRecord, error)
	List(ctx context.Context, applicationID string, limit, offset int) ([]*RequestRecord, error)
}

// ErrTerminalState is returned when a transition targets a request that has
// already completed or failed.
var ErrTerminalState = errors.New("request already in terminal state")

type trackerStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

// NewTrackerStore builds the SQL-backed RequestRepository.
func NewTrackerStore(db *sql.DB, dialect Dialect, logger *slog.Logger) RequestRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &trackerStore{db: db, dialect: dialect, logger: logger}
}

func (s *trackerStore) Submit(ctx context.Context, applicationID string, meta RequestMetadata) (*RequestRecord, error) {
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	now := time.Now().UTC()
	rec := &RequestRecord{
		RequestID:     uuid.New().String(),
		ApplicationID: applicationID,
		Metadata:      meta,
		Status:        constants.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_tracker
			(request_id, application_id, metadata, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		rec.RequestID, rec.ApplicationID, string(metaJSON), string(rec.Status), now, now)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "failed to record extraction request", err)
	}
	s.logger.Info("tracker.submit", "request_id", rec.RequestID, "application_id", applicationID, "checksum", meta.Checksum)
	return rec, nil
}

func (s *trackerStore) SetStatus(ctx context.Context, requestID string, status constants.RequestStatus, upd StatusUpdate) error {
	if !constants.ValidStatus(status) {
		return common.NewAppError("INVALID_STATUS", fmt.Sprintf("unknown status %q", status), nil)
	}
	var data, errs any
	if len(upd.Data) > 0 {
		data = string(upd.Data)
	}
	if len(upd.Errors) > 0 {
		errs = string(upd.Errors)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_tracker
			SET status = $1,
			    extracted_data = COALESCE($2, extracted_data),
			    message = $3,
			    errors = COALESCE($4, errors),
			    updated_at = $5
		WHERE request_id = $6
		  AND status NOT IN ('completed', 'failed')`,
		string(status), data, upd.Message, errs, time.Now().UTC(), requestID)
	if err != nil {
		return common.NewAppError("DB_ERROR", "failed to update request status", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return common.NewAppError("DB_ERROR", "failed to read update result", err)
	}
	if n == 0 {
		if _, getErr := s.Get(ctx, requestID); getErr != nil {
			return getErr
		}
		return ErrTerminalState
	}
	s.logger.Info("tracker.status", "request_id", requestID, "status", status)
	return nil
}

func (s *trackerStore) Get(ctx context.Context, requestID string) (*RequestRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT request_id, application_id, metadata, status, extracted_data, message, errors, created_at, updated_at
		FROM extraction_tracker WHERE request_id = $1`, requestID)
	return scanRecord(row)
}

func (s *trackerStore) FindByChecksum(ctx context.Context, applicationID, checksum string) (*RequestRecord, error) {
	// Checksum lives inside the metadata document, which is JSONB on
	// postgres and serialized TEXT on sqlite.
	expr := `json_extract(metadata, '$.checksum')`
	if s.dialect == DialectPostgres {
		expr = `metadata->>'checksum'`
	}
	row := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT request_id, application_id, metadata, status, extracted_data, message, errors, created_at, updated_at
		FROM extraction_tracker
		WHERE application_id = $1 AND %s = $2
		ORDER BY created_at DESC
		LIMIT 1`, expr), applicationID, checksum)
	return scanRecord(row)
}

// List returns an application's requests, newest first.
func (s *trackerStore) List(ctx context.Context, applicationID string, limit, offset int) ([]*RequestRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT request_id, application_id, metadata, status, extracted_data, message, errors, created_at, updated_at
		FROM extraction_tracker
		WHERE application_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, applicationID, limit, offset)
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "failed to list requests", err)
	}
	defer rows.Close()

	var recs []*RequestRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, common.NewAppError("DB_ERROR", "failed to list requests", err)
	}
	return recs, nil
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*RequestRecord, error) {
	var (
		rec      RequestRecord
		metaJSON string
		status   string
		data     sql.NullString
		message  sql.NullString
		errsJSON sql.NullString
	)
	err := row.Scan(&rec.RequestID, &rec.ApplicationID, &metaJSON, &status,
		&data, &message, &errsJSON, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, common.NewAppError("DB_ERROR", "failed to read request record", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &rec.Metadata); err != nil {
		return nil, common.NewAppError("DB_ERROR", "corrupt request metadata", err)
	}
	rec.Status = constants.RequestStatus(status)
	if data.Valid {
		rec.ExtractedData = json.RawMessage(data.String)
	}
	if message.Valid {
		rec.Message = message.String
	}
	if errsJSON.Valid {
		rec.Errors = json.RawMessage(errsJSON.String)
	}
	return &rec, nil
}
