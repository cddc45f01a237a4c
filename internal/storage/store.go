package storage

import (
	"context"
	"log/slog"
)

// ObjectStore archives original uploads. The extraction pipeline never
// depends on the archive succeeding; upload failures are logged and the
// request proceeds.
type ObjectStore interface {
	Upload(ctx context.Context, key string, data []byte, contentType string) (string, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// NoopStore is the fallback when no object storage is configured.
type NoopStore struct {
	logger *slog.Logger
}

func NewNoopStore(logger *slog.Logger) *NoopStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &NoopStore{logger: logger}
}

func (n *NoopStore) Upload(_ context.Context, key string, _ []byte, _ string) (string, error) {
	n.logger.Debug("storage.noop.upload", "key", key)
	return "", nil
}

func (n *NoopStore) Fetch(_ context.Context, key string) ([]byte, error) {
	n.logger.Debug("storage.noop.fetch", "key", key)
	return nil, nil
}

func (n *NoopStore) Delete(_ context.Context, key string) error {
	return nil
}
