// Package export turns query results into parquet files in object storage
// so large answers can be pulled into spreadsheets or notebooks.
package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/atlas-insights/sibyl/internal/executor"
)

const parquetContentType = "application/vnd.apache.parquet"

type Exporter struct {
	store  ObjectStore
	prefix string
	logger *slog.Logger
	now    func() time.Time
}

func New(store ObjectStore, prefix string, logger *slog.Logger) *Exporter {
	return &Exporter{store: store, prefix: prefix, logger: logger, now: time.Now}
}

// Export encodes the result and uploads it under a date-partitioned key.
// Returns the object key of the uploaded file.
func (e *Exporter) Export(ctx context.Context, result executor.Result, sessionID string) (string, error) {
	data, records, err := EncodeResult(result)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}

	key := e.objectKey()
	if err := e.store.Put(ctx, key, bytes.NewReader(data), int64(len(data)), parquetContentType); err != nil {
		return "", fmt.Errorf("upload export: %w", err)
	}

	e.logger.Info("result exported",
		"session_id", sessionID,
		"key", key,
		"records", records,
		"bytes", len(data))
	return key, nil
}

func (e *Exporter) objectKey() string {
	now := e.now().UTC()
	return path.Join(e.prefix, now.Format("2006/01/02"), uuid.NewString()+".parquet")
}
