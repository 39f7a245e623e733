package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/patent-assistant-client/internal/core/domain"
)

// KeyValueStore is the host's persistent key-value storage.
// Get reports a missing key with domain.ErrKeyNotFound.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

type Clock interface {
	Now() time.Time
}

// Timer is a pending scheduled callback.
type Timer interface {
	Stop() bool
}

// Scheduler runs fn once after d has elapsed.
type Scheduler interface {
	Clock
	AfterFunc(d time.Duration, fn func()) Timer
}

// UploadProgress receives transfer progress as a percentage 0-100.
type UploadProgress func(percent int)

// IngestGateway transfers a document to POST /upload and returns the raw
// document identifier field (empty when the response carried none).
type IngestGateway interface {
	Upload(ctx context.Context, filename string, body io.Reader, size int64, progress UploadProgress) (string, error)
}

// AnalysisGateway fetches GET /analyze/{document_id}.
type AnalysisGateway interface {
	FetchAnalysis(ctx context.Context, documentID string) (*domain.AnalysisPayload, error)
}

// QueryGateway posts to POST /query.
type QueryGateway interface {
	Query(ctx context.Context, req domain.QueryRequest) (*domain.QueryAnswer, error)
}

// LifecycleEvents publishes document lifecycle notifications.
type LifecycleEvents interface {
	Publish(ctx context.Context, event domain.LifecycleEvent) error
}

// StatusFeed delivers backend-pushed processing status for one document.
// The returned channel is closed when ctx is done.
type StatusFeed interface {
	Watch(ctx context.Context, documentID string) (<-chan domain.BackendStatus, error)
}

// DocumentInspector reads metadata from a selected document.
type DocumentInspector interface {
	PageCount(r io.ReaderAt, size int64) (int, error)
}

// LifecycleRecorder receives client-side telemetry.
type LifecycleRecorder interface {
	ObserveUpload(phase domain.UploadPhase)
	ObserveStage(stage domain.ProcessingStage)
	ObserveAnalysis(source domain.AnalysisSource, err error)
	ObserveCacheLookup(hit bool)
	ObserveQuery(outcome string)
}
