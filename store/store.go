package store

import (
	"context"
	"io"
	"time"

	"github.com/Yulian302/lfusys-services-studio/health"
	"github.com/Yulian302/lfusys-services-studio/models"
)

// ObjectStorage writes the uploaded ZIP and its metadata marker.
type ObjectStorage interface {
	PutObject(ctx context.Context, in PutObjectInput) (*PutObjectOutput, error)
	PutMarker(ctx context.Context, key string, body []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	GenerateDownloadUrl(ctx context.Context, key string, ttl time.Duration) (string, error)
	Bucket() string

	health.ReadinessCheck
}

type PutObjectInput struct {
	Key         string
	Body        io.Reader
	Size        int64
	ContentType string
	// OnProgress is called with the cumulative bytes sent.
	OnProgress func(loaded, total int64)
}

type PutObjectOutput struct {
	Location string
	ETag     string
}

// UploadStore is the ledger of upload attempts.
type UploadStore interface {
	Create(ctx context.Context, rec models.UploadRecord) error
	UpdateStatus(ctx context.Context, objectKey string, upd StatusUpdate) error
	Get(ctx context.Context, objectKey string) (*models.UploadRecord, error)
	ListByEmail(ctx context.Context, email string) ([]models.UploadRecord, error)

	health.ReadinessCheck
}

type StatusUpdate struct {
	Status    models.UploadStatus
	MessageID string
	Error     string
}
