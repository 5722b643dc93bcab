package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/caching"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/queues"
	"github.com/Yulian302/lfusys-services-studio/store"
	"github.com/benbjohnson/clock"
)

const (
	progressUploading = "Uploading file"
	progressMarker    = "Creating metadata marker"
	progressNotifying = "Notifying processing queue"
)

type UploadService interface {
	UploadFile(ctx context.Context, file models.FileHandle, user models.UserInfo, client models.ClientInfo, onProgress models.ProgressFunc) (*models.UploadResult, error)
}

type UploadServiceImpl struct {
	storage  store.ObjectStorage
	notifier queues.UploadsNotifier
	ledger   store.UploadStore
	cache    caching.CachingService
	prefix   string
	initErr  error

	clock  clock.Clock
	logger logging.Logger
}

type UploadServiceOption func(*UploadServiceImpl)

// WithLedger records each step of every upload. Ledger failures never fail
// the upload.
func WithLedger(ledger store.UploadStore) UploadServiceOption {
	return func(s *UploadServiceImpl) { s.ledger = ledger }
}

func WithCache(cache caching.CachingService) UploadServiceOption {
	return func(s *UploadServiceImpl) { s.cache = cache }
}

func WithClock(c clock.Clock) UploadServiceOption {
	return func(s *UploadServiceImpl) { s.clock = c }
}

// WithInitError makes every upload report the startup identity failure.
func WithInitError(err error) UploadServiceOption {
	return func(s *UploadServiceImpl) { s.initErr = err }
}

func NewUploadServiceImpl(
	storage store.ObjectStorage,
	notifier queues.UploadsNotifier,
	prefix string,
	l logging.Logger,
	opts ...UploadServiceOption,
) *UploadServiceImpl {
	svc := &UploadServiceImpl{
		storage:  storage,
		notifier: notifier,
		cache:    caching.NewNullCachingService(),
		prefix:   prefix,
		clock:    clock.New(),
		logger:   l,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// UploadFile writes the object, then its marker, then notifies the queue.
// A failed step stops the sequence; nothing already written is undone.
func (svc *UploadServiceImpl) UploadFile(
	ctx context.Context,
	file models.FileHandle,
	user models.UserInfo,
	client models.ClientInfo,
	onProgress models.ProgressFunc,
) (*models.UploadResult, error) {
	if svc.initErr != nil {
		return nil, &apperror.InitError{Err: svc.initErr}
	}
	if onProgress == nil {
		onProgress = func(int, string) {}
	}

	objectKey := ObjectKey(svc.prefix, file.Name, svc.clock.Now())
	markerKey := MarkerKey(objectKey)
	if client.UserID == "" {
		client.UserID = NewUserID(svc.clock.Now())
	}

	svc.logger.Info("upload started", "key", objectKey, "file", file.Name, "size", file.Size, "user_email", user.Email)
	svc.record(ctx, models.UploadRecord{
		ObjectKey: objectKey,
		MarkerKey: markerKey,
		UserEmail: user.Email,
		UserName:  user.Name,
		UserID:    client.UserID,
		FileName:  file.Name,
		FileSize:  file.Size,
		Status:    models.UploadStatusUploading,
		CreatedAt: svc.clock.Now().UTC(),
		UpdatedAt: svc.clock.Now().UTC(),
	})

	body, err := file.Open()
	if err != nil {
		return nil, svc.fail(ctx, objectKey, user.Email, "open", err)
	}
	defer body.Close()

	lastPercent := -1
	out, err := svc.storage.PutObject(ctx, store.PutObjectInput{
		Key:         objectKey,
		Body:        body,
		Size:        file.Size,
		ContentType: file.ContentType(),
		OnProgress: func(loaded, total int64) {
			p := percent(loaded, total)
			if p != lastPercent {
				lastPercent = p
				onProgress(p, progressUploading)
			}
		},
	})
	if err != nil {
		return nil, svc.fail(ctx, objectKey, user.Email, "upload", err)
	}
	svc.advance(ctx, objectKey, user.Email, store.StatusUpdate{Status: models.UploadStatusUploaded})

	onProgress(100, progressMarker)
	metadata := BuildMetadata(file, user, client, svc.clock.Now())
	marker, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, svc.fail(ctx, objectKey, user.Email, "marker", err)
	}
	if err := svc.storage.PutMarker(ctx, markerKey, marker); err != nil {
		return nil, svc.fail(ctx, objectKey, user.Email, "marker", err)
	}
	svc.advance(ctx, objectKey, user.Email, store.StatusUpdate{Status: models.UploadStatusMarked})

	onProgress(100, progressNotifying)
	messageID, err := svc.notifier.Notify(ctx, models.UploadNotification{
		Bucket:     svc.storage.Bucket(),
		Key:        objectKey,
		MarkerKey:  markerKey,
		UploadTime: metadata.Upload.UploadTime,
		FileName:   metadata.File.Name,
		FileSize:   metadata.File.Size,
		UserID:     metadata.Upload.UserID,
		UserName:   metadata.User.Name,
		UserEmail:  metadata.User.Email,
	})
	if err != nil {
		return nil, svc.fail(ctx, objectKey, user.Email, "notify", err)
	}
	svc.advance(ctx, objectKey, user.Email, store.StatusUpdate{Status: models.UploadStatusNotified, MessageID: messageID})

	svc.logger.Info("upload completed", "key", objectKey, "marker_key", markerKey, "message_id", messageID)

	return &models.UploadResult{
		ObjectKey: objectKey,
		MarkerKey: markerKey,
		Location:  out.Location,
		MessageID: messageID,
		Metadata:  metadata,
	}, nil
}

// BuildMetadata assembles the marker body. Missing user fields become
// "Unknown".
func BuildMetadata(file models.FileHandle, user models.UserInfo, client models.ClientInfo, now time.Time) models.UploadMetadata {
	now = now.UTC()
	return models.UploadMetadata{
		File: models.FileAttributes{
			Name:         file.Name,
			Size:         file.Size,
			Type:         file.Type,
			LastModified: isoMillis(file.LastModified),
		},
		Upload: models.UploadAttributes{
			UploadTime:      isoMillis(now),
			UploadTimestamp: now.UnixMilli(),
			UserID:          client.UserID,
		},
		User: models.UserAttributes{
			Name:      orUnknown(user.Name),
			Email:     orUnknown(user.Email),
			UserAgent: client.UserAgent,
			Timezone:  client.Timezone,
		},
		Metadata: models.SchemaAttributes{
			Version: models.MetadataVersion,
			Source:  models.UploadSource,
		},
	}
}

func isoMillis(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}

func orUnknown(v string) string {
	if v == "" {
		return models.UnknownUserField
	}
	return v
}

func percent(loaded, total int64) int {
	if total <= 0 {
		return 100
	}
	p := int(math.Round(float64(loaded) / float64(total) * 100))
	if p > 100 {
		p = 100
	}
	return p
}

func (svc *UploadServiceImpl) fail(ctx context.Context, objectKey, email, step string, err error) error {
	svc.logger.Error("upload failed", "key", objectKey, "step", step, "error", err)
	svc.advance(ctx, objectKey, email, store.StatusUpdate{Status: models.UploadStatusFailed, Error: err.Error()})
	return &apperror.UploadError{Step: step, Err: err}
}

func (svc *UploadServiceImpl) record(ctx context.Context, rec models.UploadRecord) {
	if svc.ledger == nil {
		return
	}
	if err := svc.ledger.Create(ctx, rec); err != nil {
		svc.logger.Warn("could not create upload record", "key", rec.ObjectKey, "error", err)
	}
	svc.invalidate(ctx, rec.UserEmail)
}

func (svc *UploadServiceImpl) advance(ctx context.Context, objectKey, email string, upd store.StatusUpdate) {
	if svc.ledger == nil {
		return
	}
	if err := svc.ledger.UpdateStatus(ctx, objectKey, upd); err != nil {
		svc.logger.Warn("could not update upload record", "key", objectKey, "status", upd.Status, "error", err)
	}
	svc.invalidate(ctx, email)
}

func (svc *UploadServiceImpl) invalidate(ctx context.Context, email string) {
	if err := svc.cache.Delete(ctx, uploadsCacheKey(email)); err != nil {
		svc.logger.Warn("could not delete cached uploads", "user_email", email, "error", err)
	}
}

func uploadsCacheKey(email string) string {
	return fmt.Sprintf("user:uploads:%s", email)
}
