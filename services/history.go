package services

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/caching"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/store"
)

const downloadUrlTTL = 15 * time.Minute

type UploadHistoryService interface {
	GetUploads(ctx context.Context, email string) (*models.UploadsResponse, error)
	GetDownloadUrl(ctx context.Context, objectKey string) (string, error)
}

type UploadHistoryServiceImpl struct {
	ledger     store.UploadStore
	storage    store.ObjectStorage
	cachingSvc caching.CachingService
	ttl        time.Duration

	logger logging.Logger
}

func NewUploadHistoryServiceImpl(
	ledger store.UploadStore,
	storage store.ObjectStorage,
	cachingSvc caching.CachingService,
	ttl time.Duration,
	l logging.Logger,
) *UploadHistoryServiceImpl {
	return &UploadHistoryServiceImpl{
		ledger:     ledger,
		storage:    storage,
		cachingSvc: cachingSvc,
		ttl:        ttl,
		logger:     l,
	}
}

func (svc *UploadHistoryServiceImpl) GetUploads(ctx context.Context, email string) (*models.UploadsResponse, error) {
	email = strings.TrimSpace(email)
	if !models.IsValidEmail(email) {
		return nil, apperror.NewValidationError("a valid email is required")
	}

	key := uploadsCacheKey(email)
	cached, err := svc.cachingSvc.Get(ctx, key)
	if err == nil {
		var resp models.UploadsResponse
		if err := json.Unmarshal(cached, &resp); err == nil {
			return &resp, nil
		}
		svc.logger.Warn("dropping unreadable cached uploads", "key", key)
	} else if !errors.Is(err, caching.ErrCacheMiss) {
		svc.logger.Warn("could not read cached uploads", "key", key, "error", err)
	}

	records, err := svc.ledger.ListByEmail(ctx, email)
	if err != nil {
		svc.logger.Error("failed to list uploads", "user_email", email, "error", err)
		return nil, err
	}
	if records == nil {
		records = []models.UploadRecord{}
	}
	resp := &models.UploadsResponse{Uploads: records}

	if body, err := json.Marshal(resp); err == nil {
		if err := svc.cachingSvc.Set(ctx, key, body, svc.ttl); err != nil {
			svc.logger.Warn("could not cache uploads", "key", key, "error", err)
		}
	}
	return resp, nil
}

// GetDownloadUrl presigns a finished upload. Keys not in the ledger or
// not in the bucket are reported as not found.
func (svc *UploadHistoryServiceImpl) GetDownloadUrl(ctx context.Context, objectKey string) (string, error) {
	if _, err := svc.ledger.Get(ctx, objectKey); err != nil {
		return "", err
	}

	exists, err := svc.storage.Exists(ctx, objectKey)
	if err != nil {
		return "", err
	}
	if !exists {
		return "", apperror.ErrRecordNotFound
	}

	return svc.storage.GenerateDownloadUrl(ctx, objectKey, downloadUrlTTL)
}
