package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const markerContentType = "application/json"

type S3ObjectStorageImpl struct {
	client     *s3.Client
	uploader   *manager.Uploader
	bucketName string

	logger logging.Logger
}

func NewS3ObjectStorageImpl(client *s3.Client, bucketName string, l logging.Logger) *S3ObjectStorageImpl {
	return &S3ObjectStorageImpl{
		client:     client,
		uploader:   manager.NewUploader(client),
		bucketName: bucketName,
		logger:     l,
	}
}

func (s *S3ObjectStorageImpl) Bucket() string {
	return s.bucketName
}

func (s *S3ObjectStorageImpl) PutObject(ctx context.Context, in PutObjectInput) (*PutObjectOutput, error) {
	if in.Key == "" {
		return nil, fmt.Errorf("key cannot be empty")
	}
	if in.Body == nil {
		return nil, fmt.Errorf("body cannot be empty")
	}

	s.logger.Info("starting object upload", "key", in.Key, "size", in.Size)

	body := io.Reader(in.Body)
	if in.OnProgress != nil {
		body = &progressReader{r: in.Body, total: in.Size, onProgress: in.OnProgress}
	}

	out, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucketName),
		Key:         aws.String(in.Key),
		Body:        body,
		ContentType: aws.String(in.ContentType),
	})
	if err != nil {
		s.logger.Error("failed to upload object", "key", in.Key, "code", errorCode(err), "error", err)
		return nil, fmt.Errorf("failed to upload object: %w", err)
	}

	s.logger.Info("successfully uploaded object", "key", in.Key, "location", out.Location)
	return &PutObjectOutput{
		Location: out.Location,
		ETag:     aws.ToString(out.ETag),
	}, nil
}

func (s *S3ObjectStorageImpl) PutMarker(ctx context.Context, key string, body []byte) error {
	if key == "" {
		return fmt.Errorf("key cannot be empty")
	}

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucketName),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String(markerContentType),
	})
	if err != nil {
		s.logger.Error("failed to put metadata marker", "key", key, "code", errorCode(err), "error", err)
		return fmt.Errorf("failed to put metadata marker: %w", err)
	}

	s.logger.Debug("metadata marker written", "key", key)
	return nil
}

func (s *S3ObjectStorageImpl) GenerateDownloadUrl(ctx context.Context, key string, ttl time.Duration) (string, error) {
	presigner := s3.NewPresignClient(s.client)

	presigned, err := presigner.PresignGetObject(
		ctx,
		&s3.GetObjectInput{
			Bucket: aws.String(s.bucketName),
			Key:    aws.String(key),
		},
		s3.WithPresignExpires(ttl),
	)
	if err != nil {
		return "", err
	}

	return presigned.URL, nil
}

func (s *S3ObjectStorageImpl) Exists(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, fmt.Errorf("key cannot be empty")
	}

	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	if errorCode(err) == "NotFound" {
		s.logger.Debug("object does not exist", "key", key)
		return false, nil
	}

	s.logger.Error("failed to check object existence", "key", key, "error", err)
	return false, fmt.Errorf("failed to check object existence: %w", err)
}

func (s *S3ObjectStorageImpl) IsReady(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(s.bucketName),
	})
	return err
}

func (s *S3ObjectStorageImpl) Name() string {
	return "ObjectStorage[s3]"
}

func errorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// progressReader reports cumulative bytes handed to the uploader.
type progressReader struct {
	r          io.Reader
	total      int64
	onProgress func(loaded, total int64)

	mu     sync.Mutex
	loaded int64
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.mu.Lock()
		p.loaded += int64(n)
		p.onProgress(p.loaded, p.total)
		p.mu.Unlock()
	}
	return n, err
}
