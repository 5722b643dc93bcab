package services

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/store"
)

// callLog records the order of external calls across fakes.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(c string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, c)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeStorage struct {
	log       *callLog
	putErr    error
	markerErr error

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	// block, when set, holds PutObject until closed.
	block chan struct{}
}

func newFakeStorage(log *callLog) *fakeStorage {
	return &fakeStorage{log: log, objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeStorage) PutObject(ctx context.Context, in store.PutObjectInput) (*store.PutObjectOutput, error) {
	f.log.add("put:" + in.Key)
	if f.block != nil {
		<-f.block
	}
	if f.putErr != nil {
		return nil, f.putErr
	}

	buf := make([]byte, 0, in.Size)
	chunk := make([]byte, 4)
	for {
		n, err := in.Body.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if n > 0 && in.OnProgress != nil {
			in.OnProgress(int64(len(buf)), in.Size)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	f.mu.Lock()
	f.objects[in.Key] = buf
	f.types[in.Key] = in.ContentType
	f.mu.Unlock()
	return &store.PutObjectOutput{Location: "https://bucket.s3.amazonaws.com/" + in.Key}, nil
}

func (f *fakeStorage) PutMarker(ctx context.Context, key string, body []byte) error {
	f.log.add("marker:" + key)
	if f.markerErr != nil {
		return f.markerErr
	}
	f.mu.Lock()
	f.objects[key] = body
	f.mu.Unlock()
	return nil
}

func (f *fakeStorage) Exists(ctx context.Context, key string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.objects[key]
	return ok, nil
}

func (f *fakeStorage) GenerateDownloadUrl(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://signed.example/" + key + "?ttl=" + ttl.String(), nil
}

func (f *fakeStorage) Bucket() string                    { return "test-bucket" }
func (f *fakeStorage) IsReady(ctx context.Context) error { return nil }
func (f *fakeStorage) Name() string                      { return "ObjectStorage[fake]" }

type fakeNotifier struct {
	log  *callLog
	err  error
	sent []models.UploadNotification
}

func (f *fakeNotifier) Notify(ctx context.Context, n models.UploadNotification) (string, error) {
	f.log.add("notify:" + n.Key)
	if f.err != nil {
		return "", f.err
	}
	f.sent = append(f.sent, n)
	return "msg-1", nil
}

type fakeLedger struct {
	mu        sync.Mutex
	records   map[string]models.UploadRecord
	createErr error
	lists     int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[string]models.UploadRecord{}}
}

func (f *fakeLedger) Create(ctx context.Context, rec models.UploadRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[rec.ObjectKey] = rec
	return nil
}

func (f *fakeLedger) UpdateStatus(ctx context.Context, objectKey string, upd store.StatusUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[objectKey]
	if !ok {
		return apperror.ErrRecordNotFound
	}
	rec.Status = upd.Status
	if upd.MessageID != "" {
		rec.MessageID = upd.MessageID
	}
	if upd.Error != "" {
		rec.Error = upd.Error
	}
	f.records[objectKey] = rec
	return nil
}

func (f *fakeLedger) Get(ctx context.Context, objectKey string) (*models.UploadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[objectKey]
	if !ok {
		return nil, apperror.ErrRecordNotFound
	}
	return &rec, nil
}

func (f *fakeLedger) ListByEmail(ctx context.Context, email string) ([]models.UploadRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lists++
	var out []models.UploadRecord
	for _, rec := range f.records {
		if rec.UserEmail == email {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeLedger) IsReady(ctx context.Context) error { return nil }
func (f *fakeLedger) Name() string                      { return "UploadStore[fake]" }

var errBoom = errors.New("boom")
