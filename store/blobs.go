package store

import (
	"fmt"
	"io"
	"sync"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/models"
)

const blobURLScheme = "blob:"

// BlobStore holds video bytes behind revocable references.
type BlobStore struct {
	spool *Spool

	mu      sync.Mutex
	blobs   map[string]*SpooledFile
	refs    map[string]models.BlobRef
	revoked int
}

func NewBlobStore(spool *Spool) *BlobStore {
	return &BlobStore{
		spool: spool,
		blobs: make(map[string]*SpooledFile),
		refs:  make(map[string]models.BlobRef),
	}
}

func (b *BlobStore) Create(file models.FileHandle) (models.BlobRef, error) {
	r, err := file.Open()
	if err != nil {
		return models.BlobRef{}, fmt.Errorf("open %s: %w", file.Name, err)
	}
	defer r.Close()

	sf, err := b.spool.Save(r)
	if err != nil {
		return models.BlobRef{}, fmt.Errorf("spool %s: %w", file.Name, err)
	}

	ref := models.BlobRef{
		ID:          sf.ID,
		URL:         blobURLScheme + sf.ID,
		ContentType: file.Type,
		Size:        sf.Size,
	}

	b.mu.Lock()
	b.blobs[sf.ID] = sf
	b.refs[sf.ID] = ref
	b.mu.Unlock()

	return ref, nil
}

func (b *BlobStore) Open(id string) (io.ReadSeekCloser, models.BlobRef, error) {
	b.mu.Lock()
	sf, ok := b.blobs[id]
	ref := b.refs[id]
	b.mu.Unlock()
	if !ok {
		return nil, models.BlobRef{}, apperror.ErrBlobRevoked
	}

	f, err := sf.OpenSeeker()
	if err != nil {
		return nil, models.BlobRef{}, err
	}
	return f, ref, nil
}

// Revoke drops the bytes. A second revoke of the same id fails.
func (b *BlobStore) Revoke(id string) error {
	b.mu.Lock()
	sf, ok := b.blobs[id]
	if ok {
		delete(b.blobs, id)
		delete(b.refs, id)
		b.revoked++
	}
	b.mu.Unlock()

	if !ok {
		return apperror.ErrBlobRevoked
	}
	return sf.Release()
}

func (b *BlobStore) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.blobs)
}

func (b *BlobStore) Revoked() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.revoked
}
