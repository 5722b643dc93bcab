package store

import (
	"fmt"
	"sync"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
)

type BlobRevoker interface {
	Revoke(id string) error
}

// RenderFunc receives the full ordered deck after every mutation. Version
// grows with every mutation; a render carrying an older version than one
// already drawn is stale.
type RenderFunc func(version uint64, slides []models.SlideRecord)

// SlideStore is the ordered deck. Order is presentation order.
type SlideStore struct {
	blobs  BlobRevoker
	render RenderFunc
	logger logging.Logger

	mu      sync.RWMutex
	slides  []models.SlideRecord
	version uint64
	closed  bool
}

func NewSlideStore(blobs BlobRevoker, render RenderFunc, l logging.Logger) *SlideStore {
	return &SlideStore{
		blobs:  blobs,
		render: render,
		logger: l,
	}
}

// Append adds records at the end. A closed deck refuses them and releases
// their blobs.
func (s *SlideStore) Append(records ...models.SlideRecord) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		for _, rec := range records {
			s.release(rec)
		}
		return apperror.ErrDeckNotFound
	}
	s.slides = append(s.slides, records...)
	version, snapshot := s.mutatedLocked()
	s.mu.Unlock()

	s.rerender(version, snapshot)
	return nil
}

func (s *SlideStore) Delete(id string) error {
	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return apperror.ErrSlideNotFound
	}

	removed := s.slides[idx]
	s.slides = append(s.slides[:idx], s.slides[idx+1:]...)
	version, snapshot := s.mutatedLocked()
	s.mu.Unlock()

	s.release(removed)
	s.rerender(version, snapshot)
	return nil
}

// Move relocates one slide: it is taken out at oldIndex and inserted so
// that it ends up at newIndex.
func (s *SlideStore) Move(oldIndex, newIndex int) error {
	s.mu.Lock()
	n := len(s.slides)
	if oldIndex < 0 || oldIndex >= n || newIndex < 0 || newIndex >= n {
		s.mu.Unlock()
		return apperror.NewValidationError(fmt.Sprintf("invalid move %d -> %d in deck of %d", oldIndex, newIndex, n))
	}

	moved := s.slides[oldIndex]
	s.slides = append(s.slides[:oldIndex], s.slides[oldIndex+1:]...)
	s.slides = append(s.slides[:newIndex], append([]models.SlideRecord{moved}, s.slides[newIndex:]...)...)
	version, snapshot := s.mutatedLocked()
	s.mu.Unlock()

	s.rerender(version, snapshot)
	return nil
}

// Clear empties the deck and returns how many slides were dropped.
// Clearing an empty deck does nothing.
func (s *SlideStore) Clear() int {
	return s.clear(false)
}

// Close clears the deck for good. Later appends are refused.
func (s *SlideStore) Close() int {
	return s.clear(true)
}

func (s *SlideStore) clear(final bool) int {
	s.mu.Lock()
	if final {
		s.closed = true
	}
	removed := s.slides
	if len(removed) == 0 {
		s.mu.Unlock()
		return 0
	}
	s.slides = nil
	version, _ := s.mutatedLocked()
	s.mu.Unlock()

	for _, rec := range removed {
		s.release(rec)
	}
	s.rerender(version, nil)
	return len(removed)
}

func (s *SlideStore) Slides() []models.SlideRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *SlideStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.slides)
}

func (s *SlideStore) Get(id string) (models.SlideRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx := s.indexLocked(id)
	if idx < 0 {
		return models.SlideRecord{}, apperror.ErrSlideNotFound
	}
	return s.slides[idx], nil
}

func (s *SlideStore) indexLocked(id string) int {
	for i, rec := range s.slides {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func (s *SlideStore) mutatedLocked() (uint64, []models.SlideRecord) {
	s.version++
	return s.version, s.snapshotLocked()
}

func (s *SlideStore) snapshotLocked() []models.SlideRecord {
	out := make([]models.SlideRecord, len(s.slides))
	copy(out, s.slides)
	return out
}

func (s *SlideStore) release(rec models.SlideRecord) {
	if !rec.IsVideo() || s.blobs == nil {
		return
	}
	if err := s.blobs.Revoke(rec.Video.Blob.ID); err != nil {
		s.logger.Warn("failed to revoke video blob", "slide_id", rec.ID, "blob_id", rec.Video.Blob.ID, "error", err)
	}
}

func (s *SlideStore) rerender(version uint64, slides []models.SlideRecord) {
	if s.render != nil {
		s.render(version, slides)
	}
}
