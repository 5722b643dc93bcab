package services

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/pdf"
	"github.com/Yulian302/lfusys-services-studio/store"
	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
)

const pngContentType = "image/png"

type BlobStore interface {
	BlobCreator
	store.BlobRevoker
	Open(id string) (io.ReadSeekCloser, models.BlobRef, error)
}

// Deck bundles one slide deck with its preview and presentation.
type Deck struct {
	ID           string
	Slides       *store.SlideStore
	Preview      *PreviewRenderer
	Intake       *FileIntake
	Presentation *PresentationRunner

	blobs BlobStore
}

type SlideContent struct {
	Name        string
	ContentType string
	Body        io.ReadSeekCloser
}

type bytesContent struct {
	*bytes.Reader
}

func (bytesContent) Close() error { return nil }

func pngContent(name string, bm models.Bitmap) *SlideContent {
	return &SlideContent{
		Name:        name,
		ContentType: pngContentType,
		Body:        bytesContent{bytes.NewReader(bm.PNG)},
	}
}

// OpenContent serves what a preview item shows: the page bitmap or the
// video bytes.
func (d *Deck) OpenContent(slideID string) (*SlideContent, error) {
	rec, err := d.Slides.Get(slideID)
	if err != nil {
		return nil, err
	}

	if rec.IsVideo() {
		body, ref, err := d.blobs.Open(rec.Video.Blob.ID)
		if err != nil {
			return nil, err
		}
		return &SlideContent{Name: rec.FileName, ContentType: ref.ContentType, Body: body}, nil
	}
	if rec.Page == nil {
		return nil, apperror.ErrSlideNotFound
	}
	return pngContent(fmt.Sprintf("%s-%d.png", rec.ID, rec.Page.PageNumber), rec.Page.Bitmap), nil
}

// OpenSectionContent serves the presentation's own copy of a page.
func (d *Deck) OpenSectionContent(index int) (*SlideContent, error) {
	bm, err := d.Presentation.SectionBitmap(index)
	if err != nil {
		return nil, err
	}
	return pngContent(fmt.Sprintf("section-%d.png", index), bm), nil
}

func (d *Deck) close() {
	d.Presentation.Close()
	d.Slides.Close()
}

type DeckService interface {
	Create() *Deck
	Get(id string) (*Deck, error)
	Delete(id string) error
}

type DeckServiceImpl struct {
	renderer  pdf.PageRenderer
	blobs     BlobStore
	videoType string
	basePath  string

	clock  clock.Clock
	logger logging.Logger

	mu    sync.RWMutex
	decks map[string]*Deck
}

func NewDeckServiceImpl(renderer pdf.PageRenderer, blobs BlobStore, videoType, basePath string, c clock.Clock, l logging.Logger) *DeckServiceImpl {
	return &DeckServiceImpl{
		renderer:  renderer,
		blobs:     blobs,
		videoType: videoType,
		basePath:  basePath,
		clock:     c,
		logger:    l,
		decks:     make(map[string]*Deck),
	}
}

func (svc *DeckServiceImpl) Create() *Deck {
	id := uuid.NewString()
	l := svc.logger.With("deck_id", id)

	contentURL := func(slideID string) string {
		return fmt.Sprintf("%s/decks/%s/slides/%s/content", svc.basePath, id, slideID)
	}
	sectionURL := func(index int) string {
		return fmt.Sprintf("%s/decks/%s/presentation/sections/%d/content", svc.basePath, id, index)
	}

	preview := NewPreviewRenderer(id, contentURL)
	slides := store.NewSlideStore(svc.blobs, preview.Render, l)
	deck := &Deck{
		ID:           id,
		Slides:       slides,
		Preview:      preview,
		Intake:       NewFileIntake(svc.renderer, svc.blobs, slides, svc.videoType, svc.clock, l),
		Presentation: NewPresentationRunner(slides, NewSlideshow, contentURL, sectionURL, svc.clock, l),
		blobs:        svc.blobs,
	}

	svc.mu.Lock()
	svc.decks[id] = deck
	svc.mu.Unlock()

	svc.logger.Debug("deck created", "deck_id", id)
	return deck
}

func (svc *DeckServiceImpl) Get(id string) (*Deck, error) {
	svc.mu.RLock()
	defer svc.mu.RUnlock()
	deck, ok := svc.decks[id]
	if !ok {
		return nil, apperror.ErrDeckNotFound
	}
	return deck, nil
}

// Delete releases every blob the deck still holds.
func (svc *DeckServiceImpl) Delete(id string) error {
	svc.mu.Lock()
	deck, ok := svc.decks[id]
	delete(svc.decks, id)
	svc.mu.Unlock()

	if !ok {
		return apperror.ErrDeckNotFound
	}
	deck.close()
	return nil
}

func (svc *DeckServiceImpl) Shutdown() {
	svc.mu.Lock()
	decks := svc.decks
	svc.decks = make(map[string]*Deck)
	svc.mu.Unlock()

	for _, deck := range decks {
		deck.close()
	}
}
