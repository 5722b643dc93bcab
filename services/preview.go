package services

import (
	"sync"

	"github.com/Yulian302/lfusys-services-studio/models"
)

const EmptyDeckMessage = "No slides yet. Drop files on the right to get started!"

type ContentURLFunc func(slideID string) string

// PreviewRenderer keeps the last preview drawn from the deck.
type PreviewRenderer struct {
	deckID     string
	contentURL ContentURLFunc

	mu      sync.RWMutex
	current models.Preview
	version uint64
	renders int
}

func NewPreviewRenderer(deckID string, contentURL ContentURLFunc) *PreviewRenderer {
	r := &PreviewRenderer{deckID: deckID, contentURL: contentURL}
	r.current = BuildPreview(deckID, nil, contentURL)
	return r
}

// Render redraws the whole list. It is registered as the deck's render hook.
// A render older than the one on screen is dropped.
func (r *PreviewRenderer) Render(version uint64, slides []models.SlideRecord) {
	p := BuildPreview(r.deckID, slides, r.contentURL)

	r.mu.Lock()
	defer r.mu.Unlock()
	if version <= r.version {
		return
	}
	r.version = version
	r.current = p
	r.renders++
}

func (r *PreviewRenderer) Preview() models.Preview {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p := r.current
	p.Items = append([]models.PreviewItem(nil), r.current.Items...)
	return p
}

func (r *PreviewRenderer) Renders() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.renders
}

func BuildPreview(deckID string, slides []models.SlideRecord, contentURL ContentURLFunc) models.Preview {
	p := models.Preview{DeckID: deckID, Items: make([]models.PreviewItem, 0, len(slides))}
	if len(slides) == 0 {
		p.Empty = true
		p.EmptyMessage = EmptyDeckMessage
		return p
	}

	for i, s := range slides {
		item := models.PreviewItem{
			Position: i + 1,
			ID:       s.ID,
			Kind:     string(s.Kind),
			Label:    s.Kind.Label(),
			Caption:  s.Caption(),
		}
		if s.Page != nil {
			item.Width = s.Page.Bitmap.Width
			item.Height = s.Page.Bitmap.Height
		}
		if contentURL != nil {
			item.ContentURL = contentURL(s.ID)
		}
		p.Items = append(p.Items, item)
	}
	return p
}
