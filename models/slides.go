package models

import "fmt"

type SlideKind string

const (
	SlideKindPdf   SlideKind = "pdf"
	SlideKindVideo SlideKind = "video"
)

// Label is the badge shown on a preview card.
func (k SlideKind) Label() string {
	switch k {
	case SlideKindPdf:
		return "PDF"
	case SlideKindVideo:
		return "VIDEO"
	}
	return string(k)
}

// Bitmap is a rendered page, PNG encoded.
type Bitmap struct {
	Width  int
	Height int
	PNG    []byte
}

// Clone copies the pixels so a presentation canvas never aliases the deck.
func (b Bitmap) Clone() Bitmap {
	png := make([]byte, len(b.PNG))
	copy(png, b.PNG)
	return Bitmap{Width: b.Width, Height: b.Height, PNG: png}
}

// BlobRef is a revocable handle on bytes held for a video slide.
type BlobRef struct {
	ID          string
	URL         string
	ContentType string
	Size        int64
}

type PdfPage struct {
	PageNumber int
	TotalPages int
	Bitmap     Bitmap
}

type VideoClip struct {
	Blob BlobRef
}

// SlideRecord is one deck entry. Exactly one of Page and Video is set,
// matching Kind.
type SlideRecord struct {
	ID       string
	Kind     SlideKind
	FileName string
	Page     *PdfPage
	Video    *VideoClip
}

func (s SlideRecord) IsVideo() bool {
	return s.Kind == SlideKindVideo && s.Video != nil
}

func (s SlideRecord) Caption() string {
	if s.Kind == SlideKindPdf && s.Page != nil {
		return fmt.Sprintf("%s - Page %d/%d", s.FileName, s.Page.PageNumber, s.Page.TotalPages)
	}
	return s.FileName
}

type PreviewItem struct {
	Position   int    `json:"position"`
	ID         string `json:"id"`
	Kind       string `json:"kind"`
	Label      string `json:"label"`
	Caption    string `json:"caption"`
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	ContentURL string `json:"contentUrl"`
}

type Preview struct {
	DeckID       string        `json:"deckId"`
	Empty        bool          `json:"empty"`
	EmptyMessage string        `json:"emptyMessage,omitempty"`
	Items        []PreviewItem `json:"items"`
}
