package pdf

import (
	"bytes"
	"fmt"
	"image/png"
	"io"

	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/gen2brain/go-fitz"
)

// baseDPI is the PDF user-space resolution; scale 1.0 renders at 72 DPI.
const baseDPI = 72.0

type Document interface {
	NumPages() int
	// RenderPage rasterizes a 0-based page.
	RenderPage(index int) (models.Bitmap, error)
	Close() error
}

type PageRenderer interface {
	Open(r io.Reader) (Document, error)
}

type FitzRenderer struct {
	scale float64
}

func NewFitzRenderer(scale float64) *FitzRenderer {
	return &FitzRenderer{scale: scale}
}

func (f *FitzRenderer) Open(r io.Reader) (Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	return &fitzDocument{doc: doc, dpi: baseDPI * f.scale}, nil
}

type fitzDocument struct {
	doc *fitz.Document
	dpi float64
}

func (d *fitzDocument) NumPages() int {
	return d.doc.NumPage()
}

func (d *fitzDocument) RenderPage(index int) (models.Bitmap, error) {
	img, err := d.doc.ImageDPI(index, d.dpi)
	if err != nil {
		return models.Bitmap{}, fmt.Errorf("render page %d: %w", index+1, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return models.Bitmap{}, fmt.Errorf("encode page %d: %w", index+1, err)
	}

	b := img.Bounds()
	return models.Bitmap{Width: b.Dx(), Height: b.Dy(), PNG: buf.Bytes()}, nil
}

func (d *fitzDocument) Close() error {
	return d.doc.Close()
}
