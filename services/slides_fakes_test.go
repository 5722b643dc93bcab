package services

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/pdf"
	"github.com/Yulian302/lfusys-services-studio/store"
	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/require"
)

// fakeRenderer treats the file body as "<pages>" and fails page failAt.
type fakeRenderer struct {
	pages   int
	failAt  int
	openErr error
}

func (f *fakeRenderer) Open(r io.Reader) (pdf.Document, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	if f.openErr != nil {
		return nil, f.openErr
	}
	return &fakeDocument{r: f}, nil
}

type fakeDocument struct {
	r      *fakeRenderer
	closed bool
}

func (d *fakeDocument) NumPages() int { return d.r.pages }

func (d *fakeDocument) RenderPage(index int) (models.Bitmap, error) {
	if d.r.failAt > 0 && index+1 == d.r.failAt {
		return models.Bitmap{}, fmt.Errorf("page %d is corrupt", index+1)
	}
	return models.Bitmap{Width: 918, Height: 1188, PNG: []byte(fmt.Sprintf("png-%d", index+1))}, nil
}

func (d *fakeDocument) Close() error {
	d.closed = true
	return nil
}

type deckFixture struct {
	clock    *clock.Mock
	renderer *fakeRenderer
	blobs    *store.BlobStore
	svc      *DeckServiceImpl
	deck     *Deck
}

func newDeckFixture(t *testing.T) *deckFixture {
	t.Helper()
	spool, err := store.NewSpool(t.TempDir())
	require.NoError(t, err)

	f := &deckFixture{
		clock:    clock.NewMock(),
		renderer: &fakeRenderer{pages: 3},
		blobs:    store.NewBlobStore(spool),
	}
	f.clock.Set(fixedNow)
	f.svc = NewDeckServiceImpl(f.renderer, f.blobs, "video/mp4", "/api", f.clock, logging.NewNopLogger())
	f.deck = f.svc.Create()
	return f
}

func pdfFile(name string) models.FileHandle {
	return models.FileHandle{Name: name, Type: "application/pdf", Size: 3, Source: models.BytesSource("pdf")}
}

func mp4File(name string) models.FileHandle {
	return models.FileHandle{Name: name, Type: "video/mp4", Size: 6, Source: models.BytesSource("frames")}
}

var errNoPdf = errors.New("no pdf header")
