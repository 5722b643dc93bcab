package services

import (
	"context"
	"fmt"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/pdf"
	"github.com/Yulian302/lfusys-services-studio/store"
	"github.com/benbjohnson/clock"
)

const (
	PdfMimeType = "application/pdf"

	msgNotPdf   = "Please upload a PDF file"
	msgNotVideo = "Please upload an MP4 file"
)

type BlobCreator interface {
	Create(file models.FileHandle) (models.BlobRef, error)
}

// FileIntake turns dropped files into slides. A failed intake adds nothing.
type FileIntake struct {
	renderer  pdf.PageRenderer
	blobs     BlobCreator
	deck      *store.SlideStore
	videoType string

	clock  clock.Clock
	logger logging.Logger
}

func NewFileIntake(renderer pdf.PageRenderer, blobs BlobCreator, deck *store.SlideStore, videoType string, c clock.Clock, l logging.Logger) *FileIntake {
	return &FileIntake{
		renderer:  renderer,
		blobs:     blobs,
		deck:      deck,
		videoType: videoType,
		clock:     c,
		logger:    l,
	}
}

// IngestPdf renders every page in document order and appends them only
// once all pages succeeded.
func (in *FileIntake) IngestPdf(ctx context.Context, file models.FileHandle) ([]models.SlideRecord, error) {
	defer release(file, in.logger)

	if file.Type != PdfMimeType {
		return nil, apperror.NewValidationError(msgNotPdf)
	}

	r, err := file.Open()
	if err != nil {
		return nil, in.decodeError(file, err)
	}
	defer r.Close()

	doc, err := in.renderer.Open(r)
	if err != nil {
		return nil, in.decodeError(file, err)
	}
	defer doc.Close()

	total := doc.NumPages()
	if total <= 0 {
		return nil, in.decodeError(file, fmt.Errorf("document has no pages"))
	}

	records := make([]models.SlideRecord, 0, total)
	for i := 0; i < total; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		bm, err := doc.RenderPage(i)
		if err != nil {
			return nil, in.decodeError(file, err)
		}

		records = append(records, models.SlideRecord{
			ID:       NewSlideID(in.clock.Now()),
			Kind:     models.SlideKindPdf,
			FileName: file.Name,
			Page: &models.PdfPage{
				PageNumber: i + 1,
				TotalPages: total,
				Bitmap:     bm,
			},
		})
	}

	if err := in.deck.Append(records...); err != nil {
		return nil, err
	}
	in.logger.Info("pdf ingested", "file", file.Name, "pages", total)
	return records, nil
}

func (in *FileIntake) IngestVideo(ctx context.Context, file models.FileHandle) (models.SlideRecord, error) {
	defer release(file, in.logger)

	if file.Type != in.videoType {
		return models.SlideRecord{}, apperror.NewValidationError(msgNotVideo)
	}

	ref, err := in.blobs.Create(file)
	if err != nil {
		in.logger.Error("failed to hold video", "file", file.Name, "error", err)
		return models.SlideRecord{}, fmt.Errorf("hold video %s: %w", file.Name, err)
	}

	rec := models.SlideRecord{
		ID:       NewSlideID(in.clock.Now()),
		Kind:     models.SlideKindVideo,
		FileName: file.Name,
		Video:    &models.VideoClip{Blob: ref},
	}
	if err := in.deck.Append(rec); err != nil {
		in.logger.Warn("deck closed during intake, video released", "file", file.Name, "blob_id", ref.ID)
		return models.SlideRecord{}, err
	}
	in.logger.Info("video ingested", "file", file.Name, "blob_id", ref.ID)
	return rec, nil
}

func (in *FileIntake) decodeError(file models.FileHandle, err error) error {
	in.logger.Error("error processing pdf", "file", file.Name, "error", err)
	return &apperror.DecodeError{File: file.Name, Err: err}
}
