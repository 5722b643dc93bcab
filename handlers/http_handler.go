package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/health"
	"github.com/Yulian302/lfusys-services-studio/logging"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/services"
	"github.com/Yulian302/lfusys-services-studio/store"
	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"
)

const (
	headerTimezone = "X-Timezone"
	headerUserID   = "X-User-Id"
)

type HttpHandler struct {
	forms   services.FormService
	history services.UploadHistoryService
	decks   services.DeckService

	spool          *store.Spool
	monitor        *health.Monitor
	maxUploadBytes int64

	clock  clock.Clock
	logger logging.Logger
}

func NewHttpHandler(
	forms services.FormService,
	history services.UploadHistoryService,
	decks services.DeckService,
	spool *store.Spool,
	monitor *health.Monitor,
	maxUploadBytes int64,
	c clock.Clock,
	l logging.Logger,
) *HttpHandler {
	return &HttpHandler{
		forms:          forms,
		history:        history,
		decks:          decks,
		spool:          spool,
		monitor:        monitor,
		maxUploadBytes: maxUploadBytes,
		clock:          c,
		logger:         l,
	}
}

func (h *HttpHandler) Register(router gin.IRouter) {
	router.GET("/healthcheck", h.healthCheck(h.clock.Now().UTC()))
	router.GET("/readyz", h.readiness())

	api := router.Group("/api")
	{
		api.POST("/forms", h.formCreate())
		api.GET("/forms/:id", h.formGet())
		api.PUT("/forms/:id/file", h.formFilePut())
		api.PATCH("/forms/:id/fields", h.formFieldsPatch())
		api.POST("/forms/:id/submit", h.formSubmit())
		api.DELETE("/forms/:id", h.formDelete())

		api.GET("/uploads", h.uploadsGet())
		api.GET("/uploads/download", h.uploadDownloadGet())

		api.POST("/decks", h.deckCreate())
		api.DELETE("/decks/:id", h.deckDelete())
		api.GET("/decks/:id/preview", h.previewGet())
		api.POST("/decks/:id/pdf", h.pdfPost())
		api.POST("/decks/:id/video", h.videoPost())
		api.DELETE("/decks/:id/slides", h.slidesClear())
		api.DELETE("/decks/:id/slides/:slideId", h.slideDelete())
		api.GET("/decks/:id/slides/:slideId/content", h.slideContentGet())
		api.POST("/decks/:id/moves", h.movePost())

		api.POST("/decks/:id/presentation", h.presentationStart())
		api.GET("/decks/:id/presentation", h.presentationGet())
		api.DELETE("/decks/:id/presentation", h.presentationExit())
		api.POST("/decks/:id/presentation/events", h.presentationEvent())
		api.GET("/decks/:id/presentation/sections/:index/content", h.sectionContentGet())
	}
}

func (h *HttpHandler) healthCheck(startedAt time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		now := h.clock.Now().UTC()

		c.JSON(http.StatusOK, gin.H{
			"started_at": startedAt.String(),
			"uptime":     now.Sub(startedAt).String(),
			"status":     "Ok",
			"ip_address": c.ClientIP(),
		})
	}
}

func (h *HttpHandler) readiness() gin.HandlerFunc {
	return func(c *gin.Context) {
		st := h.monitor.Status()
		if !st.Ready {
			c.JSON(http.StatusServiceUnavailable, st)
			return
		}
		c.JSON(http.StatusOK, st)
	}
}

// statusFor maps service errors onto HTTP status codes.
func statusFor(err error) int {
	var ie *apperror.InitError
	var ue *apperror.UploadError
	var mbe *http.MaxBytesError

	switch {
	case apperror.IsValidation(err):
		return http.StatusBadRequest
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case apperror.IsDecode(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, apperror.ErrEmptyDeck),
		errors.Is(err, apperror.ErrUploadRunning),
		errors.Is(err, apperror.ErrNotPresenting):
		return http.StatusConflict
	case errors.Is(err, apperror.ErrFormNotFound),
		errors.Is(err, apperror.ErrDeckNotFound),
		errors.Is(err, apperror.ErrSlideNotFound),
		errors.Is(err, apperror.ErrRecordNotFound),
		errors.Is(err, apperror.ErrBlobRevoked):
		return http.StatusNotFound
	case errors.As(err, &ie):
		return http.StatusServiceUnavailable
	case errors.As(err, &ue):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (h *HttpHandler) abortWithError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	} else {
		h.logger.Debug("request rejected", "method", c.Request.Method, "path", c.FullPath(), "status", status, "error", err)
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}

// spoolUpload copies the multipart "file" part to the spool and describes
// it the way a browser File would.
func (h *HttpHandler) spoolUpload(c *gin.Context) (models.FileHandle, error) {
	if h.maxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	hdr, err := c.FormFile("file")
	if err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return models.FileHandle{}, err
		}
		return models.FileHandle{}, apperror.NewValidationError(fmt.Sprintf("bad upload: %v", err))
	}
	defer func() {
		if err := c.Request.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to free multipart form resources", "error", err)
		}
	}()

	lastModified := h.clock.Now()
	if v := c.PostForm("lastModified"); v != "" {
		ms, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return models.FileHandle{}, apperror.NewValidationError(fmt.Sprintf("bad lastModified %q", v))
		}
		lastModified = time.UnixMilli(ms)
	}

	src, err := hdr.Open()
	if err != nil {
		return models.FileHandle{}, fmt.Errorf("open upload part: %w", err)
	}
	defer src.Close()

	sf, err := h.spool.Save(src)
	if err != nil {
		return models.FileHandle{}, fmt.Errorf("spool upload: %w", err)
	}

	return models.FileHandle{
		Name:         hdr.Filename,
		Size:         sf.Size,
		Type:         hdr.Header.Get("Content-Type"),
		LastModified: lastModified,
		Source:       sf,
	}, nil
}

func releaseUpload(file models.FileHandle, l logging.Logger) {
	sf, ok := file.Source.(*store.SpooledFile)
	if !ok {
		return
	}
	if err := sf.Release(); err != nil {
		l.Warn("failed to release upload", "file", file.Name, "error", err)
	}
}
