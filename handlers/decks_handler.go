package handlers

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/Yulian302/lfusys-services-studio/services"
	"github.com/gin-gonic/gin"
)

type moveRequest struct {
	OldIndex *int `json:"oldIndex" binding:"required"`
	NewIndex *int `json:"newIndex" binding:"required"`
}

func (h *HttpHandler) deck(c *gin.Context) (*services.Deck, bool) {
	deck, err := h.decks.Get(c.Param("id"))
	if err != nil {
		h.abortWithError(c, err)
		return nil, false
	}
	return deck, true
}

func (h *HttpHandler) deckCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck := h.decks.Create()
		c.JSON(http.StatusCreated, gin.H{
			"id":      deck.ID,
			"preview": deck.Preview.Preview(),
		})
	}
}

func (h *HttpHandler) deckDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.decks.Delete(c.Param("id")); err != nil {
			h.abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *HttpHandler) previewGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, deck.Preview.Preview())
	}
}

func (h *HttpHandler) pdfPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}

		file, err := h.spoolUpload(c)
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		// intake releases the spooled body
		records, err := deck.Intake.IngestPdf(c.Request.Context(), file)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"added":   len(records),
			"preview": deck.Preview.Preview(),
		})
	}
}

func (h *HttpHandler) videoPost() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}

		file, err := h.spoolUpload(c)
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		if _, err := deck.Intake.IngestVideo(c.Request.Context(), file); err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"added":   1,
			"preview": deck.Preview.Preview(),
		})
	}
}

func (h *HttpHandler) slideDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}

		if err := deck.Slides.Delete(c.Param("slideId")); err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, deck.Preview.Preview())
	}
}

// slidesClear empties the deck. The caller must confirm explicitly.
func (h *HttpHandler) slidesClear() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}

		if c.Query("confirm") != "true" {
			h.abortWithError(c, apperror.NewValidationError("clearing the deck requires confirm=true"))
			return
		}

		removed := deck.Slides.Clear()
		c.JSON(http.StatusOK, gin.H{
			"removed": removed,
			"preview": deck.Preview.Preview(),
		})
	}
}

func (h *HttpHandler) movePost() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}

		var req moveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Bad request: " + err.Error(),
			})
			return
		}

		if err := deck.Slides.Move(*req.OldIndex, *req.NewIndex); err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, deck.Preview.Preview())
	}
}

func (h *HttpHandler) slideContentGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}

		content, err := deck.OpenContent(c.Param("slideId"))
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		serveContent(c, content)
	}
}

func (h *HttpHandler) sectionContentGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}

		index, err := strconv.Atoi(c.Param("index"))
		if err != nil {
			h.abortWithError(c, apperror.NewValidationError(fmt.Sprintf("bad section index %q", c.Param("index"))))
			return
		}

		content, err := deck.OpenSectionContent(index)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		serveContent(c, content)
	}
}

// serveContent supports range requests so video elements can seek.
func serveContent(c *gin.Context, content *services.SlideContent) {
	defer content.Body.Close()
	c.Header("Content-Type", content.ContentType)
	http.ServeContent(c.Writer, c.Request, content.Name, time.Time{}, content.Body)
}

func (h *HttpHandler) presentationStart() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}

		// the body is optional
		var opts models.StartOptions
		if c.Request.Body != nil && c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "Bad request: " + err.Error(),
				})
				return
			}
		}

		if err := deck.Presentation.Start(c.Request.Context(), opts); err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, deck.Presentation.View())
	}
}

func (h *HttpHandler) presentationGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, deck.Presentation.View())
	}
}

func (h *HttpHandler) presentationExit() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}
		deck.Presentation.Exit()
		c.JSON(http.StatusOK, deck.Presentation.View())
	}
}

func (h *HttpHandler) presentationEvent() gin.HandlerFunc {
	return func(c *gin.Context) {
		deck, ok := h.deck(c)
		if !ok {
			return
		}

		var ev models.PresentationEvent
		if err := c.ShouldBindJSON(&ev); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Bad request: " + err.Error(),
			})
			return
		}

		if err := dispatchEvent(deck.Presentation, ev); err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, deck.Presentation.View())
	}
}

func dispatchEvent(p *services.PresentationRunner, ev models.PresentationEvent) error {
	switch ev.Type {
	case models.EventSlideChanged:
		return p.SlideChanged(ev.Index)
	case models.EventNext:
		return p.Next()
	case models.EventPrev:
		return p.Prev()
	case models.EventKeyDown:
		p.KeyPressed(ev.Key)
	case models.EventPointerMove:
		p.PointerMoved()
	case models.EventFullscreenChanged:
		p.FullscreenChanged(ev.Active)
	case models.EventAutoplayRejected:
		p.AutoplayRejected(ev.Index, ev.Reason)
	default:
		return apperror.NewValidationError(fmt.Sprintf("unknown event type %q", ev.Type))
	}
	return nil
}
