package handlers

import (
	"errors"
	"net/http"

	"github.com/Yulian302/lfusys-services-studio/apperror"
	"github.com/Yulian302/lfusys-services-studio/models"
	"github.com/gin-gonic/gin"
)

type fieldsRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

func clientInfo(c *gin.Context) models.ClientInfo {
	return models.ClientInfo{
		UserID:    c.GetHeader(headerUserID),
		UserAgent: c.Request.UserAgent(),
		Timezone:  c.GetHeader(headerTimezone),
	}
}

func (h *HttpHandler) formCreate() gin.HandlerFunc {
	return func(c *gin.Context) {
		form := h.forms.Create(clientInfo(c))
		c.JSON(http.StatusCreated, form.View())
	}
}

func (h *HttpHandler) formGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := h.forms.Get(c.Param("id"))
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, form.View())
	}
}

func (h *HttpHandler) formFilePut() gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := h.forms.Get(c.Param("id"))
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		file, err := h.spoolUpload(c)
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		if err := form.SelectFile(file); err != nil {
			if errors.Is(err, apperror.ErrUploadRunning) {
				releaseUpload(file, h.logger)
			}
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, form.View())
	}
}

func (h *HttpHandler) formFieldsPatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := h.forms.Get(c.Param("id"))
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		var req fieldsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Bad request: " + err.Error(),
			})
			return
		}

		if req.Name != nil {
			form.EditName(*req.Name)
		}
		if req.Email != nil {
			form.EditEmail(*req.Email)
		}
		c.JSON(http.StatusOK, form.View())
	}
}

// formSubmit runs the whole upload inside the request.
func (h *HttpHandler) formSubmit() gin.HandlerFunc {
	return func(c *gin.Context) {
		form, err := h.forms.Get(c.Param("id"))
		if err != nil {
			h.abortWithError(c, err)
			return
		}

		result, err := form.Submit(c.Request.Context())
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"result": result,
			"form":   form.View(),
		})
	}
}

func (h *HttpHandler) formDelete() gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.forms.Delete(c.Param("id")); err != nil {
			h.abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func (h *HttpHandler) uploadsGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		resp, err := h.history.GetUploads(c.Request.Context(), c.Query("email"))
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}

func (h *HttpHandler) uploadDownloadGet() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Query("key")
		if key == "" {
			h.abortWithError(c, apperror.NewValidationError("key is required"))
			return
		}

		url, err := h.history.GetDownloadUrl(c.Request.Context(), key)
		if err != nil {
			h.abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"url": url})
	}
}
