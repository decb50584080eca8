package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/dto"
	"github.com/shopworks/storefront-api/internal/middleware"
	"github.com/shopworks/storefront-api/internal/service"
)

type ProfileHandler struct {
	store docstore.Store
}

func NewProfileHandler(store docstore.Store) *ProfileHandler {
	return &ProfileHandler{store: store}
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	user, err := service.NewProfile(h.store, middleware.GetUser(c)).Get(c.Request.Context())
	if err != nil {
		if errors.Is(err, docstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "profile not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.ToUserResponse(&user))
}

// StreamProfile pushes the user's profile document over SSE as it changes.
func (h *ProfileHandler) StreamProfile(c *gin.Context) {
	ch, err := service.NewProfile(h.store, middleware.GetUser(c)).Listen(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case res, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("profile", res)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
