package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/dto"
	"github.com/shopworks/storefront-api/internal/middleware"
	"github.com/shopworks/storefront-api/internal/service"
)

type AddressHandler struct {
	store docstore.Store
}

func NewAddressHandler(store docstore.Store) *AddressHandler {
	return &AddressHandler{store: store}
}

func (h *AddressHandler) book(c *gin.Context) *service.AddressBook {
	return service.NewAddressBook(h.store, middleware.GetUser(c))
}

func (h *AddressHandler) AddAddress(c *gin.Context) {
	var req dto.AddAddressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	address, err := h.book(c).AddAddress(c.Request.Context(), req.ToModel())
	if err != nil {
		if service.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, address)
}

func (h *AddressHandler) ListAddresses(c *gin.Context) {
	addresses, err := h.book(c).ListAddresses(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, dto.AddressListResponse{Addresses: addresses})
}

// StreamAddresses pushes the user's address list over SSE, one "addresses"
// event per committed change, latest state only.
func (h *AddressHandler) StreamAddresses(c *gin.Context) {
	ch, err := h.book(c).Listen(c.Request.Context())
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
			c.SSEvent("addresses", res)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
