package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/dto"
	"github.com/shopworks/storefront-api/internal/middleware"
	"github.com/shopworks/storefront-api/internal/model"
	"github.com/shopworks/storefront-api/internal/pricing"
	"github.com/shopworks/storefront-api/internal/service"
)

// CartHandler exposes one user's cart. Each request builds the user-scoped
// services from the UserContext the auth middleware resolved; nothing here is
// shared between users.
type CartHandler struct {
	store   docstore.Store
	catalog *service.Catalog
	log     *slog.Logger
}

func NewCartHandler(store docstore.Store, catalog *service.Catalog, log *slog.Logger) *CartHandler {
	return &CartHandler{store: store, catalog: catalog, log: log}
}

func (h *CartHandler) session(c *gin.Context) *service.CartSession {
	return service.NewCartSession(h.store, middleware.GetUser(c), h.log)
}

func (h *CartHandler) GetCart(c *gin.Context) {
	session := h.session(c)
	if err := session.Load(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	items := session.Items()
	c.JSON(http.StatusOK, dto.CartResponse{
		Items:      toCartItemResponses(items),
		TotalPrice: service.CartTotal(items),
	})
}

// StreamCart pushes the live cart state over SSE. Every committed change to
// the cart collection produces a fresh "cart" event carrying the full item
// list and the derived total; the stream is conflated, so a slow client only
// ever receives the latest state.
func (h *CartHandler) StreamCart(c *gin.Context) {
	session := h.session(c)
	if err := session.Start(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Stream(func(w io.Writer) bool {
		select {
		case res := <-session.Snapshots():
			c.SSEvent("cart", res)
			return true
		case total := <-session.Totals():
			c.SSEvent("total", total)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}

// AddItem runs the add-or-merge flow. When the product declares colors or
// sizes the matching selection is required before the item may enter the
// cart.
func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	product, err := h.catalog.GetProduct(c.Request.Context(), req.ProductID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "product not found"})
		return
	}
	if len(product.Colors) > 0 && req.SelectedColor == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please select a color"})
		return
	}
	if len(product.Sizes) > 0 && req.SelectedSize == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "please select a size"})
		return
	}

	flow := service.NewDetailsFlow(h.store, middleware.GetUser(c))
	item, err := flow.AddOrMergeItem(c.Request.Context(), model.CartItem{
		Product:       product,
		Quantity:      req.Quantity,
		SelectedColor: req.SelectedColor,
		SelectedSize:  req.SelectedSize,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, toCartItemResponse(item))
}

func (h *CartHandler) IncreaseItem(c *gin.Context) {
	h.changeQuantity(c, service.Increase)
}

func (h *CartHandler) DecreaseItem(c *gin.Context) {
	h.changeQuantity(c, service.Decrease)
}

// changeQuantity loads the current cart and applies the quantity guard. A
// decrease that hits a quantity-one line mutates nothing and instead reports
// confirm_delete with the pending item.
func (h *CartHandler) changeQuantity(c *gin.Context, change service.QuantityChange) {
	session := h.session(c)
	if err := session.Load(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	session.ChangeQuantity(c.Request.Context(), model.CartItem{DocumentID: c.Param("id")}, change)

	if pending, ok := session.TakePendingDelete(); ok {
		resp := toCartItemResponse(pending)
		c.JSON(http.StatusOK, dto.ChangeQuantityResponse{ConfirmDelete: true, Item: &resp})
		return
	}
	if session.Current().IsError() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	if err := session.Load(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	for _, item := range session.Items() {
		if item.DocumentID == c.Param("id") {
			resp := toCartItemResponse(item)
			c.JSON(http.StatusOK, dto.ChangeQuantityResponse{Item: &resp})
			return
		}
	}
	c.JSON(http.StatusOK, dto.ChangeQuantityResponse{})
}

func (h *CartHandler) DeleteItem(c *gin.Context) {
	session := h.session(c)
	if err := session.Load(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	session.DeleteItem(c.Request.Context(), model.CartItem{DocumentID: c.Param("id")})
	if session.Current().IsError() {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.Status(http.StatusNoContent)
}

func toCartItemResponse(item model.CartItem) dto.CartItemResponse {
	line := pricing.EffectivePrice(item.Product.Price, item.Product.OfferPercentage).
		Mul(decimal.NewFromInt(int64(item.Quantity)))
	return dto.CartItemResponse{
		ID:            item.DocumentID,
		Product:       item.Product,
		Quantity:      item.Quantity,
		SelectedColor: item.SelectedColor,
		SelectedSize:  item.SelectedSize,
		LinePrice:     line,
	}
}

func toCartItemResponses(items []model.CartItem) []dto.CartItemResponse {
	out := make([]dto.CartItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, toCartItemResponse(item))
	}
	return out
}
