package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/dto"
	"github.com/shopworks/storefront-api/internal/middleware"
	"github.com/shopworks/storefront-api/internal/model"
	"github.com/shopworks/storefront-api/internal/service"
)

type OrderHandler struct {
	store  docstore.Store
	amqpCh *amqp.Channel
	log    *slog.Logger
}

func NewOrderHandler(store docstore.Store, amqpCh *amqp.Channel, log *slog.Logger) *OrderHandler {
	return &OrderHandler{store: store, amqpCh: amqpCh, log: log}
}

func (h *OrderHandler) workflow(c *gin.Context) *service.OrderWorkflow {
	return service.NewOrderWorkflow(h.store, h.amqpCh, middleware.GetUser(c), h.log)
}

// PlaceOrder checks the current cart out. The items come from the cart as it
// stands right now; the total is the client's priced snapshot and is stored
// as submitted.
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session := service.NewCartSession(h.store, middleware.GetUser(c), h.log)
	if err := session.Load(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	order, err := h.workflow(c).PlaceOrder(c.Request.Context(), session.Items(), req.TotalPrice, req.Address)
	if err != nil {
		if service.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(order))
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	orders, err := h.workflow(c).ListOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	items := make([]dto.OrderResponse, 0, len(orders))
	for _, o := range orders {
		items = append(items, toOrderResponse(o))
	}
	c.JSON(http.StatusOK, dto.OrderListResponse{Orders: items, Total: len(items)})
}

func (h *OrderHandler) GetOrder(c *gin.Context) {
	order, err := h.workflow(c).GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

func toOrderResponse(order model.Order) dto.OrderResponse {
	return dto.OrderResponse{
		OrderID:    order.OrderID,
		Status:     order.Status,
		TotalPrice: order.TotalPrice,
		Items:      toCartItemResponses(order.Items),
		Address:    order.Address,
		PlacedAt:   order.PlacedAt,
	}
}
