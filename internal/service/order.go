package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
)

var ErrOrderNotFound = errors.New("order not found")

// OrderQueueName is the queue order-placed messages are published to.
const OrderQueueName = "orders"

// OrderWorkflow converts a priced, addressed cart into a durable order. The
// order is written to the user's history and to the global order index, and
// the cart is cleared, in one atomic batch: any other reader sees all three
// effects or none of them.
type OrderWorkflow struct {
	store  docstore.Store
	amqpCh *amqp.Channel
	user   model.UserContext
	log    *slog.Logger
}

func NewOrderWorkflow(store docstore.Store, amqpCh *amqp.Channel, user model.UserContext, log *slog.Logger) *OrderWorkflow {
	return &OrderWorkflow{store: store, amqpCh: amqpCh, user: user, log: log}
}

// PlaceOrder persists the order and clears the cart. The total price is the
// caller-supplied snapshot and is stored as passed in, not recomputed from
// the items. On failure the cart and both order collections are untouched.
func (w *OrderWorkflow) PlaceOrder(ctx context.Context, items []model.CartItem, totalPrice decimal.Decimal, address model.Address) (model.Order, error) {
	if len(items) == 0 {
		return model.Order{}, &ValidationError{Reason: "cannot place an order with no items"}
	}

	order := model.Order{
		OrderID:    uuid.NewString(),
		Status:     model.OrderStatusOrdered,
		TotalPrice: totalPrice,
		Items:      items,
		Address:    address,
		PlacedAt:   time.Now().UTC(),
	}

	// The ids of the cart documents to delete are read before the batch is
	// built; the deletes themselves commit atomically with the order writes.
	cartCollection := CartCollection(w.user.UserID)
	cartDocs, err := w.store.Query(ctx, cartCollection, docstore.Query{})
	if err != nil {
		return model.Order{}, fmt.Errorf("read cart: %w", err)
	}

	batch := docstore.NewBatch()
	batch.Set(UserOrdersCollection(w.user.UserID), order.OrderID, order)
	batch.Set(OrdersCollection, order.OrderID, order)
	for _, doc := range cartDocs {
		batch.Delete(cartCollection, doc.ID)
	}

	if err := w.store.RunBatch(ctx, batch); err != nil {
		return model.Order{}, fmt.Errorf("place order: %w", err)
	}

	w.publishOrderPlaced(ctx, order)
	return order, nil
}

// publishOrderPlaced hands the order to downstream confirmation processing.
// Publishing is best effort: the order is already durable and a lost message
// only delays confirmation.
func (w *OrderWorkflow) publishOrderPlaced(ctx context.Context, order model.Order) {
	if w.amqpCh == nil {
		return
	}
	msg, _ := json.Marshal(model.OrderPlacedMessage{OrderID: order.OrderID, UserID: w.user.UserID})
	err := w.amqpCh.PublishWithContext(ctx, "", OrderQueueName, false, false, amqp.Publishing{
		ContentType:  "application/json",
		Body:         msg,
		DeliveryMode: amqp.Persistent,
	})
	if err != nil {
		w.log.Error("publish order placed", "order_id", order.OrderID, "error", err)
	}
}

// ListOrders returns the user's order history, newest first.
func (w *OrderWorkflow) ListOrders(ctx context.Context) ([]model.Order, error) {
	docs, err := w.store.Query(ctx, UserOrdersCollection(w.user.UserID), docstore.Query{
		OrderBy:    "date",
		Descending: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	orders := make([]model.Order, 0, len(docs))
	for _, doc := range docs {
		var order model.Order
		if err := doc.Decode(&order); err != nil {
			return nil, fmt.Errorf("decode order %s: %w", doc.ID, err)
		}
		orders = append(orders, order)
	}
	return orders, nil
}

func (w *OrderWorkflow) GetOrder(ctx context.Context, orderID string) (model.Order, error) {
	doc, err := w.store.Get(ctx, UserOrdersCollection(w.user.UserID), orderID)
	if errors.Is(err, docstore.ErrNotFound) {
		return model.Order{}, ErrOrderNotFound
	}
	if err != nil {
		return model.Order{}, fmt.Errorf("get order: %w", err)
	}
	var order model.Order
	if err := doc.Decode(&order); err != nil {
		return model.Order{}, fmt.Errorf("decode order: %w", err)
	}
	return order, nil
}
