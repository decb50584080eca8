package worker

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
	"github.com/shopworks/storefront-api/internal/service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedOrder(t *testing.T, store docstore.Store, userID, orderID string, status model.OrderStatus) {
	t.Helper()
	order := model.Order{OrderID: orderID, Status: status}
	require.NoError(t, store.Set(context.Background(), service.OrdersCollection, orderID, order))
	require.NoError(t, store.Set(context.Background(), service.UserOrdersCollection(userID), orderID, order))
}

func orderStatus(t *testing.T, store docstore.Store, collection, orderID string) model.OrderStatus {
	t.Helper()
	doc, err := store.Get(context.Background(), collection, orderID)
	require.NoError(t, err)
	var order model.Order
	require.NoError(t, doc.Decode(&order))
	return order.Status
}

func TestOrderWorker_ConfirmOrder(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedOrder(t, store, "user-1", "order-1", model.OrderStatusOrdered)

	w := NewOrderWorker(nil, store, nil, testLogger())
	err := w.ConfirmOrder(context.Background(), model.OrderPlacedMessage{
		OrderID: "order-1", UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusConfirmed,
		orderStatus(t, store, service.OrdersCollection, "order-1"))
	assert.Equal(t, model.OrderStatusConfirmed,
		orderStatus(t, store, service.UserOrdersCollection("user-1"), "order-1"))
}

func TestOrderWorker_ConfirmOrder_AlreadyPastOrdered(t *testing.T) {
	store := docstore.NewMemoryStore()
	seedOrder(t, store, "user-1", "order-1", model.OrderStatusShipped)

	w := NewOrderWorker(nil, store, nil, testLogger())
	err := w.ConfirmOrder(context.Background(), model.OrderPlacedMessage{
		OrderID: "order-1", UserID: "user-1",
	})
	require.NoError(t, err)

	assert.Equal(t, model.OrderStatusShipped,
		orderStatus(t, store, service.OrdersCollection, "order-1"))
}

func TestOrderWorker_ConfirmOrder_MissingOrder(t *testing.T) {
	store := docstore.NewMemoryStore()

	w := NewOrderWorker(nil, store, nil, testLogger())
	err := w.ConfirmOrder(context.Background(), model.OrderPlacedMessage{
		OrderID: "missing", UserID: "user-1",
	})
	assert.Error(t, err)
}
