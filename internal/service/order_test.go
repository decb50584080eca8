package service

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
)

func testAddress() model.Address {
	return model.Address{
		AddressTitle: "Home", FullName: "John Doe", Street: "1 Main St",
		Phone: "555-0100", City: "Springfield", State: "IL",
	}
}

func TestOrderWorkflow_PlaceOrder(t *testing.T) {
	store := docstore.NewMemoryStore()
	user := testUser()
	docID := seedCartItem(t, store, user, model.CartItem{
		Product: testProduct("p1", "100", nil), Quantity: 2,
	})

	items := []model.CartItem{{
		DocumentID: docID,
		Product:    testProduct("p1", "100", nil),
		Quantity:   2,
	}}

	workflow := NewOrderWorkflow(store, nil, user, testLogger())
	order, err := workflow.PlaceOrder(context.Background(), items, decimal.RequireFromString("200"), testAddress())
	require.NoError(t, err)
	assert.NotEmpty(t, order.OrderID)
	assert.Equal(t, model.OrderStatusOrdered, order.Status)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("200")))

	// The cart is empty afterward.
	cartDocs, err := store.Query(context.Background(), CartCollection(user.UserID), docstore.Query{})
	require.NoError(t, err)
	assert.Empty(t, cartDocs)

	// Both stored copies carry the same order.
	for _, collection := range []string{UserOrdersCollection(user.UserID), OrdersCollection} {
		doc, err := store.Get(context.Background(), collection, order.OrderID)
		require.NoError(t, err)
		var stored model.Order
		require.NoError(t, doc.Decode(&stored))
		assert.Equal(t, order.OrderID, stored.OrderID)
		assert.Equal(t, model.OrderStatusOrdered, stored.Status)
		require.Len(t, stored.Items, 1)
		assert.Equal(t, 2, stored.Items[0].Quantity)
	}
}

func TestOrderWorkflow_PlaceOrder_EmptyCart(t *testing.T) {
	store := docstore.NewMemoryStore()
	workflow := NewOrderWorkflow(store, nil, testUser(), testLogger())

	_, err := workflow.PlaceOrder(context.Background(), nil, decimal.Zero, testAddress())
	assert.True(t, IsValidationError(err))
}

// failingStore rejects batches; everything else passes through.
type failingStore struct {
	docstore.Store
}

func (f *failingStore) RunBatch(ctx context.Context, b *docstore.Batch) error {
	return errors.New("batch rejected")
}

func TestOrderWorkflow_PlaceOrder_FailureLeavesStateUntouched(t *testing.T) {
	mem := docstore.NewMemoryStore()
	user := testUser()
	seedCartItem(t, mem, user, model.CartItem{
		Product: testProduct("p1", "100", nil), Quantity: 1,
	})

	items := []model.CartItem{{
		Product: testProduct("p1", "100", nil), Quantity: 1,
	}}

	workflow := NewOrderWorkflow(&failingStore{Store: mem}, nil, user, testLogger())
	_, err := workflow.PlaceOrder(context.Background(), items, decimal.RequireFromString("100"), testAddress())
	require.Error(t, err)

	// No order was written and the cart still holds its item.
	cartDocs, err := mem.Query(context.Background(), CartCollection(user.UserID), docstore.Query{})
	require.NoError(t, err)
	assert.Len(t, cartDocs, 1)

	orderDocs, err := mem.Query(context.Background(), OrdersCollection, docstore.Query{})
	require.NoError(t, err)
	assert.Empty(t, orderDocs)
}

func TestOrderWorkflow_ListOrdersNewestFirst(t *testing.T) {
	store := docstore.NewMemoryStore()
	user := testUser()
	workflow := NewOrderWorkflow(store, nil, user, testLogger())

	for _, pid := range []string{"p1", "p2"} {
		seedCartItem(t, store, user, model.CartItem{
			Product: testProduct(pid, "10", nil), Quantity: 1,
		})
		_, err := workflow.PlaceOrder(context.Background(), []model.CartItem{{
			Product: testProduct(pid, "10", nil), Quantity: 1,
		}}, decimal.RequireFromString("10"), testAddress())
		require.NoError(t, err)
	}

	orders, err := workflow.ListOrders(context.Background())
	require.NoError(t, err)
	require.Len(t, orders, 2)
	assert.False(t, orders[0].PlacedAt.Before(orders[1].PlacedAt))
}

func TestOrderWorkflow_GetOrder_NotFound(t *testing.T) {
	store := docstore.NewMemoryStore()
	workflow := NewOrderWorkflow(store, nil, testUser(), testLogger())

	_, err := workflow.GetOrder(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
