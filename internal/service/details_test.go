package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
)

func strPtr(s string) *string { return &s }

func TestDetailsFlow_AddsNewItem(t *testing.T) {
	store := docstore.NewMemoryStore()
	flow := NewDetailsFlow(store, testUser())

	item, err := flow.AddOrMergeItem(context.Background(), model.CartItem{
		Product: testProduct("p1", "100", nil), Quantity: 1,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, item.DocumentID)

	docs, err := store.Query(context.Background(), CartCollection(testUser().UserID), docstore.Query{})
	require.NoError(t, err)
	assert.Len(t, docs, 1)
}

func TestDetailsFlow_MergesSameVariant(t *testing.T) {
	store := docstore.NewMemoryStore()
	flow := NewDetailsFlow(store, testUser())

	product := testProduct("p1", "100", nil)
	product.Colors = []string{"red", "blue"}

	first, err := flow.AddOrMergeItem(context.Background(), model.CartItem{
		Product: product, Quantity: 1, SelectedColor: strPtr("red"),
	})
	require.NoError(t, err)

	second, err := flow.AddOrMergeItem(context.Background(), model.CartItem{
		Product: product, Quantity: 1, SelectedColor: strPtr("red"),
	})
	require.NoError(t, err)
	assert.Equal(t, first.DocumentID, second.DocumentID)

	docs, err := store.Query(context.Background(), CartCollection(testUser().UserID), docstore.Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 2, cartQuantity(t, store, first.DocumentID))
}

func TestDetailsFlow_DifferentVariantOpensNewLine(t *testing.T) {
	store := docstore.NewMemoryStore()
	flow := NewDetailsFlow(store, testUser())

	product := testProduct("p1", "100", nil)
	product.Colors = []string{"red", "blue"}

	first, err := flow.AddOrMergeItem(context.Background(), model.CartItem{
		Product: product, Quantity: 1, SelectedColor: strPtr("red"),
	})
	require.NoError(t, err)

	second, err := flow.AddOrMergeItem(context.Background(), model.CartItem{
		Product: product, Quantity: 1, SelectedColor: strPtr("blue"),
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.DocumentID, second.DocumentID)

	docs, err := store.Query(context.Background(), CartCollection(testUser().UserID), docstore.Query{})
	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, 1, cartQuantity(t, store, first.DocumentID))
}

func TestDetailsFlow_QuantityDoesNotSplitLines(t *testing.T) {
	store := docstore.NewMemoryStore()
	flow := NewDetailsFlow(store, testUser())

	product := testProduct("p1", "100", nil)

	first, err := flow.AddOrMergeItem(context.Background(), model.CartItem{
		Product: product, Quantity: 3,
	})
	require.NoError(t, err)

	// A later add with a different quantity still merges into the same line.
	_, err = flow.AddOrMergeItem(context.Background(), model.CartItem{
		Product: product, Quantity: 1,
	})
	require.NoError(t, err)

	docs, err := store.Query(context.Background(), CartCollection(testUser().UserID), docstore.Query{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, 4, cartQuantity(t, store, first.DocumentID))
}
