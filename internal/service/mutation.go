package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
)

// QuantityChange selects the direction of a cart quantity mutation.
type QuantityChange int

const (
	Increase QuantityChange = iota
	Decrease
)

// CartMutator performs the raw mutations against a single user's cart
// documents. Quantity changes run as one atomic read-modify-write
// transaction on the backing document, so concurrent changes from two
// devices of the same user never lose an update. Every operation is a
// single attempt: no retry, no backoff, store failures surface as-is.
//
// This layer is a dumb counter: a decrease may reach zero here. The guard
// that routes a quantity-1 decrease to a delete confirmation lives in
// CartSession.
type CartMutator struct {
	store          docstore.Store
	cartCollection string
}

func NewCartMutator(store docstore.Store, user model.UserContext) *CartMutator {
	return &CartMutator{store: store, cartCollection: CartCollection(user.UserID)}
}

// AddToCart unconditionally creates a new cart document for the item.
// Deciding whether an equivalent item already exists is the caller's job
// (see DetailsFlow).
func (m *CartMutator) AddToCart(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	id, err := m.store.Add(ctx, m.cartCollection, item)
	if err != nil {
		return model.CartItem{}, fmt.Errorf("add to cart: %w", err)
	}
	item.DocumentID = id
	return item, nil
}

func (m *CartMutator) IncreaseQuantity(ctx context.Context, documentID string) (string, error) {
	return m.changeQuantity(ctx, documentID, +1)
}

func (m *CartMutator) DecreaseQuantity(ctx context.Context, documentID string) (string, error) {
	return m.changeQuantity(ctx, documentID, -1)
}

func (m *CartMutator) changeQuantity(ctx context.Context, documentID string, delta int) (string, error) {
	err := m.store.RunTransaction(ctx, func(tx docstore.Tx) error {
		doc, err := tx.Get(ctx, m.cartCollection, documentID)
		if errors.Is(err, docstore.ErrNotFound) {
			// The document disappeared under us; nothing to change.
			return nil
		}
		if err != nil {
			return err
		}
		var item model.CartItem
		if err := doc.Decode(&item); err != nil {
			return err
		}
		item.Quantity += delta
		return tx.Set(ctx, m.cartCollection, documentID, item)
	})
	if err != nil {
		return "", fmt.Errorf("change quantity: %w", err)
	}
	return documentID, nil
}

func (m *CartMutator) DeleteItem(ctx context.Context, documentID string) error {
	if err := m.store.Delete(ctx, m.cartCollection, documentID); err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}
