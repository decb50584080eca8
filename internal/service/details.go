package service

import (
	"context"
	"fmt"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
)

// DetailsFlow decides whether adding a configured product opens a new cart
// line or bumps an existing one. Two additions of the same variant merge;
// distinct color/size selections of the same product stay separate lines.
//
// Selection preconditions (a color must be picked when the product declares
// colors, same for sizes) are the caller's contract and are not re-checked
// here.
type DetailsFlow struct {
	store          docstore.Store
	mutator        *CartMutator
	cartCollection string
}

func NewDetailsFlow(store docstore.Store, user model.UserContext) *DetailsFlow {
	return &DetailsFlow{
		store:          store,
		mutator:        NewCartMutator(store, user),
		cartCollection: CartCollection(user.UserID),
	}
}

// AddOrMergeItem queries the cart for documents with the item's product id.
// None found: a new document is created. The found item is the same variant:
// its quantity is increased. A different variant: a new document is created.
func (f *DetailsFlow) AddOrMergeItem(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	docs, err := f.store.Query(ctx, f.cartCollection, docstore.Query{
		Filters: []docstore.Filter{docstore.Eq("product.id", item.Product.ID)},
	})
	if err != nil {
		return model.CartItem{}, fmt.Errorf("query cart: %w", err)
	}

	if len(docs) == 0 {
		return f.mutator.AddToCart(ctx, item)
	}

	var existing model.CartItem
	if err := docs[0].Decode(&existing); err != nil {
		return model.CartItem{}, fmt.Errorf("decode cart item: %w", err)
	}
	existing.DocumentID = docs[0].ID

	if existing.SameVariant(item) {
		if _, err := f.mutator.IncreaseQuantity(ctx, existing.DocumentID); err != nil {
			return model.CartItem{}, err
		}
		item.DocumentID = existing.DocumentID
		return item, nil
	}
	return f.mutator.AddToCart(ctx, item)
}
