package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
	"github.com/shopworks/storefront-api/internal/pricing"
	"github.com/shopworks/storefront-api/internal/resource"
)

// CartSession is one user's live view of their cart. It mediates all
// quantity changes and republishes the item list plus the derived total on
// every remote change. Snapshot and total streams are conflated: a consumer
// that falls behind only sees the latest state.
//
// Line items are resolved to their backing documents by the document id
// attached to each item at read time, never by list position.
type CartSession struct {
	store   docstore.Store
	mutator *CartMutator
	user    model.UserContext
	log     *slog.Logger

	mu      sync.Mutex
	current resource.Resource[[]model.CartItem]

	snapshots      conflated[resource.Resource[[]model.CartItem]]
	totals         conflated[*decimal.Decimal]
	deleteRequests conflated[model.CartItem]
}

func NewCartSession(store docstore.Store, user model.UserContext, log *slog.Logger) *CartSession {
	return &CartSession{
		store:          store,
		mutator:        NewCartMutator(store, user),
		user:           user,
		log:            log,
		current:        resource.Unspecified[[]model.CartItem](),
		snapshots:      newConflated[resource.Resource[[]model.CartItem]](),
		totals:         newConflated[*decimal.Decimal](),
		deleteRequests: newConflated[model.CartItem](),
	}
}

// Snapshots delivers the cart resource stream. The session starts in the
// Unspecified state (see Current) and emits Loading, then Success or Error
// snapshots as the subscription progresses.
func (s *CartSession) Snapshots() <-chan resource.Resource[[]model.CartItem] {
	return s.snapshots.ch
}

// Totals delivers the derived total price alongside each snapshot; nil when
// the latest snapshot is not a Success.
func (s *CartSession) Totals() <-chan *decimal.Decimal {
	return s.totals.ch
}

// DeleteRequests delivers items whose decrease hit quantity one and now need
// the shopper to confirm deletion. At most one request is pending; a newer
// one replaces an unconsumed older one.
func (s *CartSession) DeleteRequests() <-chan model.CartItem {
	return s.deleteRequests.ch
}

// TakePendingDelete consumes the pending delete confirmation, if any.
func (s *CartSession) TakePendingDelete() (model.CartItem, bool) {
	return s.deleteRequests.take()
}

func (s *CartSession) Current() resource.Resource[[]model.CartItem] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Start opens the live subscription. Each delivery from the store is decoded
// and published as the authoritative full cart state until ctx is done.
func (s *CartSession) Start(ctx context.Context) error {
	s.emit(resource.Loading[[]model.CartItem]())
	ch, err := s.store.Listen(ctx, CartCollection(s.user.UserID))
	if err != nil {
		errRes := resource.Error[[]model.CartItem](err.Error())
		s.emit(errRes)
		return fmt.Errorf("listen cart: %w", err)
	}
	go func() {
		for docs := range ch {
			items, err := decodeCartItems(docs)
			if err != nil {
				s.log.Error("decode cart snapshot", "user_id", s.user.UserID, "error", err)
				s.emit(resource.Error[[]model.CartItem](err.Error()))
				continue
			}
			s.emit(resource.Success(items))
		}
	}()
	return nil
}

// Load populates the session with a one-shot read instead of a live
// subscription. Mutation endpoints that have no listener use this so the
// quantity guards still act on current state.
func (s *CartSession) Load(ctx context.Context) error {
	docs, err := s.store.Query(ctx, CartCollection(s.user.UserID), docstore.Query{})
	if err != nil {
		s.emit(resource.Error[[]model.CartItem](err.Error()))
		return fmt.Errorf("load cart: %w", err)
	}
	items, err := decodeCartItems(docs)
	if err != nil {
		s.emit(resource.Error[[]model.CartItem](err.Error()))
		return fmt.Errorf("load cart: %w", err)
	}
	s.emit(resource.Success(items))
	return nil
}

// Items returns the last observed snapshot's items.
func (s *CartSession) Items() []model.CartItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current.IsSuccess() {
		return nil
	}
	return s.current.Data
}

// ChangeQuantity bumps the item's quantity in the given direction. A
// decrease at quantity one never persists a zero quantity document; it
// raises a delete confirmation request instead. An item that is no longer
// part of the last observed snapshot is ignored.
func (s *CartSession) ChangeQuantity(ctx context.Context, item model.CartItem, change QuantityChange) {
	found, ok := s.findItem(item.DocumentID)
	if !ok {
		return
	}

	switch change {
	case Increase:
		s.emit(resource.Loading[[]model.CartItem]())
		if _, err := s.mutator.IncreaseQuantity(ctx, found.DocumentID); err != nil {
			s.emit(resource.Error[[]model.CartItem](err.Error()))
		}
	case Decrease:
		if found.Quantity == 1 {
			s.deleteRequests.send(found)
			return
		}
		s.emit(resource.Loading[[]model.CartItem]())
		if _, err := s.mutator.DecreaseQuantity(ctx, found.DocumentID); err != nil {
			s.emit(resource.Error[[]model.CartItem](err.Error()))
		}
	}
}

// DeleteItem removes the item's backing document. Unknown items are ignored.
func (s *CartSession) DeleteItem(ctx context.Context, item model.CartItem) {
	found, ok := s.findItem(item.DocumentID)
	if !ok {
		return
	}
	if err := s.mutator.DeleteItem(ctx, found.DocumentID); err != nil {
		s.emit(resource.Error[[]model.CartItem](err.Error()))
	}
}

func (s *CartSession) findItem(documentID string) (model.CartItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.current.IsSuccess() {
		return model.CartItem{}, false
	}
	for _, item := range s.current.Data {
		if item.DocumentID == documentID {
			return item, true
		}
	}
	return model.CartItem{}, false
}

func (s *CartSession) emit(res resource.Resource[[]model.CartItem]) {
	s.mu.Lock()
	s.current = res
	s.mu.Unlock()

	s.snapshots.send(res)
	if res.IsSuccess() {
		total := CartTotal(res.Data)
		s.totals.send(&total)
	} else {
		s.totals.send(nil)
	}
}

// CartTotal sums the effective price of every line times its quantity.
func CartTotal(items []model.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		line := pricing.EffectivePrice(item.Product.Price, item.Product.OfferPercentage).
			Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(line)
	}
	return total
}

func decodeCartItems(docs []docstore.Document) ([]model.CartItem, error) {
	items := make([]model.CartItem, 0, len(docs))
	for _, doc := range docs {
		var item model.CartItem
		if err := doc.Decode(&item); err != nil {
			return nil, fmt.Errorf("decode cart item %s: %w", doc.ID, err)
		}
		item.DocumentID = doc.ID
		items = append(items, item)
	}
	return items, nil
}
