package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
	"github.com/shopworks/storefront-api/internal/resource"
)

// AddressBook is CRUD over one user's saved delivery addresses.
type AddressBook struct {
	store    docstore.Store
	user     model.UserContext
	validate *validator.Validate
}

func NewAddressBook(store docstore.Store, user model.UserContext) *AddressBook {
	return &AddressBook{store: store, user: user, validate: validator.New()}
}

// Listen delivers the user's address list as a live resource stream: Loading
// first, then Success with the full current list on every change.
func (a *AddressBook) Listen(ctx context.Context) (<-chan resource.Resource[[]model.Address], error) {
	docs, err := a.store.Listen(ctx, AddressCollection(a.user.UserID))
	if err != nil {
		return nil, fmt.Errorf("listen addresses: %w", err)
	}

	out := make(chan resource.Resource[[]model.Address], 1)
	out <- resource.Loading[[]model.Address]()
	go func() {
		defer close(out)
		for snapshot := range docs {
			addresses := make([]model.Address, 0, len(snapshot))
			failed := false
			for _, doc := range snapshot {
				var addr model.Address
				if err := doc.Decode(&addr); err != nil {
					sendLatest(out, resource.Error[[]model.Address](err.Error()))
					failed = true
					break
				}
				addresses = append(addresses, addr)
			}
			if !failed {
				sendLatest(out, resource.Success(addresses))
			}
		}
	}()
	return out, nil
}

// AddAddress validates and stores a new address. All six fields must be
// non-empty after trimming; invalid input returns a ValidationError without
// touching the store.
func (a *AddressBook) AddAddress(ctx context.Context, address model.Address) (model.Address, error) {
	address = trimAddress(address)
	if err := a.validate.Struct(address); err != nil {
		return model.Address{}, &ValidationError{Reason: "all fields are required"}
	}
	if _, err := a.store.Add(ctx, AddressCollection(a.user.UserID), address); err != nil {
		return model.Address{}, fmt.Errorf("add address: %w", err)
	}
	return address, nil
}

// ListAddresses returns the current address list as a one-shot read.
func (a *AddressBook) ListAddresses(ctx context.Context) ([]model.Address, error) {
	docs, err := a.store.Query(ctx, AddressCollection(a.user.UserID), docstore.Query{})
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	addresses := make([]model.Address, 0, len(docs))
	for _, doc := range docs {
		var addr model.Address
		if err := doc.Decode(&addr); err != nil {
			return nil, fmt.Errorf("decode address %s: %w", doc.ID, err)
		}
		addresses = append(addresses, addr)
	}
	return addresses, nil
}

func trimAddress(a model.Address) model.Address {
	return model.Address{
		AddressTitle: strings.TrimSpace(a.AddressTitle),
		FullName:     strings.TrimSpace(a.FullName),
		Street:       strings.TrimSpace(a.Street),
		Phone:        strings.TrimSpace(a.Phone),
		City:         strings.TrimSpace(a.City),
		State:        strings.TrimSpace(a.State),
	}
}

// sendLatest pushes into a capacity-one channel, replacing any unconsumed
// snapshot so slow consumers always wake to current state.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
