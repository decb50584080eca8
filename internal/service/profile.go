package service

import (
	"context"
	"fmt"

	"github.com/shopworks/storefront-api/internal/docstore"
	"github.com/shopworks/storefront-api/internal/model"
	"github.com/shopworks/storefront-api/internal/resource"
)

// Profile exposes the authenticated user's profile document as a live
// resource stream.
type Profile struct {
	store docstore.Store
	user  model.UserContext
}

func NewProfile(store docstore.Store, user model.UserContext) *Profile {
	return &Profile{store: store, user: user}
}

// Listen subscribes to the users collection and projects out this user's
// document on every change.
func (p *Profile) Listen(ctx context.Context) (<-chan resource.Resource[model.User], error) {
	docs, err := p.store.Listen(ctx, UsersCollection)
	if err != nil {
		return nil, fmt.Errorf("listen profile: %w", err)
	}

	out := make(chan resource.Resource[model.User], 1)
	out <- resource.Loading[model.User]()
	go func() {
		defer close(out)
		for snapshot := range docs {
			for _, doc := range snapshot {
				if doc.ID != p.user.UserID {
					continue
				}
				var user model.User
				if err := doc.Decode(&user); err != nil {
					sendLatest(out, resource.Error[model.User](err.Error()))
				} else {
					sendLatest(out, resource.Success(user))
				}
				break
			}
		}
	}()
	return out, nil
}

// Get reads the profile document once.
func (p *Profile) Get(ctx context.Context) (model.User, error) {
	doc, err := p.store.Get(ctx, UsersCollection, p.user.UserID)
	if err != nil {
		return model.User{}, fmt.Errorf("get profile: %w", err)
	}
	var user model.User
	if err := doc.Decode(&user); err != nil {
		return model.User{}, fmt.Errorf("decode profile: %w", err)
	}
	return user, nil
}
