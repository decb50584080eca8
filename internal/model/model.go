package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserContext identifies the authenticated shopper every user-scoped
// operation acts on behalf of. It is threaded explicitly; there is no
// ambient current-user state anywhere in the service layer.
type UserContext struct {
	UserID string
	Role   string
}

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Password  string    `json:"passwordHash"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Product is an immutable catalog entry. OfferPercentage is a fraction in
// [0, 1); nil means the product carries no offer.
type Product struct {
	ID              string           `json:"id"`
	Name            string           `json:"name"`
	Category        string           `json:"category"`
	Price           decimal.Decimal  `json:"price"`
	OfferPercentage *decimal.Decimal `json:"offerPercentage,omitempty"`
	Description     string           `json:"description,omitempty"`
	Colors          []string         `json:"colors,omitempty"`
	Sizes           []string         `json:"sizes,omitempty"`
	Images          []string         `json:"images"`
}

// Equal reports whether two products are the same in every field. Prices and
// offers compare by decimal value, not representation.
func (p Product) Equal(other Product) bool {
	if p.ID != other.ID || p.Name != other.Name || p.Category != other.Category ||
		p.Description != other.Description {
		return false
	}
	if !p.Price.Equal(other.Price) {
		return false
	}
	if (p.OfferPercentage == nil) != (other.OfferPercentage == nil) {
		return false
	}
	if p.OfferPercentage != nil && !p.OfferPercentage.Equal(*other.OfferPercentage) {
		return false
	}
	return equalStrings(p.Colors, other.Colors) &&
		equalStrings(p.Sizes, other.Sizes) &&
		equalStrings(p.Images, other.Images)
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CartItem is one line of a shopper's cart. The product is embedded by value,
// a denormalized snapshot taken when the item was added. DocumentID is the id
// of the backing cart document, attached at read time and never stored.
type CartItem struct {
	DocumentID    string  `json:"-"`
	Product       Product `json:"product"`
	Quantity      int     `json:"quantity"`
	SelectedColor *string `json:"selectedColor,omitempty"`
	SelectedSize  *string `json:"selectedSize,omitempty"`
}

// SameVariant reports whether two items describe the same product
// configuration. Quantity is deliberately ignored: adding more of an already
// carted variant bumps its quantity instead of opening a second line.
func (c CartItem) SameVariant(other CartItem) bool {
	return c.Product.Equal(other.Product) &&
		equalStringPtr(c.SelectedColor, other.SelectedColor) &&
		equalStringPtr(c.SelectedSize, other.SelectedSize)
}

func equalStringPtr(a, b *string) bool {
	if (a == nil) != (b == nil) {
		return false
	}
	return a == nil || *a == *b
}

type OrderStatus string

const (
	OrderStatusOrdered   OrderStatus = "Ordered"
	OrderStatusConfirmed OrderStatus = "Confirmed"
	OrderStatusShipped   OrderStatus = "Shipped"
	OrderStatusDelivered OrderStatus = "Delivered"
	OrderStatusCanceled  OrderStatus = "Canceled"
	OrderStatusReturned  OrderStatus = "Returned"
)

// Order is created exactly once at checkout and never mutated by the
// storefront afterward. TotalPrice and Items are snapshots taken at checkout
// time; the total is not recomputed from the items later.
type Order struct {
	OrderID    string          `json:"orderId"`
	Status     OrderStatus     `json:"orderStatus"`
	TotalPrice decimal.Decimal `json:"totalPrice"`
	Items      []CartItem      `json:"products"`
	Address    Address         `json:"address"`
	PlacedAt   time.Time       `json:"date"`
}

// Address is a shopper's saved delivery address. All six fields are required
// for a valid address.
type Address struct {
	AddressTitle string `json:"addressTitle" validate:"required"`
	FullName     string `json:"fullName" validate:"required"`
	Street       string `json:"street" validate:"required"`
	Phone        string `json:"phone" validate:"required"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required"`
}

// OrderPlacedMessage is published after a successful checkout for downstream
// confirmation processing.
type OrderPlacedMessage struct {
	OrderID string `json:"order_id"`
	UserID  string `json:"user_id"`
}
