package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/shopworks/storefront-api/internal/model"
)

// --- Auth ---

type RegisterRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type AuthResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

type UserResponse struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

func ToUserResponse(user *model.User) UserResponse {
	return UserResponse{
		ID: user.ID, Email: user.Email,
		FirstName: user.FirstName, LastName: user.LastName, Role: user.Role,
	}
}

// --- Cart ---

type AddCartItemRequest struct {
	ProductID     string  `json:"product_id" binding:"required"`
	Quantity      int     `json:"quantity" binding:"required,min=1"`
	SelectedColor *string `json:"selected_color"`
	SelectedSize  *string `json:"selected_size"`
}

type CartItemResponse struct {
	ID            string          `json:"id"`
	Product       model.Product   `json:"product"`
	Quantity      int             `json:"quantity"`
	SelectedColor *string         `json:"selected_color,omitempty"`
	SelectedSize  *string         `json:"selected_size,omitempty"`
	LinePrice     decimal.Decimal `json:"line_price"`
}

type CartResponse struct {
	Items      []CartItemResponse `json:"items"`
	TotalPrice decimal.Decimal    `json:"total_price"`
}

// ChangeQuantityResponse reports the outcome of an increase/decrease. When a
// decrease hits a quantity-one line the item is not mutated; the pending
// item is echoed back for the client to confirm deletion.
type ChangeQuantityResponse struct {
	ConfirmDelete bool              `json:"confirm_delete"`
	Item          *CartItemResponse `json:"item,omitempty"`
}

// --- Orders ---

type PlaceOrderRequest struct {
	TotalPrice decimal.Decimal `json:"total_price" binding:"required"`
	Address    model.Address   `json:"address" binding:"required"`
}

type OrderResponse struct {
	OrderID    string             `json:"order_id"`
	Status     model.OrderStatus  `json:"status"`
	TotalPrice decimal.Decimal    `json:"total_price"`
	Items      []CartItemResponse `json:"items"`
	Address    model.Address      `json:"address"`
	PlacedAt   time.Time          `json:"placed_at"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

// --- Addresses ---

type AddAddressRequest struct {
	AddressTitle string `json:"address_title"`
	FullName     string `json:"full_name"`
	Street       string `json:"street"`
	Phone        string `json:"phone"`
	City         string `json:"city"`
	State        string `json:"state"`
}

func (r AddAddressRequest) ToModel() model.Address {
	return model.Address{
		AddressTitle: r.AddressTitle,
		FullName:     r.FullName,
		Street:       r.Street,
		Phone:        r.Phone,
		City:         r.City,
		State:        r.State,
	}
}

type AddressListResponse struct {
	Addresses []model.Address `json:"addresses"`
}

// --- Catalog ---

type ProductListResponse struct {
	Products []model.Product `json:"products"`
	// PagingEnd is set on paged shelves once another page would return the
	// same list again.
	PagingEnd bool `json:"paging_end,omitempty"`
}
