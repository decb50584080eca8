package service

// Collection paths in the document store. Cart, order-history and address
// collections are scoped to one user; orders and products are global.
const (
	UsersCollection    = "users"
	OrdersCollection   = "orders"
	ProductsCollection = "products"
)

func CartCollection(userID string) string       { return UsersCollection + "/" + userID + "/cart" }
func UserOrdersCollection(userID string) string { return UsersCollection + "/" + userID + "/orders" }
func AddressCollection(userID string) string {
	return UsersCollection + "/" + userID + "/addresses"
}
