package models

// Product is the catalog entry referenced by order line items.
// The catalog itself is managed elsewhere; this service only resolves
// product ids while building an order.
type Product struct {
	ID    string  `json:"id"`
	Code  string  `json:"code"`
	Price float64 `json:"price"`
}
