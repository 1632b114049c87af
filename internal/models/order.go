// Package models defines the order domain types shared across the service.
package models

// PaymentType enumerates accepted payment methods.
type PaymentType string

const (
	PaymentCash       PaymentType = "CASH"
	PaymentCreditCard PaymentType = "CREDIT_CARD"
	PaymentDebitCard  PaymentType = "DEBIT_CARD"
)

// ShippingType enumerates shipping service levels.
type ShippingType string

const (
	ShippingEconomic ShippingType = "ECONOMIC"
	ShippingUrgent   ShippingType = "URGENT"
)

// CarrierType enumerates supported carriers.
type CarrierType string

const (
	CarrierCorreios CarrierType = "CORREIOS"
	CarrierFedex    CarrierType = "FEDEX"
)

// OrderProduct is a line item snapshot taken at order creation time.
type OrderProduct struct {
	Code  string  `json:"code"`
	Price float64 `json:"price"`
}

// BillingInfo carries the payment method and the order total.
// TotalPrice is the sum of line-item prices at creation time and is
// never recomputed afterwards.
type BillingInfo struct {
	Payment    PaymentType `json:"payment"`
	TotalPrice float64     `json:"totalPrice"`
}

// ShippingInfo carries the shipping service level and carrier.
type ShippingInfo struct {
	Type    ShippingType `json:"type"`
	Carrier CarrierType  `json:"carrier"`
}

// Order is the aggregate root. Email is the partition key, ID the
// store-generated sort key. Orders are created and deleted, never updated.
type Order struct {
	Email     string         `json:"email"`
	ID        string         `json:"id"`
	CreatedAt int64          `json:"createdAt"` // epoch milliseconds
	Products  []OrderProduct `json:"products"`
	Billing   BillingInfo    `json:"billing"`
	Shipping  ShippingInfo   `json:"shipping"`
}

// ProductCodes returns the flattened line-item codes in order.
func (o *Order) ProductCodes() []string {
	codes := make([]string, 0, len(o.Products))
	for _, p := range o.Products {
		codes = append(codes, p.Code)
	}
	return codes
}

// OrderRequest is the already-validated create command handed in by the
// HTTP collaborator.
type OrderRequest struct {
	Email      string       `json:"email"`
	ProductIDs []string     `json:"productIds"`
	Payment    PaymentType  `json:"payment"`
	Shipping   ShippingInfo `json:"shipping"`
}

// OrderResponse is the payload returned to callers after any order operation.
type OrderResponse struct {
	ID        string         `json:"id"`
	Email     string         `json:"email"`
	CreatedAt int64          `json:"createdAt"`
	Billing   BillingInfo    `json:"billing"`
	Shipping  ShippingInfo   `json:"shipping"`
	Products  []OrderProduct `json:"products,omitempty"`
}

// Response converts the order into its caller-facing shape.
func (o *Order) Response() *OrderResponse {
	return &OrderResponse{
		ID:        o.ID,
		Email:     o.Email,
		CreatedAt: o.CreatedAt,
		Billing:   o.Billing,
		Shipping:  o.Shipping,
		Products:  o.Products,
	}
}
