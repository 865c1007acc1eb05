package domain

import "time"

type OrderStatus string

const (
	OrderStatusNew  OrderStatus = "new"
	OrderStatusVoid OrderStatus = "void"
)

type PaymentStatus string

const PaymentStatusPending PaymentStatus = "pending"

// PaymentMethodPayOnDelivery is the only payment method; payment is a flag, not a gateway call.
const PaymentMethodPayOnDelivery = "pay_on_delivery"

// PlacementState tracks whether every line of a multi-step placement was written.
type PlacementState string

const (
	PlacementIncomplete PlacementState = "incomplete"
	PlacementComplete   PlacementState = "complete"
)

type Order struct {
	ID                string         `json:"id"`
	Number            string         `json:"number"`
	Owner             string         `json:"-"`
	Status            OrderStatus    `json:"status"`
	PaymentStatus     PaymentStatus  `json:"paymentStatus"`
	PaymentMethod     string         `json:"paymentMethod"`
	PlacementState    PlacementState `json:"placementState"`
	ShippingAddressID string         `json:"shippingAddressId"`
	BillingAddressID  string         `json:"billingAddressId"`
	SubtotalCents     int64          `json:"subtotalCents"`
	TotalCents        int64          `json:"totalCents"`
	Currency          string         `json:"currency"`
	CreatedAt         time.Time      `json:"createdAt"`
	Lines             []OrderLine    `json:"lines,omitempty"`
}

type OrderLine struct {
	ID              string `json:"id"`
	OrderID         string `json:"orderId"`
	ProductID       string `json:"productId"`
	VariantID       string `json:"variantId,omitempty"`
	Name            string `json:"name"`
	SKU             string `json:"sku,omitempty"`
	UnitPriceCents  int64  `json:"unitPriceCents"`
	Quantity        int    `json:"quantity"`
	TotalPriceCents int64  `json:"totalPriceCents"`
}
