package payment

import (
	"encoding/json"
	"fmt"
	"time"
)

const EventCheckoutCompleted = "checkout.session.completed"

// Metadata keys the storefront attaches to every line item at
// checkout-session creation.
const (
	MetaPhotoID            = "photo_id"
	MetaProductType        = "product_type"
	MetaDeliveryOption     = "delivery_option"
	MetaDeliveryPriceCents = "delivery_price_cents"
)

type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt time.Time       `json:"created_at"`
	Session   CheckoutSession `json:"session"`
}

type CheckoutSession struct {
	ID            string   `json:"id"`
	CustomerEmail string   `json:"customer_email"`
	CustomerName  string   `json:"customer_name,omitempty"`
	AmountTotal   int64    `json:"amount_total"` // minor units
	Currency      string   `json:"currency"`
	Shipping      *Address `json:"shipping,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

type LineItem struct {
	ID          string            `json:"id"`
	Description string            `json:"description"`
	Quantity    int               `json:"quantity"`
	AmountCents int64             `json:"amount_total"`
	Metadata    map[string]string `json:"metadata"`
}

func ParseEvent(payload []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.ID == "" || ev.Type == "" {
		return Event{}, fmt.Errorf("decode event: missing id or type")
	}
	return ev, nil
}
