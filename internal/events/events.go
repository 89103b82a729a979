package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	EventOrderFulfilled    = "OrderFulfilled"
	EventFulfillmentFailed = "OrderFulfillmentFailed"
	TopicOrderFulfillment  = "order.fulfillment"
	HeaderEventType        = "x-event-type"
	HeaderEventVersion     = "x-event-version"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type OrderFulfilledPayload struct {
	OrderID      string `json:"order_id"`
	SessionRef   string `json:"session_ref"`
	Email        string `json:"email"`
	DigitalItems int    `json:"digital_items"`
	PickupItems  int    `json:"pickup_items"`
	EmailID      string `json:"email_id,omitempty"`
}

type FulfillmentFailedPayload struct {
	OrderID    string `json:"order_id,omitempty"`
	SessionRef string `json:"session_ref,omitempty"`
	Reason     string `json:"reason"`
	Transient  bool   `json:"transient"`
}

// Partition key = order id, so every event for one order keeps its order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }

func MustMarshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// UnwrapPayload decodes an envelope payload into a concrete event type.
func UnwrapPayload[T any](payload json.RawMessage) (T, error) {
	var t T
	if err := json.Unmarshal(payload, &t); err != nil {
		return t, fmt.Errorf("decode payload: %w", err)
	}
	return t, nil
}
