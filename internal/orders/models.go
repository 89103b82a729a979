package orders

import "time"

type ProductType string

const (
	ProductDigital ProductType = "digital"
	ProductPrintA5 ProductType = "print_a5"
	ProductPrintA4 ProductType = "print_a4"
	ProductPrintA3 ProductType = "print_a3"
	ProductPrintA2 ProductType = "print_a2"
)

func ParseProductType(s string) (ProductType, bool) {
	switch ProductType(s) {
	case ProductDigital, ProductPrintA5, ProductPrintA4, ProductPrintA3, ProductPrintA2:
		return ProductType(s), true
	}
	return "", false
}

func (p ProductType) IsPrint() bool { return p != ProductDigital }

type DeliveryOption string

const (
	DeliveryPickup   DeliveryOption = "pickup"
	DeliveryShipping DeliveryOption = "delivery"
)

func ParseDeliveryOption(s string) (DeliveryOption, bool) {
	switch DeliveryOption(s) {
	case DeliveryPickup, DeliveryShipping:
		return DeliveryOption(s), true
	}
	return "", false
}

type Address struct {
	Line1      string
	Line2      string
	City       string
	PostalCode string
	Country    string
}

type Order struct {
	ID          string
	SessionRef  string // payment-processor session id, unique
	Email       string
	Name        string
	Status      Status
	TotalCents  int64
	Shipping    *Address
	FulfilledAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type OrderItem struct {
	ID                 int64
	OrderID            string
	PhotoID            string
	ProductType        ProductType
	PriceCents         int64
	DeliveryOption     DeliveryOption // empty when not applicable
	DeliveryPriceCents int64
}

type Photo struct {
	ID         string
	GalleryID  string
	AssetKey   string // private original in the asset bucket
	PreviewURL string
	CreatedAt  time.Time
}
