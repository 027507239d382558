package orders

import (
	"time"

	"github.com/shopspring/decimal"
)

type Shipping struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
	Note    string `json:"note,omitempty"`
}

// Order is the aggregate root. TotalAmount is frozen at creation.
type Order struct {
	ID            string
	CustomerID    string
	Lines         []Line
	TotalAmount   decimal.Decimal
	Status        Status
	PaymentMethod PaymentMethod
	PaymentStatus PaymentStatus
	Shipping      Shipping
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Line is created once with its order and never mutated.
type Line struct {
	ID              string
	OrderID         string
	ItemID          string
	StockUnitID     string
	Quantity        int
	UnitPrice       decimal.Decimal
	DiscountPercent decimal.Decimal
	ItemTotal       decimal.Decimal
	Snapshot        Snapshot
}

// Snapshot is the catalog description captured when the order was placed.
type Snapshot struct {
	Name        string `json:"name"`
	VariantName string `json:"variant_name,omitempty"`
	Image       string `json:"image,omitempty"`
	Category    string `json:"category,omitempty"`
}

var hundred = decimal.NewFromInt(100)

// LineTotal is unitPrice * quantity * (1 - discountPercent/100), rounded to cents.
func LineTotal(unitPrice decimal.Decimal, qty int, discountPercent decimal.Decimal) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(discountPercent.Div(hundred))
	return unitPrice.Mul(decimal.NewFromInt(int64(qty))).Mul(factor).Round(2)
}

type HistoryEntry struct {
	OrderID string
	From    Status
	To      Status
	ActorID string
	At      time.Time
}

type LineSummary struct {
	StockUnitID     string          `json:"stock_unit_id"`
	ItemID          string          `json:"item_id"`
	Quantity        int             `json:"quantity"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
	DiscountPercent decimal.Decimal `json:"discount_percent"`
	ItemTotal       decimal.Decimal `json:"item_total"`
	Snapshot        Snapshot        `json:"snapshot"`
}

// Summary is the read model exposed to the HTTP layer and notifications.
type Summary struct {
	ID            string          `json:"id"`
	CustomerID    string          `json:"customer_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	Status        Status          `json:"status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	Shipping      Shipping        `json:"shipping"`
	Lines         []LineSummary   `json:"lines"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

func (o *Order) Summary() Summary {
	s := Summary{
		ID:            o.ID,
		CustomerID:    o.CustomerID,
		TotalAmount:   o.TotalAmount,
		Status:        o.Status,
		PaymentMethod: o.PaymentMethod,
		PaymentStatus: o.PaymentStatus,
		Shipping:      o.Shipping,
		Lines:         make([]LineSummary, 0, len(o.Lines)),
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
	for _, l := range o.Lines {
		s.Lines = append(s.Lines, LineSummary{
			StockUnitID:     l.StockUnitID,
			ItemID:          l.ItemID,
			Quantity:        l.Quantity,
			UnitPrice:       l.UnitPrice,
			DiscountPercent: l.DiscountPercent,
			ItemTotal:       l.ItemTotal,
			Snapshot:        l.Snapshot,
		})
	}
	return s
}

// Clone deep-copies the order including its lines.
func (o *Order) Clone() *Order {
	c := *o
	c.Lines = append([]Line(nil), o.Lines...)
	return &c
}
