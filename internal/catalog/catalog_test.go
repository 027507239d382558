package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDiscountActiveAt(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	before := now.Add(-time.Hour)
	after := now.Add(time.Hour)

	cases := []struct {
		name string
		d    *Discount
		want bool
	}{
		{"nil policy", nil, false},
		{"zero percent", &Discount{Percent: decimal.Zero}, false},
		{"open bounds", &Discount{Percent: decimal.NewFromInt(10)}, true},
		{"inside window", &Discount{Percent: decimal.NewFromInt(10), StartsAt: &before, EndsAt: &after}, true},
		{"not started", &Discount{Percent: decimal.NewFromInt(10), StartsAt: &after}, false},
		{"ended exactly now", &Discount{Percent: decimal.NewFromInt(10), EndsAt: &now}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.d.ActiveAt(now))
		})
	}
}

func TestStockUnitPricing(t *testing.T) {
	override := decimal.NewFromInt(80)
	u := StockUnit{ID: "su-1", Item: Item{Price: decimal.NewFromInt(100)}}
	assert.True(t, u.UnitPrice().Equal(decimal.NewFromInt(100)))

	u.Price = &override
	assert.True(t, u.UnitPrice().Equal(override))

	u.Item.Discount = &Discount{Percent: decimal.NewFromInt(15)}
	assert.True(t, u.DiscountPercent(time.Now()).Equal(decimal.NewFromInt(15)))
}
