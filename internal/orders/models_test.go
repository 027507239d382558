package orders

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineTotal(t *testing.T) {
	tests := []struct {
		price, discount string
		qty             int
		want            string
	}{
		{"100", "0", 3, "300"},
		{"150", "10", 2, "270"},
		{"19.99", "15", 3, "50.97"},
		{"0.10", "33.33", 1, "0.07"},
	}
	for _, tt := range tests {
		got := LineTotal(decimal.RequireFromString(tt.price), tt.qty, decimal.RequireFromString(tt.discount))
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s x %d - %s%% = %s, want %s",
			tt.price, tt.qty, tt.discount, got, tt.want)
	}
}

func TestNewLineRequest(t *testing.T) {
	l, err := NewLineRequest("  su-1 ", 2)
	require.NoError(t, err)
	assert.Equal(t, LineRequest{StockUnitID: "su-1", Quantity: 2}, l)

	_, err = NewLineRequest("", 1)
	assert.ErrorIs(t, err, ErrInvalidRequest)
	_, err = NewLineRequest("su-1", 0)
	assert.ErrorIs(t, err, ErrInvalidRequest)
}

func TestCreateRequest_Validate(t *testing.T) {
	assert.ErrorIs(t, CreateRequest{}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, CreateRequest{Lines: []LineRequest{{StockUnitID: "su-1", Quantity: -1}}}.Validate(), ErrInvalidRequest)
	assert.ErrorIs(t, CreateRequest{
		Lines:         []LineRequest{{StockUnitID: "su-1", Quantity: 1}},
		PaymentMethod: "BARTER",
	}.Validate(), ErrInvalidRequest)
	assert.NoError(t, CreateRequest{Lines: []LineRequest{{StockUnitID: "su-1", Quantity: 1}}}.Validate())
}

func TestOrder_CloneIsIndependent(t *testing.T) {
	o := &Order{ID: "o-1", Lines: []Line{{ID: "l-1", Quantity: 1}}}
	c := o.Clone()
	c.Lines[0].Quantity = 9
	c.Status = StatusCancelled
	assert.Equal(t, 1, o.Lines[0].Quantity)
	assert.Empty(t, o.Status)
}
