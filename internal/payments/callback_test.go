package payments

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callbackQuery() url.Values {
	return url.Values{
		ParamTmnCode:           {"DEMO0001"},
		ParamTxnRef:            {"TXN20261018001"},
		ParamAmount:            {"30000000"},
		ParamOrderInfo:         {"Thanh toan don hang 42"},
		ParamResponseCode:      {"00"},
		ParamTransactionStatus: {"00"},
		ParamTransactionNo:     {"14000001"},
		ParamBankCode:          {"NCB"},
		ParamBankTranNo:        {"VNP14000001"},
		ParamCardType:          {"ATM"},
		ParamPayDate:           {"20261018103500"},
		ParamSecureHashType:    {"HmacSHA512"},
		ParamSecureHash:        {"abc"},
	}
}

func TestParseCallback(t *testing.T) {
	cb, err := ParseCallback(callbackQuery())
	require.NoError(t, err)

	assert.Equal(t, "TXN20261018001", cb.TxnRef)
	assert.Equal(t, int64(30000000), cb.Amount)
	assert.True(t, cb.Approved())
	assert.Equal(t, "NCB", cb.BankCode)
	require.NotNil(t, cb.PayDate)
	assert.True(t, cb.PayDate.Equal(time.Date(2026, 10, 18, 3, 35, 0, 0, time.UTC)))

	signed := cb.SignedParams()
	assert.NotContains(t, signed, ParamSecureHash)
	assert.NotContains(t, signed, ParamSecureHashType)
	assert.Equal(t, "14000001", signed[ParamTransactionNo])

	var raw map[string]string
	require.NoError(t, json.Unmarshal(cb.RawJSON(), &raw))
	assert.Equal(t, "abc", raw[ParamSecureHash])
}

func TestParseCallback_Malformed(t *testing.T) {
	for _, k := range []string{ParamTxnRef, ParamAmount, ParamResponseCode, ParamSecureHash} {
		q := callbackQuery()
		q.Del(k)
		_, err := ParseCallback(q)
		assert.ErrorIs(t, err, ErrMalformedCallback, "without %s", k)
	}

	q := callbackQuery()
	q.Set(ParamAmount, "12.5")
	_, err := ParseCallback(q)
	assert.ErrorIs(t, err, ErrMalformedCallback)
}

func TestCallback_FailureCode(t *testing.T) {
	q := callbackQuery()
	q.Set(ParamResponseCode, "24")
	q.Set(ParamTransactionStatus, "02")
	cb, err := ParseCallback(q)
	require.NoError(t, err)
	assert.False(t, cb.Approved())
	assert.Equal(t, "24", cb.FailureCode())

	q.Set(ParamResponseCode, "00")
	cb, err = ParseCallback(q)
	require.NoError(t, err)
	assert.False(t, cb.Approved())
	assert.Equal(t, "02", cb.FailureCode())
}
