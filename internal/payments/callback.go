package payments

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// Callback is the gateway's return request, every field typed. Raw keeps the
// original parameters for audit; control flow never reads it.
type Callback struct {
	TmnCode           string
	TxnRef            string
	Amount            int64 // minor units (x100)
	OrderInfo         string
	ResponseCode      string
	TransactionStatus string
	TransactionNo     string
	BankCode          string
	BankTranNo        string
	CardType          string
	PayDate           *time.Time
	SecureHash        string

	signed map[string]string
	Raw    map[string]string
}

// ParseCallback validates the query of a gateway return request.
func ParseCallback(q url.Values) (Callback, error) {
	raw := make(map[string]string, len(q))
	for k := range q {
		raw[k] = q.Get(k)
	}

	cb := Callback{
		TmnCode:           raw[ParamTmnCode],
		TxnRef:            raw[ParamTxnRef],
		OrderInfo:         raw[ParamOrderInfo],
		ResponseCode:      raw[ParamResponseCode],
		TransactionStatus: raw[ParamTransactionStatus],
		TransactionNo:     raw[ParamTransactionNo],
		BankCode:          raw[ParamBankCode],
		BankTranNo:        raw[ParamBankTranNo],
		CardType:          raw[ParamCardType],
		SecureHash:        raw[ParamSecureHash],
		Raw:               raw,
	}
	for _, req := range []string{ParamTxnRef, ParamAmount, ParamResponseCode, ParamSecureHash} {
		if raw[req] == "" {
			return Callback{}, fmt.Errorf("%w: missing %s", ErrMalformedCallback, req)
		}
	}
	amount, err := strconv.ParseInt(raw[ParamAmount], 10, 64)
	if err != nil || amount < 0 {
		return Callback{}, fmt.Errorf("%w: bad %s %q", ErrMalformedCallback, ParamAmount, raw[ParamAmount])
	}
	cb.Amount = amount
	if s := raw[ParamPayDate]; s != "" {
		if t, err := time.ParseInLocation(TimeLayout, s, GatewayZone); err == nil {
			cb.PayDate = &t
		}
	}

	cb.signed = make(map[string]string, len(raw))
	for k, v := range raw {
		if k == ParamSecureHash || k == ParamSecureHashType {
			continue
		}
		cb.signed[k] = v
	}
	return cb, nil
}

// SignedParams are the parameters covered by vnp_SecureHash.
func (c Callback) SignedParams() map[string]string { return c.signed }

func (c Callback) Approved() bool {
	return c.ResponseCode == CodeApproved && c.TransactionStatus == CodeApproved
}

// FailureCode is the code whose message explains a non-approved callback.
func (c Callback) FailureCode() string {
	if c.ResponseCode == CodeApproved && c.TransactionStatus != "" {
		return c.TransactionStatus
	}
	return c.ResponseCode
}

func (c Callback) RawJSON() []byte {
	b, _ := json.Marshal(c.Raw)
	return b
}
