package payments

import (
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

const (
	ParamVersion           = "vnp_Version"
	ParamCommand           = "vnp_Command"
	ParamTmnCode           = "vnp_TmnCode"
	ParamAmount            = "vnp_Amount"
	ParamCurrCode          = "vnp_CurrCode"
	ParamTxnRef            = "vnp_TxnRef"
	ParamOrderInfo         = "vnp_OrderInfo"
	ParamLocale            = "vnp_Locale"
	ParamReturnURL         = "vnp_ReturnUrl"
	ParamIPAddr            = "vnp_IpAddr"
	ParamCreateDate        = "vnp_CreateDate"
	ParamResponseCode      = "vnp_ResponseCode"
	ParamTransactionNo     = "vnp_TransactionNo"
	ParamBankCode          = "vnp_BankCode"
	ParamBankTranNo        = "vnp_BankTranNo"
	ParamCardType          = "vnp_CardType"
	ParamPayDate           = "vnp_PayDate"
	ParamTransactionStatus = "vnp_TransactionStatus"
	ParamSecureHash        = "vnp_SecureHash"
	ParamSecureHashType    = "vnp_SecureHashType"

	protocolVersion = "2.1.0"
	commandPay      = "pay"
	currencyVND     = "VND"
	defaultLocale   = "vn"

	// TimeLayout is the gateway's yyyyMMddHHmmss.
	TimeLayout = "20060102150405"
)

// GatewayZone is the gateway's clock (GMT+7).
var GatewayZone = time.FixedZone("GMT+7", 7*60*60)

// GatewayConfig is built once at startup and handed to the Reconciler.
type GatewayConfig struct {
	TmnCode    string
	HashSecret string
	PayURL     string
	ReturnURL  string
	MinAmount  decimal.Decimal
}

func (c GatewayConfig) Validate() error {
	if c.TmnCode == "" || c.HashSecret == "" || c.PayURL == "" {
		return ErrMissingGatewayConfig
	}
	return nil
}

// PaymentRequest is everything that goes into one redirect URL.
type PaymentRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	OrderInfo     string
	Locale        string
	ReturnURL     string
	ClientIP      string
	CreatedAt     time.Time
}

// Params returns the unsigned parameter set for the redirect.
func (c GatewayConfig) Params(r PaymentRequest) map[string]string {
	locale := r.Locale
	if locale == "" {
		locale = defaultLocale
	}
	ret := r.ReturnURL
	if ret == "" {
		ret = c.ReturnURL
	}
	return map[string]string{
		ParamVersion:    protocolVersion,
		ParamCommand:    commandPay,
		ParamTmnCode:    c.TmnCode,
		ParamAmount:     strconv.FormatInt(MinorUnits(r.Amount), 10),
		ParamCurrCode:   currencyVND,
		ParamTxnRef:     r.TransactionID,
		ParamOrderInfo:  r.OrderInfo,
		ParamLocale:     locale,
		ParamReturnURL:  ret,
		ParamIPAddr:     NormalizeIP(r.ClientIP),
		ParamCreateDate: r.CreatedAt.In(GatewayZone).Format(TimeLayout),
	}
}

// PaymentURL signs the parameters and appends them, plus vnp_SecureHash, to the pay URL.
func (c GatewayConfig) PaymentURL(r PaymentRequest) (string, error) {
	if err := c.Validate(); err != nil {
		return "", err
	}
	if _, err := url.Parse(c.PayURL); err != nil {
		return "", fmt.Errorf("%w: bad pay url: %v", ErrMissingGatewayConfig, err)
	}
	params := c.Params(r)
	query := CanonicalQuery(params)
	return c.PayURL + "?" + query + "&" + ParamSecureHash + "=" + Sign(c.HashSecret, params), nil
}
