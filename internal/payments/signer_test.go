package payments

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
)

const testSecret = "TESTSECRET0123456789"

func vectorParams() map[string]string {
	return map[string]string{
		"vnp_Version":    "2.1.0",
		"vnp_Command":    "pay",
		"vnp_TmnCode":    "DEMO0001",
		"vnp_Amount":     "30000000",
		"vnp_CurrCode":   "VND",
		"vnp_TxnRef":     "TXN20261018001",
		"vnp_OrderInfo":  "Thanh toan don hang 42",
		"vnp_Locale":     "vn",
		"vnp_ReturnUrl":  "https://shop.example.com/payments/vnpay/return",
		"vnp_IpAddr":     "127.0.0.1",
		"vnp_CreateDate": "20261018103000",
	}
}

const (
	vectorCanonical = "vnp_Amount=30000000&vnp_Command=pay&vnp_CreateDate=20261018103000&vnp_CurrCode=VND" +
		"&vnp_IpAddr=127.0.0.1&vnp_Locale=vn&vnp_OrderInfo=Thanh+toan+don+hang+42" +
		"&vnp_ReturnUrl=https%3A%2F%2Fshop.example.com%2Fpayments%2Fvnpay%2Freturn" +
		"&vnp_TmnCode=DEMO0001&vnp_TxnRef=TXN20261018001&vnp_Version=2.1.0"
	vectorHash = "fe89e9e6c6038b45d35fd3d441cf8c485b2a7678d0a9816728a1970b034d5221" +
		"5ed07a519ab2ed10b0fb917b5a5fad47e6cbcd4beb085b32e2db7bf4e4ff1fa8"
)

func TestCanonicalQuery_Vector(t *testing.T) {
	assert.Equal(t, vectorCanonical, CanonicalQuery(vectorParams()))
	assert.Equal(t, vectorHash, Sign(testSecret, vectorParams()))
}

func TestEncode(t *testing.T) {
	assert.Equal(t, "a+b", encode("a b"))
	assert.Equal(t, "it's(ok)*!", encode("it's(ok)*!"))
	assert.Equal(t, "x%26y%3Dz", encode("x&y=z"))
	assert.Equal(t, "to%C3%A1n", encode("toán"))
}

func TestVerify(t *testing.T) {
	p := vectorParams()
	assert.True(t, Verify(testSecret, p, vectorHash))
	assert.True(t, Verify(testSecret, p, strings.ToUpper(vectorHash)))
	assert.False(t, Verify("other-secret", p, vectorHash))
	assert.False(t, Verify(testSecret, p, "zz"))
	assert.False(t, Verify(testSecret, p, vectorHash[:64]))

	p["vnp_Amount"] = "30000001"
	assert.False(t, Verify(testSecret, p, vectorHash))
}

func TestSignature_AnySingleMutationBreaksVerification(t *testing.T) {
	keys := make([]string, 0, len(vectorParams()))
	for k := range vectorParams() {
		keys = append(keys, k)
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("appending to any value invalidates the hash", prop.ForAll(
		func(idx int, suffix string) bool {
			p := vectorParams()
			k := keys[idx%len(keys)]
			p[k] += suffix
			return !Verify(testSecret, p, vectorHash)
		},
		gen.IntRange(0, 1000),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("sign then verify round-trips", prop.ForAll(
		func(info string) bool {
			p := vectorParams()
			p["vnp_OrderInfo"] = info
			return Verify(testSecret, p, Sign(testSecret, p))
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
