package payments

import "fmt"

const CodeApproved = "00"

var responseMessages = map[string]string{
	"00": "Transaction successful",
	"07": "Amount deducted; transaction flagged as suspicious (possible fraud)",
	"09": "Card or account is not registered for internet banking",
	"10": "Card or account authentication failed more than 3 times",
	"11": "Payment window expired; please retry the transaction",
	"12": "Card or account is locked",
	"13": "Wrong one-time password (OTP); please retry the transaction",
	"24": "Customer cancelled the transaction",
	"51": "Insufficient account balance",
	"65": "Account exceeded its daily transaction limit",
	"75": "Issuing bank is under maintenance",
	"79": "Wrong payment password entered too many times; please retry the transaction",
	"99": "Unspecified gateway error",
}

// ResponseMessage is the human-readable reason for a gateway response code.
func ResponseMessage(code string) string {
	if m, ok := responseMessages[code]; ok {
		return m
	}
	return fmt.Sprintf("failed, code=%s", code)
}
