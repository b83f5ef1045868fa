package model

import "strings"

// PaymentMethod is the closed set of provider identifiers.
type PaymentMethod string

const (
	MethodOrangeMoney PaymentMethod = "orange_money"
	MethodMoovMoney   PaymentMethod = "moov_money"
	MethodMTN         PaymentMethod = "mtn_money"
	MethodWave        PaymentMethod = "wave"
	MethodPayDunya    PaymentMethod = "paydunya"
	MethodStripe      PaymentMethod = "stripe"
	MethodPayPal      PaymentMethod = "paypal"
	MethodCinetPay    PaymentMethod = "cinetpay"
	MethodFedaPay     PaymentMethod = "fedapay"
	MethodPaystack    PaymentMethod = "paystack"
)

// AllMethods lists every method in display order.
var AllMethods = []PaymentMethod{
	MethodOrangeMoney,
	MethodMoovMoney,
	MethodMTN,
	MethodWave,
	MethodPayDunya,
	MethodCinetPay,
	MethodFedaPay,
	MethodPaystack,
	MethodStripe,
	MethodPayPal,
}

var methodNames = map[PaymentMethod]string{
	MethodOrangeMoney: "Orange Money",
	MethodMoovMoney:   "Moov Money",
	MethodMTN:         "MTN Mobile Money",
	MethodWave:        "Wave",
	MethodPayDunya:    "PayDunya",
	MethodStripe:      "Stripe",
	MethodPayPal:      "PayPal",
	MethodCinetPay:    "CinetPay",
	MethodFedaPay:     "FedaPay",
	MethodPaystack:    "Paystack Mobile Money",
}

// ParseMethod normalizes s and reports whether it names a known method.
// Legacy aliases used by older storefront forms are accepted.
func ParseMethod(s string) (PaymentMethod, bool) {
	m := PaymentMethod(strings.ToLower(strings.TrimSpace(s)))
	switch m {
	case "orange", "om":
		m = MethodOrangeMoney
	case "moov":
		m = MethodMoovMoney
	case "mtn", "mobile_money":
		m = MethodMTN
	}
	_, ok := methodNames[m]
	return m, ok
}

// DisplayName returns the human label of the method.
func (m PaymentMethod) DisplayName() string {
	if n, ok := methodNames[m]; ok {
		return n
	}
	return string(m)
}

// IsMobileMoney reports whether payers authorize on their phone.
func (m PaymentMethod) IsMobileMoney() bool {
	switch m {
	case MethodOrangeMoney, MethodMoovMoney, MethodMTN, MethodWave:
		return true
	}
	return false
}

// MethodInfo is what listings expose to storefront tenants.
type MethodInfo struct {
	Code         PaymentMethod `json:"code"`
	Name         string        `json:"name"`
	MobileMoney  bool          `json:"mobile_money"`
	Instructions string        `json:"instructions,omitempty"`
}
