package processors

import (
	"strings"

	"github.com/username/treasury/backend/src/models"
)

// Keyword sets for the payment-method taxonomy. Matching is case-insensitive
// substring, first category wins, checked in the fixed order BANK, CC, TETHER.
var (
	bankKeywords   = []string{"bank", "banka", "havale", "eft", "wire", "transfer", "iban"}
	ccKeywords     = []string{"kk", "credit", "card", "kredi", "visa", "mastercard", "amex"}
	tetherKeywords = []string{"tether", "usdt", "crypto", "kasa"}
)

// ClassifyPaymentMethod maps a free-text payment-method string to its class.
// Empty or unrecognized input classifies as OTHER; the function is total.
func ClassifyPaymentMethod(raw string) models.PaymentMethodClass {
	method := strings.ToLower(strings.TrimSpace(raw))
	if method == "" {
		return models.MethodOther
	}
	if containsAny(method, bankKeywords) {
		return models.MethodBank
	}
	if containsAny(method, ccKeywords) {
		return models.MethodCC
	}
	if containsAny(method, tetherKeywords) {
		return models.MethodTether
	}
	return models.MethodOther
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
