package provider

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"

	"mymedaga-payments/internal/domain"
	"mymedaga-payments/internal/domain/model"
)

// Country dialing codes added to local numbers.
const (
	CountryCI = "225" // Côte d'Ivoire
	CountryBJ = "229" // Bénin
	CountryCM = "237" // Cameroun
)

const minPhoneDigits = 8

// NormalizePhone strips formatting, drops an international 00 prefix and
// replaces a leading trunk 0 with countryCode. An empty countryCode keeps
// the digits as given. Numbers already in international form pass through.
func NormalizePhone(raw, countryCode string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	phone := b.String()
	switch {
	case strings.HasPrefix(phone, "00"):
		phone = phone[2:]
	case countryCode != "" && strings.HasPrefix(phone, "0"):
		phone = countryCode + phone[1:]
	}
	if len(phone) < minPhoneDigits {
		return "", fmt.Errorf("%w: phone number must have at least %d digits", domain.ErrValidation, minPhoneDigits)
	}
	return phone, nil
}

type phoneRule struct {
	country  string
	required bool
}

var phoneRules = map[model.PaymentMethod]phoneRule{
	model.MethodMTN:         {country: CountryCM, required: true},
	model.MethodMoovMoney:   {country: CountryBJ, required: true},
	model.MethodOrangeMoney: {country: CountryCI},
	model.MethodFedaPay:     {country: CountryBJ},
	model.MethodWave:        {},
}

// CheckPhone applies the phone rules of m's adapter to raw so callers can
// reject a payer number before anything is written.
func CheckPhone(m model.PaymentMethod, raw string) error {
	rule, ok := phoneRules[m]
	if !ok {
		return nil
	}
	if strings.TrimSpace(raw) == "" {
		if rule.required {
			return fmt.Errorf("%w: phone number is required for %s", domain.ErrValidation, m)
		}
		return nil
	}
	_, err := NormalizePhone(raw, rule.country)
	return err
}

// MapStatus folds provider status words into the shared vocabulary.
// Unknown words map to pending so a later check can settle them.
func MapStatus(s string) model.ProviderStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "SUCCESSFUL", "SUCCEEDED", "COMPLETED", "COMPLETE", "PAID", "APPROVED", "ACCEPTED", "APPROVED_PAYMENT", "TRANSFERRED":
		return model.ProviderStatusCompleted
	case "FAILED", "FAILURE", "CANCELLED", "CANCELED", "REJECTED", "DECLINED", "EXPIRED", "REFUSED", "ABANDONED", "VOIDED":
		return model.ProviderStatusFailed
	default:
		return model.ProviderStatusPending
	}
}

var zeroDecimalCurrencies = map[string]bool{
	"XOF": true, "XAF": true, "GNF": true, "RWF": true, "JPY": true, "KRW": true,
}

// minorUnits converts amount to the provider's smallest unit. CFA francs have no subunit.
func minorUnits(amount decimal.Decimal, currency string) int64 {
	if zeroDecimalCurrencies[strings.ToUpper(currency)] {
		return amount.Round(0).IntPart()
	}
	return amount.Shift(2).Round(0).IntPart()
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
