// Package currency converts RWF prices into display strings for the supported currencies.
package currency

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/kjstillabower/rent-lookup-service/internal/models"
)

// Code is an ISO 4217 currency code.
type Code string

const (
	RWF Code = "RWF"
	USD Code = "USD"
	EUR Code = "EUR"
)

// Fallback reasons reported in Result.Reason.
const (
	ReasonRatesUnavailable = "rates_unavailable"
	ReasonRateMissing      = "rate_missing"
)

// ErrUnknownCurrency is returned by ParseCode for codes outside Codes().
var ErrUnknownCurrency = errors.New("unknown currency")

var supported = []Code{RWF, USD, EUR}

var symbols = map[Code]string{
	USD: "$",
	EUR: "€",
}

var printer = message.NewPrinter(language.English)

// Codes lists the selectable currencies, base currency first.
func Codes() []Code {
	out := make([]Code, len(supported))
	copy(out, supported)
	return out
}

// ParseCode parses a currency code case-insensitively.
func ParseCode(s string) (Code, error) {
	c := Code(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range supported {
		if c == known {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCurrency, s)
}

// Result is one converted amount.
// Fallback is set when a non-RWF target was requested but the amount is shown in RWF.
type Result struct {
	Formatted string  `json:"formatted"`
	Value     float64 `json:"value"`
	Currency  Code    `json:"currency"`
	Fallback  bool    `json:"fallback,omitempty"`
	Reason    string  `json:"reason,omitempty"`
}

// Convert converts amountRWF into target using table. A nil table or a missing rate
// falls back to RWF formatting with Fallback set; target RWF never consults the table.
func Convert(amountRWF float64, target Code, table *models.RateTable) Result {
	if target == RWF || target == "" {
		return rwf(amountRWF, "")
	}
	if table == nil {
		return rwf(amountRWF, ReasonRatesUnavailable)
	}
	rate, ok := table.Rate(string(target))
	if !ok {
		return rwf(amountRWF, ReasonRateMissing)
	}

	value := decimal.NewFromFloat(amountRWF).Mul(decimal.NewFromFloat(rate)).Round(2)
	return Result{
		Formatted: Format(value.InexactFloat64(), target),
		Value:     value.InexactFloat64(),
		Currency:  target,
	}
}

// ConvertAll converts every amount against the same table snapshot.
func ConvertAll(amountsRWF []float64, target Code, table *models.RateTable) []Result {
	out := make([]Result, len(amountsRWF))
	for i, a := range amountsRWF {
		out[i] = Convert(a, target, table)
	}
	return out
}

func rwf(amount float64, reason string) Result {
	value := decimal.NewFromFloat(amount).Round(0).InexactFloat64()
	return Result{
		Formatted: Format(value, RWF),
		Value:     value,
		Currency:  RWF,
		Fallback:  reason != "",
		Reason:    reason,
	}
}

// Format renders an already converted value. RWF is rounded to an integer and suffixed;
// other currencies keep up to two fraction digits behind a prefixed symbol.
func Format(value float64, c Code) string {
	if c == RWF || c == "" {
		n := decimal.NewFromFloat(value).Round(0).InexactFloat64()
		return printer.Sprint(number.Decimal(n, number.MaxFractionDigits(0))) + " RWF"
	}
	n := decimal.NewFromFloat(value).Round(2).InexactFloat64()
	digits := printer.Sprint(number.Decimal(n, number.MaxFractionDigits(2)))
	if sym, ok := symbols[c]; ok {
		return sym + digits
	}
	return digits + " " + string(c)
}

// RateSummary renders the USD and EUR multipliers, e.g. "1 RWF = $0.000690 USD | €0.000620 EUR".
// It returns "" when either rate is missing.
func RateSummary(table *models.RateTable) string {
	usd, okUSD := table.Rate(string(USD))
	eur, okEUR := table.Rate(string(EUR))
	if !okUSD || !okEUR {
		return ""
	}
	return fmt.Sprintf("1 RWF = $%s USD | €%s EUR",
		decimal.NewFromFloat(usd).StringFixed(6),
		decimal.NewFromFloat(eur).StringFixed(6))
}
