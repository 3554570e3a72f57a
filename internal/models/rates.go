package models

import "time"

// BaseCurrency is the currency every dataset price is denominated in.
const BaseCurrency = "RWF"

// RateTable maps ISO currency codes to RWF->code multipliers.
// A table is an immutable snapshot: refreshes replace it wholesale.
type RateTable struct {
	Base      string             `json:"base"`
	Rates     map[string]float64 `json:"rates"`
	FetchedAt time.Time          `json:"fetchedAt"`
}

// Rate returns the multiplier for code. ok is false when the code is absent or the rate is not positive.
func (t *RateTable) Rate(code string) (float64, bool) {
	if t == nil {
		return 0, false
	}
	r, ok := t.Rates[code]
	if !ok || r <= 0 {
		return 0, false
	}
	return r, true
}
