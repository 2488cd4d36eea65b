package ledger

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"coinbazar/internal/app"
)

type PrizeKind string

const (
	PrizeCurrency PrizeKind = "currency"
	PrizeCoins    PrizeKind = "coins"
	PrizeKeys     PrizeKind = "keys"
)

// Prize is what a spin pays out: exactly one of currency, coins or keys.
type Prize struct {
	Kind   PrizeKind `json:"type"`
	Amount float64   `json:"amount"`
}

func Currency(amount float64) Prize { return Prize{Kind: PrizeCurrency, Amount: amount} }

func Coins(n int64) Prize { return Prize{Kind: PrizeCoins, Amount: float64(n)} }

func Keys(n int64) Prize { return Prize{Kind: PrizeKeys, Amount: float64(n)} }

// ParsePrize reads the wheel labels the dashboard sends: "$5", "10 Coin", "1 Key".
// A key label without a readable count pays one key.
func ParsePrize(label string) (Prize, error) {
	label = strings.TrimSpace(label)
	switch {
	case strings.Contains(label, "$"):
		amount, err := strconv.ParseFloat(strings.TrimSpace(strings.Replace(label, "$", "", 1)), 64)
		if err != nil {
			return Prize{}, fmt.Errorf("%w: %q", ErrInvalidPrize, label)
		}
		return Currency(amount), nil
	case strings.Contains(label, "Coin"):
		n, ok := leadingInt(label)
		if !ok {
			return Prize{}, fmt.Errorf("%w: %q", ErrInvalidPrize, label)
		}
		return Coins(n), nil
	case strings.Contains(label, "Key"):
		n, ok := leadingInt(label)
		if !ok {
			n = 1
		}
		return Keys(n), nil
	}
	return Prize{}, fmt.Errorf("%w: %q", ErrInvalidPrize, label)
}

func leadingInt(s string) (int64, bool) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && (s[end] >= '0' && s[end] <= '9' || end == 0 && (s[end] == '-' || s[end] == '+')) {
		end++
	}
	n, err := strconv.ParseInt(s[:end], 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// UnmarshalJSON accepts either a wheel label string or {"type": ..., "amount": ...}.
func (p *Prize) UnmarshalJSON(data []byte) error {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		parsed, err := ParsePrize(label)
		if err != nil {
			return err
		}
		*p = parsed
		return nil
	}
	type plain Prize
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidPrize, err)
	}
	*p = Prize(v)
	return p.validate()
}

func (p Prize) validate() error {
	if math.IsNaN(p.Amount) || math.IsInf(p.Amount, 0) || p.Amount < 0 {
		return fmt.Errorf("%w: amount %v", ErrInvalidPrize, p.Amount)
	}
	switch p.Kind {
	case PrizeCurrency:
		return nil
	case PrizeCoins, PrizeKeys:
		if p.Amount != math.Trunc(p.Amount) {
			return fmt.Errorf("%w: %s must be whole", ErrInvalidPrize, p.Kind)
		}
		return nil
	}
	return fmt.Errorf("%w: unknown type %q", ErrInvalidPrize, p.Kind)
}

// String renders the prize back as a wheel label.
func (p Prize) String() string {
	switch p.Kind {
	case PrizeCurrency:
		return "$" + strconv.FormatFloat(p.Amount, 'f', -1, 64)
	case PrizeCoins:
		return fmt.Sprintf("%d Coin", app.TruncInt(p.Amount))
	case PrizeKeys:
		return fmt.Sprintf("%d Key", app.TruncInt(p.Amount))
	}
	return string(p.Kind)
}
