// Package fx converts amounts between currencies for cross-currency
// payments. Amounts stay in int64 minor units at the edges; decimal
// arithmetic is confined to the conversion itself so no float error can
// reach a balance.
package fx

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Converter converts minor-unit amounts between currencies
type Converter interface {
	// Convert returns the equivalent of amount (minor units of from) in
	// minor units of to, rounded half up
	Convert(amount int64, from, to string) (int64, error)
}

// ErrUnknownPair indicates no rate is configured for a currency pair
type ErrUnknownPair struct {
	From string
	To   string
}

func (e ErrUnknownPair) Error() string {
	return fmt.Sprintf("no exchange rate configured for %s/%s", e.From, e.To)
}

// StaticConverter serves rates from a fixed table. Pairs are stored in one
// direction and inverted on demand, so configuring USD:NGN also answers
// NGN:USD.
type StaticConverter struct {
	rates map[string]decimal.Decimal
}

// NewStaticConverter builds a converter from a rate specification of the
// form "USD:NGN=1520.5,USD:GHS=15.2". Whitespace around entries is ignored.
func NewStaticConverter(spec string) (*StaticConverter, error) {
	rates := make(map[string]decimal.Decimal)

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		pair, value, found := strings.Cut(entry, "=")
		if !found {
			return nil, fmt.Errorf("invalid rate entry %q: expected PAIR=RATE", entry)
		}

		from, to, found := strings.Cut(strings.TrimSpace(pair), ":")
		if !found || len(from) != 3 || len(to) != 3 {
			return nil, fmt.Errorf("invalid currency pair %q: expected XXX:YYY", pair)
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("invalid rate for %s: %w", pair, err)
		}
		if rate.Sign() <= 0 {
			return nil, fmt.Errorf("rate for %s must be positive", pair)
		}

		rates[pairKey(strings.ToUpper(from), strings.ToUpper(to))] = rate
	}

	return &StaticConverter{rates: rates}, nil
}

// Rate returns the exchange rate for a currency pair
func (c *StaticConverter) Rate(from, to string) (decimal.Decimal, error) {
	from = strings.ToUpper(from)
	to = strings.ToUpper(to)

	if from == to {
		return decimal.NewFromInt(1), nil
	}

	if rate, ok := c.rates[pairKey(from, to)]; ok {
		return rate, nil
	}
	if inverse, ok := c.rates[pairKey(to, from)]; ok {
		return decimal.NewFromInt(1).Div(inverse), nil
	}

	return decimal.Decimal{}, ErrUnknownPair{From: from, To: to}
}

// Convert translates a minor-unit amount between currencies
func (c *StaticConverter) Convert(amount int64, from, to string) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("amount must not be negative")
	}

	rate, err := c.Rate(from, to)
	if err != nil {
		return 0, err
	}

	converted := decimal.NewFromInt(amount).Mul(rate).Round(0)
	return converted.IntPart(), nil
}

func pairKey(from, to string) string {
	return from + ":" + to
}
