package core

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

const (
	KindScalar CategoryKind = iota
	KindBreakdown
)

type (
	// CategoryKind tags the shape of a CategoryTotal.
	CategoryKind int

	// CategoryTotal is either a scalar amount or a per-dish breakdown.
	// Use Scalar or Breakdown to construct one; the zero value is a zero scalar.
	CategoryTotal struct {
		kind   CategoryKind
		amount decimal.Decimal
		dishes map[string]decimal.Decimal
	}

	// VenueCategories maps a category name to its total for one venue.
	VenueCategories map[string]*CategoryTotal
)

// Scalar returns a scalar category total.
func Scalar(amount decimal.Decimal) *CategoryTotal {
	return &CategoryTotal{kind: KindScalar, amount: amount}
}

// Breakdown returns an empty per-dish category total.
func Breakdown() *CategoryTotal {
	return &CategoryTotal{kind: KindBreakdown, dishes: map[string]decimal.Decimal{}}
}

func (c *CategoryTotal) Kind() CategoryKind { return c.kind }

// Amount returns the scalar amount. For a breakdown it is the sum of all dishes.
func (c *CategoryTotal) Amount() decimal.Decimal {
	if c.kind == KindScalar {
		return c.amount
	}
	sum := decimal.Zero
	for _, q := range c.dishes {
		sum = sum.Add(q)
	}
	return sum
}

// Dishes returns a copy of the per-dish amounts, nil for a scalar.
func (c *CategoryTotal) Dishes() map[string]decimal.Decimal {
	if c.kind != KindBreakdown {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(c.dishes))
	for k, v := range c.dishes {
		out[k] = v
	}
	return out
}

// AddScalar adds to a scalar total.
func (c *CategoryTotal) AddScalar(q decimal.Decimal) {
	if c.kind != KindScalar {
		panic("core: AddScalar on breakdown category total")
	}
	c.amount = c.amount.Add(q)
}

// AddDish adds to one dish of a breakdown total.
func (c *CategoryTotal) AddDish(dish string, q decimal.Decimal) {
	if c.kind != KindBreakdown {
		panic("core: AddDish on scalar category total")
	}
	c.dishes[dish] = c.dishes[dish].Add(q)
}

// MarshalJSON writes a scalar as a number and a breakdown as a dish object.
func (c CategoryTotal) MarshalJSON() ([]byte, error) {
	if c.kind == KindBreakdown {
		return json.Marshal(c.dishes)
	}
	return []byte(c.amount.String()), nil
}

func (c *CategoryTotal) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		dishes := map[string]decimal.Decimal{}
		if err := json.Unmarshal(data, &dishes); err != nil {
			return fmt.Errorf("decode category breakdown: %w", err)
		}
		*c = CategoryTotal{kind: KindBreakdown, dishes: dishes}
		return nil
	}
	var amount decimal.Decimal
	if err := amount.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("decode category amount: %w", err)
	}
	*c = CategoryTotal{kind: KindScalar, amount: amount}
	return nil
}
