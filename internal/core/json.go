package core

import "github.com/shopspring/decimal"

func init() {
	// Revenue and quantities are written as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}
