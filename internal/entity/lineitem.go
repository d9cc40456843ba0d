package entity

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem is one (description, amount) pair destined for a breakdown workbook.
type LineItem struct {
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
}

// Valid reports whether the item can be written to a workbook: a non-empty
// description after trimming and a non-negative amount.
func (li LineItem) Valid() bool {
	return strings.TrimSpace(li.Description) != "" && !li.Amount.IsNegative()
}

// Total sums the amounts of all items.
func Total(items []LineItem) decimal.Decimal {
	sum := decimal.Zero
	for _, li := range items {
		sum = sum.Add(li.Amount)
	}
	return sum
}
