package llm

import (
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	reFenceOpen   = regexp.MustCompile("^```[a-zA-Z]*[ \t]*\r?\n?")
	reFenceClose  = regexp.MustCompile("\r?\n?```[ \t]*$")
	reAmountNoise = regexp.MustCompile(`[$€£\s,]`)
)

// StripCodeFence removes the markdown fences models wrap JSON in despite
// being told not to.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = reFenceOpen.ReplaceAllString(s, "")
	s = reFenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// CoerceAmount turns a decoded JSON amount value into a finite, non-negative
// decimal. Numbers pass through; strings may carry currency noise such as
// "$1,200.50". Everything else fails.
func CoerceAmount(v any) (decimal.Decimal, error) {
	switch t := v.(type) {
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return decimal.Zero, fmt.Errorf("amount is not finite")
		}
		d := decimal.NewFromFloat(t)
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("negative amount %s", d)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(t.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("amount %q: %w", t.String(), err)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("negative amount %s", d)
		}
		return d, nil
	case string:
		s := reAmountNoise.ReplaceAllString(t, "")
		if s == "" {
			return decimal.Zero, fmt.Errorf("empty amount")
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("amount %q: %w", t, err)
		}
		if d.IsNegative() {
			return decimal.Zero, fmt.Errorf("negative amount %s", d)
		}
		return d, nil
	default:
		return decimal.Zero, fmt.Errorf("amount has unsupported type %T", v)
	}
}
