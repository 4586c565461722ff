// Package amount приводит денежные значения из разных источников к каноническому decimal
package amount

import (
	"encoding/json"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
)

// Parse нормализует число, строку с разделителями тысяч или битыми символами валюты.
// Нераспознанное или отсутствующее значение дает ноль.
func Parse(v any) decimal.Decimal {
	switch x := v.(type) {
	case nil:
		return decimal.Zero
	case decimal.Decimal:
		return x
	case *decimal.Decimal:
		if x == nil {
			return decimal.Zero
		}
		return *x
	case int:
		return decimal.NewFromInt(int64(x))
	case int32:
		return decimal.NewFromInt32(x)
	case int64:
		return decimal.NewFromInt(x)
	case float32:
		return decimal.NewFromFloat32(x)
	case float64:
		return decimal.NewFromFloat(x)
	case json.Number:
		return ParseString(x.String())
	case string:
		return ParseString(x)
	case *string:
		if x == nil {
			return decimal.Zero
		}
		return ParseString(*x)
	case bool:
		return decimal.Zero
	default:
		return decimal.Zero
	}
}

// ParseString оставляет в строке только цифры, точку и минус и разбирает результат.
// Точка до первой цифры относится к обозначению валюты ("Rs. 5,000"), кроме записи вида ".5".
func ParseString(s string) decimal.Decimal {
	runes := []rune(s)
	var b strings.Builder
	digits, prefix := false, false
	for i, r := range runes {
		switch {
		case isDigit(r):
			digits = true
			b.WriteRune(r)
		case r == '-':
			b.WriteRune(r)
		case r == '.':
			if digits || (!prefix && i+1 < len(runes) && isDigit(runes[i+1])) {
				b.WriteRune(r)
			}
			prefix = !digits
		case !unicode.IsSpace(r):
			prefix = !digits
		}
	}

	cleaned := b.String()
	if cleaned == "" {
		return decimal.Zero
	}

	// минус допустим только в начале
	if strings.LastIndex(cleaned, "-") > 0 {
		return decimal.Zero
	}
	if strings.Count(cleaned, ".") > 1 {
		return decimal.Zero
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

// Sum складывает значения после нормализации
func Sum(values ...any) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(Parse(v))
	}
	return total
}
