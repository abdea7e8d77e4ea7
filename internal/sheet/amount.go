package sheet

import (
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidAmount indicates a value that cannot be read as a yen amount.
// Callers must exclude such values from aggregates rather than treat them as
// zero, so a single stray cell never skews a monthly total.
var ErrInvalidAmount = errors.New("invalid amount")

var amountReplacer = strings.NewReplacer(
	"¥", "",
	"￥", "",
	",", "",
	"，", "",
	"円", "",
	" ", "",
	"　", "",
)

// ParseAmount parses a yen amount, stripping currency symbols and thousands
// separators: "¥1,234" and "1234" both yield 1234.
func ParseAmount(s string) (int, error) {
	cleaned := amountReplacer.Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0, ErrInvalidAmount
	}
	n, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, ErrInvalidAmount
	}
	return n, nil
}

// FormatAmount renders n as "¥1,234" for user-facing messages.
func FormatAmount(n int) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}
	digits := strconv.Itoa(n)
	var b strings.Builder
	b.WriteString(sign)
	b.WriteString("¥")
	lead := len(digits) % 3
	if lead > 0 {
		b.WriteString(digits[:lead])
		if len(digits) > lead {
			b.WriteString(",")
		}
	}
	for i := lead; i < len(digits); i += 3 {
		b.WriteString(digits[i : i+3])
		if i+3 < len(digits) {
			b.WriteString(",")
		}
	}
	return b.String()
}
