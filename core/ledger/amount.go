package ledger

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/xerrors"
)

// TinybarsPerHbar is the number of tinybars in one hbar.
const TinybarsPerHbar = 100_000_000

// Amount is a quantity of the ledger currency expressed in tinybars.
type Amount int64

// Hbar returns the amount for a number of whole hbars.
func Hbar(n int64) Amount {
	return Amount(n * TinybarsPerHbar)
}

// Tinybars returns the amount as a number of tinybars.
func (a Amount) Tinybars() int64 {
	return int64(a)
}

// String implements fmt.Stringer. It prints the amount in hbar.
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}

	whole := v / TinybarsPerHbar
	frac := v % TinybarsPerHbar

	if frac == 0 {
		return fmt.Sprintf("%s%d ℏ", sign, whole)
	}

	decimals := strings.TrimRight(fmt.Sprintf("%08d", frac), "0")

	return fmt.Sprintf("%s%d.%s ℏ", sign, whole, decimals)
}

// ParseHbar parses a decimal number of hbars like "2" or "0.5". Signs and
// amounts that do not fit in tinybars are refused.
func ParseHbar(text string) (Amount, error) {
	text = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "ℏ"))

	whole, frac, found := strings.Cut(text, ".")

	if !isDigits(whole) || (found && (!isDigits(frac) || len(frac) > 8)) {
		return 0, xerrors.Errorf("malformed amount '%s': %w", text, ErrInvalidArgument)
	}

	var f int64

	if found {
		frac += strings.Repeat("0", 8-len(frac))

		// At most eight digits always fit.
		f, _ = strconv.ParseInt(frac, 10, 64)
	}

	w, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || w > (math.MaxInt64-f)/TinybarsPerHbar {
		return 0, xerrors.Errorf("amount '%s' is too large: %w", text, ErrInvalidArgument)
	}

	return Hbar(w) + Amount(f), nil
}

func isDigits(text string) bool {
	if text == "" {
		return false
	}

	for _, r := range text {
		if r < '0' || r > '9' {
			return false
		}
	}

	return true
}
