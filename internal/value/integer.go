package value

import (
	"fmt"
	"math/big"
	"strings"
)

// ParseInteger parses a decimal, 0b, 0o or 0x literal. Underscores may
// separate digits.
func ParseInteger(lit string) (Value, error) {
	s := strings.ReplaceAll(lit, "_", "")
	base := 10
	if len(s) > 2 && s[0] == '0' {
		switch s[1] {
		case 'b', 'B':
			base, s = 2, s[2:]
		case 'o', 'O':
			base, s = 8, s[2:]
		case 'x', 'X':
			base, s = 16, s[2:]
		}
	}
	n, ok := new(big.Int).SetString(s, base)
	if !ok {
		return Value{}, fmt.Errorf("invalid integer literal %q", lit)
	}
	return IntFromBig(n), nil
}

// EuclidDiv returns the Euclidean quotient and remainder of a / b. The
// remainder is never negative. b must not be zero.
func EuclidDiv(a, b *big.Int) (q, r *big.Int) {
	q, r = new(big.Int), new(big.Int)
	q.DivMod(a, b, r)
	return q, r
}
