package jsontree

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Int returns the Number for n.
func Int(n int64) Number {
	return Number(strconv.FormatInt(n, 10))
}

// Float returns the Number for the shortest decimal that round-trips to f.
// f must be finite.
func Float(f float64) Number {
	n, err := floatNumber(f, 64)
	if err != nil {
		panic(fmt.Sprintf("jsontree: %v", err))
	}
	return n
}

// ParseNumber parses a JSON number literal into its canonical form. Numbers
// that denote the same decimal value, such as 1, 1.0 and 10e-1, share one
// canonical form. No precision is lost.
func ParseNumber(lit string) (Number, error) {
	bad := func() (Number, error) {
		return "", fmt.Errorf("invalid number %q", lit)
	}
	s := lit
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}

	mant, expPart, hasExp := strings.Cut(strings.ToLower(s), "e")
	intPart, frac, _ := strings.Cut(mant, ".")
	if intPart == "" || !allDigits(intPart) || !allDigits(frac) {
		return bad()
	}
	if strings.Contains(mant, ".") && frac == "" {
		return bad()
	}

	exp := 0
	if hasExp {
		e, err := strconv.Atoi(expPart)
		if err != nil || expPart == "" {
			return bad()
		}
		exp = e
	}

	digits := strings.TrimLeft(intPart+frac, "0")
	exp -= len(frac)
	if digits == "" {
		return "0", nil
	}
	trimmed := strings.TrimRight(digits, "0")
	exp += len(digits) - len(trimmed)
	digits = trimmed

	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	switch {
	case exp >= 0 && len(digits)+exp <= 21:
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", exp))
	case exp < 0 && -exp < len(digits):
		point := len(digits) + exp
		b.WriteString(digits[:point])
		b.WriteByte('.')
		b.WriteString(digits[point:])
	case exp < 0 && -exp-len(digits) < 6:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -exp-len(digits)))
		b.WriteString(digits)
	default:
		b.WriteString(digits[:1])
		if len(digits) > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		b.WriteString(strconv.Itoa(exp + len(digits) - 1))
	}
	return Number(b.String()), nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// floatNumber formats f at the given bit size so a float32 keeps its short
// decimal form.
func floatNumber(f float64, bits int) (Number, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return "", fmt.Errorf("unsupported number %v", f)
	}
	return ParseNumber(strconv.FormatFloat(f, 'g', -1, bits))
}
