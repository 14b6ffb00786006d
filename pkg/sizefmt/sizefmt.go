// Package sizefmt converts between exact byte counts and the
// human-readable size strings shown in storage forms ("1.500M", "100G").
// Units are binary (1024-based).
package sizefmt

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

const units = "BKMGTP"

var (
	ErrEmpty              = errors.New("input cannot be empty")
	ErrUnrecognizedSuffix = errors.New("unrecognized suffix")
	ErrNegative           = errors.New("cannot be negative")
	ErrMalformed          = errors.New("not valid input")
)

// Format renders size using the largest unit in which the value is at
// least 1, with exactly three fractional digits. The fractional part is
// truncated, not rounded, so "1023.999M" never turns into "1024.000M".
func Format(size int64) string {
	if size == 0 {
		return "0B"
	}
	p := 0
	for n := size; n >= 1024 && p < len(units)-1; n >>= 10 {
		p++
	}
	value := float64(size) / float64(int64(1)<<(10*p))
	s := strconv.FormatFloat(value, 'f', 17, 64)
	s = s[:strings.Index(s, ".")+4]
	return s + string(units[p])
}

// Parse converts a size string back to bytes. The input is an optional
// decimal number followed by an optional unit letter (case-insensitive);
// no suffix means bytes.
func Parse(text string) (int64, error) {
	if text == "" {
		return 0, ErrEmpty
	}
	num := text
	mult := int64(1)
	last := text[len(text)-1]
	if last < '0' || last > '9' {
		idx := strings.IndexByte(units, byte(last&^0x20))
		if idx < 0 {
			return 0, fmt.Errorf("%w %q in %q", ErrUnrecognizedSuffix, string(last), text)
		}
		mult = int64(1) << (10 * idx)
		num = text[:len(text)-1]
	}
	div := int64(1)
	parts := strings.Split(num, ".")
	switch len(parts) {
	case 1:
	case 2:
		for range parts[1] {
			div *= 10
		}
		num = parts[0] + parts[1]
	default:
		return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
	}
	n, err := strconv.ParseInt(num, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformed, text)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrNegative, text)
	}
	if mult > 1 && n > math.MaxInt64/mult {
		return 0, fmt.Errorf("%w: %q overflows", ErrMalformed, text)
	}
	return n * mult / div, nil
}
