package calc

import (
	"math"
	"strconv"
	"strings"
)

// radix describes one of the base conversion families. values are at most
// ten digits wide and negative numbers use ten digit two's complement.
type radix struct {
	base int
	bits uint
}

var (
	binary      = radix{base: 2, bits: 10}
	octal       = radix{base: 8, bits: 30}
	hexadecimal = radix{base: 16, bits: 40}
)

const maxBaseDigits = 10

func engineeringFunctions() []FunctionDescriptor {
	return []FunctionDescriptor{
		scalar("BIN2DEC", 1, 1, toDecimal(binary)),
		scalar("OCT2DEC", 1, 1, toDecimal(octal)),
		scalar("HEX2DEC", 1, 1, toDecimal(hexadecimal)),
		scalar("DEC2BIN", 1, 2, fromDecimal(binary)),
		scalar("DEC2OCT", 1, 2, fromDecimal(octal)),
		scalar("DEC2HEX", 1, 2, fromDecimal(hexadecimal)),
	}
}

func toDecimal(r radix) func(c *Call) Value {
	return func(c *Call) Value {
		s, errv := ValidateNumericBaseString(c.Arg(0), c.Mode)
		if errv != nil {
			return errv
		}
		if s == "" {
			return Number(0)
		}
		if len(s) > maxBaseDigits || strings.HasPrefix(s, "-") || strings.HasPrefix(s, "+") {
			return NewErrorValue(ErrNum, "not a valid base-"+strconv.Itoa(r.base)+" number")
		}
		n, err := strconv.ParseInt(s, r.base, 64)
		if err != nil {
			return NewErrorValue(ErrNum, "not a valid base-"+strconv.Itoa(r.base)+" number")
		}
		if len(s) == maxBaseDigits && n >= int64(1)<<(r.bits-1) {
			n -= int64(1) << r.bits
		}
		return Number(n)
	}
}

func fromDecimal(r radix) func(c *Call) Value {
	return func(c *Call) Value {
		s, errv := ValidateNumericBaseString(c.Arg(0), c.Mode)
		if errv != nil {
			return errv
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return NewErrorValue(ErrValue, "expected a number, got "+quoteText(s))
		}
		n := int64(math.Trunc(f))
		limit := int64(1) << (r.bits - 1)
		if n < -limit || n >= limit {
			return NewErrorValue(ErrNum, "number out of range for base "+strconv.Itoa(r.base))
		}
		if n < 0 {
			return Text(strings.ToUpper(strconv.FormatInt(n+int64(1)<<r.bits, r.base)))
		}
		digits := strings.ToUpper(strconv.FormatInt(n, r.base))
		if !c.Has(1) {
			return Text(digits)
		}
		places, errv := c.Int(1)
		if errv != nil {
			return errv
		}
		if places < len(digits) || places > maxBaseDigits {
			return NewErrorValue(ErrNum, "places too small for the result")
		}
		return Text(strings.Repeat("0", places-len(digits)) + digits)
	}
}
