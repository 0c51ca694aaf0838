package calc

import (
	"math"
	"strconv"
	"strings"
)

// validation turns arbitrary argument values into the numbers and strings
// function implementations expect. a failure comes back as a typed
// *ErrorValue which the caller returns as the function result.

// ValidateFloat coerces v to a number. numeric strings are parsed; any other
// text fails with #VALUE!.
func ValidateFloat(v Value, mode CompatibilityMode) (float64, *ErrorValue) {
	switch x := v.(type) {
	case Number:
		return float64(x), nil
	case Boolean:
		if x {
			return 1, nil
		}
		return 0, nil
	case nil, Empty:
		return 0, nil
	case Text:
		f, ok := parseNumber(string(x))
		if !ok {
			return 0, NewErrorValue(ErrValue, "expected a number, got "+quoteText(string(x)))
		}
		return f, nil
	case *ErrorValue:
		return 0, x
	case *ArrayValue:
		return 0, NewErrorValue(ErrValue, "expected a single value, got an array")
	}
	return 0, newError(ErrValue)
}

// ValidateInt coerces v to a number and truncates it toward zero
func ValidateInt(v Value, mode CompatibilityMode) (int, *ErrorValue) {
	f, errv := ValidateFloat(v, mode)
	if errv != nil {
		return 0, errv
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return 0, NewErrorValue(ErrNum, "integer argument out of range")
	}
	return int(math.Trunc(f)), nil
}

// ValidateProbability coerces v to a number in [0,1]. a number outside the
// interval fails with #NUM!, not #VALUE!.
func ValidateProbability(v Value, mode CompatibilityMode) (float64, *ErrorValue) {
	f, errv := ValidateFloat(v, mode)
	if errv != nil {
		return 0, errv
	}
	if f < 0 || f > 1 {
		return 0, NewErrorValue(ErrNum, "probability must be between 0 and 1")
	}
	return f, nil
}

// ValidateNumericBaseString normalizes the input of the base conversion
// functions (BIN2DEC, HEX2DEC, ...) into the digit string to convert.
// booleans are rejected under EXCEL and read as 0/1 elsewhere; GNUMERIC
// floors numeric input first.
func ValidateNumericBaseString(v Value, mode CompatibilityMode) (string, *ErrorValue) {
	switch x := v.(type) {
	case Boolean:
		if mode == ModeExcel {
			return "", NewErrorValue(ErrValue, "booleans are not valid base-n numbers")
		}
		if x {
			return "1", nil
		}
		return "0", nil
	case Number:
		f := float64(x)
		if mode == ModeGnumeric {
			f = math.Floor(f)
		}
		return strconv.FormatFloat(f, 'f', -1, 64), nil
	case Text:
		s := strings.TrimSpace(string(x))
		if mode == ModeGnumeric {
			if f, ok := parseNumber(s); ok {
				return strconv.FormatFloat(math.Floor(f), 'f', -1, 64), nil
			}
		}
		return s, nil
	case nil, Empty:
		return "0", nil
	case *ErrorValue:
		return "", x
	case *ArrayValue:
		return "", NewErrorValue(ErrValue, "expected a single value, got an array")
	}
	return "", newError(ErrValue)
}
