package calc

import (
	"math"
	"strconv"
)

func mathFunctions() []FunctionDescriptor {
	return []FunctionDescriptor{
		scalar("ABS", 1, 1, unaryMath(math.Abs)),
		scalar("SIGN", 1, 1, unaryMath(sign)),
		scalar("INT", 1, 1, unaryMath(math.Floor)),
		scalar("ROUND", 1, 2, roundWith(math.Round)),
		scalar("ROUNDUP", 1, 2, roundWith(roundAwayFromZero)),
		scalar("ROUNDDOWN", 1, 2, roundWith(math.Trunc)),
		scalar("FLOOR", 1, 2, FLOOR),
		scalar("CEILING", 1, 2, CEILING),
		scalar("SQRT", 1, 1, SQRT),
		scalar("POWER", 2, 2, POWER),
		scalar("MOD", 2, 2, MOD),
		scalar("EXP", 1, 1, unaryMath(math.Exp)),
		scalar("LN", 1, 1, logarithm(math.Log)),
		scalar("LOG10", 1, 1, logarithm(math.Log10)),
		{Name: "PI", Impl: func(*Call) Value { return Number(math.Pi) }},
	}
}

// numberResult turns NaN and infinities into #NUM!
func numberResult(f float64) Value {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return NewErrorValue(ErrNum, "result is not a finite number")
	}
	return Number(f)
}

func unaryMath(fn func(float64) float64) func(c *Call) Value {
	return func(c *Call) Value {
		x, errv := c.Float(0)
		if errv != nil {
			return errv
		}
		return numberResult(fn(x))
	}
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	}
	return 0
}

func roundAwayFromZero(x float64) float64 {
	if x < 0 {
		return -math.Ceil(-x)
	}
	return math.Ceil(x)
}

func roundWith(rounder func(float64) float64) func(c *Call) Value {
	return func(c *Call) Value {
		x, errv := c.Float(0)
		if errv != nil {
			return errv
		}
		places, errv := c.FloatOr(1, 0)
		if errv != nil {
			return errv
		}
		multiplier := math.Pow(10, math.Trunc(places))
		// drop binary noise first so 2.675 rounds the way it displays
		scaled, _ := strconv.ParseFloat(strconv.FormatFloat(x*multiplier, 'g', 15, 64), 64)
		return numberResult(rounder(scaled) / multiplier)
	}
}

func FLOOR(c *Call) Value {
	x, errv := c.Float(0)
	if errv != nil {
		return errv
	}
	significance, errv := c.FloatOr(1, 1)
	if errv != nil {
		return errv
	}
	if significance == 0 {
		return Number(0)
	}
	if x > 0 && significance < 0 {
		return NewErrorValue(ErrNum, "FLOOR significance has the wrong sign")
	}
	return numberResult(math.Floor(x/significance) * significance)
}

func CEILING(c *Call) Value {
	x, errv := c.Float(0)
	if errv != nil {
		return errv
	}
	significance, errv := c.FloatOr(1, 1)
	if errv != nil {
		return errv
	}
	if significance == 0 {
		return Number(0)
	}
	if x > 0 && significance < 0 {
		return NewErrorValue(ErrNum, "CEILING significance has the wrong sign")
	}
	return numberResult(math.Ceil(x/significance) * significance)
}

func SQRT(c *Call) Value {
	x, errv := c.Float(0)
	if errv != nil {
		return errv
	}
	if x < 0 {
		return NewErrorValue(ErrNum, "SQRT requires a non-negative argument")
	}
	return Number(math.Sqrt(x))
}

func POWER(c *Call) Value {
	base, errv := c.Float(0)
	if errv != nil {
		return errv
	}
	exp, errv := c.Float(1)
	if errv != nil {
		return errv
	}
	return power(base, exp)
}

func power(base, exp float64) Value {
	if base == 0 && exp < 0 {
		return NewErrorValue(ErrDiv0, "zero raised to a negative power")
	}
	if base == 0 && exp == 0 {
		return NewErrorValue(ErrNum, "zero raised to the zero power")
	}
	return numberResult(math.Pow(base, exp))
}

// MOD takes the sign of the divisor
func MOD(c *Call) Value {
	dividend, errv := c.Float(0)
	if errv != nil {
		return errv
	}
	divisor, errv := c.Float(1)
	if errv != nil {
		return errv
	}
	if divisor == 0 {
		return NewErrorValue(ErrDiv0, "division by zero")
	}
	return numberResult(dividend - divisor*math.Floor(dividend/divisor))
}

func logarithm(fn func(float64) float64) func(c *Call) Value {
	return func(c *Call) Value {
		x, errv := c.Float(0)
		if errv != nil {
			return errv
		}
		if x <= 0 {
			return NewErrorValue(ErrNum, "logarithm of a non-positive number")
		}
		return Number(fn(x))
	}
}
