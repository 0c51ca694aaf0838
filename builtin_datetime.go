package calc

import (
	"math"
	"math/rand/v2"
	"time"
)

// Clock interface provides time functionality for testing
type Clock interface {
	Now() time.Time
}

// WallClock is the default implementation using system time
type WallClock struct{}

func (WallClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant
type FixedClock time.Time

func (f FixedClock) Now() time.Time {
	return time.Time(f)
}

// RandomGenerator interface provides random number generation for testing
type RandomGenerator interface {
	Float64() float64
}

// DefaultRandomGenerator uses the standard library's rand package
type DefaultRandomGenerator struct{}

func (DefaultRandomGenerator) Float64() float64 {
	return rand.Float64()
}

// serial dates count days since December 30, 1899
const (
	excelEpochMs = -2209161600000
	msPerDay     = 86400000
)

// SerialDate converts a time to a spreadsheet serial number, keeping the
// wall clock of its location
func SerialDate(t time.Time) float64 {
	wall := time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), time.UTC)
	return float64(wall.UnixMilli()-excelEpochMs) / msPerDay
}

func dateTimeFunctions() []FunctionDescriptor {
	return []FunctionDescriptor{
		{Name: "NOW", Volatile: true, Impl: NOW},
		{Name: "TODAY", Volatile: true, Impl: TODAY},
		{Name: "RAND", Volatile: true, Impl: RAND},
		{
			Name:     "RANDBETWEEN",
			MinArgs:  2,
			MaxArgs:  2,
			Args:     []ArgShape{ArgBroadcast},
			Volatile: true,
			Impl:     RANDBETWEEN,
		},
	}
}

func NOW(c *Call) Value {
	return Number(SerialDate(c.Clock.Now()))
}

func TODAY(c *Call) Value {
	return Number(math.Floor(SerialDate(c.Clock.Now())))
}

func RAND(c *Call) Value {
	return Number(c.Random.Float64())
}

func RANDBETWEEN(c *Call) Value {
	lo, errv := c.Float(0)
	if errv != nil {
		return errv
	}
	hi, errv := c.Float(1)
	if errv != nil {
		return errv
	}
	lo, hi = math.Ceil(lo), math.Floor(hi)
	if lo > hi {
		return NewErrorValue(ErrNum, "RANDBETWEEN bottom is greater than top")
	}
	return Number(lo + math.Floor(c.Random.Float64()*(hi-lo+1)))
}
