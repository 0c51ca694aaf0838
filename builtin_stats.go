package calc

import (
	"math"
	"slices"
	"strconv"
)

func statisticalFunctions() []FunctionDescriptor {
	return []FunctionDescriptor{
		aggregate("SUM", 1, SUM),
		aggregate("PRODUCT", 1, PRODUCT),
		aggregate("AVERAGE", 1, AVERAGE),
		aggregate("AVERAGEA", 1, AVERAGEA),
		aggregate("COUNT", 1, COUNT),
		aggregate("COUNTA", 1, COUNTA),
		aggregate("COUNTBLANK", 1, COUNTBLANK),
		aggregate("MAX", 1, MAX),
		aggregate("MIN", 1, MIN),
		aggregate("MEDIAN", 1, MEDIAN),
		aggregate("MODE", 1, MODE),
		aggregate("RANGE", 1, RANGE),
		aggregate("STDEV", 1, STDEV),
		aggregate("VAR", 1, VAR),
		scalar("CONFIDENCE", 3, 3, CONFIDENCE),
		scalar("NORMSINV", 1, 1, NORMSINV),
	}
}

// collectNumbers gathers the numbers of aggregate arguments. direct
// arguments are coerced, so TRUE counts as 1 and non-numeric text is
// #VALUE!; array elements count only when they are numbers. the first error
// met anywhere is returned.
func collectNumbers(c *Call) ([]float64, *ErrorValue) {
	var values []float64
	for _, arg := range c.Args {
		switch x := arg.(type) {
		case *ArrayValue:
			for v := range x.Values() {
				switch e := v.(type) {
				case *ErrorValue:
					return nil, e
				case Number:
					values = append(values, float64(e))
				}
			}
		case Empty:
		default:
			f, errv := ValidateFloat(arg, c.Mode)
			if errv != nil {
				return nil, errv
			}
			values = append(values, f)
		}
	}
	return values, nil
}

func SUM(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	// keep 15 significant digits so 0.1+0.2 sums to 0.3
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(sum, 'g', 15, 64), 64)
	if err != nil {
		return numberResult(sum)
	}
	return numberResult(rounded)
}

func PRODUCT(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	if len(values) == 0 {
		return Number(0)
	}
	product := 1.0
	for _, v := range values {
		product *= v
	}
	return numberResult(product)
}

func AVERAGE(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	if len(values) == 0 {
		return NewErrorValue(ErrDiv0, "AVERAGE has no numeric values")
	}
	return Number(mean(values))
}

// AVERAGEA counts text and booleans inside arrays too: text as 0, TRUE as 1
func AVERAGEA(c *Call) Value {
	sum, count := 0.0, 0
	for _, arg := range c.Args {
		var values []Value
		if a, ok := arg.(*ArrayValue); ok {
			values = slices.Collect(a.Values())
		} else {
			values = []Value{arg}
		}
		for _, v := range values {
			switch x := v.(type) {
			case *ErrorValue:
				return x
			case Number:
				sum += float64(x)
				count++
			case Boolean:
				if x {
					sum++
				}
				count++
			case Text:
				count++
			}
		}
	}
	if count == 0 {
		return NewErrorValue(ErrDiv0, "AVERAGEA has no values")
	}
	return Number(sum / float64(count))
}

// COUNT counts numbers. errors inside ranges are skipped, not propagated.
func COUNT(c *Call) Value {
	count := 0
	for _, arg := range c.Args {
		switch x := arg.(type) {
		case *ArrayValue:
			for v := range x.Values() {
				if _, ok := v.(Number); ok {
					count++
				}
			}
		case Number, Boolean:
			count++
		case Text:
			if _, ok := toNumber(x); ok {
				count++
			}
		}
	}
	return Number(count)
}

// COUNTA counts every non-empty value, errors included
func COUNTA(c *Call) Value {
	count := 0
	for _, arg := range c.Args {
		switch x := arg.(type) {
		case *ArrayValue:
			for v := range x.Values() {
				if _, blank := v.(Empty); !blank {
					count++
				}
			}
		case Empty:
		default:
			count++
		}
	}
	return Number(count)
}

func COUNTBLANK(c *Call) Value {
	count := 0
	for _, arg := range c.Args {
		a, ok := arg.(*ArrayValue)
		if !ok {
			a = Row(arg)
		}
		for v := range a.Values() {
			switch x := v.(type) {
			case Empty:
				count++
			case Text:
				if x == "" {
					count++
				}
			}
		}
	}
	return Number(count)
}

func MAX(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	if len(values) == 0 {
		return Number(0)
	}
	return Number(slices.Max(values))
}

func MIN(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	if len(values) == 0 {
		return Number(0)
	}
	return Number(slices.Min(values))
}

// RANGE is the spread of the values, max minus min
func RANGE(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	if len(values) == 0 {
		return Number(0)
	}
	return Number(slices.Max(values) - slices.Min(values))
}

func MEDIAN(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	if len(values) == 0 {
		return NewErrorValue(ErrNum, "MEDIAN has no numeric values")
	}
	slices.Sort(values)
	mid := len(values) / 2
	if len(values)%2 == 0 {
		return Number((values[mid-1] + values[mid]) / 2)
	}
	return Number(values[mid])
}

// MODE returns the most frequent value, the smallest one on ties. #N/A when
// no value repeats.
func MODE(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	if len(values) == 0 {
		return NewErrorValue(ErrNum, "MODE has no numeric values")
	}
	frequency := make(map[float64]int, len(values))
	maxFreq := 0
	for _, v := range values {
		frequency[v]++
		maxFreq = max(maxFreq, frequency[v])
	}
	if maxFreq == 1 {
		return NewErrorValue(ErrNA, "MODE: no value appears more than once")
	}
	best := math.Inf(1)
	for v, freq := range frequency {
		if freq == maxFreq && v < best {
			best = v
		}
	}
	return Number(best)
}

func mean(values []float64) float64 {
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleVariance is the n-1 variance, ok=false with fewer than two values
func sampleVariance(values []float64) (float64, bool) {
	if len(values) < 2 {
		return 0, false
	}
	m := mean(values)
	ss := 0.0
	for _, v := range values {
		ss += (v - m) * (v - m)
	}
	return ss / float64(len(values)-1), true
}

func VAR(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	v, ok := sampleVariance(values)
	if !ok {
		return NewErrorValue(ErrDiv0, "VAR needs at least two values")
	}
	return Number(v)
}

func STDEV(c *Call) Value {
	values, errv := collectNumbers(c)
	if errv != nil {
		return errv
	}
	v, ok := sampleVariance(values)
	if !ok {
		return NewErrorValue(ErrDiv0, "STDEV needs at least two values")
	}
	return Number(math.Sqrt(v))
}

// normsinv is the inverse of the standard normal cumulative distribution
func normsinv(p float64) float64 {
	return math.Sqrt2 * math.Erfinv(2*p-1)
}

func NORMSINV(c *Call) Value {
	p, errv := ValidateProbability(c.Arg(0), c.Mode)
	if errv != nil {
		return errv
	}
	if p == 0 || p == 1 {
		return NewErrorValue(ErrNum, "NORMSINV probability must be strictly between 0 and 1")
	}
	return Number(normsinv(p))
}

// CONFIDENCE returns the half width of a normal confidence interval for a
// population mean. alpha must lie strictly inside (0,1), the standard
// deviation must be positive and the size at least 1.
func CONFIDENCE(c *Call) Value {
	alpha, errv := ValidateProbability(c.Arg(0), c.Mode)
	if errv != nil {
		return errv
	}
	if alpha == 0 || alpha == 1 {
		return NewErrorValue(ErrNum, "CONFIDENCE alpha must be strictly between 0 and 1")
	}
	stdDev, errv := c.Float(1)
	if errv != nil {
		return errv
	}
	if stdDev <= 0 {
		return NewErrorValue(ErrNum, "CONFIDENCE standard deviation must be positive")
	}
	size, errv := c.Float(2)
	if errv != nil {
		return errv
	}
	size = math.Floor(size)
	if size < 1 {
		return NewErrorValue(ErrNum, "CONFIDENCE size must be at least 1")
	}
	return Number(normsinv(1-alpha/2) * stdDev / math.Sqrt(size))
}
