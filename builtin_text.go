package calc

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

func textFunctions() []FunctionDescriptor {
	return []FunctionDescriptor{
		{Name: "CONCATENATE", MinArgs: 1, MaxArgs: -1, Args: []ArgShape{ArgBroadcast}, Impl: CONCATENATE},
		aggregate("CONCAT", 1, CONCAT),
		scalar("LEN", 1, 1, LEN),
		scalar("UPPER", 1, 1, caseWith(func() cases.Caser { return cases.Upper(language.Und) })),
		scalar("LOWER", 1, 1, caseWith(func() cases.Caser { return cases.Lower(language.Und) })),
		scalar("PROPER", 1, 1, caseWith(func() cases.Caser { return cases.Title(language.Und) })),
		scalar("TRIM", 1, 1, TRIM),
		scalar("LEFT", 1, 2, LEFT),
		scalar("RIGHT", 1, 2, RIGHT),
		scalar("MID", 3, 3, MID),
		scalar("REPT", 2, 2, REPT),
		scalar("EXACT", 2, 2, EXACT),
	}
}

func CONCATENATE(c *Call) Value {
	var sb strings.Builder
	for i := range c.Args {
		s, errv := c.Text(i)
		if errv != nil {
			return errv
		}
		sb.WriteString(s)
	}
	return Text(sb.String())
}

// CONCAT joins every argument, flattening arrays row-major
func CONCAT(c *Call) Value {
	var sb strings.Builder
	for _, arg := range c.Args {
		a, ok := arg.(*ArrayValue)
		if !ok {
			a = Row(arg)
		}
		for v := range a.Values() {
			if e, ok := v.(*ErrorValue); ok {
				return e
			}
			sb.WriteString(toText(v))
		}
	}
	return Text(sb.String())
}

// LEN counts characters, not bytes
func LEN(c *Call) Value {
	s, errv := c.Text(0)
	if errv != nil {
		return errv
	}
	return Number(len([]rune(s)))
}

// caseWith builds a case mapping function. casers are stateful so each call
// gets its own.
func caseWith(newCaser func() cases.Caser) func(c *Call) Value {
	return func(c *Call) Value {
		s, errv := c.Text(0)
		if errv != nil {
			return errv
		}
		caser := newCaser()
		return Text(caser.String(s))
	}
}

// TRIM removes leading and trailing spaces and collapses inner runs of
// spaces to one
func TRIM(c *Call) Value {
	s, errv := c.Text(0)
	if errv != nil {
		return errv
	}
	return Text(strings.Join(strings.FieldsFunc(s, func(r rune) bool { return r == ' ' }), " "))
}

func countArg(c *Call, i int) (int, *ErrorValue) {
	if !c.Has(i) {
		return 1, nil
	}
	n, errv := c.Int(i)
	if errv != nil {
		return 0, errv
	}
	if n < 0 {
		return 0, NewErrorValue(ErrValue, "character count must not be negative")
	}
	return n, nil
}

func LEFT(c *Call) Value {
	s, errv := c.Text(0)
	if errv != nil {
		return errv
	}
	n, errv := countArg(c, 1)
	if errv != nil {
		return errv
	}
	runes := []rune(s)
	return Text(runes[:min(n, len(runes))])
}

func RIGHT(c *Call) Value {
	s, errv := c.Text(0)
	if errv != nil {
		return errv
	}
	n, errv := countArg(c, 1)
	if errv != nil {
		return errv
	}
	runes := []rune(s)
	return Text(runes[len(runes)-min(n, len(runes)):])
}

// MID takes a 1-based start position
func MID(c *Call) Value {
	s, errv := c.Text(0)
	if errv != nil {
		return errv
	}
	start, errv := c.Int(1)
	if errv != nil {
		return errv
	}
	n, errv := c.Int(2)
	if errv != nil {
		return errv
	}
	if start < 1 || n < 0 {
		return NewErrorValue(ErrValue, "MID start must be at least 1 and length not negative")
	}
	runes := []rune(s)
	if start > len(runes) {
		return Text("")
	}
	end := min(start-1+n, len(runes))
	return Text(runes[start-1 : end])
}

// maxTextLength is the longest text a cell can hold
const maxTextLength = 32767

func REPT(c *Call) Value {
	s, errv := c.Text(0)
	if errv != nil {
		return errv
	}
	n, errv := c.Int(1)
	if errv != nil {
		return errv
	}
	if n < 0 {
		return NewErrorValue(ErrValue, "REPT count must not be negative")
	}
	if len([]rune(s))*n > maxTextLength {
		return NewErrorValue(ErrValue, "REPT result is too long")
	}
	return Text(strings.Repeat(s, n))
}

// EXACT compares case-sensitively
func EXACT(c *Call) Value {
	a, errv := c.Text(0)
	if errv != nil {
		return errv
	}
	b, errv := c.Text(1)
	if errv != nil {
		return errv
	}
	return Boolean(a == b)
}
