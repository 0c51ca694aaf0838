package calc

func logicalFunctions() []FunctionDescriptor {
	return []FunctionDescriptor{
		{
			Name:           "IF",
			MinArgs:        2,
			MaxArgs:        3,
			Args:           []ArgShape{ArgBroadcast},
			InspectsErrors: true,
			Impl:           IF,
		},
		aggregate("AND", 1, AND),
		aggregate("OR", 1, OR),
		aggregate("XOR", 1, XOR),
		scalar("NOT", 1, 1, NOT),
		{Name: "TRUE", Impl: func(*Call) Value { return Boolean(true) }},
		{Name: "FALSE", Impl: func(*Call) Value { return Boolean(false) }},
	}
}

// IF only surfaces errors from the condition and the branch it picks
func IF(c *Call) Value {
	condition, errv := c.Bool(0)
	if errv != nil {
		return errv
	}
	if condition {
		return c.Arg(1)
	}
	if c.Has(2) {
		return c.Arg(2)
	}
	return Boolean(false)
}

// logicalValues collects the truth values of AND/OR/XOR arguments. text and
// blanks inside arrays are skipped; a direct text argument is #VALUE!.
func logicalValues(c *Call) ([]bool, *ErrorValue) {
	var out []bool
	for _, arg := range c.Args {
		if a, ok := arg.(*ArrayValue); ok {
			for v := range a.Values() {
				switch x := v.(type) {
				case *ErrorValue:
					return nil, x
				case Boolean:
					out = append(out, bool(x))
				case Number:
					out = append(out, x != 0)
				}
			}
			continue
		}
		if _, blank := arg.(Empty); blank {
			continue
		}
		b, ok := isTruthy(arg)
		if !ok {
			return nil, NewErrorValue(ErrValue, "expected a logical value")
		}
		out = append(out, b)
	}
	if len(out) == 0 {
		return nil, NewErrorValue(ErrValue, "no logical values")
	}
	return out, nil
}

func AND(c *Call) Value {
	values, errv := logicalValues(c)
	if errv != nil {
		return errv
	}
	for _, v := range values {
		if !v {
			return Boolean(false)
		}
	}
	return Boolean(true)
}

func OR(c *Call) Value {
	values, errv := logicalValues(c)
	if errv != nil {
		return errv
	}
	for _, v := range values {
		if v {
			return Boolean(true)
		}
	}
	return Boolean(false)
}

// XOR is true when an odd number of arguments are true
func XOR(c *Call) Value {
	values, errv := logicalValues(c)
	if errv != nil {
		return errv
	}
	odd := false
	for _, v := range values {
		if v {
			odd = !odd
		}
	}
	return Boolean(odd)
}

func NOT(c *Call) Value {
	b, errv := c.Bool(0)
	if errv != nil {
		return errv
	}
	return Boolean(!b)
}
