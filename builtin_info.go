package calc

func informationFunctions() []FunctionDescriptor {
	inspect := func(name string, minArgs, maxArgs int, impl func(c *Call) Value) FunctionDescriptor {
		d := scalar(name, minArgs, maxArgs, impl)
		d.InspectsErrors = true
		return d
	}
	return []FunctionDescriptor{
		inspect("ISERROR", 1, 1, predicate(IsError)),
		inspect("ISNA", 1, 1, predicate(IsNA)),
		inspect("ISERR", 1, 1, predicate(IsErr)),
		inspect("IFERROR", 2, 2, IFERROR),
		inspect("IFNA", 2, 2, IFNA),
		inspect("ERROR.TYPE", 1, 1, ERRORTYPE),
		inspect("ISNUMBER", 1, 1, predicate(isKind(KindNumber))),
		inspect("ISTEXT", 1, 1, predicate(isKind(KindText))),
		inspect("ISLOGICAL", 1, 1, predicate(isKind(KindBoolean))),
		inspect("ISBLANK", 1, 1, predicate(isKind(KindEmpty))),
		{Name: "NA", Impl: func(*Call) Value { return newError(ErrNA) }},
	}
}

func predicate(fn func(Value) bool) func(c *Call) Value {
	return func(c *Call) Value {
		return Boolean(fn(c.Arg(0)))
	}
}

func isKind(kind ValueKind) func(Value) bool {
	return func(v Value) bool {
		return v.ValueKind() == kind
	}
}

// IFERROR and IFNA only catch real error values. text spelling an error
// code passes through.
func IFERROR(c *Call) Value {
	if _, ok := c.Arg(0).(*ErrorValue); ok {
		return c.Arg(1)
	}
	return c.Arg(0)
}

func IFNA(c *Call) Value {
	if e, ok := c.Arg(0).(*ErrorValue); ok && e.Kind == ErrNA {
		return c.Arg(1)
	}
	return c.Arg(0)
}

// errorTypeNumbers follows Excel, which numbers #CALC! 14 after the
// connection and field errors this engine never produces
var errorTypeNumbers = map[ErrorKind]int{
	ErrNull:        1,
	ErrDiv0:        2,
	ErrValue:       3,
	ErrRef:         4,
	ErrName:        5,
	ErrNum:         6,
	ErrNA:          7,
	ErrGettingData: 8,
	ErrSpill:       9,
	ErrCalc:        14,
}

// ERRORTYPE is #N/A for anything that is not an error value
func ERRORTYPE(c *Call) Value {
	e, ok := c.Arg(0).(*ErrorValue)
	if !ok {
		return NewErrorValue(ErrNA, "ERROR.TYPE argument is not an error")
	}
	return Number(errorTypeNumbers[e.Kind])
}
