package calc

// BroadcastSingle applies fn to arg, element-wise when arg is an array. the
// result has the same rows and columns as arg; an element that fails becomes
// an error value in place without stopping the rest.
func BroadcastSingle(fn func(Value) Value, arg Value) Value {
	a, ok := arg.(*ArrayValue)
	if !ok {
		return fn(arg)
	}
	return a.Map(func(v Value) Value {
		return scalarResult(fn(v))
	})
}

// BroadcastMulti applies fn across several arguments. positions flagged in
// enabled take part in broadcasting when they hold arrays; all such arrays
// must share identical dimensions, otherwise the whole call is #VALUE!.
// scalar arguments are repeated against every element.
func BroadcastMulti(fn func([]Value) Value, args []Value, enabled []bool) Value {
	var shape *ArrayValue
	for i, arg := range args {
		a, ok := arg.(*ArrayValue)
		if !ok || !positionEnabled(enabled, i) {
			continue
		}
		if shape == nil {
			shape = a
			continue
		}
		if !shape.SameShape(a) {
			return NewErrorValue(ErrValue, "array arguments have different dimensions")
		}
	}
	if shape == nil {
		return fn(args)
	}

	out := NewArray(shape.Rows(), shape.Cols())
	for r := 0; r < shape.Rows(); r++ {
		for c := 0; c < shape.Cols(); c++ {
			element := make([]Value, len(args))
			for i, arg := range args {
				if a, ok := arg.(*ArrayValue); ok && positionEnabled(enabled, i) {
					element[i] = a.At(r, c)
				} else {
					element[i] = arg
				}
			}
			out.Set(r, c, scalarResult(fn(element)))
		}
	}
	return out
}

// positionEnabled reads a per-position flag list whose last entry extends to
// any further positions
func positionEnabled(enabled []bool, i int) bool {
	if len(enabled) == 0 {
		return false
	}
	if i >= len(enabled) {
		return enabled[len(enabled)-1]
	}
	return enabled[i]
}

// scalarResult keeps arrays from nesting. an element function that returns
// an array contributes its top-left value.
func scalarResult(v Value) Value {
	switch x := v.(type) {
	case nil:
		return Empty{}
	case *ArrayValue:
		return x.At(0, 0)
	}
	return v
}
