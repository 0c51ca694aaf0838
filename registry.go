package calc

import (
	"fmt"
	"slices"

	"github.com/elliotchance/orderedmap/v3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ArgShape describes how a function argument position treats arrays
type ArgShape uint8

const (
	// ArgScalar rejects arrays with #VALUE!
	ArgScalar ArgShape = iota
	// ArgBroadcast maps the function element-wise over arrays
	ArgBroadcast
	// ArgArray consumes arrays whole, like the ranges passed to SUM
	ArgArray
)

// FunctionDescriptor describes a built-in function. descriptors are
// registered once and never modified afterwards.
type FunctionDescriptor struct {
	Name    string
	MinArgs int
	MaxArgs int // -1 for variadic

	// Args gives the shape of each argument position. the last entry
	// extends to any further positions; an empty list means all scalar.
	Args []ArgShape

	// InspectsErrors hands error arguments to Impl instead of returning the
	// left-most one.
	InspectsErrors bool

	// Volatile functions produce a new value on every evaluation.
	Volatile bool

	Impl func(c *Call) Value
}

// Shape returns the shape of argument position i
func (d *FunctionDescriptor) Shape(i int) ArgShape {
	if len(d.Args) == 0 {
		return ArgScalar
	}
	if i >= len(d.Args) {
		return d.Args[len(d.Args)-1]
	}
	return d.Args[i]
}

// ArrayEnabled reports whether position i broadcasts over arrays
func (d *FunctionDescriptor) ArrayEnabled(i int) bool {
	return d.Shape(i) == ArgBroadcast
}

// AcceptsArity reports whether n arguments are allowed
func (d *FunctionDescriptor) AcceptsArity(n int) bool {
	return n >= d.MinArgs && (d.MaxArgs < 0 || n <= d.MaxArgs)
}

func (d *FunctionDescriptor) arityText() string {
	switch {
	case d.MaxArgs < 0:
		return fmt.Sprintf("at least %d", d.MinArgs)
	case d.MinArgs == d.MaxArgs:
		return fmt.Sprintf("exactly %d", d.MinArgs)
	}
	return fmt.Sprintf("%d to %d", d.MinArgs, d.MaxArgs)
}

// CallEnv is the immutable environment of a function call
type CallEnv struct {
	Mode   CompatibilityMode
	Clock  Clock
	Random RandomGenerator
}

// Call is the input of a function implementation
type Call struct {
	Name string
	Args []Value
	CallEnv
}

// Arg returns argument i, or Empty when it was omitted
func (c *Call) Arg(i int) Value {
	if i >= len(c.Args) || c.Args[i] == nil {
		return Empty{}
	}
	return c.Args[i]
}

// Has reports whether argument i was supplied
func (c *Call) Has(i int) bool {
	return i < len(c.Args)
}

func (c *Call) Float(i int) (float64, *ErrorValue) {
	return ValidateFloat(c.Arg(i), c.Mode)
}

// FloatOr returns def when argument i was omitted
func (c *Call) FloatOr(i int, def float64) (float64, *ErrorValue) {
	if !c.Has(i) {
		return def, nil
	}
	if _, blank := c.Args[i].(Empty); blank {
		return def, nil
	}
	return c.Float(i)
}

func (c *Call) Int(i int) (int, *ErrorValue) {
	return ValidateInt(c.Arg(i), c.Mode)
}

func (c *Call) Text(i int) (string, *ErrorValue) {
	v := c.Arg(i)
	switch x := v.(type) {
	case *ErrorValue:
		return "", x
	case *ArrayValue:
		return "", NewErrorValue(ErrValue, "expected a single value, got an array")
	}
	return toText(v), nil
}

func (c *Call) Bool(i int) (bool, *ErrorValue) {
	v := c.Arg(i)
	if e, ok := v.(*ErrorValue); ok {
		return false, e
	}
	b, ok := isTruthy(v)
	if !ok {
		return false, NewErrorValue(ErrValue, "expected a logical value")
	}
	return b, nil
}

// Registry maps function names to descriptors in registration order
type Registry struct {
	functions *orderedmap.OrderedMap[string, *FunctionDescriptor]
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{functions: orderedmap.NewOrderedMap[string, *FunctionDescriptor]()}
}

// DefaultRegistry creates a registry holding every built-in function
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, group := range [][]FunctionDescriptor{
		mathFunctions(),
		statisticalFunctions(),
		logicalFunctions(),
		informationFunctions(),
		textFunctions(),
		engineeringFunctions(),
		dateTimeFunctions(),
		matrixFunctions(),
	} {
		r.MustRegister(group...)
	}
	return r
}

// foldName normalizes function names for lookup
func foldName(name string) string {
	return cases.Upper(language.Und).String(name)
}

// Register adds a descriptor. registering a name twice is a usage error.
func (r *Registry) Register(desc FunctionDescriptor) error {
	if desc.Name == "" || desc.Impl == nil {
		return NewApplicationError(InvalidArgument, "function descriptor needs a name and an implementation")
	}
	if desc.MaxArgs >= 0 && desc.MaxArgs < desc.MinArgs {
		return NewApplicationError(InvalidArgument,
			fmt.Sprintf("%s: max arity %d below min arity %d", desc.Name, desc.MaxArgs, desc.MinArgs))
	}
	key := foldName(desc.Name)
	if r.functions.Has(key) {
		return NewApplicationError(AlreadyExists, fmt.Sprintf("function %s is already registered", key))
	}
	desc.Name = key
	desc.Args = slices.Clone(desc.Args)
	r.functions.Set(key, &desc)
	return nil
}

// MustRegister registers descriptors and panics on the first failure. used
// while building registries, where a failure is a programming error.
func (r *Registry) MustRegister(descs ...FunctionDescriptor) {
	for _, d := range descs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

// Resolve looks up a function by name. an unknown name is #NAME?.
func (r *Registry) Resolve(name string) (*FunctionDescriptor, *ErrorValue) {
	desc, ok := r.functions.Get(foldName(name))
	if !ok {
		return nil, NewErrorValue(ErrName, "unknown function "+name)
	}
	return desc, nil
}

// Names lists the registered names in registration order
func (r *Registry) Names() []string {
	return slices.Collect(r.functions.Keys())
}

func (r *Registry) Len() int {
	return r.functions.Len()
}

// Call invokes a function programmatically. an unknown name yields #NAME?;
// wrong arity is a usage error.
func (r *Registry) Call(name string, env CallEnv, args ...Value) (Value, error) {
	desc, errv := r.Resolve(name)
	if errv != nil {
		return errv, nil
	}
	if !desc.AcceptsArity(len(args)) {
		return nil, NewApplicationError(InvalidArgument,
			fmt.Sprintf("%s takes %s arguments, got %d", desc.Name, desc.arityText(), len(args)))
	}
	return Dispatch(desc, args, env), nil
}

// Dispatch runs a resolved function over already evaluated arguments:
// left-most error propagation, array rejection for scalar positions, then
// broadcasting over array-enabled positions.
func Dispatch(desc *FunctionDescriptor, args []Value, env CallEnv) Value {
	if !desc.AcceptsArity(len(args)) {
		return NewErrorValue(ErrValue, fmt.Sprintf("%s takes %s arguments", desc.Name, desc.arityText()))
	}
	if env.Clock == nil {
		env.Clock = WallClock{}
	}
	if env.Random == nil {
		env.Random = DefaultRandomGenerator{}
	}

	// errors in broadcast positions are held back so each element sees them,
	// unless something further right fails the whole call first
	var pending *ErrorValue
	broadcast := false
	for i, arg := range args {
		shape := desc.Shape(i)
		switch x := arg.(type) {
		case *ErrorValue:
			if desc.InspectsErrors {
				continue
			}
			if pending == nil {
				pending = x
			}
			if shape != ArgBroadcast {
				return pending
			}
		case *ArrayValue:
			switch shape {
			case ArgScalar:
				if pending != nil {
					return pending
				}
				return NewErrorValue(ErrValue,
					fmt.Sprintf("%s does not accept an array for argument %d", desc.Name, i+1))
			case ArgBroadcast:
				broadcast = true
			}
		}
	}

	invoke := func(values []Value) Value {
		if !desc.InspectsErrors {
			if e := firstError(values...); e != nil {
				return e
			}
		}
		out := desc.Impl(&Call{Name: desc.Name, Args: values, CallEnv: env})
		if out == nil {
			return Empty{}
		}
		return out
	}

	if !broadcast {
		return invoke(args)
	}
	enabled := make([]bool, len(args))
	for i := range args {
		enabled[i] = desc.ArrayEnabled(i)
	}
	return BroadcastMulti(invoke, args, enabled)
}

// scalar builds a descriptor for a fixed arity function whose arguments all
// broadcast
func scalar(name string, minArgs, maxArgs int, impl func(c *Call) Value) FunctionDescriptor {
	return FunctionDescriptor{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: maxArgs,
		Args:    []ArgShape{ArgBroadcast},
		Impl:    impl,
	}
}

// aggregate builds a variadic descriptor consuming arrays whole
func aggregate(name string, minArgs int, impl func(c *Call) Value) FunctionDescriptor {
	return FunctionDescriptor{
		Name:    name,
		MinArgs: minArgs,
		MaxArgs: -1,
		Args:    []ArgShape{ArgArray},
		Impl:    impl,
	}
}
