package calc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	double := FunctionDescriptor{
		Name:    "double",
		MinArgs: 1,
		MaxArgs: 1,
		Args:    []ArgShape{ArgBroadcast},
		Impl: func(c *Call) Value {
			x, errv := c.Float(0)
			if errv != nil {
				return errv
			}
			return Number(2 * x)
		},
	}
	require.NoError(t, r.Register(double))

	desc, errv := r.Resolve("Double")
	require.Nil(t, errv)
	assert.Equal(t, "DOUBLE", desc.Name)

	_, errv = r.Resolve("TRIPLE")
	require.NotNil(t, errv)
	assert.Equal(t, ErrName, errv.Kind)

	err := r.Register(double)
	var appErr *AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, AlreadyExists, appErr.Code)

	err = r.Register(FunctionDescriptor{Name: "BROKEN"})
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, InvalidArgument, appErr.Code)

	err = r.Register(FunctionDescriptor{Name: "BACKWARDS", MinArgs: 3, MaxArgs: 1, Impl: double.Impl})
	assert.Error(t, err)
}

func TestRegistryCall(t *testing.T) {
	r := DefaultRegistry()

	v, err := r.Call("ABS", CallEnv{}, Number(-5))
	require.NoError(t, err)
	assertValue(t, Number(5), v)

	v, err = r.Call("NOSUCHFUNCTION", CallEnv{})
	require.NoError(t, err)
	assertValue(t, newError(ErrName), v)

	_, err = r.Call("ABS", CallEnv{}, Number(1), Number(2))
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, InvalidArgument, appErr.Code)
}

func TestDefaultRegistryNames(t *testing.T) {
	r := DefaultRegistry()
	names := r.Names()
	assert.Equal(t, r.Len(), len(names))
	for _, name := range []string{"SUM", "IF", "ISERROR", "CONFIDENCE", "RANGE", "MMULT", "DEC2HEX", "NOW", "PROPER"} {
		assert.Contains(t, names, name)
	}
	assert.Equal(t, "ABS", names[0], "names keep registration order")
}

func TestDescriptorShape(t *testing.T) {
	d := FunctionDescriptor{Args: []ArgShape{ArgScalar, ArgBroadcast}}
	assert.Equal(t, ArgScalar, d.Shape(0))
	assert.Equal(t, ArgBroadcast, d.Shape(1))
	assert.Equal(t, ArgBroadcast, d.Shape(5), "last shape extends")
	assert.True(t, d.ArrayEnabled(3))

	var none FunctionDescriptor
	assert.Equal(t, ArgScalar, none.Shape(2))

	variadic := FunctionDescriptor{MinArgs: 1, MaxArgs: -1}
	assert.True(t, variadic.AcceptsArity(100))
	assert.False(t, variadic.AcceptsArity(0))
	assert.Equal(t, "at least 1", variadic.arityText())
}

func TestDispatch(t *testing.T) {
	calls := 0
	sum2 := &FunctionDescriptor{
		Name:    "SUM2",
		MinArgs: 2,
		MaxArgs: 2,
		Args:    []ArgShape{ArgBroadcast, ArgScalar},
		Impl: func(c *Call) Value {
			calls++
			a, _ := c.Float(0)
			b, _ := c.Float(1)
			return Number(a + b)
		},
	}
	env := CallEnv{Mode: ModeExcel}

	t.Run("wrong arity is #VALUE!", func(t *testing.T) {
		assertValue(t, newError(ErrValue), Dispatch(sum2, []Value{Number(1)}, env))
	})

	t.Run("left-most error wins without calling", func(t *testing.T) {
		calls = 0
		got := Dispatch(sum2, []Value{newError(ErrNA), newError(ErrDiv0)}, env)
		assertValue(t, newError(ErrNA), got)
		assert.Zero(t, calls)
	})

	t.Run("array in scalar position", func(t *testing.T) {
		got := Dispatch(sum2, []Value{Number(1), Row(Number(1), Number(2))}, env)
		assertValue(t, newError(ErrValue), got)
	})

	t.Run("broadcast position", func(t *testing.T) {
		got := Dispatch(sum2, []Value{Row(Number(1), Number(2)), Number(10)}, env)
		assertValue(t, Row(Number(11), Number(12)), got)
	})

	t.Run("error inside broadcast array stays in place", func(t *testing.T) {
		got := Dispatch(sum2, []Value{Row(Number(1), newError(ErrNum)), Number(1)}, env)
		assertValue(t, Row(Number(2), newError(ErrNum)), got)
	})

	t.Run("inspecting function sees errors", func(t *testing.T) {
		desc, _ := DefaultRegistry().Resolve("ISERROR")
		assertValue(t, Boolean(true), Dispatch(desc, []Value{newError(ErrRef)}, env))
	})
}
