package calc

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.alis.build/alog"
)

// CellSource is the grid an engine evaluates against
type CellSource interface {
	// Sheet resolves a sheet name to its canonical spelling. the empty name
	// is the default sheet.
	Sheet(name string) (string, bool)
	// Cell returns the stored content of a cell: a formula (including its
	// leading '=') or else a raw value. ok is false for empty cells.
	Cell(ref CellReference) (raw Value, formula string, ok bool)
}

// NameSource is implemented by sources that define named ranges
type NameSource interface {
	Name(name string) (Range, bool)
}

// EvalState tracks one evaluation call
type EvalState int

const (
	EvalInit EvalState = iota
	EvalResolvingReferences
	EvalEvaluating
	EvalDone
)

func (s EvalState) String() string {
	switch s {
	case EvalInit:
		return "Init"
	case EvalResolvingReferences:
		return "ResolvingReferences"
	case EvalEvaluating:
		return "Evaluating"
	case EvalDone:
		return "Done"
	}
	return fmt.Sprintf("EvalState(%d)", int(s))
}

// Engine evaluates formulas against a CellSource. an Engine is safe for
// concurrent use; every call gets its own evaluation state.
type Engine struct {
	source CellSource
	opts   Options
}

// NewEngine creates an engine over source
func NewEngine(source CellSource, opts ...Option) (*Engine, error) {
	if source == nil {
		return nil, NewApplicationError(InvalidArgument, "cell source is required")
	}
	o, err := resolveOptions(opts...)
	if err != nil {
		return nil, err
	}
	if o.LogLevel != nil {
		alog.SetLevel(*o.LogLevel)
	}
	return &Engine{source: source, opts: o}, nil
}

// Options returns the resolved engine options
func (e *Engine) Options() Options {
	return e.opts
}

// Evaluate parses and evaluates formula as if it were stored at origin.
// the error is reserved for usage errors: malformed formula text or an
// origin that does not exist. every computed condition comes back as a
// Value, errors included.
func (e *Engine) Evaluate(ctx context.Context, formula string, origin CellReference, mode CompatibilityMode) (Value, error) {
	sheet, err := e.checkOrigin(origin)
	if err != nil {
		return nil, err
	}
	node, err := Parse(formula, e.opts.Registry)
	if err != nil {
		return nil, err
	}
	origin.Sheet = sheet
	c := e.newContext(ctx, origin, mode, nil)
	return c.run(node), nil
}

// EvaluateCell evaluates whatever is stored at ref. a stored formula that
// does not parse comes out #VALUE!.
func (e *Engine) EvaluateCell(ctx context.Context, ref CellReference, mode CompatibilityMode) (Value, error) {
	sheet, err := e.checkOrigin(ref)
	if err != nil {
		return nil, err
	}
	ref.Sheet = sheet
	return e.evaluateCell(ctx, ref, mode, nil), nil
}

func (e *Engine) checkOrigin(origin CellReference) (string, error) {
	if !origin.Valid() {
		return "", NewApplicationError(OutOfRange, fmt.Sprintf("origin %s is off the grid", origin))
	}
	sheet, ok := e.source.Sheet(origin.Sheet)
	if !ok {
		return "", NewApplicationError(NotFound, fmt.Sprintf("sheet %q not found", origin.Sheet))
	}
	return sheet, nil
}

// evaluateCell evaluates a stored cell with a fresh context. seed holds
// results that are already final and is only read.
func (e *Engine) evaluateCell(ctx context.Context, ref CellReference, mode CompatibilityMode, seed map[cellKey]Value) Value {
	raw, formula, ok := e.source.Cell(ref)
	if !ok {
		return Empty{}
	}
	if formula == "" {
		return orEmpty(raw)
	}
	c := e.newContext(ctx, ref, mode, seed)
	node, err := Parse(formula, e.opts.Registry)
	if err != nil {
		alog.Warnf(ctx, "[%s] formula in %s does not parse: %v", c.id, ref, err)
		return NewErrorValue(ErrValue, "formula does not parse")
	}
	return c.run(node)
}

func orEmpty(v Value) Value {
	if v == nil {
		return Empty{}
	}
	return v
}

// evalContext is the state of one top-level evaluation. it is never shared
// between goroutines, apart from the read-only seed.
type evalContext struct {
	ctx    context.Context
	engine *Engine
	id     string
	env    CallEnv
	state  EvalState

	// sheet and origin describe the formula currently being evaluated and
	// change while nested cell formulas are resolved
	sheet  string
	origin CellReference
	depth  int

	visiting map[cellKey]bool
	memo     map[cellKey]Value
	seed     map[cellKey]Value
}

func (e *Engine) newContext(ctx context.Context, origin CellReference, mode CompatibilityMode, seed map[cellKey]Value) *evalContext {
	return &evalContext{
		ctx:    ctx,
		engine: e,
		id:     uuid.New().String(),
		env: CallEnv{
			Mode:   mode,
			Clock:  e.opts.Clock,
			Random: e.opts.Random,
		},
		state:    EvalInit,
		sheet:    origin.Sheet,
		origin:   origin,
		visiting: map[cellKey]bool{},
		memo:     map[cellKey]Value{},
		seed:     seed,
	}
}

func (c *evalContext) transition(to EvalState) {
	alog.Debugf(c.ctx, "[%s] %s: %s -> %s", c.id, c.origin, c.state, to)
	c.state = to
}

// run evaluates the top-level tree. the origin counts as in progress, so a
// formula that reaches back to its own cell is circular.
func (c *evalContext) run(node Node) Value {
	c.transition(EvalResolvingReferences)
	refs := 0
	Walk(node, func(n Node) bool {
		switch n.(type) {
		case *CellRefNode, *RangeNode, *NameNode:
			refs++
		}
		return true
	})
	alog.Debugf(c.ctx, "[%s] %s references %d cells or ranges", c.id, c.origin, refs)

	c.transition(EvalEvaluating)
	key := c.origin.key()
	c.visiting[key] = true
	v := orEmpty(node.Eval(c))
	delete(c.visiting, key)

	c.transition(EvalDone)
	return v
}

// sheetOf canonicalizes the sheet of a reference, defaulting to the sheet
// of the formula being evaluated
func (c *evalContext) sheetOf(name string) (string, bool) {
	if name == "" {
		return c.sheet, true
	}
	return c.engine.source.Sheet(name)
}

// resolveCell reads a cell, evaluating its formula when it has one
func (c *evalContext) resolveCell(ref CellReference) Value {
	sheet, ok := c.sheetOf(ref.Sheet)
	if !ok {
		return NewErrorValue(ErrRef, fmt.Sprintf("sheet %q not found", ref.Sheet))
	}
	ref.Sheet = sheet
	key := ref.key()

	if v, ok := c.seed[key]; ok {
		return v
	}
	if v, ok := c.memo[key]; ok {
		return v
	}
	if c.visiting[key] {
		alog.Debugf(c.ctx, "[%s] circular reference through %s", c.id, ref)
		return NewErrorValue(ErrCalc, "circular reference through "+ref.String())
	}

	raw, formula, ok := c.engine.source.Cell(ref)
	if !ok {
		return Empty{}
	}
	if formula == "" {
		return orEmpty(raw)
	}
	if c.depth >= c.engine.opts.MaxDepth {
		return NewErrorValue(ErrCalc, "reference chain too deep at "+ref.String())
	}

	var v Value
	node, err := Parse(formula, c.engine.opts.Registry)
	if err != nil {
		alog.Warnf(c.ctx, "[%s] formula in %s does not parse: %v", c.id, ref, err)
		v = NewErrorValue(ErrValue, "formula in "+ref.String()+" does not parse")
	} else {
		c.visiting[key] = true
		outerSheet, outerOrigin := c.sheet, c.origin
		c.sheet, c.origin = sheet, ref
		c.depth++
		v = orEmpty(node.Eval(c))
		c.depth--
		c.sheet, c.origin = outerSheet, outerOrigin
		delete(c.visiting, key)
	}
	c.memo[key] = v
	return v
}

// resolveRange reads a rectangle row-major into an array. cells holding
// arrays contribute their top-left element.
func (c *evalContext) resolveRange(r Range) Value {
	sheet, ok := c.sheetOf(r.Start.Sheet)
	if !ok {
		return NewErrorValue(ErrRef, fmt.Sprintf("sheet %q not found", r.Start.Sheet))
	}
	r.Start.Sheet, r.End.Sheet = sheet, sheet

	out := NewArray(r.Rows(), r.Cols())
	for ref := range r.Cells() {
		out.Set(ref.Row-r.Start.Row, ref.Column-r.Start.Column, scalarResult(c.resolveCell(ref)))
	}
	return out
}

func (n *NumberNode) Eval(*evalContext) Value  { return Number(n.Value) }
func (n *StringNode) Eval(*evalContext) Value  { return Text(n.Value) }
func (n *BooleanNode) Eval(*evalContext) Value { return Boolean(n.Value) }
func (n *ErrorNode) Eval(*evalContext) Value   { return newError(n.Kind) }

func (n *ArrayNode) Eval(c *evalContext) Value {
	out := NewArray(len(n.Rows), len(n.Rows[0]))
	for r, row := range n.Rows {
		for col, el := range row {
			out.Set(r, col, el.Eval(c))
		}
	}
	return out
}

func (n *CellRefNode) Eval(c *evalContext) Value {
	return c.resolveCell(n.Ref)
}

func (n *RangeNode) Eval(c *evalContext) Value {
	return c.resolveRange(n.Range)
}

func (n *NameNode) Eval(c *evalContext) Value {
	names, ok := c.engine.source.(NameSource)
	if !ok {
		return NewErrorValue(ErrName, "unknown name "+n.Name)
	}
	r, ok := names.Name(n.Name)
	if !ok {
		return NewErrorValue(ErrName, "unknown name "+n.Name)
	}
	// a name covering one cell reads as that cell
	if r.Rows() == 1 && r.Cols() == 1 {
		return c.resolveCell(r.Start)
	}
	return c.resolveRange(r)
}

func (n *UnaryOpNode) Eval(c *evalContext) Value {
	operand := n.Operand.Eval(c)
	return BroadcastSingle(func(v Value) Value {
		return unaryScalar(n.Op, v, c.env.Mode)
	}, operand)
}

func unaryScalar(op UnaryOp, v Value, mode CompatibilityMode) Value {
	if e, ok := v.(*ErrorValue); ok {
		return e
	}
	if op == UnaryOpPlus {
		return v
	}
	x, errv := ValidateFloat(v, mode)
	if errv != nil {
		return errv
	}
	if op == UnaryOpPercent {
		return Number(x / 100)
	}
	return Number(-x)
}

func (n *BinaryOpNode) Eval(c *evalContext) Value {
	left := n.Left.Eval(c)
	right := n.Right.Eval(c)
	_, la := left.(*ArrayValue)
	_, ra := right.(*ArrayValue)
	if !la && !ra {
		return binaryScalar(n.Op, left, right, c.env.Mode)
	}
	return BroadcastMulti(func(args []Value) Value {
		return binaryScalar(n.Op, args[0], args[1], c.env.Mode)
	}, []Value{left, right}, []bool{true})
}

// binaryScalar applies an operator to two scalars; the left-most error wins
func binaryScalar(op BinaryOp, left, right Value, mode CompatibilityMode) Value {
	if e := firstError(left, right); e != nil {
		return e
	}

	switch op {
	case BinOpConcat:
		return Text(toText(left) + toText(right))
	case BinOpEqual:
		return Boolean(compareValues(left, right) == 0)
	case BinOpNotEqual:
		return Boolean(compareValues(left, right) != 0)
	case BinOpLess:
		return Boolean(compareValues(left, right) < 0)
	case BinOpLessEqual:
		return Boolean(compareValues(left, right) <= 0)
	case BinOpGreater:
		return Boolean(compareValues(left, right) > 0)
	case BinOpGreaterEqual:
		return Boolean(compareValues(left, right) >= 0)
	}

	l, errv := ValidateFloat(left, mode)
	if errv != nil {
		return errv
	}
	r, errv := ValidateFloat(right, mode)
	if errv != nil {
		return errv
	}
	switch op {
	case BinOpAdd:
		return numberResult(l + r)
	case BinOpSubtract:
		return numberResult(l - r)
	case BinOpMultiply:
		return numberResult(l * r)
	case BinOpDivide:
		if r == 0 {
			return NewErrorValue(ErrDiv0, "division by zero")
		}
		return numberResult(l / r)
	case BinOpPower:
		return power(l, r)
	}
	return NewErrorValue(ErrValue, "unknown operator")
}

func (n *FunctionCallNode) Eval(c *evalContext) Value {
	if n.Desc == nil {
		return NewErrorValue(ErrName, "unknown function "+n.Name)
	}
	args := make([]Value, len(n.Args))
	for i, arg := range n.Args {
		args[i] = arg.Eval(c)
	}
	return Dispatch(n.Desc, args, c.env)
}
