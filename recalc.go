package calc

import (
	"context"
	"iter"
	"time"

	"github.com/elliotchance/orderedmap/v3"
	"go.alis.build/alog"
	"golang.org/x/sync/errgroup"
)

// Results holds the values of a recalculated workbook in workbook order
type Results struct {
	values *orderedmap.OrderedMap[cellKey, cellResult]
}

type cellResult struct {
	ref   CellReference
	value Value
}

// Get returns the value of a cell. cells that were empty are absent.
func (r *Results) Get(ref CellReference) (Value, bool) {
	res, ok := r.values.Get(ref.key())
	return res.value, ok
}

// All yields every occupied cell and its value, sheet by sheet in
// row-major order
func (r *Results) All() iter.Seq2[CellReference, Value] {
	return func(yield func(CellReference, Value) bool) {
		for _, res := range r.values.AllFromFront() {
			if !yield(res.ref, res.value) {
				return
			}
		}
	}
}

func (r *Results) Len() int {
	return r.values.Len()
}

// Recalculate evaluates every formula cell of wb. independent cells are
// evaluated concurrently, level by level of the dependency graph, each
// with its own evaluation state seeded with the results of earlier
// levels. cells in or behind a cycle are evaluated last, one at a time,
// and the cycle members come out #CALC!. the error is only set when ctx
// ends first.
func (e *Engine) Recalculate(ctx context.Context, wb *Workbook) (*Results, error) {
	if wb == nil {
		return nil, NewApplicationError(InvalidArgument, "workbook is required")
	}
	start := time.Now()
	sub := &Engine{source: wb, opts: e.opts}
	mode := wb.Mode()

	g := BuildGraph(wb, e.opts.Registry)
	levels, blocked := g.Levels()
	for _, cycle := range g.Cycles() {
		alog.Debugf(ctx, "circular references between %v", cycle)
	}

	seed := make(map[cellKey]Value, g.Len())
	for _, level := range levels {
		values := make([]Value, len(level))
		eg, gctx := errgroup.WithContext(ctx)
		eg.SetLimit(max(e.opts.Workers, 1))
		for i, ref := range level {
			eg.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				values[i] = sub.evaluateCell(gctx, ref, mode, seed)
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return nil, err
		}
		// the seed is only written between levels, while nothing reads it
		for i, ref := range level {
			seed[ref.key()] = values[i]
		}
	}

	for _, ref := range blocked {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		seed[ref.key()] = sub.evaluateCell(ctx, ref, mode, seed)
	}

	results := &Results{values: orderedmap.NewOrderedMap[cellKey, cellResult]()}
	for ref := range wb.Cells() {
		key := ref.key()
		v, ok := seed[key]
		if !ok {
			raw, _, _ := wb.Cell(ref)
			v = orEmpty(raw)
		}
		results.values.Set(key, cellResult{ref: ref, value: v})
	}

	alog.Infof(ctx, "recalculated %d formula cells in %d levels (%d blocked, %d volatile) in %s",
		g.Len(), len(levels), len(blocked), len(g.Volatile()), time.Since(start))
	return results, nil
}
