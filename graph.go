package calc

import (
	"strings"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/xuri/efp"
)

// DependencyNode is a formula cell in the dependency graph
type DependencyNode struct {
	Ref     CellReference
	Formula string

	// Precedents are the formula cells this cell reads, directly or through
	// a range; Dependents the formula cells reading this one
	Precedents map[cellKey]*DependencyNode
	Dependents map[cellKey]*DependencyNode

	// Ranges lists every range operand, single cells included
	Ranges []Range

	// Volatile cells call a function such as NOW or RAND
	Volatile bool
}

// DependencyGraph links the formula cells of a workbook. it is a snapshot:
// changing the workbook afterwards needs a new graph.
type DependencyGraph struct {
	nodes   *orderedmap.OrderedMap[cellKey, *DependencyNode]
	bySheet map[string][]*DependencyNode
}

// BuildGraph extracts the precedents of every formula cell. references are
// found with the efp tokenizer; names resolve through the workbook.
// function names are checked against registry (the built-ins when nil) to
// flag volatile cells.
func BuildGraph(wb *Workbook, registry *Registry) *DependencyGraph {
	if registry == nil {
		registry = sharedDefaultRegistry()
	}
	g := &DependencyGraph{
		nodes:   orderedmap.NewOrderedMap[cellKey, *DependencyNode](),
		bySheet: make(map[string][]*DependencyNode),
	}

	for ref := range wb.Formulas() {
		_, formula, _ := wb.Cell(ref)
		node := &DependencyNode{
			Ref:        ref,
			Formula:    formula,
			Precedents: make(map[cellKey]*DependencyNode),
			Dependents: make(map[cellKey]*DependencyNode),
		}
		node.Ranges, node.Volatile = operands(wb, registry, ref.Sheet, formula)
		g.nodes.Set(ref.key(), node)
		sheetKey := asciiUpper(ref.Sheet)
		g.bySheet[sheetKey] = append(g.bySheet[sheetKey], node)
	}

	for node := range g.nodes.Values() {
		for _, r := range node.Ranges {
			for _, precedent := range g.formulasIn(r) {
				g.addDependency(node, precedent)
			}
		}
	}
	return g
}

// operands tokenizes formula and returns its range operands qualified by
// sheet, plus whether it calls a volatile function
func operands(wb *Workbook, registry *Registry, sheet, formula string) ([]Range, bool) {
	ps := efp.ExcelParser()
	var ranges []Range
	volatile := false
	for _, token := range ps.Parse(formula) {
		if token.TType == efp.TokenTypeFunction && token.TSubType == efp.TokenSubTypeStart {
			if desc, errv := registry.Resolve(token.TValue); errv == nil && desc.Volatile {
				volatile = true
			}
			continue
		}
		if token.TType != efp.TokenTypeOperand || token.TSubType != efp.TokenSubTypeRange {
			continue
		}
		r, err := ParseRange(token.TValue)
		if err != nil {
			// not an address, so it may be a named range
			named, ok := wb.Name(strings.TrimSpace(token.TValue))
			if !ok {
				continue
			}
			r = named
		}
		if r.Start.Sheet == "" {
			r = r.WithSheet(sheet)
		} else if canonical, ok := wb.Sheet(r.Start.Sheet); ok {
			r.Start.Sheet, r.End.Sheet = canonical, canonical
		} else {
			continue
		}
		ranges = append(ranges, r)
	}
	return ranges, volatile
}

// formulasIn lists the formula cells inside r
func (g *DependencyGraph) formulasIn(r Range) []*DependencyNode {
	candidates := g.bySheet[asciiUpper(r.Start.Sheet)]
	var found []*DependencyNode
	if r.Rows()*r.Cols() < len(candidates) {
		for ref := range r.Cells() {
			if node, ok := g.nodes.Get(ref.key()); ok {
				found = append(found, node)
			}
		}
		return found
	}
	for _, node := range candidates {
		if r.Contains(node.Ref) {
			found = append(found, node)
		}
	}
	return found
}

func (g *DependencyGraph) addDependency(from, to *DependencyNode) {
	from.Precedents[to.Ref.key()] = to
	to.Dependents[from.Ref.key()] = from
}

// Node returns the graph node of a formula cell
func (g *DependencyGraph) Node(ref CellReference) (*DependencyNode, bool) {
	return g.nodes.Get(ref.key())
}

func (g *DependencyGraph) Len() int {
	return g.nodes.Len()
}

// Levels groups the formula cells so that every cell only depends on cells
// of earlier levels. cells in or behind a cycle are left out and returned
// as blocked, in workbook order.
func (g *DependencyGraph) Levels() (levels [][]CellReference, blocked []CellReference) {
	indegree := make(map[cellKey]int, g.nodes.Len())
	var current []*DependencyNode
	for key, node := range g.nodes.AllFromFront() {
		indegree[key] = len(node.Precedents)
		if indegree[key] == 0 {
			current = append(current, node)
		}
	}

	done := 0
	for len(current) > 0 {
		level := make([]CellReference, len(current))
		var next []*DependencyNode
		for i, node := range current {
			level[i] = node.Ref
			for key, dependent := range node.Dependents {
				indegree[key]--
				if indegree[key] == 0 {
					next = append(next, dependent)
				}
			}
		}
		done += len(current)
		levels = append(levels, level)
		current = g.inWorkbookOrder(next)
	}

	if done < g.nodes.Len() {
		for key, node := range g.nodes.AllFromFront() {
			if indegree[key] > 0 {
				blocked = append(blocked, node.Ref)
			}
		}
	}
	return levels, blocked
}

// inWorkbookOrder sorts nodes by their position in the graph, which keeps
// levels deterministic despite map iteration
func (g *DependencyGraph) inWorkbookOrder(nodes []*DependencyNode) []*DependencyNode {
	if len(nodes) < 2 {
		return nodes
	}
	want := make(map[cellKey]bool, len(nodes))
	for _, n := range nodes {
		want[n.Ref.key()] = true
	}
	ordered := make([]*DependencyNode, 0, len(nodes))
	for key, node := range g.nodes.AllFromFront() {
		if want[key] {
			ordered = append(ordered, node)
		}
	}
	return ordered
}

// Cycles returns the groups of formula cells that reference each other in
// a loop, using Tarjan's strongly connected components
func (g *DependencyGraph) Cycles() [][]CellReference {
	index := 0
	indices := map[cellKey]int{}
	lowlink := map[cellKey]int{}
	onStack := map[cellKey]bool{}
	var stack []*DependencyNode
	var cycles [][]CellReference

	var connect func(n *DependencyNode)
	connect = func(n *DependencyNode) {
		key := n.Ref.key()
		indices[key], lowlink[key] = index, index
		index++
		stack = append(stack, n)
		onStack[key] = true

		for pKey, p := range n.Precedents {
			if _, seen := indices[pKey]; !seen {
				connect(p)
				lowlink[key] = min(lowlink[key], lowlink[pKey])
			} else if onStack[pKey] {
				lowlink[key] = min(lowlink[key], indices[pKey])
			}
		}

		if lowlink[key] != indices[key] {
			return
		}
		var component []*DependencyNode
		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top.Ref.key()] = false
			component = append(component, top)
			if top == n {
				break
			}
		}
		_, selfLoop := n.Precedents[key]
		if len(component) > 1 || selfLoop {
			component = g.inWorkbookOrder(component)
			refs := make([]CellReference, len(component))
			for i, c := range component {
				refs[i] = c.Ref
			}
			cycles = append(cycles, refs)
		}
	}

	for key, node := range g.nodes.AllFromFront() {
		if _, seen := indices[key]; !seen {
			connect(node)
		}
	}
	return cycles
}

// Affected returns the formula cells that must be recalculated when ref
// changes, in workbook order. ref itself is not included.
func (g *DependencyGraph) Affected(ref CellReference) []CellReference {
	seen := map[cellKey]bool{}
	var visit func(n *DependencyNode)
	visit = func(n *DependencyNode) {
		for key, d := range n.Dependents {
			if !seen[key] {
				seen[key] = true
				visit(d)
			}
		}
	}

	// a plain value cell has no node; its readers are found by range
	if node, ok := g.Node(ref); ok {
		visit(node)
	} else {
		for _, node := range g.bySheet[asciiUpper(ref.Sheet)] {
			for _, r := range node.Ranges {
				if r.Contains(ref) && !seen[node.Ref.key()] {
					seen[node.Ref.key()] = true
					visit(node)
				}
			}
		}
	}

	var out []CellReference
	for key, node := range g.nodes.AllFromFront() {
		if seen[key] && key != ref.key() {
			out = append(out, node.Ref)
		}
	}
	return out
}

// Volatile lists the cells calling volatile functions, in workbook order
func (g *DependencyGraph) Volatile() []CellReference {
	var out []CellReference
	for node := range g.nodes.Values() {
		if node.Volatile {
			out = append(out, node.Ref)
		}
	}
	return out
}
