package calc

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type WorkbookTestCase struct {
	t        *testing.T
	name     string
	workbook *Workbook
	engine   *Engine
	results  *Results
	err      error
}

func NewWorkbookTestCase(t *testing.T, name string, opts ...Option) *WorkbookTestCase {
	wb := NewWorkbook(ModeExcel)
	engine, err := NewEngine(wb, opts...)
	if err != nil {
		t.Fatalf("%s: NewEngine failed: %v", name, err)
	}
	tc := &WorkbookTestCase{
		t:        t,
		name:     name,
		workbook: wb,
		engine:   engine,
	}
	return tc.AddSheet("Sheet1")
}

// ref parses an address, defaulting to Sheet1
func (tc *WorkbookTestCase) ref(address string) CellReference {
	ref, err := ParseCellReference(address)
	if err != nil {
		tc.t.Fatalf("%s: bad address %s: %v", tc.name, address, err)
	}
	if ref.Sheet == "" {
		ref.Sheet = "Sheet1"
	}
	return ref
}

func (tc *WorkbookTestCase) AddSheet(name string) *WorkbookTestCase {
	if tc.err != nil {
		return tc
	}
	_, tc.err = tc.workbook.AddSheet(name)
	return tc
}

// Set stores a string as user input and anything else as a raw value
func (tc *WorkbookTestCase) Set(address string, input any) *WorkbookTestCase {
	if tc.err != nil {
		return tc
	}
	if s, ok := input.(string); ok {
		tc.err = tc.workbook.Set(tc.ref(address), s)
	} else {
		tc.err = tc.workbook.SetValue(tc.ref(address), ValueOf(input))
	}
	return tc
}

func (tc *WorkbookTestCase) SetShared(master, template string, targets ...string) *WorkbookTestCase {
	if tc.err != nil {
		return tc
	}
	refs := make([]CellReference, len(targets))
	for i, target := range targets {
		refs[i] = tc.ref(target)
	}
	tc.err = tc.workbook.SetShared(SharedFormula{Master: tc.ref(master), Template: template}, refs...)
	return tc
}

func (tc *WorkbookTestCase) RemoveSheet(name string) *WorkbookTestCase {
	if tc.err != nil {
		return tc
	}
	tc.err = tc.workbook.RemoveSheet(name)
	return tc
}

func (tc *WorkbookTestCase) DefineName(name, rangeText string) *WorkbookTestCase {
	if tc.err != nil {
		return tc
	}
	r, err := ParseRange(rangeText)
	if err != nil {
		tc.err = err
		return tc
	}
	tc.err = tc.workbook.DefineName(name, r)
	return tc
}

func (tc *WorkbookTestCase) Run() *WorkbookTestCase {
	if tc.err != nil {
		tc.t.Errorf("%s: unexpected error before Recalculate: %v", tc.name, tc.err)
		return tc
	}
	tc.results, tc.err = tc.engine.Recalculate(context.Background(), tc.workbook)
	if tc.err != nil {
		tc.t.Errorf("%s: Recalculate() failed: %v", tc.name, tc.err)
	}
	return tc
}

func (tc *WorkbookTestCase) get(address string) (Value, bool) {
	if tc.results == nil {
		tc.t.Errorf("%s: Get(%s) before Run", tc.name, address)
		return nil, false
	}
	v, ok := tc.results.Get(tc.ref(address))
	if !ok {
		return Empty{}, true
	}
	return v, true
}

func (tc *WorkbookTestCase) AssertCellEq(address string, expected any) *WorkbookTestCase {
	actual, ok := tc.get(address)
	if !ok {
		return tc
	}
	want := ValueOf(expected)
	if !cmp.Equal(want, actual, valueComparer) {
		tc.t.Errorf("%s: Cell %s = %v, want %v", tc.name, address, FormatValue(actual), FormatValue(want))
	}
	return tc
}

func (tc *WorkbookTestCase) AssertCellEmpty(address string) *WorkbookTestCase {
	actual, ok := tc.get(address)
	if !ok {
		return tc
	}
	if _, blank := actual.(Empty); !blank {
		tc.t.Errorf("%s: Cell %s = %v, want empty", tc.name, address, FormatValue(actual))
	}
	return tc
}

func (tc *WorkbookTestCase) AssertCellErr(address string, kind ErrorKind) *WorkbookTestCase {
	actual, ok := tc.get(address)
	if !ok {
		return tc
	}
	if e, isErr := actual.(*ErrorValue); !isErr || e.Kind != kind {
		tc.t.Errorf("%s: Cell %s = %v, want error %v", tc.name, address, FormatValue(actual), kind)
	}
	return tc
}

func (tc *WorkbookTestCase) AssertCellFn(address string, fn func(t *testing.T, v Value)) *WorkbookTestCase {
	actual, ok := tc.get(address)
	if ok {
		fn(tc.t, actual)
	}
	return tc
}

func (tc *WorkbookTestCase) ExpectAppError(expectedCode AppErrorCode) *WorkbookTestCase {
	if tc.err == nil {
		tc.t.Errorf("%s: Expected error with code %v, but got no error", tc.name, expectedCode)
		return tc
	}
	var appErr *AppError
	if errors.As(tc.err, &appErr) {
		if appErr.Code != expectedCode {
			tc.t.Errorf("%s: Got error code %v, want %v", tc.name, appErr.Code, expectedCode)
		}
	} else {
		tc.t.Errorf("%s: Got error %v, want AppError with code %v", tc.name, tc.err, expectedCode)
	}
	tc.err = nil
	return tc
}

func (tc *WorkbookTestCase) End() {
}

func TestBinaryOperators(t *testing.T) {
	NewWorkbookTestCase(t, "Arithmetic").
		Set("A1", 10.0).
		Set("B1", 3.0).
		Set("C1", "=A1+B1").
		Set("C2", "=A1-B1").
		Set("C3", "=A1*B1").
		Set("C4", "=A1/B1").
		Set("C5", "=A1^B1").
		Set("C6", "=A1&B1").
		Set("C7", "=A1>B1").
		Set("C8", "=A1/0").
		Run().
		AssertCellEq("C1", 13.0).
		AssertCellEq("C2", 7.0).
		AssertCellEq("C3", 30.0).
		AssertCellEq("C4", 10.0/3).
		AssertCellEq("C5", 1000.0).
		AssertCellEq("C6", "103").
		AssertCellEq("C7", true).
		AssertCellErr("C8", ErrDiv0).
		End()

	NewWorkbookTestCase(t, "Text input").
		Set("A1", "42").
		Set("A2", "'quoted").
		Set("A3", "TRUE").
		Set("A4", "#DIV/0!").
		Set("A5", "=").
		Set("B1", "=A1*2").
		Set("B3", "=A3+1").
		Set("B4", "=ISERROR(A4)").
		Run().
		AssertCellEq("B1", 84.0).
		AssertCellEq("A3", true).
		AssertCellEq("B3", 2.0).
		AssertCellErr("A4", ErrDiv0).
		AssertCellEq("B4", true).
		AssertCellEq("A5", "=").
		End()
}

func TestCrossWorksheetReferences(t *testing.T) {
	t.Run("SimpleWorksheetReference", func(t *testing.T) {
		NewWorkbookTestCase(t, "Sheet reference").
			AddSheet("Data").
			Set("Data!A1", 42.0).
			Set("Sheet1!B1", "=Data!A1").
			Run().
			AssertCellEq("Sheet1!B1", 42.0).
			End()
	})

	t.Run("WorksheetReferenceChain", func(t *testing.T) {
		NewWorkbookTestCase(t, "Cross-sheet chain").
			AddSheet("Sheet2").
			AddSheet("Sheet3").
			Set("Sheet1!A1", 10.0).
			Set("Sheet2!A1", "=Sheet1!A1*2").
			Set("Sheet3!A1", "=Sheet2!A1*2").
			Run().
			AssertCellEq("Sheet3!A1", 40.0).
			End()
	})

	t.Run("QuotedSheetName", func(t *testing.T) {
		NewWorkbookTestCase(t, "Quoted sheet").
			AddSheet("My Data").
			Set("'My Data'!A1", 7.0).
			Set("B1", "='My Data'!A1+1").
			Run().
			AssertCellEq("B1", 8.0).
			End()
	})

	t.Run("RemoveWorksheetWithDependents", func(t *testing.T) {
		NewWorkbookTestCase(t, "Remove sheet with deps").
			AddSheet("Data").
			Set("Data!A1", 100.0).
			Set("Sheet1!B1", "=Data!A1").
			Run().
			AssertCellEq("Sheet1!B1", 100.0).
			RemoveSheet("data").
			Run().
			AssertCellErr("Sheet1!B1", ErrRef).
			RemoveSheet("Data").
			ExpectAppError(NotFound).
			End()
	})

	t.Run("MissingWorksheet", func(t *testing.T) {
		NewWorkbookTestCase(t, "Missing sheet").
			Set("B1", "=Gone!A1").
			Set("B2", "=B1+1").
			Run().
			AssertCellErr("B1", ErrRef).
			AssertCellErr("B2", ErrRef).
			End()
	})
}

func TestAdvancedCircularReferences(t *testing.T) {
	t.Run("TwoCellCircular", func(t *testing.T) {
		NewWorkbookTestCase(t, "Two cell circular").
			Set("A1", "=B1").
			Set("B1", "=A1").
			Set("C1", 5.0).
			Set("D1", "=C1*2").
			Run().
			AssertCellErr("A1", ErrCalc).
			AssertCellErr("B1", ErrCalc).
			AssertCellEq("D1", 10.0).
			End()
	})

	t.Run("ThreeCellCircular", func(t *testing.T) {
		NewWorkbookTestCase(t, "Three cell circular").
			Set("A1", "=C1").
			Set("B1", "=A1").
			Set("C1", "=B1").
			Run().
			AssertCellErr("A1", ErrCalc).
			AssertCellErr("B1", ErrCalc).
			AssertCellErr("C1", ErrCalc).
			End()
	})

	t.Run("CircularThroughRange", func(t *testing.T) {
		NewWorkbookTestCase(t, "Circular via range").
			Set("A1", "=SUM(A1:A3)").
			Run().
			AssertCellErr("A1", ErrCalc).
			End()
	})

	t.Run("IndirectCircularViaIF", func(t *testing.T) {
		NewWorkbookTestCase(t, "Circular via IF").
			Set("A1", "=IF(B1>0, B1, 0)").
			Set("B1", "=A1+1").
			Run().
			AssertCellErr("A1", ErrCalc).
			AssertCellErr("B1", ErrCalc).
			End()
	})

	t.Run("DependentOfCycle", func(t *testing.T) {
		NewWorkbookTestCase(t, "Behind a cycle").
			Set("A1", "=A2").
			Set("A2", "=A1").
			Set("B1", "=A1+1").
			Run().
			AssertCellErr("B1", ErrCalc).
			End()
	})

	t.Run("CrossSheetCircular", func(t *testing.T) {
		NewWorkbookTestCase(t, "Cycle across sheets").
			AddSheet("Other").
			Set("Sheet1!A1", "=Other!A1").
			Set("Other!A1", "=Sheet1!A1").
			Run().
			AssertCellErr("Sheet1!A1", ErrCalc).
			AssertCellErr("Other!A1", ErrCalc).
			End()
	})
}

func TestRangeEdgeCases(t *testing.T) {
	NewWorkbookTestCase(t, "Inverted range").
		Set("A1", 1.0).
		Set("A2", 2.0).
		Set("B1", 3.0).
		Set("B2", 4.0).
		Set("C1", "=SUM(B2:A1)").
		Set("C2", "=SUM(A1:A1)").
		Set("C3", "=SUM(D1:D9)").
		Set("C4", "=COUNT(A1:B2,D1:D9)").
		Run().
		AssertCellEq("C1", 10.0).
		AssertCellEq("C2", 1.0).
		AssertCellEq("C3", 0.0).
		AssertCellEq("C4", 4.0).
		End()

	NewWorkbookTestCase(t, "Formulas inside ranges").
		Set("A1", 1.0).
		Set("A2", "=A1+1").
		Set("A3", "=A2+1").
		Set("B1", "=SUM(A1:A3)").
		Set("B2", "=MAX(A1:A3)*B1").
		Run().
		AssertCellEq("B1", 6.0).
		AssertCellEq("B2", 18.0).
		End()
}

func TestWorkbookSheets(t *testing.T) {
	NewWorkbookTestCase(t, "Duplicate sheet").
		AddSheet("sheet1").
		ExpectAppError(AlreadyExists).
		AddSheet("").
		ExpectAppError(InvalidArgument).
		AddSheet("a/b").
		ExpectAppError(InvalidArgument).
		AddSheet("Other").
		Set("Nope!A1", 1.0).
		ExpectAppError(NotFound).
		End()

	wb := NewWorkbook(ModeGnumeric)
	assert.Equal(t, ModeGnumeric, wb.Mode())
	_, ok := wb.Worksheet("")
	assert.False(t, ok)

	for _, name := range []string{"First", "Second", "Third"} {
		_, err := wb.AddSheet(name)
		require.NoError(t, err)
	}
	first, ok := wb.Worksheet("")
	require.True(t, ok)
	assert.Equal(t, "First", first.Name())

	var names []string
	for ws := range wb.Worksheets() {
		names = append(names, ws.Name())
	}
	assert.Equal(t, []string{"First", "Second", "Third"}, names)

	canonical, ok := wb.Sheet("SECOND")
	assert.True(t, ok)
	assert.Equal(t, "Second", canonical)
}

func TestWorkbookSet(t *testing.T) {
	NewWorkbookTestCase(t, "Malformed formula").
		Set("A1", "=1+").
		ExpectAppError(InvalidArgument).
		Set("A1", "=ABS(1,2)").
		ExpectAppError(InvalidArgument).
		Set("A1", [][]any{{1, 2}}).
		ExpectAppError(InvalidArgument).
		End()

	wb := NewWorkbook(ModeExcel)
	_, err := wb.AddSheet("Sheet1")
	require.NoError(t, err)

	err = wb.Set(Cell(MaxColumns, 0), "1")
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, OutOfRange, appErr.Code)

	require.NoError(t, wb.Set(Cell(0, 0), "=1+1"))
	raw, formula, ok := wb.Cell(Cell(0, 0))
	assert.True(t, ok)
	assert.Nil(t, raw)
	assert.Equal(t, "=1+1", formula)

	// overwriting a formula with a value drops the formula
	require.NoError(t, wb.Set(Cell(0, 0), "2.5"))
	raw, formula, _ = wb.Cell(Cell(0, 0))
	assert.Equal(t, Number(2.5), raw)
	assert.Empty(t, formula)

	require.NoError(t, wb.SetValue(Cell(0, 0), Empty{}))
	_, _, ok = wb.Cell(Cell(0, 0))
	assert.False(t, ok)
}

func TestWorkbookIteration(t *testing.T) {
	wb := NewWorkbook(ModeExcel)
	for _, name := range []string{"S1", "S2"} {
		_, err := wb.AddSheet(name)
		require.NoError(t, err)
	}
	for _, input := range []struct{ addr, value string }{
		{"S2!A1", "=1"},
		{"S1!B2", "x"},
		{"S1!A2", "=2"},
		{"S1!C1", "3"},
	} {
		require.NoError(t, wb.Set(MustParseCellReference(input.addr), input.value))
	}

	var cells, formulas []string
	for ref := range wb.Cells() {
		cells = append(cells, ref.String())
	}
	for ref := range wb.Formulas() {
		formulas = append(formulas, ref.String())
	}
	assert.Equal(t, []string{"S1!C1", "S1!A2", "S1!B2", "S2!A1"}, cells)
	assert.Equal(t, []string{"S1!A2", "S2!A1"}, formulas)
}

func TestNamedRangesInFormulas(t *testing.T) {
	NewWorkbookTestCase(t, "Named range").
		AddSheet("Rates").
		Set("Rates!A1", 0.1).
		Set("Rates!A2", 0.2).
		Set("A1", 100.0).
		DefineName("Tax", "Rates!A1").
		DefineName("AllRates", "Rates!A1:A2").
		Set("B1", "=A1*Tax").
		Set("B2", "=SUM(AllRates)").
		Set("B3", "=Missing*2").
		Set("B4", "=Tax").
		Set("B5", "=ISNUMBER(Tax)").
		Set("B6", "=AllRates").
		Run().
		AssertCellEq("B1", 10.0).
		AssertCellEq("B2", 0.3).
		AssertCellErr("B3", ErrName).
		AssertCellEq("B4", 0.1).
		AssertCellEq("B5", true).
		AssertCellFn("B6", func(t *testing.T, v Value) {
			arr, ok := v.(*ArrayValue)
			require.True(t, ok, "got %v", v)
			assert.Equal(t, 2, arr.Rows())
			assert.Equal(t, 1, arr.Cols())
		}).
		End()

	NewWorkbookTestCase(t, "Invalid names").
		DefineName("A1", "A1:A2").
		ExpectAppError(InvalidArgument).
		DefineName("TRUE", "A1:A2").
		ExpectAppError(InvalidArgument).
		DefineName("two words", "A1:A2").
		ExpectAppError(InvalidArgument).
		DefineName("", "A1:A2").
		ExpectAppError(InvalidArgument).
		DefineName("Elsewhere", "Nope!A1:A2").
		ExpectAppError(NotFound).
		End()
}

func TestNamedRangeTable(t *testing.T) {
	table := NewNamedRangeTable()
	r, err := ParseRange("Sheet1!A1:B2")
	require.NoError(t, err)

	require.NoError(t, table.Define("Prices", r))
	require.NoError(t, table.Define("Costs", r))
	assert.Equal(t, 2, table.Len())

	// redefining keeps the first spelling
	moved, err := ParseRange("Sheet1!C1:C9")
	require.NoError(t, err)
	require.NoError(t, table.Define("PRICES", moved))
	got, ok := table.Lookup("prices")
	require.True(t, ok)
	assert.Equal(t, "Sheet1!C1:C9", got.String())

	var names []string
	for name := range table.All() {
		names = append(names, name)
	}
	assert.Equal(t, []string{"Prices", "Costs"}, names)

	unqualified, err := ParseRange("A1")
	require.NoError(t, err)
	assert.Error(t, table.Define("Loose", unqualified))

	assert.True(t, table.Undefine("costs"))
	assert.False(t, table.Undefine("costs"))
	_, ok = table.Lookup("Costs")
	assert.False(t, ok)
}

func TestSharedFormulaGroups(t *testing.T) {
	NewWorkbookTestCase(t, "Shared column").
		Set("A1", 1.0).
		Set("A2", 2.0).
		Set("A3", 3.0).
		SetShared("B1", "A1*10", "B2", "B3").
		SetShared("C1", "=SUM($A$1:A1)", "C2", "C3").
		Run().
		AssertCellEq("B1", 10.0).
		AssertCellEq("B2", 20.0).
		AssertCellEq("B3", 30.0).
		AssertCellEq("C3", 6.0).
		End()

	NewWorkbookTestCase(t, "Shared off grid").
		SetShared("B2", "=A1", "A1").
		Run().
		AssertCellErr("A1", ErrRef).
		End()

	NewWorkbookTestCase(t, "Shared malformed").
		SetShared("B1", "=A1+", "B2").
		ExpectAppError(InvalidArgument).
		End()

	wb := NewWorkbook(ModeExcel)
	_, err := wb.AddSheet("Sheet1")
	require.NoError(t, err)
	_, err = wb.AddSheet("Sheet2")
	require.NoError(t, err)
	shared := SharedFormula{Master: MustParseCellReference("Sheet2!A1"), Template: "=B1"}
	require.NoError(t, wb.SetShared(shared, MustParseCellReference("A2")))
	_, formula, ok := wb.Cell(MustParseCellReference("Sheet2!A2"))
	require.True(t, ok)
	assert.Equal(t, "=B2", formula)
}

func TestComplexRealWorldScenarios(t *testing.T) {
	t.Run("FinancialCalculation", func(t *testing.T) {
		NewWorkbookTestCase(t, "Financial calc").
			Set("A1", 1000.0).
			Set("A2", 0.05).
			Set("A3", 12.0).
			Set("B1", "=A1*(1+A2/A3)^(A3*2)").
			Run().
			AssertCellEq("B1", 1104.9413355583).
			End()
	})

	t.Run("ConditionalAggregation", func(t *testing.T) {
		NewWorkbookTestCase(t, "Conditional sum").
			Set("A1", 10.0).
			Set("A2", 20.0).
			Set("A3", 30.0).
			Set("A4", 40.0).
			Set("B1", "=IF(SUM(A1:A4)>50, AVERAGE(A1:A4), MAX(A1:A4))").
			Run().
			AssertCellEq("B1", 25.0).
			End()
	})

	t.Run("DataValidation", func(t *testing.T) {
		NewWorkbookTestCase(t, "Data validation").
			Set("A1", -5.0).
			Set("B1", `=IF(A1<0, "ERROR: Negative", IF(A1>100, "ERROR: Too large", "OK"))`).
			Run().
			AssertCellEq("B1", "ERROR: Negative").
			End()
	})

	t.Run("RollingCalculations", func(t *testing.T) {
		NewWorkbookTestCase(t, "Rolling calc").
			Set("A1", 10.0).
			Set("A2", 20.0).
			Set("A3", 30.0).
			Set("A4", 40.0).
			Set("A5", 50.0).
			Set("B3", "=AVERAGE(A1:A3)").
			Set("B4", "=AVERAGE(A2:A4)").
			Set("B5", "=AVERAGE(A3:A5)").
			Run().
			AssertCellEq("B3", 20.0).
			AssertCellEq("B4", 30.0).
			AssertCellEq("B5", 40.0).
			AssertCellEmpty("B1").
			AssertCellFn("A1", func(t *testing.T, v Value) {
				assert.Equal(t, KindNumber, v.ValueKind())
			}).
			End()
	})
}
