package calc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorksheetStorage(t *testing.T) {
	ws := newWorksheet("Data", newStringTable())
	assert.Equal(t, "Data", ws.Name())

	require.NoError(t, ws.setValue(0, 0, Number(1.5)))
	require.NoError(t, ws.setValue(1, 0, Boolean(true)))
	require.NoError(t, ws.setValue(2, 0, Boolean(false)))
	require.NoError(t, ws.setValue(3, 0, Text("hello")))
	require.NoError(t, ws.setValue(4, 0, newError(ErrNA)))
	ws.setFormula(5, 0, "=A1*2")

	tests := []struct {
		row     int
		raw     Value
		formula string
	}{
		{0, Number(1.5), ""},
		{1, Boolean(true), ""},
		{2, Boolean(false), ""},
		{3, Text("hello"), ""},
		{4, newError(ErrNA), ""},
		{5, nil, "=A1*2"},
	}
	for _, tt := range tests {
		raw, formula, ok := ws.get(tt.row, 0)
		require.True(t, ok, "row %d", tt.row)
		assertValue(t, tt.raw, raw)
		assert.Equal(t, tt.formula, formula)
	}
	assert.Equal(t, 6, ws.Len())

	_, _, ok := ws.get(6, 0)
	assert.False(t, ok)
	_, _, ok = ws.get(70000, 300)
	assert.False(t, ok)
	assert.Len(t, ws.chunks, 1, "reads never allocate chunks")
}

func TestWorksheetChunks(t *testing.T) {
	ws := newWorksheet("Sheet1", newStringTable())
	corners := [][2]int{
		{0, 0},
		{chunkRows - 1, chunkCols - 1},
		{chunkRows, 0},
		{0, chunkCols},
		{MaxRows - 1, MaxColumns - 1},
	}
	for i, c := range corners {
		require.NoError(t, ws.setValue(c[0], c[1], Number(i)))
	}
	assert.Len(t, ws.chunks, 4)
	for i, c := range corners {
		raw, _, ok := ws.get(c[0], c[1])
		require.True(t, ok)
		assertValue(t, Number(i), raw)
	}

	var got []string
	for ref := range ws.cells(false) {
		got = append(got, ref.Address())
	}
	assert.Equal(t, []string{"A1", "IW1", "IV256", "A257", "XFD1048576"}, got)
}

func TestWorksheetClear(t *testing.T) {
	ws := newWorksheet("Sheet1", newStringTable())
	require.NoError(t, ws.setValue(0, 0, Number(1)))
	ws.setFormula(0, 1, "=A1")

	require.NoError(t, ws.setValue(0, 0, Empty{}))
	require.NoError(t, ws.setValue(0, 0, nil))
	assert.Equal(t, 1, ws.Len())

	var formulas []string
	for ref := range ws.cells(true) {
		formulas = append(formulas, ref.String())
	}
	assert.Equal(t, []string{"Sheet1!B1"}, formulas)

	// clearing a cell that was never set is a no-op
	require.NoError(t, ws.setValue(9, 9, Empty{}))
	assert.Equal(t, 1, ws.Len())

	err := ws.setValue(0, 0, Row(Number(1)))
	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, InvalidArgument, appErr.Code)
}

func TestStringTableRefCounts(t *testing.T) {
	st := newStringTable()
	ws := newWorksheet("Sheet1", st)

	// a shared formula expanded down a column is stored once
	for row := 0; row < 10; row++ {
		ws.setFormula(row, 1, "=SUM($A$1:$A$10)")
	}
	require.NoError(t, ws.setValue(0, 2, Text("=SUM($A$1:$A$10)")))
	assert.Equal(t, 1, st.count())

	for row := 0; row < 9; row++ {
		require.NoError(t, ws.setValue(row, 1, Empty{}))
	}
	assert.Equal(t, 1, st.count())
	require.NoError(t, ws.setValue(9, 1, Number(0)))
	assert.Equal(t, 1, st.count(), "the text cell still holds a reference")
	require.NoError(t, ws.setValue(0, 2, Text("other")))
	assert.Equal(t, 1, st.count())

	raw, _, _ := ws.get(0, 2)
	assertValue(t, Text("other"), raw)
}

func TestStringTable(t *testing.T) {
	st := newStringTable()
	a := st.intern("a")
	b := st.intern("b")
	assert.NotEqual(t, a, b)
	assert.NotZero(t, a)
	assert.Equal(t, a, st.intern("a"))
	assert.Equal(t, 2, st.count())

	s, ok := st.lookup(b)
	assert.True(t, ok)
	assert.Equal(t, "b", s)

	assert.False(t, st.release(a))
	assert.True(t, st.release(a))
	assert.False(t, st.release(a))
	_, ok = st.lookup(a)
	assert.False(t, ok)

	// ids are not reused
	assert.NotEqual(t, a, st.intern("a"))
}

func TestWorkbookRemoveSheetReleasesStrings(t *testing.T) {
	wb := NewWorkbook(ModeExcel)
	for _, name := range []string{"Keep", "Drop"} {
		_, err := wb.AddSheet(name)
		require.NoError(t, err)
	}
	require.NoError(t, wb.Set(MustParseCellReference("Keep!A1"), "shared"))
	require.NoError(t, wb.Set(MustParseCellReference("Drop!A1"), "shared"))
	require.NoError(t, wb.Set(MustParseCellReference("Drop!A2"), "=Keep!A1"))
	assert.Equal(t, 2, wb.strings.count())

	require.NoError(t, wb.RemoveSheet("Drop"))
	assert.Equal(t, 1, wb.strings.count())
	_, ok := wb.Worksheet("Drop")
	assert.False(t, ok)

	raw, _, ok := wb.Cell(MustParseCellReference("Keep!A1"))
	require.True(t, ok)
	assertValue(t, Text("shared"), raw)
}
