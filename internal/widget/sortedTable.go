package widget

import (
	"sort"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
)

// Row is a table row that can render itself and order itself against
// another row by column.
type Row interface {
	Columns() []string
	Less(other Row, column int) bool
}

type keyedRow struct {
	key  string
	data Row
}

// SortedTable wraps tview.Table with clickable, sortable column headers.
// Rows are addressed by a stable key rather than by index, so redraws
// keep the selection on the same row while the ordering changes.
type SortedTable struct {
	table       *tview.Table
	rows        []keyedRow
	curRow      int
	curKey      string
	sortColumn  int
	sortReverse bool
	columnAlign map[int]int

	selectionChangedFunc func(key string)
}

func NewSortedTable() *SortedTable {
	st := &SortedTable{
		table:       tview.NewTable(),
		columnAlign: make(map[int]int),
	}
	st.table.SetFixed(1, 0)
	st.table.InsertRow(0)
	st.table.SetSelectionChangedFunc(st.selectionChanged)
	return st
}

// tview.Primitive is implemented by proxying to the wrapped table.

func (st *SortedTable) Draw(screen tcell.Screen) {
	st.Redraw()
	st.table.Draw(screen)
}

func (st *SortedTable) GetRect() (int, int, int, int) {
	return st.table.GetRect()
}

func (st *SortedTable) SetRect(x, y, width, height int) {
	st.table.SetRect(x, y, width, height)
}

func (st *SortedTable) InputHandler() func(event *tcell.EventKey, setFocus func(p tview.Primitive)) {
	return st.table.InputHandler()
}

func (st *SortedTable) Focus(delegate func(p tview.Primitive)) {
	st.table.Focus(delegate)
}

func (st *SortedTable) HasFocus() bool {
	return st.table.HasFocus()
}

func (st *SortedTable) Blur() {
	st.table.Blur()
}

func (st *SortedTable) MouseHandler() func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
	return func(action tview.MouseAction, event *tcell.EventMouse, setFocus func(p tview.Primitive)) (consumed bool, capture tview.Primitive) {
		fn := st.table.MouseHandler()
		consumed, capture = fn(action, event, func(p tview.Primitive) {
			if p == st.table {
				p = st
			}
			setFocus(p)
		})
		if capture == st.table {
			capture = st
		}
		return consumed, capture
	}
}

func (st *SortedTable) SetSelectable(selectable bool) *SortedTable {
	st.table.SetSelectable(selectable, false)
	return st
}

func (st *SortedTable) SetBorder(show bool) *SortedTable {
	st.table.SetBorder(show)
	return st
}

func (st *SortedTable) SetTitleAlign(align int) *SortedTable {
	st.table.SetTitleAlign(align)
	return st
}

func (st *SortedTable) SetTitle(title string) *SortedTable {
	st.table.SetTitle(title)
	return st
}

func (st *SortedTable) SetSelectedStyle(style tcell.Style) *SortedTable {
	st.table.SetSelectedStyle(style)
	return st
}

func (st *SortedTable) SetSelectionChangedFunc(handler func(key string)) *SortedTable {
	st.selectionChangedFunc = handler
	return st
}

func (st *SortedTable) SetColumnAlign(col int, align int) *SortedTable {
	st.columnAlign[col] = align
	return st
}

func (st *SortedTable) selectionChanged(row, column int) {
	if row <= 0 {
		if st.curRow > 0 {
			st.table.Select(st.curRow, 0)
		}
		return
	}
	st.curRow = row
	if st.curKey != st.rows[row-1].key {
		st.curKey = st.rows[row-1].key
		if st.selectionChangedFunc != nil {
			st.selectionChangedFunc(st.curKey)
		}
	}
}

// SetHeaders installs the header row. Clicking a header sorts by that
// column, clicking it again reverses the order.
func (st *SortedTable) SetHeaders(headers ...string) *SortedTable {
	for colIndex := len(headers); colIndex < st.table.GetColumnCount(); colIndex++ {
		cell := st.table.GetCell(0, colIndex)
		cell.Text = ""
		cell.Clicked = nil
	}
	for c, h := range headers {
		cell := tview.NewTableCell(h)
		cell.NotSelectable = true
		cell.Clicked = st.sortByColumn(c)
		st.table.SetCell(0, c, cell)
	}
	return st
}

func (st *SortedTable) sortByColumn(col int) func() bool {
	return func() bool {
		if st.sortColumn == col {
			st.sortReverse = !st.sortReverse
		} else {
			st.sortColumn = col
			st.sortReverse = false
		}
		return true
	}
}

func (st *SortedTable) Keys() []string {
	keys := make([]string, 0, len(st.rows))
	for _, row := range st.rows {
		keys = append(keys, row.key)
	}
	return keys
}

func (st *SortedTable) SetRowData(key string, data Row) *SortedTable {
	for idx, row := range st.rows {
		if row.key == key {
			st.rows[idx].data = data
			return st
		}
	}
	st.rows = append(st.rows, keyedRow{key, data})
	return st
}

func (st *SortedTable) ClearRowData(key string) *SortedTable {
	kept := st.rows[:0]
	for _, row := range st.rows {
		if row.key != key {
			kept = append(kept, row)
		}
	}
	for i := len(kept); i < len(st.rows); i++ {
		st.rows[i] = keyedRow{}
	}
	st.rows = kept
	return st
}

func (st *SortedTable) GetSelection() string {
	if st.curRow > 0 && st.curRow <= len(st.rows) {
		return st.rows[st.curRow-1].key
	}
	return ""
}

func (st *SortedTable) Select(key string) *SortedTable {
	for row, value := range st.rows {
		if value.key == key {
			st.table.Select(row+1, 0)
			break
		}
	}
	return st
}

func (st *SortedTable) Redraw() {
	st.redrawHeaders()
	selectedKey := st.GetSelection()
	st.sortRows()
	st.updateCells()
	st.Select(selectedKey)
}

func (st *SortedTable) redrawHeaders() {
	for c := 0; c < st.table.GetColumnCount(); c++ {
		color := tcell.ColorYellow
		if c == st.sortColumn {
			color = tcell.ColorGreen
			if st.sortReverse {
				color = tcell.ColorRed
			}
		}
		st.table.GetCell(0, c).SetTextColor(color)
	}
}

func (st *SortedTable) sortRows() {
	sort.SliceStable(st.rows, func(row1, row2 int) bool {
		row1Value := st.rows[row1].data
		row2Value := st.rows[row2].data
		if row2Value == nil {
			return true
		}
		if row1Value == nil {
			return false
		}
		return row1Value.Less(row2Value, st.sortColumn) != st.sortReverse
	})
}

func (st *SortedTable) updateCells() {
	for rowIndex, row := range st.rows {
		strData := row.data.Columns()
		colIndex := 0
		for ; colIndex < len(strData); colIndex++ {
			cell := tview.NewTableCell(strData[colIndex])
			if align, ok := st.columnAlign[colIndex]; ok {
				cell.Align = align
			}
			st.table.SetCell(rowIndex+1, colIndex, cell)
		}
		for ; colIndex < st.table.GetColumnCount(); colIndex++ {
			st.table.SetCell(rowIndex+1, colIndex, tview.NewTableCell(""))
		}
	}
	for st.table.GetRowCount() > len(st.rows)+1 {
		st.table.RemoveRow(st.table.GetRowCount() - 1)
	}
}
