// Package grid lays printed text out on a fixed character grid.
package grid

import (
	"strings"
	"unicode/utf8"
)

// GetGridCoords converts a row-major cell index to column and row.
func GetGridCoords(index, cols int) (x, y int) {
	return index % cols, index / cols
}

// Text is a character grid fed through Write. '\n' moves to the next row,
// '\b' erases the previous cell. When the cursor passes the last row the
// grid scrolls up by one row.
type Text struct {
	Cols, Rows int
	cells      []rune
	cursor     int
}

func NewText(cols, rows int) *Text {
	return &Text{Cols: cols, Rows: rows, cells: make([]rune, cols*rows)}
}

func (t *Text) Write(p []byte) (int, error) {
	for i := 0; i < len(p); {
		r, size := utf8.DecodeRune(p[i:])
		i += size
		t.put(r)
	}
	return len(p), nil
}

func (t *Text) put(r rune) {
	switch r {
	case '\n':
		_, y := GetGridCoords(t.cursor, t.Cols)
		t.cursor = (y + 1) * t.Cols
	case '\b':
		if t.cursor > 0 {
			t.cursor--
			t.cells[t.cursor] = 0
		}
		return
	default:
		t.cells[t.cursor] = r
		t.cursor++
	}
	if t.cursor >= len(t.cells) {
		t.scroll()
	}
}

func (t *Text) scroll() {
	copy(t.cells, t.cells[t.Cols:])
	last := t.cells[len(t.cells)-t.Cols:]
	for i := range last {
		last[i] = 0
	}
	t.cursor -= t.Cols
}

// Cells returns the grid contents in row-major order; empty cells are 0.
func (t *Text) Cells() []rune {
	return t.cells
}

// Clear empties the grid and homes the cursor.
func (t *Text) Clear() {
	for i := range t.cells {
		t.cells[i] = 0
	}
	t.cursor = 0
}

// String renders the non-empty rows, right-trimmed.
func (t *Text) String() string {
	var rows []string
	for y := 0; y < t.Rows; y++ {
		row := t.cells[y*t.Cols : (y+1)*t.Cols]
		line := strings.TrimRight(strings.Map(func(r rune) rune {
			if r == 0 {
				return ' '
			}
			return r
		}, string(row)), " ")
		rows = append(rows, line)
	}
	return strings.TrimRight(strings.Join(rows, "\n"), "\n")
}
