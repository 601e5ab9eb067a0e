package model

import (
	"math"
	"strconv"
	"strings"
)

// Cell is one spreadsheet value as delivered by the reader: text, number or empty.
type Cell struct {
	Text    string
	Number  float64
	Numeric bool
}

// TextCell builds a cell from raw text. Numeric text is recognised so that
// header scoring and barcode repair see the same value a spreadsheet would.
func TextCell(s string) Cell {
	s = strings.TrimSpace(s)
	if s == "" {
		return Cell{}
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
		return Cell{Text: s, Number: f, Numeric: true}
	}
	return Cell{Text: s}
}

// NumberCell builds a numeric cell.
func NumberCell(f float64) Cell {
	return Cell{Text: strconv.FormatFloat(f, 'f', -1, 64), Number: f, Numeric: true}
}

func (c Cell) IsEmpty() bool {
	return !c.Numeric && strings.TrimSpace(c.Text) == ""
}

func (c Cell) String() string {
	if c.Numeric {
		return strconv.FormatFloat(c.Number, 'f', -1, 64)
	}
	return strings.TrimSpace(c.Text)
}

// RawRow keeps column order: Values[i] belongs to Table.Labels[i].
type RawRow struct {
	Index  int
	Values []Cell
}

// Get returns the cell at column position i, or an empty cell.
func (r RawRow) Get(i int) Cell {
	if i < 0 || i >= len(r.Values) {
		return Cell{}
	}
	return r.Values[i]
}

// Table is a raw table with its header row applied. Labels may contain
// generated placeholders (Col_3) where the source had no header text.
type Table struct {
	Labels []string
	Rows   []RawRow
}

// Column returns the position of label, or -1.
func (t *Table) Column(label string) int {
	for i, l := range t.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Canonical fields resolved by the column mapper.
const (
	FieldBarcode       = "barcode"
	FieldName          = "name"
	FieldSpecification = "specification"
	FieldQuantity      = "quantity"
	FieldUnit          = "unit"
	FieldPrice         = "price"
	FieldAmount        = "amount"
	FieldGiftQuantity  = "gift_quantity"
)

// CanonicalFields is the mapping order. Barcode comes first because it is
// the only mandatory field.
var CanonicalFields = []string{
	FieldBarcode,
	FieldName,
	FieldSpecification,
	FieldQuantity,
	FieldUnit,
	FieldPrice,
	FieldAmount,
	FieldGiftQuantity,
}

// ColumnMap maps a canonical field to the actual column label of one table.
type ColumnMap map[string]string

// Has reports whether field was mapped.
func (m ColumnMap) Has(field string) bool {
	_, ok := m[field]
	return ok
}
