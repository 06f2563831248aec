package document

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// CSVDocument is the addressable view over a tabular document with a
// header row. Paths are column names; resolving a column returns the
// value from every data row as a multi-value.
type CSVDocument struct {
	columns   []string
	index     map[string]int
	rows      [][]string
	signature Signature
}

// NewCSV parses raw CSV bytes. A document without a header row is not
// addressable.
func NewCSV(raw []byte) (*CSVDocument, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.TrimLeadingSpace = true
	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("%w: malformed csv: %v", ErrUnaddressable, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: empty csv", ErrUnaddressable)
	}

	columns := records[0]
	index := make(map[string]int, len(columns))
	h := xxhash.New()
	for i, c := range columns {
		c = strings.TrimSpace(c)
		columns[i] = c
		index[c] = i
		// The header row is the tabular structure; data rows are content.
		h.WriteString(c)
		h.Write([]byte{'\x1f'})
	}
	return &CSVDocument{
		columns:   columns,
		index:     index,
		rows:      records[1:],
		signature: Signature(h.Sum64()),
	}, nil
}

// Columns returns the header row.
func (d *CSVDocument) Columns() []string {
	return d.columns
}

// RowCount returns the number of data rows.
func (d *CSVDocument) RowCount() int {
	return len(d.rows)
}

// Resolve returns the named column's value from every data row. Rows too
// short to carry the column contribute nothing.
func (d *CSVDocument) Resolve(path string) (Value, bool) {
	col, ok := d.index[path]
	if !ok {
		return Value{}, false
	}
	var raw []string
	for _, row := range d.rows {
		if col < len(row) {
			raw = append(raw, strings.TrimSpace(row[col]))
		}
	}
	if len(raw) == 0 {
		return Value{}, false
	}
	return Value{raw: raw}, true
}

// Exists reports whether the column is present in the header.
func (d *CSVDocument) Exists(path string) bool {
	_, ok := d.index[path]
	return ok
}

// Count returns the number of data rows carrying the column.
func (d *CSVDocument) Count(path string) int {
	col, ok := d.index[path]
	if !ok {
		return 0
	}
	n := 0
	for _, row := range d.rows {
		if col < len(row) {
			n++
		}
	}
	return n
}

// LeafPaths returns the column names; for tabular documents every column
// is a leaf.
func (d *CSVDocument) LeafPaths() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// Root returns ""; tabular documents have no named root container.
func (d *CSVDocument) Root() string {
	return ""
}

// Signature returns the header-row hash.
func (d *CSVDocument) Signature() Signature {
	return d.signature
}

// Format reports FormatCSV.
func (d *CSVDocument) Format() Format {
	return FormatCSV
}
