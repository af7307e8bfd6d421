// Package tabular flattens report rows with heterogeneous schemas into a
// single table. Rows are bound together with column-union semantics: the
// column set is the union of all row keys, missing cells stay nil.
package tabular

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Table is a flattened report: one column list and one row of cells per
// input row. Cell order follows Columns.
type Table struct {
	Columns []string
	Rows    [][]any
}

// Flatten binds JSON object rows into a Table. Column order is first-seen
// across the rows, which keeps the common report columns in front.
func Flatten(rows []json.RawMessage) (*Table, error) {
	table := &Table{}
	index := map[string]int{} // column name -> position

	decoded := make([]map[string]any, len(rows))
	for i, raw := range rows {
		var row map[string]any
		if err := json.Unmarshal(raw, &row); err != nil {
			return nil, fmt.Errorf("flatten row %d: %w", i, err)
		}
		decoded[i] = row

		// json.Unmarshal gives unordered keys; recover a stable order by
		// scanning the raw object token stream.
		keys, err := objectKeys(raw)
		if err != nil {
			return nil, fmt.Errorf("flatten row %d: %w", i, err)
		}
		for _, k := range keys {
			if _, ok := index[k]; !ok {
				index[k] = len(table.Columns)
				table.Columns = append(table.Columns, k)
			}
		}
	}

	table.Rows = make([][]any, len(decoded))
	for i, row := range decoded {
		cells := make([]any, len(table.Columns))
		for k, v := range row {
			cells[index[k]] = v
		}
		table.Rows[i] = cells
	}
	return table, nil
}

// Column returns the values of one column, or nil if the column is unknown.
func (t *Table) Column(name string) []any {
	pos := -1
	for i, c := range t.Columns {
		if c == name {
			pos = i
			break
		}
	}
	if pos < 0 {
		return nil
	}
	values := make([]any, len(t.Rows))
	for i, row := range t.Rows {
		values[i] = row[pos]
	}
	return values
}

// objectKeys returns the top-level keys of a JSON object in document order.
func objectKeys(raw []byte) ([]string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("row is not a JSON object")
	}

	var keys []string
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in object", keyTok)
		}
		keys = append(keys, key)

		// Skip the value, whatever its shape.
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
	}
	return keys, nil
}
