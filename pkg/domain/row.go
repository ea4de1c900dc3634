package domain

import "encoding/json"

// Row is one schemaless record as the hosted store returns it: a decoded
// JSON object keyed by column name. Values carry the JSON scalar types
// (string, float64, bool, nil) plus nested []any / map[string]any.
type Row = map[string]any

// EncodeRow marshals a typed value (struct or map) into a Row, normalizing
// every value to its JSON representation.
func EncodeRow(v any) (Row, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var row Row
	if err := json.Unmarshal(raw, &row); err != nil {
		return nil, err
	}
	return row, nil
}

// DecodeRow unmarshals a Row into a value of type T.
func DecodeRow[T any](row Row) (T, error) {
	var out T
	raw, err := json.Marshal(row)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, err
	}
	return out, nil
}

// CloneRow returns a deep copy of row. Mutating the copy never affects the
// original or any shared store state.
func CloneRow(row Row) Row {
	if row == nil {
		return nil
	}
	cloned, err := EncodeRow(row)
	if err != nil {
		// A Row decoded from JSON always re-marshals.
		panic("domain: clone row: " + err.Error())
	}
	return cloned
}

// RowID extracts the string id column of a row, or "" when absent.
func RowID(row Row) string {
	id, _ := row["id"].(string)
	return id
}
