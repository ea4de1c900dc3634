package domain

import "fmt"

// Filter matches rows whose columns equal every listed value. Values are
// compared by their JSON representation.
type Filter map[string]any

// Order sorts a result set by one column.
type Order struct {
	Field      string
	Descending bool
}

// Query is a declarative row query: a table, an optional equality filter,
// an optional ordering, and an optional limit. It replaces the untyped
// query-shaping callback of the hosted client with a value validated at
// construction.
type Query struct {
	Table  string
	Filter Filter
	Order  *Order
	Limit  int
}

// Validate reports whether the query is well formed.
func (q Query) Validate() error {
	if q.Table == "" {
		return fmt.Errorf("query: table required")
	}
	for field := range q.Filter {
		if field == "" {
			return fmt.Errorf("query: empty filter field on %s", q.Table)
		}
	}
	if q.Order != nil && q.Order.Field == "" {
		return fmt.Errorf("query: empty order field on %s", q.Table)
	}
	if q.Limit < 0 {
		return fmt.Errorf("query: negative limit on %s", q.Table)
	}
	return nil
}

// ByID builds the canonical single-row query for a table.
func ByID(table, id string) Query {
	return Query{Table: table, Filter: Filter{"id": id}}
}
