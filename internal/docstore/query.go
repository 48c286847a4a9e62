package docstore

import (
	"reflect"
	"sort"
	"strings"
	"time"
)

// Op is a query filter operator
type Op string

const (
	OpEqual          Op = "=="
	OpLess           Op = "<"
	OpLessOrEqual    Op = "<="
	OpGreater        Op = ">"
	OpGreaterOrEqual Op = ">="
	OpArrayContains  Op = "array-contains"
)

// Direction is a sort direction
type Direction int

const (
	Asc Direction = iota
	Desc
)

type filter struct {
	field string
	op    Op
	value any
}

type order struct {
	field string
	dir   Direction
}

// Query selects documents of a single collection. Query values are
// immutable; every builder method returns a copy.
type Query struct {
	collection string
	filters    []filter
	orders     []order
	limit      int
}

// NewQuery returns a query over every document of collection
func NewQuery(collection string) Query {
	return Query{collection: collection}
}

// Collection returns the collection path the query reads
func (q Query) Collection() string { return q.collection }

// Where adds a filter. Documents missing the field never match.
func (q Query) Where(field string, op Op, value any) Query {
	q.filters = append(append([]filter(nil), q.filters...), filter{field: field, op: op, value: normalizeValue(value)})
	return q
}

// OrderBy adds a sort key. Documents missing an order field are excluded.
func (q Query) OrderBy(field string, dir Direction) Query {
	q.orders = append(append([]order(nil), q.orders...), order{field: field, dir: dir})
	return q
}

// Limit caps the number of results; 0 means unlimited
func (q Query) Limit(n int) Query {
	q.limit = n
	return q
}

// apply filters, orders and limits docs. The input slice is not modified.
func (q Query) apply(docs []*Document) []*Document {
	out := make([]*Document, 0, len(docs))
	for _, d := range docs {
		if q.matches(d) {
			out = append(out, d)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		for _, o := range q.orders {
			c, ok := compareValues(out[i].Fields[o.field], out[j].Fields[o.field])
			if !ok || c == 0 {
				continue
			}
			if o.dir == Desc {
				return c > 0
			}
			return c < 0
		}
		return out[i].ID < out[j].ID
	})

	if q.limit > 0 && len(out) > q.limit {
		out = out[:q.limit]
	}
	return out
}

func (q Query) matches(d *Document) bool {
	for _, o := range q.orders {
		if _, ok := d.Fields[o.field]; !ok {
			return false
		}
	}
	for _, f := range q.filters {
		v, ok := d.Fields[f.field]
		if !ok {
			return false
		}
		if !f.matches(v) {
			return false
		}
	}
	return true
}

func (f filter) matches(v any) bool {
	if f.op == OpArrayContains {
		arr, ok := v.([]any)
		if !ok {
			return false
		}
		for _, elem := range arr {
			if valuesEqual(elem, f.value) {
				return true
			}
		}
		return false
	}

	if f.op == OpEqual {
		return valuesEqual(v, f.value)
	}

	c, ok := compareValues(v, f.value)
	if !ok {
		return false
	}
	switch f.op {
	case OpLess:
		return c < 0
	case OpLessOrEqual:
		return c <= 0
	case OpGreater:
		return c > 0
	case OpGreaterOrEqual:
		return c >= 0
	default:
		return false
	}
}

func valuesEqual(a, b any) bool {
	if c, ok := compareValues(a, b); ok {
		return c == 0
	}
	return reflect.DeepEqual(a, b)
}

// compareValues orders two normalized values of the same kind. Strings that
// both parse as RFC 3339 timestamps compare chronologically.
func compareValues(a, b any) (int, bool) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return 0, false
		}
		switch {
		case av < bv:
			return -1, true
		case av > bv:
			return 1, true
		default:
			return 0, true
		}
	case string:
		bv, ok := b.(string)
		if !ok {
			return 0, false
		}
		if at, aerr := time.Parse(time.RFC3339Nano, av); aerr == nil {
			if bt, berr := time.Parse(time.RFC3339Nano, bv); berr == nil {
				return at.Compare(bt), true
			}
		}
		return strings.Compare(av, bv), true
	case bool:
		bv, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case av == bv:
			return 0, true
		case !av:
			return -1, true
		default:
			return 1, true
		}
	default:
		return 0, false
	}
}
