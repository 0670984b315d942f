package qcode

// OrderDirection is the sort direction for one sort key.
type OrderDirection int8

const (
	OrderAsc OrderDirection = iota
	OrderDesc
)

// OrderBy is a single sort directive. Order across keys is
// significant and must be preserved by the query builder.
type OrderBy struct {
	Field string
	Dir   OrderDirection
}

// Query is a filter plus sort and pagination directives. A nil
// Filter matches all documents. Limit zero means no limit.
type Query struct {
	Filter *Exp
	Sort   []OrderBy
	Skip   int64
	Limit  int64
}

// AggregateQuery is a declarative aggregation spec. Each list names
// the fields a given operation is requested for; empty lists mean
// the operation was not requested. The response is sparse in the
// same way.
type AggregateQuery struct {
	Count []string
	Sum   []string
	Avg   []string
	Min   []string
	Max   []string
}

// IsEmpty reports whether no aggregation was requested.
func (aq *AggregateQuery) IsEmpty() bool {
	if aq == nil {
		return true
	}
	return len(aq.Count) == 0 && len(aq.Sum) == 0 && len(aq.Avg) == 0 &&
		len(aq.Min) == 0 && len(aq.Max) == 0
}
