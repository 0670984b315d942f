package dialect

import (
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dosco/reljin/core/internal/qcode"
)

// MongoDB translates the abstract filter grammar into MongoDB's
// native query representation. The builder is stateless; every
// method is a pure translation with no side effects.
type MongoDB struct{}

// FindOptions carries the non-filter parts of a query in the
// store's native form.
type FindOptions struct {
	Sort  bson.D
	Skip  int64
	Limit int64
}

// BuildFilterQuery translates a filter expression tree into a
// MongoDB match document. A nil or empty filter matches all.
func (d MongoDB) BuildFilterQuery(filter *qcode.Exp) (bson.M, error) {
	if filter == nil {
		return bson.M{}, nil
	}
	return d.buildExp(filter)
}

// BuildIDFilterQuery returns a match document for a single document
// id, AND-merged with an optional filter.
func (d MongoDB) BuildIDFilterQuery(id any, filter *qcode.Exp) (bson.M, error) {
	fq, err := d.BuildFilterQuery(filter)
	if err != nil {
		return nil, err
	}
	return d.MergeFilters(bson.M{"_id": id}, fq), nil
}

// BuildIDInFilterQuery returns a match document for a set of
// document ids, AND-merged with an optional filter.
func (d MongoDB) BuildIDInFilterQuery(ids []any, filter *qcode.Exp) (bson.M, error) {
	fq, err := d.BuildFilterQuery(filter)
	if err != nil {
		return nil, err
	}
	return d.MergeFilters(bson.M{"_id": bson.M{"$in": ids}}, fq), nil
}

// BuildQuery translates a full query into a match document plus
// native sort/skip/limit options.
func (d MongoDB) BuildQuery(q *qcode.Query) (bson.M, *FindOptions, error) {
	if q == nil {
		return bson.M{}, &FindOptions{}, nil
	}
	fq, err := d.BuildFilterQuery(q.Filter)
	if err != nil {
		return nil, nil, err
	}
	opts := &FindOptions{Skip: q.Skip, Limit: q.Limit}
	for _, ob := range q.Sort {
		dir := 1
		if ob.Dir == qcode.OrderDesc {
			dir = -1
		}
		opts.Sort = append(opts.Sort, bson.E{Key: ob.Field, Value: dir})
	}
	return fq, opts, nil
}

// BuildAggregateQuery translates an aggregate spec scoped by a
// match document into an aggregation pipeline: a $match stage
// followed by a single-bucket $group stage.
func (d MongoDB) BuildAggregateQuery(aq *qcode.AggregateQuery, match bson.M) ([]bson.M, error) {
	if aq.IsEmpty() {
		return nil, fmt.Errorf("empty aggregate query")
	}
	group := bson.M{"_id": nil}
	for _, f := range aq.Count {
		group[GroupKey("count", f)] = bson.M{"$sum": 1}
	}
	for _, f := range aq.Sum {
		group[GroupKey("sum", f)] = bson.M{"$sum": "$" + f}
	}
	for _, f := range aq.Avg {
		group[GroupKey("avg", f)] = bson.M{"$avg": "$" + f}
	}
	for _, f := range aq.Min {
		group[GroupKey("min", f)] = bson.M{"$min": "$" + f}
	}
	for _, f := range aq.Max {
		group[GroupKey("max", f)] = bson.M{"$max": "$" + f}
	}
	if match == nil {
		match = bson.M{}
	}
	return []bson.M{{"$match": match}, {"$group": group}}, nil
}

// MergeFilters AND-combines two match documents. An empty operand
// collapses to the other.
func (d MongoDB) MergeFilters(a, b bson.M) bson.M {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}
	return bson.M{"$and": []bson.M{a, b}}
}

// GroupKey returns the $group stage key for one aggregate
// operation on one field, e.g. "sum_price". The aggregate response
// builder parses these keys back.
func GroupKey(op, field string) string {
	return op + "_" + field
}

func (d MongoDB) buildExp(ex *qcode.Exp) (bson.M, error) {
	switch ex.Op {
	case qcode.OpAnd, qcode.OpOr:
		conds := make([]bson.M, 0, len(ex.Children))
		for _, c := range ex.Children {
			cq, err := d.buildExp(c)
			if err != nil {
				return nil, err
			}
			conds = append(conds, cq)
		}
		key := "$and"
		if ex.Op == qcode.OpOr {
			key = "$or"
		}
		return bson.M{key: conds}, nil

	case qcode.OpNot:
		if len(ex.Children) != 1 {
			return nil, fmt.Errorf("not: expected one child, got %d", len(ex.Children))
		}
		cq, err := d.buildExp(ex.Children[0])
		if err != nil {
			return nil, err
		}
		return bson.M{"$nor": []bson.M{cq}}, nil
	}
	return d.buildComparison(ex)
}

func (d MongoDB) buildComparison(ex *qcode.Exp) (bson.M, error) {
	if ex.Field == "" {
		return nil, fmt.Errorf("comparison %s: missing field", ex.Op)
	}

	switch ex.Op {
	case qcode.OpEquals:
		return bson.M{ex.Field: bson.M{"$eq": ex.Val}}, nil
	case qcode.OpNotEquals:
		return bson.M{ex.Field: bson.M{"$ne": ex.Val}}, nil
	case qcode.OpGreaterThan:
		return bson.M{ex.Field: bson.M{"$gt": ex.Val}}, nil
	case qcode.OpGreaterOrEquals:
		return bson.M{ex.Field: bson.M{"$gte": ex.Val}}, nil
	case qcode.OpLesserThan:
		return bson.M{ex.Field: bson.M{"$lt": ex.Val}}, nil
	case qcode.OpLesserOrEquals:
		return bson.M{ex.Field: bson.M{"$lte": ex.Val}}, nil
	case qcode.OpIn:
		return bson.M{ex.Field: bson.M{"$in": toSlice(ex.Val)}}, nil
	case qcode.OpNotIn:
		return bson.M{ex.Field: bson.M{"$nin": toSlice(ex.Val)}}, nil
	case qcode.OpLike:
		// SQL-style like translated to an anchored regex
		return bson.M{ex.Field: bson.M{"$regex": likeToRegex(ex.Val)}}, nil
	case qcode.OpRegex:
		return bson.M{ex.Field: bson.M{"$regex": ex.Val}}, nil
	case qcode.OpExists:
		want := true
		if b, ok := ex.Val.(bool); ok {
			want = b
		}
		return bson.M{ex.Field: bson.M{"$exists": want}}, nil
	case qcode.OpIsNull:
		isNull := true
		if b, ok := ex.Val.(bool); ok {
			isNull = b
		}
		if isNull {
			return bson.M{ex.Field: bson.M{"$eq": nil}}, nil
		}
		return bson.M{ex.Field: bson.M{"$ne": nil}}, nil
	}
	return nil, fmt.Errorf("unsupported filter operator: %s", ex.Op)
}

func toSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out
	default:
		return []any{v}
	}
}

func likeToRegex(v any) string {
	s, ok := v.(string)
	if !ok {
		s = fmt.Sprintf("%v", v)
	}
	out := make([]rune, 0, len(s)+2)
	out = append(out, '^')
	for _, r := range s {
		switch r {
		case '%':
			out = append(out, '.', '*')
		case '_':
			out = append(out, '.')
		case '.', '+', '*', '?', '(', ')', '[', ']', '{', '}', '^', '$', '\\', '|':
			out = append(out, '\\', r)
		default:
			out = append(out, r)
		}
	}
	out = append(out, '$')
	return string(out)
}
