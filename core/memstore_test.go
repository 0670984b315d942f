package core

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/dosco/reljin/core/internal/sdata"
)

// memstore is an in-memory DocumentStore for the engine tests. It
// evaluates the match documents, updates and pipelines the engine
// generates, so scenarios can run hermetically end to end.
type memstore struct {
	mu          sync.Mutex
	collections map[string][]Document
	calls       map[string]int
}

func newMemstore() *memstore {
	return &memstore{
		collections: make(map[string][]Document),
		calls:       make(map[string]int),
	}
}

func (m *memstore) insert(collection string, docs ...Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.collections[collection] = append(m.collections[collection], deepCopy(d).(Document))
	}
}

// queries returns how many read operations hit a collection.
func (m *memstore) queries(collection string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for op, c := range m.calls {
		if strings.HasSuffix(op, ":"+collection) {
			n += c
		}
	}
	return n
}

func (m *memstore) totalCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

func (m *memstore) record(op, collection string) {
	m.calls[op+":"+collection]++
}

func (m *memstore) FindByID(ctx context.Context, collection string, id any) (Document, error) {
	return m.FindOne(ctx, collection, bson.M{"_id": id})
}

func (m *memstore) FindOne(ctx context.Context, collection string, filter bson.M) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("find_one", collection)

	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			return deepCopy(d).(Document), nil
		}
	}
	return nil, nil
}

func (m *memstore) Find(ctx context.Context, collection string, filter bson.M, opts *FindOptions) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("find", collection)

	var out []Document
	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			out = append(out, deepCopy(d).(Document))
		}
	}

	if opts != nil {
		sortDocs(out, opts.Sort)
		if opts.Skip > 0 {
			if opts.Skip >= int64(len(out)) {
				out = nil
			} else {
				out = out[opts.Skip:]
			}
		}
		if opts.Limit > 0 && int64(len(out)) > opts.Limit {
			out = out[:opts.Limit]
		}
	}
	return out, nil
}

func (m *memstore) Count(ctx context.Context, collection string, filter bson.M) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("count", collection)

	var n int64
	for _, d := range m.collections[collection] {
		if matches(d, filter) {
			n++
		}
	}
	return n, nil
}

func (m *memstore) Aggregate(ctx context.Context, collection string, pipeline []bson.M) ([]Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("aggregate", collection)

	if len(pipeline) != 2 {
		return nil, fmt.Errorf("memstore: unexpected pipeline length %d", len(pipeline))
	}
	match, _ := pipeline[0]["$match"].(bson.M)
	group, _ := pipeline[1]["$group"].(bson.M)

	var matched []Document
	for _, d := range m.collections[collection] {
		if matches(d, match) {
			matched = append(matched, d)
		}
	}
	if len(matched) == 0 {
		return nil, nil
	}

	row := Document{"_id": nil}
	for key, rawSpec := range group {
		if key == "_id" {
			continue
		}
		spec, ok := rawSpec.(bson.M)
		if !ok || len(spec) != 1 {
			return nil, fmt.Errorf("memstore: bad group spec for %s", key)
		}
		for op, arg := range spec {
			val, err := aggregateOp(matched, op, arg)
			if err != nil {
				return nil, err
			}
			row[key] = val
		}
	}
	return []Document{row}, nil
}

func (m *memstore) UpdateOne(ctx context.Context, collection string, filter bson.M, update bson.M) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("update_one", collection)

	for _, d := range m.collections[collection] {
		if !matches(d, filter) {
			continue
		}
		if err := applyUpdate(d, update); err != nil {
			return nil, err
		}
		return deepCopy(d).(Document), nil
	}
	return nil, nil
}

func applyUpdate(doc Document, update bson.M) error {
	for op, rawFields := range update {
		fields, ok := rawFields.(bson.M)
		if !ok {
			return fmt.Errorf("memstore: bad update op %s", op)
		}
		for field, arg := range fields {
			switch op {
			case "$set":
				doc[field] = arg
			case "$unset":
				delete(doc, field)
			case "$push":
				spec, ok := arg.(bson.M)
				if !ok {
					return fmt.Errorf("memstore: $push without $each")
				}
				cur := anySlice(doc[field])
				cur = append(cur, anySlice(spec["$each"])...)
				doc[field] = cur
			case "$pull":
				spec, ok := arg.(bson.M)
				if !ok {
					return fmt.Errorf("memstore: $pull without $in")
				}
				drop := anySlice(spec["$in"])
				var kept []any
				for _, v := range anySlice(doc[field]) {
					if !containsVal(drop, v) {
						kept = append(kept, v)
					}
				}
				doc[field] = kept
			default:
				return fmt.Errorf("memstore: unsupported update op %s", op)
			}
		}
	}
	return nil
}

func matches(doc Document, filter bson.M) bool {
	for key, cond := range filter {
		switch key {
		case "$and":
			for _, sub := range subFilters(cond) {
				if !matches(doc, sub) {
					return false
				}
			}
		case "$or":
			any := false
			for _, sub := range subFilters(cond) {
				if matches(doc, sub) {
					any = true
					break
				}
			}
			if !any {
				return false
			}
		case "$nor":
			for _, sub := range subFilters(cond) {
				if matches(doc, sub) {
					return false
				}
			}
		default:
			if !fieldMatches(doc, key, cond) {
				return false
			}
		}
	}
	return true
}

func fieldMatches(doc Document, field string, cond any) bool {
	val, ok := sdata.FieldValue(doc, field)

	ops, isOps := cond.(bson.M)
	if !isOps {
		return ok && equalVal(val, cond)
	}

	for op, arg := range ops {
		switch op {
		case "$eq":
			if !ok || !equalVal(val, arg) {
				return false
			}
		case "$ne":
			if ok && equalVal(val, arg) {
				return false
			}
		case "$in":
			if !ok || !containsVal(anySlice(arg), val) {
				return false
			}
		case "$nin":
			if ok && containsVal(anySlice(arg), val) {
				return false
			}
		case "$gt", "$gte", "$lt", "$lte":
			c, cok := compareVal(val, arg)
			if !ok || !cok {
				return false
			}
			switch op {
			case "$gt":
				if c <= 0 {
					return false
				}
			case "$gte":
				if c < 0 {
					return false
				}
			case "$lt":
				if c >= 0 {
					return false
				}
			case "$lte":
				if c > 0 {
					return false
				}
			}
		case "$regex":
			s, sok := val.(string)
			pat, pok := arg.(string)
			if !ok || !sok || !pok || !regexp.MustCompile(pat).MatchString(s) {
				return false
			}
		case "$exists":
			want, _ := arg.(bool)
			if ok != want {
				return false
			}
		default:
			return false
		}
	}
	return true
}

func subFilters(v any) []bson.M {
	switch t := v.(type) {
	case []bson.M:
		return t
	case []any:
		out := make([]bson.M, 0, len(t))
		for _, s := range t {
			if m, ok := s.(bson.M); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func aggregateOp(docs []Document, op string, arg any) (any, error) {
	// {$sum: 1} counts documents
	if op == "$sum" {
		if n, ok := arg.(int); ok {
			return int64(len(docs) * n), nil
		}
	}

	fieldRef, ok := arg.(string)
	if !ok || !strings.HasPrefix(fieldRef, "$") {
		return nil, fmt.Errorf("memstore: bad aggregate arg %v", arg)
	}
	field := fieldRef[1:]

	var vals []float64
	for _, d := range docs {
		if v, ok := sdata.FieldValue(d, field); ok && v != nil {
			f, err := toFloat64(v)
			if err != nil {
				return nil, err
			}
			vals = append(vals, f)
		}
	}
	if len(vals) == 0 {
		return nil, nil
	}

	switch op {
	case "$sum":
		var s float64
		for _, v := range vals {
			s += v
		}
		return s, nil
	case "$avg":
		var s float64
		for _, v := range vals {
			s += v
		}
		return s / float64(len(vals)), nil
	case "$min":
		mn := vals[0]
		for _, v := range vals[1:] {
			if v < mn {
				mn = v
			}
		}
		return mn, nil
	case "$max":
		mx := vals[0]
		for _, v := range vals[1:] {
			if v > mx {
				mx = v
			}
		}
		return mx, nil
	}
	return nil, fmt.Errorf("memstore: unsupported aggregate op %s", op)
}

func sortDocs(docs []Document, keys bson.D) {
	if len(keys) == 0 {
		return
	}
	sort.SliceStable(docs, func(i, j int) bool {
		for _, k := range keys {
			av, _ := sdata.FieldValue(docs[i], k.Key)
			bv, _ := sdata.FieldValue(docs[j], k.Key)
			c, ok := compareVal(av, bv)
			if !ok || c == 0 {
				continue
			}
			if dir, _ := k.Value.(int); dir < 0 {
				return c > 0
			}
			return c < 0
		}
		return false
	})
}

func equalVal(a, b any) bool {
	if c, ok := compareVal(a, b); ok {
		return c == 0
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func containsVal(list []any, v any) bool {
	for _, item := range list {
		if equalVal(item, v) {
			return true
		}
	}
	return false
}

// compareVal orders two scalars when both are numbers or both are
// strings.
func compareVal(a, b any) (int, bool) {
	af, aerr := toFloat64(a)
	bf, berr := toFloat64(b)
	if aerr == nil && berr == nil {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		}
		return 0, true
	}

	as, aok := a.(string)
	bs, bok := b.(string)
	if aok && bok {
		return strings.Compare(as, bs), true
	}
	return 0, false
}

func anySlice(v any) []any {
	switch t := v.(type) {
	case nil:
		return nil
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

func deepCopy(v any) any {
	switch t := v.(type) {
	case Document:
		out := make(Document, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = deepCopy(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = deepCopy(val)
		}
		return out
	default:
		return v
	}
}
