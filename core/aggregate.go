package core

import (
	"fmt"
	"strings"
)

// AggregateResponse is the sparse result of an aggregate query; only
// maps for requested operations are populated.
type AggregateResponse struct {
	Count map[string]int64
	Sum   map[string]float64
	Avg   map[string]float64
	Min   map[string]any
	Max   map[string]any
}

// IsEmpty reports whether no operation produced a value.
func (ar AggregateResponse) IsEmpty() bool {
	return len(ar.Count) == 0 && len(ar.Sum) == 0 && len(ar.Avg) == 0 &&
		len(ar.Min) == 0 && len(ar.Max) == 0
}

// AggregateResultBuilder converts the raw single-bucket group row
// returned by the store into an AggregateResponse.
type AggregateResultBuilder interface {
	ConvertToAggregateResponse(row Document) (AggregateResponse, error)
}

// GroupRowBuilder is the default AggregateResultBuilder. It parses
// the op-prefixed keys ("count_x", "sum_x", ...) the query builder
// emits in the $group stage.
type GroupRowBuilder struct{}

func (GroupRowBuilder) ConvertToAggregateResponse(row Document) (AggregateResponse, error) {
	var ar AggregateResponse
	if row == nil {
		return ar, nil
	}

	for key, val := range row {
		if key == "_id" {
			continue
		}
		op, field, ok := strings.Cut(key, "_")
		if !ok {
			return ar, fmt.Errorf("aggregate row: unexpected key %q", key)
		}

		switch op {
		case "count":
			n, err := toInt64(val)
			if err != nil {
				return ar, fmt.Errorf("aggregate row %q: %w", key, err)
			}
			if ar.Count == nil {
				ar.Count = make(map[string]int64)
			}
			ar.Count[field] = n
		case "sum", "avg":
			f, err := toFloat64(val)
			if err != nil {
				return ar, fmt.Errorf("aggregate row %q: %w", key, err)
			}
			if op == "sum" {
				if ar.Sum == nil {
					ar.Sum = make(map[string]float64)
				}
				ar.Sum[field] = f
			} else {
				if ar.Avg == nil {
					ar.Avg = make(map[string]float64)
				}
				ar.Avg[field] = f
			}
		case "min":
			if ar.Min == nil {
				ar.Min = make(map[string]any)
			}
			ar.Min[field] = val
		case "max":
			if ar.Max == nil {
				ar.Max = make(map[string]any)
			}
			ar.Max[field] = val
		default:
			return ar, fmt.Errorf("aggregate row: unexpected key %q", key)
		}
	}
	return ar, nil
}

// BSON numbers decode as int32, int64 or float64 depending on how
// they were written.
func toInt64(v any) (int64, error) {
	switch t := v.(type) {
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case int64:
		return t, nil
	case float64:
		return int64(t), nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}

func toFloat64(v any) (float64, error) {
	switch t := v.(type) {
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case float64:
		return t, nil
	}
	return 0, fmt.Errorf("not a number: %T", v)
}
