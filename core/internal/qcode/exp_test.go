package qcode

import "testing"

func TestAnd_NilCollapse(t *testing.T) {
	a := NewFilter("x", OpEquals, 1)
	b := NewFilter("y", OpEquals, 2)

	if got := And(nil, nil); got != nil {
		t.Errorf("And(nil, nil) = %v, want nil", got)
	}
	if got := And(a, nil); got != a {
		t.Errorf("And(a, nil) should collapse to a")
	}
	if got := And(nil, b); got != b {
		t.Errorf("And(nil, b) should collapse to b")
	}

	got := And(a, b)
	if got.Op != OpAnd || len(got.Children) != 2 {
		t.Errorf("And(a, b) = %+v", got)
	}
}

func TestExp_IsBool(t *testing.T) {
	if !NewAnd().IsBool() || !NewOr().IsBool() || !NewNot(nil).IsBool() {
		t.Errorf("boolean combinators should report IsBool")
	}
	if NewFilter("x", OpEquals, 1).IsBool() {
		t.Errorf("leaf comparison should not report IsBool")
	}
}

func TestExpOp_String(t *testing.T) {
	tests := []struct {
		op   ExpOp
		want string
	}{
		{OpAnd, "and"},
		{OpEquals, "eq"},
		{OpIn, "in"},
		{OpIsNull, "is_null"},
		{ExpOp(99), "op(99)"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.op, got, tt.want)
		}
	}
}

func TestAggregateQuery_IsEmpty(t *testing.T) {
	var aq *AggregateQuery
	if !aq.IsEmpty() {
		t.Errorf("nil query should be empty")
	}
	if !(&AggregateQuery{}).IsEmpty() {
		t.Errorf("zero query should be empty")
	}
	if (&AggregateQuery{Count: []string{"_id"}}).IsEmpty() {
		t.Errorf("count query should not be empty")
	}
}
