package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGroupRowBuilder(t *testing.T) {
	b := GroupRowBuilder{}

	ar, err := b.ConvertToAggregateResponse(Document{
		"_id":       nil,
		"count__id": int32(3),
		"sum_likes": int64(16),
		"avg_likes": 16.0 / 3,
		"min_likes": int32(3),
		"max_likes": int32(8),
	})
	require.NoError(t, err)

	assert.Equal(t, int64(3), ar.Count["_id"])
	assert.Equal(t, float64(16), ar.Sum["likes"])
	assert.InDelta(t, 16.0/3, ar.Avg["likes"], 1e-9)
	assert.Equal(t, int32(3), ar.Min["likes"])
	assert.Equal(t, int32(8), ar.Max["likes"])
	assert.False(t, ar.IsEmpty())
}

func TestGroupRowBuilder_NilRow(t *testing.T) {
	ar, err := GroupRowBuilder{}.ConvertToAggregateResponse(nil)
	require.NoError(t, err)
	assert.True(t, ar.IsEmpty())
}

func TestGroupRowBuilder_BadRow(t *testing.T) {
	b := GroupRowBuilder{}

	_, err := b.ConvertToAggregateResponse(Document{"likes": 1})
	assert.Error(t, err)

	_, err = b.ConvertToAggregateResponse(Document{"total_likes": 1})
	assert.Error(t, err)

	_, err = b.ConvertToAggregateResponse(Document{"count_likes": "three"})
	assert.Error(t, err)

	_, err = b.ConvertToAggregateResponse(Document{"sum_likes": "sixteen"})
	assert.Error(t, err)
}

func TestAggregateResponse_IsEmpty(t *testing.T) {
	assert.True(t, AggregateResponse{}.IsEmpty())
	assert.False(t, AggregateResponse{Min: map[string]any{"x": 1}}.IsEmpty())
}
