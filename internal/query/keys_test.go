package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"parts-inventory/internal/models"
)

func TestKeyHasPrefix(t *testing.T) {
	search := SearchKey(models.PartSearchParams{Name: "bolt"})

	assert.True(t, search.HasPrefix(PartsKey()))
	assert.True(t, PartsKey().HasPrefix(PartsKey()))
	assert.False(t, PartsKey().HasPrefix(search))
	assert.False(t, PartKey("1").HasPrefix(PartsKey()))
	assert.True(t, PartKey("1").HasPrefix(Key{"part"}))
}

func TestSearchKeyIsCanonical(t *testing.T) {
	a := SearchKey(models.PartSearchParams{Name: " bolt ", Side: "left"})
	b := SearchKey(models.PartSearchParams{Side: "LEFT", Name: "bolt", Aisle: ""})

	assert.True(t, a.Equal(b), "%s != %s", a, b)
	assert.False(t, a.Equal(SearchKey(models.PartSearchParams{Name: "nut"})))
}

func TestInvalidationsFor(t *testing.T) {
	tests := []struct {
		mutation Mutation
		id       models.ID
		want     []Key
	}{
		{MutationCreate, "", []Key{PartsKey()}},
		{MutationCreate, "9", []Key{PartsKey()}},
		{MutationUpdate, "7", []Key{PartsKey(), PartKey("7")}},
		{MutationDelete, "7", []Key{PartsKey(), PartKey("7")}},
		{Mutation("archive"), "7", nil},
	}
	for _, tt := range tests {
		t.Run(string(tt.mutation), func(t *testing.T) {
			assert.Equal(t, tt.want, InvalidationsFor(tt.mutation, tt.id))
		})
	}
}
