package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func TestSearchPartToPart(t *testing.T) {
	tests := []struct {
		name string
		in   SearchPart
	}{
		{"left side", SearchPart{ID: "1", Name: "Bolt", SKU: "B-1", Quantity: 4, Aisle: 3, Side: "LEFT", Level: 2}},
		{"right side high level", SearchPart{ID: "2", Name: "Nut", SKU: "N-9", Quantity: 0, Aisle: 12, Side: "RIGHT", Level: 7}},
		{"side passes through verbatim", SearchPart{ID: "3", Name: "Washer", SKU: "W", Aisle: 1, Side: "left", Level: 1}},
		{"zero location", SearchPart{ID: "4", Name: "Gear", SKU: "G"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.in.ToPart()

			assert.Equal(t, tt.in.Level, p.Level.LevelNumber)
			assert.Equal(t, Side(tt.in.Side), p.Level.Shelf.Side)
			assert.Equal(t, tt.in.Aisle, p.Level.Shelf.Aisle.Number)
			assert.Equal(t, UnknownID, p.Level.ID)
			assert.Equal(t, UnknownID, p.Level.Shelf.ID)
			assert.Equal(t, UnknownID, p.Level.Shelf.Aisle.ID)
			assert.False(t, p.Level.HasIdentity())

			assert.Equal(t, tt.in.ID, p.ID)
			assert.Equal(t, tt.in.Name, p.Name)
			assert.Equal(t, tt.in.SKU, p.SKU)
			assert.Equal(t, tt.in.Quantity, p.Quantity)
		})
	}
}

func TestSearchPartToPartDoesNotFabricateOptionalFields(t *testing.T) {
	p := SearchPart{ID: "1", Name: "Bolt", SKU: "B-1", Aisle: 1, Side: "LEFT", Level: 1}.ToPart()

	assert.Nil(t, p.Description)
	assert.Nil(t, p.Category)
	assert.Nil(t, p.Price)
	assert.Nil(t, p.Supplier)
	assert.Nil(t, p.CreatedAt)
	assert.Nil(t, p.UpdatedAt)
}

func TestSearchPartToPartCarriesOptionalFields(t *testing.T) {
	price := NewPrice(decimal.RequireFromString("4.25"))
	created := &Timestamp{time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)}
	sp := SearchPart{
		ID: "7", Name: "Hinge", SKU: "H-7", Quantity: 3, Aisle: 2, Side: "RIGHT", Level: 4,
		Description: strPtr("brass"), Category: strPtr("hardware"), Price: price,
		Supplier: strPtr("Acme"), CreatedAt: created,
	}

	want := Part{
		ID: "7", Name: "Hinge", SKU: "H-7", Quantity: 3,
		Level:       NewLevel(2, SideRight, 4),
		Description: strPtr("brass"), Category: strPtr("hardware"), Price: price,
		Supplier: strPtr("Acme"), CreatedAt: created,
	}
	if diff := cmp.Diff(want, sp.ToPart()); diff != "" {
		t.Errorf("ToPart mismatch (-want +got):\n%s", diff)
	}
}

func TestDetectShape(t *testing.T) {
	tests := []struct {
		raw  string
		want Shape
	}{
		{`{"id":"1","level":{"id":5,"levelNumber":2,"shelf":{"id":3,"side":"LEFT","aisle":{"id":1,"number":4}}}}`, ShapeNested},
		{`{"id":"1","aisle":4,"side":"LEFT","level":2}`, ShapeFlattened},
		{`{"id":"1","aisle":"4","side":"LEFT","level":"2"}`, ShapeInline},
		{`{"id":"1","aisle":"4","side":"LEFT","level":2}`, ShapeInline},
		{`{"id":"1","name":"no location"}`, ShapeUnknown},
		{`{"id":"1","level":null}`, ShapeUnknown},
		{`[1,2]`, ShapeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.want.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, DetectShape(json.RawMessage(tt.raw)))
		})
	}
}

func TestDecodePartAllShapesAgreeOnLocation(t *testing.T) {
	raws := map[Shape]string{
		ShapeNested:    `{"id":"9","name":"Bolt","sku":"B","quantity":1,"level":{"id":5,"levelNumber":2,"shelf":{"id":3,"side":"LEFT","aisle":{"id":1,"number":4}}}}`,
		ShapeFlattened: `{"id":"9","name":"Bolt","sku":"B","quantity":1,"aisle":4,"side":"LEFT","level":2}`,
		ShapeInline:    `{"id":"9","name":"Bolt","sku":"B","quantity":1,"aisle":"4","side":"LEFT","level":" 2 "}`,
	}

	for shape, raw := range raws {
		t.Run(shape.String(), func(t *testing.T) {
			p, err := DecodePart(json.RawMessage(raw))
			require.NoError(t, err)
			assert.Equal(t, "Aisle 4, LEFT Side, Level 2", p.LocationLabel())
			assert.Equal(t, ID("9"), p.ID)
		})
	}
}

func TestDecodePartKeepsNestedIdentity(t *testing.T) {
	raw := `{"id":"9","name":"Bolt","sku":"B","quantity":1,"level":{"id":5,"levelNumber":2,"shelf":{"id":3,"side":"RIGHT","aisle":{"id":1,"number":4}}}}`

	p, err := DecodePart(json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, 5, p.Level.ID)
	assert.Equal(t, 3, p.Level.Shelf.ID)
	assert.Equal(t, 1, p.Level.Shelf.Aisle.ID)
	assert.True(t, p.Level.HasIdentity())
}

func TestDecodePartNumericIDAndLocalTimestamp(t *testing.T) {
	raw := `{"id":42,"name":"Bolt","sku":"B","quantity":1,"aisle":1,"side":"LEFT","level":1,"price":12.5,"createdAt":"2024-03-02T10:15:30.123"}`

	p, err := DecodePart(json.RawMessage(raw))
	require.NoError(t, err)
	assert.Equal(t, ID("42"), p.ID)
	require.NotNil(t, p.Price)
	assert.True(t, p.Price.Equal(decimal.RequireFromString("12.5")))
	require.NotNil(t, p.CreatedAt)
	assert.Equal(t, 2024, p.CreatedAt.Year())
	assert.Equal(t, time.Month(3), p.CreatedAt.Month())
}

func TestDecodePartErrors(t *testing.T) {
	_, err := DecodePart(json.RawMessage(`{"id":"1","name":"x"}`))
	assert.ErrorIs(t, err, ErrUnknownShape)

	_, err = DecodePart(json.RawMessage(`{"id":"1","aisle":"four","side":"LEFT","level":"2"}`))
	assert.Error(t, err)

	_, err = DecodePart(json.RawMessage(`{"id":"1","aisle":1,"side":"LEFT","level":1,"createdAt":"yesterday"}`))
	assert.Error(t, err)
}

func TestDecodePartsReportsRecordIndex(t *testing.T) {
	raws := []json.RawMessage{
		json.RawMessage(`{"id":"1","aisle":1,"side":"LEFT","level":1}`),
		json.RawMessage(`{"id":"2"}`),
	}
	_, err := DecodeParts(raws)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record 1")
}

func TestPartMarshalsPriceAsNumber(t *testing.T) {
	price := NewPrice(decimal.RequireFromString("9.99"))
	b, err := json.Marshal(PartCreateInput{Name: "Bolt", SKU: "B", Quantity: 1, Aisle: "1", Side: "LEFT", Level: "2", Price: price})
	require.NoError(t, err)
	assert.Contains(t, string(b), `"price":9.99`)
	assert.NotContains(t, string(b), "description")
}

func TestPriceLeavesDecimalDefaultsAlone(t *testing.T) {
	plain, err := json.Marshal(decimal.RequireFromString("9.99"))
	require.NoError(t, err)
	assert.Equal(t, `"9.99"`, string(plain))

	var p Price
	require.NoError(t, json.Unmarshal([]byte(`"3.50"`), &p))
	assert.True(t, p.Equal(decimal.RequireFromString("3.5")))
	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t, "3.5", string(b))
}
