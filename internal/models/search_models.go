package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// SearchPart is the flattened projection returned by the paginated search
// endpoint. It never leaves the transport boundary; convert it with ToPart.
type SearchPart struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	SKU         string     `json:"sku"`
	Quantity    int        `json:"quantity"`
	Aisle       int        `json:"aisle"`
	Side        string     `json:"side"`
	Level       int        `json:"level"`
	Description *string    `json:"description,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Price       *Price     `json:"price,omitempty"`
	Supplier    *string    `json:"supplier,omitempty"`
	CreatedAt   *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt   *Timestamp `json:"updatedAt,omitempty"`
}

// ToPart synthesizes the nested location with UnknownID ids. Optional fields
// are carried over as-is.
func (sp SearchPart) ToPart() Part {
	return Part{
		ID:          sp.ID,
		Name:        sp.Name,
		SKU:         sp.SKU,
		Quantity:    sp.Quantity,
		Level:       NewLevel(sp.Aisle, Side(sp.Side), sp.Level),
		Description: sp.Description,
		Category:    sp.Category,
		Price:       sp.Price,
		Supplier:    sp.Supplier,
		CreatedAt:   sp.CreatedAt,
		UpdatedAt:   sp.UpdatedAt,
	}
}

// Shape names the wire layout a single part record arrived in.
type Shape int

const (
	ShapeUnknown Shape = iota
	// ShapeNested carries a Level/Shelf/Aisle object graph under "level".
	ShapeNested
	// ShapeFlattened carries numeric "aisle" and "level" next to "side".
	ShapeFlattened
	// ShapeInline carries the location as strings, the way forms submit it.
	ShapeInline
)

func (s Shape) String() string {
	switch s {
	case ShapeNested:
		return "nested"
	case ShapeFlattened:
		return "flattened"
	case ShapeInline:
		return "inline"
	default:
		return "unknown"
	}
}

var ErrUnknownShape = errors.New("part record has no recognizable location")

type shapeProbe struct {
	Aisle json.RawMessage `json:"aisle"`
	Level json.RawMessage `json:"level"`
}

// DetectShape inspects the location fields of a raw part record.
func DetectShape(raw json.RawMessage) Shape {
	var probe shapeProbe
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ShapeUnknown
	}
	level := bytes.TrimSpace(probe.Level)
	if len(level) == 0 || bytes.Equal(level, []byte("null")) {
		return ShapeUnknown
	}
	switch {
	case level[0] == '{':
		return ShapeNested
	case isJSONNumber(level) && isJSONNumber(bytes.TrimSpace(probe.Aisle)):
		return ShapeFlattened
	case level[0] == '"' || isJSONNumber(level):
		return ShapeInline
	}
	return ShapeUnknown
}

func isJSONNumber(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	c := b[0]
	return c == '-' || (c >= '0' && c <= '9')
}

// DecodePart converts a raw record of any known shape into a Part.
func DecodePart(raw json.RawMessage) (Part, error) {
	switch shape := DetectShape(raw); shape {
	case ShapeNested:
		var p Part
		if err := json.Unmarshal(raw, &p); err != nil {
			return Part{}, fmt.Errorf("decode %s part: %w", shape, err)
		}
		return p, nil
	case ShapeFlattened:
		var sp SearchPart
		if err := json.Unmarshal(raw, &sp); err != nil {
			return Part{}, fmt.Errorf("decode %s part: %w", shape, err)
		}
		return sp.ToPart(), nil
	case ShapeInline:
		var ip inlinePart
		if err := json.Unmarshal(raw, &ip); err != nil {
			return Part{}, fmt.Errorf("decode %s part: %w", shape, err)
		}
		return ip.toPart(), nil
	default:
		return Part{}, ErrUnknownShape
	}
}

// DecodeParts decodes every record, failing on the first bad one.
func DecodeParts(raws []json.RawMessage) ([]Part, error) {
	parts := make([]Part, 0, len(raws))
	for i, raw := range raws {
		p, err := DecodePart(raw)
		if err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		parts = append(parts, p)
	}
	return parts, nil
}

// inlinePart shadows the numeric location fields of SearchPart with
// string-tolerant ones.
type inlinePart struct {
	SearchPart
	Aisle scalarInt `json:"aisle"`
	Level scalarInt `json:"level"`
}

func (ip inlinePart) toPart() Part {
	sp := ip.SearchPart
	sp.Aisle = int(ip.Aisle)
	sp.Level = int(ip.Level)
	return sp.ToPart()
}

// scalarInt reads either a JSON number or a numeric string.
type scalarInt int

func (n *scalarInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*n = 0
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("location value %q is not a number", s)
		}
		*n = scalarInt(v)
		return nil
	}
	var v int
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*n = scalarInt(v)
	return nil
}
