package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Price is a decimal amount exchanged with the parts API as a bare JSON
// number. Decoding accepts numbers and quoted strings alike.
type Price struct {
	decimal.Decimal
}

func NewPrice(d decimal.Decimal) *Price {
	return &Price{Decimal: d}
}

func (p Price) MarshalJSON() ([]byte, error) {
	return []byte(p.Decimal.String()), nil
}

// ID is a part identifier. Servers emit it either as a string or a number.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("part id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp accepts RFC 3339 as well as the zone-less local date-times some
// servers emit. Zone-less values are read as UTC.
type Timestamp struct {
	time.Time
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// Part is the canonical shape every consumer works with, whatever the wire
// shape it arrived in.
type Part struct {
	ID          ID         `json:"id"`
	Name        string     `json:"name"`
	SKU         string     `json:"sku"`
	Quantity    int        `json:"quantity"`
	Level       Level      `json:"level"`
	Description *string    `json:"description,omitempty"`
	Category    *string    `json:"category,omitempty"`
	Price       *Price     `json:"price,omitempty"`
	Supplier    *string    `json:"supplier,omitempty"`
	CreatedAt   *Timestamp `json:"createdAt,omitempty"`
	UpdatedAt   *Timestamp `json:"updatedAt,omitempty"`
}

func (p Part) LocationLabel() string {
	return p.Level.Label()
}

func (p Part) StockStatus() StockStatus {
	return StockStatusFor(p.Quantity)
}

// LowStockThreshold is the quantity below which a part is flagged as low stock.
const LowStockThreshold = 10

type StockStatus string

const (
	StockOut StockStatus = "out_of_stock"
	StockLow StockStatus = "low_stock"
	StockIn  StockStatus = "in_stock"
)

func StockStatusFor(quantity int) StockStatus {
	switch {
	case quantity <= 0:
		return StockOut
	case quantity < LowStockThreshold:
		return StockLow
	default:
		return StockIn
	}
}

func ParseStockStatus(s string) (StockStatus, bool) {
	switch StockStatus(strings.ToLower(strings.TrimSpace(s))) {
	case StockOut:
		return StockOut, true
	case StockLow:
		return StockLow, true
	case StockIn:
		return StockIn, true
	}
	return "", false
}

func (s StockStatus) Label() string {
	switch s {
	case StockOut:
		return "Out of Stock"
	case StockLow:
		return "Low Stock"
	case StockIn:
		return "In Stock"
	default:
		return "Unknown"
	}
}

// PartCreateInput carries the location as raw strings; the server resolves
// them to a Level.
type PartCreateInput struct {
	Name        string  `json:"name"`
	SKU         string  `json:"sku"`
	Quantity    int     `json:"quantity"`
	Aisle       string  `json:"aisle"`
	Side        string  `json:"side"`
	Level       string  `json:"level"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Price       *Price  `json:"price,omitempty"`
	Supplier    *string `json:"supplier,omitempty"`
}

// PartUpdateInput is a partial PartCreateInput; nil fields are left unchanged.
type PartUpdateInput struct {
	Name        *string `json:"name,omitempty"`
	SKU         *string `json:"sku,omitempty"`
	Quantity    *int    `json:"quantity,omitempty"`
	Aisle       *string `json:"aisle,omitempty"`
	Side        *string `json:"side,omitempty"`
	Level       *string `json:"level,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Price       *Price  `json:"price,omitempty"`
	Supplier    *string `json:"supplier,omitempty"`
}

func (in PartUpdateInput) IsEmpty() bool {
	return in == PartUpdateInput{}
}

type PartSearchParams struct {
	Name     string `json:"name,omitempty" form:"name"`
	SKU      string `json:"sku,omitempty" form:"sku"`
	Aisle    string `json:"aisle,omitempty" form:"aisle"`
	Side     string `json:"side,omitempty" form:"side"`
	Level    string `json:"level,omitempty" form:"level"`
	Category string `json:"category,omitempty" form:"category"`
}

// Normalize trims every field so that whitespace-only input counts as empty.
// A recognizable side is rewritten to its canonical LEFT/RIGHT form.
func (p PartSearchParams) Normalize() PartSearchParams {
	n := PartSearchParams{
		Name:     strings.TrimSpace(p.Name),
		SKU:      strings.TrimSpace(p.SKU),
		Aisle:    strings.TrimSpace(p.Aisle),
		Side:     strings.TrimSpace(p.Side),
		Level:    strings.TrimSpace(p.Level),
		Category: strings.TrimSpace(p.Category),
	}
	if side, ok := ParseSide(n.Side); ok {
		n.Side = string(side)
	}
	return n
}

func (p PartSearchParams) IsEmpty() bool {
	return p.Normalize() == PartSearchParams{}
}

// Values encodes the non-empty fields as a query string.
func (p PartSearchParams) Values() url.Values {
	n := p.Normalize()
	v := url.Values{}
	for _, f := range []struct{ key, value string }{
		{"name", n.Name},
		{"sku", n.SKU},
		{"aisle", n.Aisle},
		{"side", n.Side},
		{"level", n.Level},
		{"category", n.Category},
	} {
		if f.value != "" {
			v.Set(f.key, f.value)
		}
	}
	return v
}

// HasSKU reports whether any part carries sku, compared case-insensitively.
func HasSKU(parts []Part, sku string) bool {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return false
	}
	for _, p := range parts {
		if strings.EqualFold(strings.TrimSpace(p.SKU), sku) {
			return true
		}
	}
	return false
}
