package models

import (
	"cmp"
	"slices"
	"strings"
)

// PartFilter narrows an already-fetched list. Zero values match everything.
type PartFilter struct {
	Query    string
	Category string
	Status   StockStatus
}

func (f PartFilter) matches(p Part) bool {
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		if !strings.Contains(strings.ToLower(p.Name), q) && !strings.Contains(strings.ToLower(p.SKU), q) {
			return false
		}
	}
	if c := strings.TrimSpace(f.Category); c != "" {
		if p.Category == nil || !strings.EqualFold(*p.Category, c) {
			return false
		}
	}
	if f.Status != "" && p.StockStatus() != f.Status {
		return false
	}
	return true
}

func FilterParts(parts []Part, f PartFilter) []Part {
	out := make([]Part, 0, len(parts))
	for _, p := range parts {
		if f.matches(p) {
			out = append(out, p)
		}
	}
	return out
}

type SortField string

const (
	SortByName     SortField = "name"
	SortBySKU      SortField = "sku"
	SortByQuantity SortField = "quantity"
	SortByLocation SortField = "location"
)

func ParseSortField(s string) (SortField, bool) {
	switch f := SortField(strings.ToLower(strings.TrimSpace(s))); f {
	case SortByName, SortBySKU, SortByQuantity, SortByLocation:
		return f, true
	}
	return "", false
}

// SortParts returns a sorted copy; ties keep their original order.
func SortParts(parts []Part, field SortField, desc bool) []Part {
	out := slices.Clone(parts)
	compare := func(a, b Part) int {
		switch field {
		case SortBySKU:
			return cmp.Compare(strings.ToLower(a.SKU), strings.ToLower(b.SKU))
		case SortByQuantity:
			return cmp.Compare(a.Quantity, b.Quantity)
		case SortByLocation:
			return a.Level.Compare(b.Level)
		default:
			return cmp.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
		}
	}
	slices.SortStableFunc(out, func(a, b Part) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})
	return out
}

// --- Warehouse map ---

type LevelGroup struct {
	Level int    `json:"level"`
	Parts []Part `json:"parts"`
}

type SideGroup struct {
	Side   Side         `json:"side"`
	Levels []LevelGroup `json:"levels"`
}

type AisleGroup struct {
	Aisle int         `json:"aisle"`
	Sides []SideGroup `json:"sides"`
}

// GroupByLocation arranges parts into aisle → side → level buckets, each
// level ordered by name.
func GroupByLocation(parts []Part) []AisleGroup {
	sorted := SortParts(SortParts(parts, SortByName, false), SortByLocation, false)

	var aisles []AisleGroup
	for _, p := range sorted {
		loc := p.Level
		if n := len(aisles); n == 0 || aisles[n-1].Aisle != loc.AisleNumber() {
			aisles = append(aisles, AisleGroup{Aisle: loc.AisleNumber()})
		}
		aisle := &aisles[len(aisles)-1]

		if n := len(aisle.Sides); n == 0 || aisle.Sides[n-1].Side != loc.Side() {
			aisle.Sides = append(aisle.Sides, SideGroup{Side: loc.Side()})
		}
		side := &aisle.Sides[len(aisle.Sides)-1]

		if n := len(side.Levels); n == 0 || side.Levels[n-1].Level != loc.LevelNumber {
			side.Levels = append(side.Levels, LevelGroup{Level: loc.LevelNumber})
		}
		level := &side.Levels[len(side.Levels)-1]
		level.Parts = append(level.Parts, p)
	}
	return aisles
}
