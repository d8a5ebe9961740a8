package handler

import (
	"strconv"
	"strings"

	"parts-inventory/internal/gateway/clients"
	"parts-inventory/internal/models"
)

const (
	MsgNameRequired     = "Name is required"
	MsgSKURequired      = "SKU is required"
	MsgSKUTaken         = "A part with this SKU already exists"
	MsgQuantityNegative = "Quantity cannot be negative"
	MsgAisleRequired    = "Aisle is required"
	MsgAisleNumber      = "Aisle must be a number"
	MsgSideRequired     = "Side is required"
	MsgSideInvalid      = "Side must be LEFT or RIGHT"
	MsgLevelRequired    = "Level is required"
	MsgLevelNumber      = "Level must be a number"
	MsgPriceNegative    = "Price cannot be negative"
)

// --- Helpers ---

type fieldErrors map[string]string

func (f fieldErrors) add(field, msg string) {
	if _, ok := f[field]; !ok {
		f[field] = msg
	}
}

func (f fieldErrors) err() error {
	if len(f) == 0 {
		return nil
	}
	return clients.NewValidationError(f)
}

func checkNumber(f fieldErrors, field, value, required, invalid string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		f.add(field, required)
		return value
	}
	if n, err := strconv.Atoi(value); err != nil || n < 0 {
		f.add(field, invalid)
	}
	return value
}

func checkSide(f fieldErrors, value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		f.add("side", MsgSideRequired)
		return value
	}
	side, ok := models.ParseSide(value)
	if !ok {
		f.add("side", MsgSideInvalid)
		return value
	}
	return string(side)
}

// skuTaken checks the cached list only; it never goes to the network. A part
// whose id equals self is not a conflict with itself.
func skuTaken(known []models.Part, sku string, self models.ID) bool {
	others := known
	if self != "" {
		others = make([]models.Part, 0, len(known))
		for _, p := range known {
			if p.ID != self {
				others = append(others, p)
			}
		}
	}
	return models.HasSKU(others, sku)
}

// validateCreate normalizes in and reports every field problem at once.
func validateCreate(in models.PartCreateInput, known []models.Part) (models.PartCreateInput, error) {
	f := fieldErrors{}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		f.add("name", MsgNameRequired)
	}
	in.SKU = strings.TrimSpace(in.SKU)
	switch {
	case in.SKU == "":
		f.add("sku", MsgSKURequired)
	case skuTaken(known, in.SKU, ""):
		f.add("sku", MsgSKUTaken)
	}
	if in.Quantity < 0 {
		f.add("quantity", MsgQuantityNegative)
	}
	in.Aisle = checkNumber(f, "aisle", in.Aisle, MsgAisleRequired, MsgAisleNumber)
	in.Side = checkSide(f, in.Side)
	in.Level = checkNumber(f, "level", in.Level, MsgLevelRequired, MsgLevelNumber)
	if in.Price != nil && in.Price.IsNegative() {
		f.add("price", MsgPriceNegative)
	}

	return in, f.err()
}

// validateUpdate checks only the fields being changed.
func validateUpdate(id models.ID, in models.PartUpdateInput, known []models.Part) (models.PartUpdateInput, error) {
	f := fieldErrors{}

	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			f.add("name", MsgNameRequired)
		}
		in.Name = &name
	}
	if in.SKU != nil {
		sku := strings.TrimSpace(*in.SKU)
		switch {
		case sku == "":
			f.add("sku", MsgSKURequired)
		case skuTaken(known, sku, id):
			f.add("sku", MsgSKUTaken)
		}
		in.SKU = &sku
	}
	if in.Quantity != nil && *in.Quantity < 0 {
		f.add("quantity", MsgQuantityNegative)
	}
	if in.Aisle != nil {
		aisle := checkNumber(f, "aisle", *in.Aisle, MsgAisleRequired, MsgAisleNumber)
		in.Aisle = &aisle
	}
	if in.Side != nil {
		side := checkSide(f, *in.Side)
		in.Side = &side
	}
	if in.Level != nil {
		level := checkNumber(f, "level", *in.Level, MsgLevelRequired, MsgLevelNumber)
		in.Level = &level
	}
	if in.Price != nil && in.Price.IsNegative() {
		f.add("price", MsgPriceNegative)
	}

	return in, f.err()
}
