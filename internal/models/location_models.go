package models

import (
	"fmt"
	"strings"
)

// UnknownID marks a nested location id that the transport did not carry.
const UnknownID = 0

type Side string

const (
	SideLeft  Side = "LEFT"
	SideRight Side = "RIGHT"
)

// ParseSide accepts the spellings operators type into forms ("left", "L", "Right").
func ParseSide(s string) (Side, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LEFT", "L":
		return SideLeft, true
	case "RIGHT", "R":
		return SideRight, true
	}
	return "", false
}

type Aisle struct {
	ID     int `json:"id"`
	Number int `json:"number"`
}

type Shelf struct {
	ID    int   `json:"id"`
	Side  Side  `json:"side"`
	Aisle Aisle `json:"aisle"`
}

type Level struct {
	ID          int   `json:"id"`
	LevelNumber int   `json:"levelNumber"`
	Shelf       Shelf `json:"shelf"`
}

// NewLevel builds a location whose nested ids are all UnknownID.
func NewLevel(aisle int, side Side, level int) Level {
	return Level{
		ID:          UnknownID,
		LevelNumber: level,
		Shelf: Shelf{
			ID:   UnknownID,
			Side: side,
			Aisle: Aisle{
				ID:     UnknownID,
				Number: aisle,
			},
		},
	}
}

func (l Level) AisleNumber() int { return l.Shelf.Aisle.Number }

func (l Level) Side() Side { return l.Shelf.Side }

// Label renders the location the way the part cards show it.
func (l Level) Label() string {
	return fmt.Sprintf("Aisle %d, %s Side, Level %d", l.AisleNumber(), l.Side(), l.LevelNumber)
}

// HasIdentity reports whether the location came with server-side ids.
func (l Level) HasIdentity() bool {
	return l.ID != UnknownID
}

// Compare orders locations by aisle, then side, then level.
func (l Level) Compare(o Level) int {
	if l.AisleNumber() != o.AisleNumber() {
		return l.AisleNumber() - o.AisleNumber()
	}
	if c := strings.Compare(string(l.Side()), string(o.Side())); c != 0 {
		return c
	}
	return l.LevelNumber - o.LevelNumber
}
