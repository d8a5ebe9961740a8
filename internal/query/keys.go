package query

import (
	"slices"
	"strings"

	"parts-inventory/internal/models"
)

// Key identifies a cached read. A key invalidates every key it prefixes, so
// invalidating PartsKey() also covers every search.
type Key []string

func (k Key) String() string { return strings.Join(k, "/") }

func (k Key) id() string { return strings.Join(k, "\x00") }

func (k Key) HasPrefix(prefix Key) bool {
	return len(prefix) <= len(k) && slices.Equal(k[:len(prefix)], prefix)
}

func (k Key) Equal(o Key) bool { return slices.Equal(k, o) }

const (
	partsRoot  = "parts"
	partRoot   = "part"
	searchNode = "search"
)

func PartsKey() Key { return Key{partsRoot} }

func PartKey(id models.ID) Key { return Key{partRoot, id.String()} }

// SearchKey canonicalizes params so equivalent searches share one entry.
func SearchKey(params models.PartSearchParams) Key {
	return Key{partsRoot, searchNode, params.Values().Encode()}
}

type Mutation string

const (
	MutationCreate Mutation = "create"
	MutationUpdate Mutation = "update"
	MutationDelete Mutation = "delete"
)

// InvalidationsFor is the full table of reads a successful mutation makes stale.
func InvalidationsFor(m Mutation, id models.ID) []Key {
	switch m {
	case MutationCreate:
		return []Key{PartsKey()}
	case MutationUpdate, MutationDelete:
		keys := []Key{PartsKey()}
		if id != "" {
			keys = append(keys, PartKey(id))
		}
		return keys
	}
	return nil
}
