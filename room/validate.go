package room

import (
	"strings"
	"unicode"
)

// Roster predicates. Callers must hold the room mutex.

func isFull(r *Room) bool {
	return len(r.Players) >= r.Capacity
}

// nameTaken compares normalized names: lowercased with all whitespace
// stripped, so "Ann" collides with "ann ".
func nameTaken(r *Room, name string) bool {
	candidate := normalizeName(name)
	for _, p := range r.Players {
		if normalizeName(p.Name) == candidate {
			return true
		}
	}
	return false
}

// colorTaken is an exact match; colors are identity tokens, not display text.
func colorTaken(r *Room, color string) bool {
	for _, p := range r.Players {
		if p.Color == color {
			return true
		}
	}
	return false
}

func normalizeName(name string) string {
	stripped := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, name)
	return strings.ToLower(stripped)
}
