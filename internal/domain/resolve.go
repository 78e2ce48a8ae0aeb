package domain

import (
	"strconv"
	"strings"
)

// RefKind tags how a waypoint reference was matched.
type RefKind int

const (
	RefUnresolved RefKind = iota
	RefPosition
	RefHandle
	RefCity
)

func (k RefKind) String() string {
	switch k {
	case RefPosition:
		return "position"
	case RefHandle:
		return "handle"
	case RefCity:
		return "city"
	default:
		return "unresolved"
	}
}

// Resolution is the result of resolving a symbolic waypoint reference.
type Resolution struct {
	Kind     RefKind
	Position int
}

func (r Resolution) OK() bool { return r.Kind != RefUnresolved }

// ResolveRef maps a reference to a canonical position. Accepted forms, in order:
//   - a non-negative decimal position ("3"), taken as-is even if no waypoint sits there
//   - a waypoint handle ("wp-3"), exact match
//   - a city name ("tokyo"), case-insensitive, first match in route order
func ResolveRef(ref string, waypoints []Waypoint) Resolution {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Resolution{}
	}

	if isDigits(ref) {
		pos, err := strconv.Atoi(ref)
		if err != nil {
			return Resolution{}
		}
		return Resolution{Kind: RefPosition, Position: pos}
	}

	for _, w := range waypoints {
		if w.Handle == ref {
			return Resolution{Kind: RefHandle, Position: w.Position}
		}
	}

	for _, w := range waypoints {
		if strings.EqualFold(w.City, ref) {
			return Resolution{Kind: RefCity, Position: w.Position}
		}
	}

	return Resolution{}
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
