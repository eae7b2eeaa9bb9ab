package store

import (
	"fmt"
	"time"
)

// Side identifies one half of a sync pair.
type Side string

const (
	SideLocal    Side = "local"
	SideExternal Side = "external"
)

func (s Side) Valid() bool {
	return s == SideLocal || s == SideExternal
}

func (s Side) Opposite() Side {
	if s == SideLocal {
		return SideExternal
	}
	return SideLocal
}

// ParseSide converts user input ("local"/"external") to a Side.
func ParseSide(s string) (Side, error) {
	side := Side(s)
	if !side.Valid() {
		return "", fmt.Errorf("invalid side %q", s)
	}
	return side, nil
}

// Location records on which sides of a pair a virtual path exists.
type Location string

const (
	LocationNotExists    Location = "notExists"
	LocationLocalOnly    Location = "localOnly"
	LocationExternalOnly Location = "externalOnly"
	LocationBoth         Location = "both"
)

// SideOnly returns the location meaning "exists on side and nowhere else".
func SideOnly(side Side) Location {
	if side == SideLocal {
		return LocationLocalOnly
	}
	return LocationExternalOnly
}

// Includes reports whether the location covers the given side.
func (l Location) Includes(side Side) bool {
	return l == LocationBoth || l == SideOnly(side)
}

// Observed returns the location after a rebuild of side observes the path.
// Observation only adds or promotes, never regresses:
//
//	notExists          -> side-only
//	opposite-side-only -> both
//	same-side-only     -> unchanged
//	both               -> unchanged
func (l Location) Observed(side Side) Location {
	switch l {
	case LocationNotExists, "":
		return SideOnly(side)
	case SideOnly(side.Opposite()):
		return LocationBoth
	default:
		return l
	}
}

// Vanished returns the location after a rebuild of side did NOT observe a
// path previously attributed to that side. The inverse of Observed:
//
//	both      -> opposite-side-only
//	side-only -> notExists
//	other     -> unchanged
func (l Location) Vanished(side Side) Location {
	switch l {
	case LocationBoth:
		return SideOnly(side.Opposite())
	case SideOnly(side):
		return LocationNotExists
	default:
		return l
	}
}

// FileEntry is the merged per-path location record for one sync pair.
// Physical paths are nil for sides the path does not exist on.
type FileEntry struct {
	SyncPairID           string
	VirtualPath          string
	LocalPhysicalPath    *string
	ExternalPhysicalPath *string
	Size                 int64
	ModifiedAt           time.Time
	CreatedAt            time.Time
	AccessedAt           time.Time
	Location             Location
}
