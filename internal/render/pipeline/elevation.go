package pipeline

import "chosenoffset.com/fieldrender/internal/tile"

// ElevationFilter derives the below/above predicates for a player
// elevation. Vertical objects always go above.
type ElevationFilter struct {
	vertical tile.VerticalObjectFunc
}

// NewElevationFilter returns a filter using vertical, which may be nil.
func NewElevationFilter(vertical tile.VerticalObjectFunc) *ElevationFilter {
	return &ElevationFilter{vertical: vertical}
}

// SetVerticalObjectChecker replaces the vertical-object predicate.
func (f *ElevationFilter) SetVerticalObjectChecker(vertical tile.VerticalObjectFunc) {
	f.vertical = vertical
}

func (f *ElevationFilter) isVertical(x, y int) bool {
	return f.vertical != nil && f.vertical(x, y)
}

// Filters returns the predicates for the pass under and over a player at
// elevation. For every cell exactly one of them is true.
func (f *ElevationFilter) Filters(elevation int) (below, above tile.ElevationFilterFunc) {
	playerAbove := tile.AboveTopLayer(elevation)
	// A blocked cell at the player's own elevation still draws over them.
	blocking := func(m tile.MapTile) bool {
		return m.Elevation == elevation && m.Collision == 1
	}
	below = func(m tile.MapTile, x, y int) bool {
		if f.isVertical(x, y) || !playerAbove {
			return false
		}
		return !blocking(m)
	}
	above = func(m tile.MapTile, x, y int) bool {
		if f.isVertical(x, y) {
			return true
		}
		if playerAbove {
			return blocking(m)
		}
		return true
	}
	return below, above
}
