package tile

// elevationToPriority maps a map elevation to the sprite priority the
// hardware uses for an object standing on it.
var elevationToPriority = [16]int{2, 2, 2, 2, 1, 2, 1, 2, 1, 2, 1, 2, 1, 0, 0, 2}

// SpritePriority returns the sprite priority (0 highest) for an elevation.
// Out-of-range elevations behave like ground level.
func SpritePriority(elevation int) int {
	if elevation < 0 || elevation >= len(elevationToPriority) {
		return 2
	}
	return elevationToPriority[elevation]
}

// AboveTopLayer reports whether a sprite at this elevation draws over the
// upper background layer.
func AboveTopLayer(elevation int) bool {
	return SpritePriority(elevation) <= 1
}
