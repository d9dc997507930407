package tile

// CameraView is the visible window of the world, in metatiles.
type CameraView struct {
	// StartX and StartY are the world tile of the view's top-left metatile.
	StartX, StartY int
	// SubTileOffsetX/Y is the 0-15 pixel scroll inside the first metatile.
	SubTileOffsetX, SubTileOffsetY float64
	TilesWide, TilesHigh           int
}

// PixelSize is the size of a pass target covering the view.
func (v CameraView) PixelSize() (width, height int) {
	return v.TilesWide * MetatileSize, v.TilesHigh * MetatileSize
}

// ViewKey identifies a rendered tile window. It folds in the tileset version
// so it changes whenever tileset content does, not only when the camera moves.
type ViewKey struct {
	StartX, StartY       int
	TilesWide, TilesHigh int
	TilesetVersion       uint64
}

// Key returns the view's identity at a tileset version.
func (v CameraView) Key(tilesetVersion uint64) ViewKey {
	return ViewKey{
		StartX:         v.StartX,
		StartY:         v.StartY,
		TilesWide:      v.TilesWide,
		TilesHigh:      v.TilesHigh,
		TilesetVersion: tilesetVersion,
	}
}
