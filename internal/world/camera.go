package world

import (
	"math"

	"chosenoffset.com/fieldrender/internal/tile"
)

// Bounds is a world rectangle in pixels. MinX and MinY may be negative for
// maps placed left of or above the anchor.
type Bounds struct {
	MinX, MinY    float64
	Width, Height float64
}

// CameraConfig sizes the viewport in metatiles.
type CameraConfig struct {
	TilesWide, TilesHigh int
	// OverscanTiles is how far past the world edge the camera may scroll.
	OverscanTiles int
}

// Camera tracks the top-left pixel of the viewport.
type Camera struct {
	x, y   float64
	config CameraConfig
	bounds *Bounds
}

// NewCamera creates a camera at the origin.
func NewCamera(config CameraConfig) *Camera {
	return &Camera{config: config}
}

// Position returns the top-left pixel of the viewport.
func (c *Camera) Position() (x, y float64) {
	return c.x, c.y
}

// SetPosition moves the camera without clamping.
func (c *Camera) SetPosition(x, y float64) {
	c.x, c.y = x, y
}

// SetBounds limits where Follow may place the camera.
func (c *Camera) SetBounds(b Bounds) {
	c.bounds = &b
}

// Viewport returns the viewport size in pixels.
func (c *Camera) Viewport() (width, height int) {
	return c.config.TilesWide * tile.MetatileSize, c.config.TilesHigh * tile.MetatileSize
}

// Follow centers the viewport on a pixel, then clamps to the bounds.
func (c *Camera) Follow(focusX, focusY float64) {
	w, h := c.Viewport()
	c.x = focusX - float64(w)/2
	c.y = focusY - float64(h)/2
	if c.bounds != nil {
		c.x = clampAxis(c.x, c.bounds.MinX, c.bounds.Width, float64(w), c.overscan())
		c.y = clampAxis(c.y, c.bounds.MinY, c.bounds.Height, float64(h), c.overscan())
	}
}

func (c *Camera) overscan() float64 {
	return float64(c.config.OverscanTiles * tile.MetatileSize)
}

// A world smaller than the viewport is centered.
func clampAxis(pos, minPos, size, viewport, overscan float64) float64 {
	if size <= viewport {
		return minPos + (size-viewport)/2
	}
	lo := minPos - overscan
	hi := minPos + size - viewport + overscan
	return math.Max(lo, math.Min(pos, hi))
}

// View returns the metatile window for the current position, extraTiles
// wider and taller than the viewport so sub-tile scrolling never shows an
// empty edge.
func (c *Camera) View(extraTiles int) tile.CameraView {
	startX := int(math.Floor(c.x / tile.MetatileSize))
	startY := int(math.Floor(c.y / tile.MetatileSize))
	return tile.CameraView{
		StartX:         startX,
		StartY:         startY,
		SubTileOffsetX: c.x - float64(startX*tile.MetatileSize),
		SubTileOffsetY: c.y - float64(startY*tile.MetatileSize),
		TilesWide:      c.config.TilesWide + extraTiles,
		TilesHigh:      c.config.TilesHigh + extraTiles,
	}
}
