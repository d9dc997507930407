// Package world stitches decoded maps into one tile grid and answers the
// per-cell questions the render pipeline asks: which metatile is here, and
// does it always draw over the player.
package world

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/assets"
	"chosenoffset.com/fieldrender/internal/render/pipeline"
	"chosenoffset.com/fieldrender/internal/tile"
)

const (
	// PrimaryMetatileCount is where secondary metatile ids start.
	PrimaryMetatileCount = 512

	// A top layer with fewer transparent pixels than this (out of 256) is
	// treated as an object standing in front of the player.
	verticalObjectThreshold = 128

	secondaryPaletteFirst = 6
	secondaryPaletteEnd   = 13
)

// TilesetPair is a primary and secondary tileset used together by a map.
type TilesetPair struct {
	Primary   *assets.Tileset
	Secondary *assets.Tileset

	// transparent pixel count per tile, per tileset
	transparent [2][]int
}

// NewTilesetPair builds a pair and its per-tile transparency counts.
func NewTilesetPair(primary, secondary *assets.Tileset) *TilesetPair {
	p := &TilesetPair{Primary: primary, Secondary: secondary}
	p.transparent[tile.Primary] = transparencyCounts(primary.Image)
	p.transparent[tile.Secondary] = transparencyCounts(secondary.Image)
	return p
}

// ID names the pair by its tilesets.
func (p *TilesetPair) ID() string {
	return PairID(p.Primary.Name, p.Secondary.Name)
}

// PairID is the id of the pair made of two named tilesets.
func PairID(primary, secondary string) string {
	return primary + "+" + secondary
}

func transparencyCounts(im tile.IndexedImage) []int {
	cols := im.Width / tile.Size
	out := make([]int, im.TileCount())
	for i := range out {
		x0, y0 := (i%cols)*tile.Size, (i/cols)*tile.Size
		n := 0
		for y := y0; y < y0+tile.Size; y++ {
			for _, v := range im.Pix[y*im.Width+x0 : y*im.Width+x0+tile.Size] {
				if v == 0 {
					n++
				}
			}
		}
		out[i] = n
	}
	return out
}

// Metatile looks up a metatile by combined id.
func (p *TilesetPair) Metatile(id int) (tile.Metatile, *tile.Attributes, bool) {
	ts, local := p.Primary, id
	if id >= PrimaryMetatileCount {
		ts, local = p.Secondary, id-PrimaryMetatileCount
	}
	if local < 0 || local >= len(ts.Metatiles) {
		return tile.Metatile{}, nil, false
	}
	m := ts.Metatiles[local]
	m.ID = id
	var attrs *tile.Attributes
	if local < len(ts.Attributes) {
		a := ts.Attributes[local]
		attrs = &a
	}
	return m, attrs, true
}

// TransparentPixels returns how many of the tile's 64 pixels are color 0.
// Unknown tiles count as fully transparent.
func (p *TilesetPair) TransparentPixels(t tile.Tile) int {
	kind, id := t.Split()
	counts := p.transparent[kind]
	if id < 0 || id >= len(counts) {
		return tile.Size * tile.Size
	}
	return counts[id]
}

// Palettes returns the sixteen palette slots of the pair.
func (p *TilesetPair) Palettes() []tile.Palette {
	return tile.CombinePalettes(p.Primary.Palettes, secondarySlots(p.Secondary.Palettes))
}

// Secondary tilesets ship a full sixteen-palette file, of which slots 6-12
// are theirs.
func secondarySlots(pals []tile.Palette) []tile.Palette {
	if len(pals) >= secondaryPaletteEnd {
		return pals[secondaryPaletteFirst:secondaryPaletteEnd]
	}
	return pals
}

// Assets returns the pair in the form the pipeline uploads.
func (p *TilesetPair) Assets() pipeline.PairAssets {
	anims := make([]tile.Animation, 0, len(p.Primary.Animations)+len(p.Secondary.Animations))
	anims = append(anims, p.Primary.Animations...)
	anims = append(anims, p.Secondary.Animations...)
	return pipeline.PairAssets{
		ID:                p.ID(),
		Primary:           p.Primary.Image,
		Secondary:         p.Secondary.Image,
		PrimaryPalettes:   p.Primary.Palettes,
		SecondaryPalettes: secondarySlots(p.Secondary.Palettes),
		Animations:        anims,
	}
}

// Map is a map layout placed in world tile coordinates.
type Map struct {
	Layout *assets.MapLayout
	Pair   *TilesetPair
}

// Contains reports whether a world tile falls inside the map.
func (m *Map) Contains(x, y int) bool {
	l := m.Layout
	return x >= l.OffsetX && x < l.OffsetX+l.Width && y >= l.OffsetY && y < l.OffsetY+l.Height
}

func (m *Map) cell(x, y int) tile.MapTile {
	l := m.Layout
	return l.Cells[(y-l.OffsetY)*l.Width+(x-l.OffsetX)]
}

// World is a set of maps sharing one coordinate space. The first map is the
// anchor whose border metatiles fill every cell outside the maps.
type World struct {
	maps  []*Map
	pairs []*TilesetPair
	slots map[string]int
	log   *logrus.Entry
}

// New builds a world from placed maps. Tileset pairs get GPU slots in the
// order their maps appear, up to tile.MaxPairs.
func New(maps []*Map, logger *logrus.Logger) (*World, error) {
	if len(maps) == 0 {
		return nil, fmt.Errorf("world needs at least one map")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	w := &World{
		maps:  maps,
		slots: make(map[string]int),
		log:   logger.WithField("component", "world"),
	}
	for _, m := range maps {
		if m.Pair == nil || m.Layout == nil {
			return nil, fmt.Errorf("map is missing its layout or tilesets")
		}
		if len(m.Layout.Cells) != m.Layout.Width*m.Layout.Height {
			return nil, fmt.Errorf("map %s has %d cells, want %d", m.Layout.Name, len(m.Layout.Cells), m.Layout.Width*m.Layout.Height)
		}
		id := m.Pair.ID()
		if _, ok := w.slots[id]; ok {
			continue
		}
		w.pairs = append(w.pairs, m.Pair)
		if len(w.slots) < tile.MaxPairs {
			w.slots[id] = len(w.slots)
		} else {
			w.log.WithField("pair", id).Warn("No GPU slot left for tileset pair, its maps will not render")
		}
	}
	return w, nil
}

// Load reads every map of the manifest and its tilesets through the loader.
func Load(loader *assets.Loader, manifest *assets.Manifest, logger *logrus.Logger) (*World, error) {
	pairs := make(map[string]*TilesetPair)
	var maps []*Map
	for _, name := range manifest.Maps {
		layout, err := loader.Map(name)
		if err != nil {
			return nil, fmt.Errorf("failed to load map: %w", err)
		}
		id := PairID(layout.PrimaryTileset, layout.SecondaryTileset)
		pair, ok := pairs[id]
		if !ok {
			primary, err := loader.Tileset(layout.PrimaryTileset)
			if err != nil {
				return nil, fmt.Errorf("failed to load map %s: %w", name, err)
			}
			secondary, err := loader.Tileset(layout.SecondaryTileset)
			if err != nil {
				return nil, fmt.Errorf("failed to load map %s: %w", name, err)
			}
			pair = NewTilesetPair(primary, secondary)
			pairs[id] = pair
		}
		maps = append(maps, &Map{Layout: layout, Pair: pair})
	}
	return New(maps, logger)
}

// Anchor is the map whose border surrounds the world.
func (w *World) Anchor() *Map {
	return w.maps[0]
}

// Maps returns the placed maps.
func (w *World) Maps() []*Map {
	return w.maps
}

func (w *World) mapAt(x, y int) *Map {
	for _, m := range w.maps {
		if m.Contains(x, y) {
			return m
		}
	}
	return nil
}

// Cell returns the map cell at a world tile. Outside the maps the border
// cell is returned: impassable at elevation 0.
func (w *World) Cell(x, y int) (tile.MapTile, bool) {
	if m := w.mapAt(x, y); m != nil {
		return m.cell(x, y), true
	}
	id, ok := w.borderMetatile(x, y)
	if !ok {
		return tile.MapTile{}, false
	}
	return tile.MapTile{MetatileID: id, Collision: 1, Elevation: 0}, true
}

// The border pattern is a 2x2 block repeating from the anchor's origin.
func (w *World) borderMetatile(x, y int) (int, bool) {
	anchor := w.Anchor()
	border := anchor.Layout.Border
	if len(border) == 0 {
		return 0, false
	}
	lx, ly := x-anchor.Layout.OffsetX, y-anchor.Layout.OffsetY
	i := (lx & 1) + (ly&1)*2
	return border[i%len(border)], true
}

// Resolve implements tile.ResolverFunc.
func (w *World) Resolve(x, y int) (tile.ResolvedTile, bool) {
	m := w.mapAt(x, y)
	if m == nil {
		m = w.Anchor()
	}
	cell, ok := w.Cell(x, y)
	if !ok {
		return tile.ResolvedTile{}, false
	}
	slot, ok := w.slots[m.Pair.ID()]
	if !ok {
		return tile.ResolvedTile{}, false
	}
	meta, attrs, ok := m.Pair.Metatile(cell.MetatileID)
	if !ok {
		return tile.ResolvedTile{}, false
	}
	return tile.ResolvedTile{Metatile: meta, Attributes: attrs, MapTile: cell, Pair: slot}, true
}

// IsVerticalObject implements tile.VerticalObjectFunc: normal-layer cells
// whose top layer is mostly opaque, excluding bridges.
func (w *World) IsVerticalObject(x, y int) bool {
	m := w.mapAt(x, y)
	if m == nil {
		m = w.Anchor()
	}
	cell, ok := w.Cell(x, y)
	if !ok {
		return false
	}
	meta, attrs, ok := m.Pair.Metatile(cell.MetatileID)
	if !ok || attrs == nil || attrs.LayerType != tile.LayerNormal {
		return false
	}
	if isBridgeBehavior(attrs.Behavior) {
		return false
	}
	transparent := 0
	for _, t := range meta.Layer(1) {
		transparent += m.Pair.TransparentPixels(t)
	}
	return transparent < verticalObjectThreshold
}

func isBridgeBehavior(b int) bool {
	switch {
	case b >= 112 && b <= 115, b == 120, b >= 122 && b <= 125, b == 127:
		return true
	}
	return false
}

// Snapshot lists the world's tileset pairs with their GPU slots.
func (w *World) Snapshot() pipeline.Snapshot {
	s := pipeline.Snapshot{Slots: make(map[string]int, len(w.slots))}
	for _, p := range w.pairs {
		s.Pairs = append(s.Pairs, p.Assets())
	}
	for id, slot := range w.slots {
		s.Slots[id] = slot
	}
	return s
}

// Bounds is the pixel rectangle covered by the maps.
func (w *World) Bounds() Bounds {
	minX, minY := math.MaxInt, math.MaxInt
	maxX, maxY := math.MinInt, math.MinInt
	for _, m := range w.maps {
		l := m.Layout
		minX = min(minX, l.OffsetX)
		minY = min(minY, l.OffsetY)
		maxX = max(maxX, l.OffsetX+l.Width)
		maxY = max(maxY, l.OffsetY+l.Height)
	}
	return Bounds{
		MinX:   float64(minX * tile.MetatileSize),
		MinY:   float64(minY * tile.MetatileSize),
		Width:  float64((maxX - minX) * tile.MetatileSize),
		Height: float64((maxY - minY) * tile.MetatileSize),
	}
}
