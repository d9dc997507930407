package pipeline

import (
	"fmt"
	"image"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

// Default grid reported for a tileset that was never uploaded (128x512 px).
const (
	defaultTilesetCols = 16
	defaultTilesetRows = 64
)

type tilesetSlot struct {
	tex    render.Texture
	cols   int
	rows   int
	loaded bool
}

type pairSlot struct {
	tilesets      [2]tilesetSlot // indexed by tile.Kind
	palette       render.Texture
	paletteLoaded bool
}

// TextureManager owns the indexed tileset textures and the palette lookup
// texture of every tileset pair. Pairs that were never uploaded are bound to
// 1x1 placeholders so every draw has valid samplers.
type TextureManager struct {
	dev   render.Device
	pairs [tile.MaxPairs]pairSlot
	bound []render.PairTextures
}

// NewTextureManager creates placeholder textures for every pair.
func NewTextureManager(dev render.Device) (*TextureManager, error) {
	m := &TextureManager{dev: dev}
	if err := m.Reset(); err != nil {
		return nil, err
	}
	return m, nil
}

// Reset drops every texture reference and recreates placeholders. It is
// used after a context restore, when the old textures are already gone.
func (m *TextureManager) Reset() error {
	m.pairs = [tile.MaxPairs]pairSlot{}
	for p := range m.pairs {
		slot := &m.pairs[p]
		for k := range slot.tilesets {
			tex, err := m.dev.NewTexture(1, 1, render.FormatIndexed)
			if err != nil {
				return fmt.Errorf("failed to create placeholder tileset: %w", err)
			}
			slot.tilesets[k].tex = tex
		}
		pal, err := m.dev.NewTexture(1, 1, render.FormatRGBA)
		if err != nil {
			return fmt.Errorf("failed to create placeholder palette: %w", err)
		}
		slot.palette = pal
	}
	return nil
}

func (m *TextureManager) slot(pair int) (*pairSlot, error) {
	if pair < 0 || pair >= tile.MaxPairs {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPair, pair)
	}
	return &m.pairs[pair], nil
}

// UploadTileset replaces a tileset texture wholesale and records its grid.
func (m *TextureManager) UploadTileset(pair int, kind tile.Kind, pix []byte, width, height int) error {
	slot, err := m.slot(pair)
	if err != nil {
		return err
	}
	ts := &slot.tilesets[kind]
	if err := ts.tex.Replace(pix, width, height); err != nil {
		return fmt.Errorf("failed to upload %s tileset of pair %d: %w", kind, pair, err)
	}
	ts.cols, ts.rows = tile.GridSize(width, height)
	ts.loaded = true
	return nil
}

// UpdateTilesetRegion patches a sub-rectangle of an uploaded tileset.
func (m *TextureManager) UpdateTilesetRegion(pair int, kind tile.Kind, pix []byte, x, y, width, height int) error {
	slot, err := m.slot(pair)
	if err != nil {
		return err
	}
	ts := &slot.tilesets[kind]
	if !ts.loaded {
		return fmt.Errorf("%w: %s tileset of pair %d", ErrNotUploaded, kind, pair)
	}
	return ts.tex.WriteRegion(pix, image.Rect(x, y, x+width, y+height))
}

// UploadPalettes builds the 16x16 palette texture. Color index 0 of every
// palette gets alpha 0; missing palettes stay fully transparent.
func (m *TextureManager) UploadPalettes(pair int, palettes []tile.Palette) error {
	slot, err := m.slot(pair)
	if err != nil {
		return err
	}
	pix := make([]byte, tile.ColorsPerPalette*tile.PaletteCount*4)
	for p := 0; p < len(palettes) && p < tile.PaletteCount; p++ {
		writePaletteRow(pix[p*tile.ColorsPerPalette*4:], palettes[p])
	}
	if err := slot.palette.Replace(pix, tile.ColorsPerPalette, tile.PaletteCount); err != nil {
		return fmt.Errorf("failed to upload palettes of pair %d: %w", pair, err)
	}
	slot.paletteLoaded = true
	return nil
}

// UpdatePalette rewrites one palette row.
func (m *TextureManager) UpdatePalette(pair, index int, palette tile.Palette) error {
	slot, err := m.slot(pair)
	if err != nil {
		return err
	}
	if index < 0 || index >= tile.PaletteCount {
		return fmt.Errorf("palette index %d out of range", index)
	}
	if !slot.paletteLoaded {
		return fmt.Errorf("%w: palettes of pair %d", ErrNotUploaded, pair)
	}
	row := make([]byte, tile.ColorsPerPalette*4)
	writePaletteRow(row, palette)
	return slot.palette.WriteRegion(row, image.Rect(0, index, tile.ColorsPerPalette, index+1))
}

func writePaletteRow(dst []byte, p tile.Palette) {
	for c, col := range p.Colors {
		o := c * 4
		dst[o], dst[o+1], dst[o+2] = col.R, col.G, col.B
		if c == 0 {
			dst[o+3] = 0
		} else {
			dst[o+3] = 0xFF
		}
	}
}

// TilesetSize returns the tile grid of a tileset, or the default grid when it
// was never uploaded.
func (m *TextureManager) TilesetSize(pair int, kind tile.Kind) (cols, rows int) {
	if pair < 0 || pair >= tile.MaxPairs || !m.pairs[pair].tilesets[kind].loaded {
		return defaultTilesetCols, defaultTilesetRows
	}
	ts := m.pairs[pair].tilesets[kind]
	return ts.cols, ts.rows
}

// Loaded reports whether both tilesets of a pair were uploaded.
func (m *TextureManager) Loaded(pair int) bool {
	if pair < 0 || pair >= tile.MaxPairs {
		return false
	}
	s := &m.pairs[pair]
	return s.tilesets[tile.Primary].loaded && s.tilesets[tile.Secondary].loaded
}

// Bindings returns the textures of every pair in pair order. The returned
// slice is reused by the next call.
func (m *TextureManager) Bindings() []render.PairTextures {
	m.bound = m.bound[:0]
	for p := range m.pairs {
		s := &m.pairs[p]
		m.bound = append(m.bound, render.PairTextures{
			Primary:   s.tilesets[tile.Primary].tex,
			Secondary: s.tilesets[tile.Secondary].tex,
			Palette:   s.palette,
		})
	}
	return m.bound
}

// Dispose releases every texture.
func (m *TextureManager) Dispose() {
	for p := range m.pairs {
		s := &m.pairs[p]
		for k := range s.tilesets {
			if s.tilesets[k].tex != nil {
				s.tilesets[k].tex.Dispose()
			}
		}
		if s.palette != nil {
			s.palette.Dispose()
		}
	}
	m.pairs = [tile.MaxPairs]pairSlot{}
}
