// Package placeholders generates a small indexed demo world: tilesets,
// palettes, animation frames and two stitched maps, encoded in the same
// formats the asset loader reads.
package placeholders

import (
	"image/color"

	"chosenoffset.com/fieldrender/internal/tile"
)

// TilesetWidth is the pixel width of every generated tileset image.
const TilesetWidth = tile.TilesPerRow * tile.Size

// ColorPalette holds the base colors the generated palettes are shaded from.
var ColorPalette = struct {
	Grass      color.RGBA
	Path       color.RGBA
	Trunk      color.RGBA
	Leaves     color.RGBA
	Plank      color.RGBA
	FlowerRed  color.RGBA
	FlowerGold color.RGBA

	Water color.RGBA
	Foam  color.RGBA

	Wall      color.RGBA
	Window    color.RGBA
	Door      color.RGBA
	TallGrass color.RGBA
}{
	Grass:      color.RGBA{96, 176, 72, 255},
	Path:       color.RGBA{208, 184, 128, 255},
	Trunk:      color.RGBA{120, 80, 48, 255},
	Leaves:     color.RGBA{40, 120, 56, 255},
	Plank:      color.RGBA{168, 120, 72, 255},
	FlowerRed:  color.RGBA{232, 64, 64, 255},
	FlowerGold: color.RGBA{248, 208, 48, 255},

	Water: color.RGBA{64, 128, 224, 255},
	Foam:  color.RGBA{224, 240, 255, 255},

	Wall:      color.RGBA{232, 224, 200, 255},
	Window:    color.RGBA{136, 200, 248, 255},
	Door:      color.RGBA{112, 72, 40, 255},
	TallGrass: color.RGBA{64, 152, 64, 255},
}

// Darken returns a darker version of a color
func Darken(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

// Lighten returns a lighter version of a color
func Lighten(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) + (255-float64(c.R))*factor),
		G: uint8(float64(c.G) + (255-float64(c.G))*factor),
		B: uint8(float64(c.B) + (255-float64(c.B))*factor),
		A: c.A,
	}
}

// NewPalette builds a palette from colors for entries 1..n. Entry 0 is the
// transparent key and stays black.
func NewPalette(colors ...color.RGBA) tile.Palette {
	p := tile.BlackPalette()
	for i, c := range colors {
		if i+1 >= tile.ColorsPerPalette {
			break
		}
		p.Colors[i+1] = c
	}
	return p
}

// Sheet is an indexed tileset image addressed by tile id.
type Sheet struct {
	tile.IndexedImage
}

// NewSheet allocates a transparent sheet with room for n tiles.
func NewSheet(n int) Sheet {
	rows := (n + tile.TilesPerRow - 1) / tile.TilesPerRow
	return Sheet{tile.NewIndexedImage(TilesetWidth, rows*tile.Size)}
}

// Set writes one pixel of tile id.
func (s Sheet) Set(id, x, y int, v byte) {
	ox := (id % tile.TilesPerRow) * tile.Size
	oy := (id / tile.TilesPerRow) * tile.Size
	s.Pix[(oy+y)*s.Width+ox+x] = v
}

// Solid fills a tile with one color index.
func (s Sheet) Solid(id int, v byte) {
	for y := 0; y < tile.Size; y++ {
		for x := 0; x < tile.Size; x++ {
			s.Set(id, x, y, v)
		}
	}
}

// Pattern fills a tile with base and draws a simple pattern in accent.
func (s Sheet) Pattern(id int, base, accent byte, pattern string) {
	s.Solid(id, base)
	switch pattern {
	case "grid":
		for i := 0; i < tile.Size; i += 4 {
			for x := 0; x < tile.Size; x++ {
				s.Set(id, x, i, accent)
				s.Set(id, i, x, accent)
			}
		}
	case "dots":
		for _, p := range [][2]int{{1, 2}, {5, 1}, {3, 5}, {6, 6}} {
			s.Set(id, p[0], p[1], accent)
		}
	case "stripes":
		for y := 0; y < tile.Size; y += 3 {
			for x := 0; x < tile.Size; x++ {
				s.Set(id, x, y, accent)
			}
		}
	case "diagonal":
		for i := 0; i < tile.Size; i++ {
			s.Set(id, i, i, accent)
			s.Set(id, i, tile.Size-1-i, accent)
		}
	}
}

// Block draws a 16x16 shape over four tiles laid out as a metatile layer
// (top-left, top-right, bottom-left, bottom-right). fn returns the color
// index at a pixel; 0 leaves it transparent.
func (s Sheet) Block(ids [4]int, fn func(x, y int) byte) {
	for y := 0; y < tile.MetatileSize; y++ {
		for x := 0; x < tile.MetatileSize; x++ {
			i := (y/tile.Size)*2 + x/tile.Size
			s.Set(ids[i], x%tile.Size, y%tile.Size, fn(x, y))
		}
	}
}

// Frame is a standalone animation frame w x h pixels.
func Frame(w, h int, fn func(x, y int) byte) tile.IndexedImage {
	im := tile.NewIndexedImage(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			im.Pix[y*w+x] = fn(x, y)
		}
	}
	return im
}

// Disc reports whether a pixel of a 16x16 block lies inside a centered
// circle of radius r.
func Disc(x, y int, r float64) bool {
	dx := float64(x) - 7.5
	dy := float64(y) - 7.5
	return dx*dx+dy*dy <= r*r
}

// Layer returns four tiles sharing a palette.
func Layer(palette int, ids ...int) [4]tile.Tile {
	var out [4]tile.Tile
	for i := range out {
		out[i] = tile.Tile{ID: ids[i%len(ids)], Palette: palette}
	}
	return out
}

// NewMetatile joins a bottom and top layer.
func NewMetatile(bottom, top [4]tile.Tile) tile.Metatile {
	var m tile.Metatile
	copy(m.Tiles[:4], bottom[:])
	copy(m.Tiles[4:], top[:])
	return m
}
