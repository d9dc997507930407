package soft

import (
	"image"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

// rasterizeTile draws one 8x8 indexed tile with its palette. Index 0 is
// transparent; other entries blend over the destination by palette alpha.
func rasterizeTile(dst *image.RGBA, in tile.Instance, pair render.PairTextures) {
	src := pair.Primary
	if in.Tileset == tile.Secondary {
		src = pair.Secondary
	}
	set, ok := src.(*Texture)
	if !ok || set.pix == nil || set.format != render.FormatIndexed {
		return
	}
	pal, ok := pair.Palette.(*Texture)
	if !ok || pal.pix == nil || pal.format != render.FormatRGBA {
		return
	}

	cols, rows := tile.GridSize(set.w, set.h)
	if cols == 0 || in.TileID < 0 || in.TileID >= cols*rows {
		return
	}
	baseX := (in.TileID % cols) * tile.Size
	baseY := (in.TileID / cols) * tile.Size
	row := clamp(in.Palette, pal.h)
	x0, y0 := int(in.X), int(in.Y)
	b := dst.Bounds()

	for py := 0; py < tile.Size; py++ {
		dy := y0 + py
		if dy < b.Min.Y || dy >= b.Max.Y {
			continue
		}
		sy := py
		if in.YFlip {
			sy = tile.Size - 1 - py
		}
		for px := 0; px < tile.Size; px++ {
			dx := x0 + px
			if dx < b.Min.X || dx >= b.Max.X {
				continue
			}
			sx := px
			if in.XFlip {
				sx = tile.Size - 1 - px
			}
			index := int(set.pix[(baseY+sy)*set.w+baseX+sx])
			if index == 0 {
				continue
			}
			po := (row*pal.w + clamp(index, pal.w)) * 4
			blendOver(dst, dx, dy, pal.pix[po], pal.pix[po+1], pal.pix[po+2], pal.pix[po+3])
		}
	}
}

func clamp(v, size int) int {
	if v >= size {
		return size - 1
	}
	if v < 0 {
		return 0
	}
	return v
}

// blendOver composites a straight-alpha color onto a premultiplied pixel.
func blendOver(dst *image.RGBA, x, y int, r, g, b, a uint8) {
	if a == 0 {
		return
	}
	i := dst.PixOffset(x, y)
	p := dst.Pix[i : i+4 : i+4]
	if a == 0xFF {
		p[0], p[1], p[2], p[3] = r, g, b, a
		return
	}
	sa := uint32(a)
	inv := 255 - sa
	p[0] = uint8((uint32(r)*sa + uint32(p[0])*inv) / 255)
	p[1] = uint8((uint32(g)*sa + uint32(p[1])*inv) / 255)
	p[2] = uint8((uint32(b)*sa + uint32(p[2])*inv) / 255)
	p[3] = uint8(sa + uint32(p[3])*inv/255)
}
