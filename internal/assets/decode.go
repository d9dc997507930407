package assets

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"strconv"
	"strings"

	"chosenoffset.com/fieldrender/internal/tile"
)

const (
	jascHeader  = "JASC-PAL"
	jascVersion = "0100"

	metatileBytes = tile.TilesPerMetatile * 2

	tileIDMask     = 0x3FF
	tileXFlipBit   = 0x400
	tileYFlipBit   = 0x800
	tilePaletteSh  = 12
	behaviorMask   = 0xFF
	layerTypeShift = 12
	collisionShift = 10
	elevationShift = 12
	nibbleMask     = 0xF
)

// ParsePalette reads a JASC-PAL palette. Colors past the sixteenth are
// ignored; missing colors stay opaque black.
func ParsePalette(r io.Reader) (tile.Palette, error) {
	pal := tile.BlackPalette()
	sc := bufio.NewScanner(r)
	line := 0
	n := 0
	for sc.Scan() {
		text := strings.TrimSpace(sc.Text())
		switch line {
		case 0:
			if text != jascHeader {
				return pal, fmt.Errorf("invalid palette header %q", text)
			}
		case 1, 2:
			// version and declared color count
		default:
			if text == "" || n >= tile.ColorsPerPalette {
				break
			}
			c, err := parseRGBLine(text)
			if err != nil {
				return pal, fmt.Errorf("palette line %d: %w", line+1, err)
			}
			pal.Colors[n] = c
			n++
		}
		line++
	}
	if err := sc.Err(); err != nil {
		return pal, fmt.Errorf("failed to read palette: %w", err)
	}
	if line == 0 {
		return pal, fmt.Errorf("empty palette")
	}
	return pal, nil
}

func parseRGBLine(s string) (color.RGBA, error) {
	parts := strings.Fields(s)
	if len(parts) < 3 {
		return color.RGBA{}, fmt.Errorf("expected 3 components, got %d", len(parts))
	}
	var v [3]uint8
	for i := range v {
		n, err := strconv.ParseUint(parts[i], 10, 8)
		if err != nil {
			return color.RGBA{}, fmt.Errorf("invalid component %q", parts[i])
		}
		v[i] = uint8(n)
	}
	return color.RGBA{R: v[0], G: v[1], B: v[2], A: 0xFF}, nil
}

// WritePalette writes p in JASC-PAL format.
func WritePalette(w io.Writer, p tile.Palette) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%s\r\n%s\r\n%d\r\n", jascHeader, jascVersion, tile.ColorsPerPalette)
	for _, c := range p.Colors {
		fmt.Fprintf(bw, "%d %d %d\r\n", c.R, c.G, c.B)
	}
	return bw.Flush()
}

// DecodeIndexedPNG decodes a palette-indexed PNG (4 or 8 bpp) into palette
// indices.
func DecodeIndexedPNG(r io.Reader) (tile.IndexedImage, error) {
	img, err := png.Decode(r)
	if err != nil {
		return tile.IndexedImage{}, fmt.Errorf("failed to decode png: %w", err)
	}
	pal, ok := img.(*image.Paletted)
	if !ok {
		return tile.IndexedImage{}, fmt.Errorf("png is not palette-indexed (%T)", img)
	}
	b := pal.Bounds()
	out := tile.NewIndexedImage(b.Dx(), b.Dy())
	for y := 0; y < b.Dy(); y++ {
		copy(out.Pix[y*out.Width:(y+1)*out.Width], pal.Pix[y*pal.Stride:y*pal.Stride+b.Dx()])
	}
	return out, nil
}

// EncodeIndexedPNG writes im as an indexed PNG using p for display colors.
func EncodeIndexedPNG(w io.Writer, im tile.IndexedImage, p tile.Palette) error {
	if err := im.Validate(); err != nil {
		return err
	}
	cp := make(color.Palette, tile.ColorsPerPalette)
	for i, c := range p.Colors {
		cp[i] = c
	}
	img := image.NewPaletted(image.Rect(0, 0, im.Width, im.Height), cp)
	for i, v := range im.Pix[:im.Width*im.Height] {
		img.Pix[i] = v & nibbleMask
	}
	return png.Encode(w, img)
}

// DecodeMetatiles parses metatiles.bin: eight little-endian uint16 tile
// entries per metatile.
func DecodeMetatiles(data []byte) ([]tile.Metatile, error) {
	if len(data)%metatileBytes != 0 {
		return nil, fmt.Errorf("metatile data length %d is not a multiple of %d", len(data), metatileBytes)
	}
	out := make([]tile.Metatile, len(data)/metatileBytes)
	for i := range out {
		out[i].ID = i
		for j := 0; j < tile.TilesPerMetatile; j++ {
			raw := binary.LittleEndian.Uint16(data[i*metatileBytes+j*2:])
			out[i].Tiles[j] = tile.Tile{
				ID:      int(raw & tileIDMask),
				XFlip:   raw&tileXFlipBit != 0,
				YFlip:   raw&tileYFlipBit != 0,
				Palette: int(raw>>tilePaletteSh) & nibbleMask,
			}
		}
	}
	return out, nil
}

// EncodeMetatiles is the inverse of DecodeMetatiles.
func EncodeMetatiles(metatiles []tile.Metatile) []byte {
	out := make([]byte, len(metatiles)*metatileBytes)
	for i, m := range metatiles {
		for j, t := range m.Tiles {
			raw := uint16(t.ID&tileIDMask) | uint16(t.Palette&nibbleMask)<<tilePaletteSh
			if t.XFlip {
				raw |= tileXFlipBit
			}
			if t.YFlip {
				raw |= tileYFlipBit
			}
			binary.LittleEndian.PutUint16(out[i*metatileBytes+j*2:], raw)
		}
	}
	return out
}

// DecodeAttributes parses metatile_attributes.bin.
func DecodeAttributes(data []byte) ([]tile.Attributes, error) {
	if len(data)%2 != 0 {
		return nil, fmt.Errorf("attribute data length %d is odd", len(data))
	}
	out := make([]tile.Attributes, len(data)/2)
	for i := range out {
		raw := binary.LittleEndian.Uint16(data[i*2:])
		out[i] = tile.Attributes{
			Behavior:  int(raw & behaviorMask),
			LayerType: tile.LayerType(raw>>layerTypeShift) & nibbleMask,
		}
	}
	return out, nil
}

// EncodeAttributes is the inverse of DecodeAttributes.
func EncodeAttributes(attrs []tile.Attributes) []byte {
	out := make([]byte, len(attrs)*2)
	for i, a := range attrs {
		raw := uint16(a.Behavior&behaviorMask) | uint16(a.LayerType&nibbleMask)<<layerTypeShift
		binary.LittleEndian.PutUint16(out[i*2:], raw)
	}
	return out
}

// DecodeMapLayout parses map.bin for a width x height map.
func DecodeMapLayout(data []byte, width, height int) ([]tile.MapTile, error) {
	n := width * height
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid map size %dx%d", width, height)
	}
	if len(data) < n*2 {
		return nil, fmt.Errorf("map data holds %d cells, need %d", len(data)/2, n)
	}
	out := make([]tile.MapTile, n)
	for i := range out {
		raw := binary.LittleEndian.Uint16(data[i*2:])
		out[i] = tile.MapTile{
			MetatileID: int(raw & tileIDMask),
			Collision:  int(raw>>collisionShift) & 0x3,
			Elevation:  int(raw>>elevationShift) & nibbleMask,
		}
	}
	return out, nil
}

// EncodeMapLayout is the inverse of DecodeMapLayout.
func EncodeMapLayout(cells []tile.MapTile) []byte {
	out := make([]byte, len(cells)*2)
	for i, c := range cells {
		raw := uint16(c.MetatileID&tileIDMask) |
			uint16(c.Collision&0x3)<<collisionShift |
			uint16(c.Elevation&nibbleMask)<<elevationShift
		binary.LittleEndian.PutUint16(out[i*2:], raw)
	}
	return out
}
