package tile

// Flag layout of a packed instance.
const (
	flagYFlip    = 1 << 0
	flagXFlip    = 1 << 1
	flagTileset  = 1 << 2
	paletteShift = 3
	paletteMask  = 0xF
	pairShift    = 7
	pairMask     = 0x3
)

// FloatsPerInstance is the packed record width: x, y, tileId, flags.
const FloatsPerInstance = 4

// Instance is one 8x8 tile placed on a pass target.
type Instance struct {
	X, Y    float32
	TileID  int
	Palette int
	XFlip   bool
	YFlip   bool
	Tileset Kind
	Pair    int
}

// Flags packs the per-instance bits: yflip | xflip | tileset | palette(4) | pair(2).
func (in Instance) Flags() uint32 {
	var f uint32
	if in.YFlip {
		f |= flagYFlip
	}
	if in.XFlip {
		f |= flagXFlip
	}
	if in.Tileset == Secondary {
		f |= flagTileset
	}
	f |= uint32(in.Palette&paletteMask) << paletteShift
	f |= uint32(in.Pair&pairMask) << pairShift
	return f
}

// Pack writes the instance as {x, y, tileId, flags} into dst, which must hold
// at least FloatsPerInstance values.
func (in Instance) Pack(dst []float32) {
	dst[0] = in.X
	dst[1] = in.Y
	dst[2] = float32(in.TileID)
	dst[3] = float32(in.Flags())
}

// Unpack is the inverse of Pack.
func Unpack(src []float32) Instance {
	f := uint32(src[3])
	in := Instance{
		X:       src[0],
		Y:       src[1],
		TileID:  int(src[2]),
		YFlip:   f&flagYFlip != 0,
		XFlip:   f&flagXFlip != 0,
		Palette: int(f>>paletteShift) & paletteMask,
		Pair:    int(f>>pairShift) & pairMask,
	}
	if f&flagTileset != 0 {
		in.Tileset = Secondary
	}
	return in
}

// PackAll packs instances into dst, growing it when needed, and returns it.
func PackAll(dst []float32, instances []Instance) []float32 {
	n := len(instances) * FloatsPerInstance
	if cap(dst) < n {
		dst = make([]float32, n)
	}
	dst = dst[:n]
	for i, in := range instances {
		in.Pack(dst[i*FloatsPerInstance:])
	}
	return dst
}
