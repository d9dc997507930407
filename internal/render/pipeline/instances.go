package pipeline

import (
	"unsafe"

	"chosenoffset.com/fieldrender/internal/tile"
)

// PassInstances holds the instance lists of the three passes. Each list owns
// its backing array.
type PassInstances struct {
	Background []tile.Instance
	TopBelow   []tile.Instance
	TopAbove   []tile.Instance
}

// Reset truncates every list, keeping capacity.
func (p *PassInstances) Reset() {
	p.Background = p.Background[:0]
	p.TopBelow = p.TopBelow[:0]
	p.TopAbove = p.TopAbove[:0]
}

// mustNotAlias panics when two pass lists share a backing array.
func (p *PassInstances) mustNotAlias() {
	lists := [3][]tile.Instance{p.Background, p.TopBelow, p.TopAbove}
	for i := 0; i < len(lists); i++ {
		for j := i + 1; j < len(lists); j++ {
			if overlaps(lists[i], lists[j]) {
				panic("pipeline: pass instance lists share storage")
			}
		}
	}
}

func overlaps(a, b []tile.Instance) bool {
	if cap(a) == 0 || cap(b) == 0 {
		return false
	}
	size := unsafe.Sizeof(tile.Instance{})
	a0 := uintptr(unsafe.Pointer(unsafe.SliceData(a)))
	b0 := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	a1 := a0 + uintptr(cap(a))*size
	b1 := b0 + uintptr(cap(b))*size
	return a0 < b1 && b0 < a1
}

// BuildBackground appends layer 0 of every resolved metatile in view, plus
// layer 1 of covered metatiles, to dst.
func BuildBackground(dst []tile.Instance, view tile.CameraView, resolve tile.ResolverFunc) []tile.Instance {
	forEachResolved(view, resolve, func(r *tile.ResolvedTile, _, _ int, sx, sy float32) {
		dst = appendLayer(dst, r, 0, sx, sy)
		if r.LayerType() == tile.LayerCovered {
			dst = appendLayer(dst, r, 1, sx, sy)
		}
	})
	return dst
}

// BuildTopLayer appends layer 1 of every non-covered metatile the filter
// accepts to dst.
func BuildTopLayer(dst []tile.Instance, view tile.CameraView, resolve tile.ResolverFunc, filter tile.ElevationFilterFunc) []tile.Instance {
	forEachResolved(view, resolve, func(r *tile.ResolvedTile, wx, wy int, sx, sy float32) {
		if r.LayerType() == tile.LayerCovered {
			return
		}
		if filter != nil && !filter(r.MapTile, wx, wy) {
			return
		}
		dst = appendLayer(dst, r, 1, sx, sy)
	})
	return dst
}

// BuildAll rebuilds all three lists of p for the view.
func BuildAll(p *PassInstances, view tile.CameraView, resolve tile.ResolverFunc, below, above tile.ElevationFilterFunc) {
	p.Reset()
	p.Background = BuildBackground(p.Background, view, resolve)
	p.TopBelow = BuildTopLayer(p.TopBelow, view, resolve, below)
	p.TopAbove = BuildTopLayer(p.TopAbove, view, resolve, above)
	p.mustNotAlias()
}

func forEachResolved(view tile.CameraView, resolve tile.ResolverFunc, fn func(r *tile.ResolvedTile, wx, wy int, sx, sy float32)) {
	if resolve == nil {
		return
	}
	for ty := 0; ty < view.TilesHigh; ty++ {
		for tx := 0; tx < view.TilesWide; tx++ {
			wx, wy := view.StartX+tx, view.StartY+ty
			r, ok := resolve(wx, wy)
			if !ok {
				continue
			}
			fn(&r, wx, wy, float32(tx*tile.MetatileSize), float32(ty*tile.MetatileSize))
		}
	}
}

func appendLayer(dst []tile.Instance, r *tile.ResolvedTile, layer int, sx, sy float32) []tile.Instance {
	for i, t := range r.Metatile.Layer(layer) {
		kind, id := t.Split()
		dst = append(dst, tile.Instance{
			X:       sx + float32((i%2)*tile.Size),
			Y:       sy + float32((i/2)*tile.Size),
			TileID:  id,
			Palette: t.Palette & 0xF,
			XFlip:   t.XFlip,
			YFlip:   t.YFlip,
			Tileset: kind,
			Pair:    r.Pair,
		})
	}
	return dst
}
