package pipeline

import (
	"image/color"
	"testing"

	"chosenoffset.com/fieldrender/internal/render/soft"
	"chosenoffset.com/fieldrender/internal/tile"
)

type cellKey struct{ x, y int }

// fakeWorld is a sparse grid of resolved cells.
type fakeWorld map[cellKey]tile.ResolvedTile

func (w fakeWorld) resolve(x, y int) (tile.ResolvedTile, bool) {
	r, ok := w[cellKey{x, y}]
	return r, ok
}

// metatileWith builds a metatile whose layer 0 uses ids base..base+3 and
// layer 1 uses top..top+3.
func metatileWith(base, top, palette int) tile.Metatile {
	var m tile.Metatile
	for i := 0; i < tile.TilesPerLayer; i++ {
		m.Tiles[i] = tile.Tile{ID: base + i, Palette: palette}
		m.Tiles[tile.TilesPerLayer+i] = tile.Tile{ID: top + i, Palette: palette}
	}
	return m
}

func normalCell(m tile.Metatile, elevation, collision int) tile.ResolvedTile {
	return tile.ResolvedTile{
		Metatile:   m,
		Attributes: &tile.Attributes{LayerType: tile.LayerNormal},
		MapTile:    tile.MapTile{Elevation: elevation, Collision: collision},
	}
}

// filledTileset returns a tileset where every pixel has the given index.
func filledTileset(width, height int, index byte) tile.IndexedImage {
	im := tile.NewIndexedImage(width, height)
	for i := range im.Pix {
		im.Pix[i] = index
	}
	return im
}

func redPalettes() []tile.Palette {
	p := tile.BlackPalette()
	p.Colors[1] = color.RGBA{R: 255, A: 255}
	return []tile.Palette{p}
}

func newTestPipeline(t *testing.T, opts Options) (*Pipeline, *soft.Device) {
	t.Helper()
	dev := soft.NewDevice()
	p, err := New(dev, opts)
	if err != nil {
		t.Fatalf("Failed to create pipeline: %v", err)
	}
	t.Cleanup(p.Dispose)
	return p, dev
}

// readyPipeline returns a pipeline with a 2x2 world and one uploaded pair.
func readyPipeline(t *testing.T, opts Options) (*Pipeline, *soft.Device, fakeWorld) {
	t.Helper()
	p, dev := newTestPipeline(t, opts)
	world := fakeWorld{}
	for y := 0; y < 2; y++ {
		for x := 0; x < 2; x++ {
			world[cellKey{x, y}] = normalCell(metatileWith(0, 4, 0), 0, 0)
		}
	}
	p.SetTileResolver(world.resolve)
	err := p.UploadTilesets(0, TilesetPair{
		Primary:   filledTileset(128, 64, 1),
		Secondary: filledTileset(128, 64, 1),
	})
	if err != nil {
		t.Fatalf("Failed to upload tilesets: %v", err)
	}
	if err := p.UploadPalettes(0, redPalettes()); err != nil {
		t.Fatalf("Failed to upload palettes: %v", err)
	}
	return p, dev, world
}

func view2x2() tile.CameraView {
	return tile.CameraView{TilesWide: 2, TilesHigh: 2}
}
