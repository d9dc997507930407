package placeholders

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"sort"

	"chosenoffset.com/fieldrender/internal/assets"
	"chosenoffset.com/fieldrender/internal/tile"
)

// Primary metatiles of the generated world.
const (
	MetaGrass = iota
	MetaPath
	MetaWater
	MetaTree
	MetaBridge
	MetaFlowers
)

// Secondary metatiles, in combined numbering.
const (
	MetaRoof = tile.SecondaryOffset + iota
	MetaWall
	MetaTallGrass
)

// Primary tile ids.
const (
	tileGrass   = 1
	tileGrass2  = 2
	tilePath    = 3
	tileWater   = 4 // 4..7, animated
	tileCanopy  = 8 // 8..11
	tilePlank   = 12
	tileFlower  = 13
	primaryTile = 14
)

// Secondary tile ids, local to the secondary sheet.
const (
	tileRoof      = 1 // 1..4
	tileWall      = 5 // 5..8
	tileTallGrass = 9 // 9..10, animated
	secondaryTile = 11
)

// Palette slots.
const (
	palTerrain   = 0
	palWater     = 1
	palBuilding  = 6
	palTallGrass = 7
)

const (
	groundElevation = 3
	bridgeElevation = 4
	bridgeBehavior  = 112
)

// Animation is one generated animation with its frames.
type Animation struct {
	Def    assets.AnimationDef
	Frames []tile.IndexedImage
}

// Tileset is one generated tileset directory.
type Tileset struct {
	Name       string
	Sheet      Sheet
	Metatiles  []tile.Metatile
	Attributes []tile.Attributes
	Palettes   map[int]tile.Palette
	Animations []Animation
}

// World is the complete generated asset set.
type World struct {
	Tilesets []*Tileset
	Maps     []*assets.MapLayout
	Manifest assets.Manifest
}

// Generate builds the demo world in memory.
func Generate() *World {
	w := &World{
		Tilesets: []*Tileset{
			generalTileset(),
			buildingTileset("town", color.RGBA{200, 64, 56, 255}),
			buildingTileset("route", color.RGBA{64, 96, 200, 255}),
		},
		Maps: []*assets.MapLayout{townMap(), routeMap()},
	}
	w.Manifest.Maps = []string{"town", "route"}
	w.Manifest.Start.X = 10
	w.Manifest.Start.Y = 8
	w.Manifest.Start.Elevation = groundElevation
	return w
}

func waterPixel(frame int) func(x, y int) byte {
	return func(x, y int) byte {
		switch {
		case (x+y+frame*3)%8 == 0:
			return 3
		case ((x-y+frame*2)%6+6)%6 == 0:
			return 2
		default:
			return 1
		}
	}
}

func generalTileset() *Tileset {
	s := NewSheet(primaryTile)
	s.Pattern(tileGrass, 1, 2, "dots")
	s.Pattern(tileGrass2, 1, 2, "diagonal")
	s.Pattern(tilePath, 3, 4, "dots")
	water := [4]int{tileWater, tileWater + 1, tileWater + 2, tileWater + 3}
	s.Block(water, waterPixel(0))
	s.Block([4]int{tileCanopy, tileCanopy + 1, tileCanopy + 2, tileCanopy + 3}, func(x, y int) byte {
		switch {
		case y >= 12 && x >= 6 && x <= 9:
			return 5
		case !Disc(x, y, 8):
			return 0
		case (x*y)%5 == 0:
			return 7
		default:
			return 6
		}
	})
	s.Pattern(tilePlank, 8, 9, "stripes")
	for _, p := range [][3]int{{2, 1, 10}, {1, 2, 10}, {3, 2, 10}, {2, 3, 10}, {2, 2, 11}, {6, 5, 11}} {
		s.Set(tileFlower, p[0], p[1], byte(p[2]))
	}

	grass := Layer(palTerrain, tileGrass, tileGrass2, tileGrass2, tileGrass)
	empty := Layer(palTerrain, 0)
	waterLayer := Layer(palWater, water[:]...)
	ts := &Tileset{
		Name:  "general",
		Sheet: s,
		Metatiles: []tile.Metatile{
			MetaGrass:   NewMetatile(grass, empty),
			MetaPath:    NewMetatile(Layer(palTerrain, tilePath), empty),
			MetaWater:   NewMetatile(waterLayer, empty),
			MetaTree:    NewMetatile(grass, Layer(palTerrain, tileCanopy, tileCanopy+1, tileCanopy+2, tileCanopy+3)),
			MetaBridge:  NewMetatile(waterLayer, Layer(palTerrain, tilePlank)),
			MetaFlowers: NewMetatile(grass, Layer(palTerrain, tileFlower, 0, 0, tileFlower)),
		},
		Attributes: []tile.Attributes{
			MetaGrass:   {LayerType: tile.LayerNormal},
			MetaPath:    {LayerType: tile.LayerNormal},
			MetaWater:   {LayerType: tile.LayerCovered},
			MetaTree:    {LayerType: tile.LayerNormal},
			MetaBridge:  {Behavior: bridgeBehavior, LayerType: tile.LayerNormal},
			MetaFlowers: {LayerType: tile.LayerNormal},
		},
		Palettes: map[int]tile.Palette{
			palTerrain: NewPalette(
				ColorPalette.Grass, Darken(ColorPalette.Grass, 0.8),
				ColorPalette.Path, Darken(ColorPalette.Path, 0.8),
				ColorPalette.Trunk, ColorPalette.Leaves, Darken(ColorPalette.Leaves, 0.7),
				ColorPalette.Plank, Darken(ColorPalette.Plank, 0.7),
				ColorPalette.FlowerRed, ColorPalette.FlowerGold,
			),
			palWater: NewPalette(ColorPalette.Water, Darken(ColorPalette.Water, 0.75), ColorPalette.Foam),
		},
	}

	anim := Animation{Def: assets.AnimationDef{
		ID:           "water",
		Tileset:      tile.Primary.String(),
		Sequence:     []int{0, 1, 2, 1},
		Interval:     16,
		Destinations: []tile.AnimationDestination{{DestStart: tileWater}},
	}}
	for f := 0; f < 3; f++ {
		anim.Def.Frames = append(anim.Def.Frames, fmt.Sprintf("anim/water/%d.png", f))
		anim.Frames = append(anim.Frames, Frame(tile.MetatileSize, tile.MetatileSize, waterPixel(f)))
	}
	ts.Animations = []Animation{anim}
	return ts
}

func tallGrassPixel(sway int) func(x, y int) byte {
	return func(x, y int) byte {
		bx := x - sway*(y/4)
		switch {
		case y < 2:
			return 0
		case bx%3 == 0 && y >= 2+x%2:
			return 1
		case bx%3 == 1 && y >= 4:
			return 2
		default:
			return 0
		}
	}
}

func buildingTileset(name string, roof color.RGBA) *Tileset {
	s := NewSheet(secondaryTile)
	s.Block([4]int{tileRoof, tileRoof + 1, tileRoof + 2, tileRoof + 3}, func(x, y int) byte {
		if y%4 == 3 {
			return 2
		}
		return 1
	})
	s.Block([4]int{tileWall, tileWall + 1, tileWall + 2, tileWall + 3}, func(x, y int) byte {
		switch {
		case x >= 7 && x <= 8 && y >= 9:
			return 6
		case (x >= 2 && x <= 4 || x >= 11 && x <= 13) && y >= 4 && y <= 7:
			return 5
		case y == 15:
			return 4
		default:
			return 3
		}
	})
	grassFrame := Frame(tile.Size, tile.Size, tallGrassPixel(0))
	copyTile(s, tileTallGrass, grassFrame)
	copyTile(s, tileTallGrass+1, grassFrame)

	sec := func(ids ...int) []int {
		out := make([]int, len(ids))
		for i, id := range ids {
			out[i] = tile.SecondaryOffset + id
		}
		return out
	}
	grass := Layer(palTerrain, tileGrass, tileGrass2, tileGrass2, tileGrass)
	ts := &Tileset{
		Name:  name,
		Sheet: s,
		Metatiles: []tile.Metatile{
			MetaRoof - tile.SecondaryOffset:      NewMetatile(grass, Layer(palBuilding, sec(tileRoof, tileRoof+1, tileRoof+2, tileRoof+3)...)),
			MetaWall - tile.SecondaryOffset:      NewMetatile(Layer(palBuilding, sec(tileWall, tileWall+1, tileWall+2, tileWall+3)...), Layer(palTerrain, 0)),
			MetaTallGrass - tile.SecondaryOffset: NewMetatile(grass, Layer(palTallGrass, sec(tileTallGrass, tileTallGrass+1, tileTallGrass+1, tileTallGrass)...)),
		},
		Attributes: []tile.Attributes{
			MetaRoof - tile.SecondaryOffset:      {LayerType: tile.LayerNormal},
			MetaWall - tile.SecondaryOffset:      {LayerType: tile.LayerCovered},
			MetaTallGrass - tile.SecondaryOffset: {LayerType: tile.LayerNormal},
		},
		Palettes: map[int]tile.Palette{
			palBuilding: NewPalette(roof, Darken(roof, 0.7),
				ColorPalette.Wall, Darken(ColorPalette.Wall, 0.8),
				ColorPalette.Window, ColorPalette.Door),
			palTallGrass: NewPalette(ColorPalette.TallGrass, Lighten(ColorPalette.TallGrass, 0.3)),
		},
	}

	anim := Animation{Def: assets.AnimationDef{
		ID:       name + "_tall_grass",
		Tileset:  tile.Secondary.String(),
		Sequence: []int{0, 1},
		Interval: 24,
		Destinations: []tile.AnimationDestination{
			{DestStart: tile.SecondaryOffset + tileTallGrass},
			{DestStart: tile.SecondaryOffset + tileTallGrass + 1, Phase: 1},
		},
	}}
	for f := 0; f < 2; f++ {
		anim.Def.Frames = append(anim.Def.Frames, fmt.Sprintf("anim/tall_grass/%d.png", f))
		anim.Frames = append(anim.Frames, Frame(tile.Size, tile.Size, tallGrassPixel(f)))
	}
	ts.Animations = []Animation{anim}
	return ts
}

func copyTile(s Sheet, id int, src tile.IndexedImage) {
	for y := 0; y < tile.Size; y++ {
		for x := 0; x < tile.Size; x++ {
			s.Set(id, x, y, src.Pix[y*src.Width+x])
		}
	}
}

type layoutBuilder struct {
	l *assets.MapLayout
}

func newLayout(name string, w, h, offsetX, offsetY int, secondary string) layoutBuilder {
	l := &assets.MapLayout{
		Name:             name,
		Width:            w,
		Height:           h,
		PrimaryTileset:   "general",
		SecondaryTileset: secondary,
		OffsetX:          offsetX,
		OffsetY:          offsetY,
		Border:           []int{MetaTree, MetaGrass, MetaGrass, MetaTree},
		Cells:            make([]tile.MapTile, w*h),
	}
	for i := range l.Cells {
		l.Cells[i] = tile.MapTile{MetatileID: MetaGrass, Elevation: groundElevation}
	}
	return layoutBuilder{l}
}

func (b layoutBuilder) set(x, y, id, collision, elevation int) {
	b.l.Cells[y*b.l.Width+x] = tile.MapTile{MetatileID: id, Collision: collision, Elevation: elevation}
}

func (b layoutBuilder) fill(x0, y0, x1, y1, id, collision int) {
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			b.set(x, y, id, collision, groundElevation)
		}
	}
}

func (b layoutBuilder) house(x, y, width int) {
	b.fill(x, y, x+width-1, y, MetaRoof, 1)
	b.fill(x, y+1, x+width-1, y+1, MetaWall, 1)
}

// townMap has a pond crossed by a raised bridge, a house and tall grass.
func townMap() *assets.MapLayout {
	b := newLayout("town", 20, 16, 0, 0, "town")
	w, h := b.l.Width, b.l.Height
	b.fill(0, 0, w-1, 0, MetaTree, 1)
	b.fill(0, h-1, w-1, h-1, MetaTree, 1)
	b.fill(0, 0, 0, h-1, MetaTree, 1)
	b.fill(w-1, 0, w-1, h-1, MetaTree, 1)
	b.fill(1, 8, w-1, 8, MetaPath, 0)
	b.fill(10, 1, 10, h-2, MetaPath, 0)
	b.fill(2, 10, 7, 14, MetaWater, 1)
	for x := 2; x <= 7; x++ {
		b.set(x, 12, MetaBridge, 0, bridgeElevation)
	}
	b.house(13, 3, 4)
	b.fill(12, 11, 17, 13, MetaTallGrass, 0)
	for _, p := range [][2]int{{3, 4}, {5, 5}, {7, 3}, {14, 6}} {
		b.set(p[0], p[1], MetaFlowers, 0, groundElevation)
	}
	return b.l
}

// routeMap continues the town path east.
func routeMap() *assets.MapLayout {
	b := newLayout("route", 16, 16, 20, 0, "route")
	w, h := b.l.Width, b.l.Height
	b.fill(0, 0, w-1, 0, MetaTree, 1)
	b.fill(0, h-1, w-1, h-1, MetaTree, 1)
	b.fill(w-1, 0, w-1, h-1, MetaTree, 1)
	b.fill(0, 8, w-2, 8, MetaPath, 0)
	b.house(5, 3, 3)
	b.fill(8, 10, 13, 13, MetaTallGrass, 0)
	for _, p := range [][2]int{{2, 11}, {3, 12}, {12, 4}} {
		b.set(p[0], p[1], MetaTree, 1, groundElevation)
	}
	return b.l
}

// Files encodes the world as an asset tree keyed by slash-separated path.
func (w *World) Files() (map[string][]byte, error) {
	files := make(map[string][]byte)
	for _, ts := range w.Tilesets {
		dir := assets.TilesetDir + "/" + ts.Name + "/"
		display := ts.Palettes[minKey(ts.Palettes)]

		var buf bytes.Buffer
		if err := assets.EncodeIndexedPNG(&buf, ts.Sheet.IndexedImage, display); err != nil {
			return nil, fmt.Errorf("failed to encode tileset %s: %w", ts.Name, err)
		}
		files[dir+assets.TilesetImageFile] = buf.Bytes()
		files[dir+assets.MetatilesFile] = assets.EncodeMetatiles(ts.Metatiles)
		files[dir+assets.AttributesFile] = assets.EncodeAttributes(ts.Attributes)

		for slot, pal := range ts.Palettes {
			var pb bytes.Buffer
			if err := assets.WritePalette(&pb, pal); err != nil {
				return nil, fmt.Errorf("failed to encode palette %d of %s: %w", slot, ts.Name, err)
			}
			files[fmt.Sprintf("%s%s/%02d.pal", dir, assets.PaletteDir, slot)] = pb.Bytes()
		}

		if len(ts.Animations) == 0 {
			continue
		}
		defs := make([]assets.AnimationDef, 0, len(ts.Animations))
		for _, a := range ts.Animations {
			defs = append(defs, a.Def)
			for i, f := range a.Frames {
				var fb bytes.Buffer
				if err := assets.EncodeIndexedPNG(&fb, f, display); err != nil {
					return nil, fmt.Errorf("failed to encode animation %s frame %d: %w", a.Def.ID, i, err)
				}
				files[dir+a.Def.Frames[i]] = fb.Bytes()
			}
		}
		data, err := assets.MarshalAnimationDefs(defs)
		if err != nil {
			return nil, fmt.Errorf("failed to encode animations of %s: %w", ts.Name, err)
		}
		files[dir+assets.AnimationsFile] = data
	}

	for _, m := range w.Maps {
		dir := assets.MapDir + "/" + m.Name + "/"
		header, err := json.MarshalIndent(m, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode map %s: %w", m.Name, err)
		}
		files[dir+assets.MapHeaderFile] = header
		files[dir+assets.MapLayoutFile] = assets.EncodeMapLayout(m.Cells)
	}

	manifest, err := json.MarshalIndent(w.Manifest, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	files[assets.ManifestFile] = manifest
	return files, nil
}

func minKey(m map[int]tile.Palette) int {
	first := true
	k := 0
	for i := range m {
		if first || i < k {
			k, first = i, false
		}
	}
	return k
}

// Save writes the asset tree under dir and returns the written paths.
func (w *World) Save(dir string) ([]string, error) {
	files, err := w.Files()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	written := make([]string, 0, len(names))
	for _, name := range names {
		p := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return written, fmt.Errorf("failed to create directory for %s: %w", name, err)
		}
		if err := os.WriteFile(p, files[name], 0644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, p)
	}
	return written, nil
}
