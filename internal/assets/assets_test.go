package assets

import (
	"bytes"
	"encoding/json"
	"image/color"
	"strings"
	"testing"
	"testing/fstest"

	"chosenoffset.com/fieldrender/internal/tile"
)

func encodePNG(t *testing.T, im tile.IndexedImage) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := EncodeIndexedPNG(&buf, im, tile.BlackPalette()); err != nil {
		t.Fatalf("EncodeIndexedPNG failed: %v", err)
	}
	return buf.Bytes()
}

func encodePalette(t *testing.T, p tile.Palette) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := WritePalette(&buf, p); err != nil {
		t.Fatalf("WritePalette failed: %v", err)
	}
	return buf.Bytes()
}

func testAssetFS(t *testing.T) fstest.MapFS {
	t.Helper()
	tiles := tile.NewIndexedImage(128, 16)
	for i := range tiles.Pix {
		tiles.Pix[i] = byte(i % 16)
	}
	frame := tile.NewIndexedImage(16, 8)
	for i := range frame.Pix {
		frame.Pix[i] = 7
	}
	pal := tile.BlackPalette()
	pal.Colors[1] = color.RGBA{R: 255, A: 255}

	metatiles := []tile.Metatile{
		{Tiles: [8]tile.Tile{{ID: 1}, {ID: 2, XFlip: true}, {ID: 3, YFlip: true}, {ID: 4, Palette: 5}}},
	}
	attrs := []tile.Attributes{{Behavior: 0x20, LayerType: tile.LayerNormal}}
	cells := []tile.MapTile{
		{MetatileID: 0}, {MetatileID: 1, Collision: 1, Elevation: 3},
		{MetatileID: 513, Elevation: 15}, {MetatileID: 0, Collision: 3},
	}

	return fstest.MapFS{
		"world.json": {Data: []byte(`{"maps":["town"],"start":{"x":1,"y":1,"elevation":3}}`)},
		"tilesets/general/tiles.png":               {Data: encodePNG(t, tiles)},
		"tilesets/general/metatiles.bin":           {Data: EncodeMetatiles(metatiles)},
		"tilesets/general/metatile_attributes.bin": {Data: EncodeAttributes(attrs)},
		"tilesets/general/palettes/00.pal":         {Data: encodePalette(t, pal)},
		"tilesets/general/anim/water/0.png":        {Data: encodePNG(t, frame)},
		"tilesets/general/anim/water/1.png":        {Data: encodePNG(t, frame)},
		"tilesets/general/animations.json": {Data: []byte(`{"animations":[
			{"id":"water","tileset":"primary","frames":["anim/water/0.png","anim/water/1.png"],
			 "interval":16,"destinations":[{"destStart":432}]},
			{"id":"broken","tileset":"primary","frames":["anim/missing.png"],
			 "interval":8,"destinations":[{"destStart":0}]}
		]}`)},
		"maps/town/map.json": {Data: []byte(`{"width":2,"height":2,"primaryTileset":"general","secondaryTileset":"town"}`)},
		"maps/town/map.bin":  {Data: EncodeMapLayout(cells)},
	}
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	l, err := NewLoader(testAssetFS(t), 1<<20, nil)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	t.Cleanup(l.Close)
	return l
}

func TestParsePalette(t *testing.T) {
	src := "JASC-PAL\r\n0100\r\n16\r\n255 0 0\r\n0 255 0\r\n"
	p, err := ParsePalette(strings.NewReader(src))
	if err != nil {
		t.Fatalf("ParsePalette failed: %v", err)
	}
	if p.Colors[0] != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Expected red at 0, got %v", p.Colors[0])
	}
	if p.Colors[1] != (color.RGBA{G: 255, A: 255}) {
		t.Errorf("Expected green at 1, got %v", p.Colors[1])
	}
	if p.Colors[2] != (color.RGBA{A: 255}) {
		t.Errorf("Expected missing colors to be opaque black, got %v", p.Colors[2])
	}
}

func TestParsePaletteErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"empty", ""},
		{"bad header", "RIFF\r\n"},
		{"short line", "JASC-PAL\r\n0100\r\n16\r\n255 0\r\n"},
		{"out of range", "JASC-PAL\r\n0100\r\n16\r\n256 0 0\r\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePalette(strings.NewReader(tt.src)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestMetatileEncoding(t *testing.T) {
	in := []tile.Metatile{{ID: 0, Tiles: [8]tile.Tile{
		{ID: 1023, XFlip: true, YFlip: true, Palette: 15},
		{ID: 512, Palette: 6},
	}}}
	out, err := DecodeMetatiles(EncodeMetatiles(in))
	if err != nil {
		t.Fatalf("DecodeMetatiles failed: %v", err)
	}
	if out[0] != in[0] {
		t.Errorf("Expected %+v, got %+v", in[0], out[0])
	}
	if _, err := DecodeMetatiles(make([]byte, 15)); err == nil {
		t.Error("Expected an error for truncated metatile data")
	}
}

func TestMapLayoutBits(t *testing.T) {
	// metatile 0x005, collision 1, elevation 3
	data := []byte{0x05, 0x34}
	cells, err := DecodeMapLayout(data, 1, 1)
	if err != nil {
		t.Fatalf("DecodeMapLayout failed: %v", err)
	}
	want := tile.MapTile{MetatileID: 5, Collision: 1, Elevation: 3}
	if cells[0] != want {
		t.Errorf("Expected %+v, got %+v", want, cells[0])
	}
	if _, err := DecodeMapLayout(data, 2, 1); err == nil {
		t.Error("Expected an error for short map data")
	}
	if _, err := DecodeMapLayout(data, 0, 1); err == nil {
		t.Error("Expected an error for empty map size")
	}
}

func TestParseAnimationDefsDefaultsSequence(t *testing.T) {
	defs, err := ParseAnimationDefs([]byte(`{"animations":[{"id":"a","tileset":"secondary","frames":["x","y","z"],"interval":4,"destinations":[{"destStart":600,"phase":-1}]}]}`))
	if err != nil {
		t.Fatalf("ParseAnimationDefs failed: %v", err)
	}
	if got := defs[0].Sequence; len(got) != 3 || got[0] != 0 || got[2] != 2 {
		t.Errorf("Expected default sequence 0..2, got %v", got)
	}
	if defs[0].Destinations[0].Phase != -1 {
		t.Errorf("Expected phase -1, got %d", defs[0].Destinations[0].Phase)
	}
	if _, err := ParseAnimationDefs([]byte(`{"animations":[{"id":"a","tileset":"tertiary","frames":["x"]}]}`)); err == nil {
		t.Error("Expected an error for an unknown tileset kind")
	}
}

func TestLoaderTileset(t *testing.T) {
	l := newTestLoader(t)
	ts, err := l.Tileset("general")
	if err != nil {
		t.Fatalf("Tileset failed: %v", err)
	}
	if ts.Image.Width != 128 || ts.Image.Height != 16 {
		t.Errorf("Expected 128x16 image, got %dx%d", ts.Image.Width, ts.Image.Height)
	}
	if ts.Image.Pix[17] != 1 {
		t.Errorf("Expected pixel index 1, got %d", ts.Image.Pix[17])
	}
	if len(ts.Metatiles) != 1 || ts.Metatiles[0].Tiles[3].Palette != 5 {
		t.Errorf("Unexpected metatiles %+v", ts.Metatiles)
	}
	if len(ts.Attributes) != 1 || ts.Attributes[0].Behavior != 0x20 {
		t.Errorf("Unexpected attributes %+v", ts.Attributes)
	}
	if len(ts.Palettes) != tile.PaletteCount {
		t.Fatalf("Expected %d palettes, got %d", tile.PaletteCount, len(ts.Palettes))
	}
	if ts.Palettes[0].Colors[1] != (color.RGBA{R: 255, A: 255}) {
		t.Errorf("Expected palette 0 color 1 red, got %v", ts.Palettes[0].Colors[1])
	}
	if ts.Palettes[3].Colors[1] != (color.RGBA{A: 255}) {
		t.Errorf("Expected missing palette to be black, got %v", ts.Palettes[3].Colors[1])
	}
	if len(ts.Animations) != 1 {
		t.Fatalf("Expected the broken animation to be skipped, got %d", len(ts.Animations))
	}
	a := ts.Animations[0]
	if a.Width != 16 || a.Height != 8 || len(a.Frames) != 2 || a.Frames[1][0] != 7 {
		t.Errorf("Unexpected animation %+v", a)
	}
}

func TestLoaderCachesTileset(t *testing.T) {
	l := newTestLoader(t)
	first, err := l.Tileset("general")
	if err != nil {
		t.Fatalf("Tileset failed: %v", err)
	}
	second, err := l.Tileset("general")
	if err != nil {
		t.Fatalf("Tileset failed: %v", err)
	}
	if first != second {
		t.Error("Expected the second load to come from the cache")
	}
	if s := l.Stats(); s.Hits == 0 {
		t.Errorf("Expected a cache hit, got %+v", s)
	}

	l.Evict("general")
	third, err := l.Tileset("general")
	if err != nil {
		t.Fatalf("Tileset failed: %v", err)
	}
	if third == first {
		t.Error("Expected a fresh decode after eviction")
	}
}

func TestLoaderMissingTileset(t *testing.T) {
	l := newTestLoader(t)
	if _, err := l.Tileset("nowhere"); err == nil {
		t.Error("Expected an error for a missing tileset")
	}
}

func TestLoaderMapAndManifest(t *testing.T) {
	l := newTestLoader(t)
	m, err := l.Manifest()
	if err != nil {
		t.Fatalf("Manifest failed: %v", err)
	}
	if len(m.Maps) != 1 || m.Start.Elevation != 3 {
		t.Errorf("Unexpected manifest %+v", m)
	}

	layout, err := l.Map("town")
	if err != nil {
		t.Fatalf("Map failed: %v", err)
	}
	if layout.Name != "town" || layout.PrimaryTileset != "general" {
		t.Errorf("Unexpected header %+v", layout)
	}
	if len(layout.Cells) != 4 {
		t.Fatalf("Expected 4 cells, got %d", len(layout.Cells))
	}
	if got := layout.Cells[2]; got.MetatileID != 513 || got.Elevation != 15 {
		t.Errorf("Expected metatile 513 at elevation 15, got %+v", got)
	}
	if got := layout.Cells[3]; got.Collision != 3 {
		t.Errorf("Expected collision 3, got %d", got.Collision)
	}
}

func TestMapLayoutValidate(t *testing.T) {
	valid := func() MapLayout {
		return MapLayout{Width: 2, Height: 2, PrimaryTileset: "general", SecondaryTileset: "town"}
	}
	tests := []struct {
		name    string
		modify  func(m *MapLayout)
		wantErr bool
	}{
		{"valid", func(m *MapLayout) {}, false},
		{"valid border", func(m *MapLayout) { m.Border = []int{1, 2, 3, 4} }, false},
		{"zero width", func(m *MapLayout) { m.Width = 0 }, true},
		{"negative height", func(m *MapLayout) { m.Height = -1 }, true},
		{"no primary", func(m *MapLayout) { m.PrimaryTileset = "" }, true},
		{"no secondary", func(m *MapLayout) { m.SecondaryTileset = "" }, true},
		{"short border", func(m *MapLayout) { m.Border = []int{1, 2} }, true},
	}
	for _, tt := range tests {
		m := valid()
		tt.modify(&m)
		err := m.Validate()
		if tt.wantErr && err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%s: expected no error, got %v", tt.name, err)
		}
	}
}

func TestManifestValidate(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr bool
	}{
		{"valid", `{"maps":["town"],"start":{"elevation":3}}`, false},
		{"no maps", `{"maps":[]}`, true},
		{"empty name", `{"maps":["town",""]}`, true},
		{"elevation too high", `{"maps":["town"],"start":{"elevation":16}}`, true},
	}
	for _, tt := range tests {
		var m Manifest
		if err := json.Unmarshal([]byte(tt.data), &m); err != nil {
			t.Fatalf("%s: failed to parse JSON: %v", tt.name, err)
		}
		err := m.Validate()
		if tt.wantErr && err == nil {
			t.Errorf("%s: expected an error", tt.name)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%s: expected no error, got %v", tt.name, err)
		}
	}
}

func TestLoaderRejectsBadMapHeader(t *testing.T) {
	fsys := testAssetFS(t)
	fsys["maps/town/map.json"] = &fstest.MapFile{Data: []byte(`{"width":2,"height":2,"secondaryTileset":"town"}`)}
	l, err := NewLoader(fsys, 1<<20, nil)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	t.Cleanup(l.Close)
	if _, err := l.Map("town"); err == nil {
		t.Error("Expected an error for a header without a primary tileset")
	}
}
