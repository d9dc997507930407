package placeholders

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/assets"
	"chosenoffset.com/fieldrender/internal/render/pipeline"
	"chosenoffset.com/fieldrender/internal/render/soft"
	"chosenoffset.com/fieldrender/internal/tile"
	"chosenoffset.com/fieldrender/internal/world"
)

func loadGenerated(t *testing.T) *world.World {
	t.Helper()
	files, err := Generate().Files()
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	fsys := fstest.MapFS{}
	for name, data := range files {
		fsys[name] = &fstest.MapFile{Data: data}
	}
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	loader, err := assets.NewLoader(fsys, 0, logger)
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	t.Cleanup(loader.Close)
	manifest, err := loader.Manifest()
	if err != nil {
		t.Fatalf("Manifest failed: %v", err)
	}
	w, err := world.Load(loader, manifest, logger)
	if err != nil {
		t.Fatalf("world.Load failed: %v", err)
	}
	return w
}

func TestGeneratedFiles(t *testing.T) {
	files, err := Generate().Files()
	if err != nil {
		t.Fatalf("Files failed: %v", err)
	}
	for _, name := range []string{
		"world.json",
		"tilesets/general/tiles.png",
		"tilesets/general/palettes/00.pal",
		"tilesets/general/anim/water/2.png",
		"tilesets/town/palettes/06.pal",
		"tilesets/route/animations.json",
		"maps/town/map.bin",
		"maps/route/map.json",
	} {
		if _, ok := files[name]; !ok {
			t.Errorf("Expected %s to be generated", name)
		}
	}
}

func TestGeneratedWorldLoads(t *testing.T) {
	w := loadGenerated(t)
	if len(w.Maps()) != 2 {
		t.Fatalf("Expected 2 maps, got %d", len(w.Maps()))
	}

	tests := []struct {
		name     string
		x, y     int
		metatile int
		vertical bool
	}{
		{"town tree", 0, 0, MetaTree, true},
		{"town path", 5, 8, MetaPath, false},
		{"bridge", 4, 12, MetaBridge, false},
		{"roof", 13, 3, MetaRoof, true},
		{"tall grass", 12, 11, MetaTallGrass, false},
		{"route path", 22, 8, MetaPath, false},
		{"border", -1, -1, MetaTree, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := w.Resolve(tt.x, tt.y)
			if !ok {
				t.Fatalf("Expected (%d,%d) to resolve", tt.x, tt.y)
			}
			if r.MapTile.MetatileID != tt.metatile {
				t.Errorf("Expected metatile %d, got %d", tt.metatile, r.MapTile.MetatileID)
			}
			if got := w.IsVerticalObject(tt.x, tt.y); got != tt.vertical {
				t.Errorf("Expected vertical %v, got %v", tt.vertical, got)
			}
		})
	}

	bridge, _ := w.Resolve(4, 12)
	if bridge.MapTile.Elevation != bridgeElevation {
		t.Errorf("Expected bridge elevation %d, got %d", bridgeElevation, bridge.MapTile.Elevation)
	}
	town, _ := w.Resolve(5, 8)
	route, _ := w.Resolve(22, 8)
	if town.Pair == route.Pair {
		t.Errorf("Expected town and route in different slots, both got %d", town.Pair)
	}
}

func TestGeneratedWorldRenders(t *testing.T) {
	w := loadGenerated(t)
	dev := soft.NewDevice()
	p, err := pipeline.New(dev, pipeline.DefaultOptions())
	if err != nil {
		t.Fatalf("pipeline.New failed: %v", err)
	}
	defer p.Dispose()
	if err := p.UploadSnapshot(w.Snapshot()); err != nil {
		t.Fatalf("UploadSnapshot failed: %v", err)
	}
	p.SetTileResolver(w.Resolve)
	p.SetVerticalObjectChecker(w.IsVerticalObject)
	if !p.HasAnimations() {
		t.Error("Expected the generated tilesets to carry animations")
	}

	cam := world.NewCamera(world.CameraConfig{TilesWide: 15, TilesHigh: 10})
	cam.Follow(10*tile.MetatileSize, 8*tile.MetatileSize)
	path, err := p.Render(cam.View(1), groundElevation, pipeline.RenderOptions{})
	if err != nil {
		t.Fatalf("Render failed: %v", err)
	}
	if path != pipeline.PathFull {
		t.Errorf("Expected a full render, got %v", path)
	}
	if s := p.Stats(); s.Passes.Background == 0 {
		t.Errorf("Expected background instances, got %+v", s.Passes)
	}
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	written, err := Generate().Save(dir)
	if err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if len(written) == 0 {
		t.Fatal("Expected files to be written")
	}
	if _, err := os.Stat(filepath.Join(dir, "tilesets", "general", "metatiles.bin")); err != nil {
		t.Errorf("Expected metatiles.bin on disk: %v", err)
	}
}
