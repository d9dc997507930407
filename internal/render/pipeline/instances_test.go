package pipeline

import (
	"testing"

	"chosenoffset.com/fieldrender/internal/tile"
)

func TestBuildAllTwoByTwo(t *testing.T) {
	const playerElevation = 4
	world := fakeWorld{
		{0, 0}: normalCell(metatileWith(0, 4, 0), 0, 0),
		{1, 0}: normalCell(metatileWith(0, 4, 0), 0, 0),
		{0, 1}: normalCell(metatileWith(0, 4, 0), 0, 0),
		{1, 1}: normalCell(metatileWith(0, 4, 0), playerElevation, 1),
	}
	below, above := NewElevationFilter(nil).Filters(playerElevation)

	var p PassInstances
	BuildAll(&p, view2x2(), world.resolve, below, above)

	if len(p.Background) != 16 {
		t.Errorf("Expected 16 background instances, got %d", len(p.Background))
	}
	if len(p.TopBelow) != 12 {
		t.Errorf("Expected 12 below instances, got %d", len(p.TopBelow))
	}
	if len(p.TopAbove) != 4 {
		t.Errorf("Expected 4 above instances, got %d", len(p.TopAbove))
	}
	for _, in := range p.TopAbove {
		if in.X < 16 || in.Y < 16 {
			t.Errorf("Expected above instances inside cell (1,1), got (%v,%v)", in.X, in.Y)
		}
	}
}

func TestBuildBackgroundPositions(t *testing.T) {
	world := fakeWorld{{5, 7}: normalCell(metatileWith(10, 20, 3), 0, 0)}
	view := tile.CameraView{StartX: 4, StartY: 7, TilesWide: 2, TilesHigh: 1}

	got := BuildBackground(nil, view, world.resolve)
	if len(got) != 4 {
		t.Fatalf("Expected 4 instances, got %d", len(got))
	}
	want := [][2]float32{{16, 0}, {24, 0}, {16, 8}, {24, 8}}
	for i, in := range got {
		if in.X != want[i][0] || in.Y != want[i][1] {
			t.Errorf("Instance %d: expected (%v,%v), got (%v,%v)", i, want[i][0], want[i][1], in.X, in.Y)
		}
		if in.TileID != 10+i {
			t.Errorf("Instance %d: expected tile %d, got %d", i, 10+i, in.TileID)
		}
		if in.Palette != 3 {
			t.Errorf("Instance %d: expected palette 3, got %d", i, in.Palette)
		}
	}
}

func TestCoveredLayerGoesToBackground(t *testing.T) {
	covered := tile.ResolvedTile{Metatile: metatileWith(0, 4, 0)} // nil attributes
	world := fakeWorld{{0, 0}: covered}
	view := tile.CameraView{TilesWide: 1, TilesHigh: 1}
	below, above := NewElevationFilter(nil).Filters(0)

	var p PassInstances
	BuildAll(&p, view, world.resolve, below, above)

	if len(p.Background) != 8 {
		t.Errorf("Expected 8 background instances, got %d", len(p.Background))
	}
	if len(p.TopBelow)+len(p.TopAbove) != 0 {
		t.Errorf("Expected no top instances, got %d", len(p.TopBelow)+len(p.TopAbove))
	}
}

func TestSecondaryTilesAreOffset(t *testing.T) {
	m := metatileWith(tile.SecondaryOffset, tile.SecondaryOffset+100, 0)
	world := fakeWorld{{0, 0}: normalCell(m, 0, 0)}
	view := tile.CameraView{TilesWide: 1, TilesHigh: 1}

	got := BuildBackground(nil, view, world.resolve)
	for i, in := range got {
		if in.Tileset != tile.Secondary {
			t.Errorf("Instance %d: expected secondary tileset", i)
		}
		if in.TileID != i {
			t.Errorf("Instance %d: expected tile %d, got %d", i, i, in.TileID)
		}
	}

	top := BuildTopLayer(nil, view, world.resolve, nil)
	if top[0].TileID != 100 || top[0].Tileset != tile.Secondary {
		t.Errorf("Expected secondary tile 100, got %s tile %d", top[0].Tileset, top[0].TileID)
	}
}

func TestMissingCellsAreSkipped(t *testing.T) {
	world := fakeWorld{{1, 1}: normalCell(metatileWith(0, 4, 0), 0, 0)}
	got := BuildBackground(nil, tile.CameraView{TilesWide: 3, TilesHigh: 3}, world.resolve)
	if len(got) != 4 {
		t.Errorf("Expected 4 instances, got %d", len(got))
	}
	if got := BuildBackground(nil, view2x2(), nil); len(got) != 0 {
		t.Errorf("Expected no instances without a resolver, got %d", len(got))
	}
}

func TestPairIndexIsCarried(t *testing.T) {
	cell := normalCell(metatileWith(0, 4, 0), 0, 0)
	cell.Pair = 2
	world := fakeWorld{{0, 0}: cell}
	got := BuildBackground(nil, tile.CameraView{TilesWide: 1, TilesHigh: 1}, world.resolve)
	for _, in := range got {
		if in.Pair != 2 {
			t.Errorf("Expected pair 2, got %d", in.Pair)
		}
	}
}

func TestAliasedPassListsPanic(t *testing.T) {
	shared := make([]tile.Instance, 0, 8)
	p := PassInstances{Background: shared, TopBelow: shared[:0]}

	defer func() {
		if recover() == nil {
			t.Error("Expected a panic for aliased pass lists")
		}
	}()
	p.mustNotAlias()
}

func TestDistinctPassListsDoNotPanic(t *testing.T) {
	p := PassInstances{
		Background: make([]tile.Instance, 0, 4),
		TopBelow:   make([]tile.Instance, 0, 4),
		TopAbove:   make([]tile.Instance, 0, 4),
	}
	p.mustNotAlias()
}
