package pipeline

import (
	"bytes"
	"testing"

	"chosenoffset.com/fieldrender/internal/render/soft"
	"chosenoffset.com/fieldrender/internal/tile"
)

func solidFrame(index byte) []byte {
	return bytes.Repeat([]byte{index}, tile.Size*tile.Size)
}

func threeFrameAnimation(kind tile.Kind, destStart, phase int) tile.Animation {
	return tile.Animation{
		ID:           "water",
		Tileset:      kind,
		Frames:       [][]byte{solidFrame(10), solidFrame(11), solidFrame(12)},
		Width:        8,
		Height:       8,
		Sequence:     []int{0, 1, 2},
		Interval:     4,
		Destinations: []tile.AnimationDestination{{DestStart: destStart, Phase: phase}},
	}
}

func newTestAnimations(t *testing.T) (*AnimationManager, *soft.Device) {
	t.Helper()
	dev := soft.NewDevice()
	textures, err := NewTextureManager(dev)
	if err != nil {
		t.Fatalf("Failed to create texture manager: %v", err)
	}
	m := NewAnimationManager(textures)
	if err := m.SetTilesetBuffers(0, tile.NewIndexedImage(128, 64), tile.NewIndexedImage(128, 64)); err != nil {
		t.Fatalf("SetTilesetBuffers failed: %v", err)
	}
	return m, dev
}

// pixelOfTile returns the top-left pixel of tile id in a 128 px wide buffer.
func pixelOfTile(im tile.IndexedImage, id int) byte {
	x := (id % 16) * tile.Size
	y := (id / 16) * tile.Size
	return im.Pix[y*im.Width+x]
}

func TestAnimationUploadsOncePerIndexChange(t *testing.T) {
	m, dev := newTestAnimations(t)
	if err := m.RegisterAnimations(0, []tile.Animation{threeFrameAnimation(tile.Primary, 5, 0)}); err != nil {
		t.Fatalf("RegisterAnimations failed: %v", err)
	}
	dev.ResetStats()

	changes := 0
	for frame := 0; frame < 12; frame++ {
		before := dev.Stats().TextureUploads
		changed := m.Update(frame)
		uploads := dev.Stats().TextureUploads - before

		wantChange := frame%4 == 0
		if changed != wantChange {
			t.Errorf("Frame %d: expected changed=%v, got %v", frame, wantChange, changed)
		}
		if wantChange && uploads != 1 {
			t.Errorf("Frame %d: expected 1 upload, got %d", frame, uploads)
		}
		if !wantChange && uploads != 0 {
			t.Errorf("Frame %d: expected no upload, got %d", frame, uploads)
		}
		if changed {
			changes++
		}

		buf, _ := m.TilesetBuffer(0, tile.Primary)
		want := byte(10 + (frame/4)%3)
		if got := pixelOfTile(buf, 5); got != want {
			t.Errorf("Frame %d: expected tile 5 to hold %d, got %d", frame, want, got)
		}
	}
	if changes != 3 {
		t.Errorf("Expected 3 changes over 12 frames, got %d", changes)
	}
}

func TestAnimationIsDeterministic(t *testing.T) {
	run := func() []byte {
		m, _ := newTestAnimations(t)
		a := threeFrameAnimation(tile.Primary, 3, 1)
		a.Destinations = append(a.Destinations, tile.AnimationDestination{DestStart: 40, Phase: 2})
		if err := m.RegisterAnimations(0, []tile.Animation{a}); err != nil {
			t.Fatalf("RegisterAnimations failed: %v", err)
		}
		for _, frame := range []int{0, 3, 4, 9, 17, 30, 31, 44} {
			m.Update(frame)
		}
		buf, _ := m.TilesetBuffer(0, tile.Primary)
		return append([]byte(nil), buf.Pix...)
	}
	if !bytes.Equal(run(), run()) {
		t.Error("Expected identical buffers for identical frame sequences")
	}
}

func TestAnimationSecondaryDestinationIsOffset(t *testing.T) {
	m, _ := newTestAnimations(t)
	a := threeFrameAnimation(tile.Secondary, tile.SecondaryOffset+7, 0)
	if err := m.RegisterAnimations(0, []tile.Animation{a}); err != nil {
		t.Fatalf("RegisterAnimations failed: %v", err)
	}
	m.Update(0)

	sec, _ := m.TilesetBuffer(0, tile.Secondary)
	if got := pixelOfTile(sec, 7); got != 10 {
		t.Errorf("Expected secondary tile 7 to hold 10, got %d", got)
	}
	prim, _ := m.TilesetBuffer(0, tile.Primary)
	if got := pixelOfTile(prim, 7); got != 0 {
		t.Errorf("Expected primary tileset untouched, got %d", got)
	}
}

func TestAnimationNegativePhaseWraps(t *testing.T) {
	m, _ := newTestAnimations(t)
	if err := m.RegisterAnimations(0, []tile.Animation{threeFrameAnimation(tile.Primary, 0, -1)}); err != nil {
		t.Fatalf("RegisterAnimations failed: %v", err)
	}
	m.Update(0)
	buf, _ := m.TilesetBuffer(0, tile.Primary)
	// cycle -1 wraps to sequence index 2
	if got := pixelOfTile(buf, 0); got != 12 {
		t.Errorf("Expected frame 2 (index 12), got %d", got)
	}
}

func TestAnimationAltSequence(t *testing.T) {
	m, _ := newTestAnimations(t)
	a := threeFrameAnimation(tile.Primary, 0, 0)
	threshold := 2
	a.AltSequence = []int{2}
	a.AltThreshold = &threshold
	if err := m.RegisterAnimations(0, []tile.Animation{a}); err != nil {
		t.Fatalf("RegisterAnimations failed: %v", err)
	}
	m.Update(4) // cycle 1
	buf, _ := m.TilesetBuffer(0, tile.Primary)
	if got := pixelOfTile(buf, 0); got != 11 {
		t.Errorf("Expected frame 1 before threshold, got %d", got)
	}
	m.Update(8) // cycle 2
	buf, _ = m.TilesetBuffer(0, tile.Primary)
	if got := pixelOfTile(buf, 0); got != 12 {
		t.Errorf("Expected alternate frame 2 at threshold, got %d", got)
	}
}

func TestAnimationMissingFrameIsSkipped(t *testing.T) {
	m, _ := newTestAnimations(t)
	broken := threeFrameAnimation(tile.Primary, 0, 0)
	broken.ID = "broken"
	broken.Sequence = []int{7}
	good := threeFrameAnimation(tile.Primary, 1, 0)
	if err := m.RegisterAnimations(0, []tile.Animation{broken, good}); err != nil {
		t.Fatalf("RegisterAnimations failed: %v", err)
	}
	if !m.Update(0) {
		t.Error("Expected the valid animation to report a change")
	}
	buf, _ := m.TilesetBuffer(0, tile.Primary)
	if got := pixelOfTile(buf, 0); got != 0 {
		t.Errorf("Expected broken destination untouched, got %d", got)
	}
	if got := pixelOfTile(buf, 1); got != 10 {
		t.Errorf("Expected valid destination patched, got %d", got)
	}
}

func TestAnimationInvalidDefinitionsAreDropped(t *testing.T) {
	m, _ := newTestAnimations(t)
	bad := threeFrameAnimation(tile.Primary, 0, 0)
	bad.Interval = 0
	if err := m.RegisterAnimations(0, []tile.Animation{bad, threeFrameAnimation(tile.Primary, 1, 0)}); err != nil {
		t.Fatalf("RegisterAnimations failed: %v", err)
	}
	if got := m.AnimationCount(); got != 1 {
		t.Errorf("Expected 1 registered animation, got %d", got)
	}
	if got := m.DestinationCount(); got != 1 {
		t.Errorf("Expected 1 destination, got %d", got)
	}
}

func TestAnimatedTileIDs(t *testing.T) {
	m, _ := newTestAnimations(t)
	a := threeFrameAnimation(tile.Primary, 20, 0)
	a.Frames = [][]byte{make([]byte, 16*16)}
	a.Sequence = []int{0}
	a.Width, a.Height = 16, 16
	if err := m.RegisterAnimations(0, []tile.Animation{a}); err != nil {
		t.Fatalf("RegisterAnimations failed: %v", err)
	}
	ids := m.AnimatedTileIDs(0)
	if ids.Size() != 4 {
		t.Fatalf("Expected 4 animated ids, got %d", ids.Size())
	}
	for id := 20; id < 24; id++ {
		if !ids.Has(id) {
			t.Errorf("Expected id %d to be animated", id)
		}
	}
	if !m.HasAnimations() {
		t.Error("Expected HasAnimations to be true")
	}
	m.Clear()
	if m.HasAnimations() {
		t.Error("Expected no animations after Clear")
	}
}

func TestAnimationWithoutBuffersDoesNothing(t *testing.T) {
	dev := soft.NewDevice()
	textures, err := NewTextureManager(dev)
	if err != nil {
		t.Fatalf("Failed to create texture manager: %v", err)
	}
	m := NewAnimationManager(textures)
	if err := m.RegisterAnimations(1, []tile.Animation{threeFrameAnimation(tile.Primary, 0, 0)}); err != nil {
		t.Fatalf("RegisterAnimations failed: %v", err)
	}
	if m.Update(0) {
		t.Error("Expected no change without tileset buffers")
	}
	if err := m.RegisterAnimations(tile.MaxPairs, nil); err == nil {
		t.Error("Expected an error for an out-of-range pair")
	}
}

func TestAnimationSkipsDestinationsPastTileset(t *testing.T) {
	m, dev := newTestAnimations(t)
	tests := []struct {
		name      string
		destStart int
	}{
		{"far past the end", 5000},
		{"one past the last tile", 128},
		{"secondary past the end", tile.SecondaryOffset + 128},
	}
	for _, tt := range tests {
		kind := tile.Primary
		if tt.destStart >= tile.SecondaryOffset {
			kind = tile.Secondary
		}
		if err := m.RegisterAnimations(0, []tile.Animation{threeFrameAnimation(kind, tt.destStart, 0)}); err != nil {
			t.Fatalf("%s: RegisterAnimations failed: %v", tt.name, err)
		}
		dev.ResetStats()
		for frame := 0; frame < 12; frame++ {
			if m.Update(frame) {
				t.Errorf("%s: frame %d reported a change", tt.name, frame)
			}
		}
		if uploads := dev.Stats().TextureUploads; uploads != 0 {
			t.Errorf("%s: expected no uploads, got %d", tt.name, uploads)
		}
	}
}

func TestAnimationPatchesLastTile(t *testing.T) {
	m, _ := newTestAnimations(t)
	if err := m.RegisterAnimations(0, []tile.Animation{threeFrameAnimation(tile.Primary, 127, 0)}); err != nil {
		t.Fatalf("RegisterAnimations failed: %v", err)
	}
	if !m.Update(0) {
		t.Fatal("Expected the last tile to be patched")
	}
	buf, _ := m.TilesetBuffer(0, tile.Primary)
	if got := pixelOfTile(buf, 127); got != 10 {
		t.Errorf("Expected tile 127 to hold 10, got %d", got)
	}
}
