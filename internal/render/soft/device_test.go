package soft

import (
	"errors"
	"image/color"
	"testing"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

var red = color.RGBA{255, 0, 0, 255}

func newTileDraw(t *testing.T, d *Device, instances []tile.Instance) *render.InstancedDraw {
	t.Helper()
	// Tile 1 has a single index-1 pixel in its top-left corner.
	set, err := d.NewTexture(16, 8, render.FormatIndexed)
	if err != nil {
		t.Fatalf("NewTexture failed: %v", err)
	}
	pix := make([]byte, 16*8)
	pix[8] = 1
	if err := set.Replace(pix, 16, 8); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	pal, err := d.NewTexture(16, 16, render.FormatRGBA)
	if err != nil {
		t.Fatalf("NewTexture failed: %v", err)
	}
	palPix := make([]byte, 16*16*4)
	o := (2*16 + 1) * 4
	copy(palPix[o:], []byte{red.R, red.G, red.B, red.A})
	if err := pal.Replace(palPix, 16, 16); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}

	prog, err := d.CompileProgram(render.ProgramTile)
	if err != nil {
		t.Fatalf("CompileProgram failed: %v", err)
	}
	quad, _ := d.NewVertexBuffer([]float32{0, 0, 1, 0, 0, 1, 1, 1})
	ib, _ := d.NewInstanceBuffer(4)
	if err := ib.Upload(tile.PackAll(nil, instances), len(instances)); err != nil {
		t.Fatalf("Upload failed: %v", err)
	}
	return &render.InstancedDraw{
		Program:   prog,
		Quad:      quad,
		Instances: ib,
		Count:     len(instances),
		Pairs:     []render.PairTextures{{Primary: set, Secondary: set, Palette: pal}},
	}
}

func TestDrawInstancedFlipsAndPalettes(t *testing.T) {
	d := NewDevice()
	call := newTileDraw(t, d, []tile.Instance{
		{X: 0, Y: 0, TileID: 1, Palette: 2, XFlip: true},
		{X: 8, Y: 8, TileID: 1, Palette: 2, YFlip: true},
	})
	fb, err := d.NewFramebuffer(16, 16)
	if err != nil {
		t.Fatalf("NewFramebuffer failed: %v", err)
	}
	d.Bind(fb)
	if err := d.Clear(0, 0, 0, 0); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if err := d.DrawInstanced(call); err != nil {
		t.Fatalf("DrawInstanced failed: %v", err)
	}

	img := fb.(*Framebuffer).Image()
	tests := []struct {
		x, y int
		want color.RGBA
	}{
		{7, 0, red},
		{0, 0, color.RGBA{}},
		{8, 15, red},
		{8, 8, color.RGBA{}},
	}
	for _, tt := range tests {
		if got := img.RGBAAt(tt.x, tt.y); got != tt.want {
			t.Errorf("Pixel %d,%d: expected %v, got %v", tt.x, tt.y, tt.want, got)
		}
	}
	if s := d.Stats(); s.DrawCalls != 1 || s.Instances != 2 {
		t.Errorf("Expected 1 draw of 2 instances, got %+v", s)
	}
}

func TestDrawInstancedRejectsOverflow(t *testing.T) {
	d := NewDevice()
	call := newTileDraw(t, d, []tile.Instance{{TileID: 1}})
	fb, _ := d.NewFramebuffer(8, 8)
	d.Bind(fb)
	call.Count = 5
	if err := d.DrawInstanced(call); err == nil {
		t.Error("Expected error when drawing past the buffer capacity")
	}
}

func TestDrawQuadOffset(t *testing.T) {
	d := NewDevice()
	src, _ := d.NewTexture(4, 4, render.FormatRGBA)
	pix := make([]byte, 4*4*4)
	for i := 0; i < len(pix); i += 4 {
		pix[i+2], pix[i+3] = 255, 255
	}
	if err := src.Replace(pix, 4, 4); err != nil {
		t.Fatalf("Replace failed: %v", err)
	}
	prog, _ := d.CompileProgram(render.ProgramComposite)

	screen := NewSurface(8, 8)
	d.Bind(screen)
	// 0.5 of the 2.0 clip span is 2 pixels on an 8 pixel target.
	if err := d.DrawQuad(&render.QuadDraw{Program: prog, Source: src, OffsetX: 0.5}); err != nil {
		t.Fatalf("DrawQuad failed: %v", err)
	}
	img := screen.RGBA()
	if got := img.RGBAAt(1, 0); got.A != 0 {
		t.Errorf("Expected pixel 1,0 untouched, got %v", got)
	}
	if got := img.RGBAAt(2, 0); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("Expected blue at 2,0, got %v", got)
	}
	if got := img.RGBAAt(6, 0); got.A != 0 {
		t.Errorf("Expected pixel 6,0 untouched, got %v", got)
	}
}

func TestContextLossReleasesResources(t *testing.T) {
	d := NewDevice()
	var lost, restored int
	d.SetContextHandlers(func() { lost++ }, func() { restored++ })

	tex, _ := d.NewTexture(8, 8, render.FormatIndexed)
	d.LoseContext()
	d.LoseContext()
	if lost != 1 {
		t.Errorf("Expected one loss callback, got %d", lost)
	}
	if _, err := d.NewTexture(8, 8, render.FormatIndexed); !errors.Is(err, render.ErrContextLost) {
		t.Errorf("Expected ErrContextLost while lost, got %v", err)
	}

	d.RestoreContext()
	if restored != 1 {
		t.Errorf("Expected one restore callback, got %d", restored)
	}
	if err := tex.Replace(make([]byte, 64), 8, 8); !errors.Is(err, render.ErrContextLost) {
		t.Errorf("Expected old texture to stay dead, got %v", err)
	}
	fresh, err := d.NewTexture(8, 8, render.FormatIndexed)
	if err != nil {
		t.Fatalf("NewTexture after restore failed: %v", err)
	}
	if err := fresh.Replace(make([]byte, 64), 8, 8); err != nil {
		t.Errorf("Expected new texture to work, got %v", err)
	}
}

func TestSurfaceResize(t *testing.T) {
	s := NewSurface(4, 4)
	img := s.RGBA()
	s.Resize(4, 4)
	if s.RGBA() != img {
		t.Error("Expected same-size resize to keep the image")
	}
	s.Resize(8, 2)
	if w, h := s.Size(); w != 8 || h != 2 {
		t.Errorf("Expected 8x2, got %dx%d", w, h)
	}
}
