package game

import (
	"fmt"
	"image"
	"image/color"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/render/pipeline"
	"chosenoffset.com/fieldrender/internal/tile"
)

var (
	playerBody   = color.RGBA{0, 200, 100, 255}
	playerHead   = color.RGBA{250, 220, 180, 255}
	playerShadow = color.RGBA{0, 0, 0, 96}
	overlayBack  = color.RGBA{0, 0, 0, 160}
)

// Draw renders the frame: background pass, the player's shadow, the pass
// under the player, the player, then the pass over the player.
func (g *Game) Draw(screen render.Surface) {
	dst := screen
	if g.offscreen != nil {
		g.offscreen.Resize(g.ScreenWidth, g.ScreenHeight)
		dst = g.offscreen
	}

	view := g.Camera.View(1)
	p := g.Manager.Pipeline
	path, err := p.Render(view, g.Player.Elevation, pipeline.RenderOptions{
		GameFrame:        g.GameFrame,
		AnimationChanged: p.HasAnimations(),
		ElevationChanged: g.elevationChanged,
		ForceFullRender:  g.forceFull,
	})
	if err != nil {
		g.log.WithError(err).Warn("Render failed")
	}
	g.LastPath = path
	if path == pipeline.PathFull {
		g.forceFull = false
		g.elevationChanged = false
	}

	if p.State() == pipeline.StateContextLost {
		dst.Clear()
	} else {
		g.composite(dst, view)
	}

	if g.offscreen != nil {
		if pr, ok := screen.(render.Presenter); ok {
			pr.Present(g.offscreen.RGBA())
		}
	}
	g.drawUI(screen)
}

func (g *Game) composite(dst render.Surface, view tile.CameraView) {
	p := g.Manager.Pipeline
	steps := []struct {
		name string
		fn   func() error
	}{
		{"background", func() error { return p.CompositeBackground(dst, view) }},
		{"shadow", func() error { g.drawShadow(dst); return nil }},
		{"top below", func() error { return p.CompositeTopBelow(dst, view) }},
		{"player", func() error { g.drawPlayer(dst); return nil }},
		{"top above", func() error { return p.CompositeTopAbove(dst, view) }},
	}
	for _, s := range steps {
		if err := s.fn(); err != nil {
			g.log.WithError(err).WithField("step", s.name).Warn("Composite failed")
		}
	}
}

// PlayerScreenRect returns the player's metatile on screen.
func (g *Game) PlayerScreenRect() image.Rectangle {
	px, py := g.Player.PixelPos()
	cx, cy := g.Camera.Position()
	x := int(px - cx)
	y := int(py - cy)
	return image.Rect(x, y, x+tile.MetatileSize, y+tile.MetatileSize)
}

func (g *Game) drawShadow(dst render.Surface) {
	r := g.PlayerScreenRect()
	dst.FillRect(image.Rect(r.Min.X+3, r.Max.Y-3, r.Max.X-3, r.Max.Y), playerShadow)
}

func (g *Game) drawPlayer(dst render.Surface) {
	r := g.PlayerScreenRect()
	dst.FillRect(image.Rect(r.Min.X+4, r.Min.Y+6, r.Max.X-4, r.Max.Y-2), playerBody)
	dst.FillRect(image.Rect(r.Min.X+5, r.Min.Y, r.Max.X-5, r.Min.Y+6), playerHead)
}

func (g *Game) drawUI(screen render.Surface) {
	y := g.ScreenHeight - 16
	for i := len(g.Messages) - 1; i >= 0; i-- {
		screen.DrawText(g.Messages[i].Text, 4, y)
		y -= 14
	}
	if !g.ShowOverlay {
		return
	}
	lines := g.OverlayLines()
	screen.FillRect(image.Rect(0, 0, g.ScreenWidth, 4+len(lines)*14), overlayBack)
	for i, line := range lines {
		screen.DrawText(line, 4, 2+i*14)
	}
}

// OverlayLines is the debug overlay text.
func (g *Game) OverlayLines() []string {
	s := g.Manager.Pipeline.Stats()
	return []string{
		fmt.Sprintf("%s  %s  path:%s  v%d", s.Device, s.State, g.LastPath, s.TilesetVersion),
		fmt.Sprintf("bg:%d below:%d above:%d  cap:%d", s.Passes.Background, s.Passes.TopBelow, s.Passes.TopAbove, s.Buffer.Capacity),
		fmt.Sprintf("draws:%d uploads:%d anims:%d/%d", s.DeviceStats.DrawCalls, s.DeviceStats.TextureUploads, s.Animations, s.Destinations),
		fmt.Sprintf("player %d,%d elev %d  frame %d", g.Player.TileX, g.Player.TileY, g.Player.Elevation, g.GameFrame),
	}
}
