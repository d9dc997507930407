package game

import (
	"errors"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/render/pipeline"
	"chosenoffset.com/fieldrender/internal/render/soft"
	"chosenoffset.com/fieldrender/internal/tile"
	"chosenoffset.com/fieldrender/internal/world"
)

// ErrQuit is returned from Update when the player asks to leave.
var ErrQuit = errors.New("game: quit")

const (
	walkSpeed       = 1
	maxElevation    = 15
	messageDuration = 3.0
	tickSeconds     = 1.0 / 60.0
)

// Options configure a Game.
type Options struct {
	ViewTilesWide, ViewTilesHigh int
	OverscanTiles                int
	// Offscreen makes Draw render into a software surface and present it,
	// for devices that cannot draw onto the window directly.
	Offscreen bool
}

// Game walks a player over the world and renders it through the pipeline.
type Game struct {
	ScreenWidth  int
	ScreenHeight int
	Manager      *Manager
	Camera       *world.Camera
	Player       Player
	InputMgr     render.InputManager

	// UI state
	Messages    []Message
	ShowOverlay bool

	// GameFrame counts ticks; it drives tile animations.
	GameFrame int
	LastPath  pipeline.RenderPath

	offscreen        *soft.Surface
	forceFull        bool
	elevationChanged bool
	log              *logrus.Entry
}

// NewGame places the player at the manifest start and centers the camera.
func NewGame(m *Manager, input render.InputManager, opts Options) *Game {
	cam := world.NewCamera(world.CameraConfig{
		TilesWide:     opts.ViewTilesWide,
		TilesHigh:     opts.ViewTilesHigh,
		OverscanTiles: opts.OverscanTiles,
	})
	cam.SetBounds(m.World.Bounds())
	w, h := cam.Viewport()
	g := &Game{
		ScreenWidth:  w,
		ScreenHeight: h,
		Manager:      m,
		Camera:       cam,
		InputMgr:     input,
		Player: Player{
			TileX:     m.Manifest.Start.X,
			TileY:     m.Manifest.Start.Y,
			Elevation: m.Manifest.Start.Elevation,
			Facing:    DirSouth,
			Speed:     walkSpeed,
		},
		log: m.log,
	}
	if opts.Offscreen {
		g.offscreen = soft.NewSurface(w, h)
	}
	g.UpdateCamera()
	return g
}

// Update handles game logic updates.
func (g *Game) Update() error {
	g.GameFrame++
	g.updateMessages(tickSeconds)

	if g.InputMgr.IsKeyJustPressed(render.KeyEscape) {
		return ErrQuit
	}
	g.handleDebugKeys()

	if err := g.Manager.Sync(); err != nil {
		g.log.WithError(err).Error("Tileset upload failed")
	}

	g.updateMovement()
	g.UpdateCamera()
	return nil
}

func (g *Game) handleDebugKeys() {
	if g.InputMgr.IsKeyJustPressed(render.KeyF1) {
		g.ShowOverlay = !g.ShowOverlay
	}
	if cc, ok := g.Manager.Device.(render.ContextController); ok {
		if g.InputMgr.IsKeyJustPressed(render.KeyF2) {
			cc.LoseContext()
			g.ShowMessage("Context lost")
		}
		if g.InputMgr.IsKeyJustPressed(render.KeyF3) {
			cc.RestoreContext()
			g.ShowMessage("Context restored")
		}
	}
	if g.InputMgr.IsKeyJustPressed(render.KeyF4) {
		g.forceFull = true
	}
	if g.InputMgr.IsKeyJustPressed(render.KeyPageUp) && g.Player.Elevation < maxElevation {
		g.setElevation(g.Player.Elevation + 1)
	}
	if g.InputMgr.IsKeyJustPressed(render.KeyPageDown) && g.Player.Elevation > 0 {
		g.setElevation(g.Player.Elevation - 1)
	}
}

func (g *Game) setElevation(e int) {
	if e == g.Player.Elevation {
		return
	}
	g.Player.Elevation = e
	g.elevationChanged = true
}

func (g *Game) heldDirection() Direction {
	switch {
	case g.InputMgr.IsKeyPressed(render.KeyW) || g.InputMgr.IsKeyPressed(render.KeyUp):
		return DirNorth
	case g.InputMgr.IsKeyPressed(render.KeyS) || g.InputMgr.IsKeyPressed(render.KeyDown):
		return DirSouth
	case g.InputMgr.IsKeyPressed(render.KeyA) || g.InputMgr.IsKeyPressed(render.KeyLeft):
		return DirWest
	case g.InputMgr.IsKeyPressed(render.KeyD) || g.InputMgr.IsKeyPressed(render.KeyRight):
		return DirEast
	}
	return DirNone
}

// updateMovement advances a step in progress or starts a new one.
func (g *Game) updateMovement() {
	p := &g.Player
	if p.Moving != DirNone {
		p.Progress += p.Speed
		if p.Progress < tile.MetatileSize {
			return
		}
		dx, dy := p.Moving.Delta()
		p.TileX += dx
		p.TileY += dy
		p.Moving = DirNone
		p.Progress = 0
		g.arrive()
	}

	dir := g.heldDirection()
	if dir == DirNone {
		return
	}
	p.Facing = dir
	dx, dy := dir.Delta()
	if !g.CanEnter(p.TileX+dx, p.TileY+dy) {
		return
	}
	p.Moving = dir
	p.Progress = 0
}

// CanEnter reports whether the player may step onto a tile.
func (g *Game) CanEnter(x, y int) bool {
	cell, ok := g.Manager.World.Cell(x, y)
	return ok && cell.Passable()
}

// Elevations 0 and 15 are transitions and keep the player's elevation.
func (g *Game) arrive() {
	cell, ok := g.Manager.World.Cell(g.Player.TileX, g.Player.TileY)
	if !ok || cell.Elevation == 0 || cell.Elevation == maxElevation {
		return
	}
	g.setElevation(cell.Elevation)
}

// UpdateCamera centers the camera on the player.
func (g *Game) UpdateCamera() {
	x, y := g.Player.PixelPos()
	g.Camera.Follow(x+tile.MetatileSize/2, y+tile.MetatileSize/2)
}

// Layout returns the game's logical screen size.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.ScreenWidth, g.ScreenHeight
}

func (g *Game) updateMessages(dt float64) {
	var active []Message
	for _, msg := range g.Messages {
		msg.TimeLeft -= dt
		if msg.TimeLeft > 0 {
			active = append(active, msg)
		}
	}
	g.Messages = active
}

// ShowMessage adds a new message to be displayed on screen.
func (g *Game) ShowMessage(text string) {
	g.Messages = append(g.Messages, Message{Text: text, TimeLeft: messageDuration})
	g.log.WithField("message", text).Info("Message shown")
}
