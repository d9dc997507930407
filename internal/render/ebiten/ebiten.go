package ebiten

import (
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"

	"chosenoffset.com/fieldrender/internal/render"
)

// Surface wraps the ebiten screen (or any ebiten image) as a render.Surface.
type Surface struct {
	img     *ebiten.Image
	present *ebiten.Image
}

// WrapSurface wraps an existing ebiten.Image as a render.Surface.
func WrapSurface(img *ebiten.Image) *Surface {
	return &Surface{img: img}
}

// Size returns the width and height of the surface.
func (s *Surface) Size() (int, int) {
	return s.img.Bounds().Dx(), s.img.Bounds().Dy()
}

// Clear clears the surface to transparent.
func (s *Surface) Clear() {
	s.img.Clear()
}

// FillRect draws a filled rectangle.
func (s *Surface) FillRect(r image.Rectangle, clr color.Color) {
	vector.DrawFilledRect(s.img, float32(r.Min.X), float32(r.Min.Y), float32(r.Dx()), float32(r.Dy()), clr, false)
}

// DrawText draws text using the debug font.
func (s *Surface) DrawText(text string, x, y int) {
	ebitenutil.DebugPrintAt(s.img, text, x, y)
}

// Present copies a software-rendered frame onto the surface.
func (s *Surface) Present(frame *image.RGBA) {
	w, h := frame.Bounds().Dx(), frame.Bounds().Dy()
	if s.present == nil || s.present.Bounds().Dx() != w || s.present.Bounds().Dy() != h {
		if s.present != nil {
			s.present.Deallocate()
		}
		s.present = ebiten.NewImage(w, h)
	}
	s.present.WritePixels(frame.Pix)
	s.img.DrawImage(s.present, nil)
}

// Image returns the underlying ebiten.Image.
func (s *Surface) Image() *ebiten.Image {
	return s.img
}

// EbitenInputManager implements the InputManager interface using Ebiten.
type EbitenInputManager struct{}

// NewInputManager creates a new Ebiten-based input manager.
func NewInputManager() render.InputManager {
	return &EbitenInputManager{}
}

// IsKeyPressed returns whether the specified key is currently pressed.
func (m *EbitenInputManager) IsKeyPressed(key render.Key) bool {
	return ebiten.IsKeyPressed(keyToEbitenKey(key))
}

// IsKeyJustPressed returns whether the specified key was just pressed this frame.
func (m *EbitenInputManager) IsKeyJustPressed(key render.Key) bool {
	return inpututil.IsKeyJustPressed(keyToEbitenKey(key))
}

// keyToEbitenKey converts a render.Key to an ebiten.Key.
func keyToEbitenKey(key render.Key) ebiten.Key {
	switch key {
	case render.KeyW:
		return ebiten.KeyW
	case render.KeyA:
		return ebiten.KeyA
	case render.KeyS:
		return ebiten.KeyS
	case render.KeyD:
		return ebiten.KeyD
	case render.KeyUp:
		return ebiten.KeyArrowUp
	case render.KeyDown:
		return ebiten.KeyArrowDown
	case render.KeyLeft:
		return ebiten.KeyArrowLeft
	case render.KeyRight:
		return ebiten.KeyArrowRight
	case render.KeyPageUp:
		return ebiten.KeyPageUp
	case render.KeyPageDown:
		return ebiten.KeyPageDown
	case render.KeyF1:
		return ebiten.KeyF1
	case render.KeyF2:
		return ebiten.KeyF2
	case render.KeyF3:
		return ebiten.KeyF3
	case render.KeyF4:
		return ebiten.KeyF4
	case render.KeyEscape:
		return ebiten.KeyEscape
	default:
		return 0
	}
}

// EbitenEngine implements the Engine interface using Ebiten.
type EbitenEngine struct{}

// NewEngine creates a new Ebiten-based engine.
func NewEngine() render.Engine {
	return &EbitenEngine{}
}

// SetWindowSize sets the window size in pixels.
func (e *EbitenEngine) SetWindowSize(width, height int) {
	ebiten.SetWindowSize(width, height)
}

// SetWindowTitle sets the window title.
func (e *EbitenEngine) SetWindowTitle(title string) {
	ebiten.SetWindowTitle(title)
}

// SetWindowResizable enables or disables window resizing.
func (e *EbitenEngine) SetWindowResizable(resizable bool) {
	if resizable {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	} else {
		ebiten.SetWindowResizingMode(ebiten.WindowResizingModeDisabled)
	}
}

// RunGame runs the game loop with the provided game.
func (e *EbitenEngine) RunGame(game render.Game) error {
	return ebiten.RunGame(&gameAdapter{game: game})
}

// gameAdapter adapts a render.Game to ebiten.Game interface.
type gameAdapter struct {
	game    render.Game
	surface *Surface
}

// Update implements ebiten.Game.
func (a *gameAdapter) Update() error {
	return a.game.Update()
}

// Draw implements ebiten.Game. The surface wrapper is reused so its present
// buffer survives between frames.
func (a *gameAdapter) Draw(screen *ebiten.Image) {
	if a.surface == nil {
		a.surface = WrapSurface(screen)
	}
	a.surface.img = screen
	a.game.Draw(a.surface)
}

// Layout implements ebiten.Game.
func (a *gameAdapter) Layout(outsideWidth, outsideHeight int) (int, int) {
	return a.game.Layout(outsideWidth, outsideHeight)
}

var (
	_ render.Surface   = (*Surface)(nil)
	_ render.Presenter = (*Surface)(nil)
)
