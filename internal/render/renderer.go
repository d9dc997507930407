package render

import (
	"errors"
	"image"
	"image/color"
)

// ErrContextLost is returned by device operations while the context is lost.
var ErrContextLost = errors.New("render: device context lost")

// TextureFormat is the pixel layout of a texture.
type TextureFormat int

const (
	// FormatIndexed stores one palette index byte per pixel.
	FormatIndexed TextureFormat = iota
	// FormatRGBA stores four bytes per pixel, straight alpha.
	FormatRGBA
)

// BytesPerPixel returns the stride of one pixel in upload buffers.
func (f TextureFormat) BytesPerPixel() int {
	if f == FormatRGBA {
		return 4
	}
	return 1
}

// ProgramKind selects one of the device's built-in programs.
type ProgramKind int

const (
	// ProgramTile draws instanced indexed tiles with a palette lookup.
	ProgramTile ProgramKind = iota
	// ProgramComposite draws a textured quad with alpha-over blending.
	ProgramComposite
)

func (k ProgramKind) String() string {
	switch k {
	case ProgramTile:
		return "tile"
	case ProgramComposite:
		return "composite"
	default:
		return "unknown"
	}
}

// Program is a compiled draw program.
type Program interface {
	Kind() ProgramKind
	// Dispose releases program resources.
	Dispose()
}

// Texture is a device-resident image. All sampling is nearest-neighbor with
// clamp-to-edge wrapping.
type Texture interface {
	Size() (width, height int)
	Format() TextureFormat
	// Replace uploads a whole new image, reallocating when the size changes.
	Replace(pix []byte, width, height int) error
	// WriteRegion patches the sub-rectangle r with pix (r.Dx()*r.Dy() pixels).
	WriteRegion(pix []byte, r image.Rectangle) error
	// Dispose releases texture resources.
	Dispose()
}

// Target is anything a draw can be bound to.
type Target interface {
	Size() (width, height int)
}

// Framebuffer is an offscreen color target backed by a texture.
type Framebuffer interface {
	Target
	Texture() Texture
	// Dispose releases the framebuffer and its texture.
	Dispose()
}

// Surface is the caller-owned 2D output the passes are composited onto.
// Sprites are drawn onto it between composites.
type Surface interface {
	Target
	// Clear clears the surface to transparent.
	Clear()
	// FillRect fills r with clr using alpha blending.
	FillRect(r image.Rectangle, clr color.Color)
	// DrawText draws debug text with its top-left corner at (x, y).
	DrawText(text string, x, y int)
}

// Presenter is a surface that can show a frame rasterized elsewhere.
type Presenter interface {
	Present(frame *image.RGBA)
}

// VertexBuffer holds static geometry, two floats per vertex.
type VertexBuffer interface {
	Vertices() []float32
	// Dispose releases buffer resources.
	Dispose()
}

// InstanceBuffer holds per-instance records of four floats each.
type InstanceBuffer interface {
	// Capacity is the number of records the buffer can hold.
	Capacity() int
	// Upload replaces the first count records.
	Upload(data []float32, count int) error
	// Dispose releases buffer resources.
	Dispose()
}

// PairTextures are the textures one tileset pair samples from.
type PairTextures struct {
	Primary   Texture
	Secondary Texture
	Palette   Texture
}

// InstancedDraw describes one instanced draw into the bound target.
type InstancedDraw struct {
	Program   Program
	Quad      VertexBuffer
	Instances InstanceBuffer
	Count     int
	Pairs     []PairTextures
}

// QuadDraw describes a textured full-target quad into the bound target.
type QuadDraw struct {
	Program Program
	Source  Texture
	// SourceRect crops the sampled region; the zero rectangle samples the
	// whole texture.
	SourceRect image.Rectangle
	// OffsetX/Y shift the quad in clip space (2.0 spans the whole target).
	OffsetX, OffsetY float32
}

// DeviceStats counts device work since the last reset.
type DeviceStats struct {
	DrawCalls      int
	Batches        int // backend submissions; one draw call may split into several
	Instances      int
	TextureUploads int
	RegionUploads  int
	BytesUploaded  int
	LiveResources  int
}

// Device is the GPU abstraction the tile pipeline renders through. A device
// is used from a single goroutine.
type Device interface {
	Name() string

	NewTexture(width, height int, format TextureFormat) (Texture, error)
	// NewFramebuffer creates an RGBA color target; an incomplete framebuffer
	// is an error.
	NewFramebuffer(width, height int) (Framebuffer, error)
	NewVertexBuffer(vertices []float32) (VertexBuffer, error)
	NewInstanceBuffer(capacity int) (InstanceBuffer, error)
	CompileProgram(kind ProgramKind) (Program, error)

	// Bind makes t the destination of Clear and draw calls; nil unbinds.
	Bind(t Target)
	Clear(r, g, b, a float32) error
	DrawInstanced(d *InstancedDraw) error
	DrawQuad(d *QuadDraw) error

	ContextLost() bool
	// SetContextHandlers registers callbacks for context loss and restore.
	SetContextHandlers(lost, restored func())

	Stats() DeviceStats
	ResetStats()
	// Dispose releases every resource the device still tracks.
	Dispose()
}

// ContextController is implemented by devices that can simulate a context
// reset for debugging.
type ContextController interface {
	LoseContext()
	RestoreContext()
}

// InputManager handles input from the user (keyboard, mouse, etc).
type InputManager interface {
	IsKeyPressed(key Key) bool
	IsKeyJustPressed(key Key) bool
}

// Key represents a keyboard key.
type Key int

// Key constants for the keys the viewer reads
const (
	KeyW Key = iota
	KeyA
	KeyS
	KeyD
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
	KeyPageUp
	KeyPageDown
	KeyF1 // debug overlay
	KeyF2 // lose context
	KeyF3 // restore context
	KeyF4 // force full render
	KeyEscape
)

// Game represents the game interface that the engine will call.
type Game interface {
	// Update updates the game logic. It is called every tick (typically 60 times per second).
	Update() error

	// Draw draws the game screen. It is called every frame.
	Draw(screen Surface)

	// Layout accepts the outside size (e.g., window size) and returns the logical screen size.
	Layout(outsideWidth, outsideHeight int) (screenWidth, screenHeight int)
}

// Engine represents the game engine that manages the game loop and window.
type Engine interface {
	// SetWindowSize sets the window size in pixels.
	SetWindowSize(width, height int)

	// SetWindowTitle sets the window title.
	SetWindowTitle(title string)

	// SetWindowResizable enables or disables window resizing.
	SetWindowResizable(resizable bool)

	// RunGame runs the game loop with the provided game.
	// This is a blocking call that runs until the game ends.
	RunGame(game Game) error
}
