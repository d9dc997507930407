// Package pipeline renders a tile world into three ordered passes
// (background, below the player, above the player) and composites them onto
// a caller-owned surface with sprites drawn in between.
package pipeline

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

var (
	// ErrInvalidPair is returned for tileset pair indices outside 0..MaxPairs-1.
	ErrInvalidPair = errors.New("pipeline: invalid tileset pair")
	// ErrNotUploaded is returned when patching a texture that was never uploaded.
	ErrNotUploaded = errors.New("pipeline: texture not uploaded")
	// ErrDisposed is returned by every call after Dispose.
	ErrDisposed = errors.New("pipeline: disposed")
)

// RenderPath tells which strategy a Render call took.
type RenderPath int

const (
	// PathSkipped means the pipeline was not ready and nothing was drawn.
	PathSkipped RenderPath = iota
	// PathNoop means nothing changed since the last render.
	PathNoop
	// PathAnimation means only animated tile content was redrawn.
	PathAnimation
	// PathFull means all passes were rebuilt and redrawn.
	PathFull
)

func (p RenderPath) String() string {
	switch p {
	case PathSkipped:
		return "skipped"
	case PathNoop:
		return "noop"
	case PathAnimation:
		return "animation"
	case PathFull:
		return "full"
	default:
		return "unknown"
	}
}

// State is the pipeline's readiness.
type State int

const (
	// StateCold means no tileset pair is uploaded yet.
	StateCold State = iota
	// StateWarmDirty means tilesets are uploaded but the passes are stale.
	StateWarmDirty
	// StateWarmClean means the passes match the last rendered view.
	StateWarmClean
	// StateAnimating means the last render took the animation-only path.
	StateAnimating
	// StateContextLost means the device context is gone until restored.
	StateContextLost
)

func (s State) String() string {
	switch s {
	case StateCold:
		return "cold"
	case StateWarmDirty:
		return "warm-dirty"
	case StateWarmClean:
		return "warm-clean"
	case StateAnimating:
		return "animating"
	case StateContextLost:
		return "context-lost"
	default:
		return "unknown"
	}
}

// Options configure a pipeline.
type Options struct {
	// EnableDirtyTracking allows the no-op and animation-only paths. When
	// false every Render takes the full path.
	EnableDirtyTracking bool
}

// DefaultOptions returns options with dirty tracking enabled.
func DefaultOptions() Options {
	return Options{EnableDirtyTracking: true}
}

// RenderOptions are the per-frame inputs besides view and elevation.
type RenderOptions struct {
	GameFrame        int
	AnimationChanged bool
	ElevationChanged bool
	ForceFullRender  bool
}

// TilesetPair is the pixel data of one tileset pair.
type TilesetPair struct {
	Primary    tile.IndexedImage
	Secondary  tile.IndexedImage
	Animations []tile.Animation
}

// Stats is a snapshot of pipeline state for overlays and logs.
type Stats struct {
	Device           string
	State            State
	LastPath         RenderPath
	TilesetVersion   uint64
	TilesetsUploaded bool
	Passes           PassStats
	Buffer           BufferStats
	Animations       int
	Destinations     int
	DeviceStats      render.DeviceStats
}

// Pipeline is the top-level tile renderer. It is not safe for concurrent use.
type Pipeline struct {
	dev  render.Device
	opts Options

	textures   *TextureManager
	buffers    *BufferManager
	animations *AnimationManager
	fbs        *FramebufferManager
	passes     *PassRenderer
	compositor *Compositor
	filter     *ElevationFilter
	program    render.Program

	resolve  tile.ResolverFunc
	uploaded [tile.MaxPairs]bool

	lastElevation   int
	lastView        tile.ViewKey
	hasLastView     bool
	needsFullRender bool
	needsWarmup     bool
	tilesetVersion  uint64
	renderedVersion uint64
	lastPath        RenderPath

	contextLost bool
	disposed    bool
	onLost      func()
	onRestored  func()
}

// New builds a pipeline on dev. Construction errors mean the device cannot
// run the pipeline and the caller should fall back to another device.
func New(dev render.Device, opts Options) (*Pipeline, error) {
	p := &Pipeline{
		dev:             dev,
		opts:            opts,
		fbs:             NewFramebufferManager(dev),
		filter:          NewElevationFilter(nil),
		lastElevation:   -1,
		needsFullRender: true,
		needsWarmup:     true,
	}
	if err := p.initResources(); err != nil {
		p.releaseResources()
		return nil, err
	}
	p.animations = NewAnimationManager(p.textures)
	p.passes = NewPassRenderer(p.fbs, p.buffers, p.textures, p.program)
	dev.SetContextHandlers(p.handleContextLost, p.handleContextRestored)
	log().WithField("device", dev.Name()).Info("Render pipeline created")
	return p, nil
}

func (p *Pipeline) initResources() error {
	program, err := p.dev.CompileProgram(render.ProgramTile)
	if err != nil {
		return fmt.Errorf("failed to compile tile program: %w", err)
	}
	p.program = program

	if p.textures == nil {
		p.textures, err = NewTextureManager(p.dev)
	} else {
		err = p.textures.Reset()
	}
	if err != nil {
		return err
	}

	if p.buffers == nil {
		p.buffers, err = NewBufferManager(p.dev)
	} else {
		err = p.buffers.Reset()
	}
	if err != nil {
		return err
	}

	if p.compositor == nil {
		p.compositor, err = NewCompositor(p.dev)
	} else {
		err = p.compositor.Reset()
	}
	return err
}

func (p *Pipeline) releaseResources() {
	if p.compositor != nil {
		p.compositor.Dispose()
	}
	if p.buffers != nil {
		p.buffers.Dispose()
	}
	if p.textures != nil {
		p.textures.Dispose()
	}
	if p.program != nil {
		p.program.Dispose()
		p.program = nil
	}
	p.fbs.Dispose()
}

// SetContextHandlers registers callbacks run after the pipeline handled a
// context loss or restore.
func (p *Pipeline) SetContextHandlers(lost, restored func()) {
	p.onLost = lost
	p.onRestored = restored
}

func (p *Pipeline) markDirty() {
	p.needsFullRender = true
	p.tilesetVersion++
}

// SetTileResolver sets the world lookup used to build instances.
func (p *Pipeline) SetTileResolver(resolve tile.ResolverFunc) {
	p.resolve = resolve
	p.markDirty()
}

// SetVerticalObjectChecker sets the predicate forcing cells above the player.
func (p *Pipeline) SetVerticalObjectChecker(vertical tile.VerticalObjectFunc) {
	p.filter.SetVerticalObjectChecker(vertical)
	p.markDirty()
}

// UploadTilesets uploads a tileset pair and its animations.
func (p *Pipeline) UploadTilesets(pair int, set TilesetPair) error {
	if p.disposed {
		return ErrDisposed
	}
	if pair < 0 || pair >= tile.MaxPairs {
		return fmt.Errorf("%w: %d", ErrInvalidPair, pair)
	}
	if err := set.Primary.Validate(); err != nil {
		return fmt.Errorf("invalid primary tileset: %w", err)
	}
	if err := set.Secondary.Validate(); err != nil {
		return fmt.Errorf("invalid secondary tileset: %w", err)
	}
	if err := p.textures.UploadTileset(pair, tile.Primary, set.Primary.Pix, set.Primary.Width, set.Primary.Height); err != nil {
		return err
	}
	if err := p.textures.UploadTileset(pair, tile.Secondary, set.Secondary.Pix, set.Secondary.Width, set.Secondary.Height); err != nil {
		// The primary texture already holds the new tiles.
		p.markDirty()
		return err
	}
	if err := p.animations.SetTilesetBuffers(pair, set.Primary, set.Secondary); err != nil {
		return err
	}
	if set.Animations != nil {
		if err := p.animations.RegisterAnimations(pair, set.Animations); err != nil {
			return err
		}
	}
	p.uploaded[pair] = true
	p.markDirty()
	log().WithFields(logrus.Fields{
		"pair":      pair,
		"primary":   fmt.Sprintf("%dx%d", set.Primary.Width, set.Primary.Height),
		"secondary": fmt.Sprintf("%dx%d", set.Secondary.Width, set.Secondary.Height),
		"version":   p.tilesetVersion,
	}).Debug("Tilesets uploaded")
	return nil
}

// UploadPalettes uploads up to 16 palettes for a pair.
func (p *Pipeline) UploadPalettes(pair int, palettes []tile.Palette) error {
	if p.disposed {
		return ErrDisposed
	}
	if err := p.textures.UploadPalettes(pair, palettes); err != nil {
		return err
	}
	p.markDirty()
	return nil
}

// UpdatePalette replaces one palette of a pair. The next Render redraws.
func (p *Pipeline) UpdatePalette(pair, index int, palette tile.Palette) error {
	if p.disposed {
		return ErrDisposed
	}
	if err := p.textures.UpdatePalette(pair, index, palette); err != nil {
		return err
	}
	p.needsFullRender = true
	return nil
}

func (p *Pipeline) anyUploaded() bool {
	for _, u := range p.uploaded {
		if u {
			return true
		}
	}
	return false
}

// Render brings the pass targets up to date for view and elevation.
func (p *Pipeline) Render(view tile.CameraView, elevation int, opts RenderOptions) (RenderPath, error) {
	switch {
	case p.disposed:
		return PathSkipped, ErrDisposed
	case p.resolve == nil:
		log().Warn("Render called without a tile resolver")
		return PathSkipped, nil
	case !p.anyUploaded():
		log().Warn("Render called before tilesets were uploaded")
		return PathSkipped, nil
	case p.contextLost || p.dev.ContextLost():
		log().Warn("Render called while the device context is lost")
		return PathSkipped, nil
	}

	key := view.Key(p.tilesetVersion)
	viewChanged := !p.hasLastView || key != p.lastView
	elevationChanged := opts.ElevationChanged || elevation != p.lastElevation
	tracking := p.opts.EnableDirtyTracking

	if tracking && opts.AnimationChanged && !viewChanged && !elevationChanged &&
		!opts.ForceFullRender && !p.needsFullRender && !p.needsWarmup &&
		p.passes.HasCachedInstances() && p.renderedVersion == p.tilesetVersion &&
		p.cachedSizeMatches(view) {
		if p.animations.Update(opts.GameFrame) {
			if err := p.passes.RerenderCached(); err != nil {
				p.needsFullRender = true
				return PathAnimation, fmt.Errorf("failed to redraw animated passes: %w", err)
			}
		}
		p.lastPath = PathAnimation
		return PathAnimation, nil
	}

	if !tracking || viewChanged || elevationChanged || opts.ForceFullRender ||
		p.needsWarmup || p.needsFullRender || opts.AnimationChanged {
		if opts.AnimationChanged {
			p.animations.Update(opts.GameFrame)
		}
		if err := p.renderFull(view, elevation); err != nil {
			p.needsFullRender = true
			return PathFull, err
		}
		p.lastView, p.hasLastView = key, true
		p.lastElevation = elevation
		p.needsFullRender = false
		p.needsWarmup = false
		p.renderedVersion = p.tilesetVersion
		p.lastPath = PathFull
		return PathFull, nil
	}

	p.lastPath = PathNoop
	return PathNoop, nil
}

func (p *Pipeline) cachedSizeMatches(view tile.CameraView) bool {
	w, h := p.passes.Dimensions()
	vw, vh := view.PixelSize()
	return w == vw && h == vh
}

func (p *Pipeline) renderFull(view tile.CameraView, elevation int) error {
	w, h := view.PixelSize()
	if w <= 0 || h <= 0 {
		return fmt.Errorf("invalid view size %dx%d tiles", view.TilesWide, view.TilesHigh)
	}
	below, above := p.filter.Filters(elevation)
	if err := p.passes.RenderBackground(view, p.resolve, w, h); err != nil {
		return fmt.Errorf("failed to render background pass: %w", err)
	}
	if err := p.passes.RenderTopBelow(view, p.resolve, below, w, h); err != nil {
		return fmt.Errorf("failed to render below pass: %w", err)
	}
	if err := p.passes.RenderTopAbove(view, p.resolve, above, w, h); err != nil {
		return fmt.Errorf("failed to render above pass: %w", err)
	}
	return nil
}

// Composite draws one pass onto dst at the view's sub-tile offset. The
// background pass clears dst first.
func (p *Pipeline) Composite(dst render.Target, pass Pass, view tile.CameraView) error {
	if p.disposed {
		return ErrDisposed
	}
	if p.contextLost {
		return nil
	}
	w, h, ok := p.fbs.Dimensions(pass)
	if !ok {
		return nil
	}
	return p.compositor.CompositeToScreen(dst, p.fbs.Texture(pass), w, h,
		-view.SubTileOffsetX, -view.SubTileOffsetY, pass == PassBackground)
}

// CompositeBackground draws the background pass, clearing dst first.
func (p *Pipeline) CompositeBackground(dst render.Target, view tile.CameraView) error {
	return p.Composite(dst, PassBackground, view)
}

// CompositeTopBelow draws the pass that sits under the player.
func (p *Pipeline) CompositeTopBelow(dst render.Target, view tile.CameraView) error {
	return p.Composite(dst, PassTopBelow, view)
}

// CompositeTopAbove draws the pass that sits over the player.
func (p *Pipeline) CompositeTopAbove(dst render.Target, view tile.CameraView) error {
	return p.Composite(dst, PassTopAbove, view)
}

// Invalidate drops cached instances and forces the next render to rebuild.
func (p *Pipeline) Invalidate() {
	p.passes.Invalidate()
	p.needsFullRender = true
	p.hasLastView = false
}

// AnimatedTileIDs returns the tile ids animations of a pair write to.
func (p *Pipeline) AnimatedTileIDs(pair int) []int {
	var ids []int
	p.animations.AnimatedTileIDs(pair).Each(func(id int) { ids = append(ids, id) })
	return ids
}

// HasAnimations reports whether any animation is registered.
func (p *Pipeline) HasAnimations() bool {
	return p.animations.HasAnimations()
}

// TilesetVersion is the counter bumped by every content change.
func (p *Pipeline) TilesetVersion() uint64 {
	return p.tilesetVersion
}

// State reports the pipeline's readiness.
func (p *Pipeline) State() State {
	switch {
	case p.contextLost:
		return StateContextLost
	case !p.anyUploaded():
		return StateCold
	case p.needsFullRender || p.needsWarmup || p.renderedVersion != p.tilesetVersion:
		return StateWarmDirty
	case p.lastPath == PathAnimation:
		return StateAnimating
	default:
		return StateWarmClean
	}
}

// Stats returns a snapshot for overlays.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Device:           p.dev.Name(),
		State:            p.State(),
		LastPath:         p.lastPath,
		TilesetVersion:   p.tilesetVersion,
		TilesetsUploaded: p.anyUploaded(),
		Passes:           p.passes.Stats(),
		Buffer:           p.buffers.Stats(),
		Animations:       p.animations.AnimationCount(),
		Destinations:     p.animations.DestinationCount(),
		DeviceStats:      p.dev.Stats(),
	}
}

func (p *Pipeline) handleContextLost() {
	log().Warn("Device context lost")
	p.contextLost = true
	p.uploaded = [tile.MaxPairs]bool{}
	p.needsFullRender = true
	p.needsWarmup = true
	p.hasLastView = false
	p.passes.Invalidate()
	p.fbs.Forget()
	if p.onLost != nil {
		p.onLost()
	}
}

func (p *Pipeline) handleContextRestored() {
	log().Info("Device context restored")
	if err := p.initResources(); err != nil {
		log().WithError(err).Error("Failed to reinitialize after context restore")
		return
	}
	p.passes.SetProgram(p.program)
	p.animations.Clear()
	p.contextLost = false
	if p.onRestored != nil {
		p.onRestored()
	}
}

// Dispose releases every device resource the pipeline owns. The device
// itself stays with the caller.
func (p *Pipeline) Dispose() {
	if p.disposed {
		return
	}
	p.releaseResources()
	p.animations.Clear()
	p.passes.Invalidate()
	p.disposed = true
	p.dev.SetContextHandlers(nil, nil)
}
