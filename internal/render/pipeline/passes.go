package pipeline

import (
	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

// PassStats counts the cached instances of each pass.
type PassStats struct {
	Background int
	TopBelow   int
	TopAbove   int
}

// PassRenderer builds, caches and draws the instance lists of the passes.
type PassRenderer struct {
	fbs      *FramebufferManager
	buffers  *BufferManager
	textures *TextureManager
	program  render.Program

	cache         PassInstances
	width, height int
}

// NewPassRenderer wires a pass renderer to its collaborators.
func NewPassRenderer(fbs *FramebufferManager, buffers *BufferManager, textures *TextureManager, program render.Program) *PassRenderer {
	return &PassRenderer{fbs: fbs, buffers: buffers, textures: textures, program: program}
}

// SetProgram swaps the tile program, as after a context restore.
func (r *PassRenderer) SetProgram(p render.Program) {
	r.program = p
}

// RenderBackground rebuilds and draws the background pass.
func (r *PassRenderer) RenderBackground(view tile.CameraView, resolve tile.ResolverFunc, width, height int) error {
	r.cache.Background = BuildBackground(r.cache.Background[:0], view, resolve)
	r.cache.mustNotAlias()
	return r.draw(PassBackground, r.cache.Background, width, height)
}

// RenderTopBelow rebuilds and draws the pass under the player.
func (r *PassRenderer) RenderTopBelow(view tile.CameraView, resolve tile.ResolverFunc, filter tile.ElevationFilterFunc, width, height int) error {
	r.cache.TopBelow = BuildTopLayer(r.cache.TopBelow[:0], view, resolve, filter)
	r.cache.mustNotAlias()
	return r.draw(PassTopBelow, r.cache.TopBelow, width, height)
}

// RenderTopAbove rebuilds and draws the pass over the player.
func (r *PassRenderer) RenderTopAbove(view tile.CameraView, resolve tile.ResolverFunc, filter tile.ElevationFilterFunc, width, height int) error {
	r.cache.TopAbove = BuildTopLayer(r.cache.TopAbove[:0], view, resolve, filter)
	r.cache.mustNotAlias()
	return r.draw(PassTopAbove, r.cache.TopAbove, width, height)
}

// RerenderCached redraws all passes from the cached lists.
func (r *PassRenderer) RerenderCached() error {
	if r.width == 0 || r.height == 0 {
		return nil
	}
	for _, p := range Passes {
		if err := r.draw(p, r.cached(p), r.width, r.height); err != nil {
			return err
		}
	}
	return nil
}

func (r *PassRenderer) cached(p Pass) []tile.Instance {
	switch p {
	case PassBackground:
		return r.cache.Background
	case PassTopBelow:
		return r.cache.TopBelow
	default:
		return r.cache.TopAbove
	}
}

func (r *PassRenderer) draw(pass Pass, list []tile.Instance, width, height int) error {
	if _, err := r.fbs.Framebuffer(pass, width, height); err != nil {
		return err
	}
	r.width, r.height = width, height
	if err := r.fbs.Bind(pass); err != nil {
		return err
	}
	defer r.fbs.Unbind()
	if err := r.fbs.Clear(0, 0, 0, 0); err != nil {
		return err
	}
	if len(list) == 0 {
		return nil
	}
	if err := r.buffers.UpdateInstanceBuffer(list); err != nil {
		return err
	}
	return r.buffers.Draw(r.program, r.textures.Bindings())
}

// HasCachedInstances reports whether the background list is non-empty.
func (r *PassRenderer) HasCachedInstances() bool {
	return len(r.cache.Background) > 0
}

// Dimensions returns the size the passes were last drawn at.
func (r *PassRenderer) Dimensions() (width, height int) {
	return r.width, r.height
}

// Invalidate drops every cached list.
func (r *PassRenderer) Invalidate() {
	r.cache.Reset()
	r.width, r.height = 0, 0
}

// Stats returns the cached instance counts.
func (r *PassRenderer) Stats() PassStats {
	return PassStats{
		Background: len(r.cache.Background),
		TopBelow:   len(r.cache.TopBelow),
		TopAbove:   len(r.cache.TopAbove),
	}
}
