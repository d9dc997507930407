package ebiten

import (
	_ "embed"
	"fmt"
	"image"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/zyedidia/generic/mapset"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

//go:embed shaders/tile.kage
var tileShaderSrc []byte

//go:embed shaders/composite.kage
var compositeShaderSrc []byte

// maxQuadsPerDraw keeps vertex indices inside uint16.
const maxQuadsPerDraw = 16383

type resource interface {
	release()
}

// Device implements render.Device on ebiten images and Kage shaders.
// Instances are expanded to quads on the CPU and submitted with one
// DrawTrianglesShader per tileset pair, since a Kage draw samples at most
// four images.
type Device struct {
	live       mapset.Set[resource]
	bound      render.Target
	lost       bool
	stats      render.DeviceStats
	onLost     func()
	onRestored func()

	vertices [tile.MaxPairs][]ebiten.Vertex
	indices  [tile.MaxPairs][]uint16
}

// NewDevice creates an ebiten-backed device. It compiles both programs once
// so shader errors surface at construction.
func NewDevice() (*Device, error) {
	d := &Device{live: mapset.New[resource]()}
	for _, kind := range []render.ProgramKind{render.ProgramTile, render.ProgramComposite} {
		p, err := d.CompileProgram(kind)
		if err != nil {
			return nil, err
		}
		p.Dispose()
	}
	return d, nil
}

// Name identifies the backend in logs and overlays.
func (d *Device) Name() string { return "ebiten" }

func (d *Device) track(r resource)   { d.live.Put(r) }
func (d *Device) untrack(r resource) { d.live.Remove(r) }

// NewTexture allocates an image; indexed textures keep the index in red.
func (d *Device) NewTexture(width, height int, format render.TextureFormat) (render.Texture, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ebiten: invalid texture size %dx%d", width, height)
	}
	t := &Texture{dev: d, img: ebiten.NewImage(width, height), w: width, h: height, format: format}
	d.track(t)
	return t, nil
}

// NewFramebuffer allocates an offscreen image target.
func (d *Device) NewFramebuffer(width, height int) (render.Framebuffer, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("ebiten: framebuffer incomplete: size %dx%d", width, height)
	}
	img := ebiten.NewImage(width, height)
	fb := &Framebuffer{tex: &Texture{dev: d, img: img, w: width, h: height, format: render.FormatRGBA}}
	d.track(fb)
	return fb, nil
}

// NewVertexBuffer keeps the quad corners for CPU expansion.
func (d *Device) NewVertexBuffer(vertices []float32) (render.VertexBuffer, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	if len(vertices) != 8 {
		return nil, fmt.Errorf("ebiten: expected a 4-vertex quad, got %d floats", len(vertices))
	}
	vb := &VertexBuffer{dev: d, data: append([]float32(nil), vertices...)}
	d.track(vb)
	return vb, nil
}

// NewInstanceBuffer allocates CPU-side instance storage.
func (d *Device) NewInstanceBuffer(capacity int) (render.InstanceBuffer, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	ib := &InstanceBuffer{dev: d, data: make([]float32, capacity*tile.FloatsPerInstance)}
	d.track(ib)
	return ib, nil
}

// CompileProgram compiles the Kage source for kind.
func (d *Device) CompileProgram(kind render.ProgramKind) (render.Program, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	var src []byte
	switch kind {
	case render.ProgramTile:
		src = tileShaderSrc
	case render.ProgramComposite:
		src = compositeShaderSrc
	default:
		return nil, fmt.Errorf("ebiten: unknown program %d", kind)
	}
	shader, err := ebiten.NewShader(src)
	if err != nil {
		return nil, fmt.Errorf("failed to compile %s shader: %w", kind, err)
	}
	p := &Program{dev: d, kind: kind, shader: shader}
	d.track(p)
	return p, nil
}

// Bind selects the destination of clears and draws.
func (d *Device) Bind(t render.Target) {
	d.bound = t
}

func (d *Device) boundImage() (*ebiten.Image, error) {
	switch t := d.bound.(type) {
	case *Framebuffer:
		if t.tex.img == nil {
			return nil, render.ErrContextLost
		}
		return t.tex.img, nil
	case *Surface:
		return t.img, nil
	case nil:
		return nil, fmt.Errorf("ebiten: no target bound")
	default:
		return nil, fmt.Errorf("ebiten: cannot draw to %T", d.bound)
	}
}

// Clear fills the bound target.
func (d *Device) Clear(r, g, b, a float32) error {
	if d.lost {
		return render.ErrContextLost
	}
	img, err := d.boundImage()
	if err != nil {
		return err
	}
	if a == 0 {
		img.Clear()
		return nil
	}
	img.Fill(straightToPremultiplied(r, g, b, a))
	return nil
}

// DrawInstanced expands the instances into quads and draws them.
func (d *Device) DrawInstanced(call *render.InstancedDraw) error {
	if d.lost {
		return render.ErrContextLost
	}
	prog, ok := call.Program.(*Program)
	if !ok || prog.shader == nil || prog.kind != render.ProgramTile {
		return fmt.Errorf("ebiten: instanced draw needs the tile program")
	}
	quad, ok := call.Quad.(*VertexBuffer)
	if !ok || quad.data == nil {
		return fmt.Errorf("ebiten: instanced draw without quad geometry")
	}
	ib, ok := call.Instances.(*InstanceBuffer)
	if !ok || ib.data == nil {
		return fmt.Errorf("ebiten: instanced draw without a live instance buffer")
	}
	if call.Count > ib.Capacity() {
		return fmt.Errorf("ebiten: draw of %d instances exceeds buffer capacity %d", call.Count, ib.Capacity())
	}
	dst, err := d.boundImage()
	if err != nil {
		return err
	}

	for p := range d.vertices {
		d.vertices[p] = d.vertices[p][:0]
		d.indices[p] = d.indices[p][:0]
	}
	for i := 0; i < call.Count; i++ {
		in := tile.Unpack(ib.data[i*tile.FloatsPerInstance:])
		if in.Pair >= len(call.Pairs) || in.Pair >= tile.MaxPairs {
			continue
		}
		src := call.Pairs[in.Pair].Primary
		if in.Tileset == tile.Secondary {
			src = call.Pairs[in.Pair].Secondary
		}
		w, _ := src.Size()
		cols := w / tile.Size
		if cols == 0 {
			continue
		}
		d.appendQuad(in, quad.data, cols)
		if d.batchFull(in.Pair) {
			if err := d.flush(dst, prog, call.Pairs[in.Pair], in.Pair); err != nil {
				return err
			}
		}
	}
	for p := 0; p < len(call.Pairs) && p < tile.MaxPairs; p++ {
		if err := d.flush(dst, prog, call.Pairs[p], p); err != nil {
			return err
		}
	}
	d.stats.DrawCalls++
	d.stats.Instances += call.Count
	return nil
}

// appendQuad writes the four vertices of one tile. Vertex color carries the
// tileset texel position, the tileset selector and the palette row.
func (d *Device) appendQuad(in tile.Instance, corners []float32, cols int) {
	p := in.Pair
	base := uint16(len(d.vertices[p]))
	tx := float32((in.TileID % cols) * tile.Size)
	ty := float32((in.TileID / cols) * tile.Size)
	var set float32
	if in.Tileset == tile.Secondary {
		set = 1
	}
	for c := 0; c < 4; c++ {
		cx, cy := corners[c*2], corners[c*2+1]
		u, v := cx, cy
		if in.XFlip {
			u = 1 - cx
		}
		if in.YFlip {
			v = 1 - cy
		}
		d.vertices[p] = append(d.vertices[p], ebiten.Vertex{
			DstX:   in.X + cx*tile.Size,
			DstY:   in.Y + cy*tile.Size,
			ColorR: tx + u*tile.Size,
			ColorG: ty + v*tile.Size,
			ColorB: set,
			ColorA: float32(in.Palette),
		})
	}
	d.indices[p] = append(d.indices[p], base, base+1, base+2, base+1, base+3, base+2)
}

// batchFull reports whether pair p holds as many quads as uint16 indices
// can address.
func (d *Device) batchFull(p int) bool {
	return len(d.indices[p])/6 >= maxQuadsPerDraw
}

func (d *Device) flush(dst *ebiten.Image, prog *Program, pair render.PairTextures, p int) error {
	if len(d.indices[p]) == 0 {
		return nil
	}
	opts := &ebiten.DrawTrianglesShaderOptions{}
	for i, t := range []render.Texture{pair.Primary, pair.Secondary, pair.Palette} {
		tex, ok := t.(*Texture)
		if !ok || tex.img == nil {
			return fmt.Errorf("ebiten: pair %d has no live texture in slot %d", p, i)
		}
		opts.Images[i] = tex.img
	}
	dst.DrawTrianglesShader(d.vertices[p], d.indices[p], prog.shader, opts)
	d.stats.Batches++
	d.vertices[p] = d.vertices[p][:0]
	d.indices[p] = d.indices[p][:0]
	return nil
}

// DrawQuad composites the source 1:1 onto the bound target.
func (d *Device) DrawQuad(call *render.QuadDraw) error {
	if d.lost {
		return render.ErrContextLost
	}
	prog, ok := call.Program.(*Program)
	if !ok || prog.shader == nil || prog.kind != render.ProgramComposite {
		return fmt.Errorf("ebiten: quad draw needs the composite program")
	}
	src, ok := call.Source.(*Texture)
	if !ok || src.img == nil {
		return fmt.Errorf("ebiten: quad draw needs a live texture")
	}
	dst, err := d.boundImage()
	if err != nil {
		return err
	}
	sr := call.SourceRect
	if sr.Empty() {
		sr = image.Rect(0, 0, src.w, src.h)
	}
	tw, th := dst.Bounds().Dx(), dst.Bounds().Dy()
	opts := &ebiten.DrawRectShaderOptions{}
	opts.Images[0] = src.img.SubImage(sr).(*ebiten.Image)
	opts.GeoM.Translate(
		float64(call.OffsetX)*float64(tw)/2,
		-float64(call.OffsetY)*float64(th)/2,
	)
	dst.DrawRectShader(sr.Dx(), sr.Dy(), prog.shader, opts)
	d.stats.DrawCalls++
	d.stats.Batches++
	return nil
}

// ContextLost reports whether a simulated loss is in effect. Ebiten restores
// real device resets internally.
func (d *Device) ContextLost() bool { return d.lost }

// SetContextHandlers registers loss and restore callbacks.
func (d *Device) SetContextHandlers(lost, restored func()) {
	d.onLost = lost
	d.onRestored = restored
}

// LoseContext disposes every live image and shader and reports the loss.
func (d *Device) LoseContext() {
	if d.lost {
		return
	}
	d.lost = true
	d.releaseAll()
	if d.onLost != nil {
		d.onLost()
	}
}

// RestoreContext makes the device usable again.
func (d *Device) RestoreContext() {
	if !d.lost {
		return
	}
	d.lost = false
	if d.onRestored != nil {
		d.onRestored()
	}
}

func (d *Device) releaseAll() {
	var all []resource
	d.live.Each(func(r resource) { all = append(all, r) })
	for _, r := range all {
		r.release()
	}
	d.live = mapset.New[resource]()
	d.bound = nil
}

// Stats returns the work counters.
func (d *Device) Stats() render.DeviceStats {
	s := d.stats
	s.LiveResources = d.live.Size()
	return s
}

// ResetStats zeroes the work counters.
func (d *Device) ResetStats() { d.stats = render.DeviceStats{} }

// Dispose releases every tracked resource.
func (d *Device) Dispose() { d.releaseAll() }

var (
	_ render.Device            = (*Device)(nil)
	_ render.ContextController = (*Device)(nil)
)
