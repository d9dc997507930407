// Package soft is a CPU implementation of render.Device. It backs the
// software fallback and gives tests a deterministic device to count work on.
package soft

import (
	"fmt"
	"image"
	"image/color"

	"github.com/zyedidia/generic/mapset"
	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

// resource is anything the device must drop on context loss.
type resource interface {
	release()
}

// Device rasterizes tiles and composites on the CPU.
type Device struct {
	live       mapset.Set[resource]
	bound      render.Target
	lost       bool
	stats      render.DeviceStats
	onLost     func()
	onRestored func()
}

// NewDevice creates a software device.
func NewDevice() *Device {
	return &Device{live: mapset.New[resource]()}
}

// Name identifies the backend in logs and overlays.
func (d *Device) Name() string { return "software" }

func (d *Device) track(r resource) {
	d.live.Put(r)
}

func (d *Device) untrack(r resource) {
	d.live.Remove(r)
}

// NewTexture allocates a zeroed texture.
func (d *Device) NewTexture(width, height int, format render.TextureFormat) (render.Texture, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("soft: invalid texture size %dx%d", width, height)
	}
	t := &Texture{dev: d, w: width, h: height, format: format}
	t.pix = make([]byte, width*height*format.BytesPerPixel())
	d.track(t)
	return t, nil
}

// NewFramebuffer allocates an RGBA color target.
func (d *Device) NewFramebuffer(width, height int) (render.Framebuffer, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("soft: framebuffer incomplete: size %dx%d", width, height)
	}
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	fb := &Framebuffer{img: img}
	fb.tex = &Texture{dev: d, w: width, h: height, format: render.FormatRGBA, pix: img.Pix}
	d.track(fb)
	return fb, nil
}

// NewVertexBuffer stores static geometry.
func (d *Device) NewVertexBuffer(vertices []float32) (render.VertexBuffer, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	if len(vertices)%2 != 0 {
		return nil, fmt.Errorf("soft: vertex data has odd length %d", len(vertices))
	}
	vb := &VertexBuffer{dev: d, data: append([]float32(nil), vertices...)}
	d.track(vb)
	return vb, nil
}

// NewInstanceBuffer allocates room for capacity instance records.
func (d *Device) NewInstanceBuffer(capacity int) (render.InstanceBuffer, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	ib := &InstanceBuffer{dev: d, data: make([]float32, capacity*tile.FloatsPerInstance)}
	d.track(ib)
	return ib, nil
}

// CompileProgram returns the built-in rasterizer for kind.
func (d *Device) CompileProgram(kind render.ProgramKind) (render.Program, error) {
	if d.lost {
		return nil, render.ErrContextLost
	}
	switch kind {
	case render.ProgramTile, render.ProgramComposite:
	default:
		return nil, fmt.Errorf("soft: unknown program %d", kind)
	}
	p := &program{dev: d, kind: kind}
	d.track(p)
	return p, nil
}

// Bind selects the destination of subsequent clears and draws.
func (d *Device) Bind(t render.Target) {
	d.bound = t
}

func (d *Device) boundImage() (*image.RGBA, error) {
	switch t := d.bound.(type) {
	case *Framebuffer:
		if t.img == nil {
			return nil, render.ErrContextLost
		}
		return t.img, nil
	case *Surface:
		return t.img, nil
	case nil:
		return nil, fmt.Errorf("soft: no target bound")
	default:
		return nil, fmt.Errorf("soft: cannot draw to %T", d.bound)
	}
}

// Clear fills the bound target with a straight-alpha color.
func (d *Device) Clear(r, g, b, a float32) error {
	if d.lost {
		return render.ErrContextLost
	}
	img, err := d.boundImage()
	if err != nil {
		return err
	}
	c := color.RGBA{
		R: unit8(r * a),
		G: unit8(g * a),
		B: unit8(b * a),
		A: unit8(a),
	}
	draw.Draw(img, img.Bounds(), image.NewUniform(c), image.Point{}, draw.Src)
	return nil
}

// DrawInstanced rasterizes every instance into the bound target.
func (d *Device) DrawInstanced(call *render.InstancedDraw) error {
	if d.lost {
		return render.ErrContextLost
	}
	if call.Program == nil || call.Program.Kind() != render.ProgramTile {
		return fmt.Errorf("soft: instanced draw needs the tile program")
	}
	if call.Quad == nil {
		return fmt.Errorf("soft: instanced draw without quad geometry")
	}
	ib, ok := call.Instances.(*InstanceBuffer)
	if !ok || ib.data == nil {
		return fmt.Errorf("soft: instanced draw without a live instance buffer")
	}
	if call.Count > ib.Capacity() {
		return fmt.Errorf("soft: draw of %d instances exceeds buffer capacity %d", call.Count, ib.Capacity())
	}
	dst, err := d.boundImage()
	if err != nil {
		return err
	}
	for i := 0; i < call.Count; i++ {
		in := tile.Unpack(ib.data[i*tile.FloatsPerInstance:])
		if in.Pair >= len(call.Pairs) {
			continue
		}
		rasterizeTile(dst, in, call.Pairs[in.Pair])
	}
	d.stats.DrawCalls++
	d.stats.Instances += call.Count
	return nil
}

// DrawQuad composites the source texture 1:1 onto the bound target, shifted
// by the clip-space offset, using alpha-over blending.
func (d *Device) DrawQuad(call *render.QuadDraw) error {
	if d.lost {
		return render.ErrContextLost
	}
	if call.Program == nil || call.Program.Kind() != render.ProgramComposite {
		return fmt.Errorf("soft: quad draw needs the composite program")
	}
	src, ok := call.Source.(*Texture)
	if !ok || src.pix == nil || src.format != render.FormatRGBA {
		return fmt.Errorf("soft: quad draw needs a live RGBA texture")
	}
	dst, err := d.boundImage()
	if err != nil {
		return err
	}
	sr := call.SourceRect
	if sr.Empty() {
		sr = image.Rect(0, 0, src.w, src.h)
	}
	srcImg := &image.RGBA{Pix: src.pix, Stride: src.w * 4, Rect: image.Rect(0, 0, src.w, src.h)}
	tw, th := dst.Bounds().Dx(), dst.Bounds().Dy()
	dx := float64(call.OffsetX) * float64(tw) / 2
	dy := -float64(call.OffsetY) * float64(th) / 2
	s2d := f64.Aff3{
		1, 0, dx - float64(sr.Min.X),
		0, 1, dy - float64(sr.Min.Y),
	}
	draw.NearestNeighbor.Transform(dst, s2d, srcImg, sr, draw.Over, nil)
	d.stats.DrawCalls++
	return nil
}

// ContextLost reports whether the simulated context is lost.
func (d *Device) ContextLost() bool { return d.lost }

// SetContextHandlers registers loss and restore callbacks.
func (d *Device) SetContextHandlers(lost, restored func()) {
	d.onLost = lost
	d.onRestored = restored
}

// LoseContext drops every live resource and reports the loss.
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

// RestoreContext makes the device usable again. Resources created before the
// loss stay dead.
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
func (d *Device) ResetStats() {
	d.stats = render.DeviceStats{}
}

// Dispose releases everything still alive.
func (d *Device) Dispose() {
	d.releaseAll()
}

func unit8(v float32) uint8 {
	switch {
	case v <= 0:
		return 0
	case v >= 1:
		return 0xFF
	default:
		return uint8(v*255 + 0.5)
	}
}

type program struct {
	dev  *Device
	kind render.ProgramKind
}

func (p *program) Kind() render.ProgramKind { return p.kind }
func (p *program) Dispose()                 { p.dev.untrack(p) }
func (p *program) release()                 {}

var (
	_ render.Device            = (*Device)(nil)
	_ render.ContextController = (*Device)(nil)
)
