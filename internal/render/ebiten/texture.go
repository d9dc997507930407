package ebiten

import (
	"fmt"
	"image"
	"image/color"

	"github.com/hajimehoshi/ebiten/v2"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

// Texture wraps an ebiten.Image. Indexed textures store the palette index in
// the red channel with full alpha; RGBA textures are stored premultiplied.
type Texture struct {
	dev    *Device
	img    *ebiten.Image
	w, h   int
	format render.TextureFormat
	staged []byte
}

// Size returns the texture dimensions.
func (t *Texture) Size() (int, int) { return t.w, t.h }

// Format returns the upload layout.
func (t *Texture) Format() render.TextureFormat { return t.format }

// Replace uploads a whole image, reallocating on size change.
func (t *Texture) Replace(pix []byte, width, height int) error {
	if t.img == nil || t.dev.lost {
		return render.ErrContextLost
	}
	n := width * height * t.format.BytesPerPixel()
	if width <= 0 || height <= 0 || len(pix) < n {
		return fmt.Errorf("ebiten: upload of %d bytes does not fill %dx%d", len(pix), width, height)
	}
	if width != t.w || height != t.h {
		t.img.Deallocate()
		t.img = ebiten.NewImage(width, height)
		t.w, t.h = width, height
	}
	t.img.WritePixels(t.expand(pix[:n], width*height))
	t.dev.stats.TextureUploads++
	t.dev.stats.BytesUploaded += n
	return nil
}

// WriteRegion patches r through a sub-image.
func (t *Texture) WriteRegion(pix []byte, r image.Rectangle) error {
	if t.img == nil || t.dev.lost {
		return render.ErrContextLost
	}
	if r.Empty() || !r.In(image.Rect(0, 0, t.w, t.h)) {
		return fmt.Errorf("ebiten: region %v outside %dx%d texture", r, t.w, t.h)
	}
	n := r.Dx() * r.Dy() * t.format.BytesPerPixel()
	if len(pix) < n {
		return fmt.Errorf("ebiten: region upload of %d bytes does not fill %v", len(pix), r)
	}
	sub := t.img.SubImage(r).(*ebiten.Image)
	sub.WritePixels(t.expand(pix[:n], r.Dx()*r.Dy()))
	t.dev.stats.RegionUploads++
	t.dev.stats.BytesUploaded += n
	return nil
}

// expand converts an upload into premultiplied RGBA. The staging buffer is
// reused across uploads.
func (t *Texture) expand(pix []byte, pixels int) []byte {
	if cap(t.staged) < pixels*4 {
		t.staged = make([]byte, pixels*4)
	}
	out := t.staged[:pixels*4]
	if t.format == render.FormatIndexed {
		for i := 0; i < pixels; i++ {
			out[i*4] = pix[i]
			out[i*4+1] = 0
			out[i*4+2] = 0
			out[i*4+3] = 0xFF
		}
		return out
	}
	for i := 0; i < pixels; i++ {
		r, g, b, a := pix[i*4], pix[i*4+1], pix[i*4+2], pix[i*4+3]
		out[i*4] = uint8(uint16(r) * uint16(a) / 255)
		out[i*4+1] = uint8(uint16(g) * uint16(a) / 255)
		out[i*4+2] = uint8(uint16(b) * uint16(a) / 255)
		out[i*4+3] = a
	}
	return out
}

// Dispose releases the image.
func (t *Texture) Dispose() {
	t.release()
	t.dev.untrack(t)
}

func (t *Texture) release() {
	if t.img != nil {
		t.img.Deallocate()
		t.img = nil
	}
	t.staged = nil
}

// Framebuffer is an offscreen ebiten image.
type Framebuffer struct {
	tex *Texture
}

// Size returns the target dimensions.
func (f *Framebuffer) Size() (int, int) { return f.tex.w, f.tex.h }

// Texture returns the color attachment.
func (f *Framebuffer) Texture() render.Texture { return f.tex }

// Dispose releases the framebuffer.
func (f *Framebuffer) Dispose() {
	f.release()
	f.tex.dev.untrack(f)
}

func (f *Framebuffer) release() { f.tex.release() }

// Program wraps a compiled Kage shader.
type Program struct {
	dev    *Device
	kind   render.ProgramKind
	shader *ebiten.Shader
}

// Kind returns the program's role.
func (p *Program) Kind() render.ProgramKind { return p.kind }

// Dispose releases the shader.
func (p *Program) Dispose() {
	p.release()
	p.dev.untrack(p)
}

func (p *Program) release() {
	if p.shader != nil {
		p.shader.Deallocate()
		p.shader = nil
	}
}

// VertexBuffer keeps the unit quad corners.
type VertexBuffer struct {
	dev  *Device
	data []float32
}

// Vertices returns the quad corners.
func (v *VertexBuffer) Vertices() []float32 { return v.data }

// Dispose drops the geometry.
func (v *VertexBuffer) Dispose() {
	v.release()
	v.dev.untrack(v)
}

func (v *VertexBuffer) release() { v.data = nil }

// InstanceBuffer keeps packed instances for CPU quad expansion.
type InstanceBuffer struct {
	dev  *Device
	data []float32
}

// Capacity is the number of records that fit.
func (b *InstanceBuffer) Capacity() int { return len(b.data) / tile.FloatsPerInstance }

// Upload copies count records.
func (b *InstanceBuffer) Upload(data []float32, count int) error {
	if b.data == nil || b.dev.lost {
		return render.ErrContextLost
	}
	if count > b.Capacity() {
		return fmt.Errorf("ebiten: upload of %d instances exceeds capacity %d", count, b.Capacity())
	}
	n := count * tile.FloatsPerInstance
	copy(b.data[:n], data[:n])
	b.dev.stats.BytesUploaded += n * 4
	return nil
}

// Dispose drops the storage.
func (b *InstanceBuffer) Dispose() {
	b.release()
	b.dev.untrack(b)
}

func (b *InstanceBuffer) release() { b.data = nil }

func straightToPremultiplied(r, g, b, a float32) color.RGBA {
	c := func(v float32) uint8 {
		switch {
		case v <= 0:
			return 0
		case v >= 1:
			return 0xFF
		}
		return uint8(v*255 + 0.5)
	}
	return color.RGBA{R: c(r * a), G: c(g * a), B: c(b * a), A: c(a)}
}
