package soft

import (
	"fmt"
	"image"

	"chosenoffset.com/fieldrender/internal/render"
	"chosenoffset.com/fieldrender/internal/tile"
)

// Texture is a CPU pixel buffer in indexed or RGBA layout.
type Texture struct {
	dev    *Device
	w, h   int
	format render.TextureFormat
	pix    []byte // nil once released
}

// Size returns the texture dimensions.
func (t *Texture) Size() (int, int) { return t.w, t.h }

// Format returns the pixel layout.
func (t *Texture) Format() render.TextureFormat { return t.format }

// Pixels exposes the raw buffer for inspection in tests.
func (t *Texture) Pixels() []byte { return t.pix }

// Replace copies in a whole image, reallocating on size change.
func (t *Texture) Replace(pix []byte, width, height int) error {
	if t.pix == nil || t.dev.lost {
		return render.ErrContextLost
	}
	n := width * height * t.format.BytesPerPixel()
	if width <= 0 || height <= 0 || len(pix) < n {
		return fmt.Errorf("soft: upload of %d bytes does not fill %dx%d", len(pix), width, height)
	}
	if width != t.w || height != t.h {
		t.pix = make([]byte, n)
		t.w, t.h = width, height
	}
	copy(t.pix, pix[:n])
	t.dev.stats.TextureUploads++
	t.dev.stats.BytesUploaded += n
	return nil
}

// WriteRegion copies pix into the rectangle r row by row.
func (t *Texture) WriteRegion(pix []byte, r image.Rectangle) error {
	if t.pix == nil || t.dev.lost {
		return render.ErrContextLost
	}
	if r.Empty() || !r.In(image.Rect(0, 0, t.w, t.h)) {
		return fmt.Errorf("soft: region %v outside %dx%d texture", r, t.w, t.h)
	}
	bpp := t.format.BytesPerPixel()
	row := r.Dx() * bpp
	if len(pix) < row*r.Dy() {
		return fmt.Errorf("soft: region upload of %d bytes does not fill %v", len(pix), r)
	}
	for y := 0; y < r.Dy(); y++ {
		off := ((r.Min.Y+y)*t.w + r.Min.X) * bpp
		copy(t.pix[off:off+row], pix[y*row:(y+1)*row])
	}
	t.dev.stats.RegionUploads++
	t.dev.stats.BytesUploaded += row * r.Dy()
	return nil
}

// Dispose frees the buffer.
func (t *Texture) Dispose() {
	t.release()
	t.dev.untrack(t)
}

func (t *Texture) release() {
	t.pix = nil
}

// Framebuffer is an RGBA image whose pixels double as a texture.
type Framebuffer struct {
	img *image.RGBA
	tex *Texture
}

// Size returns the target dimensions.
func (f *Framebuffer) Size() (int, int) { return f.tex.w, f.tex.h }

// Texture returns the color attachment.
func (f *Framebuffer) Texture() render.Texture { return f.tex }

// Image exposes the color attachment as an image for inspection.
func (f *Framebuffer) Image() *image.RGBA { return f.img }

// Dispose frees the framebuffer.
func (f *Framebuffer) Dispose() {
	f.release()
	f.tex.dev.untrack(f)
}

func (f *Framebuffer) release() {
	f.img = nil
	f.tex.pix = nil
}

// VertexBuffer holds static geometry.
type VertexBuffer struct {
	dev  *Device
	data []float32
}

// Vertices returns the stored geometry.
func (v *VertexBuffer) Vertices() []float32 { return v.data }

// Dispose frees the buffer.
func (v *VertexBuffer) Dispose() {
	v.release()
	v.dev.untrack(v)
}

func (v *VertexBuffer) release() { v.data = nil }

// InstanceBuffer holds packed instance records.
type InstanceBuffer struct {
	dev  *Device
	data []float32
}

// Capacity is the number of records that fit.
func (b *InstanceBuffer) Capacity() int {
	return len(b.data) / tile.FloatsPerInstance
}

// Upload copies count records from data.
func (b *InstanceBuffer) Upload(data []float32, count int) error {
	if b.data == nil || b.dev.lost {
		return render.ErrContextLost
	}
	if count > b.Capacity() {
		return fmt.Errorf("soft: upload of %d instances exceeds capacity %d", count, b.Capacity())
	}
	n := count * tile.FloatsPerInstance
	copy(b.data[:n], data[:n])
	b.dev.stats.BytesUploaded += n * 4
	return nil
}

// Dispose frees the buffer.
func (b *InstanceBuffer) Dispose() {
	b.release()
	b.dev.untrack(b)
}

func (b *InstanceBuffer) release() { b.data = nil }
