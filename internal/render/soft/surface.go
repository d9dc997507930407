package soft

import (
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"chosenoffset.com/fieldrender/internal/render"
)

// Surface is an in-memory output surface.
type Surface struct {
	img *image.RGBA
}

// NewSurface allocates a transparent surface.
func NewSurface(width, height int) *Surface {
	return &Surface{img: image.NewRGBA(image.Rect(0, 0, width, height))}
}

// Size returns the surface dimensions.
func (s *Surface) Size() (int, int) {
	return s.img.Bounds().Dx(), s.img.Bounds().Dy()
}

// Clear clears to transparent.
func (s *Surface) Clear() {
	clear(s.img.Pix)
}

// FillRect blends clr over r.
func (s *Surface) FillRect(r image.Rectangle, clr color.Color) {
	draw.Draw(s.img, r.Intersect(s.img.Bounds()), image.NewUniform(clr), image.Point{}, draw.Over)
}

// DrawText draws white 7x13 text with its top-left corner at (x, y).
func (s *Surface) DrawText(text string, x, y int) {
	face := basicfont.Face7x13
	d := &font.Drawer{
		Dst:  s.img,
		Src:  image.White,
		Face: face,
		Dot:  fixed.P(x, y+face.Ascent),
	}
	d.DrawString(text)
}

// RGBA returns the backing image.
func (s *Surface) RGBA() *image.RGBA { return s.img }

// Resize reallocates the surface when the size differs.
func (s *Surface) Resize(width, height int) {
	if w, h := s.Size(); w == width && h == height {
		return
	}
	s.img = image.NewRGBA(image.Rect(0, 0, width, height))
}

var _ render.Surface = (*Surface)(nil)
