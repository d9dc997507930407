package pipeline

import (
	"fmt"
	"image"

	"chosenoffset.com/fieldrender/internal/render"
)

// Compositor draws pass textures onto the output surface.
type Compositor struct {
	dev     render.Device
	program render.Program
}

// NewCompositor compiles the composite program.
func NewCompositor(dev render.Device) (*Compositor, error) {
	c := &Compositor{dev: dev}
	if err := c.Reset(); err != nil {
		return nil, err
	}
	return c, nil
}

// Reset recompiles the composite program.
func (c *Compositor) Reset() error {
	p, err := c.dev.CompileProgram(render.ProgramComposite)
	if err != nil {
		return fmt.Errorf("failed to compile composite program: %w", err)
	}
	c.program = p
	return nil
}

// SubPixelOffset converts a pixel offset on a width x height target into a
// clip-space offset. Clip y points up.
func SubPixelOffset(offsetX, offsetY float64, width, height int) (float32, float32) {
	if width <= 0 || height <= 0 {
		return 0, 0
	}
	return float32(offsetX * 2 / float64(width)), float32(-offsetY * 2 / float64(height))
}

// CompositeToScreen draws the top-left width x height region of tex onto dst,
// shifted by a pixel offset. clearFirst clears dst before drawing.
func (c *Compositor) CompositeToScreen(dst render.Target, tex render.Texture, width, height int, offsetX, offsetY float64, clearFirst bool) error {
	return c.CompositeRegionToScreen(dst, tex, image.Rect(0, 0, width, height), offsetX, offsetY, clearFirst)
}

// CompositeRegionToScreen draws the region of tex onto dst, shifted by a
// pixel offset.
func (c *Compositor) CompositeRegionToScreen(dst render.Target, tex render.Texture, region image.Rectangle, offsetX, offsetY float64, clearFirst bool) error {
	if tex == nil {
		return nil
	}
	c.dev.Bind(dst)
	defer c.dev.Bind(nil)
	if clearFirst {
		if err := c.dev.Clear(0, 0, 0, 0); err != nil {
			return err
		}
	}
	tw, th := dst.Size()
	ox, oy := SubPixelOffset(offsetX, offsetY, tw, th)
	return c.dev.DrawQuad(&render.QuadDraw{
		Program:    c.program,
		Source:     tex,
		SourceRect: region,
		OffsetX:    ox,
		OffsetY:    oy,
	})
}

// Dispose releases the program.
func (c *Compositor) Dispose() {
	if c.program != nil {
		c.program.Dispose()
		c.program = nil
	}
}
