package pipeline

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"chosenoffset.com/fieldrender/internal/render"
)

// Pass names one of the three ordered render targets.
type Pass string

const (
	PassBackground Pass = "background"
	PassTopBelow   Pass = "topBelow"
	PassTopAbove   Pass = "topAbove"
)

// Passes lists the passes in composite order.
var Passes = [...]Pass{PassBackground, PassTopBelow, PassTopAbove}

type framebufferEntry struct {
	fb            render.Framebuffer
	width, height int
}

// FramebufferManager owns one offscreen target per pass.
type FramebufferManager struct {
	dev     render.Device
	entries map[Pass]*framebufferEntry
}

// NewFramebufferManager returns an empty manager.
func NewFramebufferManager(dev render.Device) *FramebufferManager {
	return &FramebufferManager{dev: dev, entries: make(map[Pass]*framebufferEntry)}
}

// Framebuffer returns the pass target, recreating it when missing or when
// its size differs from width x height.
func (m *FramebufferManager) Framebuffer(pass Pass, width, height int) (render.Framebuffer, error) {
	if e, ok := m.entries[pass]; ok {
		if e.width == width && e.height == height {
			return e.fb, nil
		}
		e.fb.Dispose()
		delete(m.entries, pass)
	}
	fb, err := m.dev.NewFramebuffer(width, height)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s framebuffer: %w", pass, err)
	}
	m.entries[pass] = &framebufferEntry{fb: fb, width: width, height: height}
	log().WithFields(logrus.Fields{
		"pass":   pass,
		"width":  width,
		"height": height,
	}).Debug("Framebuffer created")
	return fb, nil
}

// Bind directs subsequent draws to the pass target.
func (m *FramebufferManager) Bind(pass Pass) error {
	e, ok := m.entries[pass]
	if !ok {
		return fmt.Errorf("no framebuffer for pass %s", pass)
	}
	m.dev.Bind(e.fb)
	return nil
}

// Unbind clears the device binding.
func (m *FramebufferManager) Unbind() {
	m.dev.Bind(nil)
}

// Clear clears the bound target.
func (m *FramebufferManager) Clear(r, g, b, a float32) error {
	return m.dev.Clear(r, g, b, a)
}

// Dimensions returns the size of a pass target.
func (m *FramebufferManager) Dimensions(pass Pass) (width, height int, ok bool) {
	e, ok := m.entries[pass]
	if !ok {
		return 0, 0, false
	}
	return e.width, e.height, true
}

// Texture returns the color attachment of a pass, or nil.
func (m *FramebufferManager) Texture(pass Pass) render.Texture {
	e, ok := m.entries[pass]
	if !ok {
		return nil
	}
	return e.fb.Texture()
}

// Forget drops every entry without disposing it, for when the device has
// already released the targets.
func (m *FramebufferManager) Forget() {
	clear(m.entries)
}

// Dispose releases every target.
func (m *FramebufferManager) Dispose() {
	for _, e := range m.entries {
		e.fb.Dispose()
	}
	clear(m.entries)
}
