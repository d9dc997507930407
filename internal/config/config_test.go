package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return p
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	c, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	d := DefaultConfig()
	if c.Render != d.Render || c.Assets != d.Assets || c.Log != d.Log {
		t.Errorf("Expected defaults %+v, got %+v", d, c)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	p := writeFile(t, "fieldrender.yaml", `
render:
  force_software: true
  scale: 2
  view_tiles_wide: 20
assets:
  dir: /data/assets
log:
  level: debug
  format: json
`)
	c, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if !c.Render.ForceSoftware {
		t.Error("Expected force_software from file")
	}
	if c.Render.Scale != 2 || c.Render.ViewTilesWide != 20 {
		t.Errorf("Expected scale 2 and 20 tiles wide, got %d and %d", c.Render.Scale, c.Render.ViewTilesWide)
	}
	if c.Render.ViewTilesHigh != 10 {
		t.Errorf("Expected default view height 10, got %d", c.Render.ViewTilesHigh)
	}
	if !c.Render.EnableDirtyTracking {
		t.Error("Expected dirty tracking to keep its default")
	}
	if c.Assets.Dir != "/data/assets" || c.Log.Level != "debug" || c.Log.Format != "json" {
		t.Errorf("Unexpected assets/log settings %+v %+v", c.Assets, c.Log)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("FIELDRENDER_RENDER_ENABLE_DIRTY_TRACKING", "false")
	t.Setenv("FIELDRENDER_LOG_LEVEL", "warn")
	p := writeFile(t, "fieldrender.yaml", "log:\n  level: debug\n")
	c, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if c.Render.EnableDirtyTracking {
		t.Error("Expected the environment to disable dirty tracking")
	}
	if c.Log.Level != "warn" {
		t.Errorf("Expected env level warn to win over the file, got %s", c.Log.Level)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero scale", "render:\n  scale: 0\n"},
		{"bad level", "log:\n  level: loud\n"},
		{"bad format", "log:\n  format: xml\n"},
		{"negative overscan", "render:\n  overscan_tiles: -1\n"},
		{"malformed", "render: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfig(writeFile(t, "c.yaml", tt.content)); err == nil {
				t.Error("Expected an error")
			}
		})
	}
}

func TestWindowSize(t *testing.T) {
	c := DefaultConfig()
	w, h := c.WindowSize(16)
	if w != 15*16*3 || h != 10*16*3 {
		t.Errorf("Expected 720x480, got %dx%d", w, h)
	}
}
