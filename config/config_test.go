package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/pthm-cable/plume/concentration"
	"github.com/pthm-cable/plume/noise"
	"github.com/pthm-cable/plume/plume"
	"github.com/pthm-cable/plume/wind"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}

	if cfg.Region.XMax != 100 || cfg.Region.YMin != -50 {
		t.Errorf("unexpected region %+v", cfg.Region)
	}
	if cfg.Wind.Noise.Scheme != noise.SchemeEulerMaruyama {
		t.Errorf("expected euler_maruyama scheme, got %v", cfg.Wind.Noise.Scheme)
	}
	if cfg.Wind.Interpolation != wind.InterpBilinear {
		t.Errorf("expected bilinear interpolation, got %v", cfg.Wind.Interpolation)
	}
	if cfg.Plume.CentreRelDiffScale != [3]float64{2, 2, 2} {
		t.Errorf("unexpected diffusion scale %v", cfg.Plume.CentreRelDiffScale)
	}
	if cfg.Concentration.Kernel != concentration.Kernel3D {
		t.Errorf("expected 3d kernel, got %v", cfg.Concentration.Kernel)
	}
	if len(cfg.Probes) != 4 {
		t.Errorf("expected 4 default probes, got %d", len(cfg.Probes))
	}
	if cfg.Run.DT <= 0 || cfg.Run.Steps <= 0 {
		t.Errorf("unexpected run settings %+v", cfg.Run)
	}
}

func TestLoadMergesUserFile(t *testing.T) {
	path := writeFile(t, `
wind:
  mean_u: 2.5
  interpolation: spline
  noise:
    scheme: original
plume:
  release_rate: 4
probes:
  - {x: 10, y: 5}
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defaults, _ := Defaults()

	if cfg.Wind.MeanU != 2.5 {
		t.Errorf("mean_u = %v, want 2.5", cfg.Wind.MeanU)
	}
	if cfg.Wind.Interpolation != wind.InterpSpline {
		t.Errorf("interpolation = %v, want spline", cfg.Wind.Interpolation)
	}
	if cfg.Wind.Noise.Scheme != noise.SchemeOriginal {
		t.Errorf("scheme = %v, want original", cfg.Wind.Noise.Scheme)
	}
	if cfg.Plume.ReleaseRate != 4 {
		t.Errorf("release_rate = %v, want 4", cfg.Plume.ReleaseRate)
	}
	// Untouched keys keep their defaults.
	if cfg.Wind.NX != defaults.Wind.NX || cfg.Wind.Noise.Gain != defaults.Wind.Noise.Gain {
		t.Errorf("defaults lost: nx=%d gain=%v", cfg.Wind.NX, cfg.Wind.Noise.Gain)
	}
	if cfg.Plume.MaxPuffs != defaults.Plume.MaxPuffs {
		t.Errorf("max_puffs = %d, want %d", cfg.Plume.MaxPuffs, defaults.Plume.MaxPuffs)
	}
	if len(cfg.Probes) != 1 || cfg.Probes[0].X != 10 || cfg.Probes[0].Y != 5 {
		t.Errorf("probes = %+v, want one probe at (10, 5)", cfg.Probes)
	}
}

func TestLoadEmptyFile(t *testing.T) {
	cfg, err := Load(writeFile(t, ""))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	defaults, _ := Defaults()
	if !reflect.DeepEqual(cfg, defaults) {
		t.Error("empty file should yield the defaults")
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"unknown key", "wind:\n  mean_w: 1\n", "mean_w"},
		{"bad enum", "concentration:\n  kernel: 4d\n", "kernel"},
		{"grid too small", "wind:\n  nx: 1\n", "validation"},
		{"negative rate", "plume:\n  release_rate: -3\n", "validation"},
		{"zero dt", "run:\n  dt: 0\n", "validation"},
		{"noise modes not per corner", "wind:\n  noise:\n    modes: 8\n", "validation"},
		{"short diffusion scale", "plume:\n  centre_rel_diff_scale: [1, 1]\n", "array"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadComponentChecks(t *testing.T) {
	// Schema-valid but the source sits outside the region.
	_, err := Load(writeFile(t, "plume:\n  source: {x: 500, y: 0}\n"))
	if !errors.Is(err, plume.ErrInvalidConfig) {
		t.Errorf("expected plume.ErrInvalidConfig, got %v", err)
	}

	_, err = Load(writeFile(t, "plume:\n  init_puffs: 5000\n"))
	if !errors.Is(err, plume.ErrInvalidConfig) {
		t.Errorf("expected plume.ErrInvalidConfig, got %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load(writeFile(t, "wind:\n  interpolation: spline\nconcentration:\n  kernel: 2d\n"))
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}

	again, err := Load(path)
	if err != nil {
		t.Fatalf("reloading written config: %v", err)
	}
	if !reflect.DeepEqual(cfg, again) {
		t.Errorf("round trip changed config:\n%+v\n%+v", cfg, again)
	}
}
