package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/andresmejia3/depthbrush/internal/raster"
)

// inTempDir runs the test from an empty directory so no stray
// depthbrush.yaml or .env is picked up.
func inTempDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	testChdir(t, dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	inTempDir(t)

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "http://127.0.0.1:5000/api", cfg.Backend.URL)
	require.Equal(t, ArchiveNone, cfg.Archive.Driver)
	require.Equal(t, 5, cfg.Brush.Size)
	require.Equal(t, 25, cfg.Brush.Depth)
	require.Equal(t, 0.1, cfg.Diffusion.Beta)
	require.Equal(t, 3000, cfg.Diffusion.Iterations)
	require.Equal(t, 0.1, cfg.Focus.DepthRange)
	require.Equal(t, 5, cfg.Focus.KernelSizeGaus)
	require.Equal(t, 5, cfg.Focus.KernelSizeBf)
	require.Equal(t, 200.0, cfg.Focus.SigmaColor)
	require.Equal(t, 200.0, cfg.Focus.SigmaSpace)
	require.Equal(t, 60.0, cfg.Focus.GausSigma)
	require.Equal(t, raster.DefaultIgnoreColor, cfg.IgnoreRGBA())
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := inTempDir(t)
	path := filepath.Join(dir, "custom.yaml")
	yaml := `
backend:
  url: http://depth.internal/api
  timeout: 5s
brush:
  size: 9
  ignore_color: lime
diffusion:
  iterations: 500
stub:
  steps: 3
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	t.Setenv("DEPTHBRUSH_BRUSH_DEPTH", "128")
	t.Setenv("DEPTHBRUSH_DIFFUSION_BETA", "0.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "http://depth.internal/api", cfg.Backend.URL)
	require.Equal(t, 5*time.Second, cfg.Backend.Timeout)
	require.Equal(t, 9, cfg.Brush.Size)
	require.Equal(t, 128, cfg.Brush.Depth)
	require.Equal(t, 0.5, cfg.Diffusion.Beta)
	require.Equal(t, 500, cfg.Diffusion.Iterations)
	require.Equal(t, 3, cfg.Stub.Steps)

	b := cfg.InitialBrush(raster.ModeAnnotate)
	require.Equal(t, uint8(128), b.Color.R)
	require.Equal(t, 9, b.Size)
}

func TestLoadDotEnv(t *testing.T) {
	dir := inTempDir(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("DEPTHBRUSH_LOG_MODE=release\n"), 0644))
	t.Cleanup(func() { os.Unsetenv("DEPTHBRUSH_LOG_MODE") })

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "release", cfg.Log.Mode)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	inTempDir(t)
	_, err := Load("does-not-exist.yaml")
	require.Error(t, err)
}

func TestPostgresURLFromEnv(t *testing.T) {
	t.Setenv("POSTGRES_HOST", "")
	require.Equal(t, "postgres://localhost:5432/depthbrush", PostgresURLFromEnv())

	t.Setenv("POSTGRES_HOST", "db")
	t.Setenv("POSTGRES_USER", "u")
	t.Setenv("POSTGRES_PASSWORD", "p")
	t.Setenv("POSTGRES_DB", "depth")
	t.Setenv("POSTGRES_PORT", "")
	require.Equal(t, "postgres://u:p@db:5432/depth", PostgresURLFromEnv())
}

func TestPostgresDriverFillsURL(t *testing.T) {
	inTempDir(t)
	t.Setenv("DEPTHBRUSH_ARCHIVE_DRIVER", "Postgres")
	t.Setenv("POSTGRES_HOST", "")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, ArchivePostgres, cfg.Archive.Driver)
	require.Equal(t, "postgres://localhost:5432/depthbrush", cfg.Archive.URL)
}

func TestValidate(t *testing.T) {
	inTempDir(t)
	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"Unknown driver", func(c *Config) { c.Archive.Driver = "sqlite" }},
		{"Redis without url", func(c *Config) { c.Archive.Driver = ArchiveRedis; c.Archive.URL = "" }},
		{"Zero brush", func(c *Config) { c.Brush.Size = 0 }},
		{"Depth out of range", func(c *Config) { c.Brush.Depth = 300 }},
		{"Bad ignore colour", func(c *Config) { c.Brush.IgnoreColor = "#XYZ" }},
		{"Zero iterations", func(c *Config) { c.Diffusion.Iterations = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := *base
			tt.mutate(&c)
			require.Error(t, c.Validate())
		})
	}
}

// testChdir changes the working directory for the duration of the test
// and restores it on cleanup (equivalent of testing.T.Chdir, Go 1.24+).
func testChdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := os.Chdir(prev); err != nil {
			t.Fatal(err)
		}
	})
}
