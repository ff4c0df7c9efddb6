package schema

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleManifest = `
node "MyUpscaler" {
  display_name = "My Upscaler"
  category     = "custom/upscale"

  input "image" {
    type = "IMAGE"
  }
  input "scale" {
    type    = "FLOAT"
    default = 2.5
    min     = 1
    max     = 8
  }
  input "method" {
    options = ["bilinear", "lanczos"]
    default = "lanczos"
  }

  optional "label" {
    type    = "STRING"
    default = ""
  }
}
`

func TestParseManifest(t *testing.T) {
	lib, err := ParseManifest("custom.hcl", []byte(sampleManifest))
	require.NoError(t, err)
	require.True(t, lib.Has("MyUpscaler"))

	names, err := lib.WidgetNames("MyUpscaler")
	require.NoError(t, err)
	assert.Equal(t, []string{"scale", "method", "label"}, names)

	scale := lib.WidgetSpec("MyUpscaler", "scale")
	require.NotNil(t, scale)
	assert.Equal(t, 2.5, scale.Default())
	assert.Equal(t, int64(1), scale.Options["min"])

	method := lib.WidgetSpec("MyUpscaler", "method")
	require.NotNil(t, method)
	assert.Equal(t, []any{"bilinear", "lanczos"}, method.Choices)
	assert.Equal(t, "lanczos", method.Default())
	assert.True(t, method.Compatible("bilinear"))
	assert.False(t, method.Compatible("nearest"))

	assert.Equal(t, "My Upscaler", lib["MyUpscaler"].DisplayName)
}

func TestParseManifestWidgetOverride(t *testing.T) {
	src := `
node "Overridden" {
  input "force_widget" {
    type   = "IMAGE"
    widget = true
  }
  input "force_connection" {
    type    = "INT"
    default = 1
    widget  = false
  }
}
`
	lib, err := ParseManifest("override.hcl", []byte(src))
	require.NoError(t, err)

	names, err := lib.WidgetNames("Overridden")
	require.NoError(t, err)
	assert.Equal(t, []string{"force_widget"}, names)
}

func TestParseManifestErrors(t *testing.T) {
	t.Run("invalid hcl", func(t *testing.T) {
		_, err := ParseManifest("bad.hcl", []byte(`node "X" {`))
		require.Error(t, err)
	})
	t.Run("input without type or options", func(t *testing.T) {
		_, err := ParseManifest("bad.hcl", []byte(`node "X" { input "y" {} }`))
		require.Error(t, err)
	})
}

func TestLoadManifests(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.hcl"), []byte(sampleManifest), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.hcl"), []byte("node \"Other\" {\n  input \"n\" {\n    type    = \"INT\"\n    default = 1\n  }\n}\n"), 0o644))

	lib, err := LoadManifests(context.Background(), dir)
	require.NoError(t, err)
	assert.True(t, lib.Has("MyUpscaler"))
	assert.True(t, lib.Has("Other"))
}

func TestLoadManifestsEmptyDir(t *testing.T) {
	lib, err := LoadManifests(context.Background(), t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, lib)
}
