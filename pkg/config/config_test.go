package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	URL     string   `yaml:"url"`
	Retries int      `yaml:"retries"`
	Tags    []string `yaml:"tags"`
}

func (s *sample) Validate() error {
	if s.URL == "" {
		return errors.New("url is required")
	}
	return nil
}

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	t.Setenv("OGC_TEST_HOST", "demo.example.com")
	path := writeFile(t, "url: https://${OGC_TEST_HOST}/api\ntags: [a, b]\n")

	cfg := sample{Retries: 3}
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, "https://demo.example.com/api", cfg.URL)
	assert.Equal(t, 3, cfg.Retries)
	assert.Equal(t, []string{"a", "b"}, cfg.Tags)
}

func TestLoad_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		var cfg sample
		err := Load(filepath.Join(t.TempDir(), "nope.yaml"), &cfg)
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		var cfg sample
		err := Load(writeFile(t, "url: [unterminated"), &cfg)
		assert.ErrorContains(t, err, "failed to parse config")
	})

	t.Run("validation", func(t *testing.T) {
		var cfg sample
		err := Load(writeFile(t, "retries: 1\n"), &cfg)
		assert.ErrorContains(t, err, "url is required")
	})
}

func TestLoadOptional(t *testing.T) {
	cfg := sample{URL: "https://fallback.example.com"}
	require.NoError(t, LoadOptional(filepath.Join(t.TempDir(), "absent.yaml"), &cfg))
	assert.Equal(t, "https://fallback.example.com", cfg.URL)

	require.NoError(t, LoadOptional(writeFile(t, "url: https://file.example.com\n"), &cfg))
	assert.Equal(t, "https://file.example.com", cfg.URL)

	var empty sample
	assert.Error(t, LoadOptional("", &empty))
}
