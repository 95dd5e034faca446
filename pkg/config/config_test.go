package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/columnforge/stripewriter/pkg/compression"
)

func TestWriterConfig_Validate(t *testing.T) {
	t.Run("defaults are valid", func(t *testing.T) {
		assert.NoError(t, DefaultWriterConfig().Validate())
	})

	t.Run("missing name", func(t *testing.T) {
		cfg := DefaultWriterConfig()
		cfg.Name = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("default policy requires positive thresholds", func(t *testing.T) {
		cfg := DefaultWriterConfig()
		cfg.StripeSizeThreshold = 0
		assert.Error(t, cfg.Validate())

		cfg = DefaultWriterConfig()
		cfg.DictionarySizeThreshold = 0
		assert.Error(t, cfg.Validate())
	})

	t.Run("rows per stripe requires a plan", func(t *testing.T) {
		cfg := DefaultWriterConfig()
		cfg.Policy = PolicyRowsPerStripe
		assert.Error(t, cfg.Validate())

		cfg.RowsPerStripe = []uint64{1000, 2000}
		assert.NoError(t, cfg.Validate())
	})

	t.Run("row threshold requires a positive count", func(t *testing.T) {
		cfg := DefaultWriterConfig()
		cfg.Policy = PolicyRowThreshold
		assert.Error(t, cfg.Validate())

		cfg.RowCountThreshold = 10000
		assert.NoError(t, cfg.Validate())
	})

	t.Run("unknown policy", func(t *testing.T) {
		cfg := DefaultWriterConfig()
		cfg.Policy = "adaptive"
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid cardinality ratio", func(t *testing.T) {
		cfg := DefaultWriterConfig()
		cfg.MaxDictionaryCardinalityRatio = 1.5
		assert.Error(t, cfg.Validate())
	})

	t.Run("invalid compression", func(t *testing.T) {
		cfg := DefaultWriterConfig()
		cfg.Compression = "brotli"
		assert.Error(t, cfg.Validate())
	})
}

func TestLoad_YAMLWithEnvSubstitution(t *testing.T) {
	t.Setenv("STRIPEWRITER_TEST_NAME", "from-env")

	path := filepath.Join(t.TempDir(), "writer.yaml")
	content := `
name: ${STRIPEWRITER_TEST_NAME}
policy: default
stripe_size_threshold: 1048576
dictionary_size_threshold: 262144
max_dictionary_cardinality_ratio: 0.5
compression: zstd
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	var cfg WriterConfig
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, "from-env", cfg.Name)
	assert.Equal(t, uint64(1048576), cfg.StripeSizeThreshold)
	assert.Equal(t, compression.Zstd, cfg.Compression)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFile(t *testing.T) {
	var cfg WriterConfig
	assert.Error(t, Load("/nonexistent/writer.yaml", &cfg))
}

func TestSaveAndReload(t *testing.T) {
	t.Run("rows per stripe plan survives the round trip", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "writer.yaml")
		cfg := DefaultWriterConfig()
		cfg.Policy = PolicyRowsPerStripe
		cfg.RowsPerStripe = []uint64{1000, 2000}

		require.NoError(t, Save(path, cfg))

		var reloaded WriterConfig
		require.NoError(t, Load(path, &reloaded))
		assert.Equal(t, *cfg, reloaded)
	})

	t.Run("absent plan reloads equivalent", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "writer.yaml")
		cfg := DefaultWriterConfig()
		cfg.Policy = PolicyRowThreshold
		cfg.RowCountThreshold = 5000

		require.NoError(t, Save(path, cfg))

		var reloaded WriterConfig
		require.NoError(t, Load(path, &reloaded))
		// YAML round-trips a nil plan as an empty one.
		assert.Empty(t, reloaded.RowsPerStripe)
		reloaded.RowsPerStripe = cfg.RowsPerStripe
		assert.Equal(t, *cfg, reloaded)
	})
}
