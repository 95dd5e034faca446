package compression

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressors_RoundTrip(t *testing.T) {
	// Repetitive payload so every codec actually shrinks it.
	payload := bytes.Repeat([]byte("stripe payload segment "), 512)

	for _, algorithm := range []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate} {
		t.Run(string(algorithm), func(t *testing.T) {
			c, err := NewCompressor(algorithm)
			require.NoError(t, err)
			assert.Equal(t, algorithm, c.Algorithm())

			compressed, err := c.Compress(payload)
			require.NoError(t, err)
			if algorithm != None {
				assert.Less(t, len(compressed), len(payload))
			}

			decompressed, err := c.Decompress(compressed)
			require.NoError(t, err)
			assert.Equal(t, payload, decompressed)
		})
	}
}

func TestNewCompressor_Unknown(t *testing.T) {
	_, err := NewCompressor("brotli")
	assert.Error(t, err)
}
