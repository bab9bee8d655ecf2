package compress

import (
	"bytes"
	"errors"
	"testing"

	"aitea-distribution/types"

	"github.com/stretchr/testify/require"
)

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"none", "zlib", "zstd", "lz4"} {
		a, err := ParseAlgorithm(name)
		require.NoError(t, err)
		require.Equal(t, name, a.String())
	}

	a, err := ParseAlgorithm("")
	require.NoError(t, err)
	require.Equal(t, Zlib, a)

	_, err = ParseAlgorithm("gzip")
	require.Error(t, err)
	require.Equal(t, "unknown(9)", Algorithm(9).String())
}

func TestStageRoundTrip(t *testing.T) {
	data := bytes.Repeat([]byte("aitea distribution payload "), 512)

	for _, name := range []string{"zlib", "zstd", "lz4"} {
		t.Run(name, func(t *testing.T) {
			s, err := NewStage(true, name)
			require.NoError(t, err)
			require.True(t, s.Enabled())

			compressed, err := s.Compress(data)
			require.NoError(t, err)
			require.Less(t, len(compressed), len(data))

			out, err := s.Decompress(compressed)
			require.NoError(t, err)
			require.Equal(t, data, out)
		})
	}

	t.Run("disabled", func(t *testing.T) {
		s, err := NewStage(false, "zstd")
		require.NoError(t, err)
		require.False(t, s.Enabled())

		framed, err := s.Compress(data)
		require.NoError(t, err)
		require.Equal(t, len(data)+headerSize, len(framed))

		out, err := s.Decompress(framed)
		require.NoError(t, err)
		require.Equal(t, data, out)
	})

	t.Run("empty", func(t *testing.T) {
		s, err := NewStage(true, "zlib")
		require.NoError(t, err)
		compressed, err := s.Compress(nil)
		require.NoError(t, err)
		out, err := s.Decompress(compressed)
		require.NoError(t, err)
		require.Empty(t, out)
	})
}

func TestStageMismatch(t *testing.T) {
	data := []byte("mismatched settings between sender and receiver")

	on, err := NewStage(true, "zlib")
	require.NoError(t, err)
	off, err := NewStage(false, "")
	require.NoError(t, err)
	zstd, err := NewStage(true, "zstd")
	require.NoError(t, err)

	compressed, err := on.Compress(data)
	require.NoError(t, err)
	_, err = off.Decompress(compressed)
	require.True(t, errors.Is(err, types.ErrCompressionMismatch))
	_, err = zstd.Decompress(compressed)
	require.True(t, errors.Is(err, types.ErrCompressionMismatch))

	plain, err := off.Compress(data)
	require.NoError(t, err)
	_, err = on.Decompress(plain)
	require.True(t, errors.Is(err, types.ErrCompressionMismatch))
}

func TestStageCorruptPayload(t *testing.T) {
	s, err := NewStage(true, "zlib")
	require.NoError(t, err)

	_, err = s.Decompress([]byte("raw bytes without a header"))
	require.True(t, errors.Is(err, types.ErrDecompressFailed))

	_, err = s.Decompress([]byte{'A', 'D', byte(Zlib), 0x00, 0x01})
	require.True(t, errors.Is(err, types.ErrDecompressFailed))
}
