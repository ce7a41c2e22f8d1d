package fasta

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapWriterShortLine(t *testing.T) {
	var sb strings.Builder
	ww := NewWrapWriter(&sb, 60)
	_, err := ww.Write([]byte("ACGT"))
	require.NoError(t, err)
	require.NoError(t, ww.Flush())
	assert.Equal(t, "ACGT\n", sb.String())
}

func TestWrapWriterExactWidth(t *testing.T) {
	var sb strings.Builder
	ww := NewWrapWriter(&sb, 4)
	_, err := ww.Write([]byte("ACGT"))
	require.NoError(t, err)
	require.NoError(t, ww.Flush())
	assert.Equal(t, "ACGT\n", sb.String())
}

func TestWrapWriterMultipleLines(t *testing.T) {
	var sb strings.Builder
	ww := NewWrapWriter(&sb, 4)
	_, err := ww.Write([]byte("ACGTACGTAC"))
	require.NoError(t, err)
	require.NoError(t, ww.Flush())
	assert.Equal(t, "ACGT\nACGT\nAC\n", sb.String())
}

func TestWrapWriterChunkedAcrossCalls(t *testing.T) {
	var sb strings.Builder
	ww := NewWrapWriter(&sb, 4)
	for _, chunk := range []string{"AC", "GTAC", "GTAC"} {
		_, err := ww.Write([]byte(chunk))
		require.NoError(t, err)
	}
	require.NoError(t, ww.Flush())
	assert.Equal(t, "ACGT\nACGT\nAC\n", sb.String())
}

func TestExtractLogical(t *testing.T) {
	raw := []byte("AC\nGT\nAC\n")
	assert.Equal(t, "ACGTAC", string(ExtractLogical(raw, 0, 6)))
	assert.Equal(t, "GT", string(ExtractLogical(raw, 2, 4)))
	assert.Equal(t, "", string(ExtractLogical(raw, 3, 3)))
}
