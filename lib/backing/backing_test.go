package backing

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
)

// buildFixture writes src to a temp file and returns it alongside the
// catalog parsed from it.
func buildFixture(t *testing.T, src string) (*os.File, *catalog.Catalog) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.fa")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	f2, err := os.Open(path)
	require.NoError(t, err)
	defer f2.Close()
	recs, err := fasta.ReadAll(f2)
	require.NoError(t, err)

	cat := catalog.New(20, false)
	for _, rec := range recs {
		_, err := cat.Insert(rec)
		require.NoError(t, err)
	}
	return f, cat
}

const fixtureSrc = ">a\nACGT\nACGT\n>b extra\nGGGGCCCC\n"

func TestPositionalExtract(t *testing.T) {
	f, cat := buildFixture(t, fixtureSrc)
	store := NewPositional(f)
	defer store.Close()

	fragA, ok := cat.GetByID("a")
	require.True(t, ok)

	got, err := store.Extract(fragA, 0, 8)
	require.NoError(t, err)
	assert.Equal(t, "ACGTACGT", string(got))

	got, err = store.Extract(fragA, 2, 6)
	require.NoError(t, err)
	assert.Equal(t, "GTAC", string(got))
}

func TestPositionalExtractRejectsOutOfBounds(t *testing.T) {
	f, cat := buildFixture(t, fixtureSrc)
	store := NewPositional(f)
	defer store.Close()

	fragA, _ := cat.GetByID("a")
	_, err := store.Extract(fragA, 0, 100)
	assert.Error(t, err)
	_, err = store.Extract(fragA, -1, 2)
	assert.Error(t, err)
}

func TestMappedExtract(t *testing.T) {
	f, cat := buildFixture(t, fixtureSrc)
	store, err := NewMapped(f)
	require.NoError(t, err)
	defer store.Close()

	fragB, ok := cat.GetByID("b")
	require.True(t, ok)

	got, err := store.Extract(fragB, 0, 4)
	require.NoError(t, err)
	assert.Equal(t, "GGGG", string(got))
}

func TestResidentExtract(t *testing.T) {
	f, cat := buildFixture(t, fixtureSrc)
	defer f.Close()
	store := NewResident()

	fragA, _ := cat.GetByID("a")
	fragB, _ := cat.GetByID("b")
	require.NoError(t, store.Load(f, fragA))
	require.NoError(t, store.Load(f, fragB))

	got, err := store.Extract(fragA, 4, 8)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", string(got))

	_, err = store.Extract(fragB, 0, 100)
	assert.Error(t, err)
}
