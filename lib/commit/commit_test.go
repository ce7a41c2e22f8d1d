package commit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusta-fs/fusta/lib/appendstage"
	"github.com/fusta-fs/fusta/lib/backing"
	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
	"github.com/fusta-fs/fusta/lib/overlay"
)

func writeFixture(t *testing.T, src string) (string, *catalog.Catalog, *backing.Positional) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "source.fa")
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })

	recs, err := fasta.ReadAll(strings.NewReader(src))
	require.NoError(t, err)

	cat := catalog.New(20, false)
	for _, rec := range recs {
		_, err := cat.Insert(rec)
		require.NoError(t, err)
	}

	return path, cat, backing.NewPositional(f)
}

func TestRunUnmodifiedRoundTrip(t *testing.T) {
	src := ">a\nACGT\n>b extra\nGGGG\n"
	path, cat, store := writeFixture(t, src)

	require.NoError(t, Run(path, cat, store))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, src, string(out))
}

func TestRunAppliesPendingOverlay(t *testing.T) {
	src := ">a\nACGT\n>b\nGGGG\n"
	path, cat, store := writeFixture(t, src)

	fragA, ok := cat.GetByID("a")
	require.True(t, ok)
	pending, err := overlay.NewPending([]byte("ACGT"), nil, t.TempDir())
	require.NoError(t, err)
	_, err = pending.Write(0, []byte("TTTT"))
	require.NoError(t, err)
	fragA.Pending = pending

	require.NoError(t, Run(path, cat, store))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ">a\nTTTT\n>b\nGGGG\n", string(out))
}

func TestRunOmitsTombstonedFragments(t *testing.T) {
	src := ">a\nACGT\n>b\nGGGG\n"
	path, cat, store := writeFixture(t, src)

	fragA, ok := cat.GetByID("a")
	require.True(t, ok)
	require.NoError(t, cat.Remove(fragA.SeqIno))

	require.NoError(t, Run(path, cat, store))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ">b\nGGGG\n", string(out))
}

func TestRunIncludesAppendedFragments(t *testing.T) {
	src := ">a\nACGT\n"
	path, cat, store := writeFixture(t, src)

	buf, err := appendstage.NewBuffer(t.TempDir(), nil)
	require.NoError(t, err)
	_, err = buf.Write(0, []byte(">c\nTTTT\n"))
	require.NoError(t, err)

	appended := backing.NewResident()
	_, err = appendstage.Ingest(cat, appended, buf)
	require.NoError(t, err)

	require.NoError(t, Run(path, cat, backing.NewDispatcher(store, appended)))

	out, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ">a\nACGT\n>c\nTTTT\n", string(out))
}
