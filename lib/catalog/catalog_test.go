package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusta-fs/fusta/lib/fasta"
)

func recordsOf(t *testing.T, src string) []fasta.Record {
	t.Helper()
	recs, err := fasta.ReadAll(strings.NewReader(src))
	require.NoError(t, err)
	return recs
}

func TestInsertAssignsDistinctInodes(t *testing.T) {
	cat := New(10, false)
	recs := recordsOf(t, ">a\nACGT\n>b\nGGGG\n")

	a, err := cat.Insert(recs[0])
	require.NoError(t, err)
	b, err := cat.Insert(recs[1])
	require.NoError(t, err)

	assert.NotEqual(t, a.FastaIno, b.FastaIno)
	assert.NotEqual(t, a.SeqIno, b.SeqIno)
	assert.Equal(t, int64(4), a.LogicalLength())
}

func TestInsertRejectsDuplicateIDWithoutOverwrite(t *testing.T) {
	cat := New(10, false)
	// ReadAll rejects a duplicate id within one stream, so the two
	// records come from separate parses.
	recs := append(recordsOf(t, ">a\nACGT\n"), recordsOf(t, ">a\nTTTT\n")...)

	_, err := cat.Insert(recs[0])
	require.NoError(t, err)
	_, err = cat.Insert(recs[1])
	require.Error(t, err)
	assert.Equal(t, 1, cat.Len())
}

func TestInsertTombstonesPriorOnOverwrite(t *testing.T) {
	cat := New(10, true)
	recs := append(recordsOf(t, ">a\nACGT\n"), recordsOf(t, ">a\nTTTT\n")...)

	first, err := cat.Insert(recs[0])
	require.NoError(t, err)
	second, err := cat.Insert(recs[1])
	require.NoError(t, err)

	assert.True(t, first.Tombstoned)
	assert.Equal(t, 1, cat.Len())
	got, ok := cat.GetByID("a")
	require.True(t, ok)
	assert.Equal(t, second, got)
}

func TestRemoveTombstonesAndHidesFromLookup(t *testing.T) {
	cat := New(10, false)
	recs := recordsOf(t, ">a\nACGT\n")
	frag, err := cat.Insert(recs[0])
	require.NoError(t, err)

	require.NoError(t, cat.Remove(frag.SeqIno))

	_, ok := cat.GetByID("a")
	assert.False(t, ok)
	_, ok = cat.GetByIno(frag.SeqIno)
	assert.False(t, ok)
	assert.Equal(t, 0, cat.Len())
}

func TestRenameChangesIDInPlace(t *testing.T) {
	cat := New(10, false)
	recs := recordsOf(t, ">a\nACGT\n")
	_, err := cat.Insert(recs[0])
	require.NoError(t, err)

	require.NoError(t, cat.Rename("a", "z"))

	_, ok := cat.GetByID("a")
	assert.False(t, ok)
	frag, ok := cat.GetByID("z")
	require.True(t, ok)
	assert.Equal(t, "z", frag.ID)
}

func TestIterActiveSkipsTombstones(t *testing.T) {
	cat := New(10, false)
	recs := recordsOf(t, ">a\nACGT\n>b\nGGGG\n")
	a, err := cat.Insert(recs[0])
	require.NoError(t, err)
	_, err = cat.Insert(recs[1])
	require.NoError(t, err)

	require.NoError(t, cat.Remove(a.SeqIno))

	active := cat.IterActive()
	require.Len(t, active, 1)
	assert.Equal(t, "b", active[0].ID)
}
