package fustafs

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/fusta-fs/fusta/lib/backing"
	"github.com/fusta-fs/fusta/lib/catalog"
	"github.com/fusta-fs/fusta/lib/fasta"
)

// fustaAvailable checks whether /dev/fuse is accessible. Tests that
// need a real mount call this first and skip if the device is absent.
func fustaAvailable(t *testing.T) {
	t.Helper()
	if _, err := os.Stat("/dev/fuse"); err != nil {
		t.Skip("skipping: /dev/fuse not available")
	}
}

// testMount writes source to a temp file, builds the catalog and
// backing stores from it exactly as the CLI would, mounts the
// filesystem, and returns the mountpoint, source path, and catalog.
// The mount is unmounted (committing any pending changes) when the
// test ends.
func testMount(t *testing.T, source string) (mountpoint, sourcePath string, cat *catalog.Catalog, server *Server) {
	t.Helper()
	fustaAvailable(t)

	root := t.TempDir()
	sourcePath = filepath.Join(root, "source.fa")
	if err := os.WriteFile(sourcePath, []byte(source), 0o644); err != nil {
		t.Fatalf("WriteFile source: %v", err)
	}

	f, err := os.Open(sourcePath)
	if err != nil {
		t.Fatalf("Open source: %v", err)
	}

	records, err := fasta.ReadAll(f)
	if err != nil {
		t.Fatalf("fasta.ReadAll: %v", err)
	}

	cat = catalog.New(1, false)
	for _, rec := range records {
		if _, err := cat.Insert(rec); err != nil {
			t.Fatalf("Insert %q: %v", rec.ID, err)
		}
	}

	primary := backing.NewPositional(f)
	appended := backing.NewResident()
	dispatcher := backing.NewDispatcher(primary, appended)

	mountpoint = filepath.Join(root, "mount")

	server, err = Mount(Options{
		Mountpoint: mountpoint,
		SourcePath: sourcePath,
		Catalog:    cat,
		Store:      dispatcher,
		Appended:   appended,
		SpillDir:   root,
	})
	if err != nil {
		t.Fatalf("Mount: %v", err)
	}

	t.Cleanup(func() {
		if err := server.Unmount(); err != nil {
			t.Errorf("Unmount: %v", err)
		}
	})

	return mountpoint, sourcePath, cat, server
}

const fixtureFasta = ">a\nACGT\n>b extra info\nGGGG\n"

// ---- Read path ----

func TestMountRootListing(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	entries, err := os.ReadDir(mountpoint)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	names := make(map[string]bool)
	for _, e := range entries {
		names[e.Name()] = true
	}
	for _, want := range []string{"append", "fasta", "get", "seqs", "infos.csv", "infos.txt", "labels.txt"} {
		if !names[want] {
			t.Errorf("missing root entry %q", want)
		}
	}
}

func TestMountSeqsReadsRawPayload(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	got, err := os.ReadFile(filepath.Join(mountpoint, "seqs", "a.seq"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if want := []byte("ACGT\n"); !bytes.Equal(got, want) {
		t.Errorf("seqs/a.seq = %q, want %q", got, want)
	}
}

func TestMountFastaReadsWrappedRecord(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	got, err := os.ReadFile(filepath.Join(mountpoint, "fasta", "b.fa"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if want := []byte(">b extra info\nGGGG\n"); !bytes.Equal(got, want) {
		t.Errorf("fasta/b.fa = %q, want %q", got, want)
	}
}

func TestMountInfosCSVHasOneRowPerFragment(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	got, err := os.ReadFile(filepath.Join(mountpoint, "infos.csv"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	want := "name,info,length\na,,4\nb,extra info,4\n"
	if string(got) != want {
		t.Errorf("infos.csv = %q, want %q", got, want)
	}
}

func TestMountGetRangeReadsExactBytes(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	got, err := os.ReadFile(filepath.Join(mountpoint, "get", "b:1-2"))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if want := []byte("GG"); !bytes.Equal(got, want) {
		t.Errorf("get/b:1-2 = %q, want %q", got, want)
	}
}

func TestMountGetDirListsEmpty(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	entries, err := os.ReadDir(filepath.Join(mountpoint, "get"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("get/ listed %d entries, want 0", len(entries))
	}
}

func TestMountAppendDirListsEmpty(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	entries, err := os.ReadDir(filepath.Join(mountpoint, "append"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("append/ listed %d entries, want 0", len(entries))
	}
}

// ---- Boundary behaviors ----

func TestMountEmptyFastaHasEmptyGeneratedFiles(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, "")

	entries, err := os.ReadDir(filepath.Join(mountpoint, "seqs"))
	if err != nil {
		t.Fatalf("ReadDir seqs: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("seqs/ listed %d entries, want 0", len(entries))
	}

	for _, name := range []string{"infos.csv", "infos.txt", "labels.txt"} {
		info, err := os.Stat(filepath.Join(mountpoint, name))
		if err != nil {
			t.Fatalf("Stat %s: %v", name, err)
		}
		if info.Size() != 0 {
			t.Errorf("%s size = %d, want 0", name, info.Size())
		}
	}
}

func TestMountGetRangeZeroStartRejected(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	_, err := os.ReadFile(filepath.Join(mountpoint, "get", "a:0-4"))
	if err == nil {
		t.Fatal("expected error for 1-based start of 0")
	}
}

func TestMountGetRangeBackwardsRejected(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	_, err := os.ReadFile(filepath.Join(mountpoint, "get", "a:3-2"))
	if err == nil {
		t.Fatal("expected error for end before start")
	}
}

func TestMountGetRangePastEndRejected(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	// Fragment a has logical length 4; end=5 is one past it.
	_, err := os.ReadFile(filepath.Join(mountpoint, "get", "a:1-5"))
	if err == nil {
		t.Fatal("expected error for end beyond logical length")
	}
}

func TestMountSeqsRejectsInvalidBytes(t *testing.T) {
	mountpoint, _, _, _ := testMount(t, fixtureFasta)

	path := filepath.Join(mountpoint, "seqs", "a.seq")
	before, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile before: %v", err)
	}

	// Open without O_TRUNC so the rejected write is the only thing
	// that can change the fragment's content.
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	_, writeErr := f.Write([]byte{0x00, 0x20, 'A', 'C'})
	f.Close()
	if writeErr == nil {
		t.Fatal("expected error writing disallowed bytes")
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile after: %v", err)
	}
	if !bytes.Equal(before, after) {
		t.Errorf("content changed after rejected write: before %q, after %q", before, after)
	}
}

// ---- Write overlay / commit scenarios ----

func TestMountOverwriteSeqCommitsNewPayload(t *testing.T) {
	mountpoint, sourcePath, _, server := testMount(t, fixtureFasta)

	if err := os.WriteFile(filepath.Join(mountpoint, "seqs", "a.seq"), []byte("TTTT"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := server.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	got, err := os.ReadFile(sourcePath)
	if err != nil {
		t.Fatalf("ReadFile committed source: %v", err)
	}
	want := ">a\nTTTT\n>b extra info\nGGGG\n"
	if string(got) != want {
		t.Errorf("committed source = %q, want %q", got, want)
	}
}

func TestMountUnlinkSeqCommitsRemoval(t *testing.T) {
	mountpoint, sourcePath, _, server := testMount(t, fixtureFasta)

	if err := os.Remove(filepath.Join(mountpoint, "seqs", "a.seq")); err != nil {
		t.Fatalf("Remove: %v", err)
	}

	if err := server.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	got, err := os.ReadFile(sourcePath)
	if err != nil {
		t.Fatalf("ReadFile committed source: %v", err)
	}
	want := ">b extra info\nGGGG\n"
	if string(got) != want {
		t.Errorf("committed source = %q, want %q", got, want)
	}
}

func TestMountAppendCommitsNewFragment(t *testing.T) {
	mountpoint, sourcePath, _, server := testMount(t, fixtureFasta)

	if err := os.WriteFile(filepath.Join(mountpoint, "append", "c.fa"), []byte(">c\nAAAA\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if err := server.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	got, err := os.ReadFile(sourcePath)
	if err != nil {
		t.Fatalf("ReadFile committed source: %v", err)
	}
	want := ">a\nACGT\n>b extra info\nGGGG\n>c\nAAAA\n"
	if string(got) != want {
		t.Errorf("committed source = %q, want %q", got, want)
	}
}

func TestMountRenameSeqCommitsNewID(t *testing.T) {
	mountpoint, sourcePath, _, server := testMount(t, fixtureFasta)

	oldPath := filepath.Join(mountpoint, "seqs", "a.seq")
	newPath := filepath.Join(mountpoint, "seqs", "z.seq")
	if err := os.Rename(oldPath, newPath); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if _, err := os.Stat(oldPath); err == nil {
		t.Error("old name still present after rename")
	}

	if err := server.Unmount(); err != nil {
		t.Fatalf("Unmount: %v", err)
	}

	got, err := os.ReadFile(sourcePath)
	if err != nil {
		t.Fatalf("ReadFile committed source: %v", err)
	}
	want := ">z\nACGT\n>b extra info\nGGGG\n"
	if string(got) != want {
		t.Errorf("committed source = %q, want %q", got, want)
	}
}

func TestMountRenameSeqRejectsUnsafeID(t *testing.T) {
	mountpoint, _, cat, _ := testMount(t, fixtureFasta)

	oldPath := filepath.Join(mountpoint, "seqs", "a.seq")
	newPath := filepath.Join(mountpoint, "seqs", "\x01.seq")
	if err := os.Rename(oldPath, newPath); err == nil {
		t.Fatal("expected error renaming to an id containing a control byte")
	}

	if _, ok := cat.GetByID("a"); !ok {
		t.Error("fragment \"a\" renamed away despite rejected request")
	}
}

func TestMountAppendHeaderlessContentInsertsNothing(t *testing.T) {
	mountpoint, _, cat, _ := testMount(t, fixtureFasta)

	before := cat.Len()

	// No leading '>' anywhere: every byte belongs to no fragment.
	if err := os.WriteFile(filepath.Join(mountpoint, "append", "bad.fa"), []byte("not fasta\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if cat.Len() != before {
		t.Errorf("catalog length changed after headerless append: before %d, after %d", before, cat.Len())
	}
}

func TestMountAppendDuplicateIDRejected(t *testing.T) {
	mountpoint, _, cat, _ := testMount(t, fixtureFasta)

	before := cat.Len()

	err := os.WriteFile(filepath.Join(mountpoint, "append", "dup.fa"), []byte(">a\nTTTT\n"), 0o644)
	if err == nil {
		t.Fatal("expected error appending a fragment id that already exists")
	}

	if cat.Len() != before {
		t.Errorf("catalog length changed after rejected duplicate append: before %d, after %d", before, cat.Len())
	}
}
