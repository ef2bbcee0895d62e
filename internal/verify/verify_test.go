package verify

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/javanhut/gar/internal/cas"
	"github.com/javanhut/gar/internal/ingest"
	"github.com/javanhut/gar/internal/repo"
)

func TestVerifyRoundTripsAfterIngest(t *testing.T) {
	r, err := repo.Create(filepath.Join(t.TempDir(), "repo"))
	if err != nil {
		t.Fatalf("repo.Create failed: %v", err)
	}

	src := t.TempDir()
	os.MkdirAll(filepath.Join(src, "a_dir"), 0o755)
	os.WriteFile(filepath.Join(src, "a_file"), []byte("a file\n"), 0o644)
	os.WriteFile(filepath.Join(src, "a_dir", "nested"), []byte("nested\n"), 0o644)
	os.WriteFile(filepath.Join(src, "run.sh"), []byte("#!/bin/sh\n"), 0o755)
	os.Symlink("a_file", filepath.Join(src, "a_symlink"))

	hash, _, err := ingest.Ingest(r, src, cas.Copy)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if err := Verify(r, hash); err != nil {
		t.Errorf("Verify should succeed for a freshly ingested tree, got: %v", err)
	}
}

func TestVerifyDetectsBrokenHardlink(t *testing.T) {
	r, err := repo.Create(filepath.Join(t.TempDir(), "repo"))
	if err != nil {
		t.Fatalf("repo.Create failed: %v", err)
	}

	src := t.TempDir()
	os.WriteFile(filepath.Join(src, "a_file"), []byte("a file\n"), 0o644)

	hash, _, err := ingest.Ingest(r, src, cas.Copy)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	// Corrupt the committed tree by replacing the hardlinked file with an
	// unlinked copy of the same content: same bytes, different inode.
	entry := filepath.Join(r.TreeCAS(), hash.Hex(), "a_file")
	if err := os.Remove(entry); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(entry, []byte("a file\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Verify(r, hash); err == nil {
		t.Error("expected Verify to detect the entry is no longer a hardlink to its blob CAS entry")
	}
}

func TestVerifyMissingTreeFails(t *testing.T) {
	r, err := repo.Create(filepath.Join(t.TempDir(), "repo"))
	if err != nil {
		t.Fatalf("repo.Create failed: %v", err)
	}
	if err := Verify(r, [32]byte{1, 2, 3}); err == nil {
		t.Error("expected Verify to fail for a tree hash that was never committed")
	}
}
