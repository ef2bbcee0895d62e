package ingest

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/javanhut/gar/internal/canon"
	"github.com/javanhut/gar/internal/cas"
	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/repo"
)

func newTestRepo(t *testing.T) *repo.Repo {
	t.Helper()
	r, err := repo.Create(filepath.Join(t.TempDir(), "repo"))
	if err != nil {
		t.Fatalf("repo.Create failed: %v", err)
	}
	return r
}

func writeFile(t *testing.T, path, content string, mode os.FileMode) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), mode); err != nil {
		t.Fatal(err)
	}
}

func TestIngestSingleFile(t *testing.T) {
	r := newTestRepo(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a_file"), "a file\n", 0o644)

	hash, stats, err := Ingest(r, src, cas.Copy)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if stats.FileCount != 1 || stats.DirCount != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}

	wantBlobHash, err := canon.HashStream("a_file", strings.NewReader("a file\n"), 7)
	if err != nil {
		t.Fatal(err)
	}
	const wantBlobHashHex = "2909489adcb095aa795a9a7e6d92db735d0a0ced0782c43496675bdb7beec3ce"
	if wantBlobHash.Hex() != wantBlobHashHex {
		t.Fatalf("blob hash = %s, want %s", wantBlobHash.Hex(), wantBlobHashHex)
	}
	acc := canon.NewDirAccumulator(1)
	acc.AppendFile([]byte("a_file"), wantBlobHash)
	wantRoot, err := acc.Finish()
	if err != nil {
		t.Fatal(err)
	}
	if hash != wantRoot {
		t.Errorf("root hash mismatch: got %s, want %s", hash.Hex(), wantRoot.Hex())
	}

	treeEntry := filepath.Join(r.TreeCAS(), hash.Hex())
	if fi, err := os.Stat(treeEntry); err != nil || !fi.IsDir() {
		t.Fatalf("expected committed tree directory at %s", treeEntry)
	}
	blobPath, executable, ok, err := cas.Has(r.BlobCAS(), wantBlobHash)
	if err != nil || !ok {
		t.Fatalf("expected blob CAS entry for a_file: ok=%v err=%v", ok, err)
	}
	if executable {
		t.Error("a_file was not executable, should not carry the -x suffix")
	}

	linked := filepath.Join(treeEntry, "a_file")
	srcInfo, _ := os.Stat(blobPath)
	linkInfo, err := os.Stat(linked)
	if err != nil {
		t.Fatalf("expected hardlinked file in committed tree: %v", err)
	}
	if !os.SameFile(srcInfo, linkInfo) {
		t.Error("committed tree entry should be a hardlink to the blob CAS entry")
	}
}

func TestIngestSameContentSameHash(t *testing.T) {
	r1 := newTestRepo(t)
	r2 := newTestRepo(t)

	build := func() string {
		root := t.TempDir()
		os.MkdirAll(filepath.Join(root, "a_dir", "deeper"), 0o755)
		writeFile(t, filepath.Join(root, "a_dir", "deeper", "samefile"), "same\n", 0o644)
		writeFile(t, filepath.Join(root, "a_dir", "more_files"), "more\n", 0o644)
		writeFile(t, filepath.Join(root, "a_dir", "other_file"), "other\n", 0o644)
		writeFile(t, filepath.Join(root, "a_file"), "a file\n", 0o644)
		if err := os.Symlink("a_file", filepath.Join(root, "a_symlink")); err != nil {
			t.Fatal(err)
		}
		return root
	}

	src1 := build()
	src2 := build()

	hash1, _, err := Ingest(r1, src1, cas.Copy)
	if err != nil {
		t.Fatalf("first Ingest failed: %v", err)
	}
	hash2, _, err := Ingest(r2, src2, cas.Copy)
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if hash1 != hash2 {
		t.Errorf("identical trees should hash identically: %s vs %s", hash1.Hex(), hash2.Hex())
	}
}

func TestIngestSymlinkTargetPreserved(t *testing.T) {
	r := newTestRepo(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a_file"), "a file\n", 0o644)
	if err := os.Symlink("a_file", filepath.Join(src, "a_symlink")); err != nil {
		t.Fatal(err)
	}

	hash, _, err := Ingest(r, src, cas.Copy)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	linkPath := filepath.Join(r.TreeCAS(), hash.Hex(), "a_symlink")
	target, err := os.Readlink(linkPath)
	if err != nil {
		t.Fatalf("expected a symlink in the committed tree: %v", err)
	}
	if target != "a_file" {
		t.Errorf("symlink target mismatch: got %q, want %q", target, "a_file")
	}
}

func TestIngestExecutableBitGetsSuffix(t *testing.T) {
	r := newTestRepo(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "run.sh"), "#!/bin/sh\necho hi\n", 0o755)

	hash, _, err := Ingest(r, src, cas.Copy)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	entryPath := filepath.Join(r.TreeCAS(), hash.Hex(), "run.sh")
	fi, err := os.Lstat(entryPath)
	if err != nil {
		t.Fatal(err)
	}
	blobHash, err := canon.HashStream("run.sh", strings.NewReader("#!/bin/sh\necho hi\n"), fi.Size())
	if err != nil {
		t.Fatal(err)
	}
	path, executable, ok, err := cas.Has(r.BlobCAS(), blobHash)
	if err != nil || !ok {
		t.Fatalf("expected a blob CAS entry: ok=%v err=%v", ok, err)
	}
	if !executable {
		t.Error("executable source file should produce a -x suffixed blob CAS entry")
	}
	if filepath.Base(path) == blobHash.Hex() {
		t.Error("executable blob entry name should not equal the bare hex hash")
	}
}

func TestIngestConcurrentSameTreeCommitsOnce(t *testing.T) {
	r := newTestRepo(t)
	src := t.TempDir()
	writeFile(t, filepath.Join(src, "a_file"), "a file\n", 0o644)

	var wg sync.WaitGroup
	hashes := make([]string, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			h, _, err := Ingest(r, src, cas.Copy)
			hashes[i] = h.Hex()
			errs[i] = err
		}()
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("ingest %d failed: %v", i, err)
		}
	}
	if hashes[0] != hashes[1] {
		t.Errorf("concurrent ingests of the same tree should agree: %s vs %s", hashes[0], hashes[1])
	}

	entries, err := os.ReadDir(r.TreeCAS())
	if err != nil {
		t.Fatal(err)
	}
	var committed int
	for _, e := range entries {
		if e.Name() == hashes[0] {
			committed++
		}
	}
	if committed != 1 {
		t.Errorf("expected exactly one committed tree entry, found %d", committed)
	}
}

func TestIngestSkipsRepoSelf(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a_file"), "a file\n", 0o644)

	repoInsideTree, err := repo.Create(filepath.Join(root, ".gar"))
	if err != nil {
		t.Fatalf("repo.Create failed: %v", err)
	}
	hashWithRepo, _, err := Ingest(repoInsideTree, root, cas.Copy)
	if err != nil {
		t.Fatalf("Ingest with repo present failed: %v", err)
	}

	rootWithoutRepo := t.TempDir()
	writeFile(t, filepath.Join(rootWithoutRepo, "a_file"), "a file\n", 0o644)
	otherRepo := newTestRepo(t)
	hashWithoutRepo, _, err := Ingest(otherRepo, rootWithoutRepo, cas.Copy)
	if err != nil {
		t.Fatalf("Ingest without repo failed: %v", err)
	}

	if hashWithRepo != hashWithoutRepo {
		t.Errorf("ingesting a tree containing the repo directory should skip it: got %s, want %s",
			hashWithRepo.Hex(), hashWithoutRepo.Hex())
	}
}

func TestIngestMissingRootFails(t *testing.T) {
	r := newTestRepo(t)
	_, _, err := Ingest(r, filepath.Join(t.TempDir(), "does-not-exist"), cas.Copy)
	if err == nil {
		t.Fatal("expected an error for a missing ingest root")
	}
	if gerr.Kind(err) != gerr.KindNotFound {
		t.Errorf("expected KindNotFound, got %q", gerr.Kind(err))
	}
}

func TestIngestRootMustBeDirectory(t *testing.T) {
	r := newTestRepo(t)
	file := filepath.Join(t.TempDir(), "just-a-file")
	writeFile(t, file, "content", 0o644)

	if _, _, err := Ingest(r, file, cas.Copy); err == nil {
		t.Fatal("expected an error when the ingest root is a single file")
	}
}

func TestIngestEmptyDirectoryIsDeterministic(t *testing.T) {
	r1 := newTestRepo(t)
	r2 := newTestRepo(t)
	src1 := filepath.Join(t.TempDir(), "empty")
	src2 := filepath.Join(t.TempDir(), "empty")
	os.MkdirAll(src1, 0o755)
	os.MkdirAll(src2, 0o755)

	hash1, _, err := Ingest(r1, src1, cas.Copy)
	if err != nil {
		t.Fatal(err)
	}
	hash2, _, err := Ingest(r2, src2, cas.Copy)
	if err != nil {
		t.Fatal(err)
	}
	if hash1 != hash2 {
		t.Errorf("two empty directories should hash identically: %s vs %s", hash1.Hex(), hash2.Hex())
	}
}
