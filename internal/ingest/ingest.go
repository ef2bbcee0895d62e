// Package ingest implements the tree-ingest walker: a depth-first walk
// that hashes every file, symlink, and directory it encounters, places
// blobs into the blob CAS, mirrors the tree into a working directory via
// hardlinks, and commits the working directory atomically into the tree
// CAS under its root tree hash.
package ingest

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/warpfork/go-fsx"
	"github.com/warpfork/go-fsx/osfs"

	"github.com/javanhut/gar/internal/canon"
	"github.com/javanhut/gar/internal/cas"
	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/hashid"
	"github.com/javanhut/gar/internal/repo"
)

// Stats accumulates counters over one Ingest call, handed off to the
// caller for optional treeidx bookkeeping.
type Stats struct {
	FileCount int
	DirCount  int
}

// Ingest walks rootPath depth-first, computing the canonical hash of every
// entry, placing blob content into repo's blob CAS via mode, mirroring
// the tree into a fresh working directory, and atomically committing that
// working directory into repo's tree CAS. It returns the root tree hash.
//
// rootPath must be a directory; a single file as the ingest root is
// unsupported. The CLI shell passes its argument through unchecked, so
// Ingest itself rejects a non-directory root with a plain error.
func Ingest(r *repo.Repo, rootPath string, mode cas.Mode) (hashid.Hash, Stats, error) {
	var stats Stats

	absRoot, err := filepath.Abs(rootPath)
	if err != nil {
		return hashid.Hash{}, stats, gerr.IO("resolve ingest root", err)
	}
	fi, err := os.Stat(absRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return hashid.Hash{}, stats, gerr.NotFound(absRoot)
		}
		return hashid.Hash{}, stats, gerr.IO("stat ingest root", err)
	}
	if !fi.IsDir() {
		return hashid.Hash{}, stats, fmt.Errorf("ingest: root must be a directory, not a single file: %s", absRoot)
	}

	fsys := osfs.DirFS(absRoot)

	wipDir, err := r.NewWorkingTreePath()
	if err != nil {
		return hashid.Hash{}, stats, err
	}
	// Best-effort cleanup. A successful commit below renames wipDir away,
	// so this is then a harmless no-op; on any earlier error or on the
	// exists-after path it is the thing that actually reclaims the
	// directory.
	defer os.RemoveAll(wipDir)

	w := &walker{fsys: fsys, hostRoot: absRoot, repo: r, mode: mode, stats: &stats}
	rootHash, err := w.walkDir(".", wipDir)
	if err != nil {
		return hashid.Hash{}, stats, err
	}

	dest := filepath.Join(r.TreeCAS(), rootHash.Hex())
	if err := os.Rename(wipDir, dest); err != nil {
		if after := gerr.ExistsAfter(dest, err); after != nil {
			return hashid.Hash{}, stats, gerr.IO("commit tree CAS entry", after)
		}
		// Destination now exists: another ingester committed the same
		// tree concurrently. Treat this as success.
	}

	return rootHash, stats, nil
}

// walker carries the state threaded through one Ingest call's recursion.
type walker struct {
	fsys     fsx.FS
	hostRoot string
	repo     *repo.Repo
	mode     cas.Mode
	stats    *Stats
}

// walkDir hashes the directory at relPath (relative to w.hostRoot),
// mirroring it into workDir, and returns its tree hash. Entries are
// processed in byte-lexicographic order of their raw filenames,
// independent of whatever order the OS returned them in.
func (w *walker) walkDir(relPath, workDir string) (hashid.Hash, error) {
	w.stats.DirCount++

	entries, err := fsx.ReadDir(w.fsys, relPath)
	if err != nil {
		return hashid.Hash{}, gerr.IO("read directory "+relPath, err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return bytes.Compare([]byte(entries[i].Name()), []byte(entries[j].Name())) < 0
	})

	acc := canon.NewDirAccumulator(len(entries))

	for _, de := range entries {
		name := de.Name()
		if err := canon.ValidateName([]byte(name)); err != nil {
			return hashid.Hash{}, err
		}

		childRel := filepath.Join(relPath, name)
		childWork := filepath.Join(workDir, name)

		childFi, err := fsx.Lstat(w.fsys, childRel)
		if err != nil {
			return hashid.Hash{}, gerr.IO("lstat "+childRel, err)
		}

		if childFi.IsDir() {
			if w.isRepoSelf(childFi) {
				continue
			}
			if err := os.MkdirAll(childWork, 0o755); err != nil {
				return hashid.Hash{}, gerr.IO("create working tree directory", err)
			}
			childHash, err := w.walkDir(childRel, childWork)
			if err != nil {
				return hashid.Hash{}, err
			}
			acc.AppendDir([]byte(name), childHash)
			continue
		}

		childHash, kind, err := w.processLeaf(childRel, childWork, childFi)
		if err != nil {
			return hashid.Hash{}, err
		}
		switch kind {
		case leafFile:
			acc.AppendFile([]byte(name), childHash)
		case leafExecutable:
			acc.AppendExecutable([]byte(name), childHash)
		case leafSymlink:
			acc.AppendSymlink([]byte(name), childHash)
		}
	}

	return acc.Finish()
}

// isRepoSelf reports whether fi identifies the same directory as the
// repository itself, per the inode-based self-exclusion check. On
// platforms without inode support this always returns false — the repo
// directory is then walked like any other entry.
func (w *walker) isRepoSelf(fi fs.FileInfo) bool {
	wantIno, ok := w.repo.SelfInode()
	if !ok {
		return false
	}
	gotIno, ok := repo.Inode(fi)
	return ok && gotIno == wantIno
}

type leafKind int

const (
	leafFile leafKind = iota
	leafExecutable
	leafSymlink
)

// processLeaf hashes and materializes a regular file or symlink. Directory
// entries never reach here; walkDir handles recursion itself.
func (w *walker) processLeaf(relPath, workPath string, fi fs.FileInfo) (hashid.Hash, leafKind, error) {
	switch mode := fi.Mode(); {
	case mode.IsRegular():
		return w.processRegular(relPath, workPath, fi)
	case mode&fs.ModeSymlink != 0:
		return w.processSymlink(relPath, workPath, fi)
	case mode&fs.ModeNamedPipe != 0:
		return hashid.Hash{}, 0, gerr.UnsupportedFileType("fifo", relPath)
	case mode&fs.ModeSocket != 0:
		return hashid.Hash{}, 0, gerr.UnsupportedFileType("socket", relPath)
	case mode&(fs.ModeDevice|fs.ModeCharDevice) != 0:
		return hashid.Hash{}, 0, gerr.UnsupportedFileType("device", relPath)
	default:
		return hashid.Hash{}, 0, gerr.UnsupportedFileType("irregular", relPath)
	}
}

func (w *walker) processRegular(relPath, workPath string, fi fs.FileInfo) (hashid.Hash, leafKind, error) {
	f, err := w.fsys.Open(relPath)
	if err != nil {
		return hashid.Hash{}, 0, gerr.IO("open "+relPath, err)
	}
	hash, hashErr := canon.HashStream(relPath, f, fi.Size())
	closeErr := f.Close()
	if hashErr != nil {
		return hashid.Hash{}, 0, hashErr
	}
	if closeErr != nil {
		return hashid.Hash{}, 0, gerr.IO("close "+relPath, closeErr)
	}

	hostPath := filepath.Join(w.hostRoot, relPath)
	executable := fi.Mode().Perm()&0o111 != 0

	if _, err := cas.PlaceBlob(w.repo.BlobCAS(), hostPath, fi.Mode(), hash, w.mode); err != nil {
		return hashid.Hash{}, 0, err
	}
	if err := cas.LinkIntoWorkingTree(w.repo.BlobCAS(), hash, executable, workPath); err != nil {
		return hashid.Hash{}, 0, err
	}

	w.stats.FileCount++
	if executable {
		return hash, leafExecutable, nil
	}
	return hash, leafFile, nil
}

// processSymlink hashes the link's target bytes as a blob and recreates
// the symlink at workPath with the same target. Symlinks are never placed
// into the blob CAS — the blob hash exists only to give the tree entry
// something to point at.
func (w *walker) processSymlink(relPath, workPath string, fi fs.FileInfo) (hashid.Hash, leafKind, error) {
	target, err := fsx.Readlink(w.fsys, relPath)
	if err != nil {
		return hashid.Hash{}, 0, gerr.IO("readlink "+relPath, err)
	}
	hash, err := canon.HashStream(relPath, strings.NewReader(target), int64(len(target)))
	if err != nil {
		return hashid.Hash{}, 0, err
	}
	if err := os.Symlink(target, workPath); err != nil {
		return hashid.Hash{}, 0, gerr.IO("recreate symlink "+relPath, err)
	}
	w.stats.FileCount++
	return hash, leafSymlink, nil
}
