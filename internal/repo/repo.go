// Package repo owns the on-disk layout of a Gar repository: the blob CAS,
// tree CAS, and (reserved) tree-index subdirectories. It resolves and
// stores both the as-given and canonicalized repository path, the latter
// needed for the walker's inode-based self-exclusion check.
package repo

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/javanhut/gar/internal/gerr"
)

const (
	blobCASDir    = "blobcas"
	treeCASDir    = "treecas"
	treeIdxDir    = "treeidx"
	wipTreePrefix = ".wiptree-"
)

// Repo is a handle to a Gar repository directory. It owns the three
// subpath strings and never mutates after construction.
type Repo struct {
	// givenPath is the path as the caller supplied it, kept for
	// user-facing messages.
	givenPath string
	// absPath is the symlink-resolved absolute path, used for the
	// loop-detection invariant during walks.
	absPath string

	selfInode uint64
	hasInode  bool
}

// Open resolves path to an existing repository. It fails with
// gerr.KindNotFound if path, or any of its three subdirectories, does not
// exist — core ingest assumes the caller already created them.
func Open(path string) (*Repo, error) {
	r, err := newHandle(path)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{r.BlobCAS(), r.TreeCAS(), r.TreeIndex()} {
		if _, err := os.Stat(dir); err != nil {
			if os.IsNotExist(err) {
				return nil, gerr.NotFound(dir)
			}
			return nil, gerr.IO("stat repo subdirectory", err)
		}
	}
	return r, nil
}

// Create resolves path to a repository directory and idempotently creates
// it and its three subdirectories. Unlike Open, a non-existent repo path is
// not an error here.
func Create(path string) (*Repo, error) {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, gerr.IO("create repo directory", err)
	}
	r, err := newHandle(path)
	if err != nil {
		return nil, err
	}
	for _, dir := range []string{r.BlobCAS(), r.TreeCAS(), r.TreeIndex()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, gerr.IO("create repo subdirectory", err)
		}
	}
	return r, nil
}

func newHandle(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, gerr.IO("resolve repo path", err)
	}
	// EvalSymlinks requires the path (or a prefix of it) to exist; a
	// brand-new repo directory has already been created by the time
	// Create calls this, and Open requires it to exist, so this is safe
	// in both callers.
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, gerr.NotFound(abs)
		}
		return nil, gerr.IO("resolve repo symlinks", err)
	}

	r := &Repo{givenPath: path, absPath: resolved}
	if fi, statErr := os.Stat(resolved); statErr == nil {
		if ino, ok := inodeOf(fi); ok {
			r.selfInode = ino
			r.hasInode = true
		}
	}
	return r, nil
}

// GivenPath returns the repository path as the caller originally supplied
// it, suitable for user-facing messages.
func (r *Repo) GivenPath() string { return r.givenPath }

// AbsPath returns the canonical, symlink-resolved absolute repository path.
func (r *Repo) AbsPath() string { return r.absPath }

// BlobCAS returns the blob content-addressed store directory.
func (r *Repo) BlobCAS() string { return filepath.Join(r.absPath, blobCASDir) }

// TreeCAS returns the tree content-addressed store directory.
func (r *Repo) TreeCAS() string { return filepath.Join(r.absPath, treeCASDir) }

// TreeIndex returns the reserved tree-index directory.
func (r *Repo) TreeIndex() string { return filepath.Join(r.absPath, treeIdxDir) }

// NewWorkingTreePath returns a uniquely-named sibling path inside the tree
// CAS for a fresh ingest's working directory. Called once per ingest; the
// nonce comes from the OS's random temp-name allocator via os.MkdirTemp
// semantics, not from math/rand, so concurrent ingesters never collide.
func (r *Repo) NewWorkingTreePath() (string, error) {
	dir, err := os.MkdirTemp(r.TreeCAS(), wipTreePrefix+"*")
	if err != nil {
		return "", gerr.IO("create working tree directory", err)
	}
	return dir, nil
}

// SelfInode reports the repository directory's inode number captured at
// handle construction, and whether the platform supports inode-based
// identity at all. The walker uses this for repo self-exclusion: a
// subdirectory whose inode matches is skipped, so "ingest current
// directory" works from a working tree that also contains the repo.
func (r *Repo) SelfInode() (ino uint64, ok bool) {
	return r.selfInode, r.hasInode
}

// Inode exposes the platform inode lookup used internally by newHandle, so
// callers walking a filesystem (internal/ingest) can compare an arbitrary
// fs.FileInfo against SelfInode without duplicating the build-tagged
// syscall access.
func Inode(fi fs.FileInfo) (uint64, bool) {
	return inodeOf(fi)
}
