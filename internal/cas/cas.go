// Package cas implements the blob content-addressed store writer: placing
// a computed blob into blobcas/ by copy, hardlink, or move, tolerating
// concurrent creation, and encoding the executable bit into the blob's
// filename since hardlinked entries in the tree CAS can't carry
// permissions independent of their source inode.
package cas

import (
	"io"
	"os"
	"path/filepath"

	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/hashid"
)

// Mode selects how PlaceBlob materializes content into the blob CAS.
type Mode int

const (
	// Copy copies the source into a temporary file and renames it into
	// the blob CAS. It does not hash while copying; the caller computes
	// the hash in its own read pass before placing the blob.
	Copy Mode = iota
	// Link hardlinks the source directly into the blob CAS.
	Link
	// Move renames the source into the blob CAS, removing it from its
	// original location.
	Move
)

func (m Mode) String() string {
	switch m {
	case Copy:
		return "copy"
	case Link:
		return "link"
	case Move:
		return "move"
	default:
		return "unknown"
	}
}

// executableSuffix is appended to a blob CAS entry's name when the source
// file was executable (any of 0o111 set). This is the only place
// executability is recorded for a regular file: the entry's actual on-disk
// permission bits are whatever the umask gives a freshly created file (Copy)
// or whatever the source file had (Link, Move), and a hardlinked tree-CAS
// entry shares that inode.
const executableSuffix = "-x"

// normalizeExecutable normalizes "partial" executability: any source mode
// with a nonzero 0o111 is treated as fully executable. internal/ingest
// applies the same 0o111 test when it picks the tree entry mode, so the
// blob suffix and the 100755 tree mode always agree — the tree hash has to
// stay reproducible regardless of the source filesystem's exact
// permission bits.
func normalizeExecutable(mode os.FileMode) bool {
	return mode.Perm()&0o111 != 0
}

// CasPath is the path PlaceBlob wrote or linked to, including suffix.
type CasPath string

// pathFor returns the destination path for a blob of the given hash and
// executable-ness, e.g. blobcas/<hex><suffix>.
func pathFor(blobCASDir string, hash hashid.Hash, executable bool) string {
	name := hash.Hex()
	if executable {
		name += executableSuffix
	}
	return filepath.Join(blobCASDir, name)
}

// PlaceBlob places sourcePath's content into blobCASDir under computedHash,
// using the given Mode. sourceMode supplies the permission bits used to
// decide the executable suffix (normalized per normalizeExecutable).
//
// Link attempts a hardlink; an already-exists result is treated as success
// (content is identical by hash construction) and a cross-device link is
// fatal — the core never silently falls back to a different mode.
//
// Copy streams the source into a temporary file and renames it into place;
// a pre-existing destination (another ingester won the race) is accepted
// as-is, since content-addressing guarantees it's identical.
//
// Move renames sourcePath into the blob CAS; on destination pre-existence
// the now-redundant source is removed.
func PlaceBlob(blobCASDir, sourcePath string, sourceMode os.FileMode, computedHash hashid.Hash, mode Mode) (CasPath, error) {
	executable := normalizeExecutable(sourceMode)
	dest := pathFor(blobCASDir, computedHash, executable)

	switch mode {
	case Link:
		return placeByLink(sourcePath, dest)
	case Copy:
		return placeByCopy(sourcePath, dest)
	case Move:
		return placeByMove(sourcePath, dest)
	default:
		return "", gerr.IO("place blob", &unknownModeError{mode})
	}
}

type unknownModeError struct{ m Mode }

func (e *unknownModeError) Error() string { return "cas: unknown placement mode: " + e.m.String() }

func placeByLink(source, dest string) (CasPath, error) {
	if err := os.Link(source, dest); err != nil {
		if gerr.LinkAlreadyExists(err) {
			return CasPath(dest), nil
		}
		if gerr.IsCrossDevice(err) {
			return "", gerr.CrossDevice("link", source, dest)
		}
		return "", gerr.IO("hardlink blob into CAS", err)
	}
	return CasPath(dest), nil
}

func placeByCopy(source, dest string) (CasPath, error) {
	if _, err := os.Stat(dest); err == nil {
		// Content-addressed: an existing entry with this hash already has
		// identical content by construction. Nothing further to do.
		return CasPath(dest), nil
	}

	in, err := os.Open(source)
	if err != nil {
		return "", gerr.IO("open blob source for copy", err)
	}
	defer in.Close()

	tmp := dest + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", gerr.IO("create temporary blob CAS entry", err)
	}

	_, copyErr := io.Copy(out, in)
	closeErr := out.Close()
	if copyErr != nil {
		os.Remove(tmp)
		return "", gerr.IO("copy blob content", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmp)
		return "", gerr.IO("close temporary blob CAS entry", closeErr)
	}

	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		if _, statErr := os.Stat(dest); statErr == nil {
			return CasPath(dest), nil
		}
		return "", gerr.IO("rename temporary blob CAS entry into place", err)
	}
	return CasPath(dest), nil
}

func placeByMove(source, dest string) (CasPath, error) {
	if err := os.Rename(source, dest); err != nil {
		if gerr.IsCrossDevice(err) {
			return "", gerr.CrossDevice("move", source, dest)
		}
		if _, statErr := os.Stat(dest); statErr == nil {
			os.Remove(source)
			return CasPath(dest), nil
		}
		return "", gerr.IO("move blob into CAS", err)
	}
	return CasPath(dest), nil
}

// LinkIntoWorkingTree hardlinks a blob CAS entry into a path under an
// ingest's working tree — the step that builds the hardlink farm for tree
// CAS entries. It's the mirror image of placeByLink: here the CAS entry
// is always the source and the working-tree path is always new, so an
// already-exists result is never expected and is surfaced as a plain I/O
// error.
func LinkIntoWorkingTree(blobCASDir string, hash hashid.Hash, executable bool, workingTreeDest string) error {
	src := pathFor(blobCASDir, hash, executable)
	if err := os.Link(src, workingTreeDest); err != nil {
		if gerr.IsCrossDevice(err) {
			return gerr.CrossDevice("link", src, workingTreeDest)
		}
		return gerr.IO("hardlink blob into working tree", err)
	}
	return nil
}
