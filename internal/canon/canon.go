// Package canon implements the canonical on-disk hash encoding: the blob
// header/content digest, and the directory entry accumulator that
// produces a tree digest. The format is deliberately bit-compatible with
// a well-known tree/blob hashing convention so hashes computed externally
// for the same tree agree with Gar's.
package canon

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/hashid"
)

// Mode strings for tree entries. Note the directory mode has no leading
// zero, which is intentional wire format, not a typo.
const (
	ModeRegular    = "100644"
	ModeExecutable = "100755"
	ModeSymlink    = "120000"
	ModeDirectory  = "40000"
)

// HashStream computes the blob hash of a stream whose size is already known
// from a prior stat. It emits the header "blob <claimedSize>\0" into the
// digest, then streams r. If the number of bytes actually read disagrees
// with claimedSize, the hash is meaningless and HashStream returns
// gerr.SizeMismatch instead of a Hash.
//
// claimedSize must come from the same stat that preceded opening r; a file
// that grows between stat and read is the caller's risk, not something this
// function can detect beyond the final count check.
func HashStream(path string, r io.Reader, claimedSize int64) (hashid.Hash, error) {
	h := sha256.New()
	header := fmt.Sprintf("blob %s\x00", strconv.FormatInt(claimedSize, 10))
	if _, err := io.WriteString(h, header); err != nil {
		return hashid.Hash{}, gerr.IO("write blob header", err)
	}

	n, err := io.Copy(h, r)
	if err != nil {
		return hashid.Hash{}, gerr.IO("read blob content", err)
	}
	if n != claimedSize {
		return hashid.Hash{}, gerr.SizeMismatch(path, claimedSize, n)
	}

	return hashid.FromBytes(h.Sum(nil))
}

// DirAccumulator is a stateful builder for one directory's tree hash. It
// does not sort entries itself — the caller must append in
// byte-lexicographic order of the raw filename, which is also the order
// the walker uses to recurse. Finish computes the tree hash over whatever
// has been appended so far, in append order.
type DirAccumulator struct {
	buf []byte
}

// NewDirAccumulator creates an accumulator pre-sized for entryCountHint
// entries, to cut down on buffer growth for large directories.
func NewDirAccumulator(entryCountHint int) *DirAccumulator {
	// A generous guess per entry: mode + space + short name + NUL + 32-byte hash.
	const perEntryGuess = 48
	return &DirAccumulator{
		buf: make([]byte, 0, entryCountHint*perEntryGuess),
	}
}

func (d *DirAccumulator) append(mode string, name []byte, h hashid.Hash) {
	d.buf = append(d.buf, mode...)
	d.buf = append(d.buf, ' ')
	d.buf = append(d.buf, name...)
	d.buf = append(d.buf, 0)
	d.buf = append(d.buf, h.Bytes()...)
}

// AppendFile appends a regular, non-executable file entry.
func (d *DirAccumulator) AppendFile(name []byte, h hashid.Hash) {
	d.append(ModeRegular, name, h)
}

// AppendExecutable appends a regular, executable file entry.
func (d *DirAccumulator) AppendExecutable(name []byte, h hashid.Hash) {
	d.append(ModeExecutable, name, h)
}

// AppendSymlink appends a symlink entry; h is the blob hash of the link's
// target bytes, not of any file content.
func (d *DirAccumulator) AppendSymlink(name []byte, h hashid.Hash) {
	d.append(ModeSymlink, name, h)
}

// AppendDir appends a subdirectory entry; h is the child's tree hash.
func (d *DirAccumulator) AppendDir(name []byte, h hashid.Hash) {
	d.append(ModeDirectory, name, h)
}

// Finish computes the tree hash over "tree <bodyLen>\0" followed by the
// accumulated entry bytes. An empty directory is permitted and produces a
// deterministic hash over an empty body.
func (d *DirAccumulator) Finish() (hashid.Hash, error) {
	h := sha256.New()
	header := fmt.Sprintf("tree %s\x00", strconv.Itoa(len(d.buf)))
	if _, err := io.WriteString(h, header); err != nil {
		return hashid.Hash{}, gerr.IO("write tree header", err)
	}
	if _, err := h.Write(d.buf); err != nil {
		return hashid.Hash{}, gerr.IO("write tree body", err)
	}
	return hashid.FromBytes(h.Sum(nil))
}

// ModeFor returns the canonical wire-format mode string for a regular file,
// given whether it is executable.
func ModeFor(executable bool) string {
	if executable {
		return ModeExecutable
	}
	return ModeRegular
}

// ValidateName rejects filenames that can't be represented in the tree
// encoding. A NUL byte inside a name would be ambiguous with the
// name-terminating NUL the format relies on.
func ValidateName(name []byte) error {
	for _, b := range name {
		if b == 0 {
			return gerr.BadName(string(name))
		}
	}
	return nil
}

// SortNames sorts raw filename byte slices in byte-lexicographic order.
// Names are treated as opaque byte strings — no locale-aware comparison.
func SortNames(names [][]byte) {
	sort.Slice(names, func(i, j int) bool {
		return bytes.Compare(names[i], names[j]) < 0
	})
}
