package cas

import (
	"os"

	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/hashid"
)

// BlobPath returns the path a blob CAS entry for hash would have, given
// whether it's executable. It does not check existence.
func BlobPath(blobCASDir string, hash hashid.Hash, executable bool) string {
	return pathFor(blobCASDir, hash, executable)
}

// Has reports whether a blob CAS entry exists for hash, trying the
// executable-suffixed name first since that's the more specific match.
func Has(blobCASDir string, hash hashid.Hash) (path string, executable bool, ok bool, err error) {
	execPath := pathFor(blobCASDir, hash, true)
	if _, statErr := os.Stat(execPath); statErr == nil {
		return execPath, true, true, nil
	} else if !os.IsNotExist(statErr) {
		return "", false, false, gerr.IO("stat blob CAS entry", statErr)
	}

	plainPath := pathFor(blobCASDir, hash, false)
	if _, statErr := os.Stat(plainPath); statErr == nil {
		return plainPath, false, true, nil
	} else if !os.IsNotExist(statErr) {
		return "", false, false, gerr.IO("stat blob CAS entry", statErr)
	}

	return "", false, false, nil
}

// Open opens a blob CAS entry for reading, trying the executable-suffixed
// name first. Used by read-only consumers such as the verify subcommand;
// the ingest walker itself only ever writes through PlaceBlob and links
// through LinkIntoWorkingTree.
func Open(blobCASDir string, hash hashid.Hash) (*os.File, bool, error) {
	path, executable, ok, err := Has(blobCASDir, hash)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, gerr.NotFound(pathFor(blobCASDir, hash, false))
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, false, gerr.IO("open blob CAS entry", err)
	}
	return f, executable, nil
}
