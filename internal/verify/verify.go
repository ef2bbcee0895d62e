// Package verify implements a read-only consistency check over an already
// committed tree CAS entry: it re-walks the materialized directory,
// recomputes every blob and tree hash from the bytes actually on disk, and
// confirms each file is still a hardlink to its blob CAS entry. It never
// writes anything — this is a diagnostic, not part of the ingest contract.
package verify

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/javanhut/gar/internal/canon"
	"github.com/javanhut/gar/internal/cas"
	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/hashid"
	"github.com/javanhut/gar/internal/repo"
)

// Verify recomputes the tree hash of repo's treecas/<root> entry from its
// materialized contents and confirms it equals root. It also confirms
// every regular file under the entry is a hardlink to the blob CAS entry
// matching its own content hash — an invariant ingest maintains for every
// path under a committed tree.
func Verify(r *repo.Repo, root hashid.Hash) error {
	dir := filepath.Join(r.TreeCAS(), root.Hex())
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return gerr.NotFound(dir)
		}
		return gerr.IO("stat tree CAS entry", err)
	}

	computed, err := verifyDir(r, dir)
	if err != nil {
		return err
	}
	if computed != root {
		return fmt.Errorf("verify: recomputed hash %s does not match claimed %s", computed.Hex(), root.Hex())
	}
	return nil
}

func verifyDir(r *repo.Repo, dir string) (hashid.Hash, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return hashid.Hash{}, gerr.IO("read tree CAS directory "+dir, err)
	}
	sort.Slice(entries, func(i, j int) bool {
		return strings.Compare(entries[i].Name(), entries[j].Name()) < 0
	})

	acc := canon.NewDirAccumulator(len(entries))

	for _, de := range entries {
		name := de.Name()
		full := filepath.Join(dir, name)
		fi, err := os.Lstat(full)
		if err != nil {
			return hashid.Hash{}, gerr.IO("lstat "+full, err)
		}

		switch {
		case fi.IsDir():
			childHash, err := verifyDir(r, full)
			if err != nil {
				return hashid.Hash{}, err
			}
			acc.AppendDir([]byte(name), childHash)

		case fi.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(full)
			if err != nil {
				return hashid.Hash{}, gerr.IO("readlink "+full, err)
			}
			hash, err := canon.HashStream(full, strings.NewReader(target), int64(len(target)))
			if err != nil {
				return hashid.Hash{}, err
			}
			acc.AppendSymlink([]byte(name), hash)

		case fi.Mode().IsRegular():
			hash, executable, err := verifyRegular(r, full, fi)
			if err != nil {
				return hashid.Hash{}, err
			}
			if executable {
				acc.AppendExecutable([]byte(name), hash)
			} else {
				acc.AppendFile([]byte(name), hash)
			}

		default:
			return hashid.Hash{}, gerr.UnsupportedFileType("irregular", full)
		}
	}

	return acc.Finish()
}

func verifyRegular(r *repo.Repo, full string, fi fs.FileInfo) (hashid.Hash, bool, error) {
	f, err := os.Open(full)
	if err != nil {
		return hashid.Hash{}, false, gerr.IO("open "+full, err)
	}
	hash, err := canon.HashStream(full, f, fi.Size())
	closeErr := f.Close()
	if err != nil {
		return hashid.Hash{}, false, err
	}
	if closeErr != nil {
		return hashid.Hash{}, false, gerr.IO("close "+full, closeErr)
	}

	// The same content can have both a plain and a -x entry; the file must
	// be a hardlink to one of them, and which one decides its tree mode.
	var blobPath string
	for _, executable := range []bool{true, false} {
		p := cas.BlobPath(r.BlobCAS(), hash, executable)
		blobInfo, err := os.Stat(p)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return hashid.Hash{}, false, gerr.IO("stat blob CAS entry", err)
		}
		if os.SameFile(fi, blobInfo) {
			return hash, executable, nil
		}
		blobPath = p
	}
	if blobPath == "" {
		return hashid.Hash{}, false, fmt.Errorf("verify: no blob CAS entry for %s (content hash %s)", full, hash.Hex())
	}
	return hashid.Hash{}, false, fmt.Errorf("verify: %s is not a hardlink to its blob CAS entry %s", full, blobPath)
}
