// Package treeidx populates the repository's reserved treeidx/ directory
// with metadata about completed ingests. The core ingest engine never
// reads it back — it is additive, non-authoritative bookkeeping about
// past ingests, not a second source of truth for tree shape.
package treeidx

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/javanhut/gar/internal/gerr"
	"github.com/javanhut/gar/internal/hashid"
)

var bucketIngests = []byte("ingests")

// Record is the metadata stored for one successful ingest, keyed by its
// root tree hash.
type Record struct {
	SourcePath string    `json:"source_path"`
	Mode       string    `json:"mode"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	FileCount  int       `json:"file_count"`
	DirCount   int       `json:"dir_count"`
}

// Index is a handle to one repository's treeidx/index.db.
type Index struct {
	db *bbolt.DB
}

// manager reference-counts a single *bbolt.DB per path so concurrent
// ingesters into the same repo share one file lock instead of each opening
// their own, mirroring a shared-handle singleton pattern.
type manager struct {
	mu   sync.Mutex
	db   *bbolt.DB
	path string
	refs int
}

var (
	globalMu sync.Mutex
	global   *manager
)

// Open opens (creating if necessary) the index.db file under treeIdxDir,
// sharing a process-wide handle for repeated calls against the same path.
func Open(treeIdxDir string) (*Index, error) {
	path := filepath.Join(treeIdxDir, "index.db")

	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil || global.path != path {
		if global != nil {
			_ = global.db.Close()
		}
		db, err := bbolt.Open(path, 0o666, nil)
		if err != nil {
			return nil, gerr.IO("open treeidx database", err)
		}
		if err := db.Update(func(tx *bbolt.Tx) error {
			_, e := tx.CreateBucketIfNotExists(bucketIngests)
			return e
		}); err != nil {
			_ = db.Close()
			return nil, gerr.IO("create treeidx bucket", err)
		}
		global = &manager{db: db, path: path}
	}
	global.refs++
	return &Index{db: global.db}, nil
}

// Close decrements the shared reference count, closing the underlying
// database once no Index handle is using it.
func (ix *Index) Close() error {
	globalMu.Lock()
	defer globalMu.Unlock()

	if global == nil {
		return nil
	}
	global.refs--
	if global.refs <= 0 {
		err := global.db.Close()
		global = nil
		return err
	}
	return nil
}

// Put records metadata for a completed ingest under its root tree hash.
// Called once, after commit, so a failed or in-progress ingest never
// appears here — this is purely additive bookkeeping, never consulted by
// the core to decide whether an ingest is needed.
func (ix *Index) Put(root hashid.Hash, rec Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("treeidx: marshal record: %w", err)
	}
	return ix.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIngests).Put(root.Bytes(), data)
	})
}

// Get retrieves the metadata recorded for a root tree hash, if any.
func (ix *Index) Get(root hashid.Hash) (Record, bool, error) {
	var rec Record
	var found bool
	err := ix.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketIngests).Get(root.Bytes())
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &rec)
	})
	if err != nil {
		return Record{}, false, fmt.Errorf("treeidx: read record: %w", err)
	}
	return rec, found, nil
}
