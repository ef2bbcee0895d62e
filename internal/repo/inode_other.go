//go:build !unix

package repo

import "io/fs"

// inodeOf has no portable implementation outside POSIX platforms; see the
// unix build's inode_unix.go for why this invariant is POSIX-flavored.
func inodeOf(fi fs.FileInfo) (uint64, bool) {
	return 0, false
}
