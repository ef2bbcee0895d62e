//go:build unix

package repo

import (
	"io/fs"
	"syscall"
)

// inodeOf extracts the inode number from a fs.FileInfo on platforms that
// expose it via syscall.Stat_t. The self-exclusion check this supports is
// POSIX-flavored (it assumes hardlinks and inode identity), so this has no
// portable fallback; on platforms without it, hasInode is simply false and
// the walker skips the check, descending into the repository directory
// like any other entry.
func inodeOf(fi fs.FileInfo) (uint64, bool) {
	st, ok := fi.Sys().(*syscall.Stat_t)
	if !ok {
		return 0, false
	}
	return uint64(st.Ino), true
}
