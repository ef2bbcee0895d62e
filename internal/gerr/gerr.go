// Package gerr normalizes filesystem errors encountered by the core into a
// closed error-kind set, and implements the idempotence checks
// ("exists-after-rename", "link-already-exists") that let concurrent
// ingesters race benignly instead of failing.
package gerr

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	serum "github.com/serum-errors/go-serum"
)

// Closed set of error kinds surfaced by the core. No other kind is ever
// returned from internal/repo, internal/cas, or internal/ingest; the one
// error from those packages that carries no kind at all is Ingest's
// rejection of a root that is not a directory.
const (
	KindNotFound            = "gar-error-not-found"
	KindBadHex              = "gar-error-bad-hex"
	KindSizeMismatch        = "gar-error-size-mismatch"
	KindUnsupportedFileType = "gar-error-unsupported-file-type"
	KindBadName             = "gar-error-bad-name"
	KindCrossDevice         = "gar-error-cross-device"
	KindIO                  = "gar-error-io"
)

// NotFound reports a path that should exist at the start of an operation
// but does not.
func NotFound(path string) error {
	return serum.Errorf(KindNotFound, "path does not exist: %s", path)
}

// BadHex reports a hex-decoding failure.
func BadHex(s string) error {
	return serum.Errorf(KindBadHex, "not a valid hash hex string: %q", s)
}

// SizeMismatch reports streamed bytes disagreeing with the claimed size
// used to build the blob header; the hash would be meaningless otherwise.
func SizeMismatch(path string, claimed, got int64) error {
	return serum.Error(
		KindSizeMismatch,
		serum.WithMessageTemplate("expected to stream {{claimed}} bytes but read {{got}} at path {{path}}"),
		serum.WithDetail("claimed", fmt.Sprintf("%d", claimed)),
		serum.WithDetail("got", fmt.Sprintf("%d", got)),
		serum.WithDetail("path", path),
	)
}

// UnsupportedFileType reports a fifo, socket, device, or other non-portable
// entry encountered during a walk.
func UnsupportedFileType(kind, path string) error {
	return serum.Error(
		KindUnsupportedFileType,
		serum.WithMessageTemplate("gar can not describe {{kind}} files; found one at {{path}}"),
		serum.WithDetail("kind", kind),
		serum.WithDetail("path", path),
	)
}

// BadName reports a filename that can't be represented in the tree encoding
// (a NUL byte, most commonly).
func BadName(path string) error {
	return serum.Errorf(KindBadName, "filename is not representable: %q", path)
}

// CrossDevice reports a hardlink or rename that crossed a device boundary.
// The core never silently falls back to a different placement mode.
func CrossDevice(op, from, to string) error {
	return serum.Error(
		KindCrossDevice,
		serum.WithMessageTemplate("{{op}} crossed a device boundary: {{from}} -> {{to}}"),
		serum.WithDetail("op", op),
		serum.WithDetail("from", from),
		serum.WithDetail("to", to),
	)
}

// IO wraps any other filesystem error, preserving the OS-level cause.
func IO(op string, cause error) error {
	return serum.Errorf(KindIO, "%s: %w", op, cause)
}

// codeable is the interface go-serum error values satisfy; used to recover
// the closed kind without string-matching the rendered message.
type codeable interface {
	Code() string
}

// Kind returns the closed error kind carried by err, or "" if err is nil or
// was not produced by this package.
func Kind(err error) string {
	var c codeable
	if errors.As(err, &c) {
		return c.Code()
	}
	return ""
}

// Is reports whether err carries the given closed kind.
func Is(err error, kind string) bool {
	return Kind(err) == kind
}

// LinkAlreadyExists reports whether err is the result of attempting to
// hardlink on top of a pre-existing destination. This is treated as
// success: content is identical by hash construction.
func LinkAlreadyExists(err error) bool {
	return errors.Is(err, os.ErrExist)
}

// ExistsAfter re-probes path after a failed commit rename. If the
// destination now exists, the commit is treated as succeeded-by-another
// ingester; if not, the original error is the real error.
func ExistsAfter(path string, orig error) error {
	if _, statErr := os.Lstat(path); statErr == nil {
		return nil
	}
	return orig
}

// IsCrossDevice reports whether the underlying OS error indicates the
// hardlink or rename crossed a device/filesystem boundary (EXDEV). Both
// *os.LinkError and the plain errno unwrap through errors.Is.
func IsCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
