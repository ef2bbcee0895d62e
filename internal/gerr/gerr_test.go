package gerr

import (
	"errors"
	"os"
	"testing"
)

func TestKindRoundTrip(t *testing.T) {
	err := NotFound("/tmp/does-not-exist")
	if Kind(err) != KindNotFound {
		t.Errorf("Kind = %q, want %q", Kind(err), KindNotFound)
	}
	if !Is(err, KindNotFound) {
		t.Error("Is should match the kind the constructor used")
	}
}

func TestKindOfPlainError(t *testing.T) {
	if Kind(errors.New("plain")) != "" {
		t.Error("plain errors should have no closed kind")
	}
	if Kind(nil) != "" {
		t.Error("nil error should have no closed kind")
	}
}

func TestSizeMismatchKind(t *testing.T) {
	err := SizeMismatch("a_file", 10, 3)
	if Kind(err) != KindSizeMismatch {
		t.Errorf("Kind = %q, want %q", Kind(err), KindSizeMismatch)
	}
}

func TestExistsAfterSuccessByOther(t *testing.T) {
	dir := t.TempDir()
	orig := errors.New("rename failed: directory not empty")
	if err := ExistsAfter(dir, orig); err != nil {
		t.Errorf("ExistsAfter should swallow the error when the destination exists, got %v", err)
	}
}

func TestExistsAfterGenuineFailure(t *testing.T) {
	orig := errors.New("rename failed")
	missing := "/this/path/should/not/exist/anywhere"
	if err := ExistsAfter(missing, orig); err != orig {
		t.Errorf("ExistsAfter should surface the original error when the destination is absent, got %v", err)
	}
}

func TestLinkAlreadyExists(t *testing.T) {
	if !LinkAlreadyExists(os.ErrExist) {
		t.Error("os.ErrExist should be recognized as already-exists")
	}
	if LinkAlreadyExists(errors.New("other")) {
		t.Error("unrelated errors should not be recognized as already-exists")
	}
}
