package output

import (
	"os"
	"testing"
)

func TestIsTerminal_TrueWhenUnderlyingCheckSaysSo(t *testing.T) {
	orig := isattyFn
	defer func() { isattyFn = orig }()
	isattyFn = func(*os.File) bool { return true }

	if !IsTerminal(nil) {
		t.Error("expected IsTerminal to report true")
	}
}

func TestIsTerminal_FalseForAPipe(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { r.Close() }) //nolint:errcheck
	t.Cleanup(func() { w.Close() }) //nolint:errcheck

	if IsTerminal(w) {
		t.Error("expected IsTerminal to report false for a pipe")
	}
}

func TestNoColor(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if !NoColor() {
		t.Error("expected NoColor() true when NO_COLOR env var is set")
	}
}

func TestNoColorUnset(t *testing.T) {
	os.Unsetenv("NO_COLOR") //nolint:errcheck
	if NoColor() {
		t.Error("expected NoColor() false when NO_COLOR env var is not set")
	}
}
