package testutil

import (
	"os"
	"runtime"
	"testing"
)

// SkipIfRoot skips tests that rely on permission failures, which root
// does not see.
func SkipIfRoot(t testing.TB, reason string) {
	t.Helper()
	if runtime.GOOS != "windows" && os.Geteuid() == 0 {
		t.Skipf("running as root: %s", reason)
	}
}

// SkipIfWindows skips tests of Unix-only behavior such as symlinks or file
// modes.
func SkipIfWindows(t testing.TB, reason string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skipf("windows: %s", reason)
	}
}
