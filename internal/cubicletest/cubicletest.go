// Package cubicletest provides small test helpers shared across the
// package-level test suites.
package cubicletest

import (
	"os"
	"testing"
)

// RemoveAll wraps os.RemoveAll and fails the test on failure.
func RemoveAll(t testing.TB, path string) {
	t.Helper()
	if err := os.RemoveAll(path); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}
