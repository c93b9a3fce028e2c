package lifecycle

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/snev68/cubicle/internal/cubicletest"
)

func TestRMTreeOnMissingPathIsNotAnError(t *testing.T) {
	if err := RMTree(filepath.Join(t.TempDir(), "never-existed")); err != nil {
		t.Fatalf("RMTree on a missing path must not fail: %v", err)
	}
}

func TestRMTreeRemovesReadOnlyTree(t *testing.T) {
	root, err := os.MkdirTemp("", "cubicle-rmtree-")
	if err != nil {
		t.Fatal(err)
	}
	defer cubicletest.RemoveAll(t, root)

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}
	file := filepath.Join(nested, "f")
	if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	// Strip write permission throughout the tree, forcing RMTree's
	// chmod-then-retry path.
	if err := os.Chmod(nested, 0555); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(filepath.Join(root, "a"), 0555); err != nil {
		t.Fatal(err)
	}

	if err := RMTree(root); err != nil {
		t.Fatalf("RMTree should recover from a read-only tree: %v", err)
	}
	if _, err := os.Stat(root); !os.IsNotExist(err) {
		t.Error("root should be removed")
	}
}
