package runner

import (
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/snev68/cubicle/internal/layout"
	"github.com/snev68/cubicle/internal/registry"
)

func testLayout(t *testing.T) *layout.Layout {
	t.Helper()
	root := t.TempDir()
	l := &layout.Layout{
		HomeDirs:   filepath.Join(root, "home"),
		WorkDirs:   filepath.Join(root, "work"),
		HostHome:   "/home/user",
		InstallDir: root,
	}
	seccomp := filepath.Join(root, "seccomp.bpf")
	if err := os.WriteFile(seccomp, []byte{0x20, 0x00, 0x00, 0x00}, 0644); err != nil {
		t.Fatal(err)
	}
	return l
}

func TestTarArgvGroupsBySeedDirectoryInOrder(t *testing.T) {
	seeds := []ExtraSeed{
		{Directory: "/a", Files: []string{"x", "y"}},
		{Directory: "/b", Files: nil},
	}
	extra := []ExtraSeed{
		{Directory: "/c", Files: []string{"."}, Transform: "s,^\\.,package-foo,"},
	}
	got := tarArgv(seeds, extra)
	want := []string{
		"-c",
		"--directory", "/a", "x", "y",
		"--directory", "/c", ".", "--transform", "s,^\\.,package-foo,",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("tarArgv() mismatch (-want +got):\n%s", diff)
	}
}

func TestShellJoinQuotesSpecialCharacters(t *testing.T) {
	got := shellJoin([]string{"echo", "hello world", "it's", "plain"})
	want := `echo 'hello world' 'it'\''s' plain`
	if got != want {
		t.Errorf("shellJoin() = %q, want %q", got, want)
	}
}

func TestBuildArgvContainsSandboxContractFlags(t *testing.T) {
	l := testLayout(t)
	reg := &registry.Registry{}
	r := New(l, reg, log.New(os.Stderr, "", 0))

	os.Setenv("SHELL", "/bin/bash")
	defer os.Unsetenv("SHELL")

	req := Request{Name: "myenv", Exec: []string{"go", "test", "./..."}}
	homeDir := l.EnvironmentHome(req.Name)
	workDir := l.EnvironmentWork(req.Name)

	b, err := r.buildArgv(req, homeDir, workDir, nil)
	if err != nil {
		t.Fatal(err)
	}
	joined := strings.Join(b.args, " ")

	for _, want := range []string{
		"--die-with-parent",
		"--unshare-cgroup",
		"--unshare-pid",
		"--hostname",
		"--bind " + homeDir + " " + l.HostHome,
		"--bind " + workDir + " " + filepath.Join(l.HostHome, "myenv"),
		"--chdir " + filepath.Join(l.HostHome, "myenv"),
		"-- /bin/bash -l -c",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("buildArgv() args missing %q; got %q", want, joined)
		}
	}

	if len(b.extraFiles) != 1 {
		t.Fatalf("expected one extra file (seccomp), got %d", len(b.extraFiles))
	}
}

func TestBuildArgvRequiresShellEnv(t *testing.T) {
	l := testLayout(t)
	reg := &registry.Registry{}
	r := New(l, reg, log.New(os.Stderr, "", 0))

	os.Unsetenv("SHELL")

	_, err := r.buildArgv(Request{Name: "x"}, l.EnvironmentHome("x"), l.EnvironmentWork("x"), nil)
	if err == nil {
		t.Fatal("expected error when $SHELL is unset")
	}
}

func TestValidateSeccompFilterRejectsEmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.bpf")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := validateSeccompFilter(path); err == nil {
		t.Fatal("expected error for empty seccomp filter")
	}
}
