// Package layout resolves the fixed set of directory roles cubicle uses:
// per-environment home and work directories, built-in and user package
// collections, and the word list cache. It follows the XDG Base Directory
// Specification, falling back to the conventional defaults when the XDG
// environment variables are unset.
package layout

import (
	"os"
	"path/filepath"

	"golang.org/x/xerrors"
)

// Layout is the set of directory roles cubicle operates against, resolved
// once per invocation. Unlike a global, it is a plain value: tests construct
// one pointing at a scratch directory instead of mutating process state.
type Layout struct {
	// CacheRoot is $XDG_CACHE_HOME, or $HOME/.cache if unset.
	CacheRoot string
	// DataRoot is $XDG_DATA_HOME, or $HOME/.local/share if unset.
	DataRoot string

	// HomeDirs holds per-environment home directories, <CacheRoot>/cubicle/home.
	HomeDirs string
	// WorkDirs holds per-environment work directories, <DataRoot>/cubicle/work.
	WorkDirs string
	// UserPackages holds user-provided package collections, one subdirectory
	// per origin, <DataRoot>/cubicle/packages.
	UserPackages string
	// BuiltinPackages holds the packages shipped alongside the cubicle binary.
	BuiltinPackages string
	// WordlistCache is the cached copy of the EFF short word list.
	WordlistCache string
	// HostHome is the current user's home directory; the sandbox mounts the
	// environment's home directory at this same path.
	HostHome string

	// InstallDir is the directory containing the cubicle binary itself; it is
	// where BuiltinPackages and the dev-init.sh / seccomp.bpf auxiliary files
	// are expected to live.
	InstallDir string
}

// Discover resolves a Layout from the environment, creating every directory
// role with its full parent chain. A permission or I/O error while creating a
// role directory is fatal, per spec.
func Discover() (*Layout, error) {
	home := os.Getenv("HOME")
	if home == "" {
		return nil, xerrors.New("layout: $HOME is not set")
	}

	cacheRoot := os.Getenv("XDG_CACHE_HOME")
	if cacheRoot == "" {
		cacheRoot = filepath.Join(home, ".cache")
	}
	dataRoot := os.Getenv("XDG_DATA_HOME")
	if dataRoot == "" {
		dataRoot = filepath.Join(home, ".local", "share")
	}

	installDir, err := installDir()
	if err != nil {
		return nil, xerrors.Errorf("layout: locating install directory: %w", err)
	}

	l := &Layout{
		CacheRoot:       cacheRoot,
		DataRoot:        dataRoot,
		HomeDirs:        filepath.Join(cacheRoot, "cubicle", "home"),
		WorkDirs:        filepath.Join(dataRoot, "cubicle", "work"),
		UserPackages:    filepath.Join(dataRoot, "cubicle", "packages"),
		BuiltinPackages: filepath.Join(installDir, "packages"),
		WordlistCache:   filepath.Join(cacheRoot, "cubicle", "eff_short_wordlist_1.txt"),
		HostHome:        home,
		InstallDir:      installDir,
	}

	for _, dir := range []string{l.HomeDirs, l.WorkDirs, l.UserPackages, l.BuiltinPackages} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, xerrors.Errorf("layout: creating %s: %w", dir, err)
		}
	}

	return l, nil
}

func installDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(exe)
	if err != nil {
		resolved = exe
	}
	return filepath.Dir(resolved), nil
}

// EnvironmentHome returns the host path of the home directory for
// environment name.
func (l *Layout) EnvironmentHome(name string) string {
	return filepath.Join(l.HomeDirs, name)
}

// EnvironmentWork returns the host path of the work directory for
// environment name.
func (l *Layout) EnvironmentWork(name string) string {
	return filepath.Join(l.WorkDirs, name)
}

// DevInitScript is the path to the init script cubicle uses to materialize a
// freshly seeded home directory.
func (l *Layout) DevInitScript() string {
	return filepath.Join(l.InstallDir, "dev-init.sh")
}

// SeccompFilter is the path to the seccomp BPF program bind-mounted into every
// sandboxed process.
func (l *Layout) SeccompFilter() string {
	return filepath.Join(l.InstallDir, "seccomp.bpf")
}
