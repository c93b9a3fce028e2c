// Package runner implements the Environment Runner: it composes a seed
// archive from package outputs and extra seed directories, launches the
// sandbox (bwrap) with a fixed filesystem view, streams the seed into it,
// and runs an optional init script or one-shot command.
package runner

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/exp/mmap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"
	"golang.org/x/xerrors"

	"github.com/snev68/cubicle/internal/layout"
	"github.com/snev68/cubicle/internal/registry"
	"github.com/snev68/cubicle/internal/trace"
)

// ExtraSeed is an additional archive input beyond what a package set
// contributes, e.g. the Builder's own source-directory seed.
type ExtraSeed struct {
	// Directory is the host directory tar should read Files from.
	Directory string
	// Files are the paths (relative to Directory) to include.
	Files []string
	// Transform, if non-empty, is a sed-style expression passed to tar's
	// --transform to rewrite archive member paths (e.g. renaming a host
	// source tree to "package-<name>" inside the archive).
	Transform string
}

// Request describes one invocation of the Environment Runner.
type Request struct {
	// Name is the environment name; its home and work directories are
	// <home_dirs>/Name and <work_dirs>/Name.
	Name string
	// Packages seeds the sandbox's home with these packages' (transitive)
	// provided outputs.
	Packages map[string]struct{}
	// ExtraSeeds are additional archive inputs, included after the package
	// seeds, in the given order.
	ExtraSeeds []ExtraSeed
	// Init, if non-empty, is a host path to a script executed inside the
	// sandbox via /dev/shm/init.sh.
	Init string
	// Exec, if non-empty, is a command + args executed via the login shell's
	// -c flag. Mutually exclusive with Init; if both are empty the sandbox
	// runs an interactive login shell.
	Exec []string
}

// Runner launches sandboxed processes per Request.
type Runner struct {
	layout   *layout.Layout
	registry *registry.Registry
	logger   *log.Logger
}

// New returns a Runner that resolves seed content against reg and stages
// home/work directories per l.
func New(l *layout.Layout, reg *registry.Registry, logger *log.Logger) *Runner {
	return &Runner{layout: l, registry: reg, logger: logger}
}

// Run executes req: it ensures the environment's home directory exists,
// optionally spawns the archive producer (tar) and the sandbox (bwrap)
// concurrently, and waits for both.
func (r *Runner) Run(ctx context.Context, req Request) error {
	ev := trace.Event("run:"+req.Name, 0)
	defer ev.Done()

	homeDir := r.layout.EnvironmentHome(req.Name)
	if err := os.MkdirAll(homeDir, 0755); err != nil {
		return xerrors.Errorf("runner: creating home %s: %w", homeDir, err)
	}
	workDir := r.layout.EnvironmentWork(req.Name)

	seedDirs, err := r.seedSources(req.Packages)
	if err != nil {
		return err
	}

	var (
		seedReadEnd *os.File
		tarCmd      *exec.Cmd
	)
	if len(seedDirs) > 0 || len(req.ExtraSeeds) > 0 {
		fds, err := unix.Pipe2(unix.O_CLOEXEC)
		if err != nil {
			return xerrors.Errorf("runner: creating seed pipe: %w", err)
		}
		seedReadEnd = os.NewFile(uintptr(fds[0]), "seed-read")
		seedWriteEnd := os.NewFile(uintptr(fds[1]), "seed-write")

		tarArgs := tarArgv(seedDirs, req.ExtraSeeds)
		tarCmd = exec.CommandContext(ctx, "tar", tarArgs...)
		tarCmd.Stdout = seedWriteEnd
		tarCmd.Stderr = os.Stderr
		if err := tarCmd.Start(); err != nil {
			seedReadEnd.Close()
			seedWriteEnd.Close()
			return xerrors.Errorf("runner: starting tar: %w", err)
		}
		// The parent's copy of the write end must close so tar is the sole
		// writer and bwrap (holding the read end via ExtraFiles) sees EOF
		// as soon as tar exits.
		seedWriteEnd.Close()
	}

	argv, err := r.buildArgv(req, homeDir, workDir, seedReadEnd)
	if err != nil {
		if seedReadEnd != nil {
			seedReadEnd.Close()
		}
		return err
	}

	bwrapCmd := exec.CommandContext(ctx, "bwrap", argv.args...)
	bwrapCmd.ExtraFiles = argv.extraFiles
	bwrapCmd.Stdin = os.Stdin
	bwrapCmd.Stdout = os.Stdout
	bwrapCmd.Stderr = os.Stderr
	bwrapCmd.Env = r.sandboxEnv(req.Name, homeDir)

	if err := bwrapCmd.Start(); err != nil {
		if seedReadEnd != nil {
			seedReadEnd.Close()
		}
		return xerrors.Errorf("runner: starting bwrap: %w", err)
	}

	// The parent's reference to the seed read end (and the seccomp file) is
	// no longer needed once bwrap has inherited its own copies; closing it
	// lets tar observe backpressure/close correctly if bwrap exits early.
	for _, f := range argv.extraFiles {
		f.Close()
	}

	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := bwrapCmd.Wait(); err != nil {
			return r.diagnoseLaunchFailure(err)
		}
		return nil
	})
	if tarCmd != nil {
		g.Go(func() error {
			// Best-effort: tar's own exit status is informational only, per
			// spec §4.6 Post-launch.
			if err := tarCmd.Wait(); err != nil {
				r.logger.Printf("tar exited with error (ignored): %v", err)
			}
			return nil
		})
	}
	return g.Wait()
}

// seedSources computes, for every package in sorted deps*(packages) with
// non-empty Provides, the (built-package home, provided files) pair that
// contributes seed content.
func (r *Runner) seedSources(packages map[string]struct{}) ([]ExtraSeed, error) {
	if len(packages) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(packages))
	for name := range packages {
		names = append(names, name)
	}
	closure, err := r.registry.TransitiveDepends(names)
	if err != nil {
		return nil, err
	}
	sorted := make([]string, 0, len(closure))
	for name := range closure {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	var seeds []ExtraSeed
	for _, name := range sorted {
		pkg, ok := r.registry.Get(name)
		if !ok || len(pkg.Provides) == 0 {
			continue
		}
		seeds = append(seeds, ExtraSeed{
			Directory: filepath.Join(r.layout.HomeDirs, registry.PackageEnvironmentName(name)),
			Files:     pkg.Provides,
		})
	}
	return seeds, nil
}

// tarArgv builds the archive producer's argv: one --directory group per seed
// source (package seeds first, in sorted-dependency order, then the caller's
// extra seeds in the order given), each optionally followed by a --transform
// expression.
func tarArgv(seedDirs []ExtraSeed, extraSeeds []ExtraSeed) []string {
	args := []string{"-c"}
	for _, seed := range append(append([]ExtraSeed{}, seedDirs...), extraSeeds...) {
		if len(seed.Files) == 0 {
			continue
		}
		args = append(args, "--directory", seed.Directory)
		args = append(args, seed.Files...)
		if seed.Transform != "" {
			args = append(args, "--transform", seed.Transform)
		}
	}
	return args
}

func (r *Runner) buildArgv(req Request, homeDir, workDir string, seedReadEnd *os.File) (*argvBuilder, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "localhost"
	}

	b := &argvBuilder{}
	b.DieWithParent()
	b.Flag("--unshare-cgroup")
	b.Flag("--unshare-ipc")
	b.Flag("--unshare-pid")
	b.Flag("--unshare-uts")
	b.Hostname(fmt.Sprintf("%s.%s", req.Name, hostname))
	b.Symlink("/usr/bin", "/bin")
	b.Dev("/dev")

	if req.Init != "" {
		b.push("--ro-bind-try", req.Init, "/dev/shm/init.sh")
	}
	if seedReadEnd != nil {
		b.File("--file", seedReadEnd, "/dev/shm/seed.tar")
	}

	b.ROBindTry("/etc")
	sandboxHome := r.layout.HostHome
	b.Bind(homeDir, sandboxHome)
	b.Dir(filepath.Join(sandboxHome, ".dev-init"))
	b.Dir(filepath.Join(sandboxHome, "bin"))
	b.Dir(filepath.Join(sandboxHome, "opt"))
	b.Dir(filepath.Join(sandboxHome, "tmp"))
	b.Bind(workDir, filepath.Join(sandboxHome, req.Name))
	b.Symlink("/usr/lib", "/lib")
	b.Symlink("/usr/lib64", "/lib64")
	b.ROBindTry("/opt")
	b.Proc("/proc")
	b.Symlink("/usr/sbin", "/sbin")
	b.Tmpfs("/tmp")
	b.ROBindTry("/usr")
	b.ROBindTry("/var/lib/apt/lists/")
	b.ROBindTry("/var/lib/dpkg/")

	seccompPath := r.layout.SeccompFilter()
	seccompFile, err := validateSeccompFilter(seccompPath)
	if err != nil {
		return nil, err
	}
	b.Seccomp(seccompFile)

	b.Chdir(filepath.Join(sandboxHome, req.Name))
	b.Separator()

	shell := os.Getenv("SHELL")
	if shell == "" {
		return nil, xerrors.New("runner: $SHELL is not set")
	}
	b.Command(shell, "-l")
	switch {
	case req.Init != "":
		b.Command("-c", "/dev/shm/init.sh")
	case len(req.Exec) > 0:
		b.Command("-c", shellJoin(req.Exec))
	}

	return b, nil
}

// validateSeccompFilter opens the seccomp BPF program and mmaps it to confirm it is a non-empty, readable file before handing
// its fd to bwrap — a corrupt or missing filter otherwise surfaces only as a
// mystifying bwrap failure.
func validateSeccompFilter(path string) (*os.File, error) {
	ra, err := mmap.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("runner: seccomp filter %s: %w", path, err)
	}
	defer ra.Close()
	if ra.Len() == 0 {
		return nil, xerrors.Errorf("runner: seccomp filter %s is empty", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, xerrors.Errorf("runner: seccomp filter %s: %w", path, err)
	}
	return f, nil
}

func (r *Runner) sandboxEnv(name, homeDir string) []string {
	env := []string{
		"PATH=" + r.layout.HostHome + "/bin:/bin:/sbin",
		"SANDBOX=" + name,
		"TMPDIR=" + r.layout.HostHome + "/tmp",
	}
	for _, pass := range []string{"DISPLAY", "HOME", "SHELL", "TERM"} {
		if v, ok := os.LookupEnv(pass); ok {
			env = append(env, pass+"="+v)
		}
	}
	return env
}

// shellJoin quotes words the way a POSIX shell would need them quoted to be
// read back as the same argv, so req.Exec survives the login shell's -c
// argument. It mirrors Python's shlex.join, which the teacher's source uses
// for the same purpose.
func shellJoin(words []string) string {
	quoted := make([]string, len(words))
	for i, w := range words {
		if w != "" && !strings.ContainsAny(w, " \t\n'\"\\$`!*?[](){}|&;<>~#") {
			quoted[i] = w
			continue
		}
		quoted[i] = "'" + strings.ReplaceAll(w, "'", `'\''`) + "'"
	}
	return strings.Join(quoted, " ")
}

// diagnoseLaunchFailure wraps a bwrap launch failure and logs a suggestion
// when the host looks misconfigured for unprivileged user namespaces (the
// suggestion is not part of the returned error), the same
// diagnostic the teacher's internal/build.usernsError performs for its own
// chroot/userns failures.
func (r *Runner) diagnoseLaunchFailure(err error) error {
	wrapped := xerrors.Errorf("runner: bwrap: %w", err)
	if suggestion := usernsSuggestion(); suggestion != "" {
		r.logger.Printf("%s", suggestion)
	}
	return wrapped
}

func usernsSuggestion() string {
	var fixes []string
	if v, ok := readTrimmed("/proc/sys/kernel/unprivileged_userns_clone"); ok && v != "1" {
		fixes = append(fixes, "sysctl -w kernel.unprivileged_userns_clone=1")
	}
	if v, ok := readTrimmed("/proc/sys/user/max_user_namespaces"); ok && v == "0" {
		fixes = append(fixes, "sysctl -w user.max_user_namespaces=1000")
	}
	if len(fixes) == 0 {
		return ""
	}
	suggestion := strings.Join(fixes, "\n")

	if cgroup, ok := readTrimmed("/proc/1/cgroup"); ok && strings.Contains(cgroup, "docker") {
		return "On your Docker host (not in the container), try:\n" + suggestion
	}
	return "try:\n" + suggestion
}

func readTrimmed(path string) (string, bool) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(b)), true
}
