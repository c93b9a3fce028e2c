package runner

import (
	"os"
	"strconv"
)

// argvBuilder assembles a bwrap argv imperatively, rather than from nested
// literal slices (the teacher's Python source builds its bwrap invocation
// from a deeply nested literal passed through a `flatten` helper; per
// SPEC_FULL.md §4.6 this is treated as an artifact of the source language,
// not a requirement). File-descriptor-based flags (--file, --seccomp) track
// the *os.File values they need passed down in cmd.ExtraFiles, and translate
// them to the fd number the child will see (3 + index, since Go dup2s
// ExtraFiles starting at fd 3).
type argvBuilder struct {
	args       []string
	extraFiles []*os.File
}

func (b *argvBuilder) push(args ...string) {
	b.args = append(b.args, args...)
}

func (b *argvBuilder) Flag(name string) {
	b.push(name)
}

func (b *argvBuilder) ROBindTry(path string) {
	b.push("--ro-bind-try", path, path)
}

func (b *argvBuilder) Bind(src, dst string) {
	b.push("--bind", src, dst)
}

func (b *argvBuilder) Symlink(target, link string) {
	b.push("--symlink", target, link)
}

func (b *argvBuilder) Dir(path string) {
	b.push("--dir", path)
}

func (b *argvBuilder) Tmpfs(path string) {
	b.push("--tmpfs", path)
}

func (b *argvBuilder) Proc(path string) {
	b.push("--proc", path)
}

func (b *argvBuilder) Dev(path string) {
	b.push("--dev", path)
}

func (b *argvBuilder) Hostname(name string) {
	b.push("--hostname", name)
}

func (b *argvBuilder) Chdir(path string) {
	b.push("--chdir", path)
}

func (b *argvBuilder) DieWithParent() {
	b.push("--die-with-parent")
}

// File passes f to the child and bind-mounts its read end at dst, as used for
// both the seed archive pipe and the seccomp filter.
func (b *argvBuilder) File(flag string, f *os.File, dst string) {
	idx := len(b.extraFiles)
	b.extraFiles = append(b.extraFiles, f)
	b.push(flag, strconv.Itoa(3+idx), dst)
}

// Seccomp passes f (an open seccomp BPF program file) to the child.
func (b *argvBuilder) Seccomp(f *os.File) {
	idx := len(b.extraFiles)
	b.extraFiles = append(b.extraFiles, f)
	b.push("--seccomp", strconv.Itoa(3+idx))
}

// Separator appends the "--" that ends bwrap's own flags and begins the
// command to run inside the sandbox.
func (b *argvBuilder) Separator() {
	b.push("--")
}

func (b *argvBuilder) Command(words ...string) {
	b.push(words...)
}
