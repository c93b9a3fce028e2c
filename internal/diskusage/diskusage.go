// Package diskusage wraps the external `du` disk-usage probe used to size
// and date environment directories and package source trees. It is
// deliberately a thin shell: du's own traversal and error tolerance is the
// external collaborator, not something this package reimplements.
package diskusage

import (
	"bytes"
	"context"
	"os/exec"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/xerrors"
)

// Result is the outcome of probing one directory tree.
type Result struct {
	// SizeBytes is the cumulative disk usage, in bytes (du's default, not
	// the apparent size).
	SizeBytes int64
	// Mtime is the most recent modification time anywhere in the tree.
	Mtime time.Time
	// Partial is true if du reported errors (typically permission denied)
	// while walking the tree; the result still reflects everything du could
	// read.
	Partial bool
}

var trailer = regexp.MustCompile(`(?m)^(?P<size>[^\t]+)\t(?P<mtime>[0-9]+)\ttotal$`)

// Probe shells out to `du -cs --block-size=1 --time --time-style=+%s path`
// and parses its summary trailer. A nonzero exit or stderr output from du is
// tolerated (it usually indicates a permission error on some subtree) as
// long as a parseable trailer was still produced on stdout; the complete
// absence of a trailer is a genuine external failure.
func Probe(ctx context.Context, path string) (Result, error) {
	cmd := exec.CommandContext(ctx, "du",
		"-cs", "--block-size=1", "--time", "--time-style=+%s", path)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	runErr := cmd.Run()

	m := trailer.FindStringSubmatch(stdout.String())
	if m == nil {
		if runErr != nil {
			return Result{}, xerrors.Errorf("du %s: %w", path, runErr)
		}
		return Result{}, xerrors.Errorf("du %s: unexpected output %q", path, stdout.String())
	}

	size, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return Result{}, xerrors.Errorf("du %s: parsing size: %w", path, err)
	}
	mtime, err := strconv.ParseInt(m[2], 10, 64)
	if err != nil {
		return Result{}, xerrors.Errorf("du %s: parsing mtime: %w", path, err)
	}

	return Result{
		SizeBytes: size,
		Mtime:     time.Unix(mtime, 0),
		Partial:   stderr.Len() > 0 || runErr != nil,
	}, nil
}
