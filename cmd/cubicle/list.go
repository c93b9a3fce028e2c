package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/mattn/go-isatty"
	"golang.org/x/xerrors"

	"github.com/snev68/cubicle/internal/diskusage"
)

type dirUsage struct {
	Dir      string    `json:"dir"`
	Size     int64     `json:"size"`
	Mtime    time.Time `json:"mtime"`
	DuError  bool      `json:"du_error"`
	hasUsage bool
}

type environmentInfo struct {
	WorkDir *dirUsage `json:"work_dir,omitempty"`
	HomeDir *dirUsage `json:"home_dir,omitempty"`
}

// cmdList implements the --format {default,json,names} environment listing
// over work_dirs and home_dirs, per §6.
func cmdList(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	format := fs.String("format", "default", "output format: default, json, or names")
	fs.Parse(args)

	if fs.NArg() != 0 {
		return xerrors.New("usage: cubicle list [-format {default,json,names}]")
	}
	if err := validateFormat(*format); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}

	if *format == "names" {
		for _, name := range listSubdirNames(a.layout.WorkDirs) {
			fmt.Println(name)
		}
		return nil
	}

	envs := make(map[string]*environmentInfo)
	for _, name := range listSubdirNames(a.layout.WorkDirs) {
		envs[name] = &environmentInfo{}
	}
	for _, name := range listSubdirNames(a.layout.HomeDirs) {
		if _, ok := envs[name]; !ok {
			envs[name] = &environmentInfo{}
		}
	}

	for name, env := range envs {
		env.WorkDir = probeOrNil(ctx, a.layout.EnvironmentWork(name))
		env.HomeDir = probeOrNil(ctx, a.layout.EnvironmentHome(name))
	}

	if *format == "json" {
		enc, err := json.MarshalIndent(envs, "", "    ")
		if err != nil {
			return xerrors.Errorf("list: %w", err)
		}
		fmt.Println(string(enc))
		return nil
	}

	printEnvironmentTable(envs)
	return nil
}

func probeOrNil(ctx context.Context, dir string) *dirUsage {
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil
	}
	result, err := diskusage.Probe(ctx, dir)
	if err != nil {
		return &dirUsage{Dir: dir}
	}
	return &dirUsage{Dir: dir, Size: result.SizeBytes, Mtime: result.Mtime, DuError: result.Partial, hasUsage: true}
}

func printEnvironmentTable(envs map[string]*environmentInfo) {
	names := make([]string, 0, len(envs))
	for name := range envs {
		names = append(names, name)
	}
	sort.Strings(names)

	nw := 10
	for _, name := range names {
		if len(name) > nw {
			nw = len(name)
		}
	}

	fmt.Printf("%-*s | %-24s | %-24s\n", nw, "", center("home directory", 24), center("work directory", 24))
	fmt.Printf("%-*s | %10s %13s | %10s %13s\n", nw, "name", "size", "modified", "size", "modified")
	fmt.Printf("%s-+-%s-%s-+-%s-%s\n", dashes(nw), dashes(10), dashes(13), dashes(10), dashes(13))

	now := time.Now()
	for _, name := range names {
		env := envs[name]
		fmt.Printf("%-*s | %10s %13s | %10s %13s\n",
			nw, name,
			dirSize(env.HomeDir), dirModified(env.HomeDir, now),
			dirSize(env.WorkDir), dirModified(env.WorkDir, now))
	}
}

func dirSize(d *dirUsage) string {
	if d == nil || !d.hasUsage {
		return "N/A"
	}
	s := siBytes(d.Size)
	if d.DuError {
		s += "+"
	}
	return s
}

func dirModified(d *dirUsage, now time.Time) string {
	if d == nil || !d.hasUsage {
		return "N/A"
	}
	return relTime(now.Sub(d.Mtime).Seconds())
}

func listSubdirNames(dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names
}

func validateFormat(format string) error {
	switch format {
	case "default", "json", "names":
		return nil
	default:
		return xerrors.Errorf("unknown -format %q (want default, json, or names)", format)
	}
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	right := width - len(s) - left
	return fmt.Sprintf("%*s%s%*s", left, "", s, right, "")
}

func dashes(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '-'
	}
	return string(b)
}

// stdoutIsTerminal gates color/dimming decisions in the default-format
// listings, mirroring the teacher's use of go-isatty to pick output modes.
func stdoutIsTerminal() bool {
	return isatty.IsTerminal(os.Stdout.Fd())
}
