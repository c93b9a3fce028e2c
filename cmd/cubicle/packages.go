package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/xerrors"

	"github.com/snev68/cubicle/internal/diskusage"
	"github.com/snev68/cubicle/internal/freshness"
)

type packageInfo struct {
	Dir     string   `json:"dir"`
	Origin  string   `json:"origin"`
	Depends []string `json:"depends"`
	Mtime   int64    `json:"mtime"`
}

// cmdPackages implements the --format {default,json,names} registry listing
// per §6, dimming stale buildable packages in the default format when stdout
// is a terminal.
func cmdPackages(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("packages", flag.ExitOnError)
	format := fs.String("format", "default", "output format: default, json, or names")
	fs.Parse(args)

	if fs.NArg() != 0 {
		return xerrors.New("usage: cubicle packages [-format {default,json,names}]")
	}
	if err := validateFormat(*format); err != nil {
		return err
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	names := a.registry.Names()

	if *format == "names" {
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}

	oracle := freshness.New(a.layout.HomeDirs)
	infos := make(map[string]packageInfo, len(names))
	stale := make(map[string]bool, len(names))
	for _, name := range names {
		pkg, _ := a.registry.Get(name)
		result, err := diskusage.Probe(ctx, pkg.SourceDir)
		var mtime int64
		if err == nil {
			mtime = result.Mtime.Unix()
		}
		infos[name] = packageInfo{
			Dir:     pkg.SourceDir,
			Origin:  pkg.Origin,
			Depends: pkg.SortedDepends(),
			Mtime:   mtime,
		}
		if pkg.Buildable() {
			deps, err := a.registry.TransitiveDepends([]string{name})
			if err == nil {
				isStale, err := oracle.Stale(ctx, a.registry, pkg, deps, time.Now())
				stale[name] = err == nil && isStale
			}
		}
	}

	if *format == "json" {
		enc, err := json.MarshalIndent(infos, "", "    ")
		if err != nil {
			return xerrors.Errorf("packages: %w", err)
		}
		fmt.Println(string(enc))
		return nil
	}

	printPackageTable(names, infos, stale)
	return nil
}

func printPackageTable(names []string, infos map[string]packageInfo, stale map[string]bool) {
	sorted := append([]string{}, names...)
	sort.Strings(sorted)

	nw := 10
	for _, name := range sorted {
		if len(name) > nw {
			nw = len(name)
		}
	}

	dim := stdoutIsTerminal()

	fmt.Printf("%-*s  %-8s  %13s  %-20s\n", nw, "name", "origin", "modified", "dependencies")
	fmt.Printf("%s  %s  %s  %s\n", dashes(nw), dashes(8), dashes(13), dashes(20))
	now := time.Now()
	for _, name := range sorted {
		info := infos[name]
		modified := "N/A"
		if info.Mtime != 0 {
			modified = relTime(now.Sub(time.Unix(info.Mtime, 0)).Seconds())
		}
		line := fmt.Sprintf("%-*s  %-8s  %13s  %-20s", nw, name, info.Origin, modified, strings.Join(info.Depends, ","))
		if dim && stale[name] {
			line = "\x1b[2m" + line + "\x1b[0m"
		}
		fmt.Println(line)
	}
}
