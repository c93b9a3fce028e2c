package main

import (
	"context"
	"flag"
	"os"

	"golang.org/x/xerrors"

	"github.com/snev68/cubicle/internal/namegen"
)

// cmdTmp creates and enters a disposable environment under a name picked by
// namegen, retrying candidates until one is not already in use.
func cmdTmp(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tmp", flag.ExitOnError)
	var pkgs packagesFlag
	pkgs.register(fs, "default")
	fs.Parse(args)

	if fs.NArg() != 0 {
		return xerrors.New("usage: cubicle tmp [-packages list]")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	packages, err := pkgs.resolve(a.registry)
	if err != nil {
		return err
	}

	gen := namegen.New(a.layout.WordlistCache)

	var name string
	gen.Candidates(func(candidate string) bool {
		candidate = "tmp-" + candidate
		if environmentExists(a, candidate) {
			return true
		}
		name = candidate
		return false
	})
	if name == "" {
		return xerrors.New("cubicle: exhausted name candidates")
	}

	if err := a.manager.NewEnvironment(ctx, name, packages); err != nil {
		return err
	}
	return a.manager.Enter(ctx, name)
}

func environmentExists(a *app, name string) bool {
	for _, dir := range []string{a.layout.EnvironmentWork(name), a.layout.EnvironmentHome(name)} {
		if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
			return true
		}
	}
	return false
}
