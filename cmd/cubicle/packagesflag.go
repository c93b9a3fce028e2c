package main

import (
	"flag"
	"sort"
	"strings"

	"golang.org/x/xerrors"

	"github.com/snev68/cubicle/internal/registry"
)

// packagesFlag parses the shared --packages flag: "none" for an empty set,
// else a comma-separated package name list, always augmented with "auto".
type packagesFlag struct {
	raw string
}

func (f *packagesFlag) register(fs *flag.FlagSet, defaultValue string) {
	fs.StringVar(&f.raw, "packages", defaultValue, `comma-separated package names, or "none"`)
}

// resolve validates f's value against reg and returns the sorted, auto-augmented
// package list.
func (f *packagesFlag) resolve(reg *registry.Registry) ([]string, error) {
	if f.raw == "" {
		return nil, nil
	}
	if f.raw == "none" {
		return []string{"auto"}, nil
	}
	names := strings.Split(f.raw, ",")
	seen := map[string]struct{}{"auto": {}}
	out := []string{"auto"}
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n == "" {
			continue
		}
		if _, ok := reg.Get(n); !ok {
			return nil, xerrors.Errorf("unknown package %q (known packages: %s)", n, strings.Join(reg.Names(), ", "))
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return out, nil
}
