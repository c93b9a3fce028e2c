package main

import "errors"

// runPerName applies op to every name independently, continuing past a
// failure on one name rather than aborting the rest, and returns an
// aggregate error (nil if every name succeeded) so the process still exits
// nonzero when any name failed. Per SPEC_FULL.md §7: "No partial success
// reported for multi-name purge/reset: each name is processed independently;
// a failure on one does not skip the others."
func runPerName(names []string, op func(name string) error) error {
	var errs []error
	for _, name := range names {
		if err := op(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
