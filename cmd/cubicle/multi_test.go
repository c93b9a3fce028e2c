package main

import (
	"errors"
	"testing"
)

func TestRunPerNameContinuesPastFailures(t *testing.T) {
	var called []string
	err := runPerName([]string{"a", "b", "c"}, func(name string) error {
		called = append(called, name)
		if name == "a" {
			return errors.New("boom")
		}
		return nil
	})

	want := []string{"a", "b", "c"}
	if len(called) != len(want) {
		t.Fatalf("op called for %v, want %v (a failure must not skip the rest)", called, want)
	}
	for i, name := range want {
		if called[i] != name {
			t.Fatalf("op called for %v, want %v", called, want)
		}
	}
	if err == nil {
		t.Fatal("expected a non-nil aggregate error when one name failed")
	}
}

func TestRunPerNameAllSucceedReturnsNil(t *testing.T) {
	err := runPerName([]string{"a", "b"}, func(name string) error { return nil })
	if err != nil {
		t.Fatalf("expected nil error when every name succeeds, got %v", err)
	}
}

func TestRunPerNameAggregatesEveryFailure(t *testing.T) {
	err := runPerName([]string{"a", "b", "c"}, func(name string) error {
		if name == "b" {
			return nil
		}
		return errors.New(name + " failed")
	})
	if err == nil {
		t.Fatal("expected a non-nil aggregate error")
	}
	for _, want := range []string{"a failed", "c failed"} {
		if !errorsContains(err, want) {
			t.Errorf("aggregate error %q missing %q", err, want)
		}
	}
}

func errorsContains(err error, substr string) bool {
	return err != nil && (func() bool {
		for _, e := range unwrapJoined(err) {
			if e.Error() == substr {
				return true
			}
		}
		return false
	})()
}

func unwrapJoined(err error) []error {
	type multiError interface{ Unwrap() []error }
	if m, ok := err.(multiError); ok {
		return m.Unwrap()
	}
	return []error{err}
}
