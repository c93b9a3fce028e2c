package namegen

import (
	"path/filepath"
	"testing"

	"github.com/google/renameio"
	"github.com/klauspost/compress/gzip"
)

func writeCachedWordlist(t *testing.T, path string, words []string) {
	t.Helper()
	content := ""
	for i, w := range words {
		content += "0x" + string(rune('0'+i%10)) + "\t" + w + "\n"
	}
	buf := &byteWriter{}
	gz := gzip.NewWriter(buf)
	if _, err := gz.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := renameio.WriteFile(path, buf.data, 0644); err != nil {
		t.Fatal(err)
	}
}

type byteWriter struct{ data []byte }

func (b *byteWriter) Write(p []byte) (int, error) {
	b.data = append(b.data, p...)
	return len(p), nil
}

func TestEffWordsFilteredByLengthAndCase(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "wordlist.txt")
	writeCachedWordlist(t, cache, []string{"ok", "short", "waytoolongforalimit", "Mixed"})

	g := New(cache)
	seen := make(map[string]bool)
	g.effWords(func(w string) bool {
		seen[w] = true
		return true
	})

	if !seen["ok"] || !seen["short"] {
		t.Errorf("expected valid short lowercase words to be yielded, got %v", seen)
	}
	if seen["waytoolongforalimit"] {
		t.Error("words longer than 10 characters must be filtered out")
	}
	if seen["Mixed"] {
		t.Error("non-lowercase words must be filtered out")
	}
}

func TestCandidatesStopsAtFirstYieldFalse(t *testing.T) {
	cache := filepath.Join(t.TempDir(), "wordlist.txt")
	writeCachedWordlist(t, cache, []string{"alpha", "beta", "gamma"})

	g := New(cache)
	var got []string
	g.Candidates(func(name string) bool {
		got = append(got, name)
		return false
	})
	if len(got) != 1 {
		t.Fatalf("expected exactly one candidate before stopping, got %v", got)
	}
}

func TestRandomShortYields20SixLetterNames(t *testing.T) {
	g := New(filepath.Join(t.TempDir(), "unused.txt"))
	var got []string
	g.randomShort(func(name string) bool {
		got = append(got, name)
		return true
	})
	if len(got) != 20 {
		t.Fatalf("expected 20 candidates, got %d", len(got))
	}
	for _, name := range got {
		if len(name) != 6 {
			t.Errorf("randomShort candidate %q should be 6 letters", name)
		}
		for _, r := range name {
			if r < 'a' || r > 'z' {
				t.Errorf("randomShort candidate %q must be lowercase letters only", name)
			}
		}
	}
}

func TestRandomLettersLength(t *testing.T) {
	g := New(filepath.Join(t.TempDir(), "unused.txt"))
	got := g.randomLetters(32)
	if len(got) != 32 {
		t.Errorf("randomLetters(32) returned length %d", len(got))
	}
}

func TestIsShortLowerAlpha(t *testing.T) {
	cases := map[string]bool{
		"hello":   true,
		"":        false,
		"toolong": false,
		"Hello":   false,
		"he11o":   false,
	}
	for word, want := range cases {
		if got := isShortLowerAlpha(word, 6); got != want {
			t.Errorf("isShortLowerAlpha(%q, 6) = %v, want %v", word, got, want)
		}
	}
}
