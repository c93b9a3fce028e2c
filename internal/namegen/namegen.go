// Package namegen produces candidate names for temporary environments, in
// the priority order described in SPEC_FULL.md §4.8: the EFF short word
// list, the system dictionary, then two random-letter fallbacks.
package namegen

import (
	"bufio"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/renameio"
	"github.com/klauspost/compress/gzip"
	"github.com/orcaman/writerseeker"
	"golang.org/x/xerrors"
)

const effWordlistURL = "https://www.eff.org/files/2016/09/08/eff_short_wordlist_1.txt"

const (
	systemDictPath = "/usr/share/dict/words"
	letters        = "abcdefghijklmnopqrstuvwxyz"
)

// Generator yields candidate environment names, consumed lazily by a caller
// that stops at the first name not already in use.
type Generator struct {
	cachePath string
	client    *http.Client
	rng       *rand.Rand
}

// New returns a Generator that caches the EFF word list at cachePath.
func New(cachePath string) *Generator {
	return &Generator{
		cachePath: cachePath,
		client:    &http.Client{Timeout: 30 * time.Second},
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Candidates sends up to the §4.8 candidate budget from every source, in
// order, to yield. yield returning false stops generation early (the caller
// found a free name).
func (g *Generator) Candidates(yield func(string) bool) {
	if g.effWords(yield) {
		return
	}
	if g.systemDictWords(yield) {
		return
	}
	if g.randomShort(yield) {
		return
	}
	yield(g.randomLetters(32))
}

// effWords emits up to 200 words from the cached (or freshly fetched) EFF
// short word list, filtered to length <= 10, lowercase, alphabetic. Returns
// true if yield asked to stop.
func (g *Generator) effWords(yield func(string) bool) bool {
	words, err := g.effWordlist()
	if err != nil || len(words) == 0 {
		return false
	}
	for i := 0; i < 200; i++ {
		word := words[g.rng.Intn(len(words))]
		if isShortLowerAlpha(word, 10) {
			if !yield(word) {
				return true
			}
		}
	}
	return false
}

// effWordlist returns the cached word list, fetching and caching it if
// absent.
func (g *Generator) effWordlist() ([]string, error) {
	if words, err := g.readCachedWordlist(); err == nil {
		return words, nil
	}
	contents, err := g.fetchWordlist()
	if err != nil {
		return nil, err
	}
	if err := g.cacheWordlist(contents); err != nil {
		return nil, err
	}
	return parseWordlist(contents), nil
}

func (g *Generator) readCachedWordlist() ([]string, error) {
	f, err := os.Open(g.cachePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()
	contents, err := io.ReadAll(gz)
	if err != nil {
		return nil, err
	}
	return parseWordlist(string(contents)), nil
}

// fetchWordlist downloads the word list into an in-memory WriterSeeker so a
// short read (the HTTP body closing early) can be detected and retried once
// before anything touches disk.
func (g *Generator) fetchWordlist() (string, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		contents, err := g.fetchWordlistOnce()
		if err == nil {
			return contents, nil
		}
		lastErr = err
	}
	return "", xerrors.Errorf("namegen: fetching %s: %w", effWordlistURL, lastErr)
}

func (g *Generator) fetchWordlistOnce() (string, error) {
	resp, err := g.client.Get(effWordlistURL)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", xerrors.Errorf("unexpected status %s", resp.Status)
	}

	var buf writerseeker.WriterSeeker
	n, err := io.Copy(&buf, resp.Body)
	if err != nil {
		return "", err
	}
	if resp.ContentLength > 0 && n != resp.ContentLength {
		return "", xerrors.Errorf("short read: got %d bytes, want %d", n, resp.ContentLength)
	}

	r := buf.Reader()
	contents, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	return string(contents), nil
}

func (g *Generator) cacheWordlist(contents string) error {
	var buf strings.Builder
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write([]byte(contents)); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	return renameio.WriteFile(g.cachePath, []byte(buf.String()), 0644)
}

func parseWordlist(contents string) []string {
	var words []string
	for _, line := range strings.Split(contents, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		words = append(words, fields[1])
	}
	return words
}

// systemDictWords emits up to 200 words from /usr/share/dict/words, filtered
// to length <= 6, lowercase, alphabetic.
func (g *Generator) systemDictWords(yield func(string) bool) bool {
	f, err := os.Open(systemDictPath)
	if err != nil {
		return false
	}
	defer f.Close()

	var words []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		words = append(words, strings.TrimSpace(scanner.Text()))
	}
	if len(words) == 0 {
		return false
	}

	for i := 0; i < 200; i++ {
		word := words[g.rng.Intn(len(words))]
		if isShortLowerAlpha(word, 6) {
			if !yield(word) {
				return true
			}
		}
	}
	return false
}

// randomShort emits 20 random 6-letter strings.
func (g *Generator) randomShort(yield func(string) bool) bool {
	for i := 0; i < 20; i++ {
		if !yield(g.randomLetters(6)) {
			return true
		}
	}
	return false
}

func (g *Generator) randomLetters(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = letters[g.rng.Intn(len(letters))]
	}
	return string(b)
}

func isShortLowerAlpha(word string, maxLen int) bool {
	if word == "" || len(word) > maxLen {
		return false
	}
	for _, r := range word {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
