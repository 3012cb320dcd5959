package corpus

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/klauspost/compress/gzip"
	"github.com/tidwall/gjson"
	"github.com/vmihailenco/msgpack/v5"
)

// WordfreqIndexURL is the PyPI metadata endpoint for the wordfreq package.
const WordfreqIndexURL = "https://pypi.org/pypi/wordfreq/json"

const (
	wordfreqDataDir = "wordfreq/data/"
	minWordLength   = 2
	maxWordLength   = 20
)

// Wheel is a wordfreq wheel in the local cache.
type Wheel struct {
	Version string
	Path    string
	Cached  bool
}

// FetchWheel downloads the newest wordfreq wheel listed at indexURL into
// cacheDir. A wheel already in the cache is reused.
func FetchWheel(ctx context.Context, client *http.Client, indexURL, cacheDir string) (Wheel, error) {
	if cacheDir == "" {
		return Wheel{}, fmt.Errorf("cache directory is required")
	}
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return Wheel{}, fmt.Errorf("failed to create cache dir: %w", err)
	}

	body, err := open(ctx, client, indexURL)
	if err != nil {
		return Wheel{}, err
	}
	index, err := io.ReadAll(body)
	_ = body.Close()
	if err != nil {
		return Wheel{}, fmt.Errorf("failed to read package index: %w", err)
	}
	if !gjson.ValidBytes(index) {
		return Wheel{}, fmt.Errorf("invalid package index response")
	}
	doc := gjson.ParseBytes(index)
	version := doc.Get("info.version").String()
	if version == "" {
		return Wheel{}, fmt.Errorf("missing version in package index")
	}
	url, filename := pickWheel(doc.Get("urls"))
	if url == "" {
		return Wheel{}, fmt.Errorf("no wordfreq wheel in package index")
	}

	dest := filepath.Join(cacheDir, filename)
	if _, err := os.Stat(dest); err == nil {
		return Wheel{Version: version, Path: dest, Cached: true}, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return Wheel{}, fmt.Errorf("failed to stat cached wheel: %w", err)
	}

	wheel, err := open(ctx, client, url)
	if err != nil {
		return Wheel{}, err
	}
	defer func() {
		_ = wheel.Close()
	}()

	tmp, err := os.CreateTemp(cacheDir, "wordfreq-*.whl")
	if err != nil {
		return Wheel{}, fmt.Errorf("failed to create temp wheel: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}()
	if _, err := io.Copy(tmp, wheel); err != nil {
		return Wheel{}, fmt.Errorf("failed to download wheel: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return Wheel{}, fmt.Errorf("failed to close temp wheel: %w", err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		return Wheel{}, fmt.Errorf("failed to move wheel into cache: %w", err)
	}
	return Wheel{Version: version, Path: dest}, nil
}

func open(ctx context.Context, client *http.Client, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("unexpected status for %s: %s", url, resp.Status)
	}
	return resp.Body, nil
}

// pickWheel prefers the pure-python wheel and falls back to any wheel.
func pickWheel(urls gjson.Result) (string, string) {
	var url, filename string
	urls.ForEach(func(_, v gjson.Result) bool {
		if v.Get("packagetype").String() != "bdist_wheel" {
			return true
		}
		name := path.Base(v.Get("filename").String())
		if name == "." || name == "/" {
			return true
		}
		if url == "" || strings.HasSuffix(name, "py3-none-any.whl") {
			url, filename = v.Get("url").String(), name
		}
		return !strings.HasSuffix(name, "py3-none-any.whl")
	})
	return url, filename
}

// WordLists maps a language code to the list sizes ("small", "large")
// the wheel carries for it.
type WordLists map[string][]string

// Languages returns the language codes in order.
func (w WordLists) Languages() []string {
	out := make([]string, 0, len(w))
	for lang := range w {
		out = append(out, lang)
	}
	sort.Strings(out)
	return out
}

// Has reports whether the wheel carries a list of size for lang.
func (w WordLists) Has(lang, size string) bool {
	for _, s := range w[lang] {
		if s == size {
			return true
		}
	}
	return false
}

// ListWordLists returns the word lists available in a wordfreq wheel.
func ListWordLists(wheelPath string) (WordLists, error) {
	reader, err := zip.OpenReader(wheelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wheel: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	lists := make(WordLists)
	for _, file := range reader.File {
		size, lang, ok := parseDataName(file.Name)
		if !ok {
			continue
		}
		lists[lang] = append(lists[lang], size)
	}
	if len(lists) == 0 {
		return nil, fmt.Errorf("no word lists found in wheel")
	}
	for lang := range lists {
		sort.Strings(lists[lang])
	}
	return lists, nil
}

// parseDataName splits "wordfreq/data/large_en.msgpack.gz" into its size
// and language.
func parseDataName(name string) (string, string, bool) {
	if !strings.HasPrefix(name, wordfreqDataDir) || !strings.HasSuffix(name, ".msgpack.gz") {
		return "", "", false
	}
	base := strings.TrimSuffix(strings.TrimPrefix(name, wordfreqDataDir), ".msgpack.gz")
	size, lang, ok := strings.Cut(base, "_")
	if !ok || lang == "" || (size != "small" && size != "large") {
		return "", "", false
	}
	return size, lang, true
}

// ExtractWords returns up to limit of the most frequent alphabetic words
// of lang from the wheel, most frequent first.
func ExtractWords(wheelPath, lang, size string, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than 0")
	}
	reader, err := zip.OpenReader(wheelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open wheel: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()

	name := wordfreqDataDir + size + "_" + strings.ToLower(lang) + ".msgpack.gz"
	var data *zip.File
	for _, file := range reader.File {
		if file.Name == name {
			data = file
			break
		}
	}
	if data == nil {
		return nil, fmt.Errorf("no %s word list for %s", size, lang)
	}

	rc, err := data.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", name, err)
	}
	defer func() {
		_ = rc.Close()
	}()
	gz, err := gzip.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer func() {
		_ = gz.Close()
	}()
	root, err := decodeMsgpack(gz)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", name, err)
	}
	bins, err := frequencyBins(root)
	if err != nil {
		return nil, err
	}

	words := make([]string, 0, limit)
	seen := make(map[string]struct{})
	for _, bin := range bins {
		for _, item := range bin {
			word, ok := item.(string)
			if !ok || !wordfreqWord(word) {
				continue
			}
			if _, dup := seen[word]; dup {
				continue
			}
			seen[word] = struct{}{}
			words = append(words, word)
			if len(words) == limit {
				return words, nil
			}
		}
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("no words found for %s/%s", lang, size)
	}
	return words, nil
}

func decodeMsgpack(r io.Reader) (any, error) {
	return msgpack.NewDecoder(r).DecodeInterface()
}

// frequencyBins unpacks a cBpack document: a header map followed by lists
// of words, each list one centibel rarer than the one before.
func frequencyBins(root any) ([][]any, error) {
	items, ok := root.([]any)
	if !ok {
		return nil, fmt.Errorf("unexpected word list root %T", root)
	}
	if len(items) > 0 {
		var format any
		isHeader := true
		switch header := items[0].(type) {
		case map[string]any:
			format = header["format"]
		case map[any]any:
			format = header["format"]
		default:
			isHeader = false
		}
		if isHeader {
			if f, _ := format.(string); f != "" && f != "cB" {
				return nil, fmt.Errorf("unsupported word list format %q", f)
			}
			items = items[1:]
		}
	}
	bins := make([][]any, 0, len(items))
	for i, item := range items {
		bin, ok := item.([]any)
		if !ok {
			return nil, fmt.Errorf("unexpected frequency bin %d: %T", i, item)
		}
		bins = append(bins, bin)
	}
	return bins, nil
}

func wordfreqWord(word string) bool {
	n := utf8.RuneCountInString(word)
	if n < minWordLength || n > maxWordLength {
		return false
	}
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// WriteWords writes words one per line to path.
func WriteWords(dest string, words []string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create word list dir: %w", err)
	}
	return os.WriteFile(dest, []byte(strings.Join(words, "\n")+"\n"), 0o644)
}

// WriteAttribution writes the wordfreq attribution and the wheel's license
// next to extracted word lists.
func WriteAttribution(wheelPath, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output dir: %w", err)
	}
	attribution := strings.Join([]string{
		"Word lists generated from the wordfreq dataset.",
		"Source: https://github.com/rspeer/wordfreq",
		"Data license: Creative Commons Attribution-ShareAlike 4.0 International (CC BY-SA 4.0).",
		"https://creativecommons.org/licenses/by-sa/4.0/",
		"Changes were made: filtered to alphabetic words and truncated to the requested size.",
		"",
	}, "\n")
	if err := os.WriteFile(filepath.Join(dir, "ATTRIBUTION.txt"), []byte(attribution), 0o644); err != nil {
		return fmt.Errorf("failed to write attribution: %w", err)
	}

	reader, err := zip.OpenReader(wheelPath)
	if err != nil {
		return fmt.Errorf("failed to open wheel: %w", err)
	}
	defer func() {
		_ = reader.Close()
	}()
	for _, file := range reader.File {
		if !strings.Contains(strings.ToLower(path.Base(file.Name)), "license") {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			return fmt.Errorf("failed to open license: %w", err)
		}
		text, err := io.ReadAll(rc)
		_ = rc.Close()
		if err != nil {
			return fmt.Errorf("failed to read license: %w", err)
		}
		return os.WriteFile(filepath.Join(dir, "LICENSE.txt"), text, 0o644)
	}
	return fmt.Errorf("license file not found in wheel")
}
