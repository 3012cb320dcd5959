package corpus

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func fixstr(s string) []byte {
	return append([]byte{0xa0 | byte(len(s))}, s...)
}

func fixarray(items ...[]byte) []byte {
	out := []byte{0x90 | byte(len(items))}
	for _, item := range items {
		out = append(out, item...)
	}
	return out
}

// cBpack builds a wordfreq data file: a header followed by frequency bins.
func cBpack(bins ...[]string) []byte {
	header := []byte{0x82}
	header = append(header, fixstr("format")...)
	header = append(header, fixstr("cB")...)
	header = append(header, fixstr("version")...)
	header = append(header, 0x01)

	items := [][]byte{header}
	for _, bin := range bins {
		words := make([][]byte, len(bin))
		for i, w := range bin {
			words[i] = fixstr(w)
		}
		items = append(items, fixarray(words...))
	}
	return fixarray(items...)
}

func gzipped(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write(data); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	return buf.Bytes()
}

func writeWheel(t *testing.T, path string, files map[string][]byte) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wheel: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, data := range files {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("zip create %s: %v", name, err)
		}
		if _, err := w.Write(data); err != nil {
			t.Fatalf("zip write %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close wheel: %v", err)
	}
}

func testWheel(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "wordfreq-3.1.1-py3-none-any.whl")
	writeWheel(t, path, map[string][]byte{
		"wordfreq/data/small_en.msgpack.gz": gzipped(t, cBpack(
			[]string{"the", "a"},
			[]string{"of", "the", "x1"},
			[]string{"and", "größe"},
		)),
		"wordfreq/data/large_en.msgpack.gz":    gzipped(t, cBpack([]string{"the"})),
		"wordfreq/data/large_de.msgpack.gz":    gzipped(t, cBpack([]string{"der"})),
		"wordfreq/data/jieba_zh.txt":           []byte("ignored"),
		"wordfreq-3.1.1.dist-info/LICENSE.txt": []byte("Apache License"),
		"wordfreq-3.1.1.dist-info/METADATA":    []byte("Name: wordfreq"),
	})
	return path
}

func TestDecodeMsgpackFrequencyBins(t *testing.T) {
	root, err := decodeMsgpack(bytes.NewReader(cBpack([]string{"the", "a"}, []string{"of"})))
	if err != nil {
		t.Fatalf("decodeMsgpack: %v", err)
	}
	bins, err := frequencyBins(root)
	if err != nil {
		t.Fatalf("frequencyBins: %v", err)
	}
	want := [][]any{{"the", "a"}, {"of"}}
	if !reflect.DeepEqual(bins, want) {
		t.Fatalf("expected %v, got %v", want, bins)
	}

	header := append([]byte{0x81}, fixstr("format")...)
	header = append(header, fixstr("zz")...)
	root, err = decodeMsgpack(bytes.NewReader(fixarray(header, fixarray(fixstr("the")))))
	if err != nil {
		t.Fatalf("decodeMsgpack: %v", err)
	}
	if _, err := frequencyBins(root); err == nil || !strings.Contains(err.Error(), "zz") {
		t.Fatalf("expected an unsupported format error, got %v", err)
	}
}

func TestDecodeMsgpackOversizedLength(t *testing.T) {
	// bin32 header claiming 1 GiB with no payload behind it.
	data := []byte{0xc6, 0x40, 0x00, 0x00, 0x00}

	var before, after runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&before)
	_, err := decodeMsgpack(bytes.NewReader(data))
	runtime.ReadMemStats(&after)

	if err == nil {
		t.Fatalf("expected an error for a truncated bin32 payload")
	}
	if grown := after.TotalAlloc - before.TotalAlloc; grown > 64<<20 {
		t.Fatalf("decoder allocated %d bytes for a 5-byte input", grown)
	}
}

func TestDecodeMsgpackTruncated(t *testing.T) {
	if _, err := decodeMsgpack(bytes.NewReader([]byte{0x92, 0xa3, 'a'})); err == nil {
		t.Fatalf("expected an error for truncated input")
	}
}

func TestListWordLists(t *testing.T) {
	lists, err := ListWordLists(testWheel(t))
	if err != nil {
		t.Fatalf("ListWordLists: %v", err)
	}
	if got := lists.Languages(); !reflect.DeepEqual(got, []string{"de", "en"}) {
		t.Fatalf("unexpected languages %v", got)
	}
	if !reflect.DeepEqual(lists["en"], []string{"large", "small"}) {
		t.Fatalf("unexpected en sizes %v", lists["en"])
	}
	if !lists.Has("de", "large") || lists.Has("de", "small") {
		t.Fatalf("unexpected de sizes %v", lists["de"])
	}
}

func TestExtractWordsKeepsFrequencyOrder(t *testing.T) {
	wheel := testWheel(t)
	words, err := ExtractWords(wheel, "en", "small", 10)
	if err != nil {
		t.Fatalf("ExtractWords: %v", err)
	}
	if want := []string{"the", "of", "and", "größe"}; !reflect.DeepEqual(words, want) {
		t.Fatalf("expected %v, got %v", want, words)
	}

	words, err = ExtractWords(wheel, "EN", "small", 2)
	if err != nil {
		t.Fatalf("ExtractWords: %v", err)
	}
	if !reflect.DeepEqual(words, []string{"the", "of"}) {
		t.Fatalf("unexpected limited words %v", words)
	}

	if _, err := ExtractWords(wheel, "fr", "small", 10); err == nil {
		t.Fatalf("expected an error for a missing language")
	}
}

func TestWriteWordsAndAttribution(t *testing.T) {
	wheel := testWheel(t)
	dir := filepath.Join(t.TempDir(), "wordlists")
	dest := filepath.Join(dir, "en.txt")
	if err := WriteWords(dest, []string{"the", "of"}); err != nil {
		t.Fatalf("WriteWords: %v", err)
	}
	words, err := LoadWords(dest)
	if err != nil {
		t.Fatalf("LoadWords: %v", err)
	}
	if !reflect.DeepEqual(words, []string{"the", "of"}) {
		t.Fatalf("unexpected words %v", words)
	}

	if err := WriteAttribution(wheel, dir); err != nil {
		t.Fatalf("WriteAttribution: %v", err)
	}
	license, err := os.ReadFile(filepath.Join(dir, "LICENSE.txt"))
	if err != nil || string(license) != "Apache License" {
		t.Fatalf("unexpected license %q, %v", license, err)
	}
	attribution, err := os.ReadFile(filepath.Join(dir, "ATTRIBUTION.txt"))
	if err != nil || !strings.Contains(string(attribution), "CC BY-SA 4.0") {
		t.Fatalf("unexpected attribution %q, %v", attribution, err)
	}
}

func TestFetchWheelCaches(t *testing.T) {
	wheel, err := os.ReadFile(testWheel(t))
	if err != nil {
		t.Fatalf("read wheel: %v", err)
	}
	downloads := 0
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mux.HandleFunc("/pypi/wordfreq/json", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprintf(w, `{"info":{"version":"3.1.1"},"urls":[
			{"packagetype":"sdist","filename":"wordfreq-3.1.1.tar.gz","url":"%[1]s/sdist"},
			{"packagetype":"bdist_wheel","filename":"wordfreq-3.1.1-py3-none-any.whl","url":"%[1]s/wheel"}]}`, srv.URL)
	})
	mux.HandleFunc("/wheel", func(w http.ResponseWriter, _ *http.Request) {
		downloads++
		_, _ = w.Write(wheel)
	})

	cache := t.TempDir()
	ctx := context.Background()
	first, err := FetchWheel(ctx, srv.Client(), srv.URL+"/pypi/wordfreq/json", cache)
	if err != nil {
		t.Fatalf("FetchWheel: %v", err)
	}
	if first.Cached || first.Version != "3.1.1" {
		t.Fatalf("unexpected first fetch %+v", first)
	}
	if first.Path != filepath.Join(cache, "wordfreq-3.1.1-py3-none-any.whl") {
		t.Fatalf("unexpected wheel path %s", first.Path)
	}
	if _, err := ListWordLists(first.Path); err != nil {
		t.Fatalf("downloaded wheel unreadable: %v", err)
	}

	second, err := FetchWheel(ctx, srv.Client(), srv.URL+"/pypi/wordfreq/json", cache)
	if err != nil {
		t.Fatalf("FetchWheel: %v", err)
	}
	if !second.Cached || downloads != 1 {
		t.Fatalf("expected the cached wheel, got %+v after %d downloads", second, downloads)
	}
}

func TestFetchWheelReportsStatus(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	t.Cleanup(srv.Close)
	_, err := FetchWheel(context.Background(), srv.Client(), srv.URL, t.TempDir())
	if err == nil || !strings.Contains(err.Error(), "404") {
		t.Fatalf("expected a 404 error, got %v", err)
	}
}
