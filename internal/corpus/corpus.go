// Package corpus loads the text a layout is scored against.
package corpus

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
)

// Load reads a UTF-8 corpus. Files ending in .zst are decompressed first.
func Load(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() {
		if cerr := file.Close(); cerr != nil {
			// Best-effort close for read-only corpus.
			_ = cerr
		}
	}()

	var r io.Reader = file
	if IsCompressed(path) {
		decoder, err := zstd.NewReader(file)
		if err != nil {
			return "", fmt.Errorf("create zstd decoder: %w", err)
		}
		defer decoder.Close()
		r = decoder
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read corpus %s: %w", path, err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("corpus %s is not valid UTF-8", path)
	}
	return string(data), nil
}

// IsCompressed reports whether path names a zstd corpus.
func IsCompressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".zst")
}

// Save writes text to path, compressing it when path ends in .zst.
func Save(path, text string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create corpus: %w", err)
	}

	if !IsCompressed(path) {
		if _, err := io.WriteString(file, text); err != nil {
			_ = file.Close()
			return fmt.Errorf("write corpus: %w", err)
		}
		return file.Close()
	}

	encoder, err := zstd.NewWriter(file)
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("create zstd encoder: %w", err)
	}
	if _, err := io.WriteString(encoder, text); err != nil {
		encoder.Close()
		_ = file.Close()
		return fmt.Errorf("compress: %w", err)
	}
	if err := encoder.Close(); err != nil {
		_ = file.Close()
		return fmt.Errorf("finalize compression: %w", err)
	}
	return file.Close()
}
