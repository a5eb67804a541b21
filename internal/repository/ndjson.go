package repository

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// maxLine bounds a single NDJSON record.
const maxLine = 4 << 20

// ReadNDJSON decodes one T per non-empty line. Lines that fail to decode are
// skipped and counted; the caller reports them.
func ReadNDJSON[T any](r io.Reader) ([]T, int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64<<10), maxLine)

	var (
		out     []T
		skipped int
	)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			skipped++
			continue
		}
		out = append(out, v)
	}
	if err := sc.Err(); err != nil {
		return out, skipped, fmt.Errorf("read ndjson: %w", err)
	}
	return out, skipped, nil
}

// WriteNDJSON encodes items one per line.
func WriteNDJSON[T any](w io.Writer, items []T) error {
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return fmt.Errorf("write ndjson: %w", err)
		}
	}
	return bw.Flush()
}

// ReadNDJSONFile reads path, or stdin when path is "-".
func ReadNDJSONFile[T any](path string) ([]T, int, error) {
	if path == "-" {
		return ReadNDJSON[T](os.Stdin)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadNDJSON[T](f)
}

// WriteNDJSONFile writes path, or stdout when path is "-" or empty.
func WriteNDJSONFile[T any](path string, items []T) error {
	if path == "" || path == "-" {
		return WriteNDJSON(os.Stdout, items)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteNDJSON(f, items); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
