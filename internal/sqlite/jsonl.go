package sqlite

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxLineSize bounds one JSONL record; entity content can be long.
const maxLineSize = 16 << 20

// scanJSONL calls fn with each non-blank line of path. Lines that are not
// valid JSON are skipped and counted in malformed. The slice passed to fn is
// reused between calls.
func scanJSONL(path string, fn func(line []byte) error) (malformed int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		switch {
		case len(line) == 0:
		case !json.Valid(line):
			malformed++
		default:
			if err := fn(line); err != nil {
				return malformed, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return malformed, fmt.Errorf("scanning %s: %w", path, err)
	}
	return malformed, nil
}

// writeAtomic replaces path with whatever write produces. The data goes to a
// temp file in the same directory and is synced before the rename, so path
// never holds a partial file.
func writeAtomic(path string, write func(w *bufio.Writer) error) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".export-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := write(w); err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming into %s: %w", path, err)
	}
	return nil
}

// encodeLines writes each value as one compact JSON line.
func encodeLines[T any](values []T) func(w *bufio.Writer) error {
	return func(w *bufio.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, v := range values {
			if err := enc.Encode(v); err != nil {
				return fmt.Errorf("encoding record: %w", err)
			}
		}
		return nil
	}
}
