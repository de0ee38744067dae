// Package persistence writes run records to disk. Gob files are the engine's
// own state; JSON files are the interchange read by plotting and analysis
// tools. Writes go to a temporary file that is renamed into place, so a crash
// never leaves a truncated record behind.
package persistence

import (
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const dirPerm = 0750

// writeAtomic creates filePath's directory and writes it through encode.
func writeAtomic(filePath string, encode func(w io.Writer) error) (err error) {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(filePath)+".*")
	if err != nil {
		return fmt.Errorf("failed to create file in %s: %w", dir, err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if err := encode(tmp); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to encode %s: %w", filePath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return fmt.Errorf("failed to move %s into place: %w", filePath, err)
	}
	return nil
}

// readFile opens filePath and decodes it. A missing file yields
// os.ErrNotExist so callers can treat it as a fresh start.
func readFile(filePath string, decode func(r io.Reader) error) (err error) {
	file, err := os.Open(filePath) // #nosec G304 -- filePath is built by the engine, not taken from requests
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return os.ErrNotExist
		}
		return fmt.Errorf("failed to open file %s: %w", filePath, err)
	}
	defer func() {
		if closeErr := file.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("failed to close file %s: %w", filePath, closeErr)
		}
	}()

	if err := decode(file); err != nil {
		return fmt.Errorf("failed to decode file %s: %w", filePath, err)
	}
	return nil
}

// SaveGob encodes object with gob into filePath.
func SaveGob(filePath string, object any) error {
	return writeAtomic(filePath, func(w io.Writer) error {
		return gob.NewEncoder(w).Encode(object)
	})
}

// LoadGob decodes a gob file into objectPointer.
func LoadGob(filePath string, objectPointer any) error {
	return readFile(filePath, func(r io.Reader) error {
		return gob.NewDecoder(r).Decode(objectPointer)
	})
}

// SaveJSON writes object as indented JSON into filePath.
func SaveJSON(filePath string, object any) error {
	return writeAtomic(filePath, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(object)
	})
}

// LoadJSON decodes a JSON file into objectPointer.
func LoadJSON(filePath string, objectPointer any) error {
	return readFile(filePath, func(r io.Reader) error {
		return json.NewDecoder(r).Decode(objectPointer)
	})
}
