// Package identifiers reads the flat identifier list that drives a pipeline run.
//
// The list is a plain text file with one identifier per line and no header or
// comments. Lines are returned exactly as written, minus their terminators:
// no case folding, no trimming, no blank-line filtering. A blank line becomes
// the empty identifier and is rejected later by the executor rather than
// silently dropped here.
package identifiers

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// ErrListNotFound indicates the identifier list does not exist.
var ErrListNotFound = fmt.Errorf("identifier list not found: %w", fs.ErrNotExist)

// maxLineLength bounds a single identifier line.
const maxLineLength = 1 << 20

// FileSource reads identifiers from a file on disk.
type FileSource struct {
	// Path is the location of the identifier list.
	Path string
}

// NewFileSource creates a source for the list at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Read returns the identifiers in file order.
func (s *FileSource) Read() ([]string, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", s.Path, ErrListNotFound)
		}
		return nil, fmt.Errorf("failed to open identifier list: %w", err)
	}
	defer f.Close()

	ids, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read identifier list %s: %w", s.Path, err)
	}
	return ids, nil
}

// Parse splits r into identifiers, one per line. Both "\n" and "\r\n"
// terminators are stripped; a final line without a terminator is kept.
func Parse(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), maxLineLength)

	ids := make([]string, 0)
	for scanner.Scan() {
		ids = append(ids, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}
