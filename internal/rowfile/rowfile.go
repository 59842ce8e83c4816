// Package rowfile scans whitespace-delimited parameter files. Blank lines and
// lines starting with '#' are comments.
package rowfile

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hpungsan/cgreduce/internal/errors"
)

// Row is one data line of a parameter file.
type Row struct {
	Line   int // 1-based
	Text   string
	Fields []string
}

// IsComment reports whether line carries no data.
func IsComment(line string) bool {
	trimmed := strings.TrimSpace(line)
	return trimmed == "" || strings.HasPrefix(trimmed, "#")
}

// Scan calls fn for every non-comment line of r, stopping at the first error.
func Scan(r io.Reader, fn func(Row) error) error {
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if IsComment(text) {
			continue
		}
		if err := fn(Row{Line: lineNo, Text: text, Fields: strings.Fields(text)}); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// Open opens path for one of the loaders, mapping a missing file to FILE_NOT_FOUND.
func Open(path string) (*os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	return f, nil
}
