package structure

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/hpungsan/cgreduce/internal/errors"
)

// minAtomLine is the shortest ATOM line that still carries all three coordinates.
const minAtomLine = 54

// Read loads every ATOM record of the PDB file at path, in file order.
// If the file name ends with ".gz", gzip decompression is used.
func Read(path string) ([]Atom, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewFileNotFound(path)
		}
		return nil, fmt.Errorf("open structure: %w", err)
	}
	defer f.Close()

	var reader io.Reader = f
	if filepath.Ext(path) == ".gz" {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open gzip structure: %w", err)
		}
		defer gz.Close()
		reader = gz
	}

	return Parse(reader, path)
}

// Parse reads ATOM records from r. name is only used in error messages.
// HETATM and every other record type are ignored. Input order is preserved
// since residue grouping depends on it.
func Parse(r io.Reader, name string) ([]Atom, error) {
	atoms := make([]Atom, 0, 1024)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 4096), 1<<20)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if !isAtom(line) {
			continue
		}
		atom, err := parseAtom(line)
		if err != nil {
			return nil, errors.NewMalformedRow(errors.ErrMalformedStructureRow, name, lineNo, line, err.Error())
		}
		atoms = append(atoms, atom)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read structure %s: %w", name, err)
	}
	return atoms, nil
}

// isAtom reports whether line is an ATOM record. The record name is always
// in the first six columns.
func isAtom(line string) bool {
	return len(line) >= 10 && line[0:6] == "ATOM  "
}

// parseAtom decodes the fixed columns of one ATOM line: serial 7-11, atom name
// 13-16, residue name 18-20, chain 22, residue number 23-26 and x/y/z in
// 31-38, 39-46, 47-54. Names are upper-cased.
func parseAtom(line string) (Atom, error) {
	if len(line) < minAtomLine {
		return Atom{}, fmt.Errorf("ATOM record too short (%d columns, need %d)", len(line), minAtomLine)
	}

	atom := Atom{
		Name:        strings.ToUpper(strings.TrimSpace(line[12:16])),
		ResidueName: strings.ToUpper(strings.TrimSpace(line[17:20])),
		Chain:       line[21:22],
		Extra:       line[minAtomLine:],
	}

	// A malformed serial is tolerated; reduced output renumbers anyway.
	if serial, err := strconv.Atoi(strings.TrimSpace(line[6:11])); err == nil {
		atom.Serial = serial
	}

	resid, err := strconv.Atoi(strings.TrimSpace(line[22:26]))
	if err != nil {
		return Atom{}, fmt.Errorf("invalid residue number %q", line[22:26])
	}
	atom.ResidueID = resid

	for i, start := range [3]int{30, 38, 46} {
		field := strings.TrimSpace(line[start : start+8])
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return Atom{}, fmt.Errorf("invalid coordinate %q", field)
		}
		atom.Coords[i] = v
	}

	return atom, nil
}
