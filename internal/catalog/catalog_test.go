package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hpungsan/cgreduce/internal/errors"
)

const protRows = `# residue atom weight bead name
ALA N   1.0 1 N
ALA CA  1.0 2 CA
ALA CB  1.0 3 CB
GLY N   1.0 1 N
GLY CA  1.0 2 CA
GLY EMPTY 1.0 3 CB
*   C   1.0 2 CA
*   O   1.0 4 O
`

func TestParseRows_WildcardUnion(t *testing.T) {
	cat, err := ParseRows(strings.NewReader(protRows), "prot.dat")
	require.NoError(t, err)

	assert.Equal(t, FormatRowBased, cat.Format)
	assert.Equal(t, DefaultRowForceField, cat.ForceField)
	assert.Equal(t, []string{"ALA", "GLY"}, cat.Residues())

	for _, res := range []string{"ALA", "GLY"} {
		beads, ok := cat.Lookup(res)
		require.True(t, ok, res)

		ca := findBead(t, beads, 2)
		assert.Equal(t, []string{"CA", "C"}, ca.AtomNames(), "%s: wildcard atom joins existing bead", res)

		o := findBead(t, beads, 4)
		assert.Equal(t, "O", o.Name)
		assert.Equal(t, []string{"O"}, o.AtomNames(), "%s: wildcard bead id opens a new bead", res)
		assert.Equal(t, beads[len(beads)-1].ID, 4, "%s: wildcard beads come last", res)
	}
}

func TestParseRows_EmptyAtomSkipped(t *testing.T) {
	cat, err := ParseRows(strings.NewReader(protRows), "prot.dat")
	require.NoError(t, err)

	beads, _ := cat.Lookup("GLY")
	for _, b := range beads {
		assert.NotEqual(t, 3, b.ID, "EMPTY row must not create a bead")
		assert.False(t, b.Expects(EmptyAtom))
	}
	assert.Len(t, beads, 3)
}

func TestParseRows_WeightsAndTypeID(t *testing.T) {
	cat, err := ParseRows(strings.NewReader("LYS NZ 0.5 7 NZ extra columns\n"), "prot.dat")
	require.NoError(t, err)

	beads, ok := cat.Lookup("LYS")
	require.True(t, ok)
	require.Len(t, beads, 1)
	assert.Equal(t, 7, beads[0].ID)
	assert.Equal(t, 7, beads[0].TypeID)
	assert.Equal(t, []AtomDef{{Name: "NZ", Weight: 0.5}}, beads[0].Atoms)
}

func TestParseRows_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		line    int
		content string
	}{
		{"too few items", "ALA N 1.0 1 N\nALA CA 1.0\n", 2, "ALA CA 1.0"},
		{"bad weight", "ALA N heavy 1 N\n", 1, "ALA N heavy 1 N"},
		{"bad bead id", "# header\nALA N 1.0 one N\n", 2, "ALA N 1.0 one N"},
		{"atom in two beads", "ALA CA 1.0 1 BB\nALA CA 1.0 2 SC\n", 2, "ALA CA 1.0 2 SC"},
		{"atom twice in one bead", "ALA CA 1.0 1 BB\nALA CA 2.0 1 BB\n", 2, "ALA CA 2.0 1 BB"},
		{"wildcard atom already listed", "ALA O 1.0 1 BB\n* O 1.0 2 CA\n", 2, "* O 1.0 2 CA"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRows(strings.NewReader(tt.input), "prot.dat")
			require.Error(t, err)

			rErr, ok := errors.As(err)
			require.True(t, ok)
			assert.Equal(t, errors.ErrMalformedCatalogRow, rErr.Code)
			assert.True(t, rErr.Fatal)
			assert.Equal(t, tt.line, rErr.Details["line"])
			assert.Equal(t, tt.content, rErr.Details["content"])
			assert.Equal(t, "prot.dat", rErr.Details["path"])
		})
	}
}

func TestParseRows_SameAtomInDifferentResidues(t *testing.T) {
	cat, err := ParseRows(strings.NewReader("ALA CA 1.0 1 BB\nGLY CA 1.0 2 BB\n"), "prot.dat")
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())
}

func TestLookup_ReturnsCopy(t *testing.T) {
	cat, err := ParseRows(strings.NewReader(protRows), "prot.dat")
	require.NoError(t, err)

	beads, ok := cat.Lookup("ALA")
	require.True(t, ok)
	beads[0].Name = "XX"
	beads[0].Atoms[0].Weight = 99
	beads = append(beads[:1], beads[2:]...)
	require.Len(t, beads, 3)

	again, _ := cat.Lookup("ALA")
	assert.Equal(t, "N", again[0].Name)
	assert.Equal(t, 1.0, again[0].Atoms[0].Weight)
	assert.Equal(t, "CA", again[1].Name)
}

func TestLoadRows_FileNotFound(t *testing.T) {
	_, err := LoadRows(filepath.Join(t.TempDir(), "missing.dat"))
	assert.True(t, errors.Is(err, errors.ErrFileNotFound))
}

const attract2YAML = `forcefield: ATTRACT2
beads:
  TRP:
    - name: BB
      atoms: [N, CA, C, O]
      charge: 0.0
      typeid: 1
    - name: SC
      atoms: [CB, CG]
      charge: -0.25
      typeid: 12
  ALA:
    - atoms: [N, CA, C, O]
`

func TestParseStructured(t *testing.T) {
	cat, err := ParseStructured(strings.NewReader(attract2YAML), "ff.yml")
	require.NoError(t, err)

	assert.Equal(t, FormatStructured, cat.Format)
	assert.Equal(t, "ATTRACT2", cat.ForceField)
	assert.Equal(t, []string{"TRP", "ALA"}, cat.Residues(), "document order preserved")

	trp, ok := cat.Lookup("TRP")
	require.True(t, ok)
	require.Len(t, trp, 2)
	assert.Equal(t, "SC", trp[1].Name)
	assert.Equal(t, 2, trp[1].ID)
	assert.Equal(t, -0.25, trp[1].Charge)
	assert.Equal(t, 12, trp[1].TypeID)
	for _, a := range trp[1].Atoms {
		assert.Equal(t, 1.0, a.Weight)
	}

	ala, _ := cat.Lookup("ALA")
	require.Len(t, ala, 1)
	assert.Equal(t, defaultBeadName, ala[0].Name)
	assert.Zero(t, ala[0].Charge)
	assert.Zero(t, ala[0].TypeID)

	_, ok = cat.Lookup("*")
	assert.False(t, ok)
}

func TestParseStructured_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"not yaml", "forcefield: [unclosed\n"},
		{"missing forcefield", "beads:\n  ALA:\n    - atoms: [CA]\n"},
		{"no beads", "forcefield: X\n"},
		{"empty atoms", "forcefield: X\nbeads:\n  ALA:\n    - name: BB\n      atoms: []\n"},
		{"wrong shape", "forcefield: X\nbeads: [1, 2]\n"},
		{"atom in two beads", "forcefield: X\nbeads:\n  ALA:\n    - name: BB\n      atoms: [N, CA]\n    - name: SC\n      atoms: [CA, CB]\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseStructured(strings.NewReader(tt.input), "ff.yml")
			assert.True(t, errors.Is(err, errors.ErrMalformedCatalog), "got %v", err)
		})
	}
}

func TestLoad_ByFormat(t *testing.T) {
	dir := t.TempDir()
	rows := filepath.Join(dir, "prot.dat")
	yml := filepath.Join(dir, "ff.yml")
	require.NoError(t, os.WriteFile(rows, []byte(protRows), 0o600))
	require.NoError(t, os.WriteFile(yml, []byte(attract2YAML), 0o600))

	cat, err := Load(rows, FormatRowBased)
	require.NoError(t, err)
	assert.Equal(t, 2, cat.Len())

	cat, err = Load(yml, FormatStructured)
	require.NoError(t, err)
	assert.Equal(t, "ATTRACT2", cat.ForceField)

	_, err = Load(rows, Format(9))
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"rows", FormatRowBased, false},
		{"yaml", FormatStructured, false},
		{"YAML", FormatStructured, false},
		{"", FormatRowBased, false},
		{"xml", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func findBead(t *testing.T, beads []BeadDef, id int) BeadDef {
	t.Helper()
	for _, b := range beads {
		if b.ID == id {
			return b
		}
	}
	t.Fatalf("bead %d not found", id)
	return BeadDef{}
}
