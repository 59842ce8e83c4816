package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const (
	// HomeEnv overrides the base directory (default ~/.cgreduce).
	HomeEnv = "CGREDUCE_HOME"

	// DataEnv overrides the directory holding catalogs and parameter tables.
	DataEnv = "CGREDUCE_DATA"

	// RepoDirName is the per-repository config directory.
	RepoDirName = ".cgreduce"
)

// Config holds application configuration.
type Config struct {
	// DataDir holds the catalogs and parameter tables. Relative table names
	// below are resolved against it. Defaults to $CGREDUCE_DATA or <home>/data.
	DataDir string `json:"data_dir,omitempty"`

	// ProtCatalog is the row-based catalog used by attract1 for proteins.
	ProtCatalog string `json:"prot_catalog,omitempty"`

	// DNACatalog is the row-based catalog used by attract1 for nucleic acids.
	DNACatalog string `json:"dna_catalog,omitempty"`

	// ChargeTable is the attract1 bead charge table.
	ChargeTable string `json:"charge_table,omitempty"`

	// ConversionTable is the attract1 residue/atom rename table.
	ConversionTable string `json:"conversion_table,omitempty"`

	// Attract2Catalog is the structured catalog used by attract2.
	Attract2Catalog string `json:"attract2_catalog,omitempty"`

	// AllowMissing drops beads with missing atoms instead of failing attract1 runs.
	AllowMissing bool `json:"allow_missing,omitempty"`

	// Workers is the number of residues assembled concurrently (1 = sequential).
	Workers int `json:"workers,omitempty"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `json:"log_level,omitempty"`

	// RecordRuns stores every reduction in the run ledger. Defaults to true;
	// a pointer so an explicit false survives the merge.
	RecordRuns *bool `json:"record_runs,omitempty"`

	// AllowedPaths is an allowlist of directories MCP requests may write
	// reduced models to (directly) and read inputs from (at any depth).
	// Writes outside <home>/outputs and reads outside <home> and DataDir
	// require either being in this list or AllowUnsafePaths=true. Relative
	// paths are ignored.
	AllowedPaths []string `json:"allowed_paths,omitempty"`

	// AllowUnsafePaths disables directory restrictions for MCP paths.
	// Symlink and extension checks still apply.
	AllowUnsafePaths bool `json:"allow_unsafe_paths,omitempty"`

	// DBMaxOpenConns limits the maximum number of open database connections.
	// 0 means use sql.DB default.
	DBMaxOpenConns int `json:"db_max_open_conns,omitempty"`

	// DBMaxIdleConns limits the maximum number of idle database connections.
	DBMaxIdleConns int `json:"db_max_idle_conns,omitempty"`

	// DisabledTools is a list of MCP tool names to exclude from registration.
	// Unknown tool names are logged as warnings.
	DisabledTools []string `json:"disabled_tools,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	recordRuns := true
	return &Config{
		ProtCatalog:     "at2cg.prot.dat",
		DNACatalog:      "at2cg.dna.dat",
		ChargeTable:     "ff_param.dat",
		ConversionTable: "type_conversion.dat",
		Attract2Catalog: "at2cg_attract2.yml",
		Workers:         1,
		LogLevel:        "info",
		RecordRuns:      &recordRuns,
	}
}

// HomeDir returns $CGREDUCE_HOME, or ~/.cgreduce.
func HomeDir() (string, error) {
	if dir := strings.TrimSpace(os.Getenv(HomeEnv)); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cgreduce"), nil
}

// Load loads configuration from baseDir/config.json.
// Returns default config if the file doesn't exist.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	return cfg.withDataDir(baseDir), nil
}

// LoadWithRepo loads configuration from both the global directory and the
// nearest repo .cgreduce/config.json found by walking upward from startDir.
// Repo config takes precedence for scalar values; arrays are merged
// (deduplicated). Either or both configs may be missing.
func LoadWithRepo(globalDir, startDir string) (*Config, error) {
	global, err := loadFileRaw(filepath.Join(globalDir, "config.json"))
	if err != nil {
		return nil, err
	}

	repo, err := loadFileRaw(FindRepoConfig(startDir))
	if err != nil {
		return nil, err
	}

	return Merge(Merge(DefaultConfig(), global), repo).withDataDir(globalDir), nil
}

// FindRepoConfig walks upward from startDir to find the nearest .cgreduce/config.json.
// Returns the path if found, or empty string if not found.
func FindRepoConfig(startDir string) string {
	dir := startDir
	for {
		configPath := filepath.Join(dir, RepoDirName, "config.json")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Path resolves a table name against DataDir. Absolute names and the empty
// string are returned unchanged.
func (c *Config) Path(name string) string {
	if name == "" || filepath.IsAbs(name) || c.DataDir == "" {
		return name
	}
	return filepath.Join(c.DataDir, name)
}

// ShouldRecordRuns reports whether reductions go to the run ledger.
func (c *Config) ShouldRecordRuns() bool {
	return c.RecordRuns == nil || *c.RecordRuns
}

// withDataDir fills DataDir from the environment or <baseDir>/data.
func (c *Config) withDataDir(baseDir string) *Config {
	if c.DataDir != "" {
		return c
	}
	if dir := strings.TrimSpace(os.Getenv(DataEnv)); dir != "" {
		c.DataDir = dir
		return c
	}
	c.DataDir = filepath.Join(baseDir, "data")
	return c
}

// loadFileRaw loads configuration from a specific file path.
// Returns zero-valued config if the file doesn't exist (not defaults).
func loadFileRaw(configPath string) (*Config, error) {
	if configPath == "" {
		return &Config{}, nil
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}

	cfg := &Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFile loads configuration from a specific file path.
// Returns default config if the file doesn't exist.
func loadFile(configPath string) (*Config, error) {
	cfg, err := loadFileRaw(configPath)
	if err != nil {
		return nil, err
	}
	return Merge(DefaultConfig(), cfg), nil
}

// Merge combines base and overlay configs.
// Overlay values take precedence for scalars; arrays are merged and deduplicated.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	// Scalars: overlay wins if non-zero, else base
	result.DataDir = pick(overlay.DataDir, base.DataDir)
	result.ProtCatalog = pick(overlay.ProtCatalog, base.ProtCatalog)
	result.DNACatalog = pick(overlay.DNACatalog, base.DNACatalog)
	result.ChargeTable = pick(overlay.ChargeTable, base.ChargeTable)
	result.ConversionTable = pick(overlay.ConversionTable, base.ConversionTable)
	result.Attract2Catalog = pick(overlay.Attract2Catalog, base.Attract2Catalog)
	result.LogLevel = pick(overlay.LogLevel, base.LogLevel)

	result.Workers = overlay.Workers
	if result.Workers == 0 {
		result.Workers = base.Workers
	}

	result.DBMaxOpenConns = overlay.DBMaxOpenConns
	if result.DBMaxOpenConns == 0 {
		result.DBMaxOpenConns = base.DBMaxOpenConns
	}

	result.DBMaxIdleConns = overlay.DBMaxIdleConns
	if result.DBMaxIdleConns == 0 {
		result.DBMaxIdleConns = base.DBMaxIdleConns
	}

	// Tri-state: overlay wins when set
	result.RecordRuns = overlay.RecordRuns
	if result.RecordRuns == nil {
		result.RecordRuns = base.RecordRuns
	}

	// Booleans: overlay wins if true, else base
	result.AllowMissing = base.AllowMissing || overlay.AllowMissing
	result.AllowUnsafePaths = base.AllowUnsafePaths || overlay.AllowUnsafePaths

	// Arrays: merge and deduplicate
	result.AllowedPaths = mergeStringSlice(base.AllowedPaths, overlay.AllowedPaths)
	result.DisabledTools = mergeStringSlice(base.DisabledTools, overlay.DisabledTools)

	return result
}

func pick(overlay, base string) string {
	if strings.TrimSpace(overlay) != "" {
		return overlay
	}
	return base
}

// mergeStringSlice combines two slices, trims whitespace, and removes duplicates.
func mergeStringSlice(a, b []string) []string {
	seen := make(map[string]bool)
	result := make([]string, 0, len(a)+len(b))

	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s != "" && !seen[s] {
			seen[s] = true
			result = append(result, s)
		}
	}

	if len(result) == 0 {
		return nil
	}
	return result
}
