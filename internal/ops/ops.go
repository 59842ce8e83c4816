package ops

import (
	"crypto/rand"
	"os"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/hpungsan/cgreduce/internal/config"
	"github.com/hpungsan/cgreduce/internal/errors"
)

// Pagination limits
const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// Pagination contains pagination metadata for list operations.
type Pagination struct {
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"has_more"`
	Total   int  `json:"total"`
}

// generateULID generates a new ULID.
func generateULID() (string, error) {
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(time.Now()), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// resolveTable returns name as given when it exists, otherwise resolved
// against the data directory.
func resolveTable(cfg *config.Config, name string) string {
	if name == "" {
		return ""
	}
	if _, err := os.Stat(name); err == nil {
		return name
	}
	return cfg.Path(name)
}

// checkFilesExist fails with FILE_NOT_FOUND for the first missing path.
func checkFilesExist(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return errors.NewFileNotFound(p)
		}
	}
	return nil
}

// coded ensures err carries an error code.
func coded(err error) *errors.ReduceError {
	if err == nil {
		return nil
	}
	if rErr, ok := errors.As(err); ok {
		return rErr
	}
	return errors.NewInternal(err)
}
