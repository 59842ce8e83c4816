// Package diag is the diagnostic stream for recoverable reduction problems.
// Every warning is logged at WARN and kept so it can be returned to callers
// and stored with the run.
package diag

import (
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/hpungsan/cgreduce/internal/errors"
)

// Warning is the serializable form of a recoverable ReduceError.
type Warning struct {
	Code    errors.ErrorCode `json:"code"`
	Message string           `json:"message"`
	Details map[string]any   `json:"details,omitempty"`
}

// Collector records warnings. Safe for concurrent use.
type Collector struct {
	log *zap.Logger

	mu       sync.Mutex
	warnings []Warning
}

// NewCollector returns a Collector logging through log (no-op when nil).
func NewCollector(log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	return &Collector{log: log}
}

// Warn records a recoverable error.
func (c *Collector) Warn(err *errors.ReduceError) {
	if err == nil {
		return
	}
	c.log.Warn(err.Message, fields(err)...)

	c.mu.Lock()
	c.warnings = append(c.warnings, Warning{Code: err.Code, Message: err.Message, Details: err.Details})
	c.mu.Unlock()
}

// Warnings returns a copy of the recorded warnings in report order.
func (c *Collector) Warnings() []Warning {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Warning, len(c.warnings))
	copy(out, c.warnings)
	return out
}

// Count returns the number of warnings recorded with code.
func (c *Collector) Count(code errors.ErrorCode) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.warnings {
		if w.Code == code {
			n++
		}
	}
	return n
}

// Len returns the total number of warnings.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.warnings)
}

// fields flattens details into zap fields with a stable key order.
func fields(err *errors.ReduceError) []zap.Field {
	keys := make([]string, 0, len(err.Details))
	for k := range err.Details {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]zap.Field, 0, len(keys)+1)
	out = append(out, zap.String("code", string(err.Code)))
	for _, k := range keys {
		out = append(out, zap.Any(k, err.Details[k]))
	}
	return out
}
