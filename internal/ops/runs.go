package ops

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hpungsan/cgreduce/internal/db"
	"github.com/hpungsan/cgreduce/internal/diag"
	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/run"
)

// ListRunsInput contains parameters for the ListRuns operation.
type ListRunsInput struct {
	ForceField string // optional filter
	Status     string // optional filter: ok|failed
	Limit      int    // default: 20, max: 100
	Offset     int    // default: 0
}

// ListRunsOutput contains the result of the ListRuns operation.
type ListRunsOutput struct {
	Items      []run.Summary `json:"items"`
	Pagination Pagination    `json:"pagination"`
	Sort       string        `json:"sort"`
}

// ListRuns retrieves run summaries, newest first, with pagination.
func ListRuns(database *sql.DB, input ListRunsInput) (*ListRunsOutput, error) {
	status := run.Status(strings.ToLower(strings.TrimSpace(input.Status)))
	if status != "" && status != run.StatusOK && status != run.StatusFailed {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("unknown status %q (want ok or failed)", input.Status))
	}

	limit := input.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	offset := max(input.Offset, 0)

	filters := db.ListFilters{ForceField: strings.TrimSpace(input.ForceField), Status: status}
	summaries, total, err := db.ListRuns(database, filters, limit, offset)
	if err != nil {
		return nil, err
	}

	// Ensure we return an empty array rather than nil
	if summaries == nil {
		summaries = []run.Summary{}
	}

	return &ListRunsOutput{
		Items: summaries,
		Pagination: Pagination{
			Limit:   limit,
			Offset:  offset,
			HasMore: offset+len(summaries) < total,
			Total:   total,
		},
		Sort: "created_at_desc",
	}, nil
}

// FetchRunInput contains parameters for the FetchRun operation.
type FetchRunInput struct {
	ID string // required
}

// FetchRun retrieves one run with its warnings.
func FetchRun(database *sql.DB, input FetchRunInput) (*run.Run, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("run id is required")
	}
	r, err := db.GetRun(database, id)
	if err != nil {
		return nil, err
	}
	if r.Warnings == nil {
		r.Warnings = []diag.Warning{}
	}
	return r, nil
}

// PurgeRunsInput contains parameters for the PurgeRuns operation.
type PurgeRunsInput struct {
	ForceField    *string // optional filter by force field
	OlderThanDays *int    // optional, only purge runs created more than N days ago
}

// PurgeRunsOutput contains the result of the PurgeRuns operation.
type PurgeRunsOutput struct {
	Purged  int    `json:"purged"`
	Message string `json:"message"`
}

// PurgeRuns permanently deletes ledger entries.
func PurgeRuns(ctx context.Context, database *sql.DB, input PurgeRunsInput) (*PurgeRunsOutput, error) {
	if input.OlderThanDays != nil && *input.OlderThanDays < 0 {
		return nil, errors.NewInvalidRequest("older_than_days must be non-negative")
	}
	if ctx.Err() != nil {
		return nil, errors.NewCancelled("purge")
	}

	count, err := db.PurgeRuns(database, input.ForceField, input.OlderThanDays)
	if err != nil {
		return nil, err
	}

	return &PurgeRunsOutput{
		Purged:  count,
		Message: formatPurgeMessage(count, input.ForceField, input.OlderThanDays),
	}, nil
}

// formatPurgeMessage creates a human-readable message for the purge result.
func formatPurgeMessage(count int, forcefield *string, olderThanDays *int) string {
	if count == 0 {
		return "No runs to purge"
	}

	runWord := "run"
	if count > 1 {
		runWord = "runs"
	}

	msg := fmt.Sprintf("Permanently deleted %d %s", count, runWord)

	if forcefield != nil {
		msg += fmt.Sprintf(" for force field %q", *forcefield)
	}

	if olderThanDays != nil {
		msg += fmt.Sprintf(" (created more than %d days ago)", *olderThanDays)
	}

	return msg
}
