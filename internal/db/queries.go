package db

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/hpungsan/cgreduce/internal/errors"
	"github.com/hpungsan/cgreduce/internal/run"
)

// ListFilters narrows ListRuns. Zero values match everything.
type ListFilters struct {
	ForceField string
	Status     run.Status
}

// InsertRun stores a finished run.
func InsertRun(db *sql.DB, r *run.Run) error {
	var warningsJSON sql.NullString
	if len(r.Warnings) > 0 {
		data, err := json.Marshal(r.Warnings)
		if err != nil {
			return errors.NewInternal(err)
		}
		warningsJSON = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO runs (
			id, forcefield, input_path, catalog_path, output_path,
			residues, skipped_residues, beads, warning_count, warnings_json,
			status, error, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.Exec(query,
		r.ID, r.ForceField, r.InputPath, r.CatalogPath, toNullString(r.OutputPath),
		r.Residues, r.SkippedResidues, r.Beads, len(r.Warnings), warningsJSON,
		string(r.Status), toNullString(r.Error), r.CreatedAt,
	)
	if err != nil {
		return errors.NewInternal(err)
	}
	return nil
}

// GetRun retrieves a run by its ULID.
func GetRun(db *sql.DB, id string) (*run.Run, error) {
	row := db.QueryRow(`
		SELECT id, forcefield, input_path, catalog_path, output_path,
			residues, skipped_residues, beads, warnings_json,
			status, error, created_at
		FROM runs
		WHERE id = ?
	`, id)

	r, err := scanRun(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, errors.NewNotFound(id)
		}
		return nil, errors.NewInternal(err)
	}
	return r, nil
}

// ListRuns returns run summaries, newest first, and the total number of
// runs matching filters.
func ListRuns(db *sql.DB, filters ListFilters, limit, offset int) ([]run.Summary, int, error) {
	where, args := filters.clause()

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM runs"+where, args...).Scan(&total); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	query := `
		SELECT id, forcefield, input_path, output_path,
			residues, skipped_residues, beads, warning_count,
			status, created_at
		FROM runs` + where + `
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := db.Query(query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, errors.NewInternal(err)
	}
	defer rows.Close()

	var summaries []run.Summary
	for rows.Next() {
		var (
			s          run.Summary
			outputPath sql.NullString
			status     string
		)
		if err := rows.Scan(
			&s.ID, &s.ForceField, &s.InputPath, &outputPath,
			&s.Residues, &s.SkippedResidues, &s.Beads, &s.WarningCount,
			&status, &s.CreatedAt,
		); err != nil {
			return nil, 0, errors.NewInternal(err)
		}
		s.OutputPath = fromNullString(outputPath)
		s.Status = run.Status(status)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, errors.NewInternal(err)
	}

	return summaries, total, nil
}

// PurgeRuns permanently deletes runs, optionally only those of one force
// field or older than the given number of days. Returns the number deleted.
func PurgeRuns(db *sql.DB, forcefield *string, olderThanDays *int) (int, error) {
	var (
		conds []string
		args  []any
	)
	if forcefield != nil {
		conds = append(conds, "forcefield = ?")
		args = append(args, *forcefield)
	}
	if olderThanDays != nil {
		cutoff := time.Now().Unix() - int64(*olderThanDays)*86400
		conds = append(conds, "created_at < ?")
		args = append(args, cutoff)
	}

	query := "DELETE FROM runs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	result, err := db.Exec(query, args...)
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewInternal(err)
	}
	return int(n), nil
}

func (f ListFilters) clause() (string, []any) {
	var (
		conds []string
		args  []any
	)
	if f.ForceField != "" {
		conds = append(conds, "forcefield = ?")
		args = append(args, f.ForceField)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, string(f.Status))
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func scanRun(row *sql.Row) (*run.Run, error) {
	var (
		r            run.Run
		outputPath   sql.NullString
		warningsJSON sql.NullString
		status       string
		errText      sql.NullString
	)

	err := row.Scan(
		&r.ID, &r.ForceField, &r.InputPath, &r.CatalogPath, &outputPath,
		&r.Residues, &r.SkippedResidues, &r.Beads, &warningsJSON,
		&status, &errText, &r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	r.OutputPath = fromNullString(outputPath)
	r.Error = fromNullString(errText)
	r.Status = run.Status(status)

	if warningsJSON.Valid && warningsJSON.String != "" {
		if err := json.Unmarshal([]byte(warningsJSON.String), &r.Warnings); err != nil {
			return nil, err
		}
	}

	return &r, nil
}

// toNullString converts a *string to sql.NullString.
func toNullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// fromNullString converts sql.NullString to *string.
func fromNullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}
