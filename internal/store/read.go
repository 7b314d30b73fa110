package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

const runColumns = `id, seq, instance_id, question, problem_id, ir_hash, status_code, status_name,
	objective, failure_stage, error, ir_dict_json, ir_json, report_json, trace_json`

// RunFilter narrows ListRuns. Zero fields match everything.
type RunFilter struct {
	InstanceID   string
	ProblemID    string
	FailureStage string
	// FailedOnly keeps runs with a failure stage.
	FailedOnly bool
	// Limit caps the number of rows; zero means no cap.
	Limit int
}

// ReadRun retrieves a single run by ID.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	return scanRun(row)
}

// ListRuns returns runs matching f, ordered by seq ASC, id ASC.
// Returns an empty slice (not nil) when nothing matches.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	var where []string
	var args []any
	if f.InstanceID != "" {
		where = append(where, "instance_id = ?")
		args = append(args, f.InstanceID)
	}
	if f.ProblemID != "" {
		where = append(where, "problem_id = ?")
		args = append(args, f.ProblemID)
	}
	if f.FailureStage != "" {
		where = append(where, "failure_stage = ?")
		args = append(args, f.FailureStage)
	}
	if f.FailedOnly {
		where = append(where, "failure_stage != ''")
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// LastSeq returns the highest sequence number, or 0 for an empty log.
func (s *Store) LastSeq(ctx context.Context) (int64, error) {
	var seq int64
	if err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) FROM runs`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("last seq: %w", err)
	}
	return seq, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		run                        Run
		objective                  sql.NullFloat64
		irDict, irJSON, report, tr string
	)
	err := sc.Scan(
		&run.ID,
		&run.Seq,
		&run.InstanceID,
		&run.Question,
		&run.ProblemID,
		&run.IRHash,
		&run.StatusCode,
		&run.StatusName,
		&objective,
		&run.FailureStage,
		&run.Error,
		&irDict,
		&irJSON,
		&report,
		&tr,
	)
	if err == sql.ErrNoRows {
		return Run{}, err
	}
	if err != nil {
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	if objective.Valid {
		v := objective.Float64
		run.Objective = &v
	}
	run.IRDict = []byte(irDict)
	run.IR = []byte(irJSON)
	run.Report = []byte(report)
	run.Trace = []byte(tr)
	return run, nil
}
