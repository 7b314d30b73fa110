package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/nlopt/internal/pipeline"
)

// WriteRun inserts a run and returns its sequence number.
// Uses ON CONFLICT(id) DO NOTHING for idempotency: writing an existing ID
// returns the stored seq and inserted=false. run.Seq is ignored; the next
// sequence number is assigned inside the transaction.
func (s *Store) WriteRun(ctx context.Context, run Run) (seq int64, inserted bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&seq); err != nil {
		return 0, false, fmt.Errorf("write run: next seq: %w", err)
	}

	var objective sql.NullFloat64
	if run.Objective != nil {
		objective = sql.NullFloat64{Float64: *run.Objective, Valid: true}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO runs
		(id, seq, instance_id, question, problem_id, ir_hash, status_code, status_name,
		 objective, failure_stage, error, ir_dict_json, ir_json, report_json, trace_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		run.ID,
		seq,
		run.InstanceID,
		run.Question,
		run.ProblemID,
		run.IRHash,
		run.StatusCode,
		run.StatusName,
		objective,
		run.FailureStage,
		run.Error,
		docText(run.IRDict),
		docText(run.IR),
		docText(run.Report),
		docText(run.Trace),
	)
	if err != nil {
		return 0, false, fmt.Errorf("write run: insert: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, false, fmt.Errorf("write run: rows affected: %w", err)
	}

	if rowsAffected > 0 {
		inserted = true
	} else {
		err = tx.QueryRowContext(ctx, `SELECT seq FROM runs WHERE id = ?`, run.ID).Scan(&seq)
		if err != nil {
			return 0, false, fmt.Errorf("write run: select existing: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, false, fmt.Errorf("write run: commit: %w", err)
	}

	return seq, inserted, nil
}

// Record stores a pipeline result under a fresh ID from gen.
func (s *Store) Record(ctx context.Context, gen IDGenerator, question string, res *pipeline.Result) (Run, error) {
	run, err := NewRun(gen.Generate(), question, res)
	if err != nil {
		return Run{}, fmt.Errorf("record run: %w", err)
	}
	seq, _, err := s.WriteRun(ctx, run)
	if err != nil {
		return Run{}, err
	}
	run.Seq = seq
	return run, nil
}

func docText(doc []byte) string {
	if isNull(doc) {
		return "null"
	}
	return string(doc)
}
