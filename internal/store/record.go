package store

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/nlopt/internal/ir"
	"github.com/roach88/nlopt/internal/pipeline"
	"github.com/roach88/nlopt/internal/verifier"
)

// Run is one stored pipeline run.
type Run struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"`
	InstanceID   string          `json:"instance_id"`
	Question     string          `json:"question"`
	ProblemID    string          `json:"problem_id"`
	IRHash       string          `json:"ir_hash"`
	StatusCode   int             `json:"status_code"`
	StatusName   string          `json:"status_name"`
	Objective    *float64        `json:"objective"`
	FailureStage string          `json:"failure_stage"`
	Error        string          `json:"error"`
	IRDict       json.RawMessage `json:"ir_dict"`
	IR           json.RawMessage `json:"ir"`
	Report       json.RawMessage `json:"verifier_report"`
	Trace        json.RawMessage `json:"trace"`
}

// NewRun converts a pipeline result into a record. Seq is assigned by
// WriteRun.
func NewRun(id, question string, res *pipeline.Result) (Run, error) {
	run := Run{
		ID:           id,
		InstanceID:   res.InstanceID,
		Question:     question,
		IRHash:       res.Trace.IRHash,
		StatusCode:   res.StatusCode,
		StatusName:   res.StatusName,
		Objective:    res.Objective,
		FailureStage: string(res.FailureStage),
		Error:        res.Error,
	}
	if res.IR != nil {
		run.ProblemID = res.IR.Meta.ProblemID
	}

	var err error
	if run.IRDict, err = marshalDoc(res.IRDict, res.IRDict == nil); err != nil {
		return Run{}, fmt.Errorf("encode ir_dict: %w", err)
	}
	if run.IR, err = marshalDoc(res.IR, res.IR == nil); err != nil {
		return Run{}, fmt.Errorf("encode ir: %w", err)
	}
	if run.Report, err = marshalDoc(res.VerifierReport, res.VerifierReport == nil); err != nil {
		return Run{}, fmt.Errorf("encode report: %w", err)
	}
	if run.Trace, err = marshalDoc(res.Trace, false); err != nil {
		return Run{}, fmt.Errorf("encode trace: %w", err)
	}
	return run, nil
}

// marshalDoc encodes v, or JSON null when isNil. Typed nil pointers are
// checked by the caller since they do not compare equal to nil as any.
func marshalDoc(v any, isNil bool) (json.RawMessage, error) {
	if isNil {
		return json.RawMessage("null"), nil
	}
	return json.Marshal(v)
}

func isNull(doc json.RawMessage) bool {
	d := bytes.TrimSpace(doc)
	return len(d) == 0 || bytes.Equal(d, []byte("null"))
}

// Model decodes the stored final IR. It returns nil when the run never
// produced one.
func (r Run) Model() (*ir.ModelIR, error) {
	if isNull(r.IR) {
		return nil, nil
	}
	m, err := ir.UnmarshalModel(r.IR)
	if err != nil {
		return nil, fmt.Errorf("run %s: decode ir: %w", r.ID, err)
	}
	return m, nil
}

// HasIRDict reports whether the oracle's JSON was stored.
func (r Run) HasIRDict() bool {
	return !isNull(r.IRDict)
}

// VerifierReport decodes the stored report, or nil.
func (r Run) VerifierReport() (*verifier.Report, error) {
	if isNull(r.Report) {
		return nil, nil
	}
	var rep verifier.Report
	if err := json.Unmarshal(r.Report, &rep); err != nil {
		return nil, fmt.Errorf("run %s: decode report: %w", r.ID, err)
	}
	return &rep, nil
}

// DecodeTrace decodes the stored trace.
func (r Run) DecodeTrace() (pipeline.Trace, error) {
	var tr pipeline.Trace
	if isNull(r.Trace) {
		return tr, nil
	}
	if err := json.Unmarshal(r.Trace, &tr); err != nil {
		return tr, fmt.Errorf("run %s: decode trace: %w", r.ID, err)
	}
	return tr, nil
}
