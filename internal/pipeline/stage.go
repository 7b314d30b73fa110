package pipeline

import (
	"errors"
	"fmt"
)

// Stage names a pipeline step. Its value is the failure_stage string.
type Stage string

const (
	StageBuildPrompts     Stage = "build_prompts"
	StageLLMCall          Stage = "llm_call"
	StageJSONExtract      Stage = "json_extract"
	StageIRParse          Stage = "ir_parse"
	StageVerifier         Stage = "verifier"
	StageSolverBuild      Stage = "solver_build"
	StageSolverOptimize   Stage = "solver_optimize"
	StageEstimatorLLM     Stage = "estimator_llm"
	StageEstimatorRebuild Stage = "estimator_rebuild"
)

// Stages lists every stage in execution order.
var Stages = []Stage{
	StageBuildPrompts,
	StageLLMCall,
	StageJSONExtract,
	StageIRParse,
	StageVerifier,
	StageSolverBuild,
	StageSolverOptimize,
	StageEstimatorLLM,
	StageEstimatorRebuild,
}

// StageError is the failure that stopped a run.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// StageOf returns the stage of the first *StageError in err's chain.
func StageOf(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
