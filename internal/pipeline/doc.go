// Package pipeline runs one natural-language question end to end.
//
// A run moves through fixed stages:
//
//	build_prompts → llm_call → json_extract → ir_parse → verifier →
//	solver_build → solver_optimize → [estimator_llm → estimator_rebuild]
//
// The first failing stage stops the run. Run never returns an error: the
// stage name and message land in Result.FailureStage and Result.Error,
// and panics inside a stage are recovered the same way.
//
// The estimator stages are optional. They ask the oracle to grade the
// solved model and, when it proposes a corrected model, verify and solve
// that model and keep whichever outcome wins the tie-break in decide.
//
// A Pipeline holds no per-run state. Runs may execute concurrently as long
// as the oracle and solver backend passed to New are safe for concurrent
// use; RunBatch does exactly that.
package pipeline
