// Package adapter turns a natural-language question into a ModelIR.
//
// The flow is BuildPrompts, Call, ExtractJSON and ParseIR. Each step fails
// with an *Error whose Kind names the step, so the pipeline can report
// where a run stopped. LLM replies are untrusted: ParseIR unifies them
// with an embedded CUE schema before decoding, then runs ir.Validate.
//
// The adapter also serves the verifier's template rescue (Rebuild) and the
// pipeline's optional self-check (SelfCheck).
package adapter
