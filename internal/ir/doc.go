// Package ir provides the intermediate representation passed between the
// NL→IR adapter, the verifier and lowering.
//
// This package contains type definitions and value plumbing only. All other
// internal packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Value is sealed; parameter data is Null, String, Number, Bool, List
//     or an insertion-ordered *Dict
//   - Dict keys are Values so numeric and tuple keys survive until the
//     verifier canonicalizes them to strings
//   - All JSON tags use snake_case
//   - Hashing goes through MarshalCanonical only
package ir
