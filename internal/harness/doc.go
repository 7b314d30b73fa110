// Package harness runs end-to-end pipeline scenarios.
//
// A scenario feeds one model through the pipeline and checks the outcome.
// The model is either a scripted oracle reply, which goes through JSON
// extraction, IR parsing, the verifier and the solver, or a built-in
// fixture, which enters at the verifier.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	question: "Natural-language problem"
//	reply: |
//	  {"meta": {...}, "sets": [...], "objective": {...}, ...}
//	verifier:
//	  layer1: true
//	  layer2: true
//	  layer3: false
//	  repairs: true
//	expect:
//	  status: OPTIMAL
//	  objective: 7
//	  constraints: [cap]
//	  senses: {cap: "<="}
//	  params:
//	    - {name: cost, key: [a, a], value: 0}
//	  repairs: [L1-R3]
//	  golden: true
//
// Unknown fields are rejected so typos fail loudly. Every run is recorded
// in a fresh in-memory store and read back before the expectations are
// evaluated, so a scenario also covers the run record round trip.
//
// # Golden Files
//
// With expect.golden set, the canonical JSON of the final IR is compared
// against testdata/golden/<name>.golden. Regenerate with:
//
//	go test ./internal/harness -update
package harness
