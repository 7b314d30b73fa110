package ir

// Version constants for the IR wire format.
const (
	// SchemaVersion is the value the adapter fills into meta.version.
	SchemaVersion = 1

	// EngineVersion is the nlopt release recorded in traces.
	EngineVersion = "0.1.0"
)
