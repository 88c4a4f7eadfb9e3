package ir

// Version constants for the persisted formats and the engine.
const (
	// SchemaVersion is the version of the log payload formats.
	SchemaVersion = "1"

	// EngineVersion is the diamond engine version.
	EngineVersion = "0.1.0"
)
