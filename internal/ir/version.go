package ir

// Version constants for the record schema and the binary.
const (
	// SchemaVersion is the version of the record and patch format.
	SchemaVersion = "1"

	// Version is the brickbook release.
	Version = "0.1.0"
)
