package logger

// Levels accepted by New.
const (
	DebugLevel = "DEBUG"
	InfoLevel  = "INFO"
	NoopLevel  = "NOOP"
	TestLevel  = "TEST"
)
