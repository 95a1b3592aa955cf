package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonToolNotFound ReasonCode = "tool_not_found"
	ReasonToolArgs     ReasonCode = "tool_args"
	ReasonToolExec     ReasonCode = "tool_exec"
	ReasonUnavailable  ReasonCode = "unavailable"

	ReasonModelGenerate ReasonCode = "model_generate"
	ReasonModelInit     ReasonCode = "model_init"

	ReasonSandbox ReasonCode = "sandbox"
	ReasonStore   ReasonCode = "store"
)
