// Package pipeline implements the Tool/Prompt invocation wrapper: the
// Result contract every tool returns, and the pre/post-hook wiring that
// fans out to the task manager before and after a tool body runs.
package pipeline

// ErrorType is drawn from a closed vocabulary, matched against client-side
// handling logic by the agent.
type ErrorType string

const (
	ErrValidation    ErrorType = "validation_error"
	ErrNoProject     ErrorType = "no_project"
	ErrNotFound      ErrorType = "not_found"
	ErrFileRead      ErrorType = "file_read_error"
	ErrTemplate      ErrorType = "template_error"
	ErrSecurity      ErrorType = "security"
	ErrConfigRead    ErrorType = "config_read_error"
	ErrConfigWrite   ErrorType = "config_write_error"
	ErrSafeguard     ErrorType = "safeguard"
	ErrInvalidName   ErrorType = "invalid_name"
	ErrContext       ErrorType = "context"
	ErrUnexpected    ErrorType = "unexpected_error"
)

// Instruction hints, the closed set of "display only" style directives
// attached to a Result. Tasks and templates may supply arbitrary other
// instruction strings; these are just the common ones.
const (
	InstructionDisplayOnly = "display_only"
)

// Result is the structured value every tool and prompt invocation returns,
// matching spec §6's JSON contract exactly (field names are serialised
// verbatim with json struct tags).
type Result struct {
	Success                     bool           `json:"success"`
	Value                       any            `json:"value,omitempty"`
	Error                       string         `json:"error,omitempty"`
	ErrorType                   ErrorType      `json:"error_type,omitempty"`
	ErrorData                   map[string]any `json:"error_data,omitempty"`
	Message                     string         `json:"message,omitempty"`
	Instruction                 string         `json:"instruction,omitempty"`
	AdditionalAgentInstructions string         `json:"additional_agent_instructions,omitempty"`
}

// Ok builds a successful Result carrying value.
func Ok(value any) *Result {
	return &Result{Success: true, Value: value}
}

// OkWithInstruction builds a successful Result carrying value and an
// instruction hint for the agent.
func OkWithInstruction(value any, instruction string) *Result {
	return &Result{Success: true, Value: value, Instruction: instruction}
}

// Failure builds a failed Result with the closed-vocabulary errType, a
// human-readable message, and an instruction telling the agent how to
// react (e.g. not to retry).
func Failure(errType ErrorType, message, instruction string) *Result {
	return &Result{Success: false, Error: message, ErrorType: errType, Instruction: instruction}
}

// FailureWithData is Failure plus structured error_data for the agent to
// inspect (e.g. the offending field name on a validation error).
func FailureWithData(errType ErrorType, message, instruction string, data map[string]any) *Result {
	r := Failure(errType, message, instruction)
	r.ErrorData = data
	return r
}

// WithAdditionalInstructions returns a copy of r with
// additional_agent_instructions set, used by the pipeline's post-hook to
// fold a pending Task instruction into the response without mutating the
// tool body's own Result value.
func (r *Result) WithAdditionalInstructions(instruction string) *Result {
	clone := *r
	clone.AdditionalAgentInstructions = instruction
	return &clone
}

// WithValue returns a copy of r with Value replaced, used by the
// pipeline's post-hook to install a workflow_change_content override.
func (r *Result) WithValue(value any) *Result {
	clone := *r
	clone.Value = value
	clone.AdditionalAgentInstructions = ""
	return &clone
}
