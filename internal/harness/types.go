package harness

// TraceEvent records the observable outcome of one scenario step.
type TraceEvent struct {
	Step    int    `json:"step"`
	Peer    string `json:"peer"`
	Action  string `json:"action"`
	Status  string `json:"status,omitempty"`
	Version int64  `json:"version,omitempty"`
	Flushed int    `json:"flushed,omitempty"`
	// Queued is the peer's pending queue length after the step.
	Queued int `json:"queued"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every step expectation and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Remote is the materialized remote state after the last step.
	Remote map[string]string `json:"remote"`

	// Version is the remote snapshot version after the last step.
	Version int64 `json:"version"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		Remote: map[string]string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
