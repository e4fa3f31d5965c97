package harness

// TraceEvent records one step and the state it left behind.
type TraceEvent struct {
	Step   int    `json:"step"`
	Action string `json:"action"`

	// Rejected marks a select step whose ID was not a candidate.
	Rejected bool `json:"rejected,omitempty"`

	// Calls lists gateway operations made during the step, in order.
	Calls []string `json:"calls"`

	State StateView `json:"state"`

	// Timers lists remaining delays of pending retry and safety timers.
	Timers []string `json:"timers"`

	// Notices is the cumulative number of terminal notices.
	Notices int `json:"notices"`
}

// StateView is the trace form of engine.State.
type StateView struct {
	Attempt    int64    `json:"attempt"`
	Active     string   `json:"active"`
	Candidates []string `json:"candidates"`
	Privileged bool     `json:"privileged"`
	Loading    bool     `json:"loading"`
	Error      string   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation matched.
	Pass bool `json:"pass"`

	// Trace has one event per step.
	Trace []TraceEvent `json:"trace"`

	// Errors contains expectation mismatches. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}
