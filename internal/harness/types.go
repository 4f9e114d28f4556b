package harness

// TraceEvent records one executed step and what the edge answered.
type TraceEvent struct {
	Seq  int    `json:"seq"`
	Step string `json:"step"`

	Method string `json:"method,omitempty"`
	Path   string `json:"path,omitempty"`
	Kind   string `json:"kind,omitempty"`
	Tag    string `json:"tag,omitempty"`

	Status   int    `json:"status,omitempty"`
	Cache    string `json:"cache,omitempty"`
	Body     string `json:"body,omitempty"`
	Queued   bool   `json:"queued,omitempty"`
	Replayed int    `json:"replayed,omitempty"`
	Failed   int    `json:"failed,omitempty"`
	Code     string `json:"code,omitempty"`
	State    string `json:"state,omitempty"`
	Online   *bool  `json:"online,omitempty"`
	Title    string `json:"title,omitempty"`
	Opened   string `json:"opened,omitempty"`
	Error    bool   `json:"error,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace has one event per executed step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages. Empty if Pass is true.
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

// AddTrace appends ev with the next sequence number.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
