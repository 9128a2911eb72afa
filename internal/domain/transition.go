package domain

// InputField is an extra input descriptor pre-filled with the lead's current value.
type InputField struct {
	InputDescriptor
	Value string `json:"value"`
}

// ForwardTransition is the outcome of preparing a forward move.
// HasNext is false when the lead already sits at the terminal stage.
type ForwardTransition struct {
	LeadID      string       `json:"lead_id"`
	From        LeadStatus   `json:"from"`
	Next        LeadStatus   `json:"next,omitempty"`
	HasNext     bool         `json:"has_next"`
	Missing     []string     `json:"missing"`
	ExtraInputs []InputField `json:"extra_inputs"`
}

// BackwardTransition is the outcome of preparing a backward move.
// HasPrev is false when the lead sits at the first stage.
type BackwardTransition struct {
	LeadID  string     `json:"lead_id"`
	From    LeadStatus `json:"from"`
	Prev    LeadStatus `json:"prev,omitempty"`
	HasPrev bool       `json:"has_prev"`
}

// TransitionRequest is the body of POST /v1/leads/{leadId}/transitions.
type TransitionRequest struct {
	Target LeadStatus        `json:"target"`
	Inputs map[string]string `json:"inputs"`
	Force  bool              `json:"force"`
}

// AdvanceRequest is the body of POST /v1/leads/{leadId}/advance.
type AdvanceRequest struct {
	Inputs map[string]string `json:"inputs"`
	Force  bool              `json:"force"`
}

// PipelineInfo is the response of GET /v1/pipeline.
type PipelineInfo struct {
	Statuses     []StatusMeta      `json:"statuses"`
	Requirements []TransitionRules `json:"requirements"`
}
