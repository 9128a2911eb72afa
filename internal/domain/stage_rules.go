package domain

// ============================================================
// Stage requirement table
// ============================================================

// FieldCheck is one field-presence rule gating a forward transition.
type FieldCheck struct {
	Field    string `json:"field"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// InputKind tells the client which editor to render for an extra input.
type InputKind string

const (
	InputNumber InputKind = "number"
	InputText   InputKind = "text"
	InputDate   InputKind = "date"
)

// InputDescriptor is an extra value collected while a transition is confirmed.
type InputDescriptor struct {
	Field       string    `json:"field"`
	Label       string    `json:"label"`
	Kind        InputKind `json:"kind"`
	Placeholder string    `json:"placeholder,omitempty"`
}

// StageRules is the rule set of one (from, to) pair.
type StageRules struct {
	Checks []FieldCheck      `json:"checks"`
	Inputs []InputDescriptor `json:"inputs"`
}

type stagePair struct {
	from LeadStatus
	to   LeadStatus
}

var stageRules = map[stagePair]StageRules{
	{StatusLead, StatusProposalSent}: {
		Checks: []FieldCheck{
			{Field: "destination", Label: "יעד", Required: true},
			{Field: "departure_date", Label: "תאריך יציאה", Required: true},
			{Field: "return_date", Label: "תאריך חזרה", Required: true},
			{Field: "total_price", Label: "מחיר כולל", Required: true},
			{Field: "commission", Label: "עמלה", Required: true},
		},
		Inputs: []InputDescriptor{
			{Field: "total_price", Label: "מחיר כולל", Kind: InputNumber, Placeholder: "מחיר כולל בש״ח"},
			{Field: "commission", Label: "עמלה", Kind: InputNumber, Placeholder: "עמלה בש״ח"},
		},
	},
	{StatusProposalSent, StatusPaid}: {
		Checks: []FieldCheck{
			{Field: "deposit_amount", Label: "סכום מקדמה", Required: true},
			{Field: "deposit_paid", Label: "מקדמה שולמה", Required: true},
			{Field: "total_price", Label: "מחיר כולל", Required: false},
		},
		Inputs: []InputDescriptor{
			{Field: "deposit_amount", Label: "סכום מקדמה", Kind: InputNumber, Placeholder: "סכום מקדמה בש״ח"},
		},
	},
	{StatusPaid, StatusFlying}: {
		Checks: []FieldCheck{
			{Field: "phone", Label: "טלפון", Required: true},
			{Field: "departure_date", Label: "תאריך יציאה", Required: true},
			{Field: "email", Label: "אימייל", Required: false},
		},
		Inputs: []InputDescriptor{
			{Field: "balance_amount", Label: "יתרה לתשלום", Kind: InputNumber, Placeholder: "יתרה בש״ח"},
		},
	},
	{StatusFlying, StatusReturned}: {
		Checks: []FieldCheck{
			{Field: "return_date", Label: "תאריך חזרה", Required: true},
		},
		Inputs: []InputDescriptor{
			{Field: "notes", Label: "סיכום חופשה", Kind: InputText, Placeholder: "איך הייתה החופשה?"},
		},
	},
}

// RulesFor returns the rule set for a transition. Unknown pairs get an
// empty rule set so a missing rule never blocks a move.
func RulesFor(from, to LeadStatus) StageRules {
	r, ok := stageRules[stagePair{from, to}]
	if !ok {
		return StageRules{Checks: []FieldCheck{}, Inputs: []InputDescriptor{}}
	}
	return r
}

// MissingRequired returns, in table order, the labels of required checks
// whose field is empty on the lead.
func MissingRequired(lead *Lead, from, to LeadStatus) []string {
	missing := []string{}
	for _, c := range RulesFor(from, to).Checks {
		if !c.Required {
			continue
		}
		if IsEmptyValue(lead.Field(c.Field)) {
			missing = append(missing, c.Label)
		}
	}
	return missing
}

// TransitionRules is one entry of the public requirement table.
type TransitionRules struct {
	From LeadStatus `json:"from"`
	To   LeadStatus `json:"to"`
	StageRules
}

// RequirementTable lists the rules of every adjacent forward pair in pipeline order.
func RequirementTable() []TransitionRules {
	out := make([]TransitionRules, 0, len(Pipeline)-1)
	for i := 0; i+1 < len(Pipeline); i++ {
		from, to := Pipeline[i], Pipeline[i+1]
		out = append(out, TransitionRules{From: from, To: to, StageRules: RulesFor(from, to)})
	}
	return out
}
