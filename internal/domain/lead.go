// Package domain defines the core business entities of the travel CRM.
// These models are independent of the record store and represent the
// canonical data structures used throughout the service.
package domain

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"
)

// ============================================================
// Pipeline status vocabulary
// ============================================================

// LeadStatus is one stage of the booking pipeline. The string values are
// persisted and must not be renamed without migrating stored rows.
type LeadStatus string

const (
	StatusLead         LeadStatus = "lead"
	StatusProposalSent LeadStatus = "proposal_sent"
	StatusPaid         LeadStatus = "paid"
	StatusFlying       LeadStatus = "flying"
	StatusReturned     LeadStatus = "returned"
)

// Pipeline is the total order of stages. Adjacency is index based.
var Pipeline = []LeadStatus{
	StatusLead,
	StatusProposalSent,
	StatusPaid,
	StatusFlying,
	StatusReturned,
}

// StatusMeta is the display metadata of a stage.
type StatusMeta struct {
	Status LeadStatus `json:"status"`
	Label  string     `json:"label"`
	Color  string     `json:"color"`
	Order  int        `json:"order"`
}

var statusMeta = map[LeadStatus]StatusMeta{
	StatusLead:         {Status: StatusLead, Label: "ליד", Color: "#3B82F6", Order: 0},
	StatusProposalSent: {Status: StatusProposalSent, Label: "הצעה נשלחה", Color: "#F59E0B", Order: 1},
	StatusPaid:         {Status: StatusPaid, Label: "שולם", Color: "#10B981", Order: 2},
	StatusFlying:       {Status: StatusFlying, Label: "בטיסה", Color: "#8B5CF6", Order: 3},
	StatusReturned:     {Status: StatusReturned, Label: "חזר", Color: "#6B7280", Order: 4},
}

// Index returns the position of s in the pipeline, or -1 when unknown.
func (s LeadStatus) Index() int {
	return slices.Index(Pipeline, s)
}

// Valid reports whether s is part of the pipeline.
func (s LeadStatus) Valid() bool {
	return s.Index() >= 0
}

// Next returns the immediately following stage. ok is false at the terminal stage.
func (s LeadStatus) Next() (LeadStatus, bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(Pipeline) {
		return "", false
	}
	return Pipeline[i+1], true
}

// Prev returns the immediately preceding stage. ok is false at the first stage.
func (s LeadStatus) Prev() (LeadStatus, bool) {
	i := s.Index()
	if i <= 0 {
		return "", false
	}
	return Pipeline[i-1], true
}

// IsTerminal reports whether s has no forward edge.
func (s LeadStatus) IsTerminal() bool {
	return s == Pipeline[len(Pipeline)-1]
}

// Meta returns display metadata; unknown statuses get their raw value as label.
func (s LeadStatus) Meta() StatusMeta {
	if m, ok := statusMeta[s]; ok {
		return m
	}
	return StatusMeta{Status: s, Label: string(s), Color: "#9CA3AF", Order: -1}
}

// Statuses returns the metadata of every stage in pipeline order.
func Statuses() []StatusMeta {
	out := make([]StatusMeta, 0, len(Pipeline))
	for _, s := range Pipeline {
		out = append(out, statusMeta[s])
	}
	return out
}

// ============================================================
// Lead
// ============================================================

// Lead sources (acquisition channel).
const (
	SourceWebsite   = "website"
	SourceFacebook  = "facebook"
	SourceInstagram = "instagram"
	SourceWhatsApp  = "whatsapp"
	SourceReferral  = "referral"
	SourcePhone     = "phone"
	SourceWalkIn    = "walk_in"
	SourceOther     = "other"
)

// LeadSources lists the accepted acquisition channels.
var LeadSources = []string{
	SourceWebsite, SourceFacebook, SourceInstagram, SourceWhatsApp,
	SourceReferral, SourcePhone, SourceWalkIn, SourceOther,
}

// LeadTags lists the accepted tag labels.
var LeadTags = []string{"vip", "honeymoon", "family", "group", "repeat_customer", "urgent"}

// Lead is one prospective or active travel booking.
// Dates are calendar dates in "2006-01-02" form, empty when unset.
type Lead struct {
	ID     string     `json:"id" db:"id"`
	UserID string     `json:"user_id" db:"user_id"`
	Status LeadStatus `json:"status" db:"status"`

	// Contact
	Name  string `json:"name" db:"name"`
	Phone string `json:"phone" db:"phone"`
	Email string `json:"email" db:"email"`

	// Trip
	Destination   string `json:"destination" db:"destination"`
	DepartureDate string `json:"departure_date" db:"departure_date"`
	ReturnDate    string `json:"return_date" db:"return_date"`
	VacationType  string `json:"vacation_type" db:"vacation_type"`
	HotelLevel    string `json:"hotel_level" db:"hotel_level"`
	BoardBasis    string `json:"board_basis" db:"board_basis"`
	Adults        int    `json:"adults" db:"adults"`
	Children      int    `json:"children" db:"children"`
	Infants       int    `json:"infants" db:"infants"`

	// Commercial
	Budget        *float64 `json:"budget" db:"budget"`
	TotalPrice    *float64 `json:"total_price" db:"total_price"`
	Commission    *float64 `json:"commission" db:"commission"`
	DepositAmount *float64 `json:"deposit_amount" db:"deposit_amount"`
	DepositPaid   bool     `json:"deposit_paid" db:"deposit_paid"`
	BalanceAmount *float64 `json:"balance_amount" db:"balance_amount"`
	BalancePaid   bool     `json:"balance_paid" db:"balance_paid"`

	// Free-form
	Notes  string   `json:"notes" db:"notes"`
	Tags   []string `json:"tags" db:"tags"`
	Source string   `json:"source" db:"source"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// LeadFields lists the persisted column names that may appear in an update patch.
var LeadFields = []string{
	"status", "name", "phone", "email",
	"destination", "departure_date", "return_date", "vacation_type", "hotel_level", "board_basis",
	"adults", "children", "infants",
	"budget", "total_price", "commission", "deposit_amount", "deposit_paid", "balance_amount", "balance_paid",
	"notes", "tags", "source",
}

// IsLeadField reports whether name is a patchable lead column.
func IsLeadField(name string) bool {
	return slices.Contains(LeadFields, name)
}

// FieldKind is the storage shape of a lead column.
type FieldKind int

const (
	FieldText FieldKind = iota
	FieldInt
	FieldNumber
	FieldBool
	FieldDate
	FieldTags
)

// LeadFieldKind returns the shape of a patchable column. Unknown names are text.
func LeadFieldKind(name string) FieldKind {
	switch name {
	case "adults", "children", "infants":
		return FieldInt
	case "budget", "total_price", "commission", "deposit_amount", "balance_amount":
		return FieldNumber
	case "deposit_paid", "balance_paid":
		return FieldBool
	case "departure_date", "return_date":
		return FieldDate
	case "tags":
		return FieldTags
	}
	return FieldText
}

// Field returns the value stored under the given column name, nil when
// the column is unknown or holds no value.
func (l *Lead) Field(name string) any {
	switch name {
	case "id":
		return l.ID
	case "user_id":
		return l.UserID
	case "status":
		return string(l.Status)
	case "name":
		return l.Name
	case "phone":
		return l.Phone
	case "email":
		return l.Email
	case "destination":
		return l.Destination
	case "departure_date":
		return l.DepartureDate
	case "return_date":
		return l.ReturnDate
	case "vacation_type":
		return l.VacationType
	case "hotel_level":
		return l.HotelLevel
	case "board_basis":
		return l.BoardBasis
	case "adults":
		return l.Adults
	case "children":
		return l.Children
	case "infants":
		return l.Infants
	case "budget":
		return deref(l.Budget)
	case "total_price":
		return deref(l.TotalPrice)
	case "commission":
		return deref(l.Commission)
	case "deposit_amount":
		return deref(l.DepositAmount)
	case "deposit_paid":
		return l.DepositPaid
	case "balance_amount":
		return deref(l.BalanceAmount)
	case "balance_paid":
		return l.BalancePaid
	case "notes":
		return l.Notes
	case "tags":
		return l.Tags
	case "source":
		return l.Source
	}
	return nil
}

func deref(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

// IsEmptyValue reports whether v counts as "not filled in": nil, blank
// strings, false, zero numbers and empty collections.
func IsEmptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case int:
		return t == 0
	case int64:
		return t == 0
	case float64:
		return t == 0
	case *float64:
		return t == nil || *t == 0
	case []string:
		return len(t) == 0
	}
	return false
}

// DateOnly trims a timestamp-like value down to its "2006-01-02" prefix.
func DateOnly(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

// LeadFilter narrows a lead listing. Empty fields are ignored.
type LeadFilter struct {
	UserID string
	Status LeadStatus
	Search string
	Limit  int
}

// CreateLeadRequest is the body of POST /v1/leads.
type CreateLeadRequest struct {
	Name          string   `json:"name"`
	Phone         string   `json:"phone"`
	Email         string   `json:"email"`
	Destination   string   `json:"destination"`
	DepartureDate string   `json:"departure_date"`
	ReturnDate    string   `json:"return_date"`
	VacationType  string   `json:"vacation_type"`
	HotelLevel    string   `json:"hotel_level"`
	BoardBasis    string   `json:"board_basis"`
	Adults        int      `json:"adults"`
	Children      int      `json:"children"`
	Infants       int      `json:"infants"`
	Budget        *float64 `json:"budget"`
	Notes         string   `json:"notes"`
	Tags          []string `json:"tags"`
	Source        string   `json:"source"`
}

// IsDateField reports whether the column holds a calendar date.
func IsDateField(name string) bool {
	return LeadFieldKind(name) == FieldDate
}

// WithPatch returns a copy of the lead with patch merged over its JSON
// representation. A value of the wrong type fails the whole merge.
// Identity and timestamps are carried over from the receiver.
func (l *Lead) WithPatch(patch map[string]any) (Lead, error) {
	raw, err := json.Marshal(l)
	if err != nil {
		return Lead{}, err
	}
	merged := map[string]any{}
	if err := json.Unmarshal(raw, &merged); err != nil {
		return Lead{}, err
	}
	for k, v := range patch {
		merged[k] = v
	}
	raw, err = json.Marshal(merged)
	if err != nil {
		return Lead{}, fmt.Errorf("encode patch: %w", err)
	}
	var out Lead
	if err := json.Unmarshal(raw, &out); err != nil {
		return Lead{}, fmt.Errorf("apply patch: %w", err)
	}
	out.ID = l.ID
	out.UserID = l.UserID
	out.CreatedAt = l.CreatedAt
	out.UpdatedAt = l.UpdatedAt
	return out, nil
}

// Row renders the lead as a column map for inserts. Unset dates and
// amounts become nil so they are stored as NULL.
func (l *Lead) Row() map[string]any {
	row := map[string]any{
		"user_id": l.UserID,
		"status":  string(l.Status),
	}
	for _, name := range LeadFields {
		if name == "status" {
			continue
		}
		v := l.Field(name)
		if IsDateField(name) && v == "" {
			v = nil
		}
		if name == "tags" && l.Tags == nil {
			v = []string{}
		}
		row[name] = v
	}
	if l.ID != "" {
		row["id"] = l.ID
	}
	return row
}
