package domain

import (
	"math"
	"slices"
	"time"
)

// ============================================================
// Documents
// ============================================================

// DocumentType classifies an uploaded file.
type DocumentType string

const (
	DocPassport DocumentType = "passport"
	DocVisa     DocumentType = "visa"
	DocTicket   DocumentType = "ticket"
	DocVoucher  DocumentType = "voucher"
	DocContract DocumentType = "contract"
	DocOther    DocumentType = "other"
)

var documentTypes = []DocumentType{DocPassport, DocVisa, DocTicket, DocVoucher, DocContract, DocOther}

// Valid reports whether t is a known document type.
func (t DocumentType) Valid() bool {
	return slices.Contains(documentTypes, t)
}

// Document is a file attached to exactly one lead. Documents are created
// and deleted, never updated in place.
type Document struct {
	ID          string       `json:"id" db:"id"`
	LeadID      string       `json:"lead_id" db:"lead_id"`
	Type        DocumentType `json:"type" db:"type"`
	Name        string       `json:"name" db:"name"`
	ExpiryDate  string       `json:"expiry_date" db:"expiry_date"`
	URL         string       `json:"url" db:"url"`
	StoragePath string       `json:"storage_path" db:"storage_path"`
	UploadedAt  time.Time    `json:"uploaded_at" db:"uploaded_at"`
}

// ExpiryState is the classifier output for a document.
type ExpiryState string

const (
	ExpiryExpired ExpiryState = "expired"
	ExpiryWarning ExpiryState = "warning"
	ExpiryOK      ExpiryState = "ok"
	ExpiryNone    ExpiryState = "none"
)

// DaysRemaining is floor((expiry - now) / 1 day).
func DaysRemaining(expiry, now time.Time) int {
	return int(math.Floor(expiry.Sub(now).Hours() / 24))
}

// ClassifyExpiry maps an optional expiry date to its state. warningDays is
// the exclusive upper bound of the warning band.
func ClassifyExpiry(expiry *time.Time, now time.Time, warningDays int) ExpiryState {
	if expiry == nil {
		return ExpiryNone
	}
	days := DaysRemaining(*expiry, now)
	switch {
	case days < 0:
		return ExpiryExpired
	case days < warningDays:
		return ExpiryWarning
	default:
		return ExpiryOK
	}
}

// ParseDate parses a "2006-01-02" calendar date (longer timestamps are
// truncated) at midnight in loc. Empty input yields nil.
func ParseDate(s string, loc *time.Location) (*time.Time, error) {
	s = DateOnly(s)
	if s == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// DocumentView is a document with its classifier state.
type DocumentView struct {
	Document
	ExpiryState   ExpiryState `json:"expiry_state"`
	DaysRemaining *int        `json:"days_remaining,omitempty"`
}

// UploadDocumentRequest carries the metadata of a multipart upload.
type UploadDocumentRequest struct {
	LeadID      string
	Type        DocumentType
	Name        string
	ExpiryDate  string
	FileName    string
	ContentType string
	Size        int64
}

// ExpirySummary aggregates document expiry across a set of leads.
// Upcoming counts documents expiring within the wider upcoming window and
// is kept apart from the per-document warning state.
type ExpirySummary struct {
	Expired      int            `json:"expired"`
	Warning      int            `json:"warning"`
	Upcoming     int            `json:"upcoming"`
	WarningDays  int            `json:"warning_days"`
	UpcomingDays int            `json:"upcoming_days"`
	Documents    []DocumentView `json:"documents"`
}
