package domain

import "time"

// ============================================================
// Notifications
// ============================================================

// Notification types known to the presentation registry.
const (
	NotifFlightTomorrow   = "flight_tomorrow"
	NotifCustomerReturned = "customer_returned"
	NotifDocumentExpiring = "document_expiring"
	NotifPendingApproval  = "pending_approval"
	NotifUserApproved     = "user_approved"
	NotifUserRejected     = "user_rejected"
	NotifAdminMessage     = "admin_message"
)

// Correlation keys used inside Notification.Data.
const (
	DataLeadID = "leadId"
	DataUserID = "userId"
	DataDocID  = "docId"
)

// Notification is an actionable or informational event for one profile.
type Notification struct {
	ID        string         `json:"id" db:"id"`
	UserID    string         `json:"user_id" db:"user_id"`
	Type      string         `json:"type" db:"type"`
	Title     string         `json:"title" db:"title"`
	Body      string         `json:"body" db:"body"`
	IsRead    bool           `json:"is_read" db:"is_read"`
	Data      map[string]any `json:"data" db:"data"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
}

// NotificationPresentation is how a notification type is rendered.
type NotificationPresentation struct {
	Label string `json:"label"`
	Icon  string `json:"icon"`
	Color string `json:"color"`
}

// NotificationTypes is the type -> presentation registry.
var NotificationTypes = map[string]NotificationPresentation{
	NotifFlightTomorrow:   {Label: "טיסה מחר", Icon: "plane-takeoff", Color: "#3B82F6"},
	NotifCustomerReturned: {Label: "לקוח חזר", Icon: "plane-landing", Color: "#10B981"},
	NotifDocumentExpiring: {Label: "מסמך עומד לפוג", Icon: "file-warning", Color: "#F59E0B"},
	NotifPendingApproval:  {Label: "ממתין לאישור", Icon: "user-plus", Color: "#8B5CF6"},
	NotifUserApproved:     {Label: "החשבון אושר", Icon: "user-check", Color: "#10B981"},
	NotifUserRejected:     {Label: "הבקשה נדחתה", Icon: "user-x", Color: "#EF4444"},
	NotifAdminMessage:     {Label: "הודעת מנהל", Icon: "megaphone", Color: "#6B7280"},
}

// PresentationFor returns the registry entry for a type, with a generic fallback.
func PresentationFor(notifType string) NotificationPresentation {
	if p, ok := NotificationTypes[notifType]; ok {
		return p
	}
	return NotificationPresentation{Label: notifType, Icon: "bell", Color: "#9CA3AF"}
}

// NotificationView is a notification with its presentation attached.
type NotificationView struct {
	Notification
	Presentation NotificationPresentation `json:"presentation"`
}

// NotificationEvent is the tuple handed to the delivery boundary.
type NotificationEvent struct {
	NotificationID string         `json:"notification_id"`
	UserID         string         `json:"user_id"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Body           string         `json:"body,omitempty"`
	Data           map[string]any `json:"data,omitempty"`
}

// CreateNotificationRequest is the body of POST /v1/admin/notifications.
type CreateNotificationRequest struct {
	UserID string         `json:"user_id"`
	Type   string         `json:"type"`
	Title  string         `json:"title"`
	Body   string         `json:"body"`
	Data   map[string]any `json:"data"`
}

// GenerationReport summarises one proactive generator run.
type GenerationReport struct {
	UserID          string         `json:"user_id"`
	LeadsScanned    int            `json:"leads_scanned"`
	DocumentsScoped int            `json:"documents_scanned"`
	Created         map[string]int `json:"created"`
	Skipped         map[string]int `json:"skipped"`
	CheckFailures   int            `json:"check_failures"`
	InsertFailures  int            `json:"insert_failures"`
	GlobalDocuments bool           `json:"global_documents"`
	RanAt           time.Time      `json:"ran_at"`
}

// NotificationMetrics is the response of GET /v1/metrics/notifications.
type NotificationMetrics struct {
	Generated     map[string]int64 `json:"generated"`
	CheckFailures int64            `json:"check_failures"`
	Transitions   int64            `json:"transitions"`
	Rejected      int64            `json:"transitions_rejected"`
}
