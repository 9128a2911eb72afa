// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the service
// layer from the concrete record store, file storage and delivery channels.
package port

import (
	"context"
	"io"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

// Cache provides generic caching with TTL.
type Cache[T any] interface {
	Get(key string) (T, bool)
	Set(key string, value T)
	Delete(key string)
}

// LeadStore persists leads. Implementations never partially apply a patch.
type LeadStore interface {
	ListLeads(ctx context.Context, filter domain.LeadFilter) ([]domain.Lead, error)
	GetLead(ctx context.Context, id string) (*domain.Lead, error)
	CreateLead(ctx context.Context, lead *domain.Lead) (*domain.Lead, error)
	UpdateLead(ctx context.Context, id string, patch map[string]any) error
	DeleteLead(ctx context.Context, id string) error
}

// DocumentStore persists document records. Expiry bounds are inclusive
// "2006-01-02" calendar dates.
type DocumentStore interface {
	ListDocuments(ctx context.Context, leadID string) ([]domain.Document, error)
	ListDocumentsForLeads(ctx context.Context, leadIDs []string) ([]domain.Document, error)
	ListDocumentsExpiring(ctx context.Context, from, to string) ([]domain.Document, error)
	ListDocumentsExpiringForLeads(ctx context.Context, leadIDs []string, from, to string) ([]domain.Document, error)
	GetDocument(ctx context.Context, id string) (*domain.Document, error)
	CreateDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error)
	DeleteDocument(ctx context.Context, id string) error
}

// NotificationStore persists notifications.
type NotificationStore interface {
	ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error)
	// HasRecentNotification reports whether userID already holds a notification
	// of notifType whose data[dataKey] equals dataValue, created at or after since.
	HasRecentNotification(ctx context.Context, userID, notifType, dataKey, dataValue string, since time.Time) (bool, error)
	CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	MarkNotificationRead(ctx context.Context, userID, id string) error
	MarkAllNotificationsRead(ctx context.Context, userID string) error
	DeleteNotification(ctx context.Context, userID, id string) error
	// DeleteNotificationsByData removes every notification of notifType
	// correlated by data[dataKey] == dataValue, across all recipients.
	DeleteNotificationsByData(ctx context.Context, notifType, dataKey, dataValue string) error
}

// ProfileStore persists system users.
type ProfileStore interface {
	GetProfile(ctx context.Context, id string) (*domain.Profile, error)
	ListProfiles(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error)
	UpdateProfile(ctx context.Context, id string, patch map[string]any) error
}

// RecordStore bundles every entity store of one backend.
type RecordStore interface {
	LeadStore
	DocumentStore
	NotificationStore
	ProfileStore
	Ping(ctx context.Context) error
}

// FileStorage keeps uploaded document files.
type FileStorage interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader) (url string, err error)
	Remove(ctx context.Context, path string) error
}

// NotificationDispatcher hands created notifications to the delivery boundary.
type NotificationDispatcher interface {
	Dispatch(ctx context.Context, event domain.NotificationEvent) error
}

// Mailer sends outbound email.
type Mailer interface {
	Send(to, subject, htmlBody string) error
}
