package service

import (
	"context"
	"strings"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var notifTracer = otel.Tracer("service/notifications")

// Notifier stores a notification and hands it to the delivery boundary.
// Delivery failures never fail the caller; the in-app record is the
// source of truth.
type Notifier struct {
	store      port.NotificationStore
	dispatcher port.NotificationDispatcher
	logger     *zap.Logger
}

// NewNotifier creates a notifier.
func NewNotifier(store port.NotificationStore, dispatcher port.NotificationDispatcher, logger *zap.Logger) *Notifier {
	return &Notifier{store: store, dispatcher: dispatcher, logger: logger}
}

// Notify inserts n and dispatches the created record.
func (n *Notifier) Notify(ctx context.Context, notif *domain.Notification) (*domain.Notification, error) {
	created, err := n.store.CreateNotification(ctx, notif)
	if err != nil {
		return nil, err
	}

	event := domain.NotificationEvent{
		NotificationID: created.ID,
		UserID:         created.UserID,
		Type:           created.Type,
		Title:          created.Title,
		Body:           created.Body,
		Data:           created.Data,
	}
	if err := n.dispatcher.Dispatch(ctx, event); err != nil {
		n.logger.Warn("notification dispatch failed",
			zap.String("notification_id", created.ID),
			zap.String("type", created.Type),
			zap.Error(err),
		)
	}
	return created, nil
}

// NotificationService serves a user's in-app notification list.
type NotificationService struct {
	store    port.NotificationStore
	profiles port.ProfileStore
	notifier *Notifier
	logger   *zap.Logger
}

// NewNotificationService creates a notification service.
func NewNotificationService(store port.NotificationStore, profiles port.ProfileStore, notifier *Notifier, logger *zap.Logger) *NotificationService {
	return &NotificationService{store: store, profiles: profiles, notifier: notifier, logger: logger}
}

// DefaultNotificationLimit caps a listing when the caller sends no limit.
const DefaultNotificationLimit = 50

func (s *NotificationService) List(ctx context.Context, profile *domain.Profile, unreadOnly bool, limit int) ([]domain.NotificationView, error) {
	ctx, span := notifTracer.Start(ctx, "NotificationService.List")
	defer span.End()

	if limit <= 0 || limit > 200 {
		limit = DefaultNotificationLimit
	}
	rows, err := s.store.ListNotifications(ctx, profile.ID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}

	out := make([]domain.NotificationView, 0, len(rows))
	for _, n := range rows {
		out = append(out, domain.NotificationView{Notification: n, Presentation: domain.PresentationFor(n.Type)})
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, profile *domain.Profile, id string) error {
	ctx, span := notifTracer.Start(ctx, "NotificationService.MarkRead")
	defer span.End()

	return s.store.MarkNotificationRead(ctx, profile.ID, id)
}

func (s *NotificationService) MarkAllRead(ctx context.Context, profile *domain.Profile) error {
	ctx, span := notifTracer.Start(ctx, "NotificationService.MarkAllRead")
	defer span.End()

	return s.store.MarkAllNotificationsRead(ctx, profile.ID)
}

func (s *NotificationService) Delete(ctx context.Context, profile *domain.Profile, id string) error {
	ctx, span := notifTracer.Start(ctx, "NotificationService.Delete")
	defer span.End()

	return s.store.DeleteNotification(ctx, profile.ID, id)
}

// Create lets an admin send a notification to one user. Type defaults to admin_message.
func (s *NotificationService) Create(ctx context.Context, actor *domain.Profile, req domain.CreateNotificationRequest) (*domain.NotificationView, error) {
	ctx, span := notifTracer.Start(ctx, "NotificationService.Create")
	defer span.End()

	if strings.TrimSpace(req.UserID) == "" {
		return nil, &domain.ErrValidation{Field: "user_id", Message: "required"}
	}
	if strings.TrimSpace(req.Title) == "" {
		return nil, &domain.ErrValidation{Field: "title", Message: "required"}
	}
	if req.Type == "" {
		req.Type = domain.NotifAdminMessage
	}
	if _, known := domain.NotificationTypes[req.Type]; !known {
		return nil, &domain.ErrValidation{Field: "type", Message: "unknown notification type"}
	}
	if _, err := s.profiles.GetProfile(ctx, req.UserID); err != nil {
		return nil, err
	}

	data := req.Data
	if data == nil {
		data = map[string]any{}
	}
	data["sentBy"] = actor.ID

	created, err := s.notifier.Notify(ctx, &domain.Notification{
		UserID: req.UserID,
		Type:   req.Type,
		Title:  req.Title,
		Body:   req.Body,
		Data:   data,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("admin notification sent",
		zap.String("actor_id", actor.ID),
		zap.String("user_id", req.UserID),
		zap.String("type", req.Type),
	)
	return &domain.NotificationView{Notification: *created, Presentation: domain.PresentationFor(created.Type)}, nil
}
