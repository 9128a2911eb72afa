package service

import (
	"context"
	"fmt"

	"github.com/boddenberg/travel-crm-go/internal/domain"
	"github.com/boddenberg/travel-crm-go/internal/infra/mail"
	"github.com/boddenberg/travel-crm-go/internal/port"

	"go.uber.org/zap"
)

// DeliveryService emails queued notification events to their recipients.
type DeliveryService struct {
	profiles port.ProfileStore
	mailer   port.Mailer
	logger   *zap.Logger
}

// NewDeliveryService creates a delivery service.
func NewDeliveryService(profiles port.ProfileStore, mailer port.Mailer, logger *zap.Logger) *DeliveryService {
	return &DeliveryService{profiles: profiles, mailer: mailer, logger: logger}
}

// Deliver sends one event. Recipients without an email address are
// skipped without error so the message is not dead-lettered.
func (s *DeliveryService) Deliver(ctx context.Context, event domain.NotificationEvent) error {
	profile, err := s.profiles.GetProfile(ctx, event.UserID)
	if err != nil {
		return fmt.Errorf("load recipient %s: %w", event.UserID, err)
	}
	if profile.Email == "" {
		s.logger.Debug("notification recipient has no email", zap.String("user_id", event.UserID))
		return nil
	}

	name := profile.FullName
	if name == "" {
		name = profile.Email
	}
	subject, html, err := mail.RenderNotification(event, name)
	if err != nil {
		return err
	}
	if err := s.mailer.Send(profile.Email, subject, html); err != nil {
		return err
	}

	s.logger.Info("notification emailed",
		zap.String("notification_id", event.NotificationID),
		zap.String("type", event.Type),
		zap.String("user_id", event.UserID),
	)
	return nil
}
