package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

var notificationColumns = []string{
	"id::text AS id",
	"user_id::text AS user_id",
	"type", "title", "body", "is_read", "data", "created_at",
}

func (s *Store) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListNotifications")
	defer span.End()

	q := s.sb.Select(notificationColumns...).
		From("notifications").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	if unreadOnly {
		q = q.Where(sq.Eq{"is_read": false})
	}
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list notifications: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "notification", userID)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Notification])
	if err != nil {
		return nil, mapError(err, "notification", userID)
	}
	return out, nil
}

func (s *Store) HasRecentNotification(ctx context.Context, userID, notifType, dataKey, dataValue string, since time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "Postgres.HasRecentNotification")
	defer span.End()

	inner := s.sb.Select("1").
		From("notifications").
		Where(sq.Eq{"user_id": userID, "type": notifType}).
		Where("data->>? = ?", dataKey, dataValue).
		Where(sq.GtOrEq{"created_at": since})
	innerSQL, args, err := inner.ToSql()
	if err != nil {
		return false, fmt.Errorf("build notification lookup: %w", err)
	}

	var exists bool
	if err := s.pool.QueryRow(ctx, "SELECT EXISTS("+innerSQL+")", args...).Scan(&exists); err != nil {
		return false, mapError(err, "notification", userID)
	}
	return exists, nil
}

func (s *Store) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateNotification")
	defer span.End()

	data := n.Data
	if data == nil {
		data = map[string]any{}
	}
	query, args, err := s.sb.Insert("notifications").
		SetMap(map[string]any{
			"user_id": n.UserID,
			"type":    n.Type,
			"title":   n.Title,
			"body":    n.Body,
			"data":    data,
		}).
		Suffix("RETURNING " + strings.Join(notificationColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert notification: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "notification", n.UserID)
	}
	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.Notification])
	if err != nil {
		return nil, mapError(err, "notification", n.UserID)
	}
	return created, nil
}

func (s *Store) MarkNotificationRead(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.MarkNotificationRead")
	defer span.End()

	query, args, err := s.sb.Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"id": id, "user_id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark read: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "notification", id)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Postgres.MarkAllNotificationsRead")
	defer span.End()

	query, args, err := s.sb.Update("notifications").
		Set("is_read", true).
		Where(sq.Eq{"user_id": userID, "is_read": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark all read: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return mapError(err, "notification", userID)
	}
	return nil
}

func (s *Store) DeleteNotification(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteNotification")
	defer span.End()

	query, args, err := s.sb.Delete("notifications").Where(sq.Eq{"id": id, "user_id": userID}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete notification: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "notification", id)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "notification", ID: id}
	}
	return nil
}

func (s *Store) DeleteNotificationsByData(ctx context.Context, notifType, dataKey, dataValue string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteNotificationsByData")
	defer span.End()

	query, args, err := s.sb.Delete("notifications").
		Where(sq.Eq{"type": notifType}).
		Where("data->>? = ?", dataKey, dataValue).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete notifications: %w", err)
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return mapError(err, "notification", dataValue)
	}
	return nil
}
