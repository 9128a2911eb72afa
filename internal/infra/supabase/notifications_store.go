package supabase

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

// ============================================================
// Notifications via PostgREST
// ============================================================

const notificationsTable = "notifications"

func (c *Client) ListNotifications(ctx context.Context, userID string, unreadOnly bool, limit int) ([]domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListNotifications")
	defer span.End()

	path := notificationsTable + "?select=*&" + eq("user_id", userID) + "&order=created_at.desc"
	if unreadOnly {
		path += "&is_read=eq.false"
	}
	if limit > 0 {
		path += fmt.Sprintf("&limit=%d", limit)
	}

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, wrap(notificationsTable, err)
	}
	return decodeRows[domain.Notification](notificationsTable, body)
}

// HasRecentNotification filters on the jsonb data column with the ->> operator.
func (c *Client) HasRecentNotification(ctx context.Context, userID, notifType, dataKey, dataValue string, since time.Time) (bool, error) {
	ctx, span := tracer.Start(ctx, "Supabase.HasRecentNotification")
	defer span.End()

	path := fmt.Sprintf("%s?select=id&%s&%s&%s&created_at=gte.%s&limit=1",
		notificationsTable,
		eq("user_id", userID),
		eq("type", notifType),
		eq("data->>"+dataKey, dataValue),
		url.QueryEscape(timestamp(since)),
	)
	body, err := c.doGet(ctx, path)
	if err != nil {
		return false, wrap(notificationsTable, err)
	}
	rows, err := decodeRows[struct {
		ID string `json:"id"`
	}](notificationsTable, body)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func (c *Client) CreateNotification(ctx context.Context, n *domain.Notification) (*domain.Notification, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateNotification")
	defer span.End()

	data := map[string]any{
		"user_id": n.UserID,
		"type":    n.Type,
		"title":   n.Title,
		"body":    n.Body,
		"is_read": false,
		"data":    n.Data,
	}
	if n.Data == nil {
		data["data"] = map[string]any{}
	}

	body, err := c.doPost(ctx, notificationsTable, data)
	if err != nil {
		return nil, wrap(notificationsTable, err)
	}
	rows, err := decodeRows[domain.Notification](notificationsTable, body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert notification: empty representation")
	}
	return &rows[0], nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkNotificationRead")
	defer span.End()

	path := notificationsTable + "?" + eq("id", id) + "&" + eq("user_id", userID)
	if err := c.doPatch(ctx, path, map[string]any{"is_read": true}); err != nil {
		return wrap(notificationsTable, err)
	}
	return nil
}

func (c *Client) MarkAllNotificationsRead(ctx context.Context, userID string) error {
	ctx, span := tracer.Start(ctx, "Supabase.MarkAllNotificationsRead")
	defer span.End()

	path := notificationsTable + "?" + eq("user_id", userID) + "&is_read=eq.false"
	if err := c.doPatch(ctx, path, map[string]any{"is_read": true}); err != nil {
		return wrap(notificationsTable, err)
	}
	return nil
}

func (c *Client) DeleteNotification(ctx context.Context, userID, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteNotification")
	defer span.End()

	if err := c.doDelete(ctx, notificationsTable+"?"+eq("id", id)+"&"+eq("user_id", userID)); err != nil {
		return wrap(notificationsTable, err)
	}
	return nil
}

func (c *Client) DeleteNotificationsByData(ctx context.Context, notifType, dataKey, dataValue string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteNotificationsByData")
	defer span.End()

	path := notificationsTable + "?" + eq("type", notifType) + "&" + eq("data->>"+dataKey, dataValue)
	if err := c.doDelete(ctx, path); err != nil {
		return wrap(notificationsTable, err)
	}
	return nil
}
