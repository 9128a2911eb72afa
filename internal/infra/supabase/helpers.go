package supabase

import (
	"context"
	"net/http"
	"time"
)

// ============================================================
// HTTP helpers for GET, POST, PATCH, DELETE
// ============================================================

func (c *Client) doGet(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil, "")
}

// doPost inserts a row and returns the stored representation.
func (c *Client) doPost(ctx context.Context, table string, data map[string]any) ([]byte, error) {
	return c.do(ctx, http.MethodPost, table, data, "return=representation")
}

func (c *Client) doPatch(ctx context.Context, path string, data map[string]any) error {
	_, err := c.do(ctx, http.MethodPatch, path, data, "return=minimal")
	return err
}

func (c *Client) doDelete(ctx context.Context, path string) error {
	_, err := c.do(ctx, http.MethodDelete, path, nil, "return=minimal")
	return err
}

func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
