package supabase

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boddenberg/travel-crm-go/internal/infra/resilience"

	"go.uber.org/zap"
)

// ============================================================
// Supabase Storage: document files
// ============================================================

// Storage implements port.FileStorage on a Supabase Storage bucket.
type Storage struct {
	c *Client
}

// NewStorage binds file storage to the client's bucket.
func NewStorage(c *Client) *Storage {
	return &Storage{c: c}
}

func (s *Storage) objectURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.c.baseURL, s.c.bucket, strings.TrimLeft(path, "/"))
}

// PublicURL is the unauthenticated download location of an object.
func (s *Storage) PublicURL(path string) string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.c.baseURL, s.c.bucket, strings.TrimLeft(path, "/"))
}

// Upload stores the object under path and returns its public URL. The body
// is buffered so the request can be retried.
func (s *Storage) Upload(ctx context.Context, path, contentType string, body io.Reader) (string, error) {
	ctx, span := tracer.Start(ctx, "Supabase.Storage.Upload")
	defer span.End()

	raw, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	err = resilience.Guard(ctx, s.c.cb, s.c.cfg, func() error {
		_, err := s.c.send(ctx, http.MethodPost, s.objectURL(path), raw, contentType, "")
		return err
	})
	if err != nil {
		return "", wrap("storage", err)
	}

	s.c.logger.Info("document file uploaded",
		zap.String("bucket", s.c.bucket),
		zap.String("path", path),
		zap.Int("bytes", len(raw)),
	)
	return s.PublicURL(path), nil
}

// Remove deletes the object at path.
func (s *Storage) Remove(ctx context.Context, path string) error {
	ctx, span := tracer.Start(ctx, "Supabase.Storage.Remove")
	defer span.End()

	raw, err := json.Marshal(map[string][]string{"prefixes": {path}})
	if err != nil {
		return err
	}
	target := fmt.Sprintf("%s/storage/v1/object/%s", s.c.baseURL, s.c.bucket)

	err = resilience.Guard(ctx, s.c.cb, s.c.cfg, func() error {
		_, err := s.c.send(ctx, http.MethodDelete, target, raw, "application/json", "")
		return err
	})
	return wrap("storage", err)
}
