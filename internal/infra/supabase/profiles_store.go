package supabase

import (
	"context"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

const profilesTable = "profiles"

func (c *Client) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetProfile")
	defer span.End()

	body, err := c.doGet(ctx, profilesTable+"?"+eq("id", id)+"&limit=1")
	if err != nil {
		return nil, wrap(profilesTable, err)
	}
	rows, err := decodeRows[domain.Profile](profilesTable, body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return &rows[0], nil
}

func (c *Client) ListProfiles(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListProfiles")
	defer span.End()

	path := profilesTable + "?select=*&order=created_at.desc"
	if filter.Status != "" {
		path += "&" + eq("status", string(filter.Status))
	}
	if filter.Role != "" {
		path += "&" + eq("role", string(filter.Role))
	}

	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, wrap(profilesTable, err)
	}
	return decodeRows[domain.Profile](profilesTable, body)
}

func (c *Client) UpdateProfile(ctx context.Context, id string, patch map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateProfile")
	defer span.End()

	data := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		data[k] = v
	}
	data["updated_at"] = timestamp(time.Now())

	if err := c.doPatch(ctx, profilesTable+"?"+eq("id", id), data); err != nil {
		return wrap(profilesTable, err)
	}
	return nil
}
