package supabase

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/boddenberg/travel-crm-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Leads: CRUD via PostgREST
// ============================================================

const leadsTable = "leads"

func (c *Client) ListLeads(ctx context.Context, filter domain.LeadFilter) ([]domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListLeads")
	defer span.End()

	q := []string{"select=*", "order=created_at.desc"}
	if filter.UserID != "" {
		q = append(q, eq("user_id", filter.UserID))
	}
	if filter.Status != "" {
		q = append(q, eq("status", string(filter.Status)))
	}
	if s := searchTerm(filter.Search); s != "" {
		pattern := "*" + s + "*"
		or := fmt.Sprintf("(name.ilike.%[1]s,phone.ilike.%[1]s,email.ilike.%[1]s,destination.ilike.%[1]s)", pattern)
		q = append(q, "or="+url.QueryEscape(or))
	}
	if filter.Limit > 0 {
		q = append(q, fmt.Sprintf("limit=%d", filter.Limit))
	}

	body, err := c.doGet(ctx, leadsTable+"?"+strings.Join(q, "&"))
	if err != nil {
		return nil, wrap(leadsTable, err)
	}
	return decodeRows[domain.Lead](leadsTable, body)
}

func (c *Client) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetLead")
	defer span.End()

	body, err := c.doGet(ctx, leadsTable+"?"+eq("id", id)+"&limit=1")
	if err != nil {
		return nil, wrap(leadsTable, err)
	}
	rows, err := decodeRows[domain.Lead](leadsTable, body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	return &rows[0], nil
}

func (c *Client) CreateLead(ctx context.Context, lead *domain.Lead) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateLead")
	defer span.End()

	body, err := c.doPost(ctx, leadsTable, lead.Row())
	if err != nil {
		return nil, wrap(leadsTable, err)
	}
	rows, err := decodeRows[domain.Lead](leadsTable, body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert lead: empty representation")
	}
	c.logger.Info("lead created", zap.String("lead_id", rows[0].ID), zap.String("user_id", rows[0].UserID))
	return &rows[0], nil
}

// UpdateLead applies patch as a single PATCH, so PostgREST either stores
// every column or none.
func (c *Client) UpdateLead(ctx context.Context, id string, patch map[string]any) error {
	ctx, span := tracer.Start(ctx, "Supabase.UpdateLead")
	defer span.End()

	data := make(map[string]any, len(patch)+1)
	for k, v := range patch {
		data[k] = v
	}
	data["updated_at"] = timestamp(time.Now())

	if err := c.doPatch(ctx, leadsTable+"?"+eq("id", id), data); err != nil {
		return wrap(leadsTable, err)
	}
	return nil
}

// DeleteLead removes the lead; documents cascade through the foreign key.
func (c *Client) DeleteLead(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteLead")
	defer span.End()

	if err := c.doDelete(ctx, leadsTable+"?"+eq("id", id)); err != nil {
		return wrap(leadsTable, err)
	}
	return nil
}

// searchTerm strips characters that carry meaning in PostgREST logic trees.
func searchTerm(s string) string {
	return strings.TrimSpace(strings.Map(func(r rune) rune {
		switch r {
		case ',', '(', ')', '*', '"', '\\':
			return -1
		}
		return r
	}, s))
}
