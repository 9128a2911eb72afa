package supabase

import (
	"context"
	"fmt"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

// ============================================================
// Lead documents via PostgREST
// ============================================================

const documentsTable = "documents"

func (c *Client) ListDocuments(ctx context.Context, leadID string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDocuments")
	defer span.End()

	body, err := c.doGet(ctx, documentsTable+"?select=*&"+eq("lead_id", leadID)+"&order=uploaded_at.desc")
	if err != nil {
		return nil, wrap(documentsTable, err)
	}
	return decodeRows[domain.Document](documentsTable, body)
}

func (c *Client) ListDocumentsForLeads(ctx context.Context, leadIDs []string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDocumentsForLeads")
	defer span.End()

	if len(leadIDs) == 0 {
		return []domain.Document{}, nil
	}
	body, err := c.doGet(ctx, documentsTable+"?select=*&"+inList("lead_id", leadIDs)+"&order=expiry_date.asc")
	if err != nil {
		return nil, wrap(documentsTable, err)
	}
	return decodeRows[domain.Document](documentsTable, body)
}

func (c *Client) ListDocumentsExpiring(ctx context.Context, from, to string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDocumentsExpiring")
	defer span.End()

	path := fmt.Sprintf("%s?select=*&expiry_date=gte.%s&expiry_date=lte.%s&order=expiry_date.asc", documentsTable, from, to)
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, wrap(documentsTable, err)
	}
	return decodeRows[domain.Document](documentsTable, body)
}

func (c *Client) ListDocumentsExpiringForLeads(ctx context.Context, leadIDs []string, from, to string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.ListDocumentsExpiringForLeads")
	defer span.End()

	if len(leadIDs) == 0 {
		return []domain.Document{}, nil
	}
	path := fmt.Sprintf("%s?select=*&%s&expiry_date=gte.%s&expiry_date=lte.%s&order=expiry_date.asc",
		documentsTable, inList("lead_id", leadIDs), from, to)
	body, err := c.doGet(ctx, path)
	if err != nil {
		return nil, wrap(documentsTable, err)
	}
	return decodeRows[domain.Document](documentsTable, body)
}

func (c *Client) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.GetDocument")
	defer span.End()

	body, err := c.doGet(ctx, documentsTable+"?"+eq("id", id)+"&limit=1")
	if err != nil {
		return nil, wrap(documentsTable, err)
	}
	rows, err := decodeRows[domain.Document](documentsTable, body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, &domain.ErrNotFound{Resource: "document", ID: id}
	}
	return &rows[0], nil
}

func (c *Client) CreateDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Supabase.CreateDocument")
	defer span.End()

	data := map[string]any{
		"lead_id":      doc.LeadID,
		"type":         string(doc.Type),
		"name":         doc.Name,
		"url":          doc.URL,
		"storage_path": doc.StoragePath,
		"expiry_date":  nil,
	}
	if doc.ExpiryDate != "" {
		data["expiry_date"] = doc.ExpiryDate
	}

	body, err := c.doPost(ctx, documentsTable, data)
	if err != nil {
		return nil, wrap(documentsTable, err)
	}
	rows, err := decodeRows[domain.Document](documentsTable, body)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("insert document: empty representation")
	}
	return &rows[0], nil
}

func (c *Client) DeleteDocument(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Supabase.DeleteDocument")
	defer span.End()

	if err := c.doDelete(ctx, documentsTable+"?"+eq("id", id)); err != nil {
		return wrap(documentsTable, err)
	}
	return nil
}
