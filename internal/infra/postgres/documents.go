package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

var documentColumns = []string{
	"id::text AS id",
	"lead_id::text AS lead_id",
	"type", "name",
	"COALESCE(expiry_date::text, '') AS expiry_date",
	"url", "storage_path", "uploaded_at",
}

func (s *Store) queryDocuments(ctx context.Context, q sq.SelectBuilder) ([]domain.Document, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build document query: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "document", "*")
	}
	docs, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Document])
	if err != nil {
		return nil, mapError(err, "document", "*")
	}
	return docs, nil
}

func (s *Store) ListDocuments(ctx context.Context, leadID string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListDocuments")
	defer span.End()

	return s.queryDocuments(ctx, s.sb.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"lead_id": leadID}).
		OrderBy("uploaded_at DESC"))
}

func (s *Store) ListDocumentsForLeads(ctx context.Context, leadIDs []string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListDocumentsForLeads")
	defer span.End()

	if len(leadIDs) == 0 {
		return []domain.Document{}, nil
	}
	return s.queryDocuments(ctx, s.sb.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"lead_id": leadIDs}).
		OrderBy("expiry_date ASC NULLS LAST"))
}

func (s *Store) ListDocumentsExpiring(ctx context.Context, from, to string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListDocumentsExpiring")
	defer span.End()

	return s.queryDocuments(ctx, s.sb.Select(documentColumns...).
		From("documents").
		Where(sq.GtOrEq{"expiry_date": from}).
		Where(sq.LtOrEq{"expiry_date": to}).
		OrderBy("expiry_date ASC"))
}

func (s *Store) ListDocumentsExpiringForLeads(ctx context.Context, leadIDs []string, from, to string) ([]domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListDocumentsExpiringForLeads")
	defer span.End()

	if len(leadIDs) == 0 {
		return []domain.Document{}, nil
	}
	return s.queryDocuments(ctx, s.sb.Select(documentColumns...).
		From("documents").
		Where(sq.Eq{"lead_id": leadIDs}).
		Where(sq.GtOrEq{"expiry_date": from}).
		Where(sq.LtOrEq{"expiry_date": to}).
		OrderBy("expiry_date ASC"))
}

func (s *Store) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetDocument")
	defer span.End()

	query, args, err := s.sb.Select(documentColumns...).From("documents").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get document: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "document", id)
	}
	doc, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.Document])
	if err != nil {
		return nil, mapError(err, "document", id)
	}
	return doc, nil
}

func (s *Store) CreateDocument(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateDocument")
	defer span.End()

	var expiry any
	if doc.ExpiryDate != "" {
		expiry = doc.ExpiryDate
	}
	query, args, err := s.sb.Insert("documents").
		SetMap(map[string]any{
			"lead_id":      doc.LeadID,
			"type":         string(doc.Type),
			"name":         doc.Name,
			"expiry_date":  expiry,
			"url":          doc.URL,
			"storage_path": doc.StoragePath,
		}).
		Suffix("RETURNING " + strings.Join(documentColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert document: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "document", doc.LeadID)
	}
	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.Document])
	if err != nil {
		return nil, mapError(err, "document", doc.LeadID)
	}
	return created, nil
}

func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteDocument")
	defer span.End()

	query, args, err := s.sb.Delete("documents").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete document: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "document", id)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "document", ID: id}
	}
	return nil
}
