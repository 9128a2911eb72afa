package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

var leadColumns = []string{
	"id::text AS id",
	"user_id::text AS user_id",
	"status",
	"name", "phone", "email",
	"destination",
	"COALESCE(departure_date::text, '') AS departure_date",
	"COALESCE(return_date::text, '') AS return_date",
	"vacation_type", "hotel_level", "board_basis",
	"adults", "children", "infants",
	"budget", "total_price", "commission",
	"deposit_amount", "deposit_paid", "balance_amount", "balance_paid",
	"notes", "tags", "source",
	"created_at", "updated_at",
}

var leadReturning = "RETURNING " + strings.Join(leadColumns, ", ")

func (s *Store) ListLeads(ctx context.Context, filter domain.LeadFilter) ([]domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListLeads")
	defer span.End()

	q := s.sb.Select(leadColumns...).From("leads").OrderBy("created_at DESC")
	if filter.UserID != "" {
		q = q.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if term := strings.TrimSpace(filter.Search); term != "" {
		pattern := "%" + term + "%"
		q = q.Where(sq.Or{
			sq.ILike{"name": pattern},
			sq.ILike{"phone": pattern},
			sq.ILike{"email": pattern},
			sq.ILike{"destination": pattern},
		})
	}
	if filter.Limit > 0 {
		q = q.Limit(uint64(filter.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list leads: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "lead", "*")
	}
	leads, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Lead])
	if err != nil {
		return nil, mapError(err, "lead", "*")
	}
	return leads, nil
}

func (s *Store) GetLead(ctx context.Context, id string) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetLead")
	defer span.End()

	query, args, err := s.sb.Select(leadColumns...).From("leads").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get lead: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "lead", id)
	}
	lead, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.Lead])
	if err != nil {
		return nil, mapError(err, "lead", id)
	}
	return lead, nil
}

func (s *Store) CreateLead(ctx context.Context, lead *domain.Lead) (*domain.Lead, error) {
	ctx, span := tracer.Start(ctx, "Postgres.CreateLead")
	defer span.End()

	row := lead.Row()
	if lead.Status == "" {
		row["status"] = string(domain.StatusLead)
	}
	query, args, err := s.sb.Insert("leads").SetMap(row).Suffix(leadReturning).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert lead: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "lead", lead.ID)
	}
	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.Lead])
	if err != nil {
		return nil, mapError(err, "lead", lead.ID)
	}
	return created, nil
}

// UpdateLead runs the patch as one UPDATE statement. Column names come from
// the caller, so every key is checked against the lead column list first.
func (s *Store) UpdateLead(ctx context.Context, id string, patch map[string]any) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateLead")
	defer span.End()

	for k := range patch {
		if !domain.IsLeadField(k) {
			return &domain.ErrValidation{Field: k, Message: "unknown lead column"}
		}
	}

	query, args, err := s.sb.Update("leads").
		SetMap(patch).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update lead: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "lead", id)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	return nil
}

func (s *Store) DeleteLead(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "Postgres.DeleteLead")
	defer span.End()

	query, args, err := s.sb.Delete("leads").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete lead: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "lead", id)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "lead", ID: id}
	}
	return nil
}
