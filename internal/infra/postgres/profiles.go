package postgres

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

var profileColumns = []string{
	"id::text AS id",
	"email", "full_name", "phone", "role", "status", "is_active",
	"created_at", "updated_at",
}

var profilePatchable = map[string]bool{
	"role": true, "status": true, "is_active": true, "full_name": true, "phone": true,
}

func (s *Store) GetProfile(ctx context.Context, id string) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.GetProfile")
	defer span.End()

	query, args, err := s.sb.Select(profileColumns...).From("profiles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get profile: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "profile", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.Profile])
	if err != nil {
		return nil, mapError(err, "profile", id)
	}
	return p, nil
}

func (s *Store) ListProfiles(ctx context.Context, filter domain.ProfileFilter) ([]domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.ListProfiles")
	defer span.End()

	q := s.sb.Select(profileColumns...).From("profiles").OrderBy("created_at DESC")
	if filter.Status != "" {
		q = q.Where(sq.Eq{"status": string(filter.Status)})
	}
	if filter.Role != "" {
		q = q.Where(sq.Eq{"role": string(filter.Role)})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list profiles: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "profile", "*")
	}
	out, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Profile])
	if err != nil {
		return nil, mapError(err, "profile", "*")
	}
	return out, nil
}

func (s *Store) UpdateProfile(ctx context.Context, id string, patch map[string]any) error {
	ctx, span := tracer.Start(ctx, "Postgres.UpdateProfile")
	defer span.End()

	for k := range patch {
		if !profilePatchable[k] {
			return &domain.ErrValidation{Field: k, Message: "unknown profile column"}
		}
	}

	query, args, err := s.sb.Update("profiles").
		SetMap(patch).
		Set("updated_at", sq.Expr("now()")).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update profile: %w", err)
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return mapError(err, "profile", id)
	}
	if tag.RowsAffected() == 0 {
		return &domain.ErrNotFound{Resource: "profile", ID: id}
	}
	return nil
}

// InsertProfile creates a profile row. Supabase creates profiles from its
// auth trigger; a plain PostgreSQL deployment seeds them through this.
func (s *Store) InsertProfile(ctx context.Context, p *domain.Profile) (*domain.Profile, error) {
	ctx, span := tracer.Start(ctx, "Postgres.InsertProfile")
	defer span.End()

	row := map[string]any{
		"email":     p.Email,
		"full_name": p.FullName,
		"phone":     p.Phone,
		"role":      string(p.Role),
		"status":    string(p.Status),
		"is_active": p.IsActive,
	}
	if p.ID != "" {
		row["id"] = p.ID
	}
	query, args, err := s.sb.Insert("profiles").
		SetMap(row).
		Suffix("RETURNING " + strings.Join(profileColumns, ", ")).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build insert profile: %w", err)
	}
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "profile", p.ID)
	}
	created, err := pgx.CollectExactlyOneRow(rows, pgx.RowToAddrOfStructByName[domain.Profile])
	if err != nil {
		return nil, mapError(err, "profile", p.ID)
	}
	return created, nil
}
