package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/boddenberg/travel-crm-go/internal/domain"
)

// mapError converts pgx/pgconn errors to domain errors.
// Context errors pass through wrapped but unmapped.
func mapError(err error, entity, id string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &domain.ErrNotFound{Resource: entity, ID: id}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return &domain.ErrConflict{Message: fmt.Sprintf("%s %s already exists", entity, id)}
		case "23503": // foreign_key_violation
			return &domain.ErrNotFound{Resource: pgErr.ConstraintName, ID: id}
		case "23514", "22P02", "22007", "22008": // check, invalid text, datetime format, datetime range
			return &domain.ErrValidation{Field: pgErr.ColumnName, Message: pgErr.Message}
		}
	}

	return fmt.Errorf("%s %s: %w", entity, id, err)
}
