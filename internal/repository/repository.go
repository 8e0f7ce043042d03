package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jmorenov/plazacore/internal/domain"
)

// uniqueViolation reports whether err is a postgres unique-constraint
// violation, optionally on a specific constraint. The partial unique
// indexes are the engine's correctness mechanism, so these violations
// are expected control flow, not failures.
func uniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	if pgErr.Code != "23505" {
		return false
	}
	return constraint == "" || pgErr.ConstraintName == constraint
}

// lockSpot reads a spot's status and zone under a row lock. Every
// multi-table transition starts here so that operations on the same
// spot serialize at the storage layer.
func lockSpot(ctx context.Context, tx pgx.Tx, facilityID int64, number int) (domain.SpotStatus, *string, error) {
	var status domain.SpotStatus
	var zone *string
	err := tx.QueryRow(ctx,
		`SELECT status, zone FROM spots WHERE facility_id=$1 AND number=$2 FOR UPDATE`,
		facilityID, number).Scan(&status, &zone)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, domain.ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}
	return status, zone, nil
}

// flipSpot applies a transition-table event to a locked spot and
// appends the status audit row in the same transaction.
func flipSpot(ctx context.Context, tx pgx.Tx, facilityID int64, number int, current domain.SpotStatus, ev domain.Event, reason, actor string, at time.Time) (domain.SpotStatus, error) {
	next, ok := domain.NextStatus(current, ev)
	if !ok {
		return current, &domain.TransitionError{FacilityID: facilityID, SpotNumber: number, From: current, Event: ev}
	}
	if _, err := tx.Exec(ctx,
		`UPDATE spots SET status=$3, updated_at=now() WHERE facility_id=$1 AND number=$2`,
		facilityID, number, next); err != nil {
		return current, err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO spot_status_log (facility_id, spot_number, prior_status, next_status, reason, actor, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		facilityID, number, current, next, reason, actor, at); err != nil {
		return current, err
	}
	return next, nil
}
