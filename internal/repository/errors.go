package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrDuplicateMember maps the (case_id, consultant_id) unique violation.
	ErrDuplicateMember = errors.New("consultant already has an entry for this case")

	// ErrPrimaryExists maps the single-effective-primary partial index violation.
	ErrPrimaryExists = errors.New("case already has an effective primary")

	// ErrNotPrimary is returned when a transfer's in-transaction re-read finds
	// that the acting consultant no longer holds effective-primary authority.
	ErrNotPrimary = errors.New("acting consultant is not the case's effective primary")

	// ErrStaleAlert is returned when an alert transition's guarded update finds
	// the alert no longer in the status the caller read.
	ErrStaleAlert = errors.New("alert status changed since it was read")
)

const (
	uniqueViolationCode   = "23505"
	effectivePrimaryIndex = "uq_case_effective_primary"
)

// mapMemberInsertError resolves which ledger constraint an insert tripped.
func mapMemberInsertError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolationCode {
		return err
	}
	if pgErr.ConstraintName == effectivePrimaryIndex {
		return ErrPrimaryExists
	}
	return ErrDuplicateMember
}
