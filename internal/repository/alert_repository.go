package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// AlertFilter captures admin queue parameters.
type AlertFilter struct {
	Statuses   []domain.AlertStatus
	Severities []domain.RiskLevel
	CaseID     *string
	Limit      int
	Offset     int
}

// AlertRepository encapsulates crisis alert persistence.
type AlertRepository interface {
	Create(ctx context.Context, alert *domain.CrisisAlert) error
	Transition(ctx context.Context, alert *domain.CrisisAlert, from domain.AlertStatus) error
	GetByID(ctx context.Context, id string) (*domain.CrisisAlert, error)
	ListWithFilter(ctx context.Context, filter AlertFilter) ([]domain.CrisisAlert, error)
}

type alertRepository struct {
	pool *pgxpool.Pool
}

// NewAlertRepository instantiates repository.
func NewAlertRepository(pool *pgxpool.Pool) AlertRepository {
	return &alertRepository{pool: pool}
}

const alertColumns = `id, case_id, message_id, submitter_user_id, alert_type, severity, status,
               detected_flags, context, assigned_consultant_id, acknowledged_at, resolved_at,
               resolution_notes, created_at, updated_at`

func (r *alertRepository) Create(ctx context.Context, alert *domain.CrisisAlert) error {
	const query = `
        INSERT INTO crisis_alerts (case_id, message_id, submitter_user_id, alert_type, severity, status, detected_flags, context, assigned_consultant_id, acknowledged_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		alert.CaseID,
		alert.MessageID,
		alert.SubmitterID,
		alert.Type,
		alert.Severity,
		alert.Status,
		alert.DetectedFlags,
		alert.Context,
		alert.AssignedConsultantID,
		alert.AcknowledgedAt,
	).Scan(&alert.ID, &alert.CreatedAt, &alert.UpdatedAt)
}

// Transition writes the new lifecycle state guarded on the status the caller
// read. A concurrent transition makes the guard miss, so a resolved alert can
// never be written back to an earlier state.
func (r *alertRepository) Transition(ctx context.Context, alert *domain.CrisisAlert, from domain.AlertStatus) error {
	const query = `
        UPDATE crisis_alerts SET status=$1, assigned_consultant_id=$2, acknowledged_at=$3,
            resolved_at=$4, resolution_notes=$5, updated_at=NOW()
        WHERE id=$6 AND status=$7`
	cmd, err := r.pool.Exec(ctx, query,
		alert.Status,
		alert.AssignedConsultantID,
		alert.AcknowledgedAt,
		alert.ResolvedAt,
		alert.ResolutionNotes,
		alert.ID,
		from,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrStaleAlert
	}
	return nil
}

func (r *alertRepository) GetByID(ctx context.Context, id string) (*domain.CrisisAlert, error) {
	query := fmt.Sprintf(`SELECT %s FROM crisis_alerts WHERE id=$1`, alertColumns)
	var alert domain.CrisisAlert
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&alert.ID,
		&alert.CaseID,
		&alert.MessageID,
		&alert.SubmitterID,
		&alert.Type,
		&alert.Severity,
		&alert.Status,
		&alert.DetectedFlags,
		&alert.Context,
		&alert.AssignedConsultantID,
		&alert.AcknowledgedAt,
		&alert.ResolvedAt,
		&alert.ResolutionNotes,
		&alert.CreatedAt,
		&alert.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (r *alertRepository) ListWithFilter(ctx context.Context, filter AlertFilter) ([]domain.CrisisAlert, error) {
	base := fmt.Sprintf(`SELECT %s FROM crisis_alerts`, alertColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Severities) > 0 {
		placeholders := make([]string, len(filter.Severities))
		for i, severity := range filter.Severities {
			args = append(args, severity)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("severity IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CaseID != nil {
		args = append(args, *filter.CaseID)
		clauses = append(clauses, fmt.Sprintf("case_id=$%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.CrisisAlert
	for rows.Next() {
		var alert domain.CrisisAlert
		if err := rows.Scan(
			&alert.ID,
			&alert.CaseID,
			&alert.MessageID,
			&alert.SubmitterID,
			&alert.Type,
			&alert.Severity,
			&alert.Status,
			&alert.DetectedFlags,
			&alert.Context,
			&alert.AssignedConsultantID,
			&alert.AcknowledgedAt,
			&alert.ResolvedAt,
			&alert.ResolutionNotes,
			&alert.CreatedAt,
			&alert.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, alert)
	}
	return result, rows.Err()
}
