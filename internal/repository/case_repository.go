package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// CaseFilter captures case listing parameters.
type CaseFilter struct {
	SubmitterID *string
	AssigneeID  *string
	Statuses    []domain.CaseStatus
	RiskLevels  []domain.RiskLevel
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// CaseRepository encapsulates case persistence.
type CaseRepository interface {
	Create(ctx context.Context, c *domain.Case) error
	Update(ctx context.Context, c *domain.Case) error
	GetByID(ctx context.Context, id string) (*domain.Case, error)
	ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error)
}

type caseRepository struct {
	pool *pgxpool.Pool
}

// NewCaseRepository instantiates repository.
func NewCaseRepository(pool *pgxpool.Pool) CaseRepository {
	return &caseRepository{pool: pool}
}

const caseColumns = `id, external_key, submitter_user_id, category, description, screening_answers,
               risk_level, urgency, status, assigned_consultant_id, created_at, updated_at`

func (r *caseRepository) Create(ctx context.Context, c *domain.Case) error {
	const query = `
        INSERT INTO cases (external_key, submitter_user_id, category, description, screening_answers, risk_level, urgency, status, assigned_consultant_id)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		c.ExternalKey,
		c.SubmitterID,
		c.Category,
		c.Description,
		c.ScreeningAnswers,
		c.RiskLevel,
		c.Urgency,
		c.Status,
		c.AssignedConsultantID,
	).Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
}

func (r *caseRepository) Update(ctx context.Context, c *domain.Case) error {
	const query = `
        UPDATE cases SET category=$1, description=$2, risk_level=$3, urgency=$4,
            status=$5, assigned_consultant_id=$6, updated_at=NOW()
        WHERE id=$7`
	cmd, err := r.pool.Exec(ctx, query,
		c.Category,
		c.Description,
		c.RiskLevel,
		c.Urgency,
		c.Status,
		c.AssignedConsultantID,
		c.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *caseRepository) GetByID(ctx context.Context, id string) (*domain.Case, error) {
	query := fmt.Sprintf(`SELECT %s FROM cases WHERE id=$1`, caseColumns)
	var c domain.Case
	if err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID,
		&c.ExternalKey,
		&c.SubmitterID,
		&c.Category,
		&c.Description,
		&c.ScreeningAnswers,
		&c.RiskLevel,
		&c.Urgency,
		&c.Status,
		&c.AssignedConsultantID,
		&c.CreatedAt,
		&c.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *caseRepository) ListWithFilter(ctx context.Context, filter CaseFilter) ([]domain.Case, error) {
	base := fmt.Sprintf(`SELECT %s FROM cases`, caseColumns)
	clauses := []string{"1=1"}
	args := []any{}

	if filter.SubmitterID != nil {
		args = append(args, *filter.SubmitterID)
		clauses = append(clauses, fmt.Sprintf("submitter_user_id=$%d", len(args)))
	}
	if filter.AssigneeID != nil {
		args = append(args, *filter.AssigneeID)
		clauses = append(clauses, fmt.Sprintf("assigned_consultant_id=$%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.RiskLevels) > 0 {
		placeholders := make([]string, len(filter.RiskLevels))
		for i, level := range filter.RiskLevels {
			args = append(args, level)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		clauses = append(clauses, fmt.Sprintf("risk_level IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.CreatedFrom != nil {
		args = append(args, *filter.CreatedFrom)
		clauses = append(clauses, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if filter.CreatedTo != nil {
		args = append(args, *filter.CreatedTo)
		clauses = append(clauses, fmt.Sprintf("created_at <= $%d", len(args)))
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`%s WHERE %s ORDER BY updated_at DESC LIMIT %d OFFSET %d`,
		base, strings.Join(clauses, " AND "), limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanCases(rows)
}

func scanCases(rows pgx.Rows) ([]domain.Case, error) {
	var result []domain.Case
	for rows.Next() {
		var c domain.Case
		if err := rows.Scan(
			&c.ID,
			&c.ExternalKey,
			&c.SubmitterID,
			&c.Category,
			&c.Description,
			&c.ScreeningAnswers,
			&c.RiskLevel,
			&c.Urgency,
			&c.Status,
			&c.AssignedConsultantID,
			&c.CreatedAt,
			&c.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}
