package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// ConsultantRepository handles persistence for consultants.
type ConsultantRepository interface {
	Create(ctx context.Context, consultant *domain.Consultant) error
	Update(ctx context.Context, consultant *domain.Consultant) error
	GetByID(ctx context.Context, id string) (*domain.Consultant, error)
	GetByEmail(ctx context.Context, email string) (*domain.Consultant, error)
	List(ctx context.Context, filter ConsultantFilter) ([]domain.Consultant, error)
}

// ConsultantFilter defines query params for consultant listing.
type ConsultantFilter struct {
	Role   *domain.ConsultantRole
	Active *bool
	Limit  int
	Offset int
}

type consultantRepository struct {
	pool *pgxpool.Pool
}

// NewConsultantRepository instantiates the repository.
func NewConsultantRepository(pool *pgxpool.Pool) ConsultantRepository {
	return &consultantRepository{pool: pool}
}

func (r *consultantRepository) Create(ctx context.Context, consultant *domain.Consultant) error {
	const query = `
        INSERT INTO consultants (name, email, password_hash, role, specialty, active_flag)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id, created_at, updated_at`

	return r.pool.QueryRow(ctx, query,
		consultant.Name,
		consultant.Email,
		consultant.PasswordHash,
		consultant.Role,
		consultant.Specialty,
		consultant.Active,
	).Scan(&consultant.ID, &consultant.CreatedAt, &consultant.UpdatedAt)
}

func (r *consultantRepository) Update(ctx context.Context, consultant *domain.Consultant) error {
	const query = `
        UPDATE consultants
        SET name=$1, email=$2, password_hash=$3, role=$4, specialty=$5, active_flag=$6, updated_at=NOW()
        WHERE id=$7`

	cmd, err := r.pool.Exec(ctx, query,
		consultant.Name,
		consultant.Email,
		consultant.PasswordHash,
		consultant.Role,
		consultant.Specialty,
		consultant.Active,
		consultant.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *consultantRepository) GetByID(ctx context.Context, id string) (*domain.Consultant, error) {
	const query = `
        SELECT id, name, email, password_hash, role, specialty, active_flag, created_at, updated_at
        FROM consultants WHERE id=$1`
	return r.fetchSingle(ctx, query, id)
}

func (r *consultantRepository) GetByEmail(ctx context.Context, email string) (*domain.Consultant, error) {
	const query = `
        SELECT id, name, email, password_hash, role, specialty, active_flag, created_at, updated_at
        FROM consultants WHERE email=$1`
	return r.fetchSingle(ctx, query, email)
}

func (r *consultantRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Consultant, error) {
	var consultant domain.Consultant
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&consultant.ID,
		&consultant.Name,
		&consultant.Email,
		&consultant.PasswordHash,
		&consultant.Role,
		&consultant.Specialty,
		&consultant.Active,
		&consultant.CreatedAt,
		&consultant.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &consultant, nil
}

func (r *consultantRepository) List(ctx context.Context, filter ConsultantFilter) ([]domain.Consultant, error) {
	query := `
        SELECT id, name, email, password_hash, role, specialty, active_flag, created_at, updated_at
        FROM consultants`
	args := []any{}
	clauses := []string{}

	if filter.Role != nil {
		args = append(args, *filter.Role)
		clauses = append(clauses, fmt.Sprintf("role=$%d", len(args)))
	}
	if filter.Active != nil {
		args = append(args, *filter.Active)
		clauses = append(clauses, fmt.Sprintf("active_flag=$%d", len(args)))
	}
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}

	query += " ORDER BY created_at ASC"
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}
	query += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Consultant
	for rows.Next() {
		var consultant domain.Consultant
		if err := rows.Scan(
			&consultant.ID,
			&consultant.Name,
			&consultant.Email,
			&consultant.PasswordHash,
			&consultant.Role,
			&consultant.Specialty,
			&consultant.Active,
			&consultant.CreatedAt,
			&consultant.UpdatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, consultant)
	}
	return result, rows.Err()
}
