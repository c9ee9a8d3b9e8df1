package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// TeamMemberRepository encapsulates the case ownership ledger.
type TeamMemberRepository interface {
	Create(ctx context.Context, member *domain.CaseTeamMember) error
	GetByID(ctx context.Context, id string) (*domain.CaseTeamMember, error)
	// GetEffectivePrimary returns the single active primary/referred entry for
	// the case, or pgx.ErrNoRows when the case has no effective primary.
	GetEffectivePrimary(ctx context.Context, caseID string) (*domain.CaseTeamMember, error)
	ListActiveByCase(ctx context.Context, caseID string) ([]domain.CaseTeamMember, error)
	ListPendingBySubmitter(ctx context.Context, submitterID string) ([]domain.CaseTeamMember, error)
	Approve(ctx context.Context, id string) (*domain.CaseTeamMember, error)
	Delete(ctx context.Context, id string) error
	Deactivate(ctx context.Context, id string) error
	// ClaimPrimary atomically creates the case's first primary entry and
	// points the case at the claiming consultant. A concurrent claim loses on
	// the single-effective-primary index and gets ErrPrimaryExists.
	ClaimPrimary(ctx context.Context, member *domain.CaseTeamMember) error
	// TransferPrimary atomically demotes the referrer's effective-primary
	// entry to an auto-approved collaborator, inserts the referred entry, and
	// repoints the case's assigned consultant. The referrer row is re-read
	// under a row lock inside the transaction; a stale referrer yields
	// ErrNotPrimary and no mutation.
	TransferPrimary(ctx context.Context, caseID, referrerID string, newMember *domain.CaseTeamMember) error
}

type teamMemberRepository struct {
	pool *pgxpool.Pool
}

// NewTeamMemberRepository instantiates repository.
func NewTeamMemberRepository(pool *pgxpool.Pool) TeamMemberRepository {
	return &teamMemberRepository{pool: pool}
}

const memberColumns = `id, case_id, consultant_id, role, invited_by_id, notes, active_flag,
               invited_at, approved_at, deactivated_at`

func (r *teamMemberRepository) Create(ctx context.Context, member *domain.CaseTeamMember) error {
	const query = `
        INSERT INTO case_team_members (case_id, consultant_id, role, invited_by_id, notes, active_flag, approved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING id, invited_at`
	err := r.pool.QueryRow(ctx, query,
		member.CaseID,
		member.ConsultantID,
		member.Role,
		member.InvitedByID,
		member.Notes,
		member.Active,
		member.ApprovedAt,
	).Scan(&member.ID, &member.InvitedAt)
	if err != nil {
		return mapMemberInsertError(err)
	}
	return nil
}

func (r *teamMemberRepository) ClaimPrimary(ctx context.Context, member *domain.CaseTeamMember) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now()
	member.Role = domain.TeamRolePrimary
	member.Active = true
	member.ApprovedAt = &now
	insert := fmt.Sprintf(`
        INSERT INTO case_team_members (case_id, consultant_id, role, invited_by_id, notes, active_flag, approved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING %s`, memberColumns)
	inserted, err := scanMemberRow(tx.QueryRow(ctx, insert,
		member.CaseID,
		member.ConsultantID,
		member.Role,
		member.InvitedByID,
		member.Notes,
		member.Active,
		member.ApprovedAt,
	))
	if err != nil {
		return mapMemberInsertError(err)
	}
	*member = *inserted

	if _, err := tx.Exec(ctx, `
        UPDATE cases SET assigned_consultant_id=$1, status=$2, updated_at=NOW()
        WHERE id=$3`, member.ConsultantID, domain.CaseStatusInProgress, member.CaseID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (r *teamMemberRepository) GetByID(ctx context.Context, id string) (*domain.CaseTeamMember, error) {
	query := fmt.Sprintf(`SELECT %s FROM case_team_members WHERE id=$1`, memberColumns)
	return scanMemberRow(r.pool.QueryRow(ctx, query, id))
}

func (r *teamMemberRepository) GetEffectivePrimary(ctx context.Context, caseID string) (*domain.CaseTeamMember, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM case_team_members
        WHERE case_id=$1 AND active_flag AND role IN ('primary','referred')`, memberColumns)
	return scanMemberRow(r.pool.QueryRow(ctx, query, caseID))
}

func (r *teamMemberRepository) ListActiveByCase(ctx context.Context, caseID string) ([]domain.CaseTeamMember, error) {
	// Fixed display order: primary, referred, collaborator.
	query := fmt.Sprintf(`
        SELECT %s FROM case_team_members
        WHERE case_id=$1 AND active_flag
        ORDER BY CASE role WHEN 'primary' THEN 0 WHEN 'referred' THEN 1 ELSE 2 END, invited_at ASC`, memberColumns)
	rows, err := r.pool.Query(ctx, query, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (r *teamMemberRepository) ListPendingBySubmitter(ctx context.Context, submitterID string) ([]domain.CaseTeamMember, error) {
	query := fmt.Sprintf(`
        SELECT %s FROM case_team_members m
        WHERE m.role='collaborator' AND m.active_flag AND m.approved_at IS NULL
          AND EXISTS (SELECT 1 FROM cases c WHERE c.id = m.case_id AND c.submitter_user_id = $1)
        ORDER BY m.invited_at ASC`, prefixedMemberColumns("m"))
	rows, err := r.pool.Query(ctx, query, submitterID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanMembers(rows)
}

func (r *teamMemberRepository) Approve(ctx context.Context, id string) (*domain.CaseTeamMember, error) {
	query := fmt.Sprintf(`
        UPDATE case_team_members SET approved_at=NOW()
        WHERE id=$1
        RETURNING %s`, memberColumns)
	return scanMemberRow(r.pool.QueryRow(ctx, query, id))
}

func (r *teamMemberRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM case_team_members WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *teamMemberRepository) Deactivate(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `
        UPDATE case_team_members SET active_flag=FALSE, deactivated_at=NOW()
        WHERE id=$1 AND active_flag`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *teamMemberRepository) TransferPrimary(ctx context.Context, caseID, referrerID string, newMember *domain.CaseTeamMember) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	// Re-read the current effective primary under a row lock so two racing
	// referrals serialize here; the second sees the committed demotion.
	query := fmt.Sprintf(`
        SELECT %s FROM case_team_members
        WHERE case_id=$1 AND active_flag AND role IN ('primary','referred')
        FOR UPDATE`, memberColumns)
	current, err := scanMemberRow(tx.QueryRow(ctx, query, caseID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return ErrNotPrimary
		}
		return err
	}
	if current.ConsultantID != referrerID {
		return ErrNotPrimary
	}

	if _, err := tx.Exec(ctx, `
        UPDATE case_team_members SET role='collaborator', approved_at=COALESCE(approved_at, NOW())
        WHERE id=$1`, current.ID); err != nil {
		return err
	}

	now := time.Now()
	newMember.Role = domain.TeamRoleReferred
	newMember.Active = true
	newMember.ApprovedAt = &now
	insert := fmt.Sprintf(`
        INSERT INTO case_team_members (case_id, consultant_id, role, invited_by_id, notes, active_flag, approved_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7)
        RETURNING %s`, memberColumns)
	inserted, err := scanMemberRow(tx.QueryRow(ctx, insert,
		newMember.CaseID,
		newMember.ConsultantID,
		newMember.Role,
		newMember.InvitedByID,
		newMember.Notes,
		newMember.Active,
		newMember.ApprovedAt,
	))
	if err != nil {
		return mapMemberInsertError(err)
	}
	*newMember = *inserted

	// The case's assignee pointer mirrors the ledger; it moves in the same
	// transaction or not at all.
	if _, err := tx.Exec(ctx, `
        UPDATE cases SET assigned_consultant_id=$1, status=$2, updated_at=NOW()
        WHERE id=$3`, newMember.ConsultantID, domain.CaseStatusReferred, caseID); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func prefixedMemberColumns(alias string) string {
	return fmt.Sprintf(`%[1]s.id, %[1]s.case_id, %[1]s.consultant_id, %[1]s.role, %[1]s.invited_by_id,
               %[1]s.notes, %[1]s.active_flag, %[1]s.invited_at, %[1]s.approved_at, %[1]s.deactivated_at`, alias)
}

func scanMemberRow(row pgx.Row) (*domain.CaseTeamMember, error) {
	var member domain.CaseTeamMember
	if err := row.Scan(
		&member.ID,
		&member.CaseID,
		&member.ConsultantID,
		&member.Role,
		&member.InvitedByID,
		&member.Notes,
		&member.Active,
		&member.InvitedAt,
		&member.ApprovedAt,
		&member.DeactivatedAt,
	); err != nil {
		return nil, err
	}
	return &member, nil
}

func scanMembers(rows pgx.Rows) ([]domain.CaseTeamMember, error) {
	var result []domain.CaseTeamMember
	for rows.Next() {
		var member domain.CaseTeamMember
		if err := rows.Scan(
			&member.ID,
			&member.CaseID,
			&member.ConsultantID,
			&member.Role,
			&member.InvitedByID,
			&member.Notes,
			&member.Active,
			&member.InvitedAt,
			&member.ApprovedAt,
			&member.DeactivatedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, member)
	}
	return result, rows.Err()
}
