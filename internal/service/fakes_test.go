package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/notify"
	"github.com/spec-kit/consultation-service/internal/repository"
)

// In-memory repositories mirroring the storage semantics, including the
// uniqueness rules the database enforces with constraints.

type fakeCaseRepo struct {
	mu    sync.Mutex
	cases map[string]domain.Case
}

func newFakeCaseRepo() *fakeCaseRepo {
	return &fakeCaseRepo{cases: make(map[string]domain.Case)}
}

func (r *fakeCaseRepo) Create(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	c.CreatedAt = time.Now()
	c.UpdatedAt = c.CreatedAt
	r.cases[c.ID] = *c
	return nil
}

func (r *fakeCaseRepo) Update(_ context.Context, c *domain.Case) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cases[c.ID]; !ok {
		return pgx.ErrNoRows
	}
	c.UpdatedAt = time.Now()
	r.cases[c.ID] = *c
	return nil
}

func (r *fakeCaseRepo) GetByID(_ context.Context, id string) (*domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.cases[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := c
	return &out, nil
}

func (r *fakeCaseRepo) ListWithFilter(_ context.Context, filter repository.CaseFilter) ([]domain.Case, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Case
	for _, c := range r.cases {
		if filter.SubmitterID != nil && c.SubmitterID != *filter.SubmitterID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, c.Status) {
			continue
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func containsStatus(list []domain.CaseStatus, status domain.CaseStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

type fakeAlertRepo struct {
	mu     sync.Mutex
	alerts map[string]domain.CrisisAlert
}

func newFakeAlertRepo() *fakeAlertRepo {
	return &fakeAlertRepo{alerts: make(map[string]domain.CrisisAlert)}
}

func (r *fakeAlertRepo) Create(_ context.Context, alert *domain.CrisisAlert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if alert.ID == "" {
		alert.ID = uuid.NewString()
	}
	alert.CreatedAt = time.Now()
	alert.UpdatedAt = alert.CreatedAt
	r.alerts[alert.ID] = *alert
	return nil
}

func (r *fakeAlertRepo) Transition(_ context.Context, alert *domain.CrisisAlert, from domain.AlertStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.alerts[alert.ID]
	if !ok || stored.Status != from {
		return repository.ErrStaleAlert
	}
	alert.UpdatedAt = time.Now()
	r.alerts[alert.ID] = *alert
	return nil
}

func (r *fakeAlertRepo) GetByID(_ context.Context, id string) (*domain.CrisisAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	alert, ok := r.alerts[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := alert
	return &out, nil
}

func (r *fakeAlertRepo) ListWithFilter(_ context.Context, filter repository.AlertFilter) ([]domain.CrisisAlert, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CrisisAlert
	for _, alert := range r.alerts {
		if len(filter.Statuses) > 0 && !containsAlertStatus(filter.Statuses, alert.Status) {
			continue
		}
		if len(filter.Severities) > 0 && !containsSeverity(filter.Severities, alert.Severity) {
			continue
		}
		out = append(out, alert)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func containsAlertStatus(list []domain.AlertStatus, status domain.AlertStatus) bool {
	for _, s := range list {
		if s == status {
			return true
		}
	}
	return false
}

func containsSeverity(list []domain.RiskLevel, level domain.RiskLevel) bool {
	for _, l := range list {
		if l == level {
			return true
		}
	}
	return false
}

type fakeConsultantRepo struct {
	mu          sync.Mutex
	consultants map[string]domain.Consultant
	order       []string
}

func newFakeConsultantRepo() *fakeConsultantRepo {
	return &fakeConsultantRepo{consultants: make(map[string]domain.Consultant)}
}

func (r *fakeConsultantRepo) Create(_ context.Context, consultant *domain.Consultant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if consultant.ID == "" {
		consultant.ID = uuid.NewString()
	}
	consultant.CreatedAt = time.Now()
	consultant.UpdatedAt = consultant.CreatedAt
	r.consultants[consultant.ID] = *consultant
	r.order = append(r.order, consultant.ID)
	return nil
}

func (r *fakeConsultantRepo) Update(_ context.Context, consultant *domain.Consultant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.consultants[consultant.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.consultants[consultant.ID] = *consultant
	return nil
}

func (r *fakeConsultantRepo) GetByID(_ context.Context, id string) (*domain.Consultant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	consultant, ok := r.consultants[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := consultant
	return &out, nil
}

func (r *fakeConsultantRepo) GetByEmail(_ context.Context, email string) (*domain.Consultant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, consultant := range r.consultants {
		if consultant.Email == email {
			out := consultant
			return &out, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeConsultantRepo) List(_ context.Context, filter repository.ConsultantFilter) ([]domain.Consultant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Consultant
	for _, id := range r.order {
		consultant := r.consultants[id]
		if filter.Role != nil && consultant.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && consultant.Active != *filter.Active {
			continue
		}
		out = append(out, consultant)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

type fakeHistoryRepo struct {
	mu      sync.Mutex
	records []domain.CaseHistory
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{}
}

func (r *fakeHistoryRepo) Create(_ context.Context, history *domain.CaseHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if history.ID == "" {
		history.ID = uuid.NewString()
	}
	history.CreatedAt = time.Now()
	r.records = append(r.records, *history)
	return nil
}

func (r *fakeHistoryRepo) ListByCase(_ context.Context, caseID string, _, _ int) ([]domain.CaseHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CaseHistory
	for _, record := range r.records {
		if record.CaseID == caseID {
			out = append(out, record)
		}
	}
	return out, nil
}

func (r *fakeHistoryRepo) byType(changeType domain.ChangeType) []domain.CaseHistory {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CaseHistory
	for _, record := range r.records {
		if record.ChangeType == changeType {
			out = append(out, record)
		}
	}
	return out
}

// fakeTeamMemberRepo reproduces the constraint behavior of the
// case_team_members table: one entry per (case, consultant) and at most one
// active primary/referred entry per case.
type fakeTeamMemberRepo struct {
	mu      sync.Mutex
	members map[string]domain.CaseTeamMember
	cases   *fakeCaseRepo
}

func newFakeTeamMemberRepo(cases *fakeCaseRepo) *fakeTeamMemberRepo {
	return &fakeTeamMemberRepo{members: make(map[string]domain.CaseTeamMember), cases: cases}
}

func (r *fakeTeamMemberRepo) Create(_ context.Context, member *domain.CaseTeamMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.insertLocked(member)
}

func (r *fakeTeamMemberRepo) insertLocked(member *domain.CaseTeamMember) error {
	for _, existing := range r.members {
		if existing.CaseID == member.CaseID && existing.ConsultantID == member.ConsultantID {
			return repository.ErrDuplicateMember
		}
	}
	if member.EffectivePrimary() && r.effectivePrimaryLocked(member.CaseID) != nil {
		return repository.ErrPrimaryExists
	}
	if member.ID == "" {
		member.ID = uuid.NewString()
	}
	if member.InvitedAt.IsZero() {
		member.InvitedAt = time.Now()
	}
	r.members[member.ID] = *member
	return nil
}

func (r *fakeTeamMemberRepo) effectivePrimaryLocked(caseID string) *domain.CaseTeamMember {
	for _, member := range r.members {
		if member.CaseID == caseID && member.EffectivePrimary() {
			out := member
			return &out
		}
	}
	return nil
}

func (r *fakeTeamMemberRepo) GetByID(_ context.Context, id string) (*domain.CaseTeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	out := member
	return &out, nil
}

func (r *fakeTeamMemberRepo) GetEffectivePrimary(_ context.Context, caseID string) (*domain.CaseTeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if primary := r.effectivePrimaryLocked(caseID); primary != nil {
		return primary, nil
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeTeamMemberRepo) ListActiveByCase(_ context.Context, caseID string) ([]domain.CaseTeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CaseTeamMember
	for _, member := range r.members {
		if member.CaseID == caseID && member.Active {
			out = append(out, member)
		}
	}
	sort.Slice(out, func(i, j int) bool { return roleRank(out[i].Role) < roleRank(out[j].Role) })
	return out, nil
}

func roleRank(role domain.TeamRole) int {
	switch role {
	case domain.TeamRolePrimary:
		return 0
	case domain.TeamRoleReferred:
		return 1
	default:
		return 2
	}
}

func (r *fakeTeamMemberRepo) ListPendingBySubmitter(ctx context.Context, submitterID string) ([]domain.CaseTeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CaseTeamMember
	for _, member := range r.members {
		if !member.Active || member.Role != domain.TeamRoleCollaborator || member.ApprovedAt != nil {
			continue
		}
		c, err := r.cases.GetByID(ctx, member.CaseID)
		if err != nil || c.SubmitterID != submitterID {
			continue
		}
		out = append(out, member)
	}
	return out, nil
}

func (r *fakeTeamMemberRepo) Approve(_ context.Context, id string) (*domain.CaseTeamMember, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	now := time.Now()
	member.ApprovedAt = &now
	r.members[id] = member
	out := member
	return &out, nil
}

func (r *fakeTeamMemberRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.members, id)
	return nil
}

func (r *fakeTeamMemberRepo) Deactivate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	member, ok := r.members[id]
	if !ok || !member.Active {
		return pgx.ErrNoRows
	}
	now := time.Now()
	member.Active = false
	member.DeactivatedAt = &now
	r.members[id] = member
	return nil
}

func (r *fakeTeamMemberRepo) ClaimPrimary(ctx context.Context, member *domain.CaseTeamMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	member.Role = domain.TeamRolePrimary
	member.Active = true
	member.ApprovedAt = &now
	if err := r.insertLocked(member); err != nil {
		return err
	}
	c, err := r.cases.GetByID(ctx, member.CaseID)
	if err != nil {
		return err
	}
	c.AssignedConsultantID = &member.ConsultantID
	c.Status = domain.CaseStatusInProgress
	return r.cases.Update(ctx, c)
}

func (r *fakeTeamMemberRepo) TransferPrimary(ctx context.Context, caseID, referrerID string, newMember *domain.CaseTeamMember) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	current := r.effectivePrimaryLocked(caseID)
	if current == nil || current.ConsultantID != referrerID {
		return repository.ErrNotPrimary
	}

	demoted := *current
	demoted.Role = domain.TeamRoleCollaborator
	if demoted.ApprovedAt == nil {
		now := time.Now()
		demoted.ApprovedAt = &now
	}
	r.members[demoted.ID] = demoted

	now := time.Now()
	newMember.Role = domain.TeamRoleReferred
	newMember.Active = true
	newMember.ApprovedAt = &now
	if err := r.insertLocked(newMember); err != nil {
		// restore the demoted entry so a failed transfer mutates nothing
		r.members[current.ID] = *current
		return err
	}

	c, err := r.cases.GetByID(ctx, caseID)
	if err != nil {
		return err
	}
	c.AssignedConsultantID = &newMember.ConsultantID
	c.Status = domain.CaseStatusReferred
	return r.cases.Update(ctx, c)
}

// recorderNotifier captures deliveries for assertions.
type recorderNotifier struct {
	mu         sync.Mutex
	deliveries []recordedDelivery
	failFor    map[string]error
}

type recordedDelivery struct {
	ConsultantID string
	Payload      notify.AlertPayload
}

func newRecorderNotifier() *recorderNotifier {
	return &recorderNotifier{failFor: make(map[string]error)}
}

func (n *recorderNotifier) Notify(_ context.Context, consultantID string, payload notify.AlertPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err, ok := n.failFor[consultantID]; ok {
		return err
	}
	n.deliveries = append(n.deliveries, recordedDelivery{ConsultantID: consultantID, Payload: payload})
	return nil
}

func (n *recorderNotifier) recipients() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.deliveries))
	for _, d := range n.deliveries {
		out = append(out, d.ConsultantID)
	}
	return out
}
