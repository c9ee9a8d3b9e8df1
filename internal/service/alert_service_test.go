package service

import (
	"context"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/consultation-service/internal/config"
	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/repository"
	apperrors "github.com/spec-kit/consultation-service/pkg/util"
)

func newAlertFixture(t *testing.T, riskCfg config.RiskConfig) (*AlertService, *fakeAlertRepo, *fakeConsultantRepo) {
	t.Helper()
	alertRepo := newFakeAlertRepo()
	consultantRepo := newFakeConsultantRepo()
	svc := NewAlertService(riskCfg, AlertDependencies{
		AlertRepo:      alertRepo,
		ConsultantRepo: consultantRepo,
	})
	return svc, alertRepo, consultantRepo
}

func seedConsultant(t *testing.T, repo *fakeConsultantRepo, role domain.ConsultantRole, active bool) *domain.Consultant {
	t.Helper()
	consultant := &domain.Consultant{
		Name:   "c-" + string(role),
		Email:  string(role) + "@example.com",
		Role:   role,
		Active: active,
	}
	require.NoError(t, repo.Create(context.Background(), consultant))
	return consultant
}

func errCode(t *testing.T, err error) string {
	t.Helper()
	require.Error(t, err)
	return apperrors.ToDomainError(err).Code
}

func TestAlertCreateStartsPending(t *testing.T) {
	svc, _, _ := newAlertFixture(t, config.RiskConfig{})

	alert, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeSystemAssessment,
		Severity:    domain.RiskLevelHigh,
		Context:     "screening flagged elevated risk",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AlertStatusPending, alert.Status)
	assert.Nil(t, alert.AssignedConsultantID)
	assert.Nil(t, alert.AcknowledgedAt)
	assert.NotEmpty(t, alert.ID)
}

func TestAlertCreateRejectsUnknownSeverity(t *testing.T) {
	svc, _, _ := newAlertFixture(t, config.RiskConfig{})

	_, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeSystemAssessment,
		Severity:    domain.RiskLevel("extreme"),
	})
	assert.Equal(t, "VALIDATION_FAILED", errCode(t, err))
}

func TestAlertCreateTruncatesContext(t *testing.T) {
	svc, _, _ := newAlertFixture(t, config.RiskConfig{ContextMaxLen: 10})

	alert, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeManualPanic,
		Severity:    domain.RiskLevelCritical,
		Context:     "this context is far longer than ten characters",
	})
	require.NoError(t, err)
	assert.Len(t, alert.Context, 10)
}

func TestAlertCreateTruncatesContextOnRuneBoundary(t *testing.T) {
	svc, _, _ := newAlertFixture(t, config.RiskConfig{ContextMaxLen: 5})

	alert, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeManualPanic,
		Severity:    domain.RiskLevelCritical,
		Context:     "緊急事態です助けて",
	})
	require.NoError(t, err)
	assert.Equal(t, "緊急事態で", alert.Context)
	assert.True(t, utf8.ValidString(alert.Context))
}

func TestAlertCreateAutoEscalatesCritical(t *testing.T) {
	svc, _, consultantRepo := newAlertFixture(t, config.RiskConfig{AutoEscalate: true})
	admin := seedConsultant(t, consultantRepo, domain.ConsultantRoleAdmin, true)

	alert, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeAutoEscalation,
		Severity:    domain.RiskLevelCritical,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.AlertStatusAcknowledged, alert.Status)
	require.NotNil(t, alert.AssignedConsultantID)
	assert.Equal(t, admin.ID, *alert.AssignedConsultantID)
	assert.NotNil(t, alert.AcknowledgedAt)
}

func TestAlertCreateAutoEscalateWithoutAdminStaysPending(t *testing.T) {
	svc, _, consultantRepo := newAlertFixture(t, config.RiskConfig{AutoEscalate: true})
	// inactive admins are not responders
	seedConsultant(t, consultantRepo, domain.ConsultantRoleAdmin, false)

	alert, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeAutoEscalation,
		Severity:    domain.RiskLevelCritical,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusPending, alert.Status)
	assert.Nil(t, alert.AssignedConsultantID)
}

func TestAlertAcknowledge(t *testing.T) {
	svc, _, consultantRepo := newAlertFixture(t, config.RiskConfig{})
	admin := seedConsultant(t, consultantRepo, domain.ConsultantRoleAdmin, true)

	alert, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeKeywordDetection,
		Severity:    domain.RiskLevelHigh,
	})
	require.NoError(t, err)

	acked, err := svc.Acknowledge(context.Background(), admin, alert.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusAcknowledged, acked.Status)
	require.NotNil(t, acked.AssignedConsultantID)
	assert.Equal(t, admin.ID, *acked.AssignedConsultantID)
	assert.NotNil(t, acked.AcknowledgedAt)

	_, err = svc.Acknowledge(context.Background(), admin, alert.ID)
	assert.Equal(t, "CONFLICT", errCode(t, err))
}

func TestAlertAcknowledgeRequiresAdmin(t *testing.T) {
	svc, _, consultantRepo := newAlertFixture(t, config.RiskConfig{})
	consultant := seedConsultant(t, consultantRepo, domain.ConsultantRoleConsultant, true)

	_, err := svc.Acknowledge(context.Background(), consultant, "any")
	assert.Equal(t, "FORBIDDEN", errCode(t, err))

	_, err = svc.Acknowledge(context.Background(), nil, "any")
	assert.Equal(t, "UNAUTHORIZED", errCode(t, err))
}

func TestAlertResolve(t *testing.T) {
	svc, _, consultantRepo := newAlertFixture(t, config.RiskConfig{})
	admin := seedConsultant(t, consultantRepo, domain.ConsultantRoleAdmin, true)

	alert, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeManualPanic,
		Severity:    domain.RiskLevelCritical,
	})
	require.NoError(t, err)

	resolved, err := svc.Resolve(context.Background(), admin, alert.ID, "contacted submitter, safe")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusResolved, resolved.Status)
	require.NotNil(t, resolved.ResolutionNotes)
	assert.Equal(t, "contacted submitter, safe", *resolved.ResolutionNotes)
	assert.NotNil(t, resolved.ResolvedAt)
	// resolving without a prior acknowledge assigns the resolver
	require.NotNil(t, resolved.AssignedConsultantID)
	assert.Equal(t, admin.ID, *resolved.AssignedConsultantID)

	_, err = svc.Resolve(context.Background(), admin, alert.ID, "again")
	assert.Equal(t, "CONFLICT", errCode(t, err))
}

func TestAlertResolveRequiresNotes(t *testing.T) {
	svc, _, consultantRepo := newAlertFixture(t, config.RiskConfig{})
	admin := seedConsultant(t, consultantRepo, domain.ConsultantRoleAdmin, true)

	alert, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeManualPanic,
		Severity:    domain.RiskLevelCritical,
	})
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), admin, alert.ID, "   ")
	assert.Equal(t, "VALIDATION_FAILED", errCode(t, err))
}

func TestAlertStaleAcknowledgeCannotRegressResolved(t *testing.T) {
	svc, alertRepo, consultantRepo := newAlertFixture(t, config.RiskConfig{})
	admin := seedConsultant(t, consultantRepo, domain.ConsultantRoleAdmin, true)

	alert, err := svc.Create(context.Background(), AlertCreateInput{
		SubmitterID: "user-1",
		Type:        domain.AlertTypeManualPanic,
		Severity:    domain.RiskLevelCritical,
	})
	require.NoError(t, err)

	// A responder reads the alert while it is still pending.
	stale, err := alertRepo.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	require.Equal(t, domain.AlertStatusPending, stale.Status)

	_, err = svc.Resolve(context.Background(), admin, alert.ID, "handled by phone")
	require.NoError(t, err)

	// The responder's acknowledge commits after the resolution; the guarded
	// write must miss instead of reopening the alert.
	now := time.Now()
	stale.Status = domain.AlertStatusAcknowledged
	stale.AssignedConsultantID = &admin.ID
	stale.AcknowledgedAt = &now
	err = alertRepo.Transition(context.Background(), stale, domain.AlertStatusPending)
	require.ErrorIs(t, err, repository.ErrStaleAlert)

	current, err := alertRepo.GetByID(context.Background(), alert.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertStatusResolved, current.Status)
	assert.NotNil(t, current.ResolvedAt)

	_, err = svc.Acknowledge(context.Background(), admin, alert.ID)
	assert.Equal(t, "CONFLICT", errCode(t, err))
}

func TestAlertQueueFiltering(t *testing.T) {
	svc, _, consultantRepo := newAlertFixture(t, config.RiskConfig{})
	admin := seedConsultant(t, consultantRepo, domain.ConsultantRoleAdmin, true)

	for _, severity := range []domain.RiskLevel{domain.RiskLevelLow, domain.RiskLevelHigh, domain.RiskLevelCritical} {
		_, err := svc.Create(context.Background(), AlertCreateInput{
			SubmitterID: "user-1",
			Type:        domain.AlertTypeSystemAssessment,
			Severity:    severity,
		})
		require.NoError(t, err)
	}

	all, err := svc.ListQueue(context.Background(), admin, AlertQueueFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	critical, err := svc.ListQueue(context.Background(), admin, AlertQueueFilter{
		Severities: []domain.RiskLevel{domain.RiskLevelCritical},
	})
	require.NoError(t, err)
	assert.Len(t, critical, 1)

	consultant := seedConsultant(t, consultantRepo, domain.ConsultantRoleConsultant, true)
	_, err = svc.ListQueue(context.Background(), consultant, AlertQueueFilter{})
	assert.Equal(t, "FORBIDDEN", errCode(t, err))
}
