package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/consultation-service/internal/config"
	"github.com/spec-kit/consultation-service/internal/domain"
	"github.com/spec-kit/consultation-service/internal/repository"
)

type caseFixture struct {
	cases       *CaseService
	alerts      *AlertService
	caseRepo    *fakeCaseRepo
	alertRepo   *fakeAlertRepo
	memberRepo  *fakeTeamMemberRepo
	historyRepo *fakeHistoryRepo
	consultants *fakeConsultantRepo
}

func newCaseFixture(t *testing.T) *caseFixture {
	t.Helper()
	riskCfg := config.RiskConfig{
		CrisisKeywords: []string{"hopeless", "can't go on", "hurt myself"},
		AutoEscalate:   true,
		ContextMaxLen:  500,
	}
	caseRepo := newFakeCaseRepo()
	alertRepo := newFakeAlertRepo()
	memberRepo := newFakeTeamMemberRepo(caseRepo)
	historyRepo := newFakeHistoryRepo()
	consultants := newFakeConsultantRepo()

	alerts := NewAlertService(riskCfg, AlertDependencies{
		AlertRepo:      alertRepo,
		ConsultantRepo: consultants,
	})
	cases := NewCaseService(riskCfg, CaseDependencies{
		CaseRepo:    caseRepo,
		MemberRepo:  memberRepo,
		HistoryRepo: historyRepo,
		Alerts:      alerts,
	})
	return &caseFixture{
		cases:       cases,
		alerts:      alerts,
		caseRepo:    caseRepo,
		alertRepo:   alertRepo,
		memberRepo:  memberRepo,
		historyRepo: historyRepo,
		consultants: consultants,
	}
}

func TestCreateCaseLowRisk(t *testing.T) {
	fx := newCaseFixture(t)

	created, err := fx.cases.CreateCase(context.Background(), "user-1", CaseCreateInput{
		Category:    "career",
		Description: "thinking about switching jobs",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RiskLevelLow, created.RiskLevel)
	assert.Equal(t, domain.UrgencyNormal, created.Urgency)
	assert.Equal(t, domain.CaseStatusWaiting, created.Status)
	assert.True(t, strings.HasPrefix(created.ExternalKey, "CSE-"))

	alerts, err := fx.alertRepo.ListWithFilter(context.Background(), alertFilterAll())
	require.NoError(t, err)
	assert.Empty(t, alerts, "low risk submissions must not raise alerts")

	assessments := fx.historyRepo.byType(domain.ChangeTypeRiskAssessment)
	assert.Len(t, assessments, 1)
}

func TestCreateCaseKeywordEscalation(t *testing.T) {
	fx := newCaseFixture(t)

	created, err := fx.cases.CreateCase(context.Background(), "user-1", CaseCreateInput{
		Category:    "personal",
		Description: "everything feels hopeless lately",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLevelMedium, created.RiskLevel)

	alerts, err := fx.alertRepo.ListWithFilter(context.Background(), alertFilterAll())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertTypeKeywordDetection, alerts[0].Type)
	assert.Contains(t, alerts[0].DetectedFlags, "hopeless")
	require.NotNil(t, alerts[0].CaseID)
	assert.Equal(t, created.ID, *alerts[0].CaseID)
}

func TestCreateCaseCriticalStructuredScore(t *testing.T) {
	fx := newCaseFixture(t)
	admin := seedConsultant(t, fx.consultants, domain.ConsultantRoleAdmin, true)

	created, err := fx.cases.CreateCase(context.Background(), "user-1", CaseCreateInput{
		Category:    "health",
		Description: "structured screening submission",
		ScreeningAnswers: []domain.ScreeningAnswer{
			{Answer: "often", RiskScore: 5},
			{Answer: "daily", RiskScore: 4},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, domain.RiskLevelCritical, created.RiskLevel)
	assert.Equal(t, domain.UrgencyEmergency, created.Urgency)

	alerts, err := fx.alertRepo.ListWithFilter(context.Background(), alertFilterAll())
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, domain.AlertTypeAutoEscalation, alerts[0].Type)
	// critical alerts are routed to the first available admin immediately
	assert.Equal(t, domain.AlertStatusAcknowledged, alerts[0].Status)
	require.NotNil(t, alerts[0].AssignedConsultantID)
	assert.Equal(t, admin.ID, *alerts[0].AssignedConsultantID)
}

func TestCreateCaseValidation(t *testing.T) {
	fx := newCaseFixture(t)

	_, err := fx.cases.CreateCase(context.Background(), "user-1", CaseCreateInput{Category: " ", Description: "x"})
	assert.Equal(t, "VALIDATION_FAILED", errCode(t, err))

	_, err = fx.cases.CreateCase(context.Background(), "user-1", CaseCreateInput{Category: "x", Description: ""})
	assert.Equal(t, "VALIDATION_FAILED", errCode(t, err))
}

func TestTriggerPanicAlwaysCritical(t *testing.T) {
	fx := newCaseFixture(t)

	alert, err := fx.cases.TriggerPanic(context.Background(), "user-1", nil, "")
	require.NoError(t, err)
	assert.Equal(t, domain.AlertTypeManualPanic, alert.Type)
	assert.Equal(t, domain.RiskLevelCritical, alert.Severity)
	assert.Nil(t, alert.CaseID)
}

func TestTriggerPanicWithCaseOwnershipCheck(t *testing.T) {
	fx := newCaseFixture(t)
	created, err := fx.cases.CreateCase(context.Background(), "owner", CaseCreateInput{
		Category:    "personal",
		Description: "general question",
	})
	require.NoError(t, err)

	alert, err := fx.cases.TriggerPanic(context.Background(), "owner", &created.ID, "please call")
	require.NoError(t, err)
	require.NotNil(t, alert.CaseID)
	assert.Equal(t, created.ID, *alert.CaseID)

	// someone else's case reads as missing, never as forbidden
	_, err = fx.cases.TriggerPanic(context.Background(), "intruder", &created.ID, "")
	assert.Equal(t, "NOT_FOUND", errCode(t, err))
}

func TestGetCaseForUserHidesOtherCases(t *testing.T) {
	fx := newCaseFixture(t)
	created, err := fx.cases.CreateCase(context.Background(), "owner", CaseCreateInput{
		Category:    "legal",
		Description: "contract question",
	})
	require.NoError(t, err)

	found, err := fx.cases.GetCaseForUser(context.Background(), "owner", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	_, err = fx.cases.GetCaseForUser(context.Background(), "intruder", created.ID)
	assert.Equal(t, "NOT_FOUND", errCode(t, err))
}

func TestUpdateStatusTransitions(t *testing.T) {
	fx := newCaseFixture(t)
	primary := seedConsultant(t, fx.consultants, domain.ConsultantRoleConsultant, true)
	other := seedConsultant(t, fx.consultants, domain.ConsultantRoleConsultant, true)

	created, err := fx.cases.CreateCase(context.Background(), "user-1", CaseCreateInput{
		Category:    "personal",
		Description: "general question",
	})
	require.NoError(t, err)

	require.NoError(t, fx.memberRepo.ClaimPrimary(context.Background(), &domain.CaseTeamMember{
		CaseID:       created.ID,
		ConsultantID: primary.ID,
	}))

	// non-primary consultants cannot drive the lifecycle
	_, err = fx.cases.UpdateStatus(context.Background(), other, created.ID, domain.CaseStatusCompleted)
	assert.Equal(t, "FORBIDDEN", errCode(t, err))

	updated, err := fx.cases.UpdateStatus(context.Background(), primary, created.ID, domain.CaseStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.CaseStatusCompleted, updated.Status)

	// completed is terminal
	_, err = fx.cases.UpdateStatus(context.Background(), primary, created.ID, domain.CaseStatusInProgress)
	assert.Equal(t, "CONFLICT", errCode(t, err))

	changes := fx.historyRepo.byType(domain.ChangeTypeStatus)
	require.NotEmpty(t, changes)
}

func TestListUserCasesScopedToSubmitter(t *testing.T) {
	fx := newCaseFixture(t)

	_, err := fx.cases.CreateCase(context.Background(), "alice", CaseCreateInput{Category: "a", Description: "first"})
	require.NoError(t, err)
	_, err = fx.cases.CreateCase(context.Background(), "alice", CaseCreateInput{Category: "b", Description: "second"})
	require.NoError(t, err)
	_, err = fx.cases.CreateCase(context.Background(), "bob", CaseCreateInput{Category: "c", Description: "third"})
	require.NoError(t, err)

	mine, err := fx.cases.ListUserCases(context.Background(), "alice", CaseUserFilter{})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
}

func alertFilterAll() repository.AlertFilter { return repository.AlertFilter{} }
