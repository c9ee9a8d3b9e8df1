package risk

import (
	"strings"

	"github.com/spec-kit/consultation-service/internal/domain"
)

// Config carries the injected scoring configuration. Callers pass it by value
// so a scorer invocation never observes ambient mutable state.
type Config struct {
	CrisisKeywords []string
}

// Assessment is the scorer output stored on the case at intake.
type Assessment struct {
	RiskLevel          domain.RiskLevel
	Urgency            domain.Urgency
	RequiresEscalation bool
	Flags              []string
}

// Structured-answer score thresholds.
const (
	scoreCritical = 8
	scoreHigh     = 5
	scoreMedium   = 3

	scoreEmergency = 7
	scoreUrgent    = 4
)

// Keyword-match thresholds.
const (
	keywordsCritical = 3
	keywordsHigh     = 2
)

// Score inspects free text and structured screening answers and returns a
// risk assessment. It is pure: no I/O, no clock, no randomness. Empty input
// degrades to low/normal with no escalation; it never fails, so a scoring
// shortfall can never block a submission.
func Score(cfg Config, text string, answers []domain.ScreeningAnswer) Assessment {
	flags := matchKeywords(cfg.CrisisKeywords, text)

	sum := 0
	for _, answer := range answers {
		sum += answer.RiskScore
	}

	level := levelFromScore(sum)
	if keywordLevel := levelFromKeywords(len(flags)); rank(keywordLevel) > rank(level) {
		level = keywordLevel
	}

	return Assessment{
		RiskLevel:          level,
		Urgency:            urgencyFromScore(sum),
		RequiresEscalation: len(flags) > 0 || sum >= scoreMedium,
		Flags:              flags,
	}
}

func matchKeywords(keywords []string, text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	lowered := strings.ToLower(text)
	var flags []string
	for _, keyword := range keywords {
		keyword = strings.TrimSpace(keyword)
		if keyword == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(keyword)) {
			flags = append(flags, keyword)
		}
	}
	return flags
}

func levelFromScore(sum int) domain.RiskLevel {
	switch {
	case sum >= scoreCritical:
		return domain.RiskLevelCritical
	case sum >= scoreHigh:
		return domain.RiskLevelHigh
	case sum >= scoreMedium:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelLow
	}
}

func levelFromKeywords(count int) domain.RiskLevel {
	switch {
	case count >= keywordsCritical:
		return domain.RiskLevelCritical
	case count >= keywordsHigh:
		return domain.RiskLevelHigh
	case count >= 1:
		return domain.RiskLevelMedium
	default:
		return domain.RiskLevelLow
	}
}

func urgencyFromScore(sum int) domain.Urgency {
	switch {
	case sum >= scoreEmergency:
		return domain.UrgencyEmergency
	case sum >= scoreUrgent:
		return domain.UrgencyUrgent
	default:
		return domain.UrgencyNormal
	}
}

func rank(level domain.RiskLevel) int {
	switch level {
	case domain.RiskLevelCritical:
		return 3
	case domain.RiskLevelHigh:
		return 2
	case domain.RiskLevelMedium:
		return 1
	default:
		return 0
	}
}
