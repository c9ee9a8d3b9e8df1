package domain

// SubjectType differentiates submitter vs consultant tokens.
type SubjectType string

const (
	SubjectTypeUser       SubjectType = "USER"
	SubjectTypeConsultant SubjectType = "CONSULTANT"
)
