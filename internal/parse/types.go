package parse

import (
	"time"

	"github.com/hanqizheng/mailfacts/internal/registry"
)

// Confidence levels used by the deterministic matchers.
const (
	ConfidenceVeryHigh = 0.95
	ConfidenceHigh     = 0.8
	ConfidenceMedium   = 0.6
	ConfidenceLow      = 0.3
)

// MatchMethod records which resolver tier produced a project match.
type MatchMethod string

const (
	MethodExact MatchMethod = "exact_match"
	MethodAlias MatchMethod = "alias_match"
	MethodFuzzy MatchMethod = "fuzzy_match"
	MethodNone  MatchMethod = "no_match"
)

// MatchType is the provenance of the final project match as reported to
// downstream consumers.
type MatchType string

const (
	MatchExact       MatchType = "exact"
	MatchFuzzyType   MatchType = "fuzzy"
	MatchAIExtracted MatchType = "ai_extracted"
)

// SourceMessage is one raw email file handed to the batch orchestrator.
type SourceMessage struct {
	Filename   string
	RawContent []byte
	SizeBytes  int64
}

// Options is the runtime configuration for one batch run.
type Options struct {
	EnableAI              bool
	FuzzyMatchThreshold   float64
	AIConfidenceThreshold float64
	MaxContentLength      int
	PlatformDomains       []string
	Projects              []registry.Project
	Stages                []registry.Stage
}

// ProjectMatch is the resolver's verdict for one message.
type ProjectMatch struct {
	ProjectName string // "" when no project matched
	Confidence  float64
	Method      MatchMethod
	Evidence    []string
}

// CounterpartyInfo identifies the external party in the exchange. Either
// field may be empty when extraction found nothing.
type CounterpartyInfo struct {
	Name  string
	Email string
}

// NameSignal is an AI-extracted counterparty name.
type NameSignal struct {
	Value      string
	Confidence float64
	Evidence   string
}

// StageSignal is an AI-classified communication stage.
type StageSignal struct {
	Value      string // a configured stage id
	Confidence float64
	Reasoning  string
}

// Enrichment carries whatever the AI calls produced. Either half is nil
// when the corresponding call was skipped or degraded.
type Enrichment struct {
	PartnerName *NameSignal
	Stage       *StageSignal
}

// ParsingResult is the synthesized record for one message.
type ParsingResult struct {
	ProjectName        string    `json:"project_name,omitempty"`
	PartnerName        string    `json:"partner_name,omitempty"`
	PartnerEmail       string    `json:"partner_email,omitempty"`
	CommunicationStage string    `json:"communication_stage,omitempty"`
	Success            bool      `json:"success"`
	ErrorReason        string    `json:"error_reason,omitempty"`
	Filename           string    `json:"filename"`
	EmailSubject       string    `json:"email_subject,omitempty"`
	EmailDate          time.Time `json:"email_date,omitempty"`
	EmailFrom          string    `json:"email_from,omitempty"`
	Confidence         float64   `json:"confidence"`
	MatchType          MatchType `json:"match_type"`
	ProcessingTimeMs   int64     `json:"processing_time_ms"`
}

// Summary aggregates one batch run.
type Summary struct {
	Total             int     `json:"total"`
	Successful        int     `json:"successful"`
	Failed            int     `json:"failed"`
	AverageConfidence float64 `json:"average_confidence"`
	ProcessingTimeMs  int64   `json:"processing_time_ms"`
}

// BatchResult is everything a batch run produced: one result per input
// file plus out-of-band error strings for files that failed outright.
type BatchResult struct {
	Results []ParsingResult `json:"results"`
	Summary Summary         `json:"summary"`
	Errors  []string        `json:"errors,omitempty"`
}
