package parse

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/hanqizheng/mailfacts/internal/registry"
)

// ChatClient is the request/response capability the enricher depends on.
// Transport, authentication, and rate limiting live behind it.
type ChatClient interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// EnrichmentOutcome is the typed result of an enrichment attempt. A failed
// or skipped call leaves the corresponding Enrichment half nil and records
// a reason; it is never surfaced as an error.
type EnrichmentOutcome struct {
	Enrichment Enrichment
	Degraded   []string
}

// Enricher runs the two optional AI calls: counterparty name extraction
// and communication-stage classification.
type Enricher struct {
	client ChatClient
	stages []registry.Stage
}

func NewEnricher(client ChatClient, stages []registry.Stage) *Enricher {
	return &Enricher{client: client, stages: stages}
}

const nameSystemPrompt = `You extract the external business partner's personal or company name from an email.
Respond with JSON only, no prose:
  {"partnerName": "<name>", "confidence": <0..1>, "evidence": "<short quote>"}
If no partner name can be determined, respond with:
  {"partnerName": null, "confidence": 0, "evidence": ""}`

const stageSystemPromptHeader = `You classify a business email into exactly one negotiation stage.
Valid stages:
`

const stageSystemPromptFooter = `Respond with JSON only, no prose:
  {"stage": "<stage id>", "confidence": <0..1>, "reasoning": "<one sentence>"}
The stage value must be one of the listed ids.`

// Enrich runs name extraction (only when the deterministic name is absent
// or is just an email address) and stage classification, sequentially.
// Each call degrades independently.
func (e *Enricher) Enrich(ctx context.Context, body string, info CounterpartyInfo) EnrichmentOutcome {
	outcome := EnrichmentOutcome{}

	if needsNameExtraction(info) {
		signal, err := e.extractName(ctx, body)
		if err != nil {
			log.Printf("Warning: AI name extraction degraded: %v", err)
			outcome.Degraded = append(outcome.Degraded, fmt.Sprintf("name extraction: %v", err))
		} else {
			outcome.Enrichment.PartnerName = signal
		}
	}

	signal, err := e.classifyStage(ctx, body)
	if err != nil {
		log.Printf("Warning: AI stage classification degraded: %v", err)
		outcome.Degraded = append(outcome.Degraded, fmt.Sprintf("stage classification: %v", err))
	} else {
		outcome.Enrichment.Stage = signal
	}

	return outcome
}

// needsNameExtraction reports whether the deterministic name is missing or
// is effectively just an email address.
func needsNameExtraction(info CounterpartyInfo) bool {
	return info.Name == "" || emailRegex.MatchString(info.Name)
}

func (e *Enricher) extractName(ctx context.Context, body string) (*NameSignal, error) {
	content, err := e.client.Chat(ctx, nameSystemPrompt, body)
	if err != nil {
		return nil, fmt.Errorf("chat call failed: %w", err)
	}

	var parsed struct {
		PartnerName *string `json:"partnerName"`
		Confidence  float64 `json:"confidence"`
		Evidence    string  `json:"evidence"`
	}
	if err := json.Unmarshal([]byte(StripCodeFences(content)), &parsed); err != nil {
		return nil, fmt.Errorf("unparseable response: %w", err)
	}

	// An explicit null answer is treated the same as a failed call.
	if parsed.PartnerName == nil || strings.TrimSpace(*parsed.PartnerName) == "" {
		return nil, fmt.Errorf("model found no partner name")
	}

	return &NameSignal{
		Value:      strings.TrimSpace(*parsed.PartnerName),
		Confidence: clampConfidence(parsed.Confidence),
		Evidence:   parsed.Evidence,
	}, nil
}

func (e *Enricher) classifyStage(ctx context.Context, body string) (*StageSignal, error) {
	content, err := e.client.Chat(ctx, e.stagePrompt(), body)
	if err != nil {
		return nil, fmt.Errorf("chat call failed: %w", err)
	}

	var parsed struct {
		Stage      *string `json:"stage"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	}
	if err := json.Unmarshal([]byte(StripCodeFences(content)), &parsed); err != nil {
		return nil, fmt.Errorf("unparseable response: %w", err)
	}
	if parsed.Stage == nil || *parsed.Stage == "" {
		return nil, fmt.Errorf("model returned no stage")
	}

	stageID := strings.TrimSpace(*parsed.Stage)
	if !e.validStage(stageID) {
		return nil, fmt.Errorf("model returned unknown stage %q", stageID)
	}

	return &StageSignal{
		Value:      stageID,
		Confidence: clampConfidence(parsed.Confidence),
		Reasoning:  parsed.Reasoning,
	}, nil
}

func (e *Enricher) stagePrompt() string {
	var sb strings.Builder
	sb.WriteString(stageSystemPromptHeader)
	for _, s := range e.stages {
		fmt.Fprintf(&sb, "  - %s: %s", s.ID, s.Name)
		if s.Description != "" {
			fmt.Fprintf(&sb, " (%s)", s.Description)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(stageSystemPromptFooter)
	return sb.String()
}

func (e *Enricher) validStage(id string) bool {
	for _, s := range e.stages {
		if strings.EqualFold(s.ID, id) {
			return true
		}
	}
	return false
}

// StripCodeFences removes leading/trailing markdown code-fence markers so
// fenced JSON answers still parse.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}

	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clampConfidence(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
