package parse

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/hanqizheng/mailfacts/internal/registry"
)

// stubChat returns canned responses keyed by a substring of the system
// prompt, and records every call.
type stubChat struct {
	nameResponse  string
	stageResponse string
	err           error
	calls         []string
}

func (s *stubChat) Chat(_ context.Context, systemPrompt, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(systemPrompt, "partner") {
		s.calls = append(s.calls, "name")
		return s.nameResponse, nil
	}
	s.calls = append(s.calls, "stage")
	return s.stageResponse, nil
}

func testStages() []registry.Stage {
	return []registry.Stage{
		{ID: "initial_contact", Name: "Initial contact", Order: 1},
		{ID: "negotiation", Name: "Negotiation", Order: 2},
		{ID: "contract", Name: "Contract", Order: 3},
	}
}

func TestEnrichBothSignals(t *testing.T) {
	stub := &stubChat{
		nameResponse:  `{"partnerName": "Acme GmbH", "confidence": 0.9, "evidence": "signature block"}`,
		stageResponse: `{"stage": "negotiation", "confidence": 0.8, "reasoning": "discount discussion"}`,
	}
	e := NewEnricher(stub, testStages())

	outcome := e.Enrich(context.Background(), "some body", CounterpartyInfo{Email: "x@acme.io"})

	if outcome.Enrichment.PartnerName == nil {
		t.Fatal("expected a name signal")
	}
	if outcome.Enrichment.PartnerName.Value != "Acme GmbH" {
		t.Errorf("got name %q, want %q", outcome.Enrichment.PartnerName.Value, "Acme GmbH")
	}
	if outcome.Enrichment.Stage == nil {
		t.Fatal("expected a stage signal")
	}
	if outcome.Enrichment.Stage.Value != "negotiation" {
		t.Errorf("got stage %q, want %q", outcome.Enrichment.Stage.Value, "negotiation")
	}
	if len(outcome.Degraded) != 0 {
		t.Errorf("unexpected degradations: %v", outcome.Degraded)
	}
}

func TestEnrichSkipsNameWhenAlreadyKnown(t *testing.T) {
	stub := &stubChat{
		stageResponse: `{"stage": "contract", "confidence": 0.7, "reasoning": "signing"}`,
	}
	e := NewEnricher(stub, testStages())

	outcome := e.Enrich(context.Background(), "body", CounterpartyInfo{Name: "Anna Schmidt", Email: "a@client.de"})

	if outcome.Enrichment.PartnerName != nil {
		t.Error("name extraction should be skipped when a plausible name exists")
	}
	for _, c := range stub.calls {
		if c == "name" {
			t.Error("name call should not have been made")
		}
	}
	if outcome.Enrichment.Stage == nil {
		t.Error("stage classification must still run")
	}
}

func TestEnrichRunsNameForBareEmailName(t *testing.T) {
	stub := &stubChat{
		nameResponse:  `{"partnerName": "Jordan Lee", "confidence": 0.85, "evidence": "sig"}`,
		stageResponse: `{"stage": "contract", "confidence": 0.7, "reasoning": "r"}`,
	}
	e := NewEnricher(stub, testStages())

	outcome := e.Enrich(context.Background(), "body", CounterpartyInfo{Name: "jordan@acme.io", Email: "jordan@acme.io"})
	if outcome.Enrichment.PartnerName == nil {
		t.Fatal("a name that is just an email address should trigger extraction")
	}
}

func TestEnrichStripsCodeFences(t *testing.T) {
	stub := &stubChat{
		nameResponse:  "```json\n{\"partnerName\": \"Acme\", \"confidence\": 0.9, \"evidence\": \"\"}\n```",
		stageResponse: "```\n{\"stage\": \"contract\", \"confidence\": 0.6, \"reasoning\": \"\"}\n```",
	}
	e := NewEnricher(stub, testStages())

	outcome := e.Enrich(context.Background(), "body", CounterpartyInfo{})
	if outcome.Enrichment.PartnerName == nil || outcome.Enrichment.PartnerName.Value != "Acme" {
		t.Errorf("fenced name response not parsed: %+v", outcome.Enrichment.PartnerName)
	}
	if outcome.Enrichment.Stage == nil || outcome.Enrichment.Stage.Value != "contract" {
		t.Errorf("fenced stage response not parsed: %+v", outcome.Enrichment.Stage)
	}
}

func TestEnrichDegradations(t *testing.T) {
	tests := []struct {
		name          string
		nameResponse  string
		stageResponse string
		err           error
		wantName      bool
		wantStage     bool
		wantDegraded  int
	}{
		{
			name:          "explicit null name",
			nameResponse:  `{"partnerName": null, "confidence": 0, "evidence": ""}`,
			stageResponse: `{"stage": "contract", "confidence": 0.7, "reasoning": ""}`,
			wantName:      false,
			wantStage:     true,
			wantDegraded:  1,
		},
		{
			name:          "non-json name response",
			nameResponse:  "I could not find a partner name in this email.",
			stageResponse: `{"stage": "contract", "confidence": 0.7, "reasoning": ""}`,
			wantName:      false,
			wantStage:     true,
			wantDegraded:  1,
		},
		{
			name:          "unknown stage id",
			nameResponse:  `{"partnerName": "Acme", "confidence": 0.9, "evidence": ""}`,
			stageResponse: `{"stage": "shipping", "confidence": 0.7, "reasoning": ""}`,
			wantName:      true,
			wantStage:     false,
			wantDegraded:  1,
		},
		{
			name:         "transport failure degrades both",
			err:          fmt.Errorf("connection refused"),
			wantName:     false,
			wantStage:    false,
			wantDegraded: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stub := &stubChat{nameResponse: tt.nameResponse, stageResponse: tt.stageResponse, err: tt.err}
			e := NewEnricher(stub, testStages())

			outcome := e.Enrich(context.Background(), "body", CounterpartyInfo{})

			if got := outcome.Enrichment.PartnerName != nil; got != tt.wantName {
				t.Errorf("name signal present=%v, want %v", got, tt.wantName)
			}
			if got := outcome.Enrichment.Stage != nil; got != tt.wantStage {
				t.Errorf("stage signal present=%v, want %v", got, tt.wantStage)
			}
			if len(outcome.Degraded) != tt.wantDegraded {
				t.Errorf("got %d degradations (%v), want %d", len(outcome.Degraded), outcome.Degraded, tt.wantDegraded)
			}
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"no fences", `{"a":1}`, `{"a":1}`},
		{"plain fences", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"json language tag", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding whitespace", "  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripCodeFences(tt.input); got != tt.expected {
				t.Errorf("got %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestEnrichConfidenceClamped(t *testing.T) {
	stub := &stubChat{
		nameResponse:  `{"partnerName": "Acme", "confidence": 3.5, "evidence": ""}`,
		stageResponse: `{"stage": "contract", "confidence": -1, "reasoning": ""}`,
	}
	e := NewEnricher(stub, testStages())

	outcome := e.Enrich(context.Background(), "body", CounterpartyInfo{})
	if c := outcome.Enrichment.PartnerName.Confidence; c != 1 {
		t.Errorf("name confidence %v should clamp to 1", c)
	}
	if c := outcome.Enrichment.Stage.Confidence; c != 0 {
		t.Errorf("stage confidence %v should clamp to 0", c)
	}
}
