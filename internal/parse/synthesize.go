package parse

import "strings"

// Synthesize merges the three signal sources into one record and decides
// success. Message metadata and timing are filled in by the orchestrator.
func Synthesize(match ProjectMatch, info CounterpartyInfo, enrichment Enrichment, aiConfidenceThreshold float64) ParsingResult {
	result := ParsingResult{
		ProjectName:  match.ProjectName,
		PartnerEmail: info.Email,
	}

	aiNameUsed := enrichment.PartnerName != nil
	if aiNameUsed {
		result.PartnerName = enrichment.PartnerName.Value
	} else {
		result.PartnerName = info.Name
	}

	if enrichment.Stage != nil {
		result.CommunicationStage = enrichment.Stage.Value
	}

	result.Confidence = blendConfidence(match, info, enrichment)
	result.MatchType = deriveMatchType(match, enrichment)

	var reasons []string
	if result.ProjectName == "" {
		reasons = append(reasons, "project name not recognized")
	}
	if result.PartnerEmail == "" {
		reasons = append(reasons, "partner email not found")
	}
	if result.Confidence <= aiConfidenceThreshold {
		reasons = append(reasons, "confidence too low")
	}

	if len(reasons) == 0 {
		result.Success = true
	} else {
		result.ErrorReason = strings.Join(reasons, "; ")
	}
	return result
}

// blendConfidence averages the non-zero values among the project, name,
// and stage confidences. Missing signals are dropped from the mean rather
// than counted as zeros, which shifts the weighting when signals are
// absent; downstream consumers depend on this exact arithmetic.
func blendConfidence(match ProjectMatch, info CounterpartyInfo, enrichment Enrichment) float64 {
	nameConfidence := 0.0
	switch {
	case enrichment.PartnerName != nil:
		nameConfidence = enrichment.PartnerName.Confidence
	case info.Name != "":
		nameConfidence = ConfidenceMedium
	}

	stageConfidence := 0.0
	if enrichment.Stage != nil {
		stageConfidence = enrichment.Stage.Confidence
	}

	sum, n := 0.0, 0
	for _, v := range []float64{match.Confidence, nameConfidence, stageConfidence} {
		if v > 0 {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

func deriveMatchType(match ProjectMatch, enrichment Enrichment) MatchType {
	if match.Method == MethodFuzzy {
		return MatchFuzzyType
	}
	if enrichment.PartnerName != nil || enrichment.Stage != nil {
		return MatchAIExtracted
	}
	return MatchExact
}
