package parse

import (
	"fmt"
	"strings"

	"github.com/hanqizheng/mailfacts/internal/registry"
)

// matcherStrategy is one resolver tier. Strategies run in order and the
// first non-nil match wins, so adding a tier is a table change.
type matcherStrategy struct {
	name  string
	match func(text string, projects []registry.Project, ix *Index, threshold float64) *ProjectMatch
}

var matcherStrategies = []matcherStrategy{
	{name: "exact", match: matchExactName},
	{name: "alias", match: matchAlias},
	{name: "fuzzy", match: matchFuzzy},
}

// ResolveProject matches normalized subject and body text against the
// project registry. It always returns exactly one ProjectMatch; when no
// tier produces a hit the match has MethodNone and zero confidence.
func ResolveProject(subject, body string, projects []registry.Project, ix *Index, fuzzyThreshold float64) ProjectMatch {
	text := strings.ToLower(subject + " " + body)

	for _, strategy := range matcherStrategies {
		if m := strategy.match(text, projects, ix, fuzzyThreshold); m != nil {
			return *m
		}
	}

	return ProjectMatch{Method: MethodNone, Confidence: 0}
}

// matchExactName looks for a project's name as a case-insensitive
// substring. Registry order breaks ties.
func matchExactName(text string, projects []registry.Project, _ *Index, _ float64) *ProjectMatch {
	for _, p := range projects {
		if p.Name == "" {
			continue
		}
		if strings.Contains(text, strings.ToLower(p.Name)) {
			return &ProjectMatch{
				ProjectName: p.Name,
				Confidence:  ConfidenceVeryHigh,
				Method:      MethodExact,
				Evidence:    []string{fmt.Sprintf("project name %q found in message text", p.Name)},
			}
		}
	}
	return nil
}

// matchAlias applies the same substring test to every alias.
func matchAlias(text string, projects []registry.Project, _ *Index, _ float64) *ProjectMatch {
	for _, p := range projects {
		for _, alias := range p.Aliases {
			if alias == "" {
				continue
			}
			if strings.Contains(text, strings.ToLower(alias)) {
				return &ProjectMatch{
					ProjectName: p.Name,
					Confidence:  ConfidenceHigh,
					Method:      MethodAlias,
					Evidence:    []string{fmt.Sprintf("alias %q of project %q found in message text", alias, p.Name)},
				}
			}
		}
	}
	return nil
}

// matchFuzzy consults the prebuilt index and accepts the best candidate
// when its distance score clears the configured threshold.
func matchFuzzy(text string, _ []registry.Project, ix *Index, threshold float64) *ProjectMatch {
	if ix == nil {
		return nil
	}
	hit := ix.Search(text)
	if hit == nil || hit.Score >= threshold {
		return nil
	}

	confidence := 1 - hit.Score
	if confidence < ConfidenceLow {
		confidence = ConfidenceLow
	}
	return &ProjectMatch{
		ProjectName: hit.Project,
		Confidence:  confidence,
		Method:      MethodFuzzy,
		Evidence: []string{
			fmt.Sprintf("fuzzy match: %q resembles %q (distance %.2f)", hit.Token, hit.Matched, hit.Score),
		},
	}
}
