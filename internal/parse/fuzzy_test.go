package parse

import (
	"strings"
	"testing"

	"github.com/hanqizheng/mailfacts/internal/registry"
)

func testProjects() []registry.Project {
	return []registry.Project{
		{ID: "atlas", Name: "Atlas", Aliases: []string{"project atlas"}},
		{ID: "horizon-2026", Name: "Horizon 2026", Aliases: []string{"horizon", "h26"}},
	}
}

func TestIndexSearchFindsCloseToken(t *testing.T) {
	ix := NewIndex(testProjects())

	hit := ix.Search("kickoff notes for atlqs next week")
	if hit == nil {
		t.Fatal("expected a hit for a one-letter typo")
	}
	if hit.Project != "Atlas" {
		t.Errorf("got project %q, want %q", hit.Project, "Atlas")
	}
	if hit.Score >= 0.5 {
		t.Errorf("score %.3f should be below 0.5 for a close typo", hit.Score)
	}
}

func TestIndexSearchScoresNamesAboveAliases(t *testing.T) {
	projects := []registry.Project{
		{ID: "p", Name: "zephyr", Aliases: []string{"zephyr"}},
	}
	ix := NewIndex(projects)

	// Same text for name and alias entry; the name's higher weight must
	// produce the lower (better) distance score.
	name := weightedDistance("zephyr", "zephir", nameWeight)
	alias := weightedDistance("zephyr", "zephir", aliasWeight)
	if name >= alias {
		t.Errorf("name-weighted score %.3f should beat alias-weighted %.3f", name, alias)
	}

	if hit := ix.Search("meeting about zephir"); hit == nil {
		t.Error("expected a hit")
	}
}

func TestIndexSearchEmptyRegistry(t *testing.T) {
	ix := NewIndex(nil)
	if hit := ix.Search("anything at all"); hit != nil {
		t.Errorf("empty index should return nil, got %+v", hit)
	}
}

func TestIndexSearchIgnoresDistantText(t *testing.T) {
	ix := NewIndex(testProjects())

	hit := ix.Search("quarterly payroll summary attached")
	if hit != nil && hit.Score < 0.5 {
		t.Errorf("unrelated text produced score %.3f against %q", hit.Score, hit.Matched)
	}
}

func TestIndexSearchWindowLimit(t *testing.T) {
	ix := NewIndex(testProjects())

	// Push the only mention past the 500-char search window.
	text := strings.Repeat("xx ", 200) + "atlas"
	hit := ix.Search(text)
	if hit != nil && hit.Score < 0.5 {
		t.Errorf("match beyond the search window should not score, got %.3f", hit.Score)
	}
}

func TestWeightedDistanceBounds(t *testing.T) {
	tests := []struct {
		name   string
		entry  string
		token  string
		weight float64
	}{
		{"identical", "atlas", "atlas", nameWeight},
		{"disjoint", "atlas", "zzzzz", nameWeight},
		{"alias weight", "horizon", "horizn", aliasWeight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := weightedDistance(tt.entry, tt.token, tt.weight)
			if got < 0 || got > 1 {
				t.Errorf("score %.3f out of [0,1]", got)
			}
		})
	}

	if got := weightedDistance("atlas", "atlas", nameWeight); got != 0 {
		t.Errorf("identical strings should score 0, got %.3f", got)
	}
}
