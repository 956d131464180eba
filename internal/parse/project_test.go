package parse

import (
	"strings"
	"testing"

	"github.com/hanqizheng/mailfacts/internal/registry"
)

func TestResolveProjectExactMatch(t *testing.T) {
	projects := testProjects()
	ix := NewIndex(projects)

	tests := []struct {
		name    string
		subject string
		body    string
		project string
	}{
		{
			name:    "name in subject",
			subject: "re: project atlas kickoff",
			body:    "unrelated body text",
			project: "Atlas",
		},
		{
			name:    "name in body only",
			subject: "follow up",
			body:    "the horizon 2026 launch plan is attached",
			project: "Horizon 2026",
		},
		{
			name:    "case insensitive",
			subject: "ATLAS budget",
			body:    "",
			project: "Atlas",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			match := ResolveProject(tt.subject, tt.body, projects, ix, 0.5)
			if match.Method != MethodExact {
				t.Fatalf("got method %s, want %s", match.Method, MethodExact)
			}
			if match.ProjectName != tt.project {
				t.Errorf("got project %q, want %q", match.ProjectName, tt.project)
			}
			if match.Confidence != ConfidenceVeryHigh {
				t.Errorf("got confidence %.2f, want %.2f", match.Confidence, ConfidenceVeryHigh)
			}
			if len(match.Evidence) == 0 {
				t.Error("exact match should carry evidence")
			}
		})
	}
}

func TestResolveProjectAliasMatch(t *testing.T) {
	projects := testProjects()
	ix := NewIndex(projects)

	match := ResolveProject("h26 budget approval", "", projects, ix, 0.5)
	if match.Method != MethodAlias {
		t.Fatalf("got method %s, want %s", match.Method, MethodAlias)
	}
	if match.ProjectName != "Horizon 2026" {
		t.Errorf("got project %q, want %q", match.ProjectName, "Horizon 2026")
	}
	if match.Confidence != ConfidenceHigh {
		t.Errorf("got confidence %.2f, want %.2f", match.Confidence, ConfidenceHigh)
	}
}

func TestResolveProjectExactBeatsAlias(t *testing.T) {
	// "project atlas" contains both the name "Atlas" and the alias
	// "project atlas"; the exact tier must win.
	projects := testProjects()
	ix := NewIndex(projects)

	match := ResolveProject("project atlas review", "", projects, ix, 0.5)
	if match.Method != MethodExact {
		t.Errorf("got method %s, want %s", match.Method, MethodExact)
	}
}

func TestResolveProjectRegistryOrderBreaksTies(t *testing.T) {
	projects := []registry.Project{
		{ID: "alpha", Name: "Mercury"},
		{ID: "beta", Name: "Mercury Rising"},
	}
	ix := NewIndex(projects)

	match := ResolveProject("mercury rising launch", "", projects, ix, 0.5)
	if match.ProjectName != "Mercury" {
		t.Errorf("first configured project should win, got %q", match.ProjectName)
	}
}

func TestResolveProjectFuzzyMatch(t *testing.T) {
	projects := testProjects()
	ix := NewIndex(projects)

	match := ResolveProject("notes on atlqs timeline", "", projects, ix, 0.5)
	if match.Method != MethodFuzzy {
		t.Fatalf("got method %s, want %s", match.Method, MethodFuzzy)
	}
	if match.ProjectName != "Atlas" {
		t.Errorf("got project %q, want %q", match.ProjectName, "Atlas")
	}
	if match.Confidence < ConfidenceLow || match.Confidence >= ConfidenceVeryHigh {
		t.Errorf("fuzzy confidence %.2f out of expected range", match.Confidence)
	}
}

func TestResolveProjectNoMatch(t *testing.T) {
	projects := testProjects()
	ix := NewIndex(projects)

	match := ResolveProject("quarterly payroll summary", "attached as requested", projects, ix, 0.5)
	if match.Method != MethodNone {
		t.Fatalf("got method %s, want %s", match.Method, MethodNone)
	}
	if match.ProjectName != "" {
		t.Errorf("got project %q, want empty", match.ProjectName)
	}
	if match.Confidence != 0 {
		t.Errorf("got confidence %.2f, want 0", match.Confidence)
	}
	if len(match.Evidence) != 0 {
		t.Errorf("no-match should carry no evidence, got %v", match.Evidence)
	}
}

func TestResolveProjectEmptyRegistry(t *testing.T) {
	ix := NewIndex(nil)

	match := ResolveProject("project atlas kickoff", "", nil, ix, 0.5)
	if match.Method != MethodNone {
		t.Errorf("empty registry should yield %s, got %s", MethodNone, match.Method)
	}
}

func TestResolveProjectFuzzyWindowExcludesTail(t *testing.T) {
	projects := testProjects()
	ix := NewIndex(projects)

	body := strings.Repeat("filler ", 100) + "atlqs"
	match := ResolveProject("status", body, projects, ix, 0.5)
	if match.Method == MethodFuzzy {
		t.Errorf("typo beyond the fuzzy window should not match, got %+v", match)
	}
}
