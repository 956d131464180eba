package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Project is a known engagement that emails can be matched against.
type Project struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Status      string   `yaml:"status,omitempty" json:"status,omitempty"` // "active", "paused", "closed"
}

// Stage is one entry in the communication-stage taxonomy. The set of
// configured stages is the closed set of valid classification values.
type Stage struct {
	ID          string   `yaml:"id" json:"id"`
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Order       int      `yaml:"order" json:"order"`
}

type ProjectDatabase struct {
	Projects []Project `yaml:"projects"`
}

type StageDatabase struct {
	Stages []Stage `yaml:"stages"`
}

// LoadProjects reads a project registry from a YAML file.
func LoadProjects(path string) (*ProjectDatabase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read project file: %w", err)
	}

	var db ProjectDatabase
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse project file: %w", err)
	}

	for i := range db.Projects {
		sanitizeProject(&db.Projects[i])
	}
	return &db, nil
}

// LoadProjectsFromDir merges every .yaml/.yml file in a directory, in
// filename order, so registry order stays stable across runs.
func LoadProjectsFromDir(dir string) (*ProjectDatabase, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read project directory: %w", err)
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !strings.HasSuffix(entry.Name(), ".yaml") && !strings.HasSuffix(entry.Name(), ".yml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	db := &ProjectDatabase{}
	for _, name := range names {
		partial, err := LoadProjects(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", name, err)
		}
		db.Projects = append(db.Projects, partial.Projects...)
	}
	return db, nil
}

// LoadStages reads the stage taxonomy from a YAML file and returns the
// stages sorted by their configured order.
func LoadStages(path string) (*StageDatabase, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read stage file: %w", err)
	}

	var db StageDatabase
	if err := yaml.Unmarshal(data, &db); err != nil {
		return nil, fmt.Errorf("failed to parse stage file: %w", err)
	}

	sort.SliceStable(db.Stages, func(i, j int) bool {
		return db.Stages[i].Order < db.Stages[j].Order
	})
	return &db, nil
}

func sanitizeProject(p *Project) {
	p.Name = strings.TrimSpace(p.Name)
	cleaned := p.Aliases[:0]
	for _, a := range p.Aliases {
		a = strings.TrimSpace(a)
		if a != "" {
			cleaned = append(cleaned, a)
		}
	}
	p.Aliases = cleaned
}

func (db *ProjectDatabase) FindByID(id string) *Project {
	id = strings.ToLower(id)
	for i := range db.Projects {
		if strings.ToLower(db.Projects[i].ID) == id {
			return &db.Projects[i]
		}
	}
	return nil
}

// Active returns projects whose status is not "closed". Projects with an
// empty status are treated as active.
func (db *ProjectDatabase) Active() []Project {
	var result []Project
	for _, p := range db.Projects {
		if strings.EqualFold(p.Status, "closed") {
			continue
		}
		result = append(result, p)
	}
	return result
}

func (db *StageDatabase) FindByID(id string) *Stage {
	id = strings.ToLower(id)
	for i := range db.Stages {
		if strings.ToLower(db.Stages[i].ID) == id {
			return &db.Stages[i]
		}
	}
	return nil
}

// IDs returns the stage ids in taxonomy order.
func (db *StageDatabase) IDs() []string {
	ids := make([]string, len(db.Stages))
	for i, s := range db.Stages {
		ids[i] = s.ID
	}
	return ids
}
