// Package project holds the domain model shared by the index store, the
// lifecycle engine and the CLI: stages, projects, the project index, the
// stage directory layout and configuration.
package project

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

// IndexVersion is the schema version written to new index files.
const IndexVersion = "1"

// Project is one managed project.
//
// Path equals Layout.Path(Stage, Name) whenever index and disk agree.
type Project struct {
	Name         string    `json:"-"`
	Stage        Stage     `json:"stage"`
	CreatedAt    time.Time `json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
	Path         string    `json:"path"`
	Note         string    `json:"note,omitempty"`
}

// Index is the in-memory project index: a single flat namespace keyed by
// project name across all stages.
type Index struct {
	Version     string
	LastUpdated time.Time

	projects map[string]Project
}

// NewIndex returns an empty index at the current schema version.
func NewIndex() *Index {
	return &Index{
		Version:  IndexVersion,
		projects: make(map[string]Project),
	}
}

// Len returns the number of projects.
func (idx *Index) Len() int {
	return len(idx.projects)
}

// Lookup returns the project named name.
func (idx *Index) Lookup(name string) (Project, bool) {
	p, ok := idx.projects[name]

	return p, ok
}

// Register adds a new project. It fails with [ErrNameCollision] if the
// name is already used by a project in any stage.
func (idx *Index) Register(p Project) error {
	if existing, ok := idx.projects[p.Name]; ok {
		return fmt.Errorf("%w: %q already exists in %s", ErrNameCollision, p.Name, existing.Stage)
	}

	idx.projects[p.Name] = p

	return nil
}

// Put inserts or replaces the project with p.Name.
func (idx *Index) Put(p Project) {
	idx.projects[p.Name] = p
}

// Remove deletes name from the index. Returns false if it was absent.
func (idx *Index) Remove(name string) bool {
	if _, ok := idx.projects[name]; !ok {
		return false
	}

	delete(idx.projects, name)

	return true
}

// Names returns all project names sorted.
func (idx *Index) Names() []string {
	names := make([]string, 0, len(idx.projects))
	for name := range idx.projects {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// All returns every project ordered by name.
func (idx *Index) All() []Project {
	out := make([]Project, 0, len(idx.projects))
	for _, name := range idx.Names() {
		out = append(out, idx.projects[name])
	}

	return out
}

// ByStage groups projects by stage. Within a stage, projects are ordered by
// most recently modified first, then by name.
func (idx *Index) ByStage() map[Stage][]Project {
	groups := make(map[Stage][]Project)
	for _, p := range idx.projects {
		groups[p.Stage] = append(groups[p.Stage], p)
	}

	for _, list := range groups {
		slices.SortFunc(list, func(a, b Project) int {
			if c := b.LastModified.Compare(a.LastModified); c != 0 {
				return c
			}

			return cmp.Compare(a.Name, b.Name)
		})
	}

	return groups
}

// Count returns the number of projects in stage.
func (idx *Index) Count(stage Stage) int {
	n := 0

	for _, p := range idx.projects {
		if p.Stage == stage {
			n++
		}
	}

	return n
}

// Clone returns a deep copy of the index.
func (idx *Index) Clone() *Index {
	out := &Index{
		Version:     idx.Version,
		LastUpdated: idx.LastUpdated,
		projects:    make(map[string]Project, len(idx.projects)),
	}

	for name, p := range idx.projects {
		out.projects[name] = p
	}

	return out
}
