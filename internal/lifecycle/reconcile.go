package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-project/internal/project"
)

// SyncOptions configures [Engine.Sync].
type SyncOptions struct {
	// DryRun computes the report without saving the index.
	DryRun bool
}

// SyncReport describes what reconciliation changed, or would change.
type SyncReport struct {
	// Added are directories found on disk without an index entry.
	Added []project.Project
	// Removed are index entries whose directory no longer exists.
	Removed []project.Project
	// Relocated are entries whose directory was found under a different
	// container or path. Their metadata is kept.
	Relocated []Relocation
	// Conflicts are names present in more than one container. They are
	// reported only; nothing is adopted or deleted for them.
	Conflicts []Conflict
	// Skipped are directories whose names can not be project names, such
	// as names that are not valid UTF-8. They are never adopted.
	Skipped []string
	// Total is the number of index entries after reconciliation.
	Total  int
	DryRun bool
}

// Changed reports whether reconciliation altered the index.
func (r SyncReport) Changed() bool {
	return len(r.Added) > 0 || len(r.Removed) > 0 || len(r.Relocated) > 0
}

// Relocation records an entry moved to where its directory actually is.
type Relocation struct {
	Name     string
	From     project.Stage
	To       project.Stage
	FromPath string
	ToPath   string
}

// Conflict records a name that appears in several stage containers.
type Conflict struct {
	Name  string
	Paths []string
}

type sighting struct {
	stage project.Stage
	path  string
}

// Sync reconciles the index with the stage directories. Directories are
// authoritative for existence and stage, the index for metadata. No
// directory is ever created, moved or deleted.
func (e *Engine) Sync(ctx context.Context, opts SyncOptions) (SyncReport, error) {
	var report SyncReport

	err := e.mutate(ctx, string(OpSync), func(idx *project.Index) ([]Event, error) {
		target := idx
		if opts.DryRun {
			target = idx.Clone()
		}

		r, err := e.reconcile(target)
		if err != nil {
			return nil, err
		}

		r.DryRun = opts.DryRun
		report = r

		if opts.DryRun {
			return nil, nil
		}

		if err := e.store.Save(target); err != nil {
			return nil, err
		}

		e.log.Info("sync complete",
			zap.Int("added", len(r.Added)),
			zap.Int("removed", len(r.Removed)),
			zap.Int("relocated", len(r.Relocated)),
			zap.Int("conflicts", len(r.Conflicts)),
			zap.Int("total", r.Total))

		return nil, nil
	})
	if err != nil {
		return SyncReport{}, err
	}

	return report, nil
}

// reconcile applies the diff between disk and idx to idx. A listing error
// aborts before idx is modified.
func (e *Engine) reconcile(idx *project.Index) (SyncReport, error) {
	observed, skipped, err := e.observe()
	if err != nil {
		return SyncReport{}, err
	}

	report := SyncReport{Skipped: skipped}

	for _, path := range skipped {
		e.warn(fmt.Sprintf("ignoring %q: not a usable project name (rename the directory to adopt it)", path))
	}

	now := e.now().UTC()

	for _, p := range idx.All() {
		seen := observed[p.Name]

		switch {
		case len(seen) == 0:
			idx.Remove(p.Name)
			report.Removed = append(report.Removed, p)
		case len(seen) > 1:
			report.Conflicts = append(report.Conflicts, conflictOf(p.Name, seen))
		case seen[0].stage != p.Stage || filepath.Clean(seen[0].path) != filepath.Clean(p.Path):
			moved := p
			moved.Stage = seen[0].stage
			moved.Path = seen[0].path
			idx.Put(moved)
			report.Relocated = append(report.Relocated, Relocation{
				Name:     p.Name,
				From:     p.Stage,
				To:       moved.Stage,
				FromPath: p.Path,
				ToPath:   moved.Path,
			})
		}
	}

	names := make([]string, 0, len(observed))
	for name := range observed {
		names = append(names, name)
	}

	slices.Sort(names)

	for _, name := range names {
		if _, ok := idx.Lookup(name); ok {
			continue
		}

		seen := observed[name]
		if len(seen) > 1 {
			report.Conflicts = append(report.Conflicts, conflictOf(name, seen))

			continue
		}

		adopted := project.Project{
			Name:         name,
			Stage:        seen[0].stage,
			CreatedAt:    now,
			LastModified: now,
			Path:         seen[0].path,
		}
		idx.Put(adopted)
		report.Added = append(report.Added, adopted)
	}

	slices.SortFunc(report.Conflicts, func(a, b Conflict) int { return strings.Compare(a.Name, b.Name) })

	report.Total = idx.Len()

	return report, nil
}

// observe lists every stage container. A missing container counts as empty.
// Directories with unusable names are returned separately.
func (e *Engine) observe() (map[string][]sighting, []string, error) {
	observed := make(map[string][]sighting)

	var skipped []string

	for _, c := range e.layout.Containers() {
		entries, err := e.fs.ReadDir(c.Dir)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}

			return nil, nil, project.FSError("list container", err, c.Dir)
		}

		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, ".") {
				continue
			}

			path := filepath.Join(c.Dir, name)

			isDir, err := e.isDir(entry, path)
			if err != nil {
				return nil, nil, err
			}

			if !isDir {
				continue
			}

			if project.ValidateName(name) != nil {
				skipped = append(skipped, path)

				continue
			}

			observed[name] = append(observed[name], sighting{stage: c.Stage, path: path})
		}
	}

	return observed, skipped, nil
}

// isDir follows symlinks so a linked project directory is still observed.
func (e *Engine) isDir(entry os.DirEntry, path string) (bool, error) {
	if entry.Type()&os.ModeSymlink == 0 {
		return entry.IsDir(), nil
	}

	info, err := e.fs.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}

		return false, project.FSError("stat entry", err, path)
	}

	return info.IsDir(), nil
}

func conflictOf(name string, seen []sighting) Conflict {
	paths := make([]string, 0, len(seen))
	for _, s := range seen {
		paths = append(paths, s.path)
	}

	return Conflict{Name: name, Paths: paths}
}
