package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-project/internal/project"
)

var errOutsideLayout = errors.New("path outside stage layout")

// Create makes a new project directory in NEXT and registers it.
func (e *Engine) Create(ctx context.Context, name, note string) (project.Project, error) {
	if err := project.ValidateName(name); err != nil {
		return project.Project{}, err
	}

	var created project.Project

	err := e.mutate(ctx, string(OpCreate), func(idx *project.Index) ([]Event, error) {
		if err := e.checkAvailable(idx, name); err != nil {
			return nil, err
		}

		container := e.layout.Container(project.StageNext)
		if err := e.fs.MkdirAll(container, dirPerm); err != nil {
			return nil, project.FSError(string(OpCreate), err, container)
		}

		path := e.layout.Path(project.StageNext, name)
		if err := e.fs.Mkdir(path, dirPerm); err != nil {
			return nil, project.FSError(string(OpCreate), err, path)
		}

		now := e.now().UTC()
		created = project.Project{
			Name:         name,
			Stage:        project.StageNext,
			CreatedAt:    now,
			LastModified: now,
			Path:         path,
			Note:         note,
		}

		if err := idx.Register(created); err != nil {
			return nil, err
		}

		if err := e.persist(string(OpCreate), name, idx); err != nil {
			return nil, err
		}

		e.log.Info("project created", zap.String("project", name), zap.String("path", path))

		return []Event{newEvent(OpCreate, created, "")}, nil
	})
	if err != nil {
		return project.Project{}, err
	}

	return created, nil
}

// Rename gives a project a new name inside its current stage container.
// createdAt and note carry over.
func (e *Engine) Rename(ctx context.Context, oldName, newName string) (project.Project, error) {
	if err := project.ValidateName(newName); err != nil {
		return project.Project{}, err
	}

	if oldName == newName {
		return project.Project{}, fmt.Errorf("%w: %q is already the project's name", project.ErrNameCollision, newName)
	}

	var renamed project.Project

	err := e.mutate(ctx, string(OpRename), func(idx *project.Index) ([]Event, error) {
		p, err := lookup(idx, oldName)
		if err != nil {
			return nil, err
		}

		if err := e.checkAvailable(idx, newName); err != nil {
			return nil, err
		}

		src, err := e.sourcePath(OpRename, p)
		if err != nil {
			return nil, err
		}

		dst := e.layout.Path(p.Stage, newName)

		if _, err := e.fs.Stat(src); err != nil {
			return nil, project.FSError(string(OpRename),
				fmt.Errorf("source directory unavailable (run 'pj sync' to repair the index): %w", err), src, dst)
		}

		if err := e.fs.Rename(src, dst); err != nil {
			return nil, project.FSError(string(OpRename), err, src, dst)
		}

		renamed = p
		renamed.Name = newName
		renamed.Path = dst
		renamed.LastModified = e.now().UTC()

		idx.Remove(oldName)
		idx.Put(renamed)

		if err := e.persist(string(OpRename), oldName, idx); err != nil {
			return nil, err
		}

		e.log.Info("project renamed", zap.String("from", oldName), zap.String("to", newName))

		ev := newEvent(OpRename, renamed, p.Stage)
		ev.OldName = oldName

		return []Event{ev}, nil
	})
	if err != nil {
		return project.Project{}, err
	}

	return renamed, nil
}

// DeleteOptions configures [Engine.Delete].
type DeleteOptions struct {
	// Confirmed must be set for anything to be removed.
	Confirmed bool
}

// Delete removes a project directory and its index entry.
//
// Without confirmation nothing is touched: the project that would be
// removed is returned together with an error matching
// [project.ErrConfirmationNeeded].
func (e *Engine) Delete(ctx context.Context, name string, opts DeleteOptions) (project.Project, error) {
	if !opts.Confirmed {
		p, err := e.Locate(ctx, name)
		if err != nil {
			return project.Project{}, err
		}

		return p, fmt.Errorf("%w: deleting %q removes %s and its index entry permanently",
			project.ErrConfirmationNeeded, name, p.Path)
	}

	var deleted project.Project

	err := e.mutate(ctx, string(OpDelete), func(idx *project.Index) ([]Event, error) {
		p, err := lookup(idx, name)
		if err != nil {
			return nil, err
		}

		deleted = p

		return e.deleteLocked(idx, p)
	})
	if err != nil {
		return project.Project{}, err
	}

	return deleted, nil
}

// deleteLocked moves the directory into the trash first so a failed index
// save can still be undone, then purges the trash.
func (e *Engine) deleteLocked(idx *project.Index, p project.Project) ([]Event, error) {
	op := string(OpDelete)

	src, err := e.sourcePath(OpDelete, p)
	if err != nil {
		return nil, err
	}

	exists, err := e.fs.Exists(src)
	if err != nil {
		return nil, project.FSError(op, err, src)
	}

	if !exists {
		e.warn(fmt.Sprintf("directory %s was already gone; removing the index entry only", src))

		idx.Remove(p.Name)

		if err := e.persist(op, p.Name, idx); err != nil {
			return nil, err
		}

		return []Event{e.deletedEvent(p)}, nil
	}

	trashDir := filepath.Join(e.layout.Root, TrashDirName)
	if err := e.fs.MkdirAll(trashDir, dirPerm); err != nil {
		return nil, project.FSError(op, err, trashDir)
	}

	trash := filepath.Join(trashDir, p.Name+"."+strconv.FormatInt(e.now().UnixNano(), 10))
	if err := e.fs.Rename(src, trash); err != nil {
		return nil, project.FSError(op, err, src, trash)
	}

	idx.Remove(p.Name)

	if saveErr := e.store.Save(idx); saveErr != nil {
		if restoreErr := e.fs.Rename(trash, src); restoreErr != nil {
			return nil, &project.PersistError{
				Op:   op,
				Name: p.Name,
				Err:  errors.Join(saveErr, project.FSError("restore", restoreErr, trash, src)),
			}
		}

		return nil, fmt.Errorf("delete %q: index not saved, directory restored: %w", p.Name, saveErr)
	}

	if err := e.fs.RemoveAll(trash); err != nil {
		e.warn(fmt.Sprintf("project %q deleted from the index but %s could not be removed: %v", p.Name, trash, err))
	}

	// Only succeeds when no other leftovers remain.
	_ = e.fs.Remove(trashDir)

	e.log.Info("project deleted", zap.String("project", p.Name), zap.String("path", src))

	return []Event{e.deletedEvent(p)}, nil
}

// SetNote replaces the free-text note of a project.
func (e *Engine) SetNote(ctx context.Context, name, note string) (project.Project, error) {
	var updated project.Project

	err := e.mutate(ctx, string(OpNote), func(idx *project.Index) ([]Event, error) {
		p, err := lookup(idx, name)
		if err != nil {
			return nil, err
		}

		p.Note = note
		idx.Put(p)

		if err := e.store.Save(idx); err != nil {
			return nil, err
		}

		updated = p

		return nil, nil
	})
	if err != nil {
		return project.Project{}, err
	}

	return updated, nil
}

// checkAvailable enforces the global namespace: name must be unused in the
// index and absent from every stage container.
func (e *Engine) checkAvailable(idx *project.Index, name string) error {
	if existing, ok := idx.Lookup(name); ok {
		return fmt.Errorf("%w: %q already exists in %s", project.ErrNameCollision, name, existing.Stage)
	}

	for _, c := range e.layout.Containers() {
		path := filepath.Join(c.Dir, name)

		exists, err := e.fs.Exists(path)
		if err != nil {
			return project.FSError("check name", err, path)
		}

		if exists {
			return fmt.Errorf("%w: %q exists on disk in %s but not in the index (run 'pj sync' to adopt it)",
				project.ErrNameCollision, name, c.Stage)
		}
	}

	return nil
}

// sourcePath returns where p must live according to the layout. An entry
// whose name or recorded path points anywhere else is refused.
func (e *Engine) sourcePath(op Op, p project.Project) (string, error) {
	if err := project.ValidateName(p.Name); err != nil {
		return "", project.FSError(string(op),
			fmt.Errorf("index entry has an unusable name (run 'pj sync' to repair the index): %w", err), p.Path)
	}

	want := e.layout.Path(p.Stage, p.Name)
	if p.Path != "" && filepath.Clean(p.Path) != want {
		return "", project.FSError(string(op),
			fmt.Errorf("recorded path is not inside the %s container (run 'pj sync' to repair the index): %w",
				p.Stage, errOutsideLayout), p.Path, want)
	}

	return want, nil
}

func (e *Engine) deletedEvent(p project.Project) Event {
	ev := newEvent(OpDelete, p, p.Stage)
	ev.To = ""
	ev.At = e.now().UTC()

	return ev
}
