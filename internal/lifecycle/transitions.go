package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-project/internal/project"
)

// Op names a lifecycle operation.
type Op string

// Lifecycle operations.
const (
	OpCreate    Op = "create"
	OpStart     Op = "start"
	OpShip      Op = "ship"
	OpPause     Op = "pause"
	OpFail      Op = "fail"
	OpBury      Op = "bury"
	OpArchive   Op = "archive"
	OpResurrect Op = "resurrect"
	OpRename    Op = "rename"
	OpDelete    Op = "delete"
	OpNote      Op = "note"
	OpSync      Op = "sync"
)

type rule struct {
	from []project.Stage
	to   project.Stage
}

var (
	nonTerminal = []project.Stage{project.StageNext, project.StageNow, project.StageMaybe, project.StageDone}

	rules = map[Op]rule{
		OpStart: {
			from: []project.Stage{project.StageNext, project.StageMaybe, project.StageDone, project.StageGraveyard},
			to:   project.StageNow,
		},
		OpShip:  {from: []project.Stage{project.StageNow}, to: project.StageDone},
		OpPause: {from: []project.Stage{project.StageNow}, to: project.StageMaybe},
		OpFail:  {from: nonTerminal, to: project.StageFuneral},
		OpBury: {
			from: []project.Stage{project.StageNext, project.StageNow, project.StageMaybe, project.StageDone, project.StageFuneral, project.StageVault},
			to:   project.StageGraveyard,
		},
		OpArchive: {
			from: []project.Stage{project.StageNext, project.StageNow, project.StageMaybe, project.StageDone, project.StageFuneral, project.StageGraveyard},
			to:   project.StageVault,
		},
		OpResurrect: {
			from: []project.Stage{project.StageDone, project.StageFuneral, project.StageVault, project.StageGraveyard},
			to:   project.StageNow,
		},
	}
)

// Rule returns the allowed source stages and the destination of a stage
// changing operation. ok is false for operations that keep the stage.
func Rule(op Op) (from []project.Stage, to project.Stage, ok bool) {
	r, ok := rules[op]
	if !ok {
		return nil, "", false
	}

	return slices.Clone(r.from), r.to, true
}

// Allowed reports whether op may be applied to a project in stage from.
func Allowed(op Op, from project.Stage) bool {
	r, ok := rules[op]

	return ok && slices.Contains(r.from, from)
}

// Transition describes a completed stage change.
type Transition struct {
	Op       Op
	Project  project.Project
	From     project.Stage
	FromPath string
}

// StartOptions configures operations that move a project into NOW.
type StartOptions struct {
	// Force ignores the NOW limit.
	Force bool
}

// Start moves a project into NOW.
func (e *Engine) Start(ctx context.Context, name string, opts StartOptions) (Transition, error) {
	return e.transition(ctx, OpStart, name, opts.Force)
}

// Ship moves an active project to DONE.
func (e *Engine) Ship(ctx context.Context, name string) (Transition, error) {
	return e.transition(ctx, OpShip, name, false)
}

// Pause parks an active project in MAYBE.
func (e *Engine) Pause(ctx context.Context, name string) (Transition, error) {
	return e.transition(ctx, OpPause, name, false)
}

// Fail moves a non-terminal project to FUNERAL for a post-mortem.
func (e *Engine) Fail(ctx context.Context, name string) (Transition, error) {
	return e.transition(ctx, OpFail, name, false)
}

// Bury moves a project to GRAVEYARD. DONE projects are accepted directly.
func (e *Engine) Bury(ctx context.Context, name string) (Transition, error) {
	return e.transition(ctx, OpBury, name, false)
}

// Archive moves a project to VAULT.
func (e *Engine) Archive(ctx context.Context, name string) (Transition, error) {
	return e.transition(ctx, OpArchive, name, false)
}

// Resurrect brings a finished, failed or archived project back to NOW.
func (e *Engine) Resurrect(ctx context.Context, name string, opts StartOptions) (Transition, error) {
	return e.transition(ctx, OpResurrect, name, opts.Force)
}

func (e *Engine) transition(ctx context.Context, op Op, name string, force bool) (Transition, error) {
	r, ok := rules[op]
	if !ok {
		return Transition{}, fmt.Errorf("unknown operation %q", op)
	}

	var result Transition

	err := e.mutate(ctx, string(op), func(idx *project.Index) ([]Event, error) {
		p, err := lookup(idx, name)
		if err != nil {
			return nil, err
		}

		if !slices.Contains(r.from, p.Stage) {
			return nil, &project.TransitionError{Op: string(op), Name: name, From: p.Stage, Allowed: r.from}
		}

		if r.to == project.StageNow && !force && e.nowLimit > 0 {
			if n := idx.Count(project.StageNow); n >= e.nowLimit {
				return nil, fmt.Errorf("%w: %d of %d projects already in NOW (finish one first or use --force)",
					project.ErrNowLimit, n, e.nowLimit)
			}
		}

		moved, err := e.move(idx, op, p, r.to)
		if err != nil {
			return nil, err
		}

		result = Transition{Op: op, Project: moved, From: p.Stage, FromPath: p.Path}

		return []Event{newEvent(op, moved, p.Stage)}, nil
	})
	if err != nil {
		return Transition{}, err
	}

	return result, nil
}

// move relocates p into the container of stage to and records the change.
// The index is only touched after the rename succeeded.
func (e *Engine) move(idx *project.Index, op Op, p project.Project, to project.Stage) (project.Project, error) {
	src, err := e.sourcePath(op, p)
	if err != nil {
		return project.Project{}, err
	}

	dst := e.layout.Path(to, p.Name)
	opName := string(op)

	if err := e.fs.MkdirAll(e.layout.Container(to), dirPerm); err != nil {
		return project.Project{}, project.FSError(opName, err, e.layout.Container(to))
	}

	exists, err := e.fs.Exists(dst)
	if err != nil {
		return project.Project{}, project.FSError(opName, err, dst)
	}

	if exists {
		return project.Project{}, project.FSError(opName, fmt.Errorf("target %w", os.ErrExist), src, dst)
	}

	info, err := e.fs.Stat(src)
	if err != nil {
		return project.Project{}, project.FSError(opName,
			fmt.Errorf("source directory unavailable (run 'pj sync' to repair the index): %w", err), src, dst)
	}

	if !info.IsDir() {
		return project.Project{}, project.FSError(opName, errors.New("source is not a directory"), src, dst)
	}

	e.log.Debug("moving project", zap.String("op", opName), zap.String("from", src), zap.String("to", dst))

	if err := e.fs.Rename(src, dst); err != nil {
		return project.Project{}, project.FSError(opName, err, src, dst)
	}

	moved := p
	moved.Stage = to
	moved.Path = dst
	moved.LastModified = e.now().UTC()
	idx.Put(moved)

	if err := e.persist(opName, p.Name, idx); err != nil {
		return project.Project{}, err
	}

	e.log.Info("project moved",
		zap.String("op", opName), zap.String("project", p.Name),
		zap.Stringer("from", p.Stage), zap.Stringer("to", to))

	return moved, nil
}
