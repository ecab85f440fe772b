// Package lifecycle implements the project state machine on top of the stage
// directory layout and the project index.
//
// Every mutating operation runs as one transaction: take the workspace lock,
// load the index, optionally reconcile, validate, touch the filesystem,
// update the index, persist it, release the lock and finally notify
// collaborators. The filesystem is always changed before the index, so a
// failed relocation never leaves a stale index entry behind.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-project/internal/project"
	"github.com/calvinalkan/agent-project/internal/store"
	"github.com/calvinalkan/agent-project/pkg/fs"
)

// LockFileName is the advisory lock taken in the workspace root while a
// mutating operation runs.
const LockFileName = ".pj.lock"

// TrashDirName holds directories of confirmed deletes until the index no
// longer references them.
const TrashDirName = ".trash"

// DefaultLockTimeout bounds how long an operation waits for the workspace lock.
const DefaultLockTimeout = 2 * time.Second

const dirPerm = 0o755

// Options configures an [Engine].
type Options struct {
	FS     fs.FS
	Layout project.Layout
	Store  *store.Store

	// NowLimit caps projects in NOW for [Engine.Start]. Zero disables it.
	NowLimit int

	// AutoSync reconciles index and disk before every mutating operation.
	AutoSync bool

	Logger   *zap.Logger
	Notifier Notifier

	// Warn receives non-fatal notices such as a recovered corrupt index.
	// Nil logs them at warn level.
	Warn func(msg string)

	// Now defaults to time.Now.
	Now func() time.Time

	// LockTimeout defaults to [DefaultLockTimeout].
	LockTimeout time.Duration
}

// Engine executes lifecycle operations against one workspace.
type Engine struct {
	fs          fs.FS
	layout      project.Layout
	store       *store.Store
	locker      *fs.Locker
	nowLimit    int
	autoSync    bool
	log         *zap.Logger
	notifier    Notifier
	warn        func(string)
	now         func() time.Time
	lockTimeout time.Duration
}

// New returns an engine. FS and Store are required.
func New(opts Options) (*Engine, error) {
	if opts.FS == nil {
		return nil, errors.New("lifecycle: FS is nil")
	}

	if opts.Store == nil {
		return nil, errors.New("lifecycle: Store is nil")
	}

	if opts.Layout.Root == "" {
		return nil, errors.New("lifecycle: layout root is empty")
	}

	e := &Engine{
		fs:          opts.FS,
		layout:      opts.Layout,
		store:       opts.Store,
		locker:      fs.NewLocker(opts.FS),
		nowLimit:    opts.NowLimit,
		autoSync:    opts.AutoSync,
		log:         opts.Logger,
		notifier:    opts.Notifier,
		warn:        opts.Warn,
		now:         opts.Now,
		lockTimeout: opts.LockTimeout,
	}

	if e.log == nil {
		e.log = zap.NewNop()
	}

	if e.notifier == nil {
		e.notifier = NopNotifier{}
	}

	if e.warn == nil {
		log := e.log

		e.warn = func(msg string) { log.Warn(msg) }
	}

	if e.now == nil {
		e.now = time.Now
	}

	if e.lockTimeout <= 0 {
		e.lockTimeout = DefaultLockTimeout
	}

	return e, nil
}

// Layout returns the stage directory layout.
func (e *Engine) Layout() project.Layout {
	return e.layout
}

// Status loads the index without taking the lock or touching the layout.
func (e *Engine) Status(ctx context.Context) (*project.Index, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return e.load()
}

// Locate returns the recorded stage and path of name. It consults only the
// index and never scans the filesystem.
func (e *Engine) Locate(ctx context.Context, name string) (project.Project, error) {
	idx, err := e.Status(ctx)
	if err != nil {
		return project.Project{}, err
	}

	return lookup(idx, name)
}

// Init creates the workspace root and every stage container.
func (e *Engine) Init(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var created []string

	for _, c := range e.layout.Containers() {
		exists, err := e.fs.Exists(c.Dir)
		if err != nil {
			return created, project.FSError("stat container", err, c.Dir)
		}

		if exists {
			continue
		}

		if err := e.fs.MkdirAll(c.Dir, dirPerm); err != nil {
			return created, project.FSError("create container", err, c.Dir)
		}

		created = append(created, c.Dir)
	}

	return created, nil
}

// load reads the index, downgrading corruption to a warning.
func (e *Engine) load() (*project.Index, error) {
	idx, err := e.store.Load()
	if err == nil {
		return idx, nil
	}

	if errors.Is(err, project.ErrIndexCorruption) {
		e.warn(fmt.Sprintf("%v; continuing with an empty index (run 'pj sync' to rebuild it)", err))

		return idx, nil
	}

	return nil, err
}

// mutate runs fn inside the workspace lock with a freshly loaded index. fn
// is responsible for persisting the index. Events fn returns are delivered
// after the lock is released.
func (e *Engine) mutate(ctx context.Context, op string, fn func(idx *project.Index) ([]Event, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	lockPath := filepath.Join(e.layout.Root, LockFileName)

	lock, err := e.locker.LockWithTimeout(lockPath, e.lockTimeout)
	if err != nil {
		return fmt.Errorf("%s: acquire workspace lock %s: %w", op, lockPath, err)
	}

	events, err := e.runLocked(op, fn)

	if closeErr := lock.Close(); closeErr != nil {
		e.log.Warn("release workspace lock", zap.String("path", lockPath), zap.Error(closeErr))
	}

	if err != nil {
		return err
	}

	for _, ev := range events {
		e.notifier.Notify(ctx, ev)
	}

	return nil
}

func (e *Engine) runLocked(op string, fn func(idx *project.Index) ([]Event, error)) ([]Event, error) {
	idx, err := e.load()
	if err != nil {
		return nil, err
	}

	if e.autoSync && op != string(OpSync) {
		report, err := e.reconcile(idx)
		if err != nil {
			return nil, fmt.Errorf("%s: auto sync: %w", op, err)
		}

		if report.Changed() {
			e.log.Info("auto sync repaired index",
				zap.Int("added", len(report.Added)),
				zap.Int("removed", len(report.Removed)),
				zap.Int("relocated", len(report.Relocated)))
		}
	}

	e.log.Debug("operation start", zap.String("op", op), zap.Int("projects", idx.Len()))

	return fn(idx)
}

// persist saves idx after the filesystem already changed for op on name.
func (e *Engine) persist(op, name string, idx *project.Index) error {
	if err := e.store.Save(idx); err != nil {
		e.log.Error("index not saved after filesystem change",
			zap.String("op", op), zap.String("project", name), zap.Error(err))

		return &project.PersistError{Op: op, Name: name, Err: err}
	}

	return nil
}

func lookup(idx *project.Index, name string) (project.Project, error) {
	if name == "" {
		return project.Project{}, project.ErrNameRequired
	}

	p, ok := idx.Lookup(name)
	if !ok {
		return project.Project{}, fmt.Errorf("%w: %q (run 'pj sync' if it exists on disk)", project.ErrUnknownProject, name)
	}

	return p, nil
}
