package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/calvinalkan/agent-project/internal/lifecycle"
	"github.com/calvinalkan/agent-project/internal/project"
	"github.com/calvinalkan/agent-project/internal/store"
	"github.com/calvinalkan/agent-project/pkg/fs"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeClock advances one second per call so ordering by time is stable.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(time.Second)

	return c.now
}

// workspace is a temp root with helpers to build engines over it.
type workspace struct {
	t      *testing.T
	root   string
	layout project.Layout
	clock  *fakeClock
	warns  []string
	events []lifecycle.Event
}

func newWorkspace(t *testing.T) *workspace {
	t.Helper()

	root := t.TempDir()

	return &workspace{
		t:      t,
		root:   root,
		layout: project.NewLayout(root, nil),
		clock:  newFakeClock(),
	}
}

func (w *workspace) indexPath() string {
	return filepath.Join(w.root, project.DefaultIndexFile)
}

func (w *workspace) store(fsys fs.FS) *store.Store {
	return store.New(fsys, w.indexPath(), w.clock.Now)
}

// engine returns an engine over the real filesystem.
func (w *workspace) engine(opts ...func(*lifecycle.Options)) *lifecycle.Engine {
	w.t.Helper()

	return w.engineOn(fs.NewReal(), opts...)
}

func (w *workspace) engineOn(fsys fs.FS, opts ...func(*lifecycle.Options)) *lifecycle.Engine {
	w.t.Helper()

	o := lifecycle.Options{
		FS:       fsys,
		Layout:   w.layout,
		Store:    w.store(fsys),
		Logger:   zaptest.NewLogger(w.t),
		Notifier: recorder{w},
		Warn:     func(msg string) { w.warns = append(w.warns, msg) },
		Now:      w.clock.Now,
	}

	for _, fn := range opts {
		fn(&o)
	}

	e, err := lifecycle.New(o)
	if err != nil {
		w.t.Fatalf("new engine: %v", err)
	}

	return e
}

type recorder struct{ w *workspace }

func (r recorder) Notify(_ context.Context, ev lifecycle.Event) {
	r.w.events = append(r.w.events, ev)
}

// index loads the persisted index with a fresh store.
func (w *workspace) index() *project.Index {
	w.t.Helper()

	idx, err := w.store(fs.NewReal()).Load()
	if err != nil {
		w.t.Fatalf("load index: %v", err)
	}

	return idx
}

func (w *workspace) mustLookup(name string) project.Project {
	w.t.Helper()

	p, ok := w.index().Lookup(name)
	if !ok {
		w.t.Fatalf("project %q not in index", name)
	}

	return p
}

// seed creates name directly in stage, both on disk and in the index.
func (w *workspace) seed(name string, stage project.Stage) project.Project {
	w.t.Helper()

	path := w.layout.Path(stage, name)
	w.mkdir(stage, name)

	idx := w.index()
	now := w.clock.Now()
	p := project.Project{Name: name, Stage: stage, CreatedAt: now, LastModified: now, Path: path}

	if err := idx.Register(p); err != nil {
		w.t.Fatalf("register %s: %v", name, err)
	}

	if err := w.store(fs.NewReal()).Save(idx); err != nil {
		w.t.Fatalf("save index: %v", err)
	}

	return p
}

// mkdir creates a project directory without touching the index.
func (w *workspace) mkdir(stage project.Stage, name string) string {
	w.t.Helper()

	path := w.layout.Path(stage, name)
	if err := os.MkdirAll(path, 0o755); err != nil {
		w.t.Fatalf("mkdir %s: %v", path, err)
	}

	return path
}

func (w *workspace) assertDir(stage project.Stage, name string) {
	w.t.Helper()

	info, err := os.Stat(w.layout.Path(stage, name))
	if err != nil || !info.IsDir() {
		w.t.Fatalf("want directory %s/%s: %v", stage, name, err)
	}
}

// assertOnlyIn fails unless name exists under exactly stage.
func (w *workspace) assertOnlyIn(stage project.Stage, name string) {
	w.t.Helper()

	for _, s := range project.Stages() {
		_, err := os.Stat(w.layout.Path(s, name))
		exists := err == nil

		if exists != (s == stage) {
			w.t.Fatalf("%s/%s exists=%v, want %v", s, name, exists, s == stage)
		}
	}
}
