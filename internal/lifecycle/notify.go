package lifecycle

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-project/internal/project"
)

// Event tells collaborators that an operation completed for a project.
type Event struct {
	Op   Op
	Name string
	// OldName is set for renames.
	OldName string
	// From is empty for create.
	From project.Stage
	To   project.Stage
	Path string
	At   time.Time
}

func newEvent(op Op, p project.Project, from project.Stage) Event {
	return Event{
		Op:   op,
		Name: p.Name,
		From: from,
		To:   p.Stage,
		Path: p.Path,
		At:   p.LastModified,
	}
}

// Notifier receives events after the index has been saved and the
// workspace lock released. Implementations must not write the index and
// cannot fail the operation.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NopNotifier drops every event.
type NopNotifier struct{}

// Notify implements [Notifier].
func (NopNotifier) Notify(context.Context, Event) {}

// Notifiers fans an event out to each notifier in order.
type Notifiers []Notifier

// Notify implements [Notifier].
func (ns Notifiers) Notify(ctx context.Context, ev Event) {
	for _, n := range ns {
		n.Notify(ctx, ev)
	}
}

// LogNotifier logs every event at info level.
type LogNotifier struct {
	Log *zap.Logger
}

// Notify implements [Notifier].
func (n LogNotifier) Notify(_ context.Context, ev Event) {
	fields := []zap.Field{
		zap.String("op", string(ev.Op)),
		zap.String("project", ev.Name),
		zap.String("to", string(ev.To)),
		zap.String("path", ev.Path),
	}

	if ev.From != "" {
		fields = append(fields, zap.String("from", string(ev.From)))
	}

	if ev.OldName != "" {
		fields = append(fields, zap.String("old_name", ev.OldName))
	}

	n.Log.Info("transition completed", fields...)
}

// DefaultHookTimeout bounds a hook run.
const DefaultHookTimeout = 10 * time.Second

// HookNotifier runs a shell command after each event. The event is passed
// through PJ_* environment variables. Failures are logged, never returned.
type HookNotifier struct {
	Command string
	// Dir is the working directory of the hook, usually the workspace root.
	Dir string
	// Env is the base environment, e.g. os.Environ().
	Env     []string
	Timeout time.Duration
	Log     *zap.Logger
}

// Notify implements [Notifier].
func (h HookNotifier) Notify(ctx context.Context, ev Event) {
	if h.Command == "" {
		return
	}

	log := h.Log
	if log == nil {
		log = zap.NewNop()
	}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultHookTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", h.Command)
	cmd.Dir = h.Dir
	cmd.Env = append(append([]string(nil), h.Env...), HookEnv(ev)...)

	var output bytes.Buffer

	cmd.Stdout = &output
	cmd.Stderr = &output

	err := cmd.Run()
	if err != nil {
		log.Warn("hook failed",
			zap.String("op", string(ev.Op)),
			zap.String("project", ev.Name),
			zap.String("command", h.Command),
			zap.ByteString("output", output.Bytes()),
			zap.Error(err))

		return
	}

	log.Debug("hook ran",
		zap.String("op", string(ev.Op)),
		zap.String("project", ev.Name),
		zap.ByteString("output", output.Bytes()))
}

// HookEnv returns the PJ_* variables describing ev.
func HookEnv(ev Event) []string {
	env := []string{
		"PJ_OPERATION=" + string(ev.Op),
		"PJ_PROJECT=" + ev.Name,
		"PJ_STAGE=" + string(ev.To),
		"PJ_PREVIOUS_STAGE=" + string(ev.From),
		"PJ_PATH=" + ev.Path,
	}

	if ev.OldName != "" {
		env = append(env, "PJ_OLD_NAME="+ev.OldName)
	}

	return env
}
