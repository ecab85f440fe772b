package lifecycle_test

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calvinalkan/agent-project/internal/lifecycle"
	"github.com/calvinalkan/agent-project/internal/logging"
	"github.com/calvinalkan/agent-project/internal/project"
)

func Test_HookNotifier_Receives_Event_Environment(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	w.seed("x", project.StageNow)

	out := filepath.Join(t.TempDir(), "hook.out")
	hook := lifecycle.HookNotifier{
		Command: `printf '%s|%s|%s|%s|%s' "$PJ_OPERATION" "$PJ_PROJECT" "$PJ_PREVIOUS_STAGE" "$PJ_STAGE" "$PJ_PATH" > "$HOOK_OUT"`,
		Dir:     w.root,
		Env:     []string{"PATH=" + os.Getenv("PATH"), "HOOK_OUT=" + out},
		Timeout: 5 * time.Second,
	}

	e := w.engine(func(o *lifecycle.Options) { o.Notifier = hook })

	if _, err := e.Ship(t.Context(), "x"); err != nil {
		t.Fatalf("ship: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("hook output: %v", err)
	}

	want := "ship|x|NOW|DONE|" + w.layout.Path(project.StageDone, "x")
	if string(data) != want {
		t.Fatalf("hook saw %q, want %q", data, want)
	}
}

func Test_HookNotifier_Logs_Failure_Without_Failing_Operation(t *testing.T) {
	t.Parallel()

	w := newWorkspace(t)
	log, logs := logging.NewObserved(zapcore.WarnLevel)

	hook := lifecycle.HookNotifier{
		Command: "echo broken >&2; exit 3",
		Env:     []string{"PATH=" + os.Getenv("PATH")},
		Log:     log,
	}

	e := w.engine(func(o *lifecycle.Options) { o.Notifier = hook })

	if _, err := e.Create(t.Context(), "x", ""); err != nil {
		t.Fatalf("create: %v", err)
	}

	entries := logs.FilterMessage("hook failed").All()
	if len(entries) != 1 {
		t.Fatalf("hook failure logs=%d, want 1", len(entries))
	}

	if got, _ := entries[0].ContextMap()["output"].(string); !strings.Contains(got, "broken") {
		t.Fatalf("logged output=%q", got)
	}
}

func Test_Notifiers_Fan_Out_In_Order(t *testing.T) {
	t.Parallel()

	var seen []string

	record := func(tag string) lifecycle.Notifier {
		return notifierFunc(func(_ context.Context, ev lifecycle.Event) {
			seen = append(seen, tag+":"+ev.Name)
		})
	}

	log, logs := logging.NewObserved(zapcore.InfoLevel)

	lifecycle.Notifiers{record("a"), lifecycle.LogNotifier{Log: log}, record("b")}.
		Notify(t.Context(), lifecycle.Event{Op: lifecycle.OpShip, Name: "x", From: project.StageNow, To: project.StageDone})

	if strings.Join(seen, ",") != "a:x,b:x" {
		t.Fatalf("seen=%v", seen)
	}

	if logs.FilterMessage("transition completed").FilterField(zap.String("from", "NOW")).Len() != 1 {
		t.Fatalf("log notifier entries=%v", logs.All())
	}
}

type notifierFunc func(ctx context.Context, ev lifecycle.Event)

func (f notifierFunc) Notify(ctx context.Context, ev lifecycle.Event) { f(ctx, ev) }

func Test_HookEnv_Includes_Old_Name_For_Rename(t *testing.T) {
	t.Parallel()

	env := lifecycle.HookEnv(lifecycle.Event{Op: lifecycle.OpRename, Name: "new", OldName: "old", To: project.StageNext})

	if !slices.Contains(env, "PJ_OLD_NAME=old") || !slices.Contains(env, "PJ_OPERATION=rename") {
		t.Fatalf("env=%v", env)
	}
}
