package logging_test

import (
	"bytes"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/calvinalkan/agent-project/internal/logging"
)

func Test_ResolveLevel_Precedence(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name       string
		verbose    bool
		env        map[string]string
		configured string
		want       string
	}{
		{name: "config only", configured: "warn", want: "warn"},
		{name: "env beats config", env: map[string]string{logging.EnvLevel: "info"}, configured: "warn", want: "info"},
		{name: "verbose beats env", verbose: true, env: map[string]string{logging.EnvLevel: "error"}, configured: "warn", want: "debug"},
		{name: "blank env ignored", env: map[string]string{logging.EnvLevel: "  "}, configured: "error", want: "error"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := logging.ResolveLevel(tt.verbose, tt.env, tt.configured)
			if got != tt.want {
				t.Fatalf("level=%q, want %q", got, tt.want)
			}
		})
	}
}

func Test_New_Filters_Below_Level(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log, err := logging.New("warn", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	log.Info("hidden")
	log.Warn("shown", zap.String("project", "demo"))

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info should be filtered:\n%s", out)
	}

	if !strings.Contains(out, "shown") || !strings.Contains(out, "demo") {
		t.Fatalf("warn missing:\n%s", out)
	}
}

func Test_New_Off_Writes_Nothing(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	log, err := logging.New("off", &buf)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	log.Error("nope")

	if buf.Len() != 0 {
		t.Fatalf("output=%q, want empty", buf.String())
	}
}

func Test_New_Rejects_Unknown_Level(t *testing.T) {
	t.Parallel()

	_, err := logging.New("chatty", &bytes.Buffer{})
	if err == nil {
		t.Fatal("want error for unknown level")
	}
}

func Test_NewObserved_Records_Entries(t *testing.T) {
	t.Parallel()

	log, logs := logging.NewObserved(zapcore.DebugLevel)
	log.Debug("moved", zap.String("to", "NOW"))

	entries := logs.FilterMessage("moved").All()
	if len(entries) != 1 {
		t.Fatalf("entries=%d, want 1", len(entries))
	}

	if got := entries[0].ContextMap()["to"]; got != "NOW" {
		t.Fatalf("to=%v, want NOW", got)
	}
}
