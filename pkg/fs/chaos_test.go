package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/agent-project/pkg/fs"
)

func Test_Chaos_Rename_Fails_With_LinkError_When_Rate_Is_One(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")

	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	chaos := fs.NewChaos(fs.NewReal(), 7, fs.ChaosConfig{RenameFailRate: 1})

	err := chaos.Rename(src, dst)

	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		t.Fatalf("err=%v (%T), want *os.LinkError", err, err)
	}

	if !fs.IsChaosErr(err) {
		t.Fatalf("IsChaosErr(%v)=false, want true", err)
	}

	if _, statErr := os.Stat(src); statErr != nil {
		t.Fatalf("source should be untouched: %v", statErr)
	}

	if got := chaos.Stats()[fs.OpRename]; got != 1 {
		t.Fatalf("rename faults=%d, want 1", got)
	}
}

func Test_Chaos_Passes_Through_When_Mode_Is_NoOp(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := filepath.Join(dir, "a")

	if err := os.Mkdir(src, 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}

	chaos := fs.NewChaos(fs.NewReal(), 7, fs.ChaosConfig{RenameFailRate: 1, ReadDirFailRate: 1})
	chaos.SetMode(fs.ChaosModeNoOp)

	if err := chaos.Rename(src, filepath.Join(dir, "b")); err != nil {
		t.Fatalf("Rename: %v", err)
	}

	if _, err := chaos.ReadDir(dir); err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	if got := chaos.TotalFaults(); got != 0 {
		t.Fatalf("TotalFaults=%d, want 0", got)
	}
}

func Test_Chaos_Only_Restricts_Injection_To_Matching_Paths(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	chaos := fs.NewChaos(fs.NewReal(), 7, fs.ChaosConfig{
		MkdirFailRate: 1,
		Only: func(op fs.Op, path string) bool {
			return op == fs.OpMkdir && strings.HasSuffix(path, "blocked")
		},
	})

	if err := chaos.Mkdir(filepath.Join(dir, "fine"), 0o755); err != nil {
		t.Fatalf("Mkdir(fine): %v", err)
	}

	err := chaos.Mkdir(filepath.Join(dir, "blocked"), 0o755)
	if !fs.IsChaosErr(err) {
		t.Fatalf("Mkdir(blocked): err=%v, want injected error", err)
	}

	if errors.Is(err, os.ErrNotExist) {
		t.Fatalf("chaos must never inject ENOENT, got %v", err)
	}
}

func Test_IsChaosErr_Returns_False_For_Real_Errors(t *testing.T) {
	t.Parallel()

	_, err := fs.NewReal().Stat(filepath.Join(t.TempDir(), "missing"))
	if err == nil {
		t.Fatal("Stat: want error")
	}

	if fs.IsChaosErr(err) {
		t.Fatalf("IsChaosErr(%v)=true, want false", err)
	}

	if fs.IsChaosErr(nil) {
		t.Fatal("IsChaosErr(nil)=true, want false")
	}
}
