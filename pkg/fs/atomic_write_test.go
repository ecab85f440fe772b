package fs_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/calvinalkan/agent-project/pkg/fs"
)

const testContentHello = "hello world"

func Test_AtomicWriter_Write_Replaces_Content_When_File_Exists(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	writer := fs.NewAtomicWriter(fs.NewReal())

	if err := writer.WriteWithDefaults(path, strings.NewReader(testContentHello)); err != nil {
		t.Fatalf("WriteWithDefaults: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}

	if string(got) != testContentHello {
		t.Fatalf("content=%q, want %q", got, testContentHello)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat: %v", err)
	}

	if got, want := info.Mode().Perm(), os.FileMode(0o644); got != want {
		t.Fatalf("perm=%v, want %v", got, want)
	}

	assertNoTempFiles(t, dir)
}

func Test_AtomicWriter_Write_Keeps_Old_Content_When_Rename_Fails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	chaos := fs.NewChaos(fs.NewReal(), 1, fs.ChaosConfig{RenameFailRate: 1})
	writer := fs.NewAtomicWriter(chaos)

	err := writer.WriteWithDefaults(path, strings.NewReader(testContentHello))
	if err == nil {
		t.Fatal("WriteWithDefaults: want error, got nil")
	}

	if !fs.IsChaosErr(err) {
		t.Fatalf("err=%v, want injected error", err)
	}

	got, readErr := os.ReadFile(path)
	if readErr != nil {
		t.Fatalf("ReadFile: %v", readErr)
	}

	if string(got) != "old" {
		t.Fatalf("content=%q, want %q", got, "old")
	}

	assertNoTempFiles(t, dir)
}

func Test_AtomicWriter_Write_Removes_Temp_File_When_Sync_Fails(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "index.json")

	chaos := fs.NewChaos(fs.NewReal(), 1, fs.ChaosConfig{SyncFailRate: 1})
	writer := fs.NewAtomicWriter(chaos)

	err := writer.Write(path, strings.NewReader(testContentHello), fs.AtomicWriteOptions{Perm: 0o600})
	if err == nil {
		t.Fatal("Write: want error, got nil")
	}

	if _, statErr := os.Stat(path); !errors.Is(statErr, os.ErrNotExist) {
		t.Fatalf("Stat(%q): err=%v, want not exist", path, statErr)
	}

	assertNoTempFiles(t, dir)
}

func Test_AtomicWriter_Write_Rejects_Zero_Perm(t *testing.T) {
	t.Parallel()

	writer := fs.NewAtomicWriter(fs.NewReal())

	err := writer.Write(filepath.Join(t.TempDir(), "x"), strings.NewReader("x"), fs.AtomicWriteOptions{})
	if err == nil {
		t.Fatal("Write: want error for zero perm, got nil")
	}
}

func assertNoTempFiles(t *testing.T, dir string) {
	t.Helper()

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}

	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("leftover temp file: %s", e.Name())
		}
	}
}
