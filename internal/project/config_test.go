package project_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvinalkan/agent-project/internal/project"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o750))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func Test_LoadConfig_Defaults_When_No_Files(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	cfg, err := project.LoadConfig(project.LoadConfigInput{WorkDirOverride: dir, Env: map[string]string{}})
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.RootAbs)
	assert.Equal(t, filepath.Join(dir, project.DefaultIndexFile), cfg.IndexPath)
	assert.Equal(t, project.DefaultNowLimit, cfg.NowLimit)
	assert.Equal(t, filepath.Join(dir, "NOW"), cfg.Layout.Container(project.StageNow))
	assert.Empty(t, cfg.Sources.Global)
	assert.Empty(t, cfg.Sources.Project)
}

func Test_LoadConfig_Project_File_Overrides_Global_When_Both_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	xdg := t.TempDir()

	writeFile(t, filepath.Join(xdg, "pj", "config.json"), `{"now_limit": 7, "done_visible": 1}`)
	writeFile(t, filepath.Join(dir, project.ConfigFileName), `{
		// projects live one level down
		"root": "work",
		"now_limit": 2,
		"stage_dirs": {"now": "01-now"},
	}`)

	cfg, err := project.LoadConfig(project.LoadConfigInput{
		WorkDirOverride: dir,
		Env:             map[string]string{"XDG_CONFIG_HOME": xdg},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.NowLimit)
	assert.Equal(t, 1, cfg.DoneVisible)
	assert.Equal(t, filepath.Join(dir, "work"), cfg.RootAbs)
	assert.Equal(t, filepath.Join(dir, "work", "01-now", "demo"), cfg.Layout.Path(project.StageNow, "demo"))
	assert.NotEmpty(t, cfg.Sources.Global)
	assert.NotEmpty(t, cfg.Sources.Project)
}

func Test_LoadConfig_Root_Override_Wins_When_Set(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, project.ConfigFileName), `{"root": "from-file"}`)

	cfg, err := project.LoadConfig(project.LoadConfigInput{
		WorkDirOverride: dir,
		RootOverride:    "from-cli",
		Env:             map[string]string{},
	})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "from-cli"), cfg.RootAbs)
}

func Test_LoadConfig_Returns_Error_When_Config_Invalid(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		name    string
		content string
		wantErr error
	}{
		{name: "malformed", content: `{invalid`, wantErr: project.ErrConfigInvalid},
		{name: "empty root", content: `{"root": ""}`, wantErr: project.ErrRootEmpty},
		{name: "empty index file", content: `{"index_file": ""}`, wantErr: project.ErrIndexFileEmpty},
		{name: "unknown stage key", content: `{"stage_dirs": {"later": "x"}}`, wantErr: project.ErrInvalidStage},
		{name: "nested stage dir", content: `{"stage_dirs": {"NOW": "a/b"}}`, wantErr: project.ErrConfigInvalid},
		{name: "duplicate stage dir", content: `{"stage_dirs": {"NOW": "NEXT"}}`, wantErr: project.ErrConfigInvalid},
		{name: "negative now limit", content: `{"now_limit": -1}`, wantErr: project.ErrConfigInvalid},
		{name: "bad log level", content: `{"log_level": "loud"}`, wantErr: project.ErrConfigInvalid},
	} {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			writeFile(t, filepath.Join(dir, project.ConfigFileName), tt.content)

			_, err := project.LoadConfig(project.LoadConfigInput{WorkDirOverride: dir, Env: map[string]string{}})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func Test_LoadConfig_Explicit_Path_Must_Exist(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	_, err := project.LoadConfig(project.LoadConfigInput{
		WorkDirOverride: dir,
		ConfigPath:      "missing.json",
		Env:             map[string]string{},
	})
	require.ErrorIs(t, err, project.ErrConfigFileNotFound)
}

func Test_StarterConfig_Loads_As_Valid_Config(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, project.ConfigFileName), project.StarterConfig)

	cfg, err := project.LoadConfig(project.LoadConfigInput{WorkDirOverride: dir, Env: map[string]string{}})
	require.NoError(t, err)
	assert.Equal(t, project.DefaultNowLimit, cfg.NowLimit)
}
