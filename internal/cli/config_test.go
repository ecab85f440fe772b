package cli_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/calvinalkan/agent-project/internal/cli"
)

func Test_Print_Config_Defaults_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "root="+c.Dir)
	cli.AssertContains(t, stdout, "index_file="+filepath.Join(c.Dir, ".project-index.json"))
	cli.AssertContains(t, stdout, "stage_dir.NOW="+filepath.Join(c.Dir, "NOW"))
	cli.AssertContains(t, stdout, "now_limit=3")
	cli.AssertContains(t, stdout, "(defaults only)")
}

func Test_Print_Config_From_Config_File_With_Comments_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".pj.json", `{
		// projects live in a subdirectory
		"root": "work",
		"stage_dirs": {"graveyard": "zz-graveyard"},
	}`)

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "root="+filepath.Join(c.Dir, "work"))
	cli.AssertContains(t, stdout, "stage_dir.GRAVEYARD="+filepath.Join(c.Dir, "work", "zz-graveyard"))
	cli.AssertContains(t, stdout, "project_config="+filepath.Join(c.Dir, ".pj.json"))
}

func Test_Print_Config_Global_Config_From_XDG_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	xdg := t.TempDir()
	c.Env["XDG_CONFIG_HOME"] = xdg

	if err := os.MkdirAll(filepath.Join(xdg, "pj"), 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := os.WriteFile(filepath.Join(xdg, "pj", "config.json"), []byte(`{"now_limit": 9}`), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	stdout := c.MustRun("print-config")

	cli.AssertContains(t, stdout, "now_limit=9")
	cli.AssertContains(t, stdout, "global_config="+filepath.Join(xdg, "pj", "config.json"))
}

func Test_Print_Config_Root_Override_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".pj.json", `{"root": "from-file"}`)

	stdout := c.MustRun("--root=from-cli", "print-config")

	cli.AssertContains(t, stdout, "root="+filepath.Join(c.Dir, "from-cli"))
}

func Test_Config_Explicit_Config_Not_Found_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-c", "nonexistent.json", "print-config")

	cli.AssertContains(t, stderr, "config file not found")
}

func Test_Config_Invalid_JSON_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	c.WriteFile(".pj.json", `{invalid json}`)

	stderr := c.MustFail("print-config")

	cli.AssertContains(t, stderr, "invalid config file")
}

func Test_Config_Empty_Root_Via_CLI_When_Invoked(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--root=", "print-config")

	cli.AssertContains(t, stderr, "root cannot be empty")
}

func Test_Init_Writes_Config_And_Stage_Directories(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("init")

	cli.AssertContains(t, stdout, "Wrote "+filepath.Join(c.Dir, ".pj.json"))
	cli.AssertContains(t, stdout, "Created "+filepath.Join(c.Dir, "GRAVEYARD"))

	again := c.MustRun("init")
	cli.AssertContains(t, again, "Keeping existing")
	cli.AssertNotContains(t, again, "Created ")

	cli.AssertContains(t, c.MustRun("print-config"), "project_config=")
}
