package cli_test

import (
	"strings"
	"testing"

	"go.uber.org/goleak"

	"github.com/calvinalkan/agent-project/internal/cli"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func Test_Run_Prints_Usage_When_No_Command(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun()

	cli.AssertContains(t, stdout, "Usage: pj")
	cli.AssertContains(t, stdout, "resurrect <name>")
	cli.AssertContains(t, stdout, "sync [--dry-run]")
	cli.AssertContains(t, stdout, "Stage moves:")
}

func Test_Usage_Groups_Stage_Moves_After_Project_Commands(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("--help")

	moves := strings.Index(stdout, "Stage moves:")
	projects := strings.Index(stdout, "Projects:")
	ship := strings.Index(stdout, "ship <name>")

	if projects < 0 || moves < projects || ship < moves {
		t.Fatalf("want Projects, then Stage moves listing ship; got:\n%s", stdout)
	}
}

func Test_Run_Fails_When_Command_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	_, stderr, code := c.Run("launch", "demo")

	if code != 1 {
		t.Fatalf("code=%d, want 1", code)
	}

	cli.AssertContains(t, stderr, "unknown command: launch")
}

func Test_Run_Fails_When_Global_Flag_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("--bogus", "status")

	cli.AssertContains(t, stderr, "unknown flag: --bogus")
}

func Test_Run_Fails_When_Config_Flag_Missing_Value(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stderr := c.MustFail("-c")

	cli.AssertContains(t, stderr, "flag requires an argument")
}

func Test_Command_Help_Lists_Allowed_Source_Stages(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout := c.MustRun("start", "--help")

	cli.AssertContains(t, stdout, "Usage: pj start <name> [--force]")
	cli.AssertContains(t, stdout, "Allowed from: NEXT, MAYBE, DONE, GRAVEYARD")
	cli.AssertContains(t, stdout, "--force")
}

func Test_Command_Fails_When_Flag_Unknown(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, code := c.Run("ship", "--fast", "x")

	if code != 1 {
		t.Fatalf("code=%d, want 1", code)
	}

	cli.AssertContains(t, stderr, "unknown flag: --fast")
	cli.AssertContains(t, stdout, "Usage: pj ship <name>")
}

func Test_Verbose_Flag_Logs_To_Stderr(t *testing.T) {
	t.Parallel()

	c := cli.NewCLI(t)
	stdout, stderr, code := c.Run("-v", "create", "demo")

	if code != 0 {
		t.Fatalf("code=%d, stderr=%s", code, stderr)
	}

	cli.AssertContains(t, stderr, "project created")
	cli.AssertNotContains(t, stdout, "project created")
}
