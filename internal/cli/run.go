// Package cli implements the pj command surface: global flags, command
// dispatch and output formatting on top of the lifecycle engine.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/calvinalkan/agent-project/internal/lifecycle"
	"github.com/calvinalkan/agent-project/internal/logging"
	"github.com/calvinalkan/agent-project/internal/project"
	"github.com/calvinalkan/agent-project/internal/store"
	"github.com/calvinalkan/agent-project/pkg/fs"
)

const (
	consumedOne  = 1
	consumedTwo  = 2
	consumedNone = 0
	helpFlag     = "--help"
)

// Run is the main entry point. Returns exit code.
func Run(in io.Reader, out io.Writer, errOut io.Writer, args []string, env map[string]string, sigCh <-chan os.Signal) int {
	flags, err := parseGlobalFlags(args[min(1, len(args)):])
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	if len(flags.remaining) == 0 || flags.remaining[0] == helpFlag || flags.remaining[0] == "-h" {
		printUsage(out, commandGroups(nil, nil, nil))

		return 0
	}

	cfg, err := project.LoadConfig(project.LoadConfigInput{
		WorkDirOverride: flags.workDir,
		ConfigPath:      flags.configPath,
		RootOverride:    flags.root,
		Env:             env,
	})
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	log, err := logging.New(logging.ResolveLevel(flags.verbose, env, cfg.LogLevel), errOut)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	defer func() { _ = logging.Sync(log) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if sigCh != nil {
		go func() {
			select {
			case sig := <-sigCh:
				log.Debug("received signal", zap.Stringer("signal", sig))
				cancel()
			case <-ctx.Done():
			}
		}()
	}

	o := NewIO(in, out, errOut)

	eng, err := newEngine(&cfg, o, log, env)
	if err != nil {
		fprintln(errOut, "error:", err)

		return 1
	}

	groups := commandGroups(&cfg, eng, env)
	commands := allCommands(groups)

	name := flags.remaining[0]

	idx := slices.IndexFunc(commands, func(c *Command) bool { return c.Name() == name })
	if idx < 0 {
		fprintln(errOut, "error: unknown command:", name)
		printUsage(errOut, groups)

		return 1
	}

	if code := commands[idx].Run(ctx, o, flags.remaining[1:]); code != 0 {
		o.Finish()

		return code
	}

	return o.Finish()
}

// commandGroups returns every command grouped for the listing. cfg and eng
// may be nil when only help lines are needed.
func commandGroups(cfg *project.Config, eng *lifecycle.Engine, env map[string]string) []commandGroup {
	moves := make([]*Command, 0, len(transitionHelp))
	for _, op := range []lifecycle.Op{
		lifecycle.OpStart, lifecycle.OpShip, lifecycle.OpPause, lifecycle.OpFail,
		lifecycle.OpBury, lifecycle.OpArchive, lifecycle.OpResurrect,
	} {
		moves = append(moves, TransitionCmd(eng, op))
	}

	return []commandGroup{
		{title: "Workspace", commands: []*Command{
			InitCmd(cfg, eng),
			StatusCmd(cfg, eng, env),
			SyncCmd(eng),
			PrintConfigCmd(cfg),
		}},
		{title: "Projects", commands: []*Command{
			CreateCmd(eng),
			RenameCmd(eng),
			DeleteCmd(eng),
			NoteCmd(eng),
			ShowCmd(eng),
			WhereCmd(eng),
		}},
		{title: "Stage moves", commands: moves},
	}
}

func allCommands(groups []commandGroup) []*Command {
	var out []*Command
	for _, g := range groups {
		out = append(out, g.commands...)
	}

	return out
}

func newEngine(cfg *project.Config, o *IO, log *zap.Logger, env map[string]string) (*lifecycle.Engine, error) {
	fsys := fs.NewReal()

	notifier := lifecycle.Notifiers{lifecycle.LogNotifier{Log: log}}
	if cfg.Hook != "" {
		notifier = append(notifier, lifecycle.HookNotifier{
			Command: cfg.Hook,
			Dir:     cfg.RootAbs,
			Env:     environ(env),
			Log:     log,
		})
	}

	return lifecycle.New(lifecycle.Options{
		FS:       fsys,
		Layout:   cfg.Layout,
		Store:    store.New(fsys, cfg.IndexPath, nil),
		NowLimit: cfg.NowLimit,
		AutoSync: cfg.AutoSync,
		Logger:   log,
		Notifier: notifier,
		Warn:     o.Warn,
	})
}

func environ(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}

	slices.Sort(out)

	return out
}

type globalFlags struct {
	workDir    string
	configPath string
	root       string
	verbose    bool
	remaining  []string
}

func parseGlobalFlags(args []string) (globalFlags, error) {
	var flags globalFlags

	idx := 0
	for idx < len(args) {
		consumed, err := parseFlag(args, idx, &flags)
		if err != nil {
			return globalFlags{}, err
		}

		if consumed == 0 {
			// Not a flag, this is the command
			flags.remaining = args[idx:]

			break
		}

		idx += consumed
	}

	return flags, nil
}

// parseFlag tries to parse a flag at args[idx]. Returns number of args consumed (0 if not a flag).
func parseFlag(args []string, idx int, flags *globalFlags) (int, error) {
	arg := args[idx]

	if value, consumed, ok, err := valueFlag(args, idx, "-C", "--cwd"); ok {
		flags.workDir = value

		return consumed, err
	}

	if value, consumed, ok, err := valueFlag(args, idx, "-c", "--config"); ok {
		flags.configPath = value

		return consumed, err
	}

	if value, consumed, ok, err := valueFlag(args, idx, "", "--root"); ok {
		if err == nil && value == "" {
			return consumedNone, fmt.Errorf("--root: %w", project.ErrRootEmpty)
		}

		flags.root = value

		return consumed, err
	}

	if arg == "-v" || arg == "--verbose" {
		flags.verbose = true

		return consumedOne, nil
	}

	// -h/--help flags
	if arg == "-h" || arg == helpFlag {
		flags.remaining = []string{helpFlag}

		return len(args) - idx, nil
	}

	// Unknown flag
	if strings.HasPrefix(arg, "-") && arg != "-" {
		return consumedNone, fmt.Errorf("%w: %s", project.ErrUnknownFlag, arg)
	}

	// Not a flag
	return consumedNone, nil
}

// valueFlag matches "-X value", "-Xvalue", "--long value" and "--long=value".
// ok reports whether args[idx] was this flag.
func valueFlag(args []string, idx int, short, long string) (string, int, bool, error) {
	arg := args[idx]

	if arg == short || arg == long {
		if idx+1 >= len(args) {
			return "", consumedNone, true, fmt.Errorf("%w: %s", project.ErrFlagRequiresArg, arg)
		}

		return args[idx+1], consumedTwo, true, nil
	}

	if after, ok := strings.CutPrefix(arg, long+"="); ok {
		return after, consumedOne, true, nil
	}

	if short != "" {
		if after, ok := strings.CutPrefix(arg, short); ok && after != "" {
			return after, consumedOne, true, nil
		}
	}

	return "", consumedNone, false, nil
}

func fprintln(w io.Writer, a ...any) {
	_, _ = fmt.Fprintln(w, a...)
}

func printUsage(w io.Writer, groups []commandGroup) {
	fprintln(w, `pj - project lifecycle manager

Usage: pj [options] <command> [args]

Options:
  -C, --cwd <dir>      Run as if started in <dir>
  -c, --config <file>  Use specified config file
  --root <dir>         Override the workspace root
  -v, --verbose        Debug logging on stderr`)

	for _, g := range groups {
		fprintln(w)
		fprintln(w, g.title+":")

		for _, c := range g.commands {
			fprintln(w, c.HelpLine())
		}
	}

	fprintln(w)
	fprintln(w, "Run 'pj <command> --help' for the stages a move is allowed from.")
}
