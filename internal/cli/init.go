package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/agent-project/internal/lifecycle"
	"github.com/calvinalkan/agent-project/internal/project"
)

// InitCmd returns the init command.
func InitCmd(cfg *project.Config, eng *lifecycle.Engine) *Command {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.Bool("no-config", false, "Only create the stage directories")

	return &Command{
		Flags: fs,
		Usage: "init [--no-config]",
		Short: "Create the stage directories and a starter config",
		Long: "Create one directory per stage under the workspace root and write a commented\n" +
			project.ConfigFileName + " in the current directory unless one exists.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: %s", errUnexpectedArgs, strings.Join(args, " "))
			}

			noConfig, _ := fs.GetBool("no-config")

			if !noConfig {
				if err := writeStarterConfig(io, cfg); err != nil {
					return err
				}
			}

			created, err := eng.Init(ctx)
			if err != nil {
				return err
			}

			for _, dir := range created {
				io.Println("Created", dir)
			}

			io.Println("Workspace ready at", cfg.RootAbs)

			return nil
		},
	}
}

func writeStarterConfig(io *IO, cfg *project.Config) error {
	path := filepath.Join(cfg.EffectiveCwd, project.ConfigFileName)

	_, err := os.Stat(path)
	if err == nil {
		io.Println("Keeping existing", path)

		return nil
	}

	if !errors.Is(err, os.ErrNotExist) {
		return project.FSError("init", err, path)
	}

	if err := atomic.WriteFile(path, strings.NewReader(project.StarterConfig)); err != nil {
		return project.FSError("write config", err, path)
	}

	io.Println("Wrote", path)

	return nil
}
