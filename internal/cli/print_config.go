package cli

import (
	"context"
	"strconv"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/agent-project/internal/project"
)

// PrintConfigCmd returns the print-config command.
func PrintConfigCmd(cfg *project.Config) *Command {
	return &Command{
		Flags: flag.NewFlagSet("print-config", flag.ContinueOnError),
		Usage: "print-config",
		Short: "Show resolved configuration",
		Long:  "Display the effective configuration and which files it was loaded from.",
		Exec: func(_ context.Context, io *IO, _ []string) error {
			return execPrintConfig(io, cfg)
		},
	}
}

func execPrintConfig(io *IO, cfg *project.Config) error {
	io.Println("effective_cwd=" + cfg.EffectiveCwd)
	io.Println("root=" + cfg.RootAbs)
	io.Println("index_file=" + cfg.IndexPath)

	for _, c := range cfg.Layout.Containers() {
		io.Println("stage_dir." + string(c.Stage) + "=" + c.Dir)
	}

	io.Println("now_limit=" + strconv.Itoa(cfg.NowLimit))
	io.Println("done_visible=" + strconv.Itoa(cfg.DoneVisible))
	io.Println("auto_sync=" + strconv.FormatBool(cfg.AutoSync))
	io.Println("log_level=" + cfg.LogLevel)

	if cfg.Hook != "" {
		io.Println("hook=" + cfg.Hook)
	}

	io.Println("")
	io.Println("# sources")

	if cfg.Sources.Global == "" && cfg.Sources.Project == "" {
		io.Println("(defaults only)")
	} else {
		if cfg.Sources.Global != "" {
			io.Println("global_config=" + cfg.Sources.Global)
		}

		if cfg.Sources.Project != "" {
			io.Println("project_config=" + cfg.Sources.Project)
		}
	}

	return nil
}
