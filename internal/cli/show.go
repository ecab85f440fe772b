package cli

import (
	"context"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/agent-project/internal/lifecycle"
)

// ShowCmd returns the show command.
func ShowCmd(eng *lifecycle.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("show", flag.ContinueOnError),
		Usage: "show <name>",
		Short: "Show a project's index entry",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			name, err := oneName(args)
			if err != nil {
				return err
			}

			p, err := eng.Locate(ctx, name)
			if err != nil {
				return err
			}

			io.Println("name=" + p.Name)
			io.Println("stage=" + string(p.Stage))
			io.Println("path=" + p.Path)
			io.Println("created=" + p.CreatedAt.Format(time.RFC3339))
			io.Println("modified=" + p.LastModified.Format(time.RFC3339))

			if p.Note != "" {
				io.Println("note=" + p.Note)
			}

			return nil
		},
	}
}

// WhereCmd returns the where command.
func WhereCmd(eng *lifecycle.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("where", flag.ContinueOnError),
		Usage: "where <name>",
		Short: "Print a project's directory",
		Long:  "Print the recorded directory of a project, e.g. cd \"$(pj where demo)\". Reads the index only.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			name, err := oneName(args)
			if err != nil {
				return err
			}

			p, err := eng.Locate(ctx, name)
			if err != nil {
				return err
			}

			io.Println(p.Path)

			return nil
		},
	}
}
