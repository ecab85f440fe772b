package cli

import (
	"context"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/agent-project/internal/lifecycle"
)

// SyncCmd returns the sync command.
func SyncCmd(eng *lifecycle.Engine) *Command {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.BoolP("dry-run", "n", false, "Report what would change without saving")

	return &Command{
		Flags: fs,
		Usage: "sync [--dry-run]",
		Short: "Reconcile the index with the stage directories",
		Long: "Reconcile the index with the stage directories.\n\n" +
			"Index entries without a directory are removed, directories without an entry are added\n" +
			"with the stage of their container, and entries whose directory moved are relocated.\n" +
			"A directory moved by hand to another stage counts as relocated=1, not as removed=1\n" +
			"plus added=1, so its creation time and note are kept.\n" +
			"Directories whose names can not be project names (e.g. invalid UTF-8) are skipped\n" +
			"with a warning. Directories are never created, moved or deleted.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: %s", errUnexpectedArgs, strings.Join(args, " "))
			}

			dryRun, _ := fs.GetBool("dry-run")

			report, err := eng.Sync(ctx, lifecycle.SyncOptions{DryRun: dryRun})
			if err != nil {
				return err
			}

			printSyncReport(io, report)

			return nil
		},
	}
}

func printSyncReport(io *IO, r lifecycle.SyncReport) {
	for _, p := range r.Added {
		io.Printf("+ %s (%s)\n", p.Name, p.Stage)
	}

	for _, p := range r.Removed {
		io.Printf("- %s (%s)\n", p.Name, p.Stage)
	}

	for _, rel := range r.Relocated {
		io.Printf("~ %s (%s → %s)\n", rel.Name, rel.From, rel.To)
	}

	for _, c := range r.Conflicts {
		io.Problem(
			fmt.Sprintf("%q exists in several stages: %s", c.Name, strings.Join(c.Paths, ", ")),
			"keep one directory (rename or delete the others by hand), then run 'pj sync' again")
	}

	prefix := ""
	if r.DryRun {
		prefix = "dry-run: "
	}

	io.Printf("%sadded=%d removed=%d total=%d\n", prefix, len(r.Added), len(r.Removed), r.Total)

	if len(r.Relocated) > 0 || len(r.Conflicts) > 0 {
		io.Printf("%srelocated=%d conflicts=%d\n", prefix, len(r.Relocated), len(r.Conflicts))
	}
}
