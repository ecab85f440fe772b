package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"

	"github.com/calvinalkan/agent-project/internal/lifecycle"
	"github.com/calvinalkan/agent-project/internal/project"
)

var (
	errUnexpectedArgs = errors.New("unexpected arguments")
	errNewNameMissing = errors.New("new name is required")
	errNameMismatch   = errors.New("typed name does not match, nothing deleted")
)

// CreateCmd returns the create command.
func CreateCmd(eng *lifecycle.Engine) *Command {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	fs.StringP("note", "n", "", "Free-text note stored with the project")

	return &Command{
		Flags: fs,
		Usage: "create <name> [--note]",
		Short: "Create a project in NEXT",
		Long:  "Create a project directory in the NEXT container and register it. Fails if the name is used in any stage.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			name, err := oneName(args)
			if err != nil {
				return err
			}

			note, _ := fs.GetString("note")

			p, err := eng.Create(ctx, name, note)
			if err != nil {
				return err
			}

			io.Printf("Created %s in %s\n", p.Name, p.Stage)
			io.Println("  " + p.Path)

			return nil
		},
	}
}

var transitionHelp = map[lifecycle.Op]struct {
	verb  string
	short string
}{
	lifecycle.OpStart:     {"Started", "Move a project to NOW"},
	lifecycle.OpShip:      {"Shipped", "Move an active project to DONE"},
	lifecycle.OpPause:     {"Paused", "Park an active project in MAYBE"},
	lifecycle.OpFail:      {"Failed", "Move a project to FUNERAL for a post-mortem"},
	lifecycle.OpBury:      {"Buried", "Move a project to GRAVEYARD"},
	lifecycle.OpArchive:   {"Archived", "Move a project to VAULT"},
	lifecycle.OpResurrect: {"Resurrected", "Bring a finished or failed project back to NOW"},
}

// TransitionCmd returns the command for a stage-changing operation.
func TransitionCmd(eng *lifecycle.Engine, op lifecycle.Op) *Command {
	help := transitionHelp[op]
	from, to, _ := lifecycle.Rule(op)

	fs := flag.NewFlagSet(string(op), flag.ContinueOnError)
	usage := string(op) + " <name>"

	if to == project.StageNow {
		fs.BoolP("force", "f", false, "Ignore the NOW limit")

		usage += " [--force]"
	}

	return &Command{
		Flags: fs,
		Usage: usage,
		Short: help.short,
		Long:  fmt.Sprintf("%s.\n\nAllowed from: %s.", help.short, joinStages(from)),
		Exec: func(ctx context.Context, io *IO, args []string) error {
			name, err := oneName(args)
			if err != nil {
				return err
			}

			force, _ := fs.GetBool("force")

			tr, err := runTransition(ctx, eng, op, name, lifecycle.StartOptions{Force: force})
			if err != nil {
				return err
			}

			io.Printf("%s %s (%s → %s)\n", help.verb, name, tr.From, tr.Project.Stage)
			io.Println("  " + tr.Project.Path)

			return nil
		},
	}
}

func runTransition(ctx context.Context, eng *lifecycle.Engine, op lifecycle.Op, name string, opts lifecycle.StartOptions) (lifecycle.Transition, error) {
	switch op {
	case lifecycle.OpStart:
		return eng.Start(ctx, name, opts)
	case lifecycle.OpShip:
		return eng.Ship(ctx, name)
	case lifecycle.OpPause:
		return eng.Pause(ctx, name)
	case lifecycle.OpFail:
		return eng.Fail(ctx, name)
	case lifecycle.OpBury:
		return eng.Bury(ctx, name)
	case lifecycle.OpArchive:
		return eng.Archive(ctx, name)
	case lifecycle.OpResurrect:
		return eng.Resurrect(ctx, name, opts)
	default:
		return lifecycle.Transition{}, fmt.Errorf("unsupported operation %q", op)
	}
}

// RenameCmd returns the rename command.
func RenameCmd(eng *lifecycle.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("rename", flag.ContinueOnError),
		Usage: "rename <old> <new>",
		Short: "Rename a project within its stage",
		Long:  "Rename a project directory and its index entry. Creation time and note are kept. Fails if the new name is used in any stage.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			switch {
			case len(args) == 0:
				return project.ErrNameRequired
			case len(args) == 1:
				return errNewNameMissing
			case len(args) > 2:
				return fmt.Errorf("%w: %s", errUnexpectedArgs, strings.Join(args[2:], " "))
			}

			p, err := eng.Rename(ctx, args[0], args[1])
			if err != nil {
				return err
			}

			io.Printf("Renamed %s → %s (%s)\n", args[0], p.Name, p.Stage)
			io.Println("  " + p.Path)

			return nil
		},
	}
}

// DeleteCmd returns the delete command.
func DeleteCmd(eng *lifecycle.Engine) *Command {
	fs := flag.NewFlagSet("delete", flag.ContinueOnError)
	fs.Bool("confirm", false, "Actually delete the directory and index entry")
	fs.BoolP("interactive", "i", false, "Confirm by typing the project name")

	return &Command{
		Flags: fs,
		Usage: "delete <name> [--confirm]",
		Short: "Delete a project permanently",
		Long: "Delete a project directory and its index entry. Without --confirm this only shows what would be removed.\n" +
			"With -i the project name must be typed to confirm.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			name, err := oneName(args)
			if err != nil {
				return err
			}

			confirmed, _ := fs.GetBool("confirm")
			interactive, _ := fs.GetBool("interactive")

			if !confirmed {
				p, err := eng.Delete(ctx, name, lifecycle.DeleteOptions{})
				if !errors.Is(err, project.ErrConfirmationNeeded) {
					return err
				}

				if !interactive {
					io.Warn(fmt.Sprintf("delete is irreversible; nothing was changed. Run 'pj delete %s --confirm' to remove %s", name, p.Path))
					io.Printf("Would delete %s (%s)\n", p.Name, p.Stage)
					io.Println("  " + p.Path)

					return nil
				}

				answer, err := newPrompter(io.in, io.errOut).Prompt(fmt.Sprintf("Type %q to delete %s: ", name, p.Path))
				if err != nil {
					return err
				}

				if answer != name {
					return errNameMismatch
				}
			}

			p, err := eng.Delete(ctx, name, lifecycle.DeleteOptions{Confirmed: true})
			if err != nil {
				return err
			}

			io.Printf("Deleted %s (was %s)\n", p.Name, p.Stage)

			return nil
		},
	}
}

// NoteCmd returns the note command.
func NoteCmd(eng *lifecycle.Engine) *Command {
	return &Command{
		Flags: flag.NewFlagSet("note", flag.ContinueOnError),
		Usage: "note <name> [text...]",
		Short: "Set or clear a project's note",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) == 0 {
				return project.ErrNameRequired
			}

			p, err := eng.SetNote(ctx, args[0], strings.Join(args[1:], " "))
			if err != nil {
				return err
			}

			if p.Note == "" {
				io.Println("Cleared note for", p.Name)
			} else {
				io.Println("Updated note for", p.Name)
			}

			return nil
		},
	}
}

func oneName(args []string) (string, error) {
	switch len(args) {
	case 0:
		return "", project.ErrNameRequired
	case 1:
		return args[0], nil
	default:
		return "", fmt.Errorf("%w: %s", errUnexpectedArgs, strings.Join(args[1:], " "))
	}
}

func joinStages(stages []project.Stage) string {
	parts := make([]string, 0, len(stages))
	for _, s := range stages {
		parts = append(parts, string(s))
	}

	return strings.Join(parts, ", ")
}
