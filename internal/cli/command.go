package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// Command is one pj subcommand.
type Command struct {
	// Flags holds the command's own flags. Global flags are parsed in Run.
	Flags *flag.FlagSet

	// Usage starts with the command name, e.g. "start <name> [--force]".
	Usage string

	// Short is shown in the command listing.
	Short string

	// Long is shown by "pj <cmd> --help". Short is used when empty.
	Long string

	// Exec receives the positional arguments left after flag parsing.
	Exec func(ctx context.Context, o *IO, args []string) error
}

// commandGroup is a titled section of the command listing.
type commandGroup struct {
	title    string
	commands []*Command
}

// Name returns the first word of Usage.
func (c *Command) Name() string {
	name, _, _ := strings.Cut(c.Usage, " ")

	return name
}

// HelpLine is the command's row in the listing.
func (c *Command) HelpLine() string {
	return fmt.Sprintf("  %-28s %s", c.Usage, c.Short)
}

// PrintHelp writes the command's usage, description and options to stdout.
func (c *Command) PrintHelp(o *IO) {
	desc := c.Long
	if desc == "" {
		desc = c.Short
	}

	o.Printf("Usage: pj %s\n\n%s\n", c.Usage, desc)

	if c.Flags == nil || !c.Flags.HasFlags() {
		return
	}

	o.Printf("\nFlags:\n%s", c.Flags.FlagUsages())
}

// Run parses args and executes the command, returning the exit code.
// Errors go to stderr; a flag error is followed by the command help.
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	c.Flags.SetOutput(&strings.Builder{})

	if err := c.Flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			c.PrintHelp(o)

			return 0
		}

		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(o)

		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		o.ErrPrintln("error:", err)

		return 1
	}

	return 0
}
