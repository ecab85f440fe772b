package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	flag "github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/calvinalkan/agent-project/internal/lifecycle"
	"github.com/calvinalkan/agent-project/internal/project"
)

const (
	formatText = "text"
	formatJSON = "json"
	formatYAML = "yaml"
)

// StatusCmd returns the status command.
func StatusCmd(cfg *project.Config, eng *lifecycle.Engine, env map[string]string) *Command {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.BoolP("all", "a", false, "Show every DONE project and the hidden VAULT and GRAVEYARD stages")
	fs.String("format", formatText, "Output format: text|json|yaml")

	return &Command{
		Flags: fs,
		Usage: "status [flags]",
		Short: "List projects grouped by stage",
		Long: "List projects grouped by stage, most recently modified first.\n" +
			"DONE is truncated and VAULT/GRAVEYARD are hidden unless --all is given.\n" +
			"json and yaml output always include every project.",
		Exec: func(ctx context.Context, io *IO, args []string) error {
			if len(args) > 0 {
				return fmt.Errorf("%w: %s", errUnexpectedArgs, strings.Join(args, " "))
			}

			all, _ := fs.GetBool("all")
			format, _ := fs.GetString("format")

			idx, err := eng.Status(ctx)
			if err != nil {
				return err
			}

			switch format {
			case formatText:
				renderStatus(io, newStyles(io.out, env), idx, cfg.DoneVisible, all)

				return nil
			case formatJSON:
				data, err := json.MarshalIndent(statusDocument(idx), "", "  ")
				if err != nil {
					return fmt.Errorf("encode status: %w", err)
				}

				io.Println(string(data))

				return nil
			case formatYAML:
				data, err := yaml.Marshal(statusDocument(idx))
				if err != nil {
					return fmt.Errorf("encode status: %w", err)
				}

				io.Printf("%s", data)

				return nil
			default:
				return fmt.Errorf("invalid --format %q (want text, json or yaml)", format)
			}
		},
	}
}

func renderStatus(io *IO, st styles, idx *project.Index, doneVisible int, all bool) {
	if idx.Len() == 0 {
		io.Println("No projects. Create one with 'pj create <name>'.")

		return
	}

	groups := idx.ByStage()

	var hidden []string

	for _, stage := range project.Stages() {
		list := groups[stage]
		if len(list) == 0 {
			continue
		}

		if stage.IsHidden() && !all {
			hidden = append(hidden, fmt.Sprintf("%s: %d", stage, len(list)))

			continue
		}

		io.Println(st.stageHeading(stage, fmt.Sprintf("%s (%d)", stage, len(list))))

		shown := list
		if stage == project.StageDone && !all && len(list) > doneVisible {
			shown = list[:doneVisible]
		}

		for _, p := range shown {
			line := "  " + p.Name
			if p.Note != "" {
				line += "  " + st.muted.Render(p.Note)
			}

			io.Println(line)
		}

		if more := len(list) - len(shown); more > 0 {
			io.Println(st.muted.Render(fmt.Sprintf("  … and %d more", more)))
		}
	}

	if len(hidden) > 0 {
		io.Println(st.muted.Render(fmt.Sprintf("hidden: %s (use --all to show)", strings.Join(hidden, ", "))))
	}
}

type statusProject struct {
	Name         string    `json:"name" yaml:"name"`
	Path         string    `json:"path" yaml:"path"`
	CreatedAt    time.Time `json:"createdAt" yaml:"createdAt"`
	LastModified time.Time `json:"lastModified" yaml:"lastModified"`
	Note         string    `json:"note,omitempty" yaml:"note,omitempty"`
}

type statusStage struct {
	Stage    project.Stage   `json:"stage" yaml:"stage"`
	Count    int             `json:"count" yaml:"count"`
	Projects []statusProject `json:"projects" yaml:"projects"`
}

func statusDocument(idx *project.Index) []statusStage {
	groups := idx.ByStage()
	out := make([]statusStage, 0, len(project.Stages()))

	for _, stage := range project.Stages() {
		list := groups[stage]
		entry := statusStage{Stage: stage, Count: len(list), Projects: make([]statusProject, 0, len(list))}

		for _, p := range list {
			entry.Projects = append(entry.Projects, statusProject{
				Name:         p.Name,
				Path:         p.Path,
				CreatedAt:    p.CreatedAt,
				LastModified: p.LastModified,
				Note:         p.Note,
			})
		}

		out = append(out, entry)
	}

	return out
}
