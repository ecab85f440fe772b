package cli

import (
	"io"

	"github.com/charmbracelet/lipgloss"

	"github.com/calvinalkan/agent-project/internal/project"
)

// Colors follow the Ayu palette with light/dark variants.
var (
	colorAccent = lipgloss.AdaptiveColor{Light: "#399ee6", Dark: "#59c2ff"}
	colorPass   = lipgloss.AdaptiveColor{Light: "#86b300", Dark: "#c2d94c"}
	colorWarn   = lipgloss.AdaptiveColor{Light: "#f2ae49", Dark: "#ffb454"}
	colorFail   = lipgloss.AdaptiveColor{Light: "#f07171", Dark: "#f07178"}
	colorMuted  = lipgloss.AdaptiveColor{Light: "#828c99", Dark: "#6c7680"}
)

// styles renders status output. The renderer detects whether w supports
// color, so pipes and buffers get plain text.
type styles struct {
	heading lipgloss.Style
	muted   lipgloss.Style
	stage   map[project.Stage]lipgloss.Style
}

func newStyles(w io.Writer, env map[string]string) styles {
	r := lipgloss.NewRenderer(w)

	if _, noColor := env["NO_COLOR"]; noColor {
		plain := r.NewStyle()

		return styles{heading: plain, muted: plain, stage: map[project.Stage]lipgloss.Style{}}
	}

	stageColor := func(c lipgloss.AdaptiveColor) lipgloss.Style {
		return r.NewStyle().Bold(true).Foreground(c)
	}

	return styles{
		heading: r.NewStyle().Bold(true).Foreground(colorAccent),
		muted:   r.NewStyle().Foreground(colorMuted),
		stage: map[project.Stage]lipgloss.Style{
			project.StageNow:       stageColor(colorPass),
			project.StageDone:      stageColor(colorPass),
			project.StageMaybe:     stageColor(colorWarn),
			project.StageFuneral:   stageColor(colorFail),
			project.StageGraveyard: stageColor(colorMuted),
			project.StageVault:     stageColor(colorMuted),
		},
	}
}

func (s styles) stageHeading(stage project.Stage, text string) string {
	if st, ok := s.stage[stage]; ok {
		return st.Render(text)
	}

	return s.heading.Render(text)
}
