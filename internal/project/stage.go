package project

import (
	"fmt"
	"strings"
)

// Stage is a lifecycle state. Each stage owns one container directory.
type Stage string

// Lifecycle stages.
const (
	StageNext      Stage = "NEXT"
	StageNow       Stage = "NOW"
	StageMaybe     Stage = "MAYBE"
	StageDone      Stage = "DONE"
	StageVault     Stage = "VAULT"
	StageFuneral   Stage = "FUNERAL"
	StageGraveyard Stage = "GRAVEYARD"
)

// Stages returns every stage in display order.
func Stages() []Stage {
	return []Stage{StageNow, StageNext, StageMaybe, StageFuneral, StageDone, StageVault, StageGraveyard}
}

// ParseStage parses a stage name case-insensitively.
func ParseStage(s string) (Stage, error) {
	candidate := Stage(strings.ToUpper(strings.TrimSpace(s)))
	if candidate.Valid() {
		return candidate, nil
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidStage, s)
}

// Valid reports whether s is one of the seven stages.
func (s Stage) Valid() bool {
	switch s {
	case StageNext, StageNow, StageMaybe, StageDone, StageVault, StageFuneral, StageGraveyard:
		return true
	}

	return false
}

// IsTerminal reports whether s is VAULT or GRAVEYARD.
func (s Stage) IsTerminal() bool {
	return s == StageVault || s == StageGraveyard
}

// IsHidden reports whether s is hidden from the default status view.
func (s Stage) IsHidden() bool {
	return s.IsTerminal()
}

func (s Stage) String() string {
	return string(s)
}
