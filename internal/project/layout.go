package project

import (
	"path/filepath"
)

// Layout maps stages to their container directories under a workspace root.
type Layout struct {
	Root string
	Dirs map[Stage]string
}

// DefaultStageDirs names each container after its stage.
func DefaultStageDirs() map[Stage]string {
	dirs := make(map[Stage]string, len(Stages()))
	for _, s := range Stages() {
		dirs[s] = string(s)
	}

	return dirs
}

// NewLayout returns a layout rooted at root. Missing entries in dirs fall
// back to [DefaultStageDirs].
func NewLayout(root string, dirs map[Stage]string) Layout {
	merged := DefaultStageDirs()
	for s, d := range dirs {
		if d != "" {
			merged[s] = d
		}
	}

	return Layout{Root: filepath.Clean(root), Dirs: merged}
}

// Container returns the absolute container directory of stage.
func (l Layout) Container(stage Stage) string {
	return filepath.Join(l.Root, l.Dirs[stage])
}

// Path returns where a project named name lives while in stage.
func (l Layout) Path(stage Stage, name string) string {
	return filepath.Join(l.Container(stage), name)
}

// Containers returns every stage with its container, in display order.
func (l Layout) Containers() []StageDir {
	out := make([]StageDir, 0, len(l.Dirs))
	for _, s := range Stages() {
		out = append(out, StageDir{Stage: s, Dir: l.Container(s)})
	}

	return out
}

// StageDir pairs a stage with its container directory.
type StageDir struct {
	Stage Stage
	Dir   string
}
