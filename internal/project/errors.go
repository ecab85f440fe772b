package project

import (
	"errors"
	"fmt"
	"strings"
)

// Error taxonomy for lifecycle operations.
var (
	ErrNameCollision      = errors.New("name collision")
	ErrUnknownProject     = errors.New("unknown project")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrFilesystem         = errors.New("filesystem failure")
	ErrIndexCorruption    = errors.New("index corruption")
	ErrInvalidName        = errors.New("invalid project name")
	ErrInvalidStage       = errors.New("invalid stage")
	ErrNameRequired       = errors.New("project name is required")
	ErrConfirmationNeeded = errors.New("delete requires confirmation")
	ErrNowLimit           = errors.New("NOW limit reached")
	ErrIndexPersist       = errors.New("index not saved")
)

// Config errors.
var (
	ErrConfigFileNotFound = errors.New("config file not found")
	ErrConfigFileRead     = errors.New("cannot read config file")
	ErrConfigInvalid      = errors.New("invalid config file")
	ErrRootEmpty          = errors.New("root cannot be empty")
	ErrIndexFileEmpty     = errors.New("index_file cannot be empty")
	ErrFlagRequiresArg    = errors.New("flag requires an argument")
	ErrUnknownFlag        = errors.New("unknown flag")
)

// TransitionError reports an operation attempted from a stage outside its
// allowed source set. It matches [ErrInvalidTransition] with errors.Is.
type TransitionError struct {
	Op      string
	Name    string
	From    Stage
	Allowed []Stage
}

func (e *TransitionError) Error() string {
	allowed := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		allowed = append(allowed, string(s))
	}

	return fmt.Sprintf("%s: cannot %s %q from %s (allowed from: %s)",
		ErrInvalidTransition, e.Op, e.Name, e.From, strings.Join(allowed, ", "))
}

func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// FilesystemError wraps an I/O failure together with the paths that were
// being touched. It matches both [ErrFilesystem] and the underlying cause.
type FilesystemError struct {
	Op    string
	Paths []string
	Err   error
}

func (e *FilesystemError) Error() string {
	return fmt.Sprintf("%s: %s %s: %v", ErrFilesystem, e.Op, strings.Join(e.Paths, " -> "), e.Err)
}

func (e *FilesystemError) Unwrap() []error {
	return []error{ErrFilesystem, e.Err}
}

// FSError builds a [*FilesystemError].
func FSError(op string, err error, paths ...string) error {
	return &FilesystemError{Op: op, Paths: paths, Err: err}
}

// PersistError reports that the filesystem was changed but the index could
// not be saved. Disk and index now disagree until `pj sync` runs.
type PersistError struct {
	Op   string
	Name string
	Err  error
}

func (e *PersistError) Error() string {
	return fmt.Sprintf("%s: %s %q changed the filesystem but the index could not be saved: %v (run 'pj sync' to repair)",
		ErrIndexPersist, e.Op, e.Name, e.Err)
}

func (e *PersistError) Unwrap() []error {
	return []error{ErrIndexPersist, e.Err}
}
