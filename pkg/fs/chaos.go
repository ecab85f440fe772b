package fs

import (
	"errors"
	iofs "io/fs"
	"math/rand/v2"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
)

// Op names a filesystem operation that [Chaos] can fail.
type Op string

// Operations recognised by [ChaosConfig.Only].
const (
	OpOpen      Op = "open"
	OpOpenFile  Op = "openfile"
	OpReadFile  Op = "readfile"
	OpReadDir   Op = "readdir"
	OpMkdir     Op = "mkdir"
	OpMkdirAll  Op = "mkdirall"
	OpStat      Op = "stat"
	OpExists    Op = "exists"
	OpRemove    Op = "remove"
	OpRemoveAll Op = "removeall"
	OpRename    Op = "rename"
	OpWrite     Op = "write"
	OpSync      Op = "sync"
)

// ChaosConfig controls fault injection probabilities.
// Each rate is a float64 from 0.0 (never) to 1.0 (always).
//
// The zero value disables all fault injection. A rate of 1.0 makes the
// corresponding operation fail deterministically, which is how most tests
// use it together with [ChaosConfig.Only].
type ChaosConfig struct {
	// OpenFailRate controls FS.Open and FS.OpenFile failures.
	OpenFailRate float64

	// ReadFailRate controls FS.ReadFile failures.
	ReadFailRate float64

	// ReadDirFailRate controls FS.ReadDir failures.
	ReadDirFailRate float64

	// MkdirFailRate controls FS.Mkdir and FS.MkdirAll failures.
	MkdirFailRate float64

	// StatFailRate controls FS.Stat and FS.Exists failures.
	StatFailRate float64

	// RemoveFailRate controls FS.Remove and FS.RemoveAll failures.
	RemoveFailRate float64

	// RenameFailRate controls FS.Rename failures. Injected errors are
	// [*os.LinkError] values, like [os.Rename].
	RenameFailRate float64

	// WriteFailRate controls File.Write failures on files opened through Chaos.
	WriteFailRate float64

	// SyncFailRate controls File.Sync failures on files opened through Chaos.
	SyncFailRate float64

	// Only restricts injection to operations for which it returns true.
	// Nil means every operation is eligible.
	Only func(op Op, path string) bool
}

// ChaosMode controls how [Chaos] behaves.
type ChaosMode uint8

const (
	// ChaosModeActive enables fault injection. This is the default.
	ChaosModeActive ChaosMode = iota

	// ChaosModeNoOp passes every operation directly to the underlying FS.
	ChaosModeNoOp
)

// ChaosStats contains counts of injected faults per operation.
type ChaosStats map[Op]int64

// chaosError marks an error as intentionally injected by [Chaos].
//
// It wraps an [*iofs.PathError] or [*os.LinkError] carrying a real
// [syscall.Errno], so errors.Is and os.IsPermission keep working.
type chaosError struct {
	Err error
}

func (e *chaosError) Error() string {
	return "chaos: " + e.Err.Error()
}

func (e *chaosError) Unwrap() error {
	return e.Err
}

// IsChaosErr reports whether err (or any wrapped error) was injected by [Chaos].
func IsChaosErr(err error) bool {
	var injected *chaosError

	return errors.As(err, &injected)
}

// Chaos wraps an [FS] and injects failures for testing.
//
// Chaos never injects ENOENT: any not-exist result originates from the
// wrapped FS. Each call decides independently whether to inject.
type Chaos struct {
	fs     FS
	config ChaosConfig
	mode   atomic.Uint32

	rngMu sync.Mutex
	rng   *rand.Rand

	statsMu sync.Mutex
	stats   ChaosStats
}

// NewChaos creates a new [Chaos] filesystem wrapping the given [FS].
// The seed controls random fault injection for reproducibility.
// Panics if underlying is nil.
func NewChaos(underlying FS, seed int64, config ChaosConfig) *Chaos {
	if underlying == nil {
		panic("underlying fs is nil")
	}

	return &Chaos{
		fs:     underlying,
		config: config,
		rng:    rand.New(rand.NewPCG(uint64(seed), uint64(seed))),
		stats:  ChaosStats{},
	}
}

// SetMode switches between injecting and passthrough behavior.
// Safe to call concurrently with filesystem operations.
func (c *Chaos) SetMode(m ChaosMode) { c.mode.Store(uint32(m)) }

// Stats returns a copy of the fault injection counts.
func (c *Chaos) Stats() ChaosStats {
	c.statsMu.Lock()
	defer c.statsMu.Unlock()

	out := make(ChaosStats, len(c.stats))
	for op, n := range c.stats {
		out[op] = n
	}

	return out
}

// TotalFaults returns the total number of injected faults.
func (c *Chaos) TotalFaults() int64 {
	var total int64
	for _, n := range c.Stats() {
		total += n
	}

	return total
}

// Open opens a file for reading with fault injection.
func (c *Chaos) Open(path string) (File, error) {
	if c.inject(OpOpen, path, c.config.OpenFailRate) {
		return nil, c.pathError(OpOpen, path, []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE})
	}

	f, err := c.fs.Open(path)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, chaos: c, path: path}, nil
}

// OpenFile opens a file with fault injection.
func (c *Chaos) OpenFile(path string, flag int, perm os.FileMode) (File, error) {
	if c.inject(OpOpenFile, path, c.config.OpenFailRate) {
		return nil, c.pathError(OpOpenFile, path, []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EROFS})
	}

	f, err := c.fs.OpenFile(path, flag, perm)
	if err != nil {
		return nil, err
	}

	return &chaosFile{File: f, chaos: c, path: path}, nil
}

// ReadFile reads a file with fault injection.
func (c *Chaos) ReadFile(path string) ([]byte, error) {
	if c.inject(OpReadFile, path, c.config.ReadFailRate) {
		return nil, c.pathError(OpReadFile, path, []syscall.Errno{syscall.EACCES, syscall.EIO})
	}

	return c.fs.ReadFile(path)
}

// ReadDir lists a directory with fault injection.
func (c *Chaos) ReadDir(path string) ([]os.DirEntry, error) {
	if c.inject(OpReadDir, path, c.config.ReadDirFailRate) {
		return nil, c.pathError(OpReadDir, path, []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.EMFILE})
	}

	return c.fs.ReadDir(path)
}

// Mkdir creates a directory with fault injection.
func (c *Chaos) Mkdir(path string, perm os.FileMode) error {
	if c.inject(OpMkdir, path, c.config.MkdirFailRate) {
		return c.pathError(OpMkdir, path, []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EROFS})
	}

	return c.fs.Mkdir(path, perm)
}

// MkdirAll creates a directory tree with fault injection.
func (c *Chaos) MkdirAll(path string, perm os.FileMode) error {
	if c.inject(OpMkdirAll, path, c.config.MkdirFailRate) {
		return c.pathError(OpMkdirAll, path, []syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EROFS})
	}

	return c.fs.MkdirAll(path, perm)
}

// Stat returns file info with fault injection.
func (c *Chaos) Stat(path string) (os.FileInfo, error) {
	if c.inject(OpStat, path, c.config.StatFailRate) {
		return nil, c.pathError(OpStat, path, []syscall.Errno{syscall.EACCES, syscall.EIO})
	}

	return c.fs.Stat(path)
}

// Exists reports whether path exists, with fault injection.
func (c *Chaos) Exists(path string) (bool, error) {
	if c.inject(OpExists, path, c.config.StatFailRate) {
		return false, c.pathError(OpExists, path, []syscall.Errno{syscall.EACCES, syscall.EIO})
	}

	return c.fs.Exists(path)
}

// Remove removes a file or empty directory with fault injection.
func (c *Chaos) Remove(path string) error {
	if c.inject(OpRemove, path, c.config.RemoveFailRate) {
		return c.pathError(OpRemove, path, []syscall.Errno{syscall.EACCES, syscall.EPERM, syscall.EBUSY, syscall.EIO})
	}

	return c.fs.Remove(path)
}

// RemoveAll removes a tree with fault injection.
func (c *Chaos) RemoveAll(path string) error {
	if c.inject(OpRemoveAll, path, c.config.RemoveFailRate) {
		return c.pathError(OpRemoveAll, path, []syscall.Errno{syscall.EACCES, syscall.EPERM, syscall.EBUSY, syscall.EIO})
	}

	return c.fs.RemoveAll(path)
}

// Rename moves a file or directory with fault injection.
func (c *Chaos) Rename(oldpath, newpath string) error {
	if c.inject(OpRename, oldpath, c.config.RenameFailRate) {
		errno := c.pick([]syscall.Errno{syscall.EACCES, syscall.EIO, syscall.ENOSPC, syscall.EXDEV, syscall.EROFS, syscall.EPERM})

		return &chaosError{Err: &os.LinkError{Op: "rename", Old: oldpath, New: newpath, Err: errno}}
	}

	return c.fs.Rename(oldpath, newpath)
}

// inject decides whether op on path fails and records the fault.
func (c *Chaos) inject(op Op, path string, rate float64) bool {
	if ChaosMode(c.mode.Load()) != ChaosModeActive || rate <= 0 {
		return false
	}

	if c.config.Only != nil && !c.config.Only(op, path) {
		return false
	}

	c.rngMu.Lock()
	hit := c.rng.Float64() < rate
	c.rngMu.Unlock()

	if !hit {
		return false
	}

	c.statsMu.Lock()
	c.stats[op]++
	c.statsMu.Unlock()

	return true
}

func (c *Chaos) pick(errnos []syscall.Errno) syscall.Errno {
	c.rngMu.Lock()
	defer c.rngMu.Unlock()

	return errnos[c.rng.IntN(len(errnos))]
}

func (c *Chaos) pathError(op Op, path string, errnos []syscall.Errno) error {
	return &chaosError{Err: &iofs.PathError{Op: string(op), Path: path, Err: c.pick(errnos)}}
}

// chaosFile wraps a [File] and injects Write and Sync failures.
type chaosFile struct {
	File

	chaos *Chaos
	path  string
}

var _ File = (*chaosFile)(nil)

func (cf *chaosFile) Write(data []byte) (int, error) {
	if cf.chaos.inject(OpWrite, cf.path, cf.chaos.config.WriteFailRate) {
		return 0, cf.chaos.pathError(OpWrite, cf.path, []syscall.Errno{syscall.EIO, syscall.ENOSPC, syscall.EDQUOT})
	}

	return cf.File.Write(data)
}

func (cf *chaosFile) Sync() error {
	if cf.chaos.inject(OpSync, cf.path, cf.chaos.config.SyncFailRate) {
		return cf.chaos.pathError(OpSync, cf.path, []syscall.Errno{syscall.EIO, syscall.ENOSPC})
	}

	return cf.File.Sync()
}

// Compile-time interface check.
var _ FS = (*Chaos)(nil)
