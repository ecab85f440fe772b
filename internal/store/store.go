// Package store persists the project index as a single JSON document.
//
// The index is derived state: the stage directories are authoritative and a
// lost or corrupt index can always be rebuilt by reconciliation. Load
// therefore never fails on a malformed file. It returns an empty index and
// an error matching [project.ErrIndexCorruption] so the caller can warn and
// carry on.
package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/calvinalkan/agent-project/internal/project"
	"github.com/calvinalkan/agent-project/pkg/fs"
)

// CorruptSuffix is appended to the index path when a malformed index is
// preserved before being overwritten.
const CorruptSuffix = ".corrupt"

const indexPerm = 0o644

// Store reads and writes one index file.
type Store struct {
	fs     fs.FS
	writer *fs.AtomicWriter
	path   string
	now    func() time.Time

	// corrupt holds the raw bytes of a malformed index seen by Load. They
	// are copied aside on the next Save so nothing is silently lost.
	corrupt []byte
}

// New returns a store for the index at path. A nil now uses time.Now.
func New(fsys fs.FS, path string, now func() time.Time) *Store {
	if fsys == nil {
		panic("fs is nil")
	}

	if now == nil {
		now = time.Now
	}

	return &Store{
		fs:     fsys,
		writer: fs.NewAtomicWriter(fsys),
		path:   path,
		now:    now,
	}
}

// Path returns the index file path.
func (s *Store) Path() string {
	return s.path
}

// wireIndex is the on-disk document.
type wireIndex struct {
	Projects    map[string]project.Project `json:"projects"`
	LastUpdated time.Time                  `json:"lastUpdated"`
	Version     string                     `json:"version"`
}

// Load reads the index. A missing file yields an empty index and no error.
func (s *Store) Load() (*project.Index, error) {
	data, err := s.fs.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return project.NewIndex(), nil
		}

		return nil, project.FSError("read index", err, s.path)
	}

	idx, err := decode(data)
	if err != nil {
		s.corrupt = data

		return project.NewIndex(), fmt.Errorf("%w: %s: %w", project.ErrIndexCorruption, s.path, err)
	}

	s.corrupt = nil

	return idx, nil
}

// Save stamps idx.LastUpdated and atomically replaces the index file.
func (s *Store) Save(idx *project.Index) error {
	if s.corrupt != nil {
		backup := s.path + CorruptSuffix

		err := s.writer.Write(backup, bytes.NewReader(s.corrupt), fs.AtomicWriteOptions{SyncDir: true, Perm: indexPerm})
		if err != nil {
			return project.FSError("back up corrupt index", err, backup)
		}

		s.corrupt = nil
	}

	idx.LastUpdated = s.now().UTC()
	if idx.Version == "" {
		idx.Version = project.IndexVersion
	}

	data, err := encode(idx)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	err = s.writer.Write(s.path, bytes.NewReader(data), fs.AtomicWriteOptions{SyncDir: true, Perm: indexPerm})
	if err != nil {
		return project.FSError("write index", err, s.path)
	}

	return nil
}

func decode(data []byte) (*project.Index, error) {
	var w wireIndex

	dec := json.NewDecoder(bytes.NewReader(data))

	if err := dec.Decode(&w); err != nil {
		return nil, err
	}

	if dec.More() {
		return nil, errors.New("trailing data after index document")
	}

	idx := project.NewIndex()
	idx.LastUpdated = w.LastUpdated

	if w.Version != "" {
		idx.Version = w.Version
	}

	for name, p := range w.Projects {
		if err := project.ValidateName(name); err != nil {
			return nil, err
		}

		if !p.Stage.Valid() {
			return nil, fmt.Errorf("project %q: %w: %q", name, project.ErrInvalidStage, p.Stage)
		}

		p.Name = name
		if err := idx.Register(p); err != nil {
			return nil, err
		}
	}

	return idx, nil
}

func encode(idx *project.Index) ([]byte, error) {
	w := wireIndex{
		Projects:    make(map[string]project.Project, idx.Len()),
		LastUpdated: idx.LastUpdated,
		Version:     idx.Version,
	}

	for _, p := range idx.All() {
		w.Projects[p.Name] = p
	}

	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, err
	}

	return append(data, '\n'), nil
}
