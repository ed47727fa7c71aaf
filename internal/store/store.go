// Package store persists the local task snapshot as a YAML file.
package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"juggler/internal/config"
	"juggler/internal/task"
)

// ArchiveTimeLayout names archived snapshot files.
const ArchiveTimeLayout = "2006-01-02T15-04-05"

// Store loads and saves the local task snapshot. The reconciliation core
// never touches files; all local persistence goes through here.
type Store struct {
	cfg *config.Config
}

// New creates a Store over the configured data directory.
func New(cfg *config.Config) *Store {
	return &Store{cfg: cfg}
}

// Load reads the snapshot. A missing file yields an empty snapshot, not
// an error. Tasks come back sorted by due date ascending with undated
// tasks last; order is stable for equal keys.
func (s *Store) Load() ([]task.Local, error) {
	data, err := os.ReadFile(s.cfg.TasksPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.cfg.TasksPath(), err)
	}

	var tasks []task.Local
	if err := yaml.Unmarshal(data, &tasks); err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.cfg.TasksPath(), err)
	}
	for i, t := range tasks {
		if strings.TrimSpace(t.Title) == "" {
			return nil, fmt.Errorf("%s: task %d: empty title", s.cfg.TasksPath(), i+1)
		}
	}
	sortTasks(tasks)
	return tasks, nil
}

// Save writes the snapshot atomically: the YAML goes to a temp file in
// the data directory and is synced to disk, then renamed over the
// target, so a crash mid-write never corrupts the previous snapshot.
func (s *Store) Save(tasks []task.Local) error {
	data, err := yaml.Marshal(tasks)
	if err != nil {
		return fmt.Errorf("encode tasks: %w", err)
	}
	if err := s.cfg.EnsureDir(); err != nil {
		return fmt.Errorf("create %s: %w", s.cfg.Dir, err)
	}

	tmp, err := os.CreateTemp(s.cfg.Dir, ".TODOs-*.yaml")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	// The data must reach disk before the rename publishes it.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("sync %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), s.cfg.TasksPath()); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", s.cfg.TasksPath(), err)
	}
	return nil
}

// Archive copies the current snapshot into the archive directory under a
// name carrying ts. Archiving with no snapshot present is a no-op.
func (s *Store) Archive(ts time.Time) error {
	data, err := os.ReadFile(s.cfg.TasksPath())
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", s.cfg.TasksPath(), err)
	}

	if err := os.MkdirAll(s.cfg.ArchivePath(), 0700); err != nil {
		return fmt.Errorf("create %s: %w", s.cfg.ArchivePath(), err)
	}
	name := fmt.Sprintf("TODOs_%s.yaml", ts.UTC().Format(ArchiveTimeLayout))
	path := filepath.Join(s.cfg.ArchivePath(), name)
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func sortTasks(tasks []task.Local) {
	sort.SliceStable(tasks, func(i, j int) bool {
		a, b := tasks[i].DueDate, tasks[j].DueDate
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
}
