package profile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/mapsproj/maps/pkg/document"
)

// Store loads flattened profiles from a directory of YAML documents and
// serves them to concurrent readers. The loaded set is published as an
// immutable snapshot; Reload and Watch swap the snapshot atomically, so a
// parse in flight keeps the profile set it started with.
type Store struct {
	dir        string
	transforms TransformChecker
	logger     *zap.Logger
	snap       atomic.Pointer[map[string]*Profile]
}

// NewStore reads every .yaml/.yml file in dir, flattens inheritance across
// the set, and validates the result. Any invalid profile fails the whole
// load: a store never serves a partially valid set.
func NewStore(dir string, transforms TransformChecker, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Store{dir: dir, transforms: transforms, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Reload re-reads the profile directory and atomically swaps the snapshot.
// On error the previous snapshot stays in place.
func (s *Store) Reload() error {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return fmt.Errorf("read profile directory: %w", err)
	}

	raw := map[string]*Profile{}
	var errs error
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.dir, e.Name()))
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		p, err := Parse(data)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("%s: %w", e.Name(), err))
			continue
		}
		if _, dup := raw[p.Name]; dup {
			errs = multierr.Append(errs, fmt.Errorf("%s: duplicate profile name %q", e.Name(), p.Name))
			continue
		}
		raw[p.Name] = p
	}
	if errs != nil {
		return errs
	}

	lookup := func(name string) (*Profile, bool) {
		p, ok := raw[name]
		return p, ok
	}
	flat := make(map[string]*Profile, len(raw))
	for name, p := range raw {
		f, err := Flatten(p, lookup)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := Validate(f, s.transforms); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		flat[name] = f
	}
	if errs != nil {
		return errs
	}

	s.snap.Store(&flat)
	s.logger.Info("profiles loaded", zap.Int("count", len(flat)), zap.String("dir", s.dir))
	return nil
}

// Get returns the flattened profile with the given name.
func (s *Store) Get(name string) (*Profile, bool) {
	p, ok := (*s.snap.Load())[name]
	return p, ok
}

// ByCase returns the profile declaring the given parse case, preferring an
// exact file-type match. Selection is deterministic under ties (name
// order).
func (s *Store) ByCase(caseID string, format document.Format) (*Profile, bool) {
	var candidates []*Profile
	for _, p := range *s.snap.Load() {
		if p.Case == caseID && (p.FileType == format || format == "") {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].Name < candidates[j].Name })
	return candidates[0], true
}

// Names returns every loaded profile name, sorted.
func (s *Store) Names() []string {
	snap := *s.snap.Load()
	names := make([]string, 0, len(snap))
	for n := range snap {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Watch starts reloading the store whenever the profile directory
// changes, until ctx is cancelled. The directory is registered with the
// watcher before Watch returns, so a change made after a successful
// return is never missed. A reload failure keeps the previous snapshot
// and is logged, never fatal.
func (s *Store) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Add(s.dir); err != nil {
		w.Close()
		return fmt.Errorf("watch %s: %w", s.dir, err)
	}
	go s.watchLoop(ctx, w)
	return nil
}

func (s *Store) watchLoop(ctx context.Context, w *fsnotify.Watcher) {
	defer w.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("profile reload failed, keeping previous set",
					zap.String("event", ev.String()), zap.Error(err))
			}
		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			s.logger.Warn("profile watcher error", zap.Error(err))
		}
	}
}
