package interpreter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"
	pkgerrors "github.com/pkg/errors"
)

type settingsFile struct {
	Settings []*Setting `json:"settings"`
}

// SettingsStore holds the interpreter settings defined by a JSON file, and reloads them when the file changes.
type SettingsStore struct {
	log logger.Logger

	path string

	mu       sync.RWMutex
	settings map[string]*Setting
	onChange []func(old *Setting, new *Setting)
}

// NewSettingsStore creates a SettingsStore for the given file. Load must be called before use.
func NewSettingsStore(path string) *SettingsStore {
	store := &SettingsStore{
		path:     path,
		settings: make(map[string]*Setting),
	}
	config.InitLogger(&store.log, store)

	return store
}

// NewStaticSettingsStore creates a SettingsStore holding the given settings and backed by no file.
func NewStaticSettingsStore(settings ...*Setting) (*SettingsStore, error) {
	store := NewSettingsStore("")
	if err := store.Replace(settings); err != nil {
		return nil, err
	}
	return store, nil
}

// OnChange registers a callback invoked for every setting that is modified or removed by a reload.
// new is nil for removed settings.
func (s *SettingsStore) OnChange(callback func(old *Setting, new *Setting)) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.onChange = append(s.onChange, callback)
}

// Load reads the settings file.
func (s *SettingsStore) Load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read interpreter settings from \"%s\"", s.path)
	}

	var file settingsFile
	if err = json.Unmarshal(data, &file); err != nil {
		return pkgerrors.Wrapf(err, "malformed interpreter settings in \"%s\"", s.path)
	}

	return s.Replace(file.Settings)
}

// Replace validates the given settings and installs them in place of the current ones. Nothing is
// replaced if any setting is invalid.
func (s *SettingsStore) Replace(settings []*Setting) error {
	next := make(map[string]*Setting, len(settings))
	for _, setting := range settings {
		if err := setting.Validate(); err != nil {
			return err
		}
		if _, loaded := next[setting.Name]; loaded {
			return fmt.Errorf("%w: duplicate setting \"%s\"", ErrInvalidSetting, setting.Name)
		}
		next[setting.Name] = setting
	}

	s.mu.Lock()
	prev := s.settings
	s.settings = next
	callbacks := s.onChange
	s.mu.Unlock()

	for name, old := range prev {
		updated, ok := next[name]
		if ok && settingsEqual(old, updated) {
			continue
		}
		if !ok {
			updated = nil
		}
		for _, callback := range callbacks {
			callback(old, updated)
		}
	}
	return nil
}

func settingsEqual(a *Setting, b *Setting) bool {
	ja, errA := json.Marshal(a)
	jb, errB := json.Marshal(b)
	return errA == nil && errB == nil && string(ja) == string(jb)
}

func (s *SettingsStore) Get(name string) (*Setting, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	setting, ok := s.settings[name]
	if !ok {
		return nil, fmt.Errorf("%w: \"%s\"", ErrSettingNotFound, name)
	}
	return setting, nil
}

// List returns the settings sorted by name.
func (s *SettingsStore) List() []*Setting {
	s.mu.RLock()
	defer s.mu.RUnlock()

	settings := make([]*Setting, 0, len(s.settings))
	for _, setting := range s.settings {
		settings = append(settings, setting)
	}
	sort.Slice(settings, func(i, j int) bool {
		return settings[i].Name < settings[j].Name
	})
	return settings
}

// Watch reloads the settings whenever the file is written, until ctx is done. A reload that fails
// keeps the previous settings.
func (s *SettingsStore) Watch(ctx context.Context) error {
	if s.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Editors replace files rather than writing them, so the directory is watched.
	if err = watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return err
	}

	target := filepath.Clean(s.path)
	go func() {
		defer watcher.Close()

		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
					continue
				}

				if err := s.Load(); err != nil {
					s.log.Warn("Keeping previous interpreter settings: %v", err)
				} else {
					s.log.Info("Reloaded interpreter settings from \"%s\".", s.path)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				s.log.Error("Error while watching \"%s\": %v", s.path, err)
			}
		}
	}()

	return nil
}
