package recovery

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const RegistrationsFileName = "registrations.json"

// FileStorage keeps all registrations in a single JSON file that is rewritten atomically on every change.
type FileStorage struct {
	*baseStorage

	dir string

	mu            sync.Mutex
	registrations map[string]Registration
}

func NewFileStorage(dir string) *FileStorage {
	return &FileStorage{
		baseStorage:   newBaseStorage(),
		dir:           dir,
		registrations: make(map[string]Registration),
	}
}

func (s *FileStorage) path() string {
	return filepath.Join(s.dir, RegistrationsFileName)
}

// Connect creates the storage directory and reads the existing registrations, if any.
func (s *FileStorage) Connect(_ context.Context) error {
	s.status = Connecting

	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		s.status = Disconnected
		return errors.Wrapf(err, "failed to create recovery directory \"%s\"", s.dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path())
	switch {
	case os.IsNotExist(err):
		s.registrations = make(map[string]Registration)
	case err != nil:
		s.status = Disconnected
		return errors.Wrapf(err, "failed to read \"%s\"", s.path())
	default:
		registrations := make(map[string]Registration)
		if err = json.Unmarshal(data, &registrations); err != nil {
			s.logger.Warn("Discarding unreadable recovery file.", zap.String("path", s.path()), zap.Error(err))
		}
		s.registrations = registrations
	}

	s.status = Connected
	s.logger.Debug("Connected to file recovery storage.",
		zap.String("path", s.path()),
		zap.Int("num_registrations", len(s.registrations)))
	return nil
}

func (s *FileStorage) Close() error {
	s.status = Disconnected
	return nil
}

func (s *FileStorage) Save(_ context.Context, reg Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.registrations[reg.GroupId] = reg
	return s.flush()
}

func (s *FileStorage) Remove(_ context.Context, groupId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registrations[groupId]; !ok {
		return nil
	}

	delete(s.registrations, groupId)
	return s.flush()
}

func (s *FileStorage) LoadAll(_ context.Context) ([]Registration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	registrations := make([]Registration, 0, len(s.registrations))
	for _, reg := range s.registrations {
		registrations = append(registrations, reg)
	}
	sort.Slice(registrations, func(i, j int) bool {
		return registrations[i].GroupId < registrations[j].GroupId
	})
	return registrations, nil
}

// flush writes the registrations to a temporary file and renames it over the registrations file.
// s.mu must be held.
func (s *FileStorage) flush() error {
	data, err := json.MarshalIndent(s.registrations, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to serialize registrations")
	}

	tmp, err := os.CreateTemp(s.dir, RegistrationsFileName+".*")
	if err != nil {
		return errors.Wrap(err, "failed to create temporary recovery file")
	}

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "failed to write temporary recovery file")
	}
	if err = tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "failed to close temporary recovery file")
	}

	if err = os.Rename(tmp.Name(), s.path()); err != nil {
		s.logger.Error("Failed to replace recovery file.", zap.String("path", s.path()), zap.Error(err))
		return errors.Wrapf(err, "failed to replace \"%s\"", s.path())
	}
	return nil
}
