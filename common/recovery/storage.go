package recovery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
)

const (
	Connected    ConnectionStatus = "CONNECTED"
	Connecting   ConnectionStatus = "CONNECTING"
	Disconnected ConnectionStatus = "DISCONNECTED"

	KindNone  = "none"
	KindFile  = "file"
	KindRedis = "redis"
)

var (
	ErrUnknownStorageKind = errors.New("unknown recovery storage kind")
)

// ConnectionStatus indicates the status of the connection with the storage backend.
type ConnectionStatus string

// Registration records that a worker process is serving an interpreter group.
type Registration struct {
	GroupId      string    `json:"groupId"`
	SettingName  string    `json:"settingName"`
	Host         string    `json:"host"`
	Pid          int32     `json:"pid"`
	RegisteredAt time.Time `json:"registeredAt"`
}

// Storage persists the registrations of live worker processes, so that a restarted server can re-attach to
// workers that survived it.
type Storage interface {
	Connect(ctx context.Context) error

	Close() error

	// ConnectionStatus returns the current ConnectionStatus of the Storage.
	ConnectionStatus() ConnectionStatus

	// Save stores reg, replacing any registration of the same group.
	Save(ctx context.Context, reg Registration) error

	// Remove deletes the registration of the given group. Removing an unknown group is not an error.
	Remove(ctx context.Context, groupId string) error

	// LoadAll returns every stored registration.
	LoadAll(ctx context.Context) ([]Registration, error)
}

// Options configures the Storage returned by NewStorage.
type Options struct {
	Kind          string
	Dir           string
	RedisAddr     string
	RedisPassword string
	RedisDatabase int
}

// NewStorage creates the Storage of the given kind. It does not connect it.
func NewStorage(opts Options) (Storage, error) {
	switch opts.Kind {
	case "", KindNone:
		return NewNoopStorage(), nil
	case KindFile:
		return NewFileStorage(opts.Dir), nil
	case KindRedis:
		return NewRedisStorage(opts.RedisAddr, opts.RedisPassword, opts.RedisDatabase), nil
	default:
		return nil, fmt.Errorf("%w: \"%s\"", ErrUnknownStorageKind, opts.Kind)
	}
}

type baseStorage struct {
	logger        *zap.Logger
	sugaredLogger *zap.SugaredLogger

	status ConnectionStatus
}

func newBaseStorage() *baseStorage {
	storage := &baseStorage{
		status: Disconnected,
	}

	logger, err := zap.NewDevelopment()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "[ERROR] Failed to create Zap Development logger because: %v\n", err)
		logger = zap.NewNop()
	}
	storage.logger = logger
	storage.sugaredLogger = logger.Sugar()

	return storage
}

// ConnectionStatus returns the current ConnectionStatus of the Storage.
func (s *baseStorage) ConnectionStatus() ConnectionStatus {
	return s.status
}

// NoopStorage forgets everything. It is used when recovery is disabled.
type NoopStorage struct {
	*baseStorage
}

func NewNoopStorage() *NoopStorage {
	return &NoopStorage{baseStorage: &baseStorage{status: Disconnected, logger: zap.NewNop()}}
}

func (s *NoopStorage) Connect(context.Context) error {
	s.status = Connected
	return nil
}

func (s *NoopStorage) Close() error {
	s.status = Disconnected
	return nil
}

func (s *NoopStorage) Save(context.Context, Registration) error {
	return nil
}

func (s *NoopStorage) Remove(context.Context, string) error {
	return nil
}

func (s *NoopStorage) LoadAll(context.Context) ([]Registration, error) {
	return nil, nil
}
