package recovery

import (
	"context"
	"sort"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const RedisRegistrationsKey = "notebook-runtime:recovery:registrations"

// RedisStorage keeps the registrations in a Redis hash keyed by group id.
type RedisStorage struct {
	*baseStorage

	addr          string
	password      string
	databaseIndex int

	redisClient *redis.Client
}

func NewRedisStorage(addr string, password string, databaseIndex int) *RedisStorage {
	if addr == "" {
		addr = "localhost:6379"
	}

	return &RedisStorage{
		baseStorage:   newBaseStorage(),
		addr:          addr,
		password:      password,
		databaseIndex: databaseIndex,
	}
}

func (s *RedisStorage) Connect(ctx context.Context) error {
	s.status = Connecting

	s.redisClient = redis.NewClient(&redis.Options{
		Addr:     s.addr,
		Password: s.password,
		DB:       s.databaseIndex,
	})

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		s.logger.Error("Failed to connect to Redis.", zap.String("addr", s.addr), zap.Error(err))
		s.status = Disconnected
		return errors.Wrapf(err, "failed to connect to redis at %s", s.addr)
	}

	s.status = Connected
	s.logger.Debug("Connected to Redis recovery storage.", zap.String("addr", s.addr), zap.Int("db", s.databaseIndex))
	return nil
}

func (s *RedisStorage) Close() error {
	s.status = Disconnected
	if s.redisClient == nil {
		return nil
	}

	return s.redisClient.Close()
}

func (s *RedisStorage) Save(ctx context.Context, reg Registration) error {
	data, err := json.Marshal(reg)
	if err != nil {
		return errors.Wrap(err, "failed to serialize registration")
	}

	if err = s.redisClient.HSet(ctx, RedisRegistrationsKey, reg.GroupId, data).Err(); err != nil {
		s.logger.Error("Failed to save registration.", zap.String("group_id", reg.GroupId), zap.Error(err))
		return errors.Wrapf(err, "failed to save registration of group %s", reg.GroupId)
	}
	return nil
}

func (s *RedisStorage) Remove(ctx context.Context, groupId string) error {
	if err := s.redisClient.HDel(ctx, RedisRegistrationsKey, groupId).Err(); err != nil {
		s.logger.Error("Failed to remove registration.", zap.String("group_id", groupId), zap.Error(err))
		return errors.Wrapf(err, "failed to remove registration of group %s", groupId)
	}
	return nil
}

func (s *RedisStorage) LoadAll(ctx context.Context) ([]Registration, error) {
	entries, err := s.redisClient.HGetAll(ctx, RedisRegistrationsKey).Result()
	if err != nil {
		s.logger.Error("Failed to load registrations.", zap.Error(err))
		return nil, errors.Wrap(err, "failed to load registrations")
	}

	registrations := make([]Registration, 0, len(entries))
	for groupId, data := range entries {
		var reg Registration
		if err = json.Unmarshal([]byte(data), &reg); err != nil {
			s.logger.Warn("Skipping unreadable registration.", zap.String("group_id", groupId), zap.Error(err))
			continue
		}
		registrations = append(registrations, reg)
	}

	sort.Slice(registrations, func(i, j int) bool {
		return registrations[i].GroupId < registrations[j].GroupId
	})
	return registrations, nil
}
