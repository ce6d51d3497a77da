package status

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	vserrors "vodsearch/internal/errors"
)

const (
	jobKeyPrefix  = "jobrec:"
	lockKeyPrefix = "job:"
)

// RedisStore persists job state in Redis. Job records and collection
// locks both carry a TTL so crashed jobs cannot wedge a collection
// forever.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis and verifies the connection.
func NewRedisStore(addr string, db int, ttl time.Duration) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, vserrors.New(vserrors.ErrCodeStatusStore,
			fmt.Sprintf("failed to connect to redis at %s", addr), err)
	}

	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

func jobKey(jobID string) string         { return jobKeyPrefix + jobID }
func lockKey(collectionID string) string { return lockKeyPrefix + collectionID }

// AcquireCollection claims the collection lock with SETNX. On conflict
// the current holder's job id is returned alongside ErrConflict.
func (s *RedisStore) AcquireCollection(ctx context.Context, collectionID, jobID string) (string, error) {
	ok, err := s.client.SetNX(ctx, lockKey(collectionID), jobID, s.ttl).Result()
	if err != nil {
		return "", vserrors.New(vserrors.ErrCodeStatusStore, "failed to acquire collection lock", err)
	}
	if !ok {
		holder, err := s.client.Get(ctx, lockKey(collectionID)).Result()
		if err == redis.Nil {
			// Lock expired between SETNX and GET; treat as conflict with
			// unknown holder, the caller retries.
			return "", ErrConflict
		}
		if err != nil {
			return "", vserrors.New(vserrors.ErrCodeStatusStore, "failed to read collection lock", err)
		}
		return holder, ErrConflict
	}
	return jobID, nil
}

// ReleaseCollection drops the lock only when jobID still holds it.
func (s *RedisStore) ReleaseCollection(ctx context.Context, collectionID, jobID string) error {
	// Compare-and-delete so a job that outlived its TTL cannot release a
	// lock now owned by a newer job.
	const script = `
		if redis.call("GET", KEYS[1]) == ARGV[1] then
			return redis.call("DEL", KEYS[1])
		end
		return 0`
	if err := s.client.Eval(ctx, script, []string{lockKey(collectionID)}, jobID).Err(); err != nil {
		return vserrors.New(vserrors.ErrCodeStatusStore, "failed to release collection lock", err)
	}
	return nil
}

func (s *RedisStore) SaveJob(ctx context.Context, job *Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return vserrors.New(vserrors.ErrCodeStatusStore, "failed to encode job", err)
	}
	if err := s.client.Set(ctx, jobKey(job.ID), payload, s.ttl).Err(); err != nil {
		return vserrors.New(vserrors.ErrCodeStatusStore, "failed to save job", err)
	}
	return nil
}

func (s *RedisStore) GetJob(ctx context.Context, jobID string) (*Job, error) {
	payload, err := s.client.Get(ctx, jobKey(jobID)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, vserrors.New(vserrors.ErrCodeStatusStore, "failed to load job", err)
	}
	var job Job
	if err := json.Unmarshal(payload, &job); err != nil {
		return nil, vserrors.New(vserrors.ErrCodeStatusStore, "failed to decode job", err)
	}
	return &job, nil
}

func (s *RedisStore) DeleteJob(ctx context.Context, jobID string) error {
	if err := s.client.Del(ctx, jobKey(jobID)).Err(); err != nil {
		return vserrors.New(vserrors.ErrCodeStatusStore, "failed to delete job", err)
	}
	return nil
}

func (s *RedisStore) JobForCollection(ctx context.Context, collectionID string) (string, error) {
	holder, err := s.client.Get(ctx, lockKey(collectionID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", vserrors.New(vserrors.ErrCodeStatusStore, "failed to read collection lock", err)
	}
	return holder, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
