package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "task:"

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	// TTL applied on every write; zero keeps records forever.
	TTL time.Duration
}

// RedisStore keeps JSON records at task:<id>, shared across processes.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redis and verifies the connection with a ping.
func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{client: client, ttl: opts.TTL}, nil
}

func taskKey(id string) string { return redisKeyPrefix + id }

func (s *RedisStore) Create(ctx context.Context, t Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	created, err := s.client.SetNX(ctx, taskKey(t.ID), b, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis create: %w", err)
	}
	if !created {
		return ErrTaskExists
	}
	return nil
}

func (s *RedisStore) Update(ctx context.Context, t Task) error {
	b, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}
	updated, err := s.client.SetXX(ctx, taskKey(t.ID), b, s.ttl).Result()
	if err != nil {
		return fmt.Errorf("redis update: %w", err)
	}
	if !updated {
		return ErrTaskNotFound
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) (Task, error) {
	b, err := s.client.Get(ctx, taskKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Task{}, ErrTaskNotFound
	}
	if err != nil {
		return Task{}, fmt.Errorf("redis get: %w", err)
	}
	var t Task
	if err := json.Unmarshal(b, &t); err != nil {
		return Task{}, fmt.Errorf("decode task %s: %w", id, err)
	}
	return t, nil
}

func (s *RedisStore) List(ctx context.Context) ([]Task, error) {
	var tasks []Task
	iter := s.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		id := iter.Val()[len(redisKeyPrefix):]
		t, err := s.Get(ctx, id)
		if errors.Is(err, ErrTaskNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sortByCreated(tasks)
	return tasks, nil
}

func (s *RedisStore) Close() error {
	return s.client.Close() //nolint:wrapcheck
}
