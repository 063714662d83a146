package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"mp3fetch/internal/acquire"
	"mp3fetch/internal/config"
	"mp3fetch/internal/events"
	fileutil "mp3fetch/internal/file"
	"mp3fetch/internal/task"
)

// runtime holds everything a command needs and must release.
type runtime struct {
	manager   *task.Manager
	publisher events.Publisher
	closers   []func() error
}

func (r *runtime) Close() {
	for _, closeFn := range r.closers {
		if err := closeFn(); err != nil {
			log.Warn().Err(err).Msg("close failed")
		}
	}
}

func newSource(cfg config.Config) *acquire.YTDLP {
	return acquire.NewYTDLP(acquire.Options{
		AudioFormat:      cfg.Acquire.AudioFormat,
		AudioQuality:     cfg.Acquire.AudioQuality,
		ProgressInterval: cfg.Acquire.ProgressInterval,
		CollectionLimit:  cfg.Acquire.CollectionLimit,
		NativePlaylist:   cfg.Acquire.NativePlaylist,
	})
}

func newStore(ctx context.Context, cfg config.Config) (task.Store, func() error, error) {
	switch cfg.Store.Backend {
	case config.StoreFile:
		return task.NewFileStore(cfg.DataDir), nil, nil
	case config.StoreRedis:
		store, err := task.NewRedisStore(ctx, task.RedisOptions{
			Addr:     cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			TTL:      cfg.Store.Retention,
		})
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return task.NewMemoryStore(), nil, nil
	}
}

func buildRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	if err := fileutil.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("ensure data dir: %w", err)
	}

	rt := &runtime{}
	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if closeStore != nil {
		rt.closers = append(rt.closers, closeStore)
	}

	rt.publisher = events.New(events.Config{Brokers: cfg.Events.Brokers, Topic: cfg.Events.Topic})
	rt.closers = append(rt.closers, rt.publisher.Close)

	source := newSource(cfg)
	rt.manager = task.NewManager(source, task.Options{
		DataDir:            cfg.DataDir,
		MaxConcurrentTasks: cfg.MaxConcurrentTasks,
		CollectionWorkers:  cfg.CollectionWorkers,
		ProbeTimeout:       cfg.Acquire.ProbeTimeout,
		Extension:          source.Extension(),
		Store:              store,
		Publisher:          rt.publisher,
	})

	if n, err := rt.manager.Recover(ctx); err != nil {
		log.Warn().Err(err).Msg("recover tasks failed")
	} else if n > 0 {
		log.Info().Int("tasks", n).Msg("marked interrupted tasks as failed")
	}
	log.Info().
		Str("store", cfg.Store.Backend).
		Str("data_dir", cfg.DataDir).
		Int("max_concurrent_tasks", cfg.MaxConcurrentTasks).
		Int("collection_workers", cfg.CollectionWorkers).
		Bool("events", len(cfg.Events.Brokers) > 0).
		Msg("task manager ready")
	return rt, nil
}
