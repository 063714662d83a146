package task

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mp3fetch/internal/acquire"
	"mp3fetch/internal/events"
	fileutil "mp3fetch/internal/file"
)

// Manager accepts download requests, runs their pipelines in the background
// and exposes the resulting task records.
type Manager struct {
	mu        sync.RWMutex
	opts      Options
	store     Store
	source    acquire.Source
	publisher events.Publisher
	semaphore chan struct{}
	// artifacts guards each destination path while a pipeline produces it.
	artifacts keyedLocks
	workersWG sync.WaitGroup
	baseCtx   context.Context
}

// NewManager creates a manager; zero options fall back to defaults and a
// memory store.
func NewManager(source acquire.Source, opts Options) *Manager {
	if opts.DataDir == "" {
		opts.DataDir = "downloads"
	}
	if opts.MaxConcurrentTasks <= 0 {
		opts.MaxConcurrentTasks = defaultMaxConcurrent
	}
	if opts.CollectionWorkers <= 0 {
		opts.CollectionWorkers = defaultCollectionWorkers
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = defaultProbeTimeout
	}
	if opts.Extension == "" {
		opts.Extension = defaultExtension
	}
	if !strings.HasPrefix(opts.Extension, ".") {
		opts.Extension = "." + opts.Extension
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	return &Manager{
		opts:      opts,
		store:     opts.Store,
		source:    source,
		publisher: opts.Publisher,
		semaphore: make(chan struct{}, opts.MaxConcurrentTasks),
		baseCtx:   context.Background(),
	}
}

// IsBusy reports whether every pipeline slot is taken.
func (m *Manager) IsBusy() bool {
	return len(m.semaphore) >= cap(m.semaphore)
}

// Submit classifies ref and starts its pipeline in the background. Errors
// are returned synchronously and leave no task record behind.
func (m *Manager) Submit(ctx context.Context, ref string) (Submission, error) {
	md, err := m.probe(ctx, ref)
	if err != nil {
		return Submission{}, NewError(ErrClassification, "could not classify source", err)
	}
	if md.IsCollection && len(md.Entries) == 0 {
		return Submission{}, NewError(ErrClassification, "collection has no items", nil)
	}

	now := time.Now().UTC()
	rec := Task{
		ID:        uuid.NewString(),
		Kind:      KindSingle,
		Status:    StatusStarting,
		Title:     md.Title,
		SourceURL: strings.TrimSpace(ref),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if md.IsCollection {
		rec.Kind = KindCollection
		rec.Items = &ItemCounts{Total: len(md.Entries)}
	}
	if err := m.store.Create(ctx, rec); err != nil {
		return Submission{}, NewError(ErrStore, "create task", err)
	}

	log.Info().Str("task_id", rec.ID).Str("kind", string(rec.Kind)).Str("title", rec.Title).Msg("task submitted")
	m.emit(events.TypeSubmitted, rec)

	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		m.run(rec, md)
	}()

	sub := Submission{
		TaskID:       rec.ID,
		IsCollection: md.IsCollection,
		Title:        rec.Title,
		Status:       rec.Status,
	}
	if rec.Items != nil {
		sub.ItemsTotal = rec.Items.Total
	}
	return sub, nil
}

// Probe returns source metadata without creating a task.
func (m *Manager) Probe(ctx context.Context, ref string) (acquire.Metadata, error) {
	md, err := m.probe(ctx, ref)
	if err != nil {
		return acquire.Metadata{}, NewError(ErrProbe, "could not read source", err)
	}
	return md, nil
}

func (m *Manager) probe(ctx context.Context, ref string) (acquire.Metadata, error) {
	ref = strings.TrimSpace(ref)
	if err := validateRef(ref); err != nil {
		return acquire.Metadata{}, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()
	md, err := m.source.Probe(probeCtx, ref)
	if err != nil {
		return acquire.Metadata{}, fmt.Errorf("probe: %w", err)
	}
	return md, nil
}

func validateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("unsupported url %q", ref)
	}
	return nil
}

// GetTask returns a snapshot of the task record.
func (m *Manager) GetTask(ctx context.Context, taskID string) (Task, error) {
	return m.store.Get(ctx, taskID) //nolint:wrapcheck
}

// ArtifactPath returns the local artifact of a completed task.
func (m *Manager) ArtifactPath(ctx context.Context, taskID string) (Task, error) {
	rec, err := m.store.Get(ctx, taskID)
	if err != nil {
		return Task{}, err //nolint:wrapcheck
	}
	if rec.Status != StatusCompleted || rec.ResultArtifact == "" {
		return rec, ErrNotReady
	}
	if !fileutil.Exists(rec.ResultArtifact) {
		return rec, fmt.Errorf("%w: artifact missing on disk", ErrNotReady)
	}
	return rec, nil
}

func (m *Manager) run(rec Task, md acquire.Metadata) {
	ctx := m.baseContext()
	tr := newTracker(ctx, m.store, rec)

	select {
	case m.semaphore <- struct{}{}:
	case <-ctx.Done():
		m.finish(tr, NewError(ErrInternal, "shutting down", ctx.Err()))
		return
	}
	defer func() { <-m.semaphore }()

	m.finish(tr, m.runPipeline(ctx, tr, md))
}

func (m *Manager) runPipeline(ctx context.Context, tr *tracker, md acquire.Metadata) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrInternal, fmt.Sprintf("pipeline panic: %v", r), nil)
		}
	}()
	if md.IsCollection {
		return m.runCollection(ctx, tr, md)
	}
	return m.runSingle(ctx, tr, md)
}

func (m *Manager) finish(tr *tracker, err error) {
	if err != nil {
		if failErr := tr.fail(err); failErr != nil {
			log.Warn().Str("task_id", tr.rec.ID).Err(failErr).Msg("mark task failed")
		}
	}
	final := tr.snapshot()
	switch final.Status {
	case StatusCompleted:
		log.Info().Str("task_id", final.ID).Str("artifact", final.ResultArtifact).Msg("task completed")
		m.emit(events.TypeCompleted, final)
	case StatusFailed:
		log.Error().Str("task_id", final.ID).Str("error_kind", string(final.ErrorKind)).Str("error", final.ErrorMessage).Msg("task failed")
		m.emit(events.TypeFailed, final)
	}
}

func (m *Manager) emit(typ events.Type, rec Task) {
	ev := events.Event{
		Type:         typ,
		TaskID:       rec.ID,
		Kind:         string(rec.Kind),
		Title:        rec.Title,
		SourceURL:    rec.SourceURL,
		Artifact:     rec.ArtifactName,
		ErrorKind:    string(rec.ErrorKind),
		ErrorMessage: rec.ErrorMessage,
		At:           time.Now().UTC(),
	}
	if rec.Items != nil {
		ev.ItemsTotal = rec.Items.Total
	}
	m.workersWG.Add(1)
	go func() {
		defer m.workersWG.Done()
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()
		if err := m.publisher.Publish(ctx, ev); err != nil {
			log.Warn().Str("task_id", ev.TaskID).Str("event", string(ev.Type)).Err(err).Msg("publish event failed")
		}
	}()
}

// SetBaseContext sets the context that bounds every pipeline. Intended to be
// set at process startup and cancelled during shutdown.
func (m *Manager) SetBaseContext(ctx context.Context) {
	m.mu.Lock()
	m.baseCtx = ctx
	m.mu.Unlock()
}

func (m *Manager) baseContext() context.Context {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.baseCtx == nil {
		return context.Background()
	}
	return m.baseCtx
}

// WaitAll blocks until all in-flight pipelines finish or the context is done.
// Returns true if all workers finished, false if timed out.
func (m *Manager) WaitAll(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		m.workersWG.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
