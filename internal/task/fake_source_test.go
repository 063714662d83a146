package task

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"mp3fetch/internal/acquire"
)

// fakeSource scripts Probe results and writes small files on Acquire.
type fakeSource struct {
	mu       sync.Mutex
	metadata map[string]acquire.Metadata
	failURLs map[string]bool
	// outputName overrides the file name written by Acquire.
	outputName func(req acquire.Request) string
	panicOn    string
	gate       chan struct{}

	acquireCalls atomic.Int32
	running      atomic.Int32
	maxRunning   atomic.Int32
	// per source URL, guarded by mu
	inFlight     map[string]int
	peakInFlight map[string]int
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		metadata: make(map[string]acquire.Metadata),
		failURLs: make(map[string]bool),

		inFlight:     make(map[string]int),
		peakInFlight: make(map[string]int),
	}
}

func (f *fakeSource) peakFor(ref string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peakInFlight[ref]
}

func (f *fakeSource) enter(ref string) func() {
	f.mu.Lock()
	f.inFlight[ref]++
	if f.inFlight[ref] > f.peakInFlight[ref] {
		f.peakInFlight[ref] = f.inFlight[ref]
	}
	f.mu.Unlock()
	return func() {
		f.mu.Lock()
		f.inFlight[ref]--
		f.mu.Unlock()
	}
}

func (f *fakeSource) add(ref string, md acquire.Metadata) {
	f.mu.Lock()
	f.metadata[ref] = md
	f.mu.Unlock()
}

func (f *fakeSource) Probe(_ context.Context, ref string) (acquire.Metadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	md, ok := f.metadata[ref]
	if !ok {
		return acquire.Metadata{}, errors.New("unsupported source")
	}
	return md, nil
}

func (f *fakeSource) Acquire(ctx context.Context, req acquire.Request, onProgress func(acquire.Event)) (string, error) {
	f.acquireCalls.Add(1)
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.maxRunning.Load()
		if n <= peak || f.maxRunning.CompareAndSwap(peak, n) {
			break
		}
	}
	defer f.enter(req.SourceURL)()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if req.SourceURL == f.panicOn {
		panic("extractor exploded")
	}

	for _, done := range []int64{0, 250, 500, 1000} {
		onProgress(acquire.Event{DownloadedBytes: done, TotalBytes: 1000, Speed: 1024})
	}
	f.mu.Lock()
	fail := f.failURLs[req.SourceURL]
	f.mu.Unlock()
	if fail {
		return "", errors.New("HTTP Error 403: Forbidden")
	}
	onProgress(acquire.Event{DownloadedBytes: 1000, TotalBytes: 1000, Finished: true})

	reported := filepath.Join(req.Dir, req.BaseName+".mp3")
	name := req.BaseName + ".mp3"
	if f.outputName != nil {
		name = f.outputName(req)
	}
	if name == "" {
		return reported, nil
	}
	if err := os.WriteFile(filepath.Join(req.Dir, name), []byte(req.SourceURL), 0o600); err != nil {
		return "", err
	}
	return reported, nil
}

// flakyStore fails exactly the failAt-th Update and delegates the rest.
type flakyStore struct {
	Store
	failAt  int32
	updates atomic.Int32
}

func (s *flakyStore) Update(ctx context.Context, rec Task) error {
	if s.updates.Add(1) == s.failAt {
		return errors.New("redis: connection refused")
	}
	return s.Store.Update(ctx, rec)
}
