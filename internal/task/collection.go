package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/rs/zerolog/log"

	"mp3fetch/internal/acquire"
	"mp3fetch/internal/archive"
	fileutil "mp3fetch/internal/file"
)

type itemResult struct {
	ok    bool
	path  string
	title string
}

func (m *Manager) runCollection(ctx context.Context, tr *tracker, md acquire.Metadata) error {
	rec := tr.snapshot()
	root := m.opts.DataDir
	workDir := filepath.Join(root, workDirName, rec.ID)
	if err := fileutil.EnsureDir(workDir); err != nil {
		return NewError(ErrInternal, "create work dir", err)
	}
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			log.Warn().Str("task_id", rec.ID).Err(err).Msg("remove work dir failed")
		}
	}()

	if err := tr.setStatus(StatusDownloading); err != nil {
		return err
	}

	pool, err := ants.NewPool(m.opts.CollectionWorkers, ants.WithPanicHandler(func(p any) {
		log.Error().Str("task_id", rec.ID).Interface("panic", p).Msg("collection worker panicked")
	}))
	if err != nil {
		return NewError(ErrInternal, "create worker pool", err)
	}
	defer pool.Release()

	results := make([]itemResult, len(md.Entries))
	var wg sync.WaitGroup
	for i, entry := range md.Entries {
		index := i + 1
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			results[index-1] = m.runItem(ctx, tr, workDir, index, entry)
		})
		if submitErr != nil {
			wg.Done()
			log.Warn().Str("task_id", rec.ID).Int("item", index).Err(submitErr).Msg("submit item failed")
			tr.itemDone(index, false)
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return NewError(ErrInternal, "collection cancelled", err)
	}
	if err := tr.storeFailure(); err != nil {
		return err
	}

	entries := make([]archive.Entry, 0, len(results))
	for _, res := range results {
		if res.ok {
			entries = append(entries, archive.Entry{Path: res.path, Name: res.title + m.opts.Extension})
		}
	}
	if len(entries) == 0 {
		return NewError(ErrNoItemsSucceeded, "no items could be downloaded", nil)
	}

	if err := tr.setStatus(StatusConverting); err != nil {
		return err
	}
	dest := filepath.Join(root, safeName(md.Title, "playlist-"+shortID(rec.ID))+archiveExtension)
	unlock, err := m.artifacts.lock(ctx, dest)
	if err != nil {
		return NewError(ErrInternal, "wait for artifact", err)
	}
	defer unlock()
	archiveResults, err := archive.BuildArchive(ctx, dest, entries)
	if err != nil {
		return NewError(ErrInternal, "build archive", err)
	}
	for _, res := range archiveResults {
		if res.Err != "" {
			log.Warn().Str("task_id", rec.ID).Str("entry", res.Filename).Str("error", res.Err).Msg("archive entry skipped")
		}
	}
	log.Info().Str("task_id", rec.ID).Int("items", len(entries)).Str("archive", dest).Msg("archive built")
	return tr.complete(dest, filepath.Base(dest))
}

// runItem downloads one collection member into workDir. Every failure,
// including a panic, is recorded as a skipped item.
func (m *Manager) runItem(ctx context.Context, tr *tracker, workDir string, index int, entry acquire.Entry) (res itemResult) {
	taskID := tr.snapshot().ID
	logger := log.With().Str("task_id", taskID).Int("item", index).Str("url", entry.URL).Logger()
	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("item panicked")
			res = itemResult{}
		}
		tr.itemDone(index, res.ok)
	}()

	if ctx.Err() != nil {
		return itemResult{}
	}

	title := entry.Title
	if title == "" {
		md, err := m.probe(ctx, entry.URL)
		if err != nil {
			logger.Warn().Err(err).Msg("item probe failed, skipping")
			return itemResult{}
		}
		title = md.Title
	}
	prefix := fmt.Sprintf("%03d-", index)
	base := prefix + safeName(title, fmt.Sprintf("item-%d", index))

	tr.itemStarted(title)
	started := time.Now()
	reported, err := m.source.Acquire(ctx, acquire.Request{
		SourceURL: entry.URL,
		Dir:       workDir,
		BaseName:  base,
	}, func(ev acquire.Event) { tr.itemProgress(index, ev) })
	if err != nil {
		logger.Warn().Err(err).Msg("item download failed, skipping")
		return itemResult{}
	}

	out, err := reconcileOutput(workDir, base, m.opts.Extension, reported, started)
	if err == nil && !strings.HasPrefix(filepath.Base(out), prefix) {
		err = fmt.Errorf("%s belongs to another item", filepath.Base(out))
	}
	if err != nil {
		logger.Warn().Err(err).Msg("item output not found, skipping")
		return itemResult{}
	}
	return itemResult{ok: true, path: out, title: title}
}
