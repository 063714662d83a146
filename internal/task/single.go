package task

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"

	"mp3fetch/internal/acquire"
	fileutil "mp3fetch/internal/file"
)

func (m *Manager) runSingle(ctx context.Context, tr *tracker, md acquire.Metadata) error {
	rec := tr.snapshot()
	root := m.opts.DataDir
	if err := fileutil.EnsureDir(root); err != nil {
		return NewError(ErrInternal, "create data dir", err)
	}

	safe := safeName(md.Title, "audio-"+shortID(rec.ID))
	target := filepath.Join(root, safe+m.opts.Extension)

	// A second task for the same artifact waits here and then takes the
	// existing-file path below.
	unlock, err := m.artifacts.lock(ctx, target)
	if err != nil {
		return NewError(ErrInternal, "wait for artifact", err)
	}
	defer unlock()

	if fileutil.Exists(target) {
		log.Info().Str("task_id", rec.ID).Str("path", target).Msg("artifact already present, skipping download")
		return tr.complete(target, filepath.Base(target))
	}

	staging := filepath.Join(root, workDirName, rec.ID)
	if err := fileutil.EnsureDir(staging); err != nil {
		return NewError(ErrInternal, "create work dir", err)
	}
	defer func() {
		if err := os.RemoveAll(staging); err != nil {
			log.Warn().Str("task_id", rec.ID).Err(err).Msg("remove work dir failed")
		}
	}()

	if err := tr.setStatus(StatusDownloading); err != nil {
		return err
	}
	started := time.Now()
	reported, err := m.source.Acquire(ctx, acquire.Request{
		SourceURL: rec.SourceURL,
		Dir:       staging,
		BaseName:  safe,
	}, tr.progress)
	if err != nil {
		return NewError(ErrAcquisition, "download failed", err)
	}
	if err := tr.storeFailure(); err != nil {
		return err
	}

	out, err := reconcileOutput(staging, safe, m.opts.Extension, reported, started)
	if err != nil {
		return NewError(ErrOutputNotFound, "converted file not found", err)
	}
	if filepath.Dir(out) != filepath.Clean(staging) {
		return NewError(ErrOutputNotFound, "converted file not found",
			fmt.Errorf("%s is outside the task work dir", out))
	}
	log.Debug().Str("task_id", rec.ID).Str("from", out).Str("to", target).Msg("moving output into place")
	if err := fileutil.Move(out, target); err != nil {
		return NewError(ErrInternal, "move output", err)
	}
	return tr.complete(target, filepath.Base(target))
}

// reconcileOutput returns the file an acquisition actually produced: the
// reported path when it exists, otherwise the best match in dir.
func reconcileOutput(dir, base, ext, reported string, since time.Time) (string, error) {
	if reported != "" && fileutil.Exists(reported) {
		return reported, nil
	}
	out, err := fileutil.LocateOutput(dir, base, ext, since)
	if err != nil {
		if errors.Is(err, fileutil.ErrOutputNotFound) {
			return "", fmt.Errorf("%s%s: %w", base, ext, err)
		}
		return "", err //nolint:wrapcheck
	}
	return out, nil
}

func safeName(title, fallback string) string {
	if safe := fileutil.Sanitize(title); safe != "" {
		return safe
	}
	return fallback
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
