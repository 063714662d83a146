package task

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mp3fetch/internal/acquire"
)

// tracker is the single writer of one task record. Every mutation happens on
// a private copy under mu and is written to the store as a whole value.
type tracker struct {
	mu        sync.Mutex
	ctx       context.Context
	store     Store
	rec       Task
	fractions []float64
	// storeErr is the first failed write; pipelines check it at their
	// checkpoints since progress callbacks cannot return errors.
	storeErr error
}

func newTracker(ctx context.Context, store Store, rec Task) *tracker {
	tr := &tracker{
		ctx:   context.WithoutCancel(ctx),
		store: store,
		rec:   rec.Clone(),
	}
	if rec.Items != nil {
		tr.fractions = make([]float64, rec.Items.Total)
	}
	return tr
}

func (tr *tracker) snapshot() Task {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.rec.Clone()
}

// apply runs fn on the record and persists it. The record is left untouched
// once it reached a terminal status.
func (tr *tracker) apply(fn func(rec *Task)) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.rec.Status.IsTerminal() {
		return ErrTerminal
	}
	fn(&tr.rec)
	tr.rec.UpdatedAt = time.Now().UTC()
	if err := tr.store.Update(tr.ctx, tr.rec.Clone()); err != nil {
		log.Warn().Str("task_id", tr.rec.ID).Err(err).Msg("persist task failed")
		storeErr := NewError(ErrStore, "persist task", err)
		if tr.storeErr == nil {
			tr.storeErr = storeErr
		}
		return storeErr
	}
	return nil
}

// storeFailure returns the first store error seen by any write, if any.
func (tr *tracker) storeFailure() error {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	return tr.storeErr
}

func (tr *tracker) setStatus(status Status) error {
	return tr.apply(func(rec *Task) { rec.Status = status })
}

func raise(rec *Task, percent float64) {
	if percent > rec.Progress {
		rec.Progress = percent
	}
}

// progress records an event of a single-item task.
func (tr *tracker) progress(ev acquire.Event) {
	p, ok := Aggregate(ev, Slot{})
	if !ok {
		return
	}
	_ = tr.apply(func(rec *Task) {
		rec.Status = p.Status
		rec.Transfer = p.Transfer
		raise(rec, p.Percent)
	})
}

func (tr *tracker) itemStarted(title string) {
	_ = tr.apply(func(rec *Task) {
		rec.CurrentItemTitle = title
		if rec.Status == StatusStarting {
			rec.Status = StatusDownloading
		}
	})
}

// itemProgress records an event of collection member index (1-based).
func (tr *tracker) itemProgress(index int, ev acquire.Event) {
	fraction, ok := itemFraction(ev)
	if !ok {
		return
	}
	_ = tr.apply(func(rec *Task) {
		if i := index - 1; i >= 0 && i < len(tr.fractions) && fraction > tr.fractions[i] {
			tr.fractions[i] = fraction
		}
		if ev.Finished {
			rec.Status = StatusConverting
		} else {
			rec.Status = StatusDownloading
		}
		rec.Transfer = transferOf(ev)
		raise(rec, slotProgress(tr.fractions))
	})
}

// itemDone records the terminal outcome of collection member index.
func (tr *tracker) itemDone(index int, succeeded bool) {
	_ = tr.apply(func(rec *Task) {
		if i := index - 1; i >= 0 && i < len(tr.fractions) {
			tr.fractions[i] = 1
		}
		if rec.Items != nil && rec.Items.Completed < rec.Items.Total {
			rec.Items.Completed++
			if succeeded {
				rec.Items.Succeeded++
			} else {
				rec.Items.Failed++
			}
		}
		raise(rec, slotProgress(tr.fractions))
	})
}

func (tr *tracker) complete(artifactPath, artifactName string) error {
	return tr.apply(func(rec *Task) {
		rec.Status = StatusCompleted
		rec.Progress = 100
		rec.ResultArtifact = artifactPath
		rec.ArtifactName = artifactName
		rec.CurrentItemTitle = ""
		rec.Transfer = nil
	})
}

func (tr *tracker) fail(err error) error {
	kind, msg := KindOf(err), err.Error()
	return tr.apply(func(rec *Task) {
		rec.Status = StatusFailed
		rec.ErrorKind = kind
		rec.ErrorMessage = msg
		rec.CurrentItemTitle = ""
		rec.Transfer = nil
	})
}
