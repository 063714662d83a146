package task

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
)

const interruptedMessage = "interrupted by restart"

// Recover marks tasks left unfinished by a previous process as failed and
// removes their work areas. It returns the number of tasks touched.
func (m *Manager) Recover(ctx context.Context) (int, error) {
	tasks, err := m.store.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("load tasks: %w", err)
	}
	recovered := 0
	for _, t := range tasks {
		if t.Status.IsTerminal() {
			continue
		}
		t.Status = StatusFailed
		t.ErrorKind = ErrInternal
		t.ErrorMessage = interruptedMessage
		t.CurrentItemTitle = ""
		t.Transfer = nil
		t.UpdatedAt = time.Now().UTC()
		if err := m.store.Update(ctx, t); err != nil {
			log.Warn().Str("task_id", t.ID).Err(err).Msg("mark interrupted task failed")
			continue
		}
		_ = os.RemoveAll(filepath.Join(m.opts.DataDir, workDirName, t.ID))
		recovered++
	}
	return recovered, nil
}
