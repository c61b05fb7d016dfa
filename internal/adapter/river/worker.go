package river

import (
	"context"
	"log/slog"

	"github.com/riverqueue/river"
)

// TransitionWorker processes lifecycle transition jobs from the River queue.
// For now it logs the transition; future versions will dispatch to customer
// notifications (quotation sent, delivery scheduled) and CRM sync.
type TransitionWorker struct {
	river.WorkerDefaults[EventJobArgs]
}

// Work processes a single transition job.
func (w *TransitionWorker) Work(ctx context.Context, job *river.Job[EventJobArgs]) error {
	slog.InfoContext(ctx, "processing transition",
		"entity", job.Args.Entity,
		"entity_id", job.Args.EntityID,
		"transition", job.Args.Transition,
		"job_id", job.ID,
		"attempt", job.Attempt,
	)
	return nil
}
