package reconcile

import "context"

// Trigger requests a reconcile pass. Safe from any goroutine.
// Returns false once the loop has stopped.
func (r *Reconciler) Trigger(t Trigger) bool {
	return r.queue.Enqueue(t)
}

// Run processes triggers until ctx is cancelled or Stop is called.
// Must be called from exactly one goroutine.
//
// A failed pass is logged and the loop continues; the actions it could not
// deliver wait for the next trigger.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info("reconciler starting")

	for {
		if t, ok := r.queue.TryDequeue(); ok {
			r.process(ctx, t)
			continue
		}

		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()

		case <-r.queue.Wait():
			// The signal channel is closed by Stop.
			if r.queue.Len() == 0 && r.stopped() {
				r.logger.Info("reconciler stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop makes Run return once waiting triggers are drained.
func (r *Reconciler) Stop() {
	r.queue.Close()
}

func (r *Reconciler) stopped() bool {
	r.queue.mu.Lock()
	defer r.queue.mu.Unlock()
	return r.queue.closed
}

func (r *Reconciler) process(ctx context.Context, t Trigger) {
	var (
		report Report
		err    error
	)
	if t.Tag != "" {
		report, err = r.HandleSyncEvent(ctx, t.Tag)
	} else {
		report, err = r.Reconcile(ctx)
	}

	attrs := []any{
		"reason", t.Reason,
		"tag", t.Tag,
		"replayed", report.Replayed(),
		"failed", report.Failed(),
	}
	if err != nil {
		r.logger.Warn("reconcile pass incomplete", append(attrs, "error", err)...)
	} else {
		r.logger.Info("reconcile pass complete", attrs...)
	}

	if r.onReport != nil {
		r.onReport(t, report, err)
	}
}
