package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/unclebandit/campaign-dispatcher/internal/queue"
)

// BatchProcessor is the part of the Dispatcher the worker drives.
type BatchProcessor interface {
	ProcessDue(ctx context.Context, batchSize int) (DispatchResult, error)
}

// Worker serializes dispatch passes inside one process. Triggers arriving
// while a pass is already queued are coalesced into it.
type Worker struct {
	Dispatcher BatchProcessor
	BatchSize  int

	jobs chan queue.DispatchTrigger
	once sync.Once
	log  zerolog.Logger
}

// Constructor
func NewWorker(d BatchProcessor, batchSize int, log zerolog.Logger) *Worker {
	return &Worker{
		Dispatcher: d,
		BatchSize:  batchSize,
		jobs:       make(chan queue.DispatchTrigger, 1),
		log:        log,
	}
}

// Kick requests a pass. It never blocks and reports whether the trigger was
// queued rather than coalesced.
func (w *Worker) Kick(t queue.DispatchTrigger) bool {
	select {
	case w.jobs <- t:
		return true
	default:
		w.log.Debug().Str("reason", t.Reason).Msg("pass already pending, trigger coalesced")
		return false
	}
}

// HandleTrigger is a queue handler for TopicDispatchTriggers.
func (w *Worker) HandleTrigger(payload any) error {
	t, err := queue.Decode[queue.DispatchTrigger](payload)
	if err != nil {
		// Malformed triggers are dropped; retrying cannot fix them.
		w.log.Warn().Err(err).Msg("invalid dispatch trigger")
		return nil
	}
	w.Kick(t)
	return nil
}

// Start runs passes until ctx is done. It is safe to call once.
func (w *Worker) Start(ctx context.Context) {
	w.once.Do(func() {
		for {
			select {
			case <-ctx.Done():
				return
			case t := <-w.jobs:
				w.runPass(ctx, t)
			}
		}
	})
}

func (w *Worker) runPass(ctx context.Context, t queue.DispatchTrigger) {
	size := w.BatchSize
	if t.BatchSize > 0 && t.BatchSize < size {
		size = t.BatchSize
	}
	res, err := w.Dispatcher.ProcessDue(ctx, size)
	if err != nil {
		w.log.Error().Err(err).Str("reason", t.Reason).Msg("dispatch pass failed")
		return
	}
	if res.Processed > 0 || res.Skipped > 0 {
		w.log.Info().Str("reason", t.Reason).Str("run_id", res.RunID).Int("sent", res.Sent).
			Int("failed", res.Failed).Msg("dispatch pass done")
	}
}
