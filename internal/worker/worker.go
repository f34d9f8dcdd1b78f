package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"geoattend/internal/queue"
	"geoattend/internal/store"
)

// Sink is where consumed events end up.
type Sink interface {
	AppendEvent(ctx context.Context, evt store.Event) error
}

// Auditor drains the event queue into the audit table.
type Auditor struct {
	queue queue.Queue
	sink  Sink
	log   zerolog.Logger

	// retries is how many times a failed write is attempted again.
	retries int
	backoff time.Duration
}

// NewAuditor creates an auditor.
func NewAuditor(q queue.Queue, sink Sink, log zerolog.Logger) *Auditor {
	return &Auditor{
		queue:   q,
		sink:    sink,
		log:     log.With().Str("component", "worker").Logger(),
		retries: 3,
		backoff: 200 * time.Millisecond,
	}
}

// Run consumes until ctx is done or the queue closes. It returns the number
// of events written.
func (a *Auditor) Run(ctx context.Context) (int, error) {
	messages, err := a.queue.Consume(ctx)
	if err != nil {
		return 0, err
	}
	a.log.Info().Msg("worker started, waiting for events")
	written := 0
	for msg := range messages {
		if a.handle(ctx, msg) {
			written++
		}
	}
	a.log.Info().Int("written", written).Msg("worker stopped")
	return written, nil
}

func (a *Auditor) handle(ctx context.Context, msg queue.Message) bool {
	switch msg.Type {
	case queue.CheckedIn, queue.CheckedOut, queue.TimelineDeleted, queue.ClassDeleted:
	default:
		a.log.Warn().Str("type", msg.Type).Msg("skipping unknown event type")
		return false
	}
	evt, err := queue.Decode(msg)
	if err != nil {
		a.log.Error().Err(err).Msg("dropping malformed event")
		return false
	}

	for attempt := 0; ; attempt++ {
		err = a.sink.AppendEvent(ctx, evt)
		if err == nil {
			a.log.Debug().Str("id", evt.ID).Str("type", evt.Type).Msg("event recorded")
			return true
		}
		if attempt >= a.retries || ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(a.backoff):
		case <-ctx.Done():
		}
	}
	a.log.Error().Err(err).Str("id", evt.ID).Str("type", evt.Type).Msg("event write failed")
	return false
}
