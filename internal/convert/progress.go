package convert

import (
	"context"
	"sync"
)

// reporter serializes progress events from the coordinator and the archive
// writer goroutine and drops anything that would move backwards.
type reporter struct {
	ctx context.Context
	ch  chan<- ProgressEvent

	mu      sync.Mutex
	phase   Phase
	current int
	started bool
}

func newReporter(ctx context.Context, ch chan<- ProgressEvent) *reporter {
	return &reporter{ctx: ctx, ch: ch}
}

func (r *reporter) emit(phase Phase, current, total int, item string) {
	if r == nil || r.ch == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		switch {
		case phase.rank() < r.phase.rank():
			return
		case phase == r.phase && current < r.current:
			current = r.current
		}
	}
	r.started = true
	r.phase = phase
	r.current = current

	event := ProgressEvent{Phase: phase, Current: current, Total: max(total, current)}
	if item != "" {
		event.Item = &item
	}
	select {
	case r.ch <- event:
	case <-r.ctx.Done():
	}
}
