// Package adapter provides small in-process pub/sub glue between the
// rtpaudio queue and whatever wants to observe it (here, cmd/simulate's
// mode observer), so the queue itself never depends on a particular sink.
package adapter

import "sync"

// ModeEvent is one Queue.Mode() transition, keyed by the session's SSRC.
type ModeEvent struct {
	SSRC uint32
	From int
	To   int
}

// StatusBus is an in-process publisher of ModeEvents, keyed by SSRC so a
// single bus can be shared across a batch of concurrent sessions.
type StatusBus struct {
	mu sync.Mutex
	cb map[uint32]func(ModeEvent)
}

func NewStatusBus() *StatusBus {
	return &StatusBus{cb: make(map[uint32]func(ModeEvent))}
}

// Subscribe registers fn to receive every ModeEvent published for ssrc,
// returning an unsubscribe function.
func (b *StatusBus) Subscribe(ssrc uint32, fn func(ModeEvent)) (unsubscribe func()) {
	b.mu.Lock()
	b.cb[ssrc] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.cb, ssrc)
		b.mu.Unlock()
	}
}

func (b *StatusBus) Publish(ev ModeEvent) {
	b.mu.Lock()
	fn := b.cb[ev.SSRC]
	b.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}
