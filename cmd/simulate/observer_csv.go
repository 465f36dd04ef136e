package main

import (
	"fmt"

	"github.com/lars-sto/rtp-audio-fec-queue/internal/adapter"
)

// modeObserver logs every Mode transition the queue makes during a run,
// the way a real integration would wire mode changes into its own
// logging/metrics pipeline rather than polling Queue.Mode().
type modeObserver struct {
	ssrc uint32
}

func newModeObserver(bus *adapter.StatusBus, ssrc uint32) *modeObserver {
	o := &modeObserver{ssrc: ssrc}
	bus.Subscribe(ssrc, o.onEvent)
	return o
}

func (o *modeObserver) onEvent(ev adapter.ModeEvent) {
	fmt.Printf("mode change ssrc=%d from=%d to=%d\n", ev.SSRC, ev.From, ev.To)
}
