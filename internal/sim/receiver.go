package sim

import (
	"time"

	"github.com/pion/rtp"

	"github.com/lars-sto/rtp-audio-fec-queue/rtpaudio"
)

// Receiver drives one rtpaudio.Queue from delivered wire packets, draining
// it after every packet that makes one available, and records what came
// out for the scenario's stats.
type Receiver struct {
	queue *rtpaudio.Queue

	recvMedia int64
	recvFEC   int64

	delivered    int64
	recovered    int64
	placeholders int64

	directlyReceived map[uint16]bool
}

func NewReceiver(audioPacketDuration time.Duration) (*Receiver, error) {
	q, err := rtpaudio.Initialize(rtpaudio.Config{AudioPacketDuration: audioPacketDuration})
	if err != nil {
		return nil, err
	}
	return &Receiver{
		queue:            q,
		directlyReceived: make(map[uint16]bool, 4096),
	}, nil
}

func (r *Receiver) Close() { r.queue.Cleanup() }

func (r *Receiver) Mode() rtpaudio.Mode { return r.queue.Mode() }

// OnPacket feeds one delivered wire packet (already RTP-marshaled) into the
// queue and drains any resulting output.
func (r *Receiver) OnPacket(pkt rtp.Packet, isFEC bool) {
	if isFEC {
		r.recvFEC++
	} else {
		r.recvMedia++
		r.directlyReceived[pkt.Header.SequenceNumber] = true
	}

	buf, err := pkt.Marshal()
	if err != nil {
		return
	}

	switch r.queue.AddPacket(buf) {
	case rtpaudio.StatusHandleNow:
		r.delivered++
	case rtpaudio.StatusPacketReady:
		r.drain()
	}
}

func (r *Receiver) drain() {
	for {
		out, length, ok := r.queue.GetQueuedPacket(0)
		if !ok {
			return
		}
		if length == 0 {
			r.placeholders++
			continue
		}

		var h rtp.Header
		if _, err := h.Unmarshal(out); err != nil {
			continue
		}
		r.delivered++
		if !r.directlyReceived[h.SequenceNumber] {
			r.recovered++
		}
	}
}

type ReceiverSnapshot struct {
	RecvMedia int64
	RecvFEC   int64

	Delivered    int64
	Recovered    int64
	Placeholders int64

	Mode rtpaudio.Mode
}

func (r *Receiver) Snapshot() ReceiverSnapshot {
	return ReceiverSnapshot{
		RecvMedia:    r.recvMedia,
		RecvFEC:      r.recvFEC,
		Delivered:    r.delivered,
		Recovered:    r.recovered,
		Placeholders: r.placeholders,
		Mode:         r.queue.Mode(),
	}
}
