package rtpaudio

import (
	"fmt"
	"time"

	"github.com/pion/logging"

	"github.com/lars-sto/rtp-audio-fec-queue/internal/rs"
)

// Config configures a Queue for one session. D, P, and T are fixed
// package constants, never configuration — see spec.md §2.
type Config struct {
	// AudioPacketDuration is the fixed milliseconds-per-packet value for
	// this session, used to derive block timestamps and the block
	// timeout deadline.
	AudioPacketDuration time.Duration

	// CachedBlockLimit caps the free-block LIFO cache
	// (RTPA_CACHED_FEC_BLOCK_LIMIT). Zero selects a default of 8.
	CachedBlockLimit int

	// OOSWaitTime is the extra grace period added to the block duration
	// before a block is declared lost (RTPQ_OOS_WAIT_TIME_MS). Zero
	// selects a conservative default.
	OOSWaitTime time.Duration

	// Debug enables the invariant walker at the state changes inside
	// AddPacket and GetQueuedPacket. Off by default; meant for tests and
	// development builds.
	Debug bool

	// ValidateRecovery enables FEC validation mode: a block that reaches
	// completion runs Reed-Solomon recovery against itself by marking its
	// first already-received data shard missing and bit-comparing the
	// result. Completion then needs D+1 shards, and blocks drained entirely
	// through the in-order fast path are not checked.
	ValidateRecovery bool

	// Logger receives all diagnostic output. Defaults to a pion/logging
	// default logger named "rtpaudio".
	Logger logging.LeveledLogger

	// Now supplies the monotonic clock used for block timeouts. Defaults
	// to time.Now; tests inject a controllable clock.
	Now func() time.Time
}

func (c *Config) applyDefaults() {
	if c.CachedBlockLimit <= 0 {
		c.CachedBlockLimit = defaultCachedBlockLimit
	}
	if c.OOSWaitTime <= 0 {
		c.OOSWaitTime = defaultOOSWaitTime
	}
	if c.Logger == nil {
		c.Logger = logging.NewDefaultLoggerFactory().NewLogger("rtpaudio")
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Queue is the top-level aggregate: the ordered block list, the free-block
// cache, the Reed-Solomon codec, and the sequencer state. It is owned
// exclusively by one logical task; it performs no I/O and never blocks.
type Queue struct {
	cfg    Config
	seq    *sequencer
	blocks *blockList
	rs     *rs.Codec
	logger logging.LeveledLogger
	closed bool
}

// Initialize builds a new Queue, installing the Reed-Solomon codec and
// entering synchronizing mode.
func Initialize(cfg Config) (*Queue, error) {
	if cfg.AudioPacketDuration <= 0 {
		return nil, fmt.Errorf("rtpaudio: AudioPacketDuration must be positive")
	}
	cfg.applyDefaults()

	codec, err := rs.New(D, P)
	if err != nil {
		return nil, fmt.Errorf("rtpaudio: initialize: %w", err)
	}

	return &Queue{
		cfg:    cfg,
		seq:    newSequencer(),
		blocks: newBlockList(cfg.CachedBlockLimit),
		rs:     codec,
		logger: cfg.Logger,
	}, nil
}

// Cleanup drains both the block list and the free cache. The Queue must
// not be used afterward.
func (q *Queue) Cleanup() {
	q.blocks.drain()
	q.closed = true
}

// Mode reports the queue's current synchronization state.
func (q *Queue) Mode() Mode { return q.seq.mode() }

func (q *Queue) nowMs() int64 { return q.cfg.Now().UnixMilli() }

// AddPacket ingests one raw wire packet (RTP header, optionally followed
// by an FEC header, followed by payload). It never blocks and never
// returns an error for malformed or out-of-contract input: every fault
// degrades to a logged or silent drop per spec.md §7.
func (q *Queue) AddPacket(buf []byte) Status {
	if q.closed {
		q.logger.Warnf("rtpaudio: %v", ErrQueueClosed)
		return StatusAccepted
	}

	if q.seq.incompatibleServer {
		// FEC has been permanently disabled for this session; audio data
		// is fed straight through to the decoder and FEC packets are
		// ignored, bypassing the block machinery entirely.
		if len(buf) < 2 {
			return StatusAccepted
		}
		if buf[1]&0x7f == payloadTypeAudio {
			return StatusHandleNow
		}
		return StatusAccepted
	}

	in, err := parseInbound(buf)
	if err != nil {
		q.logger.Warnf("rtpaudio: dropping malformed packet: %v", err)
		return StatusAccepted
	}

	block := q.locateBlock(in)
	if block == nil {
		return StatusAccepted
	}

	switch in.kind {
	case kindAudio:
		pos := in.rtpHeader.SequenceNumber - block.baseSeq
		if pos >= D {
			q.logger.Errorf("rtpaudio: data shard index %d out of range for block %d", pos, block.baseSeq)
			return StatusAccepted
		}
		if !block.marks[pos] {
			return StatusAccepted // duplicate
		}
		copy(block.dataPackets[pos], in.audioBytes)
		block.marks[pos] = false
		block.dataShardsReceived++

		if in.rtpHeader.SequenceNumber == q.seq.nextRTPSequenceNumber {
			q.seq.nextRTPSequenceNumber++
			block.nextDataPacketIndex++
			if q.seq.nextRTPSequenceNumber == block.baseSeq+D {
				q.freeHead()
			} else {
				q.checkInvariants()
			}
			return StatusHandleNow
		}

	case kindFEC:
		idx := D + int(in.fec.FECShardIndex)
		if !block.marks[idx] {
			return StatusAccepted // duplicate
		}
		copy(block.fecPackets[in.fec.FECShardIndex], in.fecPayload())
		block.marks[idx] = false
		block.fecShardsReceived++
	}

	q.tryCompleteBlock(block)

	if q.queueHasPacketReady() {
		return StatusPacketReady
	}

	// We don't have enough to proceed. Only enforce the block timeout
	// when this packet came from a later block, so we don't needlessly
	// time out a block that simply isn't getting any other traffic yet.
	if block != q.blocks.head && q.enforceQueueConstraints() {
		head := q.blocks.head
		head.allowDiscontinuity = true
		if isBefore16(q.seq.nextRTPSequenceNumber, head.baseSeq) {
			q.seq.nextRTPSequenceNumber = head.baseSeq
		}
		q.checkInvariants()
		return StatusPacketReady
	}

	if q.queueHasPacketReady() {
		return StatusPacketReady
	}
	return StatusAccepted
}

// GetQueuedPacket returns the next packet (or lost-packet placeholder) the
// caller should hand to the decoder, or ok=false if nothing is ready. The
// returned buffer reserves customHeaderLength leading bytes of scratch
// space for the caller's own framing; payloadLength is the RTP-header-plus-
// audio length copied at out[customHeaderLength:], or 0 for a placeholder.
func (q *Queue) GetQueuedPacket(customHeaderLength int) (out []byte, payloadLength int, ok bool) {
	if q.closed {
		q.logger.Warnf("rtpaudio: %v", ErrQueueClosed)
		return nil, 0, false
	}
	q.checkInvariants()

	if h := q.blocks.head; h != nil && h.allowDiscontinuity {
		if h.marks[h.nextDataPacketIndex] {
			placeholder := make([]byte, customHeaderLength)
			h.nextDataPacketIndex++
			q.seq.nextRTPSequenceNumber++
			if h.nextDataPacketIndex == D {
				q.freeHead()
			} else {
				q.checkInvariants()
			}
			return placeholder, 0, true
		}
		q.checkInvariants()
	}

	if q.queueHasPacketReady() {
		h := q.blocks.head
		length := int(h.blockSize) + rtpHeaderSize
		buf := make([]byte, customHeaderLength+length)
		copy(buf[customHeaderLength:], h.dataPackets[h.nextDataPacketIndex][:length])
		h.nextDataPacketIndex++
		q.seq.nextRTPSequenceNumber++
		if h.nextDataPacketIndex == D {
			q.freeHead()
		} else {
			q.checkInvariants()
		}
		return buf, length, true
	}

	return nil, 0, false
}

// freeHead removes the head block, advances oldestRTPBaseSequenceNum past
// it, and leaves synchronizing mode (once a block completes, successfully
// or not, we're synchronized with the source).
func (q *Queue) freeHead() {
	head := q.blocks.removeHead()
	q.seq.oldestRTPBaseSequenceNum = head.baseSeq + D
	q.seq.synchronizing = false
	q.checkInvariants()
}

// queueHasPacketReady reports whether the head block's next expected
// shard is both present and the one the sequencer is waiting for.
func (q *Queue) queueHasPacketReady() bool {
	h := q.blocks.head
	return h != nil &&
		!h.marks[h.nextDataPacketIndex] &&
		h.baseSeq+h.nextDataPacketIndex == q.seq.nextRTPSequenceNumber
}

// enforceQueueConstraints reports whether the head block should be
// declared irrecoverably lost: either we're in fast mode and data from a
// later block has already arrived, or the block's entire audio duration
// plus the OOS grace period has elapsed.
func (q *Queue) enforceQueueConstraints() bool {
	h := q.blocks.head
	if h == nil {
		return false
	}
	if !q.seq.receivedOOSData {
		return true
	}
	limit := int64(D)*q.cfg.AudioPacketDuration.Milliseconds() + q.cfg.OOSWaitTime.Milliseconds()
	return q.nowMs()-h.queueTimeMs > limit
}
