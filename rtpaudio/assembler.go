package rtpaudio

// blockIdentity is the FEC-header-shaped identity derived from an inbound
// packet, used to find or create its block.
type blockIdentity struct {
	payloadType uint8
	baseSeq     uint16
	baseTs      uint32
	ssrc        uint32
	blockSize   uint16
}

// deriveIdentity computes the target block's identity for an inbound
// packet, per spec.md §4.2.
func deriveIdentity(in inboundPacket, audioPacketDurationMs uint32) blockIdentity {
	if in.kind == kindAudio {
		seq := in.rtpHeader.SequenceNumber
		baseSeq := seq &^ uint16(D-1) // D is a power of two
		return blockIdentity{
			payloadType: in.rtpHeader.PayloadType,
			baseSeq:     baseSeq,
			baseTs:      in.rtpHeader.Timestamp - uint32(seq-baseSeq)*audioPacketDurationMs,
			ssrc:        in.rtpHeader.SSRC,
			blockSize:   uint16(in.blockSize()),
		}
	}
	return blockIdentity{
		payloadType: in.fec.PayloadType,
		baseSeq:     in.fec.BaseSequenceNumber,
		baseTs:      in.fec.BaseTimestamp,
		ssrc:        in.fec.SSRC,
		blockSize:   uint16(in.blockSize()),
	}
}

// locateBlock finds or creates the block for an inbound packet, applying
// synchronization, admissibility, and compatibility checks. It returns nil
// when the packet should be dropped without further processing; the
// caller (AddPacket) never receives a reason beyond the logged message,
// matching spec.md §7's "never fatal, always a silent or logged drop"
// policy.
func (q *Queue) locateBlock(in inboundPacket) *fecBlock {
	id := deriveIdentity(in, uint32(q.cfg.AudioPacketDuration.Milliseconds()))

	if in.kind == kindAudio {
		q.seq.observeAudioArrival(in.rtpHeader.SequenceNumber)
	}

	// Synchronize on the first admissible packet: refuse the current
	// (possibly partial) block and start at the next block boundary, so
	// we never report a spurious incomplete-block loss on connection
	// start. baseAnchored (not a zero-value check on
	// oldestRTPBaseSequenceNum) gates this so a session whose first block
	// boundary lands exactly on sequence 0 doesn't get re-anchored.
	if q.seq.synchronizing && !q.seq.baseAnchored {
		next := id.baseSeq + D
		q.seq.oldestRTPBaseSequenceNum = next
		q.seq.nextRTPSequenceNumber = next
		q.seq.baseAnchored = true
		return nil
	}

	// Drop packets belonging to already-completed blocks.
	if isBefore16(id.baseSeq, q.seq.oldestRTPBaseSequenceNum) {
		return nil
	}

	match, insertBefore := q.blocks.find(id.baseSeq)
	if match != nil {
		if match.baseTs != id.baseTs || match.ssrc != id.ssrc || match.payloadType != id.payloadType {
			// Undefined per spec.md §9's Open Questions: the reference
			// asserts then proceeds. Treat it as a dropped malformed
			// packet instead.
			q.logger.Warnf("rtpaudio: block %d header mismatch on incoming packet, dropping", id.baseSeq)
			return nil
		}
		if match.blockSize != id.blockSize {
			q.logger.Errorf("rtpaudio: audio block size mismatch (got %d, expected %d); disabling fec for this session", id.blockSize, match.blockSize)
			q.seq.incompatibleServer = true
			return nil
		}
		if match.fullyReassembled {
			return nil
		}
		return match
	}

	b := q.blocks.allocate(id.blockSize)
	b.reset()
	b.queueTimeMs = q.nowMs()
	b.blockSize = id.blockSize
	b.payloadType = id.payloadType
	b.baseSeq = id.baseSeq
	b.baseTs = id.baseTs
	b.ssrc = id.ssrc

	q.blocks.insertBefore(b, insertBefore)
	return b
}
