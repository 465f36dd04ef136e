package rtpaudio

// checkInvariants walks the block list and verifies the sequencer and
// list-ordering invariants of spec.md §3: next vs oldest, the head block's
// window, and the per-pair order, timestamp, size/SSRC/payload-type and
// link checks. It does not check the per-block shard counters against the
// marks, nor that an empty list has a nil tail. It is a debug-only aid (gated by Config.Debug, mirroring
// the original's #ifdef LC_DEBUG validateFecBlockState) and is never on
// the hot path in production use; violations are logged rather than
// panicking, since a violated invariant here means a bug in this package,
// not a condition callers can recover from.
func (q *Queue) checkInvariants() {
	if !q.cfg.Debug {
		return
	}

	if isBefore16(q.seq.nextRTPSequenceNumber, q.seq.oldestRTPBaseSequenceNum) && !q.seq.synchronizing {
		q.logger.Errorf("rtpaudio: invariant violated: next %d before oldest %d while not synchronizing",
			q.seq.nextRTPSequenceNumber, q.seq.oldestRTPBaseSequenceNum)
	}

	head := q.blocks.head
	if head == nil {
		return
	}

	if head.prev != nil {
		q.logger.Errorf("rtpaudio: invariant violated: block list head has a prev pointer")
	}
	if !isBefore16(q.seq.nextRTPSequenceNumber, head.baseSeq+D) {
		q.logger.Errorf("rtpaudio: invariant violated: next %d does not precede head block %d+%d",
			q.seq.nextRTPSequenceNumber, head.baseSeq, D)
	}
	if isBefore16(head.baseSeq, q.seq.oldestRTPBaseSequenceNum) {
		q.logger.Errorf("rtpaudio: invariant violated: head block %d precedes oldest %d",
			head.baseSeq, q.seq.oldestRTPBaseSequenceNum)
	}

	last := head
	for b := head.next; b != nil; b = b.next {
		if !isBefore16(last.baseSeq, b.baseSeq) {
			q.logger.Errorf("rtpaudio: invariant violated: block list not sorted at %d -> %d", last.baseSeq, b.baseSeq)
		}
		if !isBefore32(last.baseTs, b.baseTs) {
			q.logger.Errorf("rtpaudio: invariant violated: block timestamps not increasing at %d -> %d", last.baseSeq, b.baseSeq)
		}
		if b.blockSize != last.blockSize || b.ssrc != last.ssrc || b.payloadType != last.payloadType {
			q.logger.Errorf("rtpaudio: invariant violated: block %d disagrees with %d on size/ssrc/payload type", b.baseSeq, last.baseSeq)
		}
		if b.prev != last {
			q.logger.Errorf("rtpaudio: invariant violated: block %d prev pointer broken", b.baseSeq)
		}
		if b.next == nil && q.blocks.tail != b {
			q.logger.Errorf("rtpaudio: invariant violated: block %d looks like a tail but isn't recorded as one", b.baseSeq)
		}
		last = b
	}
}
