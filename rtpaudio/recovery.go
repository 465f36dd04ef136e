package rtpaudio

import "bytes"

// canRecover reports whether a block has enough shards present to attempt
// completion: dataShardsReceived + fecShardsReceived >= D. When
// validateRecovery is set, one extra shard is required so that recovery
// always has a spare present shard it can mark missing for validation
// (mirrors FEC_VALIDATION_MODE in the original).
func canRecover(b *fecBlock, validateRecovery bool) bool {
	need := D
	if validateRecovery {
		need = D + 1
	}
	return int(b.dataShardsReceived)+int(b.fecShardsReceived) >= need
}

// tryCompleteBlock attempts to finish reassembling b. If all D data shards
// have arrived, no Reed-Solomon call is needed. Otherwise, if enough
// shards are present, it invokes the RS codec and synthesizes RTP headers
// for any recovered data shard. It returns true if the block is (or
// becomes) fully reassembled.
func (q *Queue) tryCompleteBlock(b *fecBlock) bool {
	if !canRecover(b, q.cfg.ValidateRecovery) {
		return false
	}

	if b.dataShardsReceived == D && !q.cfg.ValidateRecovery {
		b.fullyReassembled = true
		return true
	}

	dropIndex := -1
	var droppedOriginal []byte
	if q.cfg.ValidateRecovery {
		dropIndex = pickPresentDataShard(b)
		if dropIndex >= 0 {
			droppedOriginal = append([]byte(nil), b.dataPackets[dropIndex]...)
			b.marks[dropIndex] = true
			clearBytes(b.dataPackets[dropIndex])
			b.dataShardsReceived--
		}
	}

	shards := make([][]byte, T)
	for i := 0; i < D; i++ {
		shards[i] = b.dataPackets[i][rtpHeaderSize:]
	}
	for j := 0; j < P; j++ {
		shards[D+j] = b.fecPackets[j]
	}

	if err := q.rs.Reconstruct(shards, b.marks[:]); err != nil {
		q.logger.Errorf("rtpaudio: fec reconstruction failed for block %d despite sufficient shards: %v", b.baseSeq, err)
		if dropIndex >= 0 {
			// Validation mode corrupted our own state on the way in;
			// restore it so the block can still time out cleanly.
			copy(b.dataPackets[dropIndex], droppedOriginal)
			b.marks[dropIndex] = false
			b.dataShardsReceived++
		}
		return false
	}

	recovered := 0
	for i := 0; i < D; i++ {
		if b.marks[i] {
			synthesizeHeader(b.dataPackets[i], b.payloadType, b.baseSeq+uint16(i), b.baseTs+uint32(i)*uint32(q.cfg.AudioPacketDuration.Milliseconds()), b.ssrc)
			b.marks[i] = false
			recovered++
		}
	}
	if recovered > 0 {
		q.logger.Debugf("rtpaudio: recovered %d audio data shard(s) for block %d", recovered, b.baseSeq)
	}

	if dropIndex >= 0 {
		if !bytes.Equal(b.dataPackets[dropIndex], droppedOriginal) {
			q.logger.Errorf("rtpaudio: fec validation mismatch recovering shard %d of block %d", dropIndex, b.baseSeq)
		}
		b.marks[dropIndex] = false
		b.dataShardsReceived++
	}

	b.fullyReassembled = true
	return true
}

func pickPresentDataShard(b *fecBlock) int {
	for i := 0; i < D; i++ {
		if !b.marks[i] {
			return i
		}
	}
	return -1
}
