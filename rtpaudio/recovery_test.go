package rtpaudio

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestValidateRecoverySelfChecksCompletedBlock exercises
// Config.ValidateRecovery: once a block accumulates one shard beyond what
// plain completion requires, tryCompleteBlock marks an already-present data
// shard missing, reconstructs it through the same Reed-Solomon path a real
// loss would use, and bit-compares the result against the original before
// restoring it.
func TestValidateRecoverySelfChecksCompletedBlock(t *testing.T) {
	cfg := newTestConfig()
	cfg.ValidateRecovery = true
	q := newTestQueue(t, cfg)
	defer q.Cleanup()

	const ssrc = 0x13572468
	primeSync(t, q, 8, ssrc)

	blockOne := buildTestBlock(8, 1600, ssrc, 20)
	blockTwo := buildTestBlock(8+D, 1600+D*20, ssrc, 20)

	// Only the first shard of the older block ever arrives, so it stays
	// head and incomplete; blockTwo's own shards never match
	// nextRTPSequenceNumber and so never take the fast path, letting
	// tryCompleteBlock run on every one of them.
	require.Equal(t, StatusHandleNow, q.AddPacket(blockOne.audio[0]))

	for i := 0; i < D; i++ {
		q.AddPacket(blockTwo.audio[i])
	}

	match, _ := q.blocks.find(blockTwo.baseSeq)
	require.NotNil(t, match)
	require.False(t, match.fullyReassembled, "four data shards alone aren't enough under ValidateRecovery")

	status := q.AddPacket(blockTwo.fec[0])
	require.Equal(t, StatusPacketReady, status)

	require.True(t, match.fullyReassembled)
	require.EqualValues(t, D, match.dataShardsReceived)
	for i := 0; i < D; i++ {
		require.Falsef(t, match.marks[i], "data shard %d should be present again after validation", i)
		require.Equal(t, blockTwo.audioData[i], match.dataPackets[i][rtpHeaderSize:])
	}
}
