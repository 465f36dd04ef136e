package rtpaudio

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestConfig() Config {
	return Config{
		AudioPacketDuration: 20 * time.Millisecond,
		CachedBlockLimit:    4,
		Debug:               true,
	}
}

// primeSync feeds one throwaway packet belonging to the block immediately
// before targetBaseSeq, establishing the sequencer's synchronization point
// at targetBaseSeq without creating any real block state.
func primeSync(t *testing.T, q *Queue, targetBaseSeq uint16, ssrc uint32) {
	t.Helper()
	priorSeq := targetBaseSeq - D
	status := q.AddPacket(mustMarshalAudio(priorSeq, 0, ssrc, make([]byte, testBlockSize)))
	require.Equal(t, StatusAccepted, status)
	require.Equal(t, targetBaseSeq, q.seq.nextRTPSequenceNumber)
	require.Equal(t, targetBaseSeq, q.seq.oldestRTPBaseSequenceNum)
}

func TestSynchronizingSkipsPartialFirstBlock(t *testing.T) {
	q := newTestQueue(t, newTestConfig())
	defer q.Cleanup()

	// The very first packet the queue ever sees, regardless of its own
	// sequence number, is dropped and used only to anchor synchronization
	// at the next block boundary.
	status := q.AddPacket(mustMarshalAudio(2, 0, 0xaabbccdd, make([]byte, testBlockSize)))
	require.Equal(t, StatusAccepted, status)
	require.Equal(t, uint16(4), q.seq.nextRTPSequenceNumber)
	require.Equal(t, ModeSynchronizing, q.Mode())
}

func TestInOrderFastPath(t *testing.T) {
	q := newTestQueue(t, newTestConfig())
	defer q.Cleanup()

	const ssrc = 0x11223344
	primeSync(t, q, 8, ssrc)

	tb := buildTestBlock(8, 1600, ssrc, 20)
	for i := 0; i < D; i++ {
		status := q.AddPacket(tb.audio[i])
		require.Equalf(t, StatusHandleNow, status, "shard %d", i)
	}

	// The fast path never populates the queue; the block should already be
	// gone.
	require.False(t, q.Mode() == ModeSynchronizing)
	out, length, ok := q.GetQueuedPacket(0)
	require.False(t, ok)
	require.Nil(t, out)
	require.Zero(t, length)
}

func TestDuplicatePacketRejected(t *testing.T) {
	q := newTestQueue(t, newTestConfig())
	defer q.Cleanup()

	const ssrc = 0x55667788
	primeSync(t, q, 8, ssrc)
	tb := buildTestBlock(8, 1600, ssrc, 20)

	status := q.AddPacket(tb.audio[0])
	require.Equal(t, StatusHandleNow, status)

	head := q.blocks.head
	require.NotNil(t, head)
	require.EqualValues(t, 1, head.dataShardsReceived)

	status = q.AddPacket(tb.audio[0])
	require.Equal(t, StatusAccepted, status)
	require.EqualValues(t, 1, head.dataShardsReceived, "duplicate must not be recounted")
}

func TestSingleDataShardLossRecoveredByParity(t *testing.T) {
	q := newTestQueue(t, newTestConfig())
	defer q.Cleanup()

	const ssrc = 0x99aabbcc
	primeSync(t, q, 8, ssrc)
	tb := buildTestBlock(8, 1600, ssrc, 20)

	require.Equal(t, StatusHandleNow, q.AddPacket(tb.audio[0]))
	require.Equal(t, StatusHandleNow, q.AddPacket(tb.audio[1]))
	// shard index 2 is lost in transit: never delivered.
	require.Equal(t, StatusAccepted, q.AddPacket(tb.audio[3]))

	status := q.AddPacket(tb.fec[0])
	require.Equal(t, StatusPacketReady, status)

	out, length, ok := q.GetQueuedPacket(4)
	require.True(t, ok)
	require.Equal(t, testBlockSize+rtpHeaderSize, length)
	require.Equal(t, tb.audioData[2], out[4+rtpHeaderSize:])

	out, length, ok = q.GetQueuedPacket(4)
	require.True(t, ok)
	require.Equal(t, testBlockSize+rtpHeaderSize, length)
	require.Equal(t, tb.audioData[3], out[4+rtpHeaderSize:])

	_, _, ok = q.GetQueuedPacket(4)
	require.False(t, ok)
}

func TestUnrecoverableLossEmitsDiscontinuityPlaceholders(t *testing.T) {
	q := newTestQueue(t, newTestConfig())
	defer q.Cleanup()

	const ssrc = 0xdeadbeef
	primeSync(t, q, 8, ssrc)

	blockOne := buildTestBlock(8, 1600, ssrc, 20)
	blockTwo := buildTestBlock(8+D, 1600+D*20, ssrc, 20)

	// Only the first shard of the older block ever arrives.
	require.Equal(t, StatusHandleNow, q.AddPacket(blockOne.audio[0]))

	// Traffic for the next block arrives before the older one completes;
	// with no out-of-sequence history, the older block times out
	// immediately.
	status := q.AddPacket(blockTwo.audio[0])
	require.Equal(t, StatusPacketReady, status)

	for i := 1; i < D; i++ {
		out, length, ok := q.GetQueuedPacket(0)
		require.Truef(t, ok, "placeholder %d", i)
		require.Zero(t, length)
		require.Len(t, out, 0)
	}

	out, length, ok := q.GetQueuedPacket(0)
	require.True(t, ok)
	require.Equal(t, testBlockSize+rtpHeaderSize, length)
	require.Equal(t, blockTwo.audioData[0], out[rtpHeaderSize:])

	_, _, ok = q.GetQueuedPacket(0)
	require.False(t, ok)
}

// TestUnrecoverableLossTimesOutViaWallClock drives the enforceQueueConstraints
// timeout branch that only fires once out-of-sequence traffic has been seen
// (queue.go's "limit := D*AudioPacketDuration + OOSWaitTime" comparison),
// as opposed to TestUnrecoverableLossEmitsDiscontinuityPlaceholders which
// only ever exercises the immediate branch. Config.Now is the injection
// point spec.md §4.5's timeout formula depends on.
func TestUnrecoverableLossTimesOutViaWallClock(t *testing.T) {
	cfg := newTestConfig()
	now := time.Unix(1000, 0)
	cfg.Now = func() time.Time { return now }
	q := newTestQueue(t, cfg)
	defer q.Cleanup()

	const ssrc = 0x24681357
	primeSync(t, q, 8, ssrc)

	blockOne := buildTestBlock(8, 1600, ssrc, 20)
	for i := 0; i < D; i++ {
		require.Equal(t, StatusHandleNow, q.AddPacket(blockOne.audio[i]))
	}
	require.False(t, q.seq.synchronizing)
	require.EqualValues(t, 12, q.seq.oldestRTPBaseSequenceNum)

	// A stray packet belonging to the now-completed block arrives late,
	// putting the sequencer into out-of-sequence tracking without being
	// admitted into any block.
	require.Equal(t, StatusAccepted, q.AddPacket(mustMarshalAudio(9, 1620, ssrc, make([]byte, testBlockSize))))
	require.True(t, q.seq.receivedOOSData)

	blockTwo := buildTestBlock(12, 1680, ssrc, 20)
	// An out-of-order shard makes blockTwo the head without completing it
	// or advancing the sequencer.
	require.Equal(t, StatusAccepted, q.AddPacket(blockTwo.audio[1]))
	require.NotNil(t, q.blocks.head)
	require.Equal(t, uint16(12), q.blocks.head.baseSeq)

	blockThree := buildTestBlock(16, 1760, ssrc, 20)

	// 100ms of the 180ms (D*20ms + OOSWaitTime) deadline has elapsed:
	// traffic for a later block must not time out blockTwo yet.
	now = now.Add(100 * time.Millisecond)
	status := q.AddPacket(blockThree.audio[0])
	require.Equal(t, StatusAccepted, status)
	require.False(t, q.blocks.head.allowDiscontinuity)

	// Crossing the 180ms deadline times the head block out on the next
	// later-block packet.
	now = now.Add(90 * time.Millisecond)
	status = q.AddPacket(blockThree.audio[1])
	require.Equal(t, StatusPacketReady, status)
	require.True(t, q.blocks.head.allowDiscontinuity)
	require.Equal(t, uint16(12), q.blocks.head.baseSeq)

	out, length, ok := q.GetQueuedPacket(0)
	require.True(t, ok)
	require.Zero(t, length, "shard 0 of blockTwo was never delivered")

	out, length, ok = q.GetQueuedPacket(0)
	require.True(t, ok)
	require.Equal(t, testBlockSize+rtpHeaderSize, length)
	require.Equal(t, blockTwo.audioData[1], out[rtpHeaderSize:])

	for i := 0; i < 2; i++ {
		out, length, ok = q.GetQueuedPacket(0)
		require.Truef(t, ok, "placeholder %d", i)
		require.Zero(t, length)
	}
}

func TestBlockSizeMismatchDisablesFEC(t *testing.T) {
	q := newTestQueue(t, newTestConfig())
	defer q.Cleanup()

	const ssrc = 0xc0ffee00
	primeSync(t, q, 8, ssrc)

	tb := buildTestBlock(8, 1600, ssrc, 20)
	require.Equal(t, StatusHandleNow, q.AddPacket(tb.audio[0]))

	mismatched := mustMarshalAudio(9, 1620, ssrc, make([]byte, testBlockSize*2))
	status := q.AddPacket(mismatched)
	require.Equal(t, StatusAccepted, status)
	require.Equal(t, ModeIncompatibleServer, q.Mode())

	// Once latched, audio packets bypass the block machinery entirely.
	status = q.AddPacket(tb.audio[2])
	require.Equal(t, StatusHandleNow, status)
	status = q.AddPacket(tb.fec[0])
	require.Equal(t, StatusAccepted, status)
}
