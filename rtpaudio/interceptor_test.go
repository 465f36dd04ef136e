package rtpaudio

import (
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/stretchr/testify/require"
)

// TestInterceptorWriterFeedsQueue drives a packet through the
// interceptor.RTPWriter InterceptorWriter returns, the way a real
// pion/interceptor chain would, and checks the queue actually observed it.
func TestInterceptorWriterFeedsQueue(t *testing.T) {
	q := newTestQueue(t, newTestConfig())
	defer q.Cleanup()

	const ssrc = 0x42424242
	primeSync(t, q, 8, ssrc)

	writer := q.InterceptorWriter()

	header := &rtp.Header{
		Version:        2,
		PayloadType:    payloadTypeAudio,
		SequenceNumber: 8,
		Timestamp:      1600,
		SSRC:           ssrc,
	}
	payload := make([]byte, testBlockSize)
	for i := range payload {
		payload[i] = byte(i)
	}

	n, err := writer.Write(header, payload, interceptor.Attributes{})
	require.NoError(t, err)
	require.Equal(t, rtpHeaderSize+len(payload), n)

	require.NotNil(t, q.blocks.head)
	require.EqualValues(t, 1, q.blocks.head.dataShardsReceived)
	require.Equal(t, uint16(9), q.seq.nextRTPSequenceNumber, "in-order shard should take the fast path")
}
