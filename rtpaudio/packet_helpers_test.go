package rtpaudio

import (
	"github.com/klauspost/reedsolomon"
	"github.com/pion/rtp"
)

const testBlockSize = 160 // bytes of audio payload per data shard, e.g. 20ms of 8kHz PCMA

func mustMarshalAudio(seq uint16, ts, ssrc uint32, payload []byte) []byte {
	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    payloadTypeAudio,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
		},
		Payload: payload,
	}
	buf, err := pkt.Marshal()
	if err != nil {
		panic(err)
	}
	return buf
}

func mustMarshalFEC(seq uint16, ts, ssrc uint32, shardIdx uint8, baseSeq uint16, baseTs, fecSSRC uint32, parity []byte) []byte {
	hdr := fecHeader{
		PayloadType:        payloadTypeAudio,
		FECShardIndex:      shardIdx,
		BaseSequenceNumber: baseSeq,
		BaseTimestamp:      baseTs,
		SSRC:               fecSSRC,
	}
	fecBuf := make([]byte, fecHeaderSize+len(parity))
	hdr.marshalTo(fecBuf)
	copy(fecBuf[fecHeaderSize:], parity)

	pkt := rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    payloadTypeFEC,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           ssrc,
		},
		Payload: fecBuf,
	}
	buf, err := pkt.Marshal()
	if err != nil {
		panic(err)
	}
	return buf
}

// testBlock holds one fully-encoded block's worth of test fixtures: D audio
// wire packets and P FEC wire packets, all consistent with each other and
// recoverable via Reed-Solomon.
type testBlock struct {
	baseSeq   uint16
	baseTs    uint32
	ssrc      uint32
	audio     [D][]byte // full wire packets (RTP header + payload)
	fec       [P][]byte // full wire packets (RTP header + FEC header + parity)
	audioData [D][]byte // raw payload bytes, for comparison after recovery
}

// buildTestBlock fills a block's D data shards with deterministic filler
// content and computes valid parity for it using the same matrix
// convention as internal/rs.
func buildTestBlock(baseSeq uint16, baseTs, ssrc uint32, durationMs uint32) testBlock {
	enc, err := reedsolomon.New(D, P, reedsolomon.WithPAR1Matrix())
	if err != nil {
		panic(err)
	}

	shards := make([][]byte, T)
	var tb testBlock
	tb.baseSeq = baseSeq
	tb.baseTs = baseTs
	tb.ssrc = ssrc

	for i := 0; i < D; i++ {
		payload := make([]byte, testBlockSize)
		for k := range payload {
			payload[k] = byte(int(baseSeq) + i + k)
		}
		shards[i] = payload
		tb.audioData[i] = payload
		tb.audio[i] = mustMarshalAudio(baseSeq+uint16(i), baseTs+uint32(i)*durationMs, ssrc, payload)
	}
	for j := 0; j < P; j++ {
		shards[D+j] = make([]byte, testBlockSize)
	}

	if err := enc.Encode(shards); err != nil {
		panic(err)
	}

	for j := 0; j < P; j++ {
		tb.fec[j] = mustMarshalFEC(baseSeq+uint16(j), baseTs, ssrc, uint8(j), baseSeq, baseTs, ssrc, shards[D+j])
	}
	return tb
}

func newTestQueue(t interface {
	Helper()
	Fatalf(string, ...interface{})
}, cfg Config) *Queue {
	t.Helper()
	q, err := Initialize(cfg)
	if err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	return q
}
