package sim

import (
	"encoding/binary"

	"github.com/pion/rtp"

	"github.com/lars-sto/rtp-audio-fec-queue/internal/rs"
	"github.com/lars-sto/rtp-audio-fec-queue/rtpaudio"
)

// BlockSender is the simulated wire-side collaborator spec.md treats as
// external to the queue: it produces D data shards followed by P parity
// shards per block, in sequence order, so the receive-side queue has a
// real encoder to run against under loss.
type BlockSender struct {
	ids  RTPIDs
	spec SenderSpec

	codec *rs.Codec
	seed  int64

	baseSeq   uint16
	baseTs    uint32
	blockSize int

	incompatible bool // once true, doubles blockSize from the second block on

	data   [rtpaudio.D][]byte
	parity [rtpaudio.P][]byte
	slot   int  // position within the current block, 0..T-1
	first  bool // true until the first block has been built
}

func NewBlockSender(ids RTPIDs, spec SenderSpec, seed int64, mode Mode) (*BlockSender, error) {
	codec, err := rs.New(rtpaudio.D, rtpaudio.P)
	if err != nil {
		return nil, err
	}
	return &BlockSender{
		ids:          ids,
		spec:         spec,
		codec:        codec,
		seed:         seed,
		baseSeq:      spec.StartSeq,
		baseTs:       spec.StartTS,
		blockSize:    spec.PayloadBytes,
		incompatible: mode == ModeIncompatibleServer,
		slot:         rtpaudio.T,
		first:        true,
	}, nil
}

// Next returns the next wire packet to send and whether it's an FEC
// (parity) packet as opposed to a media packet.
func (s *BlockSender) Next() (rtp.Packet, bool) {
	if s.slot == rtpaudio.T {
		s.startNextBlock()
	}

	i := s.slot
	s.slot++

	if i < rtpaudio.D {
		return s.mediaPacket(i), false
	}
	return s.fecPacket(i - rtpaudio.D), true
}

func (s *BlockSender) startNextBlock() {
	if !s.first {
		s.baseSeq += rtpaudio.D
		s.baseTs += uint32(rtpaudio.D) * s.spec.TimestampStep

		if s.incompatible && s.baseSeq == s.spec.StartSeq+rtpaudio.D {
			// From the second block on, the server silently starts
			// sending larger packets without renegotiating — the wire
			// behavior an incompatible-server scenario models.
			s.blockSize = s.spec.PayloadBytes * 2
		}
	}
	s.first = false

	shards := make([][]byte, rtpaudio.T)
	for i := 0; i < rtpaudio.D; i++ {
		payload := make([]byte, s.blockSize)
		fillDeterministic(payload, s.seed, s.baseSeq+uint16(i))
		shards[i] = payload
		s.data[i] = payload
	}
	for j := 0; j < rtpaudio.P; j++ {
		shards[rtpaudio.D+j] = make([]byte, s.blockSize)
	}

	if err := s.codec.Encode(shards); err != nil {
		// The only way Encode fails here is a shard-length mismatch,
		// which startNextBlock itself guarantees can't happen.
		panic(err)
	}
	for j := 0; j < rtpaudio.P; j++ {
		s.parity[j] = shards[rtpaudio.D+j]
	}

	if s.incompatible && s.blockSize != s.spec.PayloadBytes && s.baseSeq == s.spec.StartSeq+rtpaudio.D {
		// The switch lands mid-block: shard 0 of the second block still
		// goes out at the old size, so the receiver sees two sizes within
		// one block.
		s.data[0] = s.data[0][:s.spec.PayloadBytes]
	}

	s.slot = 0
}

func (s *BlockSender) mediaPacket(i int) rtp.Packet {
	seq := s.baseSeq + uint16(i)
	ts := s.baseTs + uint32(i)*s.spec.TimestampStep
	return rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    s.ids.MediaPT,
			SequenceNumber: seq,
			Timestamp:      ts,
			SSRC:           s.ids.MediaSSRC,
		},
		Payload: s.data[i],
	}
}

func (s *BlockSender) fecPacket(j int) rtp.Packet {
	parity := s.parity[j]
	payload := make([]byte, 12+len(parity))
	payload[0] = s.ids.MediaPT
	payload[1] = byte(j)
	binary.BigEndian.PutUint16(payload[2:4], s.baseSeq)
	binary.BigEndian.PutUint32(payload[4:8], s.baseTs)
	binary.BigEndian.PutUint32(payload[8:12], s.ids.MediaSSRC)
	copy(payload[12:], parity)

	return rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    s.ids.FECPT,
			SequenceNumber: s.baseSeq + uint16(j),
			Timestamp:      s.baseTs,
			SSRC:           s.ids.FECSSRC,
		},
		Payload: payload,
	}
}

func fillDeterministic(buf []byte, seed int64, seq uint16) {
	x := splitmix64(uint64(seed) ^ uint64(seq))
	for i := range buf {
		x = splitmix64(x)
		buf[i] = byte(x)
	}
}
