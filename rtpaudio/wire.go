package rtpaudio

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pion/rtp"
)

var (
	// ErrPacketTooShort is returned (and logged, never propagated past
	// AddPacket) when a wire packet is too small to hold the header it
	// claims to carry.
	ErrPacketTooShort = errors.New("rtpaudio: packet too small")
	// ErrInvalidPayloadType is returned for any RTP payload type other
	// than the audio-data or FEC payload types.
	ErrInvalidPayloadType = errors.New("rtpaudio: invalid payload type")
	// ErrShardIndexOutOfRange is returned when an FEC packet's
	// fecShardIndex is >= P.
	ErrShardIndexOutOfRange = errors.New("rtpaudio: fec shard index out of range")
)

// fecHeader is the wire-format FEC header that immediately follows the RTP
// header on payload-type-127 packets. All multi-byte fields are
// big-endian on the wire.
type fecHeader struct {
	PayloadType        uint8
	FECShardIndex      uint8
	BaseSequenceNumber uint16
	BaseTimestamp      uint32
	SSRC               uint32
}

func parseFECHeader(buf []byte) (fecHeader, error) {
	if len(buf) < fecHeaderSize {
		return fecHeader{}, fmt.Errorf("%w: fec header needs %d bytes, got %d", ErrPacketTooShort, fecHeaderSize, len(buf))
	}
	h := fecHeader{
		PayloadType:        buf[0],
		FECShardIndex:      buf[1],
		BaseSequenceNumber: binary.BigEndian.Uint16(buf[2:4]),
		BaseTimestamp:      binary.BigEndian.Uint32(buf[4:8]),
		SSRC:               binary.BigEndian.Uint32(buf[8:12]),
	}
	if h.FECShardIndex >= P {
		return fecHeader{}, fmt.Errorf("%w: %d", ErrShardIndexOutOfRange, h.FECShardIndex)
	}
	return h, nil
}

func (h fecHeader) marshalTo(dst []byte) {
	dst[0] = h.PayloadType
	dst[1] = h.FECShardIndex
	binary.BigEndian.PutUint16(dst[2:4], h.BaseSequenceNumber)
	binary.BigEndian.PutUint32(dst[4:8], h.BaseTimestamp)
	binary.BigEndian.PutUint32(dst[8:12], h.SSRC)
}

// parseRTPHeader reads the fixed 12-byte RTP header at the front of buf
// using pion/rtp, rejecting anything that isn't the plain
// version-2/no-padding/no-CSRC form this protocol uses. Extensions are
// rejected by parseInbound.
func parseRTPHeader(buf []byte) (rtp.Header, error) {
	var h rtp.Header
	n, err := h.Unmarshal(buf)
	if err != nil {
		return rtp.Header{}, fmt.Errorf("rtpaudio: parse rtp header: %w", err)
	}
	if n < rtpHeaderSize {
		return rtp.Header{}, fmt.Errorf("%w: rtp header", ErrPacketTooShort)
	}
	if h.Version != 2 || h.Padding || len(h.CSRC) > 0 {
		return rtp.Header{}, fmt.Errorf("rtpaudio: unsupported rtp header form (version %d, padding %t, %d csrc)", h.Version, h.Padding, len(h.CSRC))
	}
	return h, nil
}

// inboundKind classifies a raw wire packet without fully parsing it.
type inboundKind int

const (
	kindAudio inboundKind = iota
	kindFEC
)

// inboundPacket is the fully parsed form of one wire packet, used
// internally by the assembler.
type inboundPacket struct {
	kind inboundKind

	rtpHeader  rtp.Header
	rtpHdrLen  int
	fec        fecHeader
	audioBytes []byte // raw wire bytes, header included
}

// parseInbound classifies and parses a raw inbound packet. Malformed or
// unrecognized packets return an error; AddPacket logs it and returns
// StatusAccepted (0) without propagating the error, per the fault
// classification in spec.md §7.
func parseInbound(buf []byte) (inboundPacket, error) {
	if len(buf) < rtpHeaderSize {
		return inboundPacket{}, fmt.Errorf("%w: rtp header", ErrPacketTooShort)
	}
	payloadType := buf[1] & 0x7f

	h, err := parseRTPHeader(buf)
	if err != nil {
		return inboundPacket{}, err
	}
	hdrLen := rtpHeaderSize + len(h.CSRC)*4
	if h.Extension {
		// Not used by this protocol; treat as malformed rather than
		// attempting to skip an extension we don't understand.
		return inboundPacket{}, fmt.Errorf("%w: unexpected rtp extension", ErrInvalidPayloadType)
	}

	switch payloadType {
	case payloadTypeAudio:
		if len(buf) < hdrLen {
			return inboundPacket{}, fmt.Errorf("%w: audio data", ErrPacketTooShort)
		}
		return inboundPacket{
			kind:       kindAudio,
			rtpHeader:  h,
			rtpHdrLen:  hdrLen,
			audioBytes: buf,
		}, nil
	case payloadTypeFEC:
		if len(buf) < hdrLen+fecHeaderSize {
			return inboundPacket{}, fmt.Errorf("%w: fec data", ErrPacketTooShort)
		}
		fh, err := parseFECHeader(buf[hdrLen : hdrLen+fecHeaderSize])
		if err != nil {
			return inboundPacket{}, err
		}
		return inboundPacket{
			kind:       kindFEC,
			rtpHeader:  h,
			rtpHdrLen:  hdrLen,
			fec:        fh,
			audioBytes: buf,
		}, nil
	default:
		return inboundPacket{}, fmt.Errorf("%w: %d", ErrInvalidPayloadType, payloadType)
	}
}

// blockSize returns the inner payload length this packet implies for its
// block (the data carried after all headers).
func (p inboundPacket) blockSize() int {
	if p.kind == kindAudio {
		return len(p.audioBytes) - p.rtpHdrLen
	}
	return len(p.audioBytes) - p.rtpHdrLen - fecHeaderSize
}

// fecPayload returns the parity bytes carried by an FEC packet (the bytes
// after the RTP header and FEC header).
func (p inboundPacket) fecPayload() []byte {
	return p.audioBytes[p.rtpHdrLen+fecHeaderSize:]
}

// synthesizeHeader writes a recovered RTP header (version byte 0x80, no
// padding/extension/CSRC) for data shard index i of a block into dst[:12].
func synthesizeHeader(dst []byte, payloadType uint8, seq uint16, ts uint32, ssrc uint32) {
	dst[0] = 0x80
	dst[1] = payloadType
	binary.BigEndian.PutUint16(dst[2:4], seq)
	binary.BigEndian.PutUint32(dst[4:8], ts)
	binary.BigEndian.PutUint32(dst[8:12], ssrc)
}
