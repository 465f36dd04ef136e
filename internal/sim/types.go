package sim

import (
	"sort"
	"time"
)

// Mode selects how the simulated sender behaves for a scenario: a
// cooperating server producing consistent block sizes, or one that changes
// its block size mid-session without renegotiating, exercising the
// receive-side incompatible-server latch.
type Mode string

const (
	ModeFECEnabled         Mode = "fec_enabled"
	ModeIncompatibleServer Mode = "incompatible_server"
)

// RTPIDs names the SSRCs and payload types a scenario's media and FEC
// streams use on the wire.
type RTPIDs struct {
	MediaSSRC uint32
	FECSSRC   uint32
	MediaPT   uint8
	FECPT     uint8
}

// SenderSpec describes the simulated sender's fixed packetization:
// PacketRateHz wire packets per second, data and parity shards sharing
// that pacing, with PayloadBytes per data shard (spec.md's blockSize).
type SenderSpec struct {
	PacketRateHz  int
	PayloadBytes  int
	StartSeq      uint16
	StartTS       uint32
	TimestampStep uint32
	StartTime     time.Time
}

func (s SenderSpec) Interval() time.Duration {
	if s.PacketRateHz <= 0 {
		return 0
	}
	return time.Second / time.Duration(s.PacketRateHz)
}

func (s SenderSpec) MediaBitrateBps(includeRTPHeader bool) float64 {
	if s.PacketRateHz <= 0 || s.PayloadBytes <= 0 {
		return 0
	}
	bytesPerPkt := float64(s.PayloadBytes)
	if includeRTPHeader {
		bytesPerPkt += 12
	}
	return bytesPerPkt * 8 * float64(s.PacketRateHz)
}

// LinkSpec is the wire model a scenario's packets travel through: fixed
// delay, jitter, a capacity schedule, and a loss model.
type LinkSpec struct {
	BaseOneWayDelay time.Duration
	Jitter          time.Duration
	MaxQueueDelay   time.Duration
	CapacityBps     *FloatSchedule
	Loss            LossModel
	Seed            int64
}

// Scenario is one named simulation run: a sender producing D+P shard
// blocks, a wire model, and the FEC-compatibility mode to exercise.
type Scenario struct {
	Name     string
	Duration time.Duration

	IDs    RTPIDs
	Sender SenderSpec
	Link   LinkSpec

	FECMode Mode

	StatsInterval time.Duration

	Seed int64
}

// FloatSchedule is a piecewise-constant value over the scenario's elapsed
// run time, used for both LinkSpec.CapacityBps and loss-probability
// schedules: a single run can ramp link capacity down or dial up loss
// partway through without needing a second scenario.
type FloatSchedule struct {
	Points  []FloatPoint
	Default float64
}

type FloatPoint struct {
	At    time.Duration
	Value float64
}

// NewFloatSchedule builds a schedule from unordered points, sorting them by
// At so FloatSchedule.At's linear scan can assume ascending order.
func NewFloatSchedule(defaultVal float64, points ...FloatPoint) *FloatSchedule {
	p := append([]FloatPoint(nil), points...)
	sort.Slice(p, func(i, j int) bool { return p[i].At < p[j].At })
	return &FloatSchedule{Points: p, Default: defaultVal}
}

// At returns the schedule's value at elapsed time t: the value of the last
// point at or before t, or Default if t precedes every point.
func (s *FloatSchedule) At(t time.Duration) float64 {
	if s == nil || len(s.Points) == 0 {
		if s == nil {
			return 0
		}
		return s.Default
	}
	v := s.Default
	for i := 0; i < len(s.Points); i++ {
		if t < s.Points[i].At {
			break
		}
		v = s.Points[i].Value
	}
	return v
}
