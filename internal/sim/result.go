package sim

import (
	"time"

	"github.com/lars-sto/rtp-audio-fec-queue/rtpaudio"
)

type RunResult struct {
	Scenario string
	Seed     int64

	Duration time.Duration

	SentMediaPkts  int64
	SentFECPkts    int64
	SentMediaBytes int64
	SentFECBytes   int64

	DroppedMediaPkts int64
	DroppedFECPkts   int64
	DroppedQueuePkts int64
	DroppedWirePkts  int64

	RecvMediaPkts int64
	RecvFECPkts   int64

	DeliveredPkts       int64
	RecoveredShards     int64
	PlaceholdersEmitted int64

	FinalMode rtpaudio.Mode

	OverheadRatioPkts  float64
	OverheadRatioBytes float64

	// FinalLossRatio is 1 - delivered/sent: the fraction of the media
	// stream the decoder never got a real or recovered packet for.
	FinalLossRatio float64
}
