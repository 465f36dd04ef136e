package sim

import "time"

const (
	scenarioPacketRateHz = 200 // 1000ms / 5ms AudioPacketDuration
	scenarioPayloadBytes = 160
)

func baseIDs() RTPIDs {
	return RTPIDs{
		MediaSSRC: 0xDEADBEEF,
		FECSSRC:   0xDEADBEEF,
		MediaPT:   97,
		FECPT:     127,
	}
}

func baseSender() SenderSpec {
	return SenderSpec{
		PacketRateHz:  scenarioPacketRateHz,
		PayloadBytes:  scenarioPayloadBytes,
		StartSeq:      20,
		StartTS:       1000,
		TimestampStep: 5, // ms per packet, matching the receiver's AudioPacketDuration
	}
}

// SynchronizationSkipScenario exercises spec.md §8 scenario 1: the first
// block the queue sees is partial, and synchronizing only clears once a
// full block following it completes.
func SynchronizationSkipScenario(seed int64) Scenario {
	return Scenario{
		Name:     "synchronization_skip",
		Duration: 100 * time.Millisecond,
		IDs:      baseIDs(),
		Sender:   baseSender(),
		Link:     LinkSpec{},
		FECMode:  ModeFECEnabled,
		Seed:     seed,
	}
}

// InOrderFastPathScenario exercises scenario 2: a lossless in-order stream
// should never touch FEC recovery and should free every block promptly.
func InOrderFastPathScenario(seed int64) Scenario {
	return Scenario{
		Name:     "in_order_fast_path",
		Duration: 500 * time.Millisecond,
		IDs:      baseIDs(),
		Sender:   baseSender(),
		Link:     LinkSpec{},
		FECMode:  ModeFECEnabled,
		Seed:     seed,
	}
}

// SingleLossRecoveryScenario exercises scenario 3: independent 12%
// per-packet loss, so most blocks lose at most P shards and are recovered
// from the block's parity shards.
func SingleLossRecoveryScenario(seed int64) Scenario {
	return Scenario{
		Name:     "single_loss_recovered",
		Duration: 1 * time.Second,
		IDs:      baseIDs(),
		Sender:   baseSender(),
		Link: LinkSpec{
			Loss: NewScheduledBernoulliLoss("single_shard", seed, NewFloatSchedule(0.12)),
		},
		FECMode: ModeFECEnabled,
		Seed:    seed,
	}
}

// UnrecoverableLossScenario exercises scenario 5: enough shards are lost
// per block (more than P) that recovery fails and the block times out into
// discontinuity placeholders.
func UnrecoverableLossScenario(seed int64) Scenario {
	return Scenario{
		Name:     "unrecoverable_loss",
		Duration: 1 * time.Second,
		IDs:      baseIDs(),
		Sender:   baseSender(),
		Link: LinkSpec{
			Loss: NewScheduledBernoulliLoss("heavy_burst", seed, NewFloatSchedule(0.55)),
		},
		FECMode: ModeFECEnabled,
		Seed:    seed,
	}
}

// BlockSizeIncompatibilityScenario exercises scenario 6: a server that
// silently changes its payload size mid-stream, latching the receive-side
// incompatible-server fallback.
func BlockSizeIncompatibilityScenario(seed int64) Scenario {
	return Scenario{
		Name:     "block_size_incompatible",
		Duration: 200 * time.Millisecond,
		IDs:      baseIDs(),
		Sender:   baseSender(),
		Link:     LinkSpec{},
		FECMode:  ModeIncompatibleServer,
		Seed:     seed,
	}
}

// GilbertElliottScenario is a randomized burst-loss campaign over a
// longer-running stream, for soak-testing the queue's recovery and
// discontinuity paths together rather than in isolation.
func GilbertElliottScenario(name string, seed int64, dur time.Duration, pGB, pBG, pG, pB float64) Scenario {
	return Scenario{
		Name:     name,
		Duration: dur,
		IDs:      baseIDs(),
		Sender:   baseSender(),
		Link: LinkSpec{
			BaseOneWayDelay: 10 * time.Millisecond,
			Jitter:          2 * time.Millisecond,
			Loss:            NewGilbertElliottLoss(name, seed, pGB, pBG, pG, pB),
		},
		FECMode:       ModeFECEnabled,
		StatsInterval: 200 * time.Millisecond,
		Seed:          seed,
	}
}

// DefaultScenarios returns five of the six spec.md §8 scenarios (duplicate
// rejection has no scenario here) plus one randomized soak scenario, in a
// fixed order suitable for a campaign runner.
func DefaultScenarios(seed int64) []Scenario {
	return []Scenario{
		SynchronizationSkipScenario(seed),
		InOrderFastPathScenario(seed),
		SingleLossRecoveryScenario(seed),
		UnrecoverableLossScenario(seed),
		BlockSizeIncompatibilityScenario(seed),
		GilbertElliottScenario("gilbert_soak", seed, 5*time.Second, 0.05, 0.3, 0.01, 0.4),
	}
}
