// internal/sim/runner.go
package sim

import (
	"math"
	"time"

	"github.com/lars-sto/rtp-audio-fec-queue/internal/adapter"
	"github.com/lars-sto/rtp-audio-fec-queue/rtpaudio"
)

type RunOptions struct {
	Seed     int64
	Recorder Recorder
	Bus      *adapter.StatusBus // optional; published on every queue Mode transition
}

func RunScenario(sc Scenario, opt RunOptions) (RunResult, error) {
	res := RunResult{
		Scenario: sc.Name,
		Seed:     opt.Seed,
		Duration: sc.Duration,
	}

	linkSpec := sc.Link
	linkSpec.Seed = opt.Seed
	linkSpec.Loss = reseedLossModel(sc.Link.Loss, opt.Seed)

	start := sc.Sender.StartTime
	if start.IsZero() {
		start = time.Unix(0, 0)
	}
	end := start.Add(sc.Duration)

	link := NewLink(linkSpec, start)

	sender, err := NewBlockSender(sc.IDs, sc.Sender, opt.Seed, sc.FECMode)
	if err != nil {
		return res, err
	}
	recv, err := NewReceiver(sc.Sender.Interval())
	if err != nil {
		return res, err
	}
	defer recv.Close()

	lastMode := int(recv.Mode())

	var (
		sentMediaPkts  int64
		sentFECPkts    int64
		sentMediaBytes int64
		sentFECBytes   int64

		droppedMediaPkts int64
		droppedFECPkts   int64
		droppedQueuePkts int64
		droppedWirePkts  int64
	)

	var winSentMedia int64
	var winDropMedia int64
	var winBytesTotal int64

	var now time.Time

	interval := sc.Sender.Interval()
	if interval <= 0 {
		interval = 20 * time.Millisecond
	}
	statsEvery := sc.StatsInterval
	if statsEvery <= 0 {
		statsEvery = 200 * time.Millisecond
	}

	nextMedia := start
	nextStats := start.Add(statsEvery)

	// Main event loop: process next (delivery | stats | media) in time order,
	// delivery breaking ties first so a packet due at exactly a stats or
	// media boundary is reflected in that same window.
	for {
		tDel, hasDel := peekDelivery(link)

		mediaEnabled := nextMedia.Before(end) || nextMedia.Equal(end)
		statsEnabled := nextStats.Before(end) || nextStats.Equal(end)

		next := time.Time{}
		set := false

		if hasDel {
			next = tDel
			set = true
		}
		if statsEnabled && (!set || nextStats.Before(next)) {
			next = nextStats
			set = true
		}
		if mediaEnabled && (!set || nextMedia.Before(next)) {
			next = nextMedia
			set = true
		}

		if !set {
			break
		}

		now = next

		if hasDel && now.Equal(tDel) {
			dp, _ := link.Next()
			recv.OnPacket(dp.Pkt, dp.IsFEC)
			publishModeChange(opt.Bus, sc.IDs.MediaSSRC, &lastMode, recv.Mode())
			continue
		}

		if statsEnabled && now.Equal(nextStats) {
			elapsed := now.Sub(start)

			loss := 0.0
			if winSentMedia > 0 {
				loss = float64(winDropMedia) / float64(winSentMedia)
				loss = clamp01(loss)
			}

			if opt.Recorder != nil {
				snap := recv.Snapshot()
				opt.Recorder.OnSample(TimeSample{
					T:                   elapsed,
					Mode:                snap.Mode.String(),
					LossWindow:          loss,
					MediaRate:           sc.Sender.MediaBitrateBps(true),
					SentMedia:           sentMediaPkts,
					SentFEC:             sentFECPkts,
					DroppedMedia:        droppedMediaPkts,
					DroppedFEC:          droppedFECPkts,
					QueueDrops:          droppedQueuePkts,
					WireDrops:           droppedWirePkts,
					RecoveredShards:     snap.Recovered,
					PlaceholdersEmitted: snap.Placeholders,
				})
			}

			winSentMedia = 0
			winDropMedia = 0
			winBytesTotal = 0

			nextStats = nextStats.Add(statsEvery)
			continue
		}

		if mediaEnabled && now.Equal(nextMedia) {
			pkt, isFEC := sender.Next()
			out := link.Send(pkt, now, isFEC)

			if isFEC {
				sentFECPkts++
				sentFECBytes += int64(out.SizeBytes)
			} else {
				sentMediaPkts++
				sentMediaBytes += int64(out.SizeBytes)
				winSentMedia++
			}
			winBytesTotal += int64(out.SizeBytes)

			if out.Dropped {
				if isFEC {
					droppedFECPkts++
				} else {
					droppedMediaPkts++
					winDropMedia++
				}
				switch out.Reason {
				case DropQueue:
					droppedQueuePkts++
				case DropWireLoss, DropZeroCap:
					droppedWirePkts++
				}
			}

			// Every wire packet, media or parity, occupies one pacing
			// slot; a block's D data shards are followed immediately by
			// its P parity shards at the same cadence.
			nextMedia = nextMedia.Add(interval)
			continue
		}
	}

	// Drain remaining deliveries after end.
	for {
		tDel, hasDel := peekDelivery(link)
		if !hasDel {
			break
		}
		now = tDel
		dp, _ := link.Next()
		recv.OnPacket(dp.Pkt, dp.IsFEC)
		publishModeChange(opt.Bus, sc.IDs.MediaSSRC, &lastMode, recv.Mode())
	}

	if opt.Recorder != nil {
		_ = opt.Recorder.Close()
	}

	snap := recv.Snapshot()

	res.SentMediaPkts = sentMediaPkts
	res.SentFECPkts = sentFECPkts
	res.SentMediaBytes = sentMediaBytes
	res.SentFECBytes = sentFECBytes

	res.DroppedMediaPkts = droppedMediaPkts
	res.DroppedFECPkts = droppedFECPkts
	res.DroppedQueuePkts = droppedQueuePkts
	res.DroppedWirePkts = droppedWirePkts

	res.RecvMediaPkts = snap.RecvMedia
	res.RecvFECPkts = snap.RecvFEC
	res.DeliveredPkts = snap.Delivered
	res.RecoveredShards = snap.Recovered
	res.PlaceholdersEmitted = snap.Placeholders
	res.FinalMode = snap.Mode

	if sentMediaPkts > 0 {
		res.OverheadRatioPkts = float64(sentFECPkts) / float64(sentMediaPkts)
		res.FinalLossRatio = clamp01(1.0 - float64(snap.Delivered)/float64(sentMediaPkts))
	}
	if sentMediaBytes > 0 {
		res.OverheadRatioBytes = float64(sentFECBytes) / float64(sentMediaBytes)
	}

	return res, nil
}

func publishModeChange(bus *adapter.StatusBus, ssrc uint32, last *int, cur rtpaudio.Mode) {
	curInt := int(cur)
	if curInt == *last {
		return
	}
	if bus != nil {
		bus.Publish(adapter.ModeEvent{SSRC: ssrc, From: *last, To: curInt})
	}
	*last = curInt
}

func peekDelivery(l *Link) (time.Time, bool) {
	if l == nil || l.pq.Len() == 0 {
		return time.Time{}, false
	}
	return l.pq[0].at, true
}

func clamp01(x float64) float64 {
	return math.Max(0, math.Min(1, x))
}

func reseedLossModel(m LossModel, seed int64) LossModel {
	switch v := m.(type) {
	case *ScheduledBernoulliLoss:
		return NewScheduledBernoulliLoss(v.name, seed, v.P)
	case *GilbertElliottLoss:
		return NewGilbertElliottLoss(v.NameStr, seed, v.PGB, v.PBG, v.PG, v.PB)
	default:
		return m
	}
}
