package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/lars-sto/rtp-audio-fec-queue/internal/adapter"
	"github.com/lars-sto/rtp-audio-fec-queue/internal/sim"
)

func main() {
	var (
		scenarioName = flag.String("scenario", "single_loss_recovered", "scenario to run (see internal/sim.DefaultScenarios)")
		seed         = flag.Int64("seed", 1, "run seed")
		csvPath      = flag.String("csv", "", "optional: write the per-window time series to this CSV path")
	)
	flag.Parse()

	sc, ok := pickScenario(*scenarioName, *seed)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown scenario: %s\n", *scenarioName)
		os.Exit(1)
	}

	bus := adapter.NewStatusBus()
	newModeObserver(bus, sc.IDs.MediaSSRC)

	var rec sim.Recorder
	if *csvPath != "" {
		csvRec, err := sim.NewCSVRecorder(*csvPath)
		if err != nil {
			panic(err)
		}
		defer func() { _ = csvRec.Close() }()
		rec = csvRec
	}

	res, err := sim.RunScenario(sc, sim.RunOptions{Seed: *seed, Recorder: rec, Bus: bus})
	if err != nil {
		panic(err)
	}

	fmt.Printf("scenario=%s seed=%d duration=%s\n", res.Scenario, res.Seed, res.Duration)
	fmt.Printf("sent: media=%d fec=%d  dropped: media=%d fec=%d queue=%d wire=%d\n",
		res.SentMediaPkts, res.SentFECPkts, res.DroppedMediaPkts, res.DroppedFECPkts, res.DroppedQueuePkts, res.DroppedWirePkts)
	fmt.Printf("delivered=%d recovered_shards=%d placeholders=%d final_mode=%s final_loss_ratio=%.4f overhead_pkts=%.4f\n",
		res.DeliveredPkts, res.RecoveredShards, res.PlaceholdersEmitted, res.FinalMode, res.FinalLossRatio, res.OverheadRatioPkts)
}

func pickScenario(name string, seed int64) (sim.Scenario, bool) {
	for _, sc := range sim.DefaultScenarios(seed) {
		if sc.Name == name {
			return sc, true
		}
	}
	return sim.Scenario{}, false
}
