package sim

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
)

type SummaryRow struct {
	Scenario string
	Mode     Mode
	Seed     int64

	DurationMs int64

	FinalLossRatio float64

	OverheadRatioBytes float64
	OverheadRatioPkts  float64

	MeanRecoveredPerWindow    float64
	MeanPlaceholdersPerWindow float64
	MeanLossWindow            float64
	MaxLossWindow             float64

	SentMediaPkts int64
	SentFECPkts   int64
	DroppedMedia  int64
	DroppedFEC    int64
	QueueDrops    int64
	WireDrops     int64

	DeliveredPkts       int64
	RecoveredShards     int64
	PlaceholdersEmitted int64
}

type SummaryCSVWriter struct {
	f *os.File
	w *csv.Writer
}

func NewSummaryCSVWriter(path string) (*SummaryCSVWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)

	hdr := []string{
		"scenario",
		"mode",
		"seed",
		"duration_ms",
		"final_loss_ratio",
		"overhead_ratio_bytes",
		"overhead_ratio_pkts",
		"mean_recovered_per_window",
		"mean_placeholders_per_window",
		"mean_loss_window",
		"max_loss_window",
		"sent_media_pkts",
		"sent_fec_pkts",
		"dropped_media_pkts",
		"dropped_fec_pkts",
		"queue_drops_pkts",
		"wire_drops_pkts",
		"delivered_pkts",
		"recovered_shards",
		"placeholders_emitted",
	}
	if err := w.Write(hdr); err != nil {
		_ = f.Close()
		return nil, err
	}
	w.Flush()
	return &SummaryCSVWriter{f: f, w: w}, nil
}

func (s *SummaryCSVWriter) WriteRow(r SummaryRow) error {
	row := []string{
		r.Scenario,
		string(r.Mode),
		strconv.FormatInt(r.Seed, 10),
		strconv.FormatInt(r.DurationMs, 10),

		ff(r.FinalLossRatio),

		ff(r.OverheadRatioBytes),
		ff(r.OverheadRatioPkts),

		ff(r.MeanRecoveredPerWindow),
		ff(r.MeanPlaceholdersPerWindow),

		ff(r.MeanLossWindow),
		ff(r.MaxLossWindow),

		strconv.FormatInt(r.SentMediaPkts, 10),
		strconv.FormatInt(r.SentFECPkts, 10),
		strconv.FormatInt(r.DroppedMedia, 10),
		strconv.FormatInt(r.DroppedFEC, 10),
		strconv.FormatInt(r.QueueDrops, 10),
		strconv.FormatInt(r.WireDrops, 10),
		strconv.FormatInt(r.DeliveredPkts, 10),
		strconv.FormatInt(r.RecoveredShards, 10),
		strconv.FormatInt(r.PlaceholdersEmitted, 10),
	}
	return s.w.Write(row)
}

func (s *SummaryCSVWriter) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		_ = s.f.Close()
		return err
	}
	return s.f.Close()
}
