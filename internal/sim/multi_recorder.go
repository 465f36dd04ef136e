package sim

// multiRecorder lets one scenario run feed both a per-sample CSVRecorder and
// an aggregating SummaryRecorder from the same RunScenario call, instead of
// running the simulation twice to populate each output.
type multiRecorder struct {
	rs []Recorder
}

// MultiRecorder builds a Recorder that forwards every OnSample/Close call to
// each of rs in order; nil entries are skipped so callers can pass an
// optional recorder (e.g. a CSV path the user didn't request) unconditionally.
func MultiRecorder(rs ...Recorder) Recorder {
	out := &multiRecorder{rs: make([]Recorder, 0, len(rs))}
	for _, r := range rs {
		if r != nil {
			out.rs = append(out.rs, r)
		}
	}
	return out
}

func (m *multiRecorder) OnSample(s TimeSample) {
	for _, r := range m.rs {
		r.OnSample(s)
	}
}

// Close closes every wrapped recorder regardless of earlier failures,
// reporting the first error back to the caller.
func (m *multiRecorder) Close() error {
	var firstErr error
	for _, r := range m.rs {
		if err := r.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
