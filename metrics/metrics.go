package metrics

import "time"

// Recorder receives operational counters and latencies.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomePending = "pending"
)

// Track records both a counter and a latency sample for one finished operation.
func Track(r Recorder, name string, start time.Time, err error) {
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	TrackOutcome(r, name, start, outcome)
}

func TrackOutcome(r Recorder, name string, start time.Time, outcome string) {
	labels := map[string]string{"outcome": outcome}
	r.IncCounter(name, labels)
	r.ObserveLatency(name, time.Since(start), labels)
}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}
