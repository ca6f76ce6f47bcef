package model

// Phase is the transient state of one asynchronous request:
// Idle -> Loading -> {Succeeded | Failed}. There is no retry.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseSucceeded
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseSucceeded:
		return "success"
	case PhaseFailed:
		return "error"
	}
	return "?"
}

// Settled reports whether a request has finished, either way.
func (p Phase) Settled() bool {
	return p == PhaseSucceeded || p == PhaseFailed
}
