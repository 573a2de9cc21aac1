package gpu

// Status classifies acquire and present outcomes. Suboptimal and OutOfDate are
// routine steady-state results; only Fatal is accompanied by an error.
type Status int

const (
	StatusOK Status = iota
	StatusSuboptimal
	StatusOutOfDate
	StatusFatal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusSuboptimal:
		return "suboptimal"
	case StatusOutOfDate:
		return "out-of-date"
	}
	return "fatal"
}

// Stale reports whether the swapchain should be rebuilt.
func (s Status) Stale() bool {
	return s == StatusSuboptimal || s == StatusOutOfDate
}
