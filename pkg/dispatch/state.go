package dispatch

// State is the dispatcher's position in the insertion cycle.
type State int

const (
	Idle State = iota
	Probing
	Reporting
	Closing
	Fault
)

var stateNames = [...]string{"idle", "probing", "reporting", "closing", "fault"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}
