package core

// State is the control state of the execution engine.
type State uint8

// Engine states. The engine starts in StateReset and never halts.
const (
	StateReset State = iota
	StateFetch
	StateExecute
	StateMemory
	StateAtomic
	StateCSR
	StateCommit
	StateTrap
)

var stateNames = [...]string{
	StateReset:   "RESET",
	StateFetch:   "FETCH",
	StateExecute: "EXECUTE",
	StateMemory:  "MEMORY",
	StateAtomic:  "ATOMIC",
	StateCSR:     "CSR",
	StateCommit:  "COMMIT",
	StateTrap:    "TRAP",
}

// String returns the state name.
func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "UNKNOWN"
}

// atomicPhase is the sub-state of an atomic memory operation.
type atomicPhase uint8

const (
	atomicLoad atomicPhase = iota
	atomicModify
	atomicStore
)
