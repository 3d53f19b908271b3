package integration

// State is a step of the scenario pipeline.
type State string

// Pipeline states, in execution order.
const (
	StateInit          State = "INIT"
	StateParseTraffic  State = "PARSE_TRAFFIC"
	StateParseAQI      State = "PARSE_AQI"
	StateFetchBaseline State = "FETCH_BASELINE"
	StateApplyTraffic  State = "APPLY_TRAFFIC_COEFFICIENT"
	StateSimulateFinal State = "SIMULATE_FINAL"
	StateDone          State = "DONE"
	StateError         State = "ERROR"
)

var transitions = map[State]State{
	StateInit:          StateParseTraffic,
	StateParseTraffic:  StateParseAQI,
	StateParseAQI:      StateFetchBaseline,
	StateFetchBaseline: StateApplyTraffic,
	StateApplyTraffic:  StateSimulateFinal,
	StateSimulateFinal: StateDone,
}

// Next returns the state that follows s. Terminal states return themselves.
func (s State) Next() State {
	if next, ok := transitions[s]; ok {
		return next
	}
	return s
}

// Terminal reports whether the pipeline stops at s.
func (s State) Terminal() bool {
	return s == StateDone || s == StateError
}

// Path returns the states of a successful run, from INIT to DONE.
func Path() []State {
	path := []State{StateInit}
	for s := StateInit; !s.Terminal(); {
		s = s.Next()
		path = append(path, s)
	}
	return path
}
