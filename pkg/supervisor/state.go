package supervisor

// State is a step of the per-turn state machine.
type State int

const (
	Idle State = iota
	Classifying
	Dispatching
	Answering
	Completed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Classifying:
		return "classifying"
	case Dispatching:
		return "dispatching"
	case Answering:
		return "answering"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// TransitionFunc observes state changes of a turn.
type TransitionFunc func(threadID string, from, to State)

// turnState tracks the state of one turn and reports every change.
type turnState struct {
	threadID string
	current  State
	observe  TransitionFunc
}

func (t *turnState) to(next State) {
	from := t.current
	t.current = next
	logTransition(t.threadID, from, next)
	if t.observe != nil {
		t.observe(t.threadID, from, next)
	}
}
