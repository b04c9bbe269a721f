package redact

import "fmt"

// State is a stage in a document's redaction lifecycle.
type State int

const (
	StateRendered State = iota
	StateRecognized
	StateMatched
	StateNoMatch
	StateRedacted
	StateReassembled
	StateVerified
	StateLeakDetected
)

func (s State) String() string {
	switch s {
	case StateRendered:
		return "RENDERED"
	case StateRecognized:
		return "RECOGNIZED"
	case StateMatched:
		return "MATCHED"
	case StateNoMatch:
		return "NO_MATCH"
	case StateRedacted:
		return "REDACTED"
	case StateReassembled:
		return "REASSEMBLED"
	case StateVerified:
		return "VERIFIED"
	case StateLeakDetected:
		return "LEAK_DETECTED"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the pipeline may stop in this state. REASSEMBLED
// is terminal only when verification is disabled.
func (s State) Terminal() bool {
	switch s {
	case StateNoMatch, StateReassembled, StateVerified, StateLeakDetected:
		return true
	}
	return false
}

// Event is a pipeline observation that drives a state transition.
type Event int

const (
	EventRecognized Event = iota
	EventSpansFound
	EventNoSpans
	EventBoxesDrawn
	EventAssembled
	EventVerifyClean
	EventVerifyLeak
)

func (e Event) String() string {
	switch e {
	case EventRecognized:
		return "recognized"
	case EventSpansFound:
		return "spans-found"
	case EventNoSpans:
		return "no-spans"
	case EventBoxesDrawn:
		return "boxes-drawn"
	case EventAssembled:
		return "assembled"
	case EventVerifyClean:
		return "verify-clean"
	case EventVerifyLeak:
		return "verify-leak"
	}
	return fmt.Sprintf("Event(%d)", int(e))
}

type transitionKey struct {
	from State
	on   Event
}

// transitions is the complete legal move set. Keeping it as data makes the
// "leak always dominates" rule enforceable and testable in isolation: the
// only way out of verification is VERIFIED or LEAK_DETECTED, and nothing
// transitions out of LEAK_DETECTED.
var transitions = map[transitionKey]State{
	{StateRendered, EventRecognized}:     StateRecognized,
	{StateRecognized, EventSpansFound}:   StateMatched,
	{StateRecognized, EventNoSpans}:      StateNoMatch,
	{StateMatched, EventBoxesDrawn}:      StateRedacted,
	{StateRedacted, EventAssembled}:      StateReassembled,
	{StateReassembled, EventVerifyClean}: StateVerified,
	{StateReassembled, EventVerifyLeak}:  StateLeakDetected,
}

// Transition applies an event to a state, failing on illegal moves.
func Transition(s State, e Event) (State, error) {
	next, ok := transitions[transitionKey{s, e}]
	if !ok {
		return s, fmt.Errorf("redact: illegal transition %s on %s", s, e)
	}
	return next, nil
}
