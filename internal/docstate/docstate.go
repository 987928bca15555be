// Package docstate defines the document lifecycle state machine and its
// append-only transition history.
package docstate

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidTransition indicates an event that is not permitted from the
// current state. The state is left unchanged.
var ErrInvalidTransition = errors.New("invalid state transition")

// ErrUnknownEvent indicates an event name outside the closed set.
var ErrUnknownEvent = errors.New("unknown event")

// ErrSystemEvent indicates a caller tried to fire an event reserved for the
// extraction and validation pipeline.
var ErrSystemEvent = errors.New("event is fired by the service only")

// State is a document lifecycle state.
type State string

const (
	Draft            State = "draft"
	Uploaded         State = "uploaded"
	Validated        State = "validated"
	ComplianceOK     State = "compliance_ok"
	ComplianceFailed State = "compliance_failed"
	Linked           State = "linked"
	Archived         State = "archived"
)

// Event triggers a state transition.
type Event string

const (
	// Create marks the first history entry. It is never passed to Transition.
	Create Event = "create"

	Submit              Event = "submit"
	ExtractionCompleted Event = "extraction_completed"
	RulesPassed         Event = "rules_passed"
	RulesFailed         Event = "rules_failed"
	Revalidate          Event = "revalidate"
	Link                Event = "link"
	Archive             Event = "archive"
)

type edge struct {
	from  State
	event Event
}

var transitions = map[edge]State{
	{Draft, Submit}:                 Uploaded,
	{Uploaded, ExtractionCompleted}: Validated,
	{Validated, RulesPassed}:        ComplianceOK,
	{Validated, RulesFailed}:        ComplianceFailed,
	{ComplianceFailed, Revalidate}:  Validated,
	{ComplianceOK, Link}:            Linked,
	{ComplianceFailed, Archive}:     Archived,
	{Linked, Archive}:               Archived,
}

var rank = map[State]int{
	Draft:            0,
	Uploaded:         1,
	Validated:        2,
	ComplianceOK:     3,
	ComplianceFailed: 3,
	Linked:           4,
	Archived:         5,
}

// Transition returns the state reached by applying ev in from.
func Transition(from State, ev Event) (State, error) {
	to, ok := transitions[edge{from, ev}]
	if !ok {
		return from, fmt.Errorf("%w: %s from %s", ErrInvalidTransition, ev, from)
	}
	return to, nil
}

// Initial returns the creation state for a new instance.
func Initial(draft bool) State {
	if draft {
		return Draft
	}
	return Uploaded
}

// ParseEvent validates a caller-supplied event name. Create is not accepted.
func ParseEvent(s string) (Event, error) {
	ev := Event(s)
	switch ev {
	case Submit, ExtractionCompleted, RulesPassed, RulesFailed, Revalidate, Link, Archive:
		return ev, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownEvent, s)
	}
}

// ParseUserEvent validates an event fired through the API. Only submit,
// link and archive are accepted; extraction and rule outcomes are recorded
// by the service.
func ParseUserEvent(s string) (Event, error) {
	ev, err := ParseEvent(s)
	if err != nil {
		return "", err
	}
	switch ev {
	case Submit, Link, Archive:
		return ev, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrSystemEvent, ev)
	}
}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	_, ok := rank[s]
	return ok
}

// Reached reports whether s has progressed at least as far as o along the
// lifecycle. COMPLIANCE_OK and COMPLIANCE_FAILED share a rank.
func (s State) Reached(o State) bool {
	return rank[s] >= rank[o]
}

// Evaluable reports whether a document in s may supply data to rules.
// Drafts, unextracted uploads and archived documents may not.
func (s State) Evaluable() bool {
	return s.Reached(Validated) && s != Archived
}

// StateTransition is one entry of an instance's audit history.
// The creation entry has an empty From and Event Create.
type StateTransition struct {
	ID         uuid.UUID `json:"id"`
	InstanceID uuid.UUID `json:"instance_id"`
	Seq        int       `json:"seq"`
	From       State     `json:"from_state,omitempty"`
	To         State     `json:"to_state"`
	Event      Event     `json:"event"`
	Actor      string    `json:"actor"`
	OccurredAt time.Time `json:"occurred_at"`
}

// History is an append-only transition log for one instance.
type History []StateTransition

// Current returns the state of the last entry, or "" for an empty history.
func (h History) Current() State {
	if len(h) == 0 {
		return ""
	}
	return h[len(h)-1].To
}

// Start returns a history holding only the creation entry.
func Start(instanceID uuid.UUID, initial State, actor string, at time.Time) History {
	return History{{
		ID:         uuid.New(),
		InstanceID: instanceID,
		Seq:        1,
		To:         initial,
		Event:      Create,
		Actor:      actor,
		OccurredAt: at,
	}}
}

// Apply validates ev against the current state and returns the entry that
// would be appended. h is not modified.
func (h History) Apply(ev Event, actor string, at time.Time) (StateTransition, error) {
	if len(h) == 0 {
		return StateTransition{}, fmt.Errorf("%w: empty history", ErrInvalidTransition)
	}
	from := h.Current()
	to, err := Transition(from, ev)
	if err != nil {
		return StateTransition{}, err
	}
	last := h[len(h)-1]
	return StateTransition{
		ID:         uuid.New(),
		InstanceID: last.InstanceID,
		Seq:        last.Seq + 1,
		From:       from,
		To:         to,
		Event:      ev,
		Actor:      actor,
		OccurredAt: at,
	}, nil
}

// Next builds the transition entry following a known current state and
// sequence. It is the storage-side counterpart of History.Apply.
func Next(instanceID uuid.UUID, from State, seq int, ev Event, actor string, at time.Time) (StateTransition, error) {
	to, err := Transition(from, ev)
	if err != nil {
		return StateTransition{}, err
	}
	return StateTransition{
		ID:         uuid.New(),
		InstanceID: instanceID,
		Seq:        seq + 1,
		From:       from,
		To:         to,
		Event:      ev,
		Actor:      actor,
		OccurredAt: at,
	}, nil
}
