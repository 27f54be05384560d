package formatter

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/felixgeelhaar/statekit"
)

// State is a step of the formatting pipeline.
type State = statekit.StateID

const (
	StateReceived     State = "received"
	StateHashing      State = "hashing"
	StateCacheLookup  State = "cache_lookup"
	StateCacheHit     State = "cache_hit"
	StateCacheMiss    State = "cache_miss"
	StatePrompting    State = "prompting"
	StateAICalling    State = "ai_calling"
	StateParsing      State = "parsing"
	StateRebuilding   State = "rebuilding"
	StateCacheWrite   State = "cache_write"
	StateDone         State = "done"
	StateInvalidInput State = "invalid_input"
	StateAIFailure    State = "ai_failure"
	StateParseFailure State = "parse_failure"
)

const (
	evHash    statekit.EventType = "HASH"
	evLookup  statekit.EventType = "LOOKUP"
	evHit     statekit.EventType = "HIT"
	evMiss    statekit.EventType = "MISS"
	evPrompt  statekit.EventType = "PROMPT"
	evCall    statekit.EventType = "CALL"
	evParse   statekit.EventType = "PARSE"
	evRebuild statekit.EventType = "REBUILD"
	evWrite   statekit.EventType = "WRITE"
	evDone    statekit.EventType = "DONE"
	evInvalid statekit.EventType = "INVALID"
	evFail    statekit.EventType = "FAIL"
)

// run is the machine context for one request.
type run struct {
	enteredAt time.Time
	timings   map[State]time.Duration
}

func stamp(c **run, _ statekit.Event) {
	if c == nil || *c == nil {
		return
	}
	(*c).enteredAt = time.Now()
}

// newMachine builds the request statechart. A hit goes straight to done;
// a miss runs prompt, call, parse, rebuild and queues the cache write.
func newMachine() (*statekit.MachineConfig[*run], error) {
	return statekit.NewMachine[*run]("format").
		WithInitial(StateReceived).
		WithContext(&run{}).
		WithAction("stamp", stamp).
		State(StateReceived).
			OnEntry("stamp").
			On(evHash).Target(StateHashing).
			On(evInvalid).Target(StateInvalidInput).
			Done().
		State(StateHashing).
			OnEntry("stamp").
			On(evLookup).Target(StateCacheLookup).
			Done().
		State(StateCacheLookup).
			OnEntry("stamp").
			On(evHit).Target(StateCacheHit).
			On(evMiss).Target(StateCacheMiss).
			Done().
		State(StateCacheHit).
			OnEntry("stamp").
			On(evDone).Target(StateDone).
			Done().
		State(StateCacheMiss).
			OnEntry("stamp").
			On(evPrompt).Target(StatePrompting).
			Done().
		State(StatePrompting).
			OnEntry("stamp").
			On(evCall).Target(StateAICalling).
			On(evFail).Target(StateAIFailure).
			Done().
		State(StateAICalling).
			OnEntry("stamp").
			On(evParse).Target(StateParsing).
			On(evFail).Target(StateAIFailure).
			Done().
		State(StateParsing).
			OnEntry("stamp").
			On(evRebuild).Target(StateRebuilding).
			On(evFail).Target(StateParseFailure).
			Done().
		State(StateRebuilding).
			OnEntry("stamp").
			On(evWrite).Target(StateCacheWrite).
			Done().
		State(StateCacheWrite).
			OnEntry("stamp").
			On(evDone).Target(StateDone).
			Done().
		State(StateDone).
			Final().
			OnEntry("stamp").
			Done().
		State(StateInvalidInput).
			Final().
			OnEntry("stamp").
			Done().
		State(StateAIFailure).
			Final().
			OnEntry("stamp").
			Done().
		State(StateParseFailure).
			Final().
			OnEntry("stamp").
			Done().
		Build()
}

// tracker drives one interpreter and records the visited states.
type tracker struct {
	interp *statekit.Interpreter[*run]
	run    *run
	states []State
}

func newTracker(machine *statekit.MachineConfig[*run]) *tracker {
	r := &run{timings: make(map[State]time.Duration)}
	interp := statekit.NewInterpreter(machine)
	interp.UpdateContext(func(c **run) {
		*c = r
	})
	interp.Start()
	return &tracker{
		interp: interp,
		run:    r,
		states: []State{interp.State().Value},
	}
}

// advance sends ev and fails if the machine did not move.
func (t *tracker) advance(ev statekit.EventType) error {
	from := t.interp.State().Value
	elapsed := time.Since(t.run.enteredAt)

	t.interp.Send(statekit.Event{Type: ev})

	to := t.interp.State().Value
	if to == from {
		return fmt.Errorf("no %s transition from state %s", ev, from)
	}
	t.run.timings[from] += elapsed
	t.states = append(t.states, to)
	return nil
}

// timings groups the time spent in each visited state, in visit order.
func (t *tracker) timings() slog.Attr {
	attrs := make([]any, 0, len(t.states))
	seen := make(map[State]bool, len(t.states))
	for _, st := range t.states {
		d, ok := t.run.timings[st]
		if !ok || seen[st] {
			continue
		}
		seen[st] = true
		attrs = append(attrs, slog.Duration(string(st), d))
	}
	return slog.Group("timings", attrs...)
}

func (t *tracker) current() State {
	return t.interp.State().Value
}

func (t *tracker) done() bool {
	return t.interp.Done()
}
