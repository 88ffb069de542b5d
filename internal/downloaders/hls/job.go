package hls

import (
	"fmt"

	"github.com/google/uuid"
)

type State int

const (
	StateIdle State = iota
	StateResolving
	StateFetching
	StateMerging
	StateDone
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateResolving:
		return "resolving"
	case StateFetching:
		return "fetching"
	case StateMerging:
		return "merging"
	case StateDone:
		return "done"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Job is the state of one playlist download. Only the Orchestrator mutates it.
type Job struct {
	ID        string
	Total     int
	Completed int
	// Current is the ordinal of the segment being fetched, 0 outside Fetching.
	Current int
	State   State
	Err     error
}

func newJob() *Job {
	return &Job{ID: uuid.New().String(), State: StateIdle}
}

// advance moves the job forward along Idle -> Resolving -> Fetching -> Merging -> Done.
// States are never re-entered and nothing leaves a terminal state.
func (j *Job) advance(to State) error {
	if j.State.Terminal() {
		return fmt.Errorf("job %s already %s, cannot move to %s", j.ID, j.State, to)
	}
	if to == StateFailed || to != j.State+1 {
		return fmt.Errorf("invalid transition %s -> %s", j.State, to)
	}
	j.State = to
	if to != StateFetching {
		j.Current = 0
	}
	return nil
}

// fail records err and moves the job to Failed from any non-terminal state.
func (j *Job) fail(err error) error {
	if j.State.Terminal() {
		return err
	}
	j.State = StateFailed
	j.Current = 0
	j.Err = err
	return err
}
