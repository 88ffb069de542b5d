package hls

import (
	"errors"
	"testing"
)

func TestJobAdvancesInOrder(t *testing.T) {
	job := newJob()
	if job.ID == "" || job.State != StateIdle {
		t.Fatalf("newJob() = %+v, want idle job with an ID", job)
	}
	for _, s := range []State{StateResolving, StateFetching, StateMerging, StateDone} {
		if err := job.advance(s); err != nil {
			t.Fatalf("advance(%s) error = %v", s, err)
		}
	}
	if err := job.advance(StateDone); err == nil {
		t.Fatal("advance() out of a terminal state succeeded")
	}
	job.fail(errors.New("late"))
	if job.State != StateDone || job.Err != nil {
		t.Fatalf("fail() changed a finished job: %+v", job)
	}
}

func TestJobRejectsSkipsAndReentry(t *testing.T) {
	job := newJob()
	if err := job.advance(StateFetching); err == nil {
		t.Fatal("advance(idle -> fetching) succeeded")
	}
	job.advance(StateResolving)
	if err := job.advance(StateResolving); err == nil {
		t.Fatal("re-entering resolving succeeded")
	}
	if err := job.advance(StateFailed); err == nil {
		t.Fatal("advance() into failed succeeded, want fail() to be the only way")
	}
}

func TestJobFailFromAnyActiveState(t *testing.T) {
	for _, reached := range []State{StateIdle, StateResolving, StateFetching, StateMerging} {
		t.Run(reached.String(), func(t *testing.T) {
			job := newJob()
			for s := StateResolving; s <= reached; s++ {
				job.advance(s)
			}
			cause := errors.New("boom")
			if err := job.fail(cause); err != cause {
				t.Fatalf("fail() = %v, want the cause back", err)
			}
			if job.State != StateFailed || job.Err != cause {
				t.Fatalf("job = %+v, want failed with cause", job)
			}
		})
	}
}
