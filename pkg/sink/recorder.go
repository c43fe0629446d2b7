package sink

import (
	"sync"

	"github.com/fluxorio/playground/pkg/task"
)

// Recorder keeps every update in arrival order.
type Recorder struct {
	mu      sync.Mutex
	history []Update
}

func NewRecorder() *Recorder { return &Recorder{} }

func (r *Recorder) OnUpdate(u Update) {
	r.mu.Lock()
	r.history = append(r.history, u)
	r.mu.Unlock()
}

// History returns a copy of all updates.
func (r *Recorder) History() []Update {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Update, len(r.history))
	copy(out, r.history)
	return out
}

// States returns the states published for id, in order.
func (r *Recorder) States(id TaskID) []task.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []task.State
	for _, u := range r.history {
		if u.Task == id {
			out = append(out, u.State)
		}
	}
	return out
}

// Last returns the last state published for id.
func (r *Recorder) Last(id TaskID) (task.State, bool) {
	states := r.States(id)
	if len(states) == 0 {
		return task.StateInitial, false
	}
	return states[len(states)-1], true
}

// Reset drops the history.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.history = nil
	r.mu.Unlock()
}
