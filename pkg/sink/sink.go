// Package sink carries per-task state publications from the orchestrator
// to observers. A Hub stamps each publication with a per-task sequence
// number and fans it out, in order, to the observers it was built with.
package sink

import (
	"fmt"
	"sync"
	"time"

	"github.com/fluxorio/playground/pkg/task"
)

// TaskID names a tracked task slot.
type TaskID string

const (
	Task1 TaskID = "task1"
	Task2 TaskID = "task2"
	Task3 TaskID = "task3"
)

// TaskIDs lists the tracked slots in display order.
var TaskIDs = []TaskID{Task1, Task2, Task3}

// ParseTaskID validates s as one of TaskIDs.
func ParseTaskID(s string) (TaskID, error) {
	for _, id := range TaskIDs {
		if string(id) == s {
			return id, nil
		}
	}
	return "", fmt.Errorf("unknown task %q", s)
}

// Update is one sequenced state publication.
type Update struct {
	Task  TaskID     `json:"task"`
	State task.State `json:"state"`
	Seq   uint64     `json:"seq"`
	At    time.Time  `json:"at"`
}

// Sink accepts state publications.
type Sink interface {
	Publish(id TaskID, s task.State)
}

// Observer receives sequenced updates. OnUpdate is called with the task's
// lock held, so it must not block and must not publish.
type Observer interface {
	OnUpdate(u Update)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Update)

func (f ObserverFunc) OnUpdate(u Update) { f(u) }

type slot struct {
	mu     sync.Mutex
	seq    uint64
	latest Update
}

// Hub is the Sink the orchestrator publishes to. Updates of one task are
// delivered in publication order; different tasks do not contend.
type Hub struct {
	observer Observer
	slots    map[TaskID]*slot
	now      func() time.Time
}

// NewHub builds a Hub for TaskIDs delivering to observers.
func NewHub(observers ...Observer) *Hub {
	h := &Hub{
		observer: Chain(observers...),
		slots:    make(map[TaskID]*slot, len(TaskIDs)),
		now:      time.Now,
	}
	for _, id := range TaskIDs {
		h.slots[id] = &slot{latest: Update{Task: id, State: task.StateInitial}}
	}
	return h
}

// Publish stamps and delivers an update. Unknown task ids are ignored.
func (h *Hub) Publish(id TaskID, s task.State) {
	sl, ok := h.slots[id]
	if !ok {
		return
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()

	sl.seq++
	u := Update{Task: id, State: s, Seq: sl.seq, At: h.now()}
	sl.latest = u
	h.observer.OnUpdate(u)
}

// Latest returns the last update of id.
func (h *Hub) Latest(id TaskID) (Update, bool) {
	sl, ok := h.slots[id]
	if !ok {
		return Update{}, false
	}
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return sl.latest, true
}

// Snapshot returns the last update of every task.
func (h *Hub) Snapshot() map[TaskID]Update {
	out := make(map[TaskID]Update, len(h.slots))
	for id := range h.slots {
		out[id], _ = h.Latest(id)
	}
	return out
}

type chain []Observer

func (c chain) OnUpdate(u Update) {
	for _, o := range c {
		o.OnUpdate(u)
	}
}

// Chain fans an update out to observers in order. Nil observers are skipped.
func Chain(observers ...Observer) Observer {
	c := make(chain, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			c = append(c, o)
		}
	}
	return c
}
