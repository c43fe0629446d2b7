package sink

import "sync"

// Channels exposes one buffered update channel per task. When a reader
// falls behind, the oldest pending update is dropped so the newest state is
// always delivered.
type Channels struct {
	mu      sync.Mutex
	chans   map[TaskID]chan Update
	dropped map[TaskID]int
	closed  bool
}

// NewChannels creates per-task channels holding up to size pending updates.
func NewChannels(size int) *Channels {
	if size < 1 {
		size = 1
	}
	c := &Channels{
		chans:   make(map[TaskID]chan Update, len(TaskIDs)),
		dropped: make(map[TaskID]int, len(TaskIDs)),
	}
	for _, id := range TaskIDs {
		c.chans[id] = make(chan Update, size)
	}
	return c
}

// Updates returns the channel for id, or nil for an unknown task.
func (c *Channels) Updates(id TaskID) <-chan Update {
	return c.chans[id]
}

func (c *Channels) OnUpdate(u Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	ch, ok := c.chans[u.Task]
	if !ok {
		return
	}
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
			c.dropped[u.Task]++
		default:
		}
	}
}

// Dropped returns how many updates of id were conflated away.
func (c *Channels) Dropped(id TaskID) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped[id]
}

// Close closes every channel. Later updates are discarded.
func (c *Channels) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for _, ch := range c.chans {
		close(ch)
	}
}
