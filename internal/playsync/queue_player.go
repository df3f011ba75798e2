package playsync

import "sync"

// QueuePlayer plays through an ordered queue of content refs, advancing
// the loaded source as items finish or are skipped. Clock behavior is
// delegated to an embedded VirtualPlayer; only queue bookkeeping lives
// here. It satisfies Player, so a queue-backed party and a single-item
// party run the same engine.
type QueuePlayer struct {
	*VirtualPlayer

	mu    sync.Mutex
	queue []string
	idx   int
}

func NewQueuePlayer(refs ...string) *QueuePlayer {
	q := &QueuePlayer{VirtualPlayer: NewVirtualPlayer(), queue: append([]string(nil), refs...)}
	if len(q.queue) > 0 {
		q.VirtualPlayer.SetSource(q.queue[0])
	}
	return q
}

// Enqueue appends a ref; if nothing is loaded yet it becomes current.
func (q *QueuePlayer) Enqueue(ref string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, ref)
	if q.Source() == "" {
		q.idx = len(q.queue) - 1
		q.VirtualPlayer.SetSource(ref)
	}
}

// Advance moves to the next queued item. Returns false at queue end;
// the current item keeps playing.
func (q *QueuePlayer) Advance() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.idx+1 >= len(q.queue) {
		return false
	}
	q.idx++
	q.VirtualPlayer.SetSource(q.queue[q.idx])
	return true
}

// SetSource jumps to ref if it is queued, otherwise enqueues it after
// the current item and jumps there. Lets a host's source_changed event
// land on peers whose queue drifted.
func (q *QueuePlayer) SetSource(ref string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for i, r := range q.queue {
		if r == ref {
			q.idx = i
			q.VirtualPlayer.SetSource(ref)
			return
		}
	}
	q.queue = append(q.queue[:q.idx+1], append([]string{ref}, q.queue[q.idx+1:]...)...)
	q.idx++
	q.VirtualPlayer.SetSource(ref)
}

// Queue returns a copy of the pending refs from the current item on.
func (q *QueuePlayer) Queue() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.queue[q.idx:]...)
}
