package docstore

import (
	"context"
	"sync"
)

// hub fans collection snapshots out to listeners. Every subscriber channel
// has capacity one and stale snapshots are overwritten, so a slow consumer
// always wakes up to the latest state.
type hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[string]map[int]chan []Document
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[int]chan []Document)}
}

// subscribe registers a listener for a collection. The returned channel is
// closed and deregistered when ctx is done.
func (h *hub) subscribe(ctx context.Context, collection string) <-chan []Document {
	ch := make(chan []Document, 1)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[int]chan []Document)
	}
	h.subs[collection][id] = ch
	h.mu.Unlock()

	go func() {
		<-ctx.Done()
		h.mu.Lock()
		delete(h.subs[collection], id)
		h.mu.Unlock()
		close(ch)
	}()

	return ch
}

func (h *hub) publish(collection string, docs []Document) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs[collection] {
		conflatedSend(ch, docs)
	}
}

func (h *hub) hasSubscribers(collection string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[collection]) > 0
}

// conflatedSend places v in a capacity-one channel, dropping whatever
// unconsumed value is already there.
func conflatedSend[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
