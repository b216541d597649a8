package events

import (
	"encoding/json"
	"sync"
)

// Hub fans broadcasts out to subscribers. Sources (settings store,
// battery monitor, alarm source) publish; the charging controller is
// the main consumer.
type Hub struct {
	mu   sync.RWMutex
	subs map[chan Event]*subscription
}

type subscription struct {
	names map[string]struct{} // empty means all topics
	once  bool
}

func NewHub() *Hub { return &Hub{subs: make(map[chan Event]*subscription)} }

// Subscribe returns a channel receiving every event whose name is in
// names. With no names, the channel receives everything.
func (h *Hub) Subscribe(names ...string) chan Event {
	return h.subscribe(false, names)
}

// SubscribeOnce returns a channel that receives at most one matching
// event and is then removed and closed. The caller still holds the
// channel and may Unsubscribe early if the event never fires.
func (h *Hub) SubscribeOnce(names ...string) chan Event {
	return h.subscribe(true, names)
}

func (h *Hub) subscribe(once bool, names []string) chan Event {
	ch := make(chan Event, 16)
	sub := &subscription{names: make(map[string]struct{}), once: once}
	for _, n := range names {
		sub.names[n] = struct{}{}
	}
	h.mu.Lock()
	h.subs[ch] = sub
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Event) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Publish marshals payload and delivers it to matching subscribers.
// Sends are non-blocking; slow subscribers drop events.
func (h *Hub) Publish(name string, payload any) {
	if h == nil {
		return
	}
	var b []byte
	if payload != nil {
		var err error
		b, err = json.Marshal(payload)
		if err != nil {
			return
		}
	}
	msg := Event{Name: name, Data: b}

	h.mu.Lock()
	for ch, sub := range h.subs {
		if len(sub.names) > 0 {
			if _, ok := sub.names[name]; !ok {
				continue
			}
		}
		select {
		case ch <- msg:
		default:
		}
		if sub.once {
			delete(h.subs, ch)
			close(ch)
		}
	}
	h.mu.Unlock()
}
