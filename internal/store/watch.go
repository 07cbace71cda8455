package store

import (
	"sync"

	"tokolite/backend/internal/domain"
)

// Snapshot is a point-in-time ordered view of one collection. Exactly one
// of the payload fields is populated, matching Collection.
type Snapshot struct {
	Collection   Collection             `json:"collection"`
	Products     []domain.Product       `json:"products,omitempty"`
	Transactions []domain.Transaction   `json:"transactions,omitempty"`
	Mutations    []domain.StockMutation `json:"mutations,omitempty"`
	Settings     *domain.StoreSettings  `json:"settings,omitempty"`
}

// Subscription is a scoped handle on a collection watch. Callers must
// invoke Unsubscribe when done (logout tears down all of a session's
// subscriptions deterministically).
type Subscription struct {
	C      <-chan Snapshot
	cancel func()
	once   sync.Once
}

func (s *Subscription) Unsubscribe() {
	s.once.Do(s.cancel)
}

// Hub fans committed-write snapshots out to watchers. A slow subscriber
// drops intermediate snapshots rather than blocking writers; the next
// broadcast always carries the full current state, so a dropped frame is
// recovered by the one after it.
type Hub struct {
	mu     sync.Mutex
	nextID int
	subs   map[Collection]map[int]chan Snapshot
}

func NewHub() *Hub {
	return &Hub{subs: make(map[Collection]map[int]chan Snapshot)}
}

// Subscribe registers a watcher and seeds its channel with the initial
// snapshot. The initial frame reaches only the new subscriber; existing
// watchers see nothing until the next committed write.
func (h *Hub) Subscribe(collection Collection, initial Snapshot) *Subscription {
	ch := make(chan Snapshot, 8)
	ch <- initial

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[collection] == nil {
		h.subs[collection] = make(map[int]chan Snapshot)
	}
	h.subs[collection][id] = ch
	h.mu.Unlock()

	return &Subscription{
		C: ch,
		cancel: func() {
			h.mu.Lock()
			if watchers, ok := h.subs[collection]; ok {
				if _, live := watchers[id]; live {
					delete(watchers, id)
					close(ch)
				}
			}
			h.mu.Unlock()
		},
	}
}

func (h *Hub) Broadcast(snapshot Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, ch := range h.subs[snapshot.Collection] {
		select {
		case ch <- snapshot:
		default:
		}
	}
}
