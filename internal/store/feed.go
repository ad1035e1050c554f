package store

import (
	"context"
	"sync"

	"github.com/expansionAgency/whatshub/internal/domain"
	"github.com/expansionAgency/whatshub/internal/logging"
)

// feedBuffer bounds each subscriber channel. A subscriber that falls this
// far behind loses events; the poll path recovers them.
const feedBuffer = 64

// Feed is an in-process change feed over message inserts. Subscribers get
// every message written through the owning DB after they subscribed.
type Feed struct {
	mu     sync.Mutex
	subs   map[int]chan domain.Message
	nextID int
	closed bool
	log    *logging.Logger
}

func newFeed(log *logging.Logger) *Feed {
	return &Feed{
		subs: make(map[int]chan domain.Message),
		log:  log.Sub("feed"),
	}
}

// Subscribe registers a listener scoped to ctx. The returned channel is
// closed when ctx is cancelled or the feed shuts down.
func (f *Feed) Subscribe(ctx context.Context) <-chan domain.Message {
	ch := make(chan domain.Message, feedBuffer)

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		close(ch)
		return ch
	}
	id := f.nextID
	f.nextID++
	f.subs[id] = ch
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		if _, ok := f.subs[id]; ok {
			delete(f.subs, id)
			close(ch)
		}
		f.mu.Unlock()
	}()

	return ch
}

func (f *Feed) publish(m domain.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for id, ch := range f.subs {
		select {
		case ch <- m:
		default:
			f.log.Warn().Int("subscriber", id).Str("message", m.ID).Msg("feed subscriber lagging, dropping event")
		}
	}
}

func (f *Feed) close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	for id, ch := range f.subs {
		delete(f.subs, id)
		close(ch)
	}
}
