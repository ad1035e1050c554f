// Package live keeps the in-memory message log consistent across the
// initial load, the poll loop, and the push change feed, and raises
// notifications for newly observed inbound messages.
package live

import (
	"context"
	"sync"
	"time"

	"github.com/expansionAgency/whatshub/internal/convo"
	"github.com/expansionAgency/whatshub/internal/domain"
	"github.com/expansionAgency/whatshub/internal/logging"
	"github.com/expansionAgency/whatshub/internal/metrics"
	"github.com/expansionAgency/whatshub/internal/notify"
)

// Status of the push feed. The poll loop keeps running in every state,
// so "disconnected" means degraded, not down.
type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
)

// Update sources, used for instrumentation.
const (
	SourceInitial = "initial"
	SourcePoll    = "poll"
	SourcePush    = "push"
	SourceSend    = "send"
)

// MessageReader is the slice of the store the coordinator reads from.
type MessageReader interface {
	Messages(ctx context.Context) ([]domain.Message, error)
}

// Coordinator owns the in-memory message log. Poll and push both funnel
// through apply, which serializes mutations and deduplicates by id, so
// the same message arriving on both paths lands exactly once.
type Coordinator struct {
	store    MessageReader
	recon    *convo.Reconstructor
	notifier notify.Notifier
	metrics  *metrics.Metrics
	log      *logging.Logger

	pollInterval time.Duration

	mu       sync.Mutex
	messages []domain.Message
	seen     map[string]struct{}
	unread   []domain.Message
	groups   map[string]*domain.Conversation
	byMsg    map[string]string // message id -> conversation id
	status   Status
	onChange []func()
}

// Options configures a Coordinator.
type Options struct {
	Store         MessageReader
	Reconstructor *convo.Reconstructor
	Notifier      notify.Notifier
	Metrics       *metrics.Metrics
	Log           *logging.Logger
	PollInterval  time.Duration
}

// NewCoordinator builds a stopped coordinator. Call LoadInitial and then
// Start to bring it live.
func NewCoordinator(opts Options) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	c := &Coordinator{
		store:        opts.Store,
		recon:        opts.Reconstructor,
		notifier:     opts.Notifier,
		metrics:      opts.Metrics,
		log:          opts.Log.Sub("live"),
		pollInterval: opts.PollInterval,
		seen:         make(map[string]struct{}),
		groups:       make(map[string]*domain.Conversation),
		byMsg:        make(map[string]string),
		status:       StatusConnecting,
	}
	c.setStatus(StatusConnecting)
	return c
}

// OnChange registers a callback fired after every reconstruction, outside
// the coordinator lock. Used by the websocket broadcaster.
func (c *Coordinator) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = append(c.onChange, fn)
	c.mu.Unlock()
}

// LoadInitial replaces in-memory state with the full stored message set.
func (c *Coordinator) LoadInitial(ctx context.Context) error {
	msgs, err := c.store.Messages(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.messages = nil
	c.seen = make(map[string]struct{})
	c.unread = nil
	for _, m := range msgs {
		c.messages = append(c.messages, m)
		c.seen[m.ID] = struct{}{}
	}
	c.rebuildLocked()
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.MessagesIngested.WithLabelValues(SourceInitial).Add(float64(len(msgs)))
	}
	c.log.Info().Int("messages", len(msgs)).Msg("initial load complete")
	c.fireChange()
	return nil
}

// Start runs the poll loop and the push feed consumer until ctx is
// cancelled. It returns immediately; teardown is ctx-scoped.
func (c *Coordinator) Start(ctx context.Context, feed <-chan domain.Message) {
	go c.pollLoop(ctx)
	go c.consumeFeed(ctx, feed)
}

func (c *Coordinator) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.poll(ctx); err != nil {
				c.log.Warn().Err(err).Msg("poll failed")
			}
		}
	}
}

func (c *Coordinator) poll(ctx context.Context) error {
	msgs, err := c.store.Messages(ctx)
	if err != nil {
		return err
	}
	c.apply(ctx, SourcePoll, msgs)
	return nil
}

func (c *Coordinator) consumeFeed(ctx context.Context, feed <-chan domain.Message) {
	c.setStatus(StatusConnected)
	for {
		select {
		case <-ctx.Done():
			c.setStatus(StatusDisconnected)
			return
		case m, ok := <-feed:
			if !ok {
				// Poll keeps the view eventually consistent.
				c.setStatus(StatusDisconnected)
				c.log.Warn().Msg("push feed closed, continuing on poll only")
				return
			}
			c.OnPush(ctx, m)
		}
	}
}

// OnPush applies one message from the change feed. Idempotent: a message
// already present is dropped silently.
func (c *Coordinator) OnPush(ctx context.Context, m domain.Message) {
	c.apply(ctx, SourcePush, []domain.Message{m})
}

// Append records a locally produced message (the optimistic send path).
func (c *Coordinator) Append(ctx context.Context, m domain.Message) {
	c.apply(ctx, SourceSend, []domain.Message{m})
}

// apply appends the not-yet-seen subset of msgs, rebuilds the conversation
// mapping, and notifies for new inbound messages.
func (c *Coordinator) apply(ctx context.Context, source string, msgs []domain.Message) {
	c.mu.Lock()
	var fresh []domain.Message
	for _, m := range msgs {
		if _, ok := c.seen[m.ID]; ok {
			continue
		}
		c.seen[m.ID] = struct{}{}
		c.messages = append(c.messages, m)
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		c.mu.Unlock()
		return
	}

	c.rebuildLocked()

	var notifiable []domain.Message
	for _, m := range fresh {
		if m.FromOperator() {
			continue
		}
		c.unread = append(c.unread, m)
		notifiable = append(notifiable, m)
	}
	byMsg := c.byMsg
	c.mu.Unlock()

	if c.metrics != nil {
		c.metrics.MessagesIngested.WithLabelValues(source).Add(float64(len(fresh)))
	}
	c.log.Debug().Str("source", source).Int("new", len(fresh)).Msg("messages applied")

	if c.notifier != nil && source != SourceSend {
		for _, m := range notifiable {
			ev := notify.EventFrom(byMsg[m.ID], m)
			if err := c.notifier.Notify(ctx, ev); err != nil {
				c.log.Warn().Err(err).Str("message", m.ID).Msg("notification failed")
			}
			if c.metrics != nil {
				c.metrics.Notifications.Inc()
			}
		}
	}
	c.fireChange()
}

// rebuildLocked reruns reconstruction over the full log. Caller holds mu.
func (c *Coordinator) rebuildLocked() {
	c.groups = c.recon.Reconstruct(c.messages)
	byMsg := make(map[string]string, len(c.messages))
	for id, conv := range c.groups {
		for _, m := range conv.Messages {
			byMsg[m.ID] = id
		}
	}
	c.byMsg = byMsg
	if c.metrics != nil {
		c.metrics.Reconstructions.Inc()
	}
}

// Acknowledge removes a message from the unread queue. The main log and
// the conversation mapping are unaffected.
func (c *Coordinator) Acknowledge(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, m := range c.unread {
		if m.ID == messageID {
			c.unread = append(c.unread[:i], c.unread[i+1:]...)
			return
		}
	}
}

// Snapshot returns a copy of the append log in arrival order.
func (c *Coordinator) Snapshot() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Conversations returns the current reconstruction, most recent first.
func (c *Coordinator) Conversations() []*domain.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return convo.Ordered(c.groups)
}

// Conversation returns one reconstructed conversation by id.
func (c *Coordinator) Conversation(id string) (*domain.Conversation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conv, ok := c.groups[id]
	return conv, ok
}

// Unread returns a copy of the unread queue.
func (c *Coordinator) Unread() []domain.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Message, len(c.unread))
	copy(out, c.unread)
	return out
}

// Status reports the push feed state.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Coordinator) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
	if c.metrics != nil {
		switch s {
		case StatusConnected:
			c.metrics.FeedStatus.Set(metrics.FeedConnected)
		case StatusConnecting:
			c.metrics.FeedStatus.Set(metrics.FeedConnecting)
		default:
			c.metrics.FeedStatus.Set(metrics.FeedDisconnected)
		}
	}
}

func (c *Coordinator) fireChange() {
	c.mu.Lock()
	listeners := make([]func(), len(c.onChange))
	copy(listeners, c.onChange)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
