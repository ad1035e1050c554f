// Package convo rebuilds conversations from a flat message stream.
//
// Messages arrive from the store with inconsistent linkage: some carry a
// routable address, some only a conversation reference, operator replies
// often carry neither. Reconstruct turns that stream into a deterministic
// conversation mapping without ever failing; the worst case is one
// conversation per unlinked message.
package convo

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/expansionAgency/whatshub/internal/domain"
)

// Display names for conversations whose only identity is the sender role.
const (
	NameOperator = "Operador"
	NameContact  = "Contato"
	NameUnknown  = "Usuário"
)

// Policy holds the tunable grouping heuristics. The attach window and the
// naming rule are conventions, not business contracts, so deployments may
// adjust them.
type Policy struct {
	// GroupPrefix prefixes phone-derived conversation ids.
	GroupPrefix string
	// OperatorAttachWindow is how far an unlinked operator message may sit
	// from a conversation's last activity and still be attached to it.
	OperatorAttachWindow time.Duration
	// MinNumberDigits is the minimum digit count for a string to count as
	// a phone number.
	MinNumberDigits int
}

// DefaultPolicy returns the grouping policy used in production.
func DefaultPolicy() Policy {
	return Policy{
		GroupPrefix:          "whatsapp_",
		OperatorAttachWindow: 5 * time.Minute,
		MinNumberDigits:      10,
	}
}

// Reconstructor groups messages into conversations under a Policy.
type Reconstructor struct {
	policy Policy

	// newID generates surrogate conversation ids; swapped in tests.
	newID func() string
}

// New returns a Reconstructor with the given policy.
func New(policy Policy) *Reconstructor {
	return &Reconstructor{policy: policy, newID: uuid.NewString}
}

// builder accumulates one conversation during a reconstruction pass.
type builder struct {
	conv  *domain.Conversation
	named bool
}

func (b *builder) add(m domain.Message) {
	b.conv.Messages = append(b.conv.Messages, m)
	if b.conv.LastMessageAt.IsZero() || m.Timestamp.After(b.conv.LastMessageAt) {
		b.conv.LastMessageAt = m.Timestamp
		b.conv.LastMessageBody = m.Body
	}
	if !b.named && m.NamedSender() {
		b.conv.DisplayName = m.Sender
		b.named = true
	}
}

// pass carries the working state of one Reconstruct call.
type pass struct {
	groups map[string]*builder
	order  []string          // group creation order, for deterministic scans
	byRef  map[string]string // conversationRef -> group id
}

func (p *pass) group(id, displayName string) *builder {
	if b, ok := p.groups[id]; ok {
		return b
	}
	b := &builder{conv: &domain.Conversation{
		ID:          id,
		DisplayName: displayName,
		Status:      domain.StatusActive,
	}}
	p.groups[id] = b
	p.order = append(p.order, id)
	return b
}

func (p *pass) attach(id string, m domain.Message) {
	p.groups[id].add(m)
	if m.ConversationRef != "" {
		if _, ok := p.byRef[m.ConversationRef]; !ok {
			p.byRef[m.ConversationRef] = id
		}
	}
}

// mostRecent returns the group with the latest activity, earliest-created
// winning ties.
func (p *pass) mostRecent() (string, time.Time, bool) {
	var (
		bestID string
		bestAt time.Time
		found  bool
	)
	for _, id := range p.order {
		at := p.groups[id].conv.LastMessageAt
		if !found || at.After(bestAt) {
			bestID, bestAt, found = id, at, true
		}
	}
	return bestID, bestAt, found
}

// Reconstruct groups a flat message set into conversations. It is pure:
// the input is never mutated and a fresh mapping is returned on every
// call. Messages with a derivable phone number anchor their groups first;
// the remainder attach by shared reference, by operator recency, or start
// a group of their own.
func (r *Reconstructor) Reconstruct(messages []domain.Message) map[string]*domain.Conversation {
	p := &pass{
		groups: make(map[string]*builder),
		byRef:  make(map[string]string),
	}

	var unlinked []domain.Message
	for _, m := range messages {
		number, ok := r.policy.ExtractNumber(m.RawAddress, m.ConversationRef)
		if !ok {
			unlinked = append(unlinked, m)
			continue
		}
		id := r.policy.GroupPrefix + number
		p.group(id, "+"+number)
		p.attach(id, m)
	}

	for _, m := range unlinked {
		if id, ok := p.resolveByRef(m.ConversationRef); ok {
			p.attach(id, m)
			continue
		}
		if m.FromOperator() {
			if id, at, ok := p.mostRecent(); ok {
				if absDiff(m.Timestamp, at) <= r.policy.OperatorAttachWindow {
					p.attach(id, m)
					continue
				}
			}
		}
		id := m.ConversationRef
		if id == "" {
			id = r.newID()
		}
		p.group(id, fallbackName(m))
		p.attach(id, m)
	}

	out := make(map[string]*domain.Conversation, len(p.groups))
	for id, b := range p.groups {
		sort.SliceStable(b.conv.Messages, func(i, j int) bool {
			return b.conv.Messages[i].Timestamp.Before(b.conv.Messages[j].Timestamp)
		})
		out[id] = b.conv
	}
	return out
}

func (p *pass) resolveByRef(ref string) (string, bool) {
	if ref == "" {
		return "", false
	}
	if id, ok := p.byRef[ref]; ok {
		return id, true
	}
	// A group keyed directly by this reference counts as a match too.
	if _, ok := p.groups[ref]; ok {
		return ref, true
	}
	return "", false
}

func fallbackName(m domain.Message) string {
	switch {
	case m.FromOperator():
		return NameOperator
	case m.Sender == domain.SenderContact:
		return NameContact
	case m.Sender != "":
		return m.Sender
	default:
		return NameUnknown
	}
}

func absDiff(a, b time.Time) time.Duration {
	d := a.Sub(b)
	if d < 0 {
		return -d
	}
	return d
}

// Ordered flattens a conversation mapping into a slice sorted by last
// activity, most recent first. Ties break on conversation id so repeated
// calls render identically.
func Ordered(groups map[string]*domain.Conversation) []*domain.Conversation {
	out := make([]*domain.Conversation, 0, len(groups))
	for _, c := range groups {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastMessageAt.Equal(out[j].LastMessageAt) {
			return out[i].LastMessageAt.After(out[j].LastMessageAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}
