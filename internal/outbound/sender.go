// Package outbound pushes operator replies to the delivery webhook and
// records them locally and in the store.
package outbound

import (
	"context"
	"errors"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"

	"github.com/expansionAgency/whatshub/internal/convo"
	"github.com/expansionAgency/whatshub/internal/domain"
	"github.com/expansionAgency/whatshub/internal/logging"
	"github.com/expansionAgency/whatshub/internal/metrics"
)

// Validation errors, the only failures surfaced to the caller.
var (
	ErrMissingConversation = errors.New("send: missing conversation id")
	ErrEmptyBody           = errors.New("send: empty message body")
)

// Appender receives the optimistic local copy of a sent message.
type Appender interface {
	Append(ctx context.Context, m domain.Message)
}

// Persister is the slice of the store the sender writes through.
type Persister interface {
	GetConversation(ctx context.Context, id string) (domain.ConversationSummary, error)
	UpsertConversation(ctx context.Context, c domain.ConversationSummary) error
	InsertMessage(ctx context.Context, m domain.Message) error
}

// payload is the webhook body expected by the delivery workflow.
type payload struct {
	ConversationID string `json:"id_conversa"`
	Number         string `json:"numero"`
	Body           string `json:"mensagem"`
	Sender         string `json:"remetente"`
	Timestamp      string `json:"timestamp"`
}

// Config holds the delivery endpoints and their timeouts.
type Config struct {
	PrimaryURL      string
	FallbackURL     string
	Timeout         time.Duration
	FallbackTimeout time.Duration
}

// Sender orchestrates one outbound message: webhook delivery with
// fallback, optimistic local append, then store persistence. Delivery
// and persistence failures never fail the operation.
type Sender struct {
	cfg      Config
	primary  *resty.Client
	fallback *resty.Client
	policy   convo.Policy
	local    Appender
	store    Persister
	metrics  *metrics.Metrics
	log      *logging.Logger

	now   func() time.Time
	newID func() string
}

// NewSender builds a Sender. local and store may not be nil; metrics may.
func NewSender(cfg Config, policy convo.Policy, local Appender, store Persister, m *metrics.Metrics, log *logging.Logger) *Sender {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.FallbackTimeout <= 0 {
		cfg.FallbackTimeout = 3 * time.Second
	}
	return &Sender{
		cfg:      cfg,
		primary:  resty.New().SetTimeout(cfg.Timeout),
		fallback: resty.New().SetTimeout(cfg.FallbackTimeout),
		policy:   policy,
		local:    local,
		store:    store,
		metrics:  m,
		log:      log.Sub("outbound"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Send validates and dispatches one operator message. It reports success
// once the optimistic local append happened; webhook and store failures
// are logged and swallowed.
func (s *Sender) Send(ctx context.Context, conversationID, body string) (domain.Message, error) {
	if conversationID == "" {
		return domain.Message{}, ErrMissingConversation
	}
	if body == "" {
		return domain.Message{}, ErrEmptyBody
	}

	msg := domain.Message{
		ID:              s.newID(),
		ConversationRef: conversationID,
		Sender:          domain.SenderOperator,
		Body:            body,
		Timestamp:       s.now(),
	}

	if number, ok := s.policy.NumberFromConversationID(conversationID); ok {
		s.deliver(ctx, payload{
			ConversationID: conversationID,
			Number:         number,
			Body:           body,
			Sender:         domain.SenderOperator,
			Timestamp:      msg.Timestamp.UTC().Format(time.RFC3339),
		})
	} else {
		s.log.Debug().Str("conversation", conversationID).Msg("no routable number, skipping webhook")
	}

	s.local.Append(ctx, msg)
	s.persist(ctx, conversationID, msg)

	if s.metrics != nil {
		s.metrics.SendsTotal.Inc()
	}
	return msg, nil
}

// deliver POSTs to the primary webhook and falls back on any failure.
// Both failing is logged, never surfaced.
func (s *Sender) deliver(ctx context.Context, p payload) {
	if s.cfg.PrimaryURL == "" {
		return
	}

	err := post(ctx, s.primary, s.cfg.PrimaryURL, p)
	if err == nil {
		return
	}
	if s.metrics != nil {
		s.metrics.WebhookFailures.WithLabelValues("primary").Inc()
	}
	s.log.Warn().Err(err).Str("conversation", p.ConversationID).Msg("primary webhook failed")

	if s.cfg.FallbackURL == "" {
		return
	}
	if err := post(ctx, s.fallback, s.cfg.FallbackURL, p); err != nil {
		if s.metrics != nil {
			s.metrics.WebhookFailures.WithLabelValues("fallback").Inc()
		}
		s.log.Error().Err(err).Str("conversation", p.ConversationID).Msg("fallback webhook failed, message not dispatched")
	}
}

func post(ctx context.Context, client *resty.Client, url string, p payload) error {
	resp, err := client.R().SetContext(ctx).SetBody(p).Post(url)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return errors.New("webhook returned " + resp.Status())
	}
	return nil
}

// persist upserts the conversation summary then inserts the message row.
// Either failing is logged; the message already appears sent locally.
func (s *Sender) persist(ctx context.Context, conversationID string, msg domain.Message) {
	summary := domain.ConversationSummary{
		ID:          conversationID,
		DisplayName: conversationID,
	}
	if existing, err := s.store.GetConversation(ctx, conversationID); err == nil {
		summary = existing
	} else if number, ok := s.policy.NumberFromConversationID(conversationID); ok {
		summary.DisplayName = "+" + number
	}
	summary.LastMessageBody = msg.Body
	summary.LastMessageAt = msg.Timestamp

	if err := s.store.UpsertConversation(ctx, summary); err != nil {
		s.log.Error().Err(err).Str("conversation", conversationID).Msg("conversation upsert failed")
	}
	if err := s.store.InsertMessage(ctx, msg); err != nil {
		s.log.Error().Err(err).Str("message", msg.ID).Msg("message insert failed")
	}
}
