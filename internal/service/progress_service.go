package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/grade-sanchalaak/internal/dto"
	"github.com/noah-isme/grade-sanchalaak/internal/observability"
)

const progressBufferSize = 32

// ProgressService fans batch progress out to websocket subscribers on this
// node and, when Redis or NATS are configured, to every other node.
type ProgressService interface {
	Publish(ctx context.Context, event dto.ProgressEvent)
	Subscribe(assignmentID uint) (<-chan dto.ProgressEvent, func())
	Start(ctx context.Context)
}

type progressService struct {
	redis        *redis.Client
	redisChannel string
	nats         *nats.Conn
	natsSubject  string
	logger       zerolog.Logger
	broker       *progressBroker
	nodeID       string
}

type progressEnvelope struct {
	Source string            `json:"source"`
	Event  dto.ProgressEvent `json:"event"`
}

type progressBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.ProgressEvent]struct{}
}

// NewProgressService constructs a progress service. Either transport may be nil.
func NewProgressService(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) ProgressService {
	channel := ""
	subject := ""
	if channelBase != "" {
		channel = channelBase + ":grading:progress"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".grading.progress"
	}

	return &progressService{
		redis:        redisClient,
		redisChannel: channel,
		nats:         natsConn,
		natsSubject:  subject,
		logger:       logger.With().Str("component", "progress_service").Logger(),
		broker: &progressBroker{
			subscribers: make(map[uint]map[chan dto.ProgressEvent]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *progressService) Start(ctx context.Context) {
	if s.redis != nil && s.redisChannel != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *progressService) Publish(ctx context.Context, event dto.ProgressEvent) {
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	s.broker.broadcast(event.AssignmentID, event)
	if err := s.publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("run_id", event.RunID).Msg("failed to publish progress event to broker")
	}
}

func (s *progressService) Subscribe(assignmentID uint) (<-chan dto.ProgressEvent, func()) {
	channel := make(chan dto.ProgressEvent, progressBufferSize)

	s.broker.subscribe(assignmentID, channel)
	observability.ProgressClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(assignmentID, channel)
			observability.ProgressClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *progressService) publish(ctx context.Context, event dto.ProgressEvent) error {
	if (s.redis == nil || s.redisChannel == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(progressEnvelope{Source: s.nodeID, Event: event})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisChannel != "" {
		if err := s.redis.Publish(ctx, s.redisChannel, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *progressService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisChannel)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("progress redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *progressService) consumeNATS(ctx context.Context) {
	// Plain subscribe: every node must see every event to reach its own clients.
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats progress subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain progress nats subscription")
		}
	}()
}

func (s *progressService) handleEnvelope(payload []byte) {
	var envelope progressEnvelope
	if err := json.Unmarshal(payload, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid progress event payload")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	s.broker.broadcast(envelope.Event.AssignmentID, envelope.Event)
}

func (b *progressBroker) subscribe(assignmentID uint, ch chan dto.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[assignmentID]; !exists {
		b.subscribers[assignmentID] = make(map[chan dto.ProgressEvent]struct{})
	}
	b.subscribers[assignmentID][ch] = struct{}{}
}

func (b *progressBroker) unsubscribe(assignmentID uint, ch chan dto.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[assignmentID]; ok {
		if _, found := subscribers[ch]; !found {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, assignmentID)
		}
	}
}

// broadcast drops events for subscribers whose buffer is full.
func (b *progressBroker) broadcast(assignmentID uint, event dto.ProgressEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[assignmentID] {
		select {
		case ch <- event:
		default:
		}
	}
}
