// Package publish streams rendered summaries to a Kafka topic.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/csickelco/newbie-sub000/internal/logger"
	"github.com/csickelco/newbie-sub000/internal/summary"
)

const queueSize = 128

var (
	ErrNotStarted = errors.New("summary publisher not started")
	ErrStopped    = errors.New("summary publisher stopped")
)

type Config struct {
	Brokers []string
	Topic   string
}

// SummaryMessage is the payload written for every rendered summary.
type SummaryMessage struct {
	BabyID     string    `json:"baby_id"`
	UserID     string    `json:"user_id"`
	Window     string    `json:"window"`
	Message    string    `json:"message"`
	CardTitle  string    `json:"card_title"`
	CardBody   string    `json:"card_body"`
	RenderedAt time.Time `json:"rendered_at"`
}

func NewSummaryMessage(babyID, userID, window string, rendered summary.RenderedResponse, at time.Time) SummaryMessage {
	return SummaryMessage{
		BabyID:     babyID,
		UserID:     userID,
		Window:     window,
		Message:    rendered.Message,
		CardTitle:  rendered.CardTitle,
		CardBody:   rendered.CardBody,
		RenderedAt: at.UTC(),
	}
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type request struct {
	key    []byte
	value  []byte
	window string
}

// Publisher delivers summaries asynchronously. A publisher built without
// brokers accepts and drops every message.
type Publisher struct {
	cfg     Config
	log     logger.Logger
	writer  messageWriter
	enabled bool

	queue     chan request
	runCtx    context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once

	// mu orders enqueues against Stop: once stopped is set no message can
	// enter the queue, so drain sees everything that was accepted.
	mu      sync.RWMutex
	started bool
	stopped bool
}

func New(cfg Config, log logger.Logger) (*Publisher, error) {
	if log == nil {
		log = logger.Named("publish")
	}
	brokers := make([]string, 0, len(cfg.Brokers))
	for _, broker := range cfg.Brokers {
		if trimmed := strings.TrimSpace(broker); trimmed != "" {
			brokers = append(brokers, trimmed)
		}
	}
	cfg.Brokers = brokers
	if len(cfg.Brokers) == 0 {
		return &Publisher{cfg: cfg, log: log}, nil
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, fmt.Errorf("summary topic must not be empty")
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		RequiredAcks:           kafka.RequireOne,
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: false,
	}
	return newWithWriter(cfg, log, writer), nil
}

func newWithWriter(cfg Config, log logger.Logger, writer messageWriter) *Publisher {
	return &Publisher{
		cfg:     cfg,
		log:     log,
		writer:  writer,
		enabled: true,
		queue:   make(chan request, queueSize),
	}
}

func (p *Publisher) Enabled() bool {
	return p != nil && p.enabled
}

func (p *Publisher) Start(ctx context.Context) {
	if !p.Enabled() {
		p.log.Info(ctx, "summary publisher disabled")
		return
	}
	p.startOnce.Do(func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if p.stopped {
			return
		}
		p.runCtx, p.cancel = context.WithCancel(context.WithoutCancel(ctx))
		p.started = true
		p.wg.Add(1)
		go p.run()
		p.log.Info(ctx, "summary publisher started", logger.String("topic", p.cfg.Topic))
	})
}

// Stop drains queued messages, then closes the writer.
func (p *Publisher) Stop(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	var stopErr error
	p.stopOnce.Do(func() {
		p.mu.Lock()
		p.stopped = true
		cancel := p.cancel
		p.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		done := make(chan struct{})
		go func() {
			p.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-ctx.Done():
			stopErr = ctx.Err()
		}
		if err := p.writer.Close(); err != nil {
			p.log.Error(ctx, "summary publisher close failed", logger.Error(err))
		}
		p.log.Info(ctx, "summary publisher stopped")
	})
	return stopErr
}

// Publish queues one summary keyed by baby id.
func (p *Publisher) Publish(ctx context.Context, msg SummaryMessage) error {
	if !p.Enabled() {
		return nil
	}
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode summary message: %w", err)
	}
	req := request{key: []byte(msg.BabyID), value: value, window: msg.Window}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	if !p.started {
		return ErrNotStarted
	}
	select {
	case p.queue <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Publisher) run() {
	defer p.wg.Done()
	for {
		select {
		case <-p.runCtx.Done():
			p.drain()
			return
		case req := <-p.queue:
			p.deliver(p.runCtx, req)
		}
	}
}

func (p *Publisher) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case req := <-p.queue:
			p.deliver(ctx, req)
		default:
			return
		}
	}
}

func (p *Publisher) deliver(ctx context.Context, req request) {
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: req.key, Value: req.value}); err != nil {
		p.log.Error(ctx, "summary publish failed", logger.String("window", req.window), logger.Error(err))
		return
	}
	p.log.Debug(ctx, "summary published", logger.String("window", req.window))
}
