// Package mirror republishes accepted samples on a redis pub/sub channel so other
// processes can follow a live session.
package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"sweeptrace/internal/config"
	"sweeptrace/internal/logger"
	"sweeptrace/internal/sweep"
)

const (
	queueSize      = 512
	publishTimeout = 2 * time.Second
)

// Message is the JSON document published for every sample
type Message struct {
	Session string       `json:"session"`
	Seq     uint64       `json:"seq"`
	Time    time.Time    `json:"time"`
	Sample  sweep.Sample `json:"sample"`
}

type publishAPI interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// Publisher mirrors samples to redis without ever blocking the caller
type Publisher struct {
	client  publishAPI
	closer  func() error
	channel string
	log     *logger.Entry

	queue   chan Message
	seq     uint64
	dropped atomic.Uint64
	now     func() time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewPublisher connects to the configured redis server
func NewPublisher(cfg config.RedisConfig) *Publisher {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	p := newPublisher(rdb, cfg.Channel)
	p.closer = rdb.Close
	return p
}

func newPublisher(client publishAPI, channel string) *Publisher {
	return &Publisher{
		client:  client,
		channel: channel,
		log:     logger.GetLogger().WithComponent("mirror").WithFields(logger.Fields{"channel": channel}),
		queue:   make(chan Message, queueSize),
		now:     time.Now,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Observe queues a sample for publishing; when the queue is full the sample is dropped
func (p *Publisher) Observe(sessionID string, s sweep.Sample) {
	p.seq++
	msg := Message{Session: sessionID, Seq: p.seq, Time: p.now().UTC(), Sample: s}
	select {
	case p.queue <- msg:
	default:
		if n := p.dropped.Add(1); n == 1 || n%100 == 0 {
			p.log.WithFields(logger.Fields{"dropped": n}).Warn("mirror queue full, dropping samples")
		}
	}
}

// Dropped returns the number of samples discarded because the queue was full
func (p *Publisher) Dropped() uint64 {
	return p.dropped.Load()
}

// Run publishes queued samples until ctx is cancelled or Close is called
func (p *Publisher) Run(ctx context.Context) {
	defer close(p.done)
	p.log.Info("sample mirror started")

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.stop:
			p.drain(ctx)
			return
		case msg := <-p.queue:
			if err := p.publish(ctx, msg); err != nil {
				p.log.WithError(err).Warn("publish failed")
			}
		}
	}
}

func (p *Publisher) drain(ctx context.Context) {
	for {
		select {
		case msg := <-p.queue:
			if err := p.publish(ctx, msg); err != nil {
				p.log.WithError(err).Debug("publish during shutdown failed")
				return
			}
		default:
			return
		}
	}
}

func (p *Publisher) publish(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode sample: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.channel, err)
	}
	return nil
}

// Close stops Run after flushing what is queued and closes the redis client.
// Run must have been started.
func (p *Publisher) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	<-p.done
	if p.closer != nil {
		return p.closer()
	}
	return nil
}
