package library

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	goredis "github.com/redis/go-redis/v9"

	"breakupguide/internal/models"
)

// Event announces entries newly added to an owner's library
type Event struct {
	Owner   string                `json:"owner"`
	Entries []models.LibraryEntry `json:"entries"`
}

// Bus fans library events out to subscribers of the same owner
type Bus interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe returns a channel of events for owner. The channel is closed
	// when ctx ends or cancel is called.
	Subscribe(ctx context.Context, owner string) (<-chan Event, func(), error)
}

const subscriberBuffer = 10

type subscriber struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// MemoryBus delivers events within one process
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[string]map[*subscriber]bool
	logger *log.Logger
}

func NewMemoryBus(logger *log.Logger) *MemoryBus {
	if logger == nil {
		logger = log.Default()
	}
	return &MemoryBus{
		subs:   make(map[string]map[*subscriber]bool),
		logger: logger.With("component", "library-bus"),
	}
}

// Publish delivers ev to every subscriber of ev.Owner. Subscribers whose
// buffer is full miss the event.
func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for sub := range b.subs[ev.Owner] {
		select {
		case sub.ch <- ev:
		default:
			b.logger.Warn("dropping library event; subscriber buffer full", "owner", ev.Owner)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context, owner string) (<-chan Event, func(), error) {
	sub := &subscriber{ch: make(chan Event, subscriberBuffer), done: make(chan struct{})}

	b.mu.Lock()
	set, ok := b.subs[owner]
	if !ok {
		set = make(map[*subscriber]bool)
		b.subs[owner] = set
	}
	set[sub] = true
	b.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			b.mu.Lock()
			delete(b.subs[owner], sub)
			if len(b.subs[owner]) == 0 {
				delete(b.subs, owner)
			}
			b.mu.Unlock()
			close(sub.ch)
			close(sub.done)
		})
	}
	go func() {
		select {
		case <-ctx.Done():
			cancel()
		case <-sub.done:
		}
	}()
	return sub.ch, cancel, nil
}

// Subscribers returns the number of live subscriptions for owner
func (b *MemoryBus) Subscribers(owner string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[owner])
}

// RedisBus publishes events on a Redis channel so every server instance can
// push them to its own subscribers
type RedisBus struct {
	rdb     goredis.UniversalClient
	channel string
	local   *MemoryBus
	logger  *log.Logger
}

func NewRedisBus(rdb goredis.UniversalClient, channel string, logger *log.Logger) *RedisBus {
	if logger == nil {
		logger = log.Default()
	}
	return &RedisBus{
		rdb:     rdb,
		channel: channel,
		local:   NewMemoryBus(logger),
		logger:  logger.With("component", "library-redis-bus"),
	}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return b.rdb.Publish(ctx, b.channel, raw).Err()
}

func (b *RedisBus) Subscribe(ctx context.Context, owner string) (<-chan Event, func(), error) {
	return b.local.Subscribe(ctx, owner)
}

// Start subscribes to the Redis channel and forwards events to local
// subscribers until ctx is cancelled
func (b *RedisBus) Start(ctx context.Context) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("redis subscribe: %w", err)
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok || m == nil {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(m.Payload), &ev); err != nil {
					b.logger.Warn("bad library event payload", "error", err)
					continue
				}
				b.local.Publish(ctx, ev)
			}
		}
	}()
	return nil
}
