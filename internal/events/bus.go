// Package events provides the core event bus implementation.
package events

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/castmill/castmill-sub005/internal/logger"
)

// Bus is the in-process publish/subscribe channel between the playback
// engine and the device shell.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventChannel  chan Event
	running       bool
	stopCh        chan struct{}
	wg            sync.WaitGroup
}

const defaultBufferSize = 256

// NewBus creates a new event bus instance
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string]*Subscription),
		eventChannel:  make(chan Event, defaultBufferSize),
		stopCh:        make(chan struct{}),
	}
}

// Start starts the event bus dispatch loop.
func (b *Bus) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("event bus is already running")
	}

	b.running = true
	b.stopCh = make(chan struct{})
	b.eventChannel = make(chan Event, defaultBufferSize)

	b.wg.Add(1)
	go b.processEvents()

	logger.Debug("event bus started", "buffer_size", defaultBufferSize)
	return nil
}

// Stop stops the event bus and waits for the dispatch loop to drain.
func (b *Bus) Stop() {
	b.mu.Lock()
	if !b.running {
		b.mu.Unlock()
		return
	}
	b.running = false
	b.mu.Unlock()

	close(b.stopCh)
	b.wg.Wait()
	logger.Debug("event bus stopped")
}

// Publish publishes an event. Publishing never blocks playback: when the
// buffer is full the event is dropped with a warning.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()
	if !running {
		return
	}

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case b.eventChannel <- event:
	default:
		logger.Warn("event channel full, dropping event", "event_type", event.Type, "event_id", event.ID)
	}
}

// Subscribe subscribes to events matching the filter.
func (b *Bus) Subscribe(filter EventFilter, handler EventHandler) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription{
		ID:      uuid.NewString(),
		Filter:  filter,
		Handler: handler,
		Created: time.Now(),
	}
	b.subscriptions[sub.ID] = sub

	logger.Debug("subscription created", "subscription_id", sub.ID, "types", filter.Types)
	return sub
}

// Unsubscribe removes a subscription.
func (b *Bus) Unsubscribe(subscriptionID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscriptions[subscriptionID]; !exists {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}
	delete(b.subscriptions, subscriptionID)
	return nil
}

// Subscriptions returns all active subscriptions.
func (b *Bus) Subscriptions() []*Subscription {
	b.mu.RLock()
	defer b.mu.RUnlock()

	subs := make([]*Subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	return subs
}

func (b *Bus) processEvents() {
	defer b.wg.Done()

	for {
		select {
		case <-b.stopCh:
			// Drain whatever is already queued before leaving.
			for {
				select {
				case event := <-b.eventChannel:
					b.handleEvent(event)
				default:
					return
				}
			}
		case event := <-b.eventChannel:
			b.handleEvent(event)
		}
	}
}

func (b *Bus) handleEvent(event Event) {
	b.mu.RLock()
	var matching []*Subscription
	for _, sub := range b.subscriptions {
		if MatchesFilter(event, sub.Filter) {
			matching = append(matching, sub)
		}
	}
	b.mu.RUnlock()

	for _, sub := range matching {
		b.notifySubscriber(sub, event)
	}
}

func (b *Bus) notifySubscriber(sub *Subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("panic in event handler", "subscription_id", sub.ID, "error", r, "event_id", event.ID)
		}
	}()

	sub.Handler(event)

	b.mu.Lock()
	sub.TriggerCount++
	b.mu.Unlock()
}
