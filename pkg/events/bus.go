// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package events

import (
	"sync"
	"time"

	"github.com/AMD-AGI/Primus-CodeLens/pkg/logger/log"
)

// Event types published on the bus.
const (
	TypeStatus    = "status"
	TypeProgress  = "progress"
	TypeHeartbeat = "heartbeat"
)

// Event is one progress notification for an analysis. Events carry no
// authoritative state; the store remains the source of truth.
type Event struct {
	Type       string    `json:"type"`
	AnalysisID string    `json:"analysis_id"`
	Track      string    `json:"track,omitempty"`
	Status     string    `json:"status,omitempty"`
	Progress   int       `json:"progress,omitempty"`
	At         time.Time `json:"at"`
}

const subscriberBuffer = 64

type subscriber struct {
	id         int64
	analysisID string
	ch         chan Event
}

// Bus is an in-process pub/sub channel. Each subscriber receives events
// in publish order on its own buffered channel; a slow subscriber drops
// events rather than blocking publishers.
type Bus struct {
	mu     sync.RWMutex
	nextID int64
	subs   map[int64]*subscriber
}

// NewBus creates an empty bus
func NewBus() *Bus {
	return &Bus{subs: make(map[int64]*subscriber)}
}

// Subscribe registers interest in events for one analysis. An empty
// analysisID receives everything. The returned cancel func must be
// called to release the subscription.
func (b *Bus) Subscribe(analysisID string) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscriber{
		id:         b.nextID,
		analysisID: analysisID,
		ch:         make(chan Event, subscriberBuffer),
	}
	b.subs[sub.id] = sub

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[sub.id]; ok {
			delete(b.subs, sub.id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

// Publish delivers an event to all matching subscribers
func (b *Bus) Publish(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if sub.analysisID != "" && sub.analysisID != event.AnalysisID {
			continue
		}
		select {
		case sub.ch <- event:
		default:
			log.Warnf("events: subscriber %d lagging, dropped %s event for analysis %s",
				sub.id, event.Type, event.AnalysisID)
		}
	}
}

// SubscriberCount reports the number of live subscriptions
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
