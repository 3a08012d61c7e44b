// Package fanout is the live per-connection WebSocket layer: a broadcast
// bus shared by every socket, and a per-connection loop that serves view
// queries and relays resource-change events to interested users.
package fanout

import (
	"sync"
	"sync/atomic"
)

// Message is one resource-change broadcast: a monotonically increasing
// sequence number, the slash-separated resource path, and an optional
// string payload, filtered by an optional recipient whitelist and/or a
// forced-disconnect set.
type Message struct {
	Seq           uint64
	Resource      string
	Value         string
	HasValue      bool
	Users         []string // nil means "everyone"; otherwise a whitelist
	CloseForUsers []string
}

func (m Message) allowedFor(user string) bool {
	if m.Users == nil {
		return true
	}
	for _, u := range m.Users {
		if u == user {
			return true
		}
	}
	return false
}

func (m Message) closesFor(user string) bool {
	for _, u := range m.CloseForUsers {
		if u == user {
			return true
		}
	}
	return false
}

// Subscriber is one connection's mailbox on the bus.
type Subscriber struct {
	User    string
	C       chan Message
	CloseMe chan struct{}
}

// Bus is the single process-wide broadcast bus: multi-producer,
// multi-consumer, bounded per-subscriber fan-out with a non-blocking
// publish — a slow consumer drops messages rather than stalling senders,
// as events.Bus does, and is also signaled on CloseMe to disconnect.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[*Subscriber]struct{}
	seq         atomic.Uint64
}

func NewBus() *Bus {
	return &Bus{subscribers: make(map[*Subscriber]struct{})}
}

// Subscribe registers a new connection's mailbox.
func (b *Bus) Subscribe(user string, bufSize int) *Subscriber {
	if bufSize <= 0 {
		bufSize = 32
	}
	s := &Subscriber{
		User:    user,
		C:       make(chan Message, bufSize),
		CloseMe: make(chan struct{}, 1),
	}
	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes a connection's mailbox.
func (b *Bus) Unsubscribe(s *Subscriber) {
	b.mu.Lock()
	delete(b.subscribers, s)
	b.mu.Unlock()
}

// NextSeq reserves the next broadcast sequence number, so a caller that
// needs to remember its own emitted sequence number (for self-echo
// suppression) can do so before Publish fans it out.
func (b *Bus) NextSeq() uint64 {
	return b.seq.Add(1)
}

// Publish fans msg out to every subscriber allowed to see it. A subscriber
// in CloseForUsers is signaled to disconnect instead of receiving the
// message. A slow subscriber whose buffer is full drops the message rather
// than blocking Publish, and is signaled on CloseMe as lagged.
func (b *Bus) Publish(msg Message) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for s := range b.subscribers {
		if msg.closesFor(s.User) {
			select {
			case s.CloseMe <- struct{}{}:
			default:
			}
			continue
		}
		if !msg.allowedFor(s.User) {
			continue
		}
		select {
		case s.C <- msg:
		default:
			// lagged consumer: drop rather than stall the publisher, and
			// signal it to disconnect
			select {
			case s.CloseMe <- struct{}{}:
			default:
			}
		}
	}
}
