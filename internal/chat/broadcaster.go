// Package chat provides the bounded-history message broadcaster behind the
// real-time channel.
package chat

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lanhub/lanhub/internal/metrics"
)

// Event types carried on the real-time channel.
const (
	EventNewMessage   = "new_message"
	EventUserJoined   = "user_joined"
	EventUserLeft     = "user_left"
	EventUserList     = "user_list"
	EventChatHistory  = "chat_history"
	EventFileUploaded = "file_uploaded"
)

// DefaultHistory is the default backlog capacity.
const DefaultHistory = 100

// MaxMessageRunes is the per-message length cap; longer text is truncated,
// not rejected.
const MaxMessageRunes = 500

// Message is one immutable chat message.
type Message struct {
	ID     string    `json:"id"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
	SentAt time.Time `json:"sent_at"`
}

// Event is one frame delivered to every connected session. Chat messages
// carry Message; structural events (user_joined, file_uploaded, ...) carry
// Payload.
type Event struct {
	Type    string   `json:"type"`
	Message *Message `json:"message,omitempty"`
	Payload any      `json:"payload,omitempty"`
}

// Broadcaster owns the message backlog and fans events out to subscribers.
// One mutex serializes post/announce/subscribe, which is what gives
// per-author message ordering: a session's posts enter the backlog and the
// fan-out in invocation order.
type Broadcaster struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
	history     []Message
	capacity    int
	total       uint64
}

// NewBroadcaster creates a broadcaster with the given backlog capacity.
// Non-positive capacity falls back to DefaultHistory.
func NewBroadcaster(capacity int) *Broadcaster {
	if capacity <= 0 {
		capacity = DefaultHistory
	}
	return &Broadcaster{
		subscribers: make(map[chan Event]struct{}),
		capacity:    capacity,
	}
}

// Subscribe adds a subscriber and returns its event channel. The caller
// must call Unsubscribe when done.
func (b *Broadcaster) Subscribe() chan Event {
	ch := make(chan Event, 64)
	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
	b.mu.Unlock()
}

// Post truncates rawText to MaxMessageRunes, stamps it, appends it to the
// backlog (evicting the oldest entry at capacity) and broadcasts it. The
// stored message is returned.
func (b *Broadcaster) Post(author, rawText string) Message {
	text := rawText
	if runes := []rune(text); len(runes) > MaxMessageRunes {
		text = string(runes[:MaxMessageRunes])
	}

	msg := Message{
		ID:     uuid.NewString(),
		Author: author,
		Text:   text,
		SentAt: time.Now(),
	}

	b.mu.Lock()
	b.history = append(b.history, msg)
	if len(b.history) > b.capacity {
		b.history = b.history[len(b.history)-b.capacity:]
	}
	b.total++
	b.fanOut(Event{Type: EventNewMessage, Message: &msg})
	b.mu.Unlock()

	metrics.RecordChatMessage()
	return msg
}

// Announce broadcasts a structural event. Announcements never enter the
// chat backlog.
func (b *Broadcaster) Announce(kind string, payload any) {
	b.mu.Lock()
	b.fanOut(Event{Type: kind, Payload: payload})
	b.mu.Unlock()
}

// fanOut delivers an event to every subscriber without blocking: a full
// subscriber buffer drops the event for that subscriber only, so one
// stalled session cannot stall the broadcast for the rest.
// Callers hold b.mu.
func (b *Broadcaster) fanOut(ev Event) {
	for ch := range b.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// HistorySnapshot returns the current backlog, oldest first.
func (b *Broadcaster) HistorySnapshot() []Message {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]Message, len(b.history))
	copy(out, b.history)
	return out
}

// TotalPosted returns the number of messages posted since startup,
// including evicted ones. Used by the status feed.
func (b *Broadcaster) TotalPosted() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.total
}

// SubscriberCount returns the current number of subscribers.
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
