package chat

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestPostDeliversToAllSubscribers(t *testing.T) {
	b := NewBroadcaster(0)
	ch1 := b.Subscribe()
	ch2 := b.Subscribe()
	defer b.Unsubscribe(ch1)
	defer b.Unsubscribe(ch2)

	posted := b.Post("Alice", "hi")
	if posted.ID == "" {
		t.Error("expected a message ID")
	}
	if posted.SentAt.IsZero() {
		t.Error("expected a timestamp")
	}

	for i, ch := range []chan Event{ch1, ch2} {
		select {
		case ev := <-ch:
			if ev.Type != EventNewMessage {
				t.Errorf("subscriber %d: expected %s, got %s", i, EventNewMessage, ev.Type)
			}
			if ev.Message == nil || ev.Message.Author != "Alice" || ev.Message.Text != "hi" {
				t.Errorf("subscriber %d: unexpected message %+v", i, ev.Message)
			}
		case <-time.After(time.Second):
			t.Fatalf("subscriber %d: timed out", i)
		}
	}
}

func TestHistoryBounded(t *testing.T) {
	b := NewBroadcaster(100)
	for i := 0; i < 150; i++ {
		b.Post("Alice", fmt.Sprintf("msg-%d", i))
	}

	history := b.HistorySnapshot()
	if len(history) != 100 {
		t.Fatalf("expected history of 100, got %d", len(history))
	}
	// The backlog holds exactly the last 100 in arrival order.
	for i, msg := range history {
		want := fmt.Sprintf("msg-%d", i+50)
		if msg.Text != want {
			t.Fatalf("history[%d] = %q, want %q", i, msg.Text, want)
		}
	}
	if b.TotalPosted() != 150 {
		t.Errorf("expected 150 total posted, got %d", b.TotalPosted())
	}
}

func TestPostTruncatesLongText(t *testing.T) {
	b := NewBroadcaster(10)
	long := strings.Repeat("é", 600)

	msg := b.Post("Bob", long)
	if got := utf8.RuneCountInString(msg.Text); got != MaxMessageRunes {
		t.Errorf("expected %d runes, got %d", MaxMessageRunes, got)
	}
	if !strings.HasPrefix(long, msg.Text) {
		t.Error("truncation did not preserve the prefix")
	}
}

func TestAnnounceNotInHistory(t *testing.T) {
	b := NewBroadcaster(10)
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Announce(EventUserJoined, map[string]string{"name": "Alice"})

	select {
	case ev := <-ch:
		if ev.Type != EventUserJoined {
			t.Errorf("expected %s, got %s", EventUserJoined, ev.Type)
		}
		if ev.Message != nil {
			t.Error("announcement should not carry a chat message")
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for announcement")
	}

	if len(b.HistorySnapshot()) != 0 {
		t.Error("announcement entered the chat history")
	}
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	b := NewBroadcaster(200)
	slow := b.Subscribe() // never drained
	fast := b.Subscribe()
	defer b.Unsubscribe(slow)

	done := make(chan struct{})
	go func() {
		defer close(done)
		// More than the subscriber buffer holds; must not block.
		for i := 0; i < 128; i++ {
			b.Post("Alice", fmt.Sprintf("m%d", i))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("posting blocked on a stalled subscriber")
	}

	// The fast subscriber still gets the first messages in order.
	for i := 0; i < 3; i++ {
		select {
		case ev := <-fast:
			if ev.Message.Text != fmt.Sprintf("m%d", i) {
				t.Fatalf("out of order: got %q at position %d", ev.Message.Text, i)
			}
		case <-time.After(time.Second):
			t.Fatal("fast subscriber starved")
		}
	}
	b.Unsubscribe(fast)
}

func TestUnsubscribeTwiceIsSafe(t *testing.T) {
	b := NewBroadcaster(10)
	ch := b.Subscribe()
	b.Unsubscribe(ch)
	b.Unsubscribe(ch)

	if b.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", b.SubscriberCount())
	}
}
