package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lanhub/lanhub/internal/chat"
)

func dialWS(t *testing.T, tsURL, name string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(tsURL, "http") + "/ws?name=" + name
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent reads one frame with a deadline.
func readEvent(t *testing.T, conn *websocket.Conn) chat.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var ev chat.Event
	if err := conn.ReadJSON(&ev); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return ev
}

// readUntil drains frames until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, eventType string) chat.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		ev := readEvent(t, conn)
		if ev.Type == eventType {
			return ev
		}
	}
	t.Fatalf("no %s frame before deadline", eventType)
	return chat.Event{}
}

func sendFrame(t *testing.T, conn *websocket.Conn, frame map[string]string) {
	t.Helper()
	if err := conn.WriteJSON(frame); err != nil {
		t.Fatalf("write frame: %v", err)
	}
}

func TestChatHistoryIsFirstFrame(t *testing.T) {
	ts, srv := newTestServer(t)
	srv.chat.Post("Earlier", "backlog message")

	conn := dialWS(t, ts.URL, "Alice")
	ev := readEvent(t, conn)
	if ev.Type != chat.EventChatHistory {
		t.Fatalf("first frame %s, want %s", ev.Type, chat.EventChatHistory)
	}

	raw, _ := json.Marshal(ev.Payload)
	var history []chat.Message
	if err := json.Unmarshal(raw, &history); err != nil {
		t.Fatalf("decode history: %v", err)
	}
	if len(history) != 1 || history[0].Text != "backlog message" {
		t.Errorf("unexpected backlog: %+v", history)
	}
}

func TestChatBroadcastBetweenSessions(t *testing.T) {
	ts, srv := newTestServer(t)

	alice := dialWS(t, ts.URL, "Alice")
	readEvent(t, alice) // chat_history
	bob := dialWS(t, ts.URL, "Bob")
	readEvent(t, bob) // chat_history

	sendFrame(t, alice, map[string]string{"type": "chat_message", "text": "hi"})

	for _, conn := range []*websocket.Conn{alice, bob} {
		ev := readUntil(t, conn, chat.EventNewMessage)
		if ev.Message == nil || ev.Message.Author != "Alice" || ev.Message.Text != "hi" {
			t.Errorf("unexpected message: %+v", ev.Message)
		}
	}

	if srv.registry.ActiveCount() != 2 {
		t.Errorf("expected 2 active sessions, got %d", srv.registry.ActiveCount())
	}
}

func TestUserListOnDemand(t *testing.T) {
	ts, _ := newTestServer(t)

	alice := dialWS(t, ts.URL, "Alice")
	readEvent(t, alice)
	bob := dialWS(t, ts.URL, "Bob")
	readEvent(t, bob)

	sendFrame(t, alice, map[string]string{"type": "get_users"})
	ev := readUntil(t, alice, chat.EventUserList)

	raw, _ := json.Marshal(ev.Payload)
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		t.Fatalf("decode user list: %v", err)
	}
	if len(names) != 2 || names[0] != "Alice" || names[1] != "Bob" {
		t.Errorf("expected [Alice Bob], got %v", names)
	}
}

func TestJoinAndLeaveAnnouncements(t *testing.T) {
	ts, srv := newTestServer(t)

	alice := dialWS(t, ts.URL, "Alice")
	readEvent(t, alice)

	bob := dialWS(t, ts.URL, "Bob")
	readEvent(t, bob)

	ev := readUntil(t, alice, chat.EventUserJoined)
	raw, _ := json.Marshal(ev.Payload)
	var payload map[string]string
	json.Unmarshal(raw, &payload)
	if payload["name"] != "Bob" {
		t.Errorf("expected Bob join announcement, got %v", payload)
	}

	bob.Close()
	ev = readUntil(t, alice, chat.EventUserLeft)
	raw, _ = json.Marshal(ev.Payload)
	json.Unmarshal(raw, &payload)
	if payload["name"] != "Bob" {
		t.Errorf("expected Bob leave announcement, got %v", payload)
	}

	// Registry drains once the server side notices the close.
	deadline := time.Now().Add(2 * time.Second)
	for srv.registry.ActiveCount() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if got := srv.registry.ActiveCount(); got != 1 {
		t.Errorf("expected 1 session after Bob left, got %d", got)
	}
}

func TestWSRejectsBadName(t *testing.T) {
	ts, _ := newTestServer(t)
	for _, name := range []string{"", strings.Repeat("x", 21)} {
		wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws?name=" + name
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		if err == nil {
			t.Fatalf("name %q: expected handshake failure", name)
		}
		if resp == nil || resp.StatusCode != http.StatusBadRequest {
			t.Errorf("name %q: expected 400 handshake response", name)
		}
	}
}

func TestFileUploadAnnouncement(t *testing.T) {
	ts, _ := newTestServer(t)

	alice := dialWS(t, ts.URL, "Alice")
	readEvent(t, alice)

	body, contentType := multipartBody(t, "shared.bin", []byte{1, 2, 3, 4})
	resp, err := http.Post(ts.URL+"/upload", contentType, body)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	resp.Body.Close()

	ev := readUntil(t, alice, chat.EventFileUploaded)
	raw, _ := json.Marshal(ev.Payload)
	var sf struct {
		Name string `json:"name"`
		Size int64  `json:"size"`
	}
	if err := json.Unmarshal(raw, &sf); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if sf.Name != "shared.bin" || sf.Size != 4 {
		t.Errorf("unexpected announcement: %+v", sf)
	}
}
