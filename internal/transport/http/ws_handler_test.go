package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"mocktest-client/internal/app"
	"mocktest-client/internal/infra/memory"
)

func TestWebSocketSessionFlow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	bank := memory.NewQuestionBank(memory.NewStaticQuestionLoader(memory.SampleQuestions()), time.Minute)
	svc := memory.NewOfflineService(bank, clock)
	persist := app.NewPersistence(memory.NewSnapshotStore(), clock, 0, zerolog.Nop())
	sessions := app.NewSessionStore(svc, persist, app.SessionOptions{Clock: clock, Logger: zerolog.Nop()})
	defer sessions.Close(t.Context())
	wsHandler := NewWSHandler(sessions, app.NewAnalysisStore(svc, zerolog.Nop()), zerolog.Nop())

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wsHandler.ServeWS)
	server := httptest.NewServer(mux)
	defer server.Close()

	u := "ws" + server.URL[len("http"):] + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Expect the current state first.
	_, payload := readNext(conn, t, "state")
	if payload["status"] != "empty" {
		t.Fatalf("expected empty state, got %v", payload["status"])
	}

	send(t, conn, "create", map[string]any{"subject": "Physics", "total_questions": 3, "duration": 1})
	state := readUntil(t, conn, func(p map[string]any) bool { return p["status"] == "in_progress" })
	questions, _ := state["questions"].([]any)
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}
	first, _ := questions[0].(map[string]any)

	send(t, conn, "answer", map[string]any{"questionId": first["question_id"], "option": "A"})
	readUntil(t, conn, func(p map[string]any) bool {
		answers, _ := p["answers"].(map[string]any)
		return len(answers) == 1
	})

	send(t, conn, "answer", map[string]any{"questionId": "nope", "option": "A"})
	readUntilType(t, conn, "error")

	send(t, conn, "submit", nil)
	done := readUntil(t, conn, func(p map[string]any) bool { return p["status"] == "completed" })
	if done["results"] == nil {
		t.Fatalf("expected results in completed state")
	}

	send(t, conn, "analysis", map[string]any{})
	analysis := readUntilType(t, conn, "analysis")
	if analysis["analysis"] == nil {
		t.Fatalf("expected analysis payload, got %v", analysis)
	}

	send(t, conn, "bogus", nil)
	readUntilType(t, conn, "error")
}

func send(t *testing.T, conn *websocket.Conn, typ string, payload any) {
	t.Helper()
	msg := map[string]any{"type": typ}
	if payload != nil {
		msg["payload"] = payload
	}
	if err := conn.WriteJSON(msg); err != nil {
		t.Fatalf("write %s: %v", typ, err)
	}
}

func readNext(conn *websocket.Conn, t *testing.T, expect string) (string, map[string]any) {
	t.Helper()
	var msg struct {
		Type    string         `json:"type"`
		Payload map[string]any `json:"payload"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if err := conn.ReadJSON(&msg); err != nil {
		t.Fatalf("read json: %v", err)
	}
	if expect != "" && msg.Type != expect {
		t.Fatalf("expected type %s, got %s", expect, msg.Type)
	}
	return msg.Type, msg.Payload
}

func readUntil(t *testing.T, conn *websocket.Conn, match func(map[string]any) bool) map[string]any {
	t.Helper()
	for i := 0; i < 50; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == "state" && match(payload) {
			return payload
		}
	}
	t.Fatalf("state never matched")
	return nil
}

func readUntilType(t *testing.T, conn *websocket.Conn, want string) map[string]any {
	t.Helper()
	for i := 0; i < 50; i++ {
		typ, payload := readNext(conn, t, "")
		if typ == want {
			return payload
		}
	}
	t.Fatalf("no %s message received", want)
	return nil
}

func TestEnqueueStopsWhenWriterIsGone(t *testing.T) {
	send := make(chan outboundMessage[any], 1)
	writerDone := make(chan struct{})

	if !enqueue(send, writerDone, outboundMessage[any]{Type: "state"}) {
		t.Fatalf("expected message queued while the writer runs")
	}

	// Buffer full and the writer exited: enqueue must return instead of blocking.
	close(writerDone)
	done := make(chan bool, 1)
	go func() { done <- enqueue(send, writerDone, outboundMessage[any]{Type: "error"}) }()
	select {
	case ok := <-done:
		if ok {
			t.Fatalf("expected enqueue to fail after the writer exited")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("enqueue blocked on a full buffer")
	}
}
