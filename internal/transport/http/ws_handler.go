package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"mocktest-client/internal/app"
	"mocktest-client/internal/domain"
)

// WSHandler bridges a browser front-end to one session store: inbound
// messages become store actions, every state change is pushed back.
type WSHandler struct {
	sessions *app.SessionStore
	analysis *app.AnalysisStore
	upgrader websocket.Upgrader
	log      zerolog.Logger
}

func NewWSHandler(sessions *app.SessionStore, analysis *app.AnalysisStore, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		analysis: analysis,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		log: log.With().Str("component", "ws").Logger(),
	}
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	QuestionID string `json:"questionId"`
	Option     string `json:"option"`
}

type navigatePayload struct {
	Index int `json:"index"`
}

type subjectPayload struct {
	Subject string `json:"subject"`
}

type testPayload struct {
	TestID     string `json:"testId"`
	Regenerate bool   `json:"regenerate"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

var errBadPayload = errors.New("invalid payload")

// ServeWS upgrades HTTP requests to websockets and wires them into the session actions.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	updates, cancel := h.sessions.Subscribe()
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	updatesDone := make(chan struct{})

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				h.log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(updatesDone)
		for {
			select {
			case view, ok := <-updates:
				if !ok {
					return
				}
				select {
				case send <- outboundMessage[any]{Type: "state", Payload: view}:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	// Actions outlive the connection once started.
	ctx := context.WithoutCancel(r.Context())
	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		reply, err := h.dispatch(ctx, inbound)
		if err != nil {
			reply = &outboundMessage[any]{Type: "error", Payload: errorPayload{Message: err.Error()}}
		}
		if reply != nil && !enqueue(send, writerDone, *reply) {
			break
		}
	}

	close(closeSignals)
	<-updatesDone
	close(send)
	<-writerDone
}

// enqueue hands msg to the writer. It reports false once the writer is gone.
func enqueue(send chan<- outboundMessage[any], writerDone <-chan struct{}, msg outboundMessage[any]) bool {
	select {
	case send <- msg:
		return true
	case <-writerDone:
		return false
	}
}

// dispatch applies one inbound action. State changes reach the client through
// the subscription; only results that are not part of the session view are
// returned here.
func (h *WSHandler) dispatch(ctx context.Context, in inboundMessage) (*outboundMessage[any], error) {
	switch in.Type {
	case "create":
		var cfg domain.TestConfig
		if err := decode(in.Payload, &cfg); err != nil {
			return nil, err
		}
		if err := h.sessions.CreateAndLoad(ctx, cfg); err != nil {
			return nil, err
		}
		_, err := h.sessions.StartTimer()
		return nil, err
	case "load":
		var p testPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		if err := h.sessions.LoadExisting(ctx, p.TestID); err != nil {
			return nil, err
		}
		_, err := h.sessions.StartTimer()
		return nil, err
	case "answer":
		var p answerPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return nil, h.sessions.RecordAnswer(p.QuestionID, p.Option)
	case "navigate":
		var p navigatePayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return nil, h.sessions.Navigate(p.Index)
	case "next":
		return nil, h.sessions.Next()
	case "previous":
		return nil, h.sessions.Previous()
	case "subject":
		var p subjectPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		return nil, h.sessions.NavigateToSubject(p.Subject)
	case "submit":
		_, err := h.sessions.Submit(ctx)
		if errors.Is(err, domain.ErrAlreadySubmitted) {
			return nil, nil
		}
		return nil, err
	case "results":
		var p testPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		_, err := h.sessions.RefreshResults(ctx, p.TestID)
		return nil, err
	case "reset":
		h.sessions.Reset(ctx)
		h.analysis.Clear()
		return nil, nil
	case "dismiss":
		h.sessions.DismissError()
		return nil, nil
	case "analysis":
		var p testPayload
		if err := decode(in.Payload, &p); err != nil {
			return nil, err
		}
		if p.TestID == "" {
			p.TestID = h.sessions.State().TestID
		}
		var err error
		if p.Regenerate {
			_, err = h.analysis.Regenerate(ctx, p.TestID)
		} else {
			_, err = h.analysis.Generate(ctx, p.TestID)
		}
		if err != nil {
			return nil, err
		}
		return &outboundMessage[any]{Type: "analysis", Payload: h.analysis.State()}, nil
	default:
		return nil, errors.New("unsupported message type")
	}
}

func decode(raw json.RawMessage, dst any) error {
	if len(raw) == 0 {
		return errBadPayload
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return errBadPayload
	}
	return nil
}
