package http

import (
	"errors"
	"log"
	"net/http"

	"moral-quiz-service/internal/app"
	"moral-quiz-service/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// WSHandler streams purchase status changes for one checkout session.
type WSHandler struct {
	reconciler *app.Reconciler
	auth       *Verifier
	upgrader   websocket.Upgrader
}

func NewWSHandler(reconciler *app.Reconciler, auth *Verifier) *WSHandler {
	return &WSHandler{
		reconciler: reconciler,
		auth:       auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades the request and pushes a "status" message with the current
// state, then one per change. The socket closes after a terminal status.
// The result ID is only included for callers that may see the result.
func (h *WSHandler) ServeWS(c *gin.Context) {
	sessionID := c.Query("session_id")
	if sessionID == "" {
		respondBadRequest(c, "session_id is required")
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("ws upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	ctx := c.Request.Context()
	current, updates, cancel, err := h.reconciler.Subscribe(ctx, sessionID)
	if err != nil {
		msg := "status unavailable"
		if errors.Is(err, domain.ErrPurchaseNotFound) {
			msg = err.Error()
		}
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: msg}})
		return
	}
	defer cancel()
	caller, token := callerFrom(c, h.auth), accessToken(c)
	current = h.reconciler.ForCaller(ctx, caller, token, current)

	send := make(chan outboundMessage[domain.PurchaseStatusView], 8)
	writerDone := make(chan struct{})
	readerDone := make(chan struct{})

	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Printf("ws write error session=%s err=%v", sessionID, err)
				return
			}
			if msg.Payload.Terminal() {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(msg.Payload.Status)))
				return
			}
		}
	}()

	// clients only listen; reading surfaces their close frame
	go func() {
		defer close(readerDone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send <- outboundMessage[domain.PurchaseStatusView]{Type: "status", Payload: current}
	done := current.Terminal()
	for !done {
		select {
		case view, ok := <-updates:
			if !ok {
				done = true
				break
			}
			view = h.reconciler.ForCaller(ctx, caller, token, view)
			select {
			case send <- outboundMessage[domain.PurchaseStatusView]{Type: "status", Payload: view}:
			case <-writerDone:
				done = true
			}
			if view.Terminal() {
				done = true
			}
		case <-readerDone:
			done = true
		case <-writerDone:
			done = true
		case <-ctx.Done():
			done = true
		}
	}

	close(send)
	<-writerDone
}
