package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/agentx/aichat/internal/api/middleware"
	"github.com/agentx/aichat/internal/auth"
	"github.com/agentx/aichat/internal/models"
	"github.com/agentx/aichat/internal/services"
)

// chatEventBuffer bounds how far the provider may run ahead of a slow client
const chatEventBuffer = 32

// defaultStreamStartTimeout applies when no stream start timeout is configured
const defaultStreamStartTimeout = 60 * time.Second

// ChatRequest is the body of POST /conversations/:id/chat
type ChatRequest struct {
	Action  string `json:"action"`
	ChatID  string `json:"chat_id"`
	Message string `json:"message"`
}

// ChatHandler serves the chat frontend of one conversation
type ChatHandler struct {
	svc                *services.ConversationService
	logger             *logrus.Logger
	streamStartTimeout time.Duration
}

// NewChatHandler creates a new chat handler. A streamed turn that yields
// no event within streamStartTimeout is cancelled.
func NewChatHandler(svc *services.ConversationService, logger *logrus.Logger, streamStartTimeout time.Duration) *ChatHandler {
	if streamStartTimeout <= 0 {
		streamStartTimeout = defaultStreamStartTimeout
	}
	return &ChatHandler{svc: svc, logger: logger, streamStartTimeout: streamStartTimeout}
}

func caller(c *fiber.Ctx) services.Caller {
	return services.Caller{
		UserID: middleware.GetUserID(c),
		Admin:  middleware.IsAdmin(c),
	}
}

// Get handles GET /api/v1/conversations/:id/chat?action=config|chats|chat
func (h *ChatHandler) Get(c *fiber.Ctx) error {
	ctx := c.UserContext()
	conversationID := c.Params("id")

	switch action := c.Query("action"); action {
	case "config":
		cfg, err := h.svc.Config(ctx, caller(c), conversationID)
		if err != nil {
			return err
		}
		return c.JSON(cfg)
	case "chats":
		chats, err := h.svc.ListChats(ctx, caller(c), conversationID)
		if err != nil {
			return err
		}
		return c.JSON(chats)
	case "chat":
		chat, err := h.svc.GetChat(ctx, caller(c), conversationID, c.Query("chat_id"))
		if err != nil {
			return err
		}
		return c.JSON(chat)
	default:
		return models.NewValidationError("unknown action %q", action)
	}
}

// Post handles POST /api/v1/conversations/:id/chat with an action body
func (h *ChatHandler) Post(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return models.NewValidationError("invalid request body")
	}
	if req.Action == "" {
		req.Action = c.Query("action")
	}

	ctx := c.UserContext()
	conversationID := c.Params("id")

	switch req.Action {
	case "new_chat":
		chat, err := h.svc.NewChat(ctx, caller(c), conversationID)
		if err != nil {
			return err
		}
		return c.JSON(chat)
	case "delete_chat":
		err := h.svc.DeleteChat(ctx, caller(c), conversationID, req.ChatID)
		if models.IsKind(err, models.KindNotFound) {
			return c.JSON(false)
		}
		if err != nil {
			return err
		}
		return c.JSON(true)
	case "add_message":
		return h.addMessage(c, conversationID, req)
	default:
		return models.NewValidationError("unknown action %q", req.Action)
	}
}

// turnEvent is one step of a running turn: a raw chunk, or the final
// result or error.
type turnEvent struct {
	chunk []byte
	turn  *services.Turn
	err   error
}

func (h *ChatHandler) addMessage(c *fiber.Ctx, conversationID string, req ChatRequest) error {
	who := caller(c)

	streams, err := h.svc.Streams(c.UserContext(), who, conversationID)
	if err != nil {
		return err
	}
	if !streams {
		turn, err := h.svc.AddMessage(c.UserContext(), who, conversationID, req.ChatID, req.Message, nil)
		if err != nil {
			return err
		}
		return c.JSON(turn)
	}

	// The turn outlives this handler call: the body is written later by
	// the stream writer, which cancels ctx when the client goes away.
	ctx, cancel := context.WithCancel(context.Background())
	events := h.runTurn(ctx, who, conversationID, req)

	// Nothing has been written yet, so a client that goes away now goes
	// unnoticed. The wait is bounded instead; cancelling the turn aborts
	// the upstream request and nothing more is stored.
	timer := time.NewTimer(h.streamStartTimeout)
	defer timer.Stop()

	var first turnEvent
	select {
	case event, ok := <-events:
		if !ok {
			cancel()
			return fiber.ErrInternalServerError
		}
		first = event
	case <-timer.C:
		cancel()
		h.logger.WithField("conversation_id", conversationID).Warn("Provider sent nothing before the stream start timeout")
		return fiber.NewError(fiber.StatusGatewayTimeout, "The LLM provider did not respond in time")
	}

	// Errors raised before the first chunk still get a proper status.
	if first.err != nil {
		cancel()
		return first.err
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	log := h.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"chat_id":         req.ChatID,
	})

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer cancel()

		event := first
		for {
			if err := writeSSE(w, event); err != nil {
				log.WithError(err).Info("Client disconnected during stream")
				cancel()
				for range events {
				}
				return
			}

			var ok bool
			if event, ok = <-events; !ok {
				return
			}
		}
	})

	return nil
}

// runTurn starts the turn in its own goroutine and returns the channel
// its events arrive on. The channel is closed after the final event.
func (h *ChatHandler) runTurn(ctx context.Context, who services.Caller, conversationID string, req ChatRequest) <-chan turnEvent {
	events := make(chan turnEvent, chatEventBuffer)

	go func() {
		defer close(events)

		turn, err := h.svc.AddMessage(ctx, who, conversationID, req.ChatID, req.Message, func(chunk []byte) error {
			select {
			case events <- turnEvent{chunk: chunk}:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})

		select {
		case events <- turnEvent{turn: turn, err: err}:
		case <-ctx.Done():
		}
	}()

	return events
}

// writeSSE relays raw chunks verbatim and frames the final result or
// error as named events.
func writeSSE(w *bufio.Writer, event turnEvent) error {
	var err error
	switch {
	case event.chunk != nil:
		_, err = w.Write(event.chunk)
	case event.err != nil:
		_, message := errorStatus(event.err)
		data, _ := json.Marshal(fiber.Map{"error": message})
		_, err = fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	default:
		data, marshalErr := json.Marshal(event.turn)
		if marshalErr != nil {
			return marshalErr
		}
		_, err = fmt.Fprintf(w, "event: result\ndata: %s\n\n", data)
	}
	if err != nil {
		return err
	}
	return w.Flush()
}

// wsFrame is sent after the raw chunks of a websocket turn
type wsFrame struct {
	Type   string         `json:"type"`
	Result *services.Turn `json:"result,omitempty"`
	Error  string         `json:"error,omitempty"`
	Status int            `json:"status,omitempty"`
}

// Socket handles GET /ws/conversations/:id/chat. Every JSON request read
// from the socket runs one turn; raw chunks go out as text frames
// followed by a result or error frame.
func (h *ChatHandler) Socket(c *websocket.Conn) {
	defer c.Close()

	who := services.Caller{}
	if id, ok := c.Locals("user_id").(string); ok {
		who.UserID = id
	}
	if role, ok := c.Locals("user_role").(string); ok {
		who.Admin = role == auth.RoleAdmin
	}
	conversationID := c.Params("id")

	log := h.logger.WithFields(logrus.Fields{
		"conversation_id": conversationID,
		"user_id":         who.UserID,
	})

	for {
		var req ChatRequest
		if err := c.ReadJSON(&req); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.WithError(err).Debug("Websocket read ended")
			}
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		turn, err := h.svc.AddMessage(ctx, who, conversationID, req.ChatID, req.Message, func(chunk []byte) error {
			return c.WriteMessage(websocket.TextMessage, chunk)
		})
		cancel()

		frame := wsFrame{Type: "result", Result: turn}
		if err != nil {
			status, message := errorStatus(err)
			frame = wsFrame{Type: "error", Error: message, Status: status}
		}
		if err := c.WriteJSON(frame); err != nil {
			log.WithError(err).Debug("Websocket write failed")
			return
		}
	}
}
