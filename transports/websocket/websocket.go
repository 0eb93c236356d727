package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"midas/core"
	chatevents "midas/events/chat"
	"midas/handlers/chat"
	"midas/protocol"
)

// TurnRunner runs one chat turn, emitting its events through the emitter.
type TurnRunner interface {
	Run(ctx context.Context, req protocol.ChatRequest, emitter chat.Emitter) error
}

// NewUpgrader returns an upgrader that accepts any origin.
func NewUpgrader() *websocket.Upgrader {
	return &websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 64 * 1024,
		CheckOrigin:     func(r *http.Request) bool { return true },
	}
}

// ChatConn serves the chat protocol on one socket: JSON text frames for text,
// done and error messages, binary frames for WAV audio.
type ChatConn struct {
	conn         *websocket.Conn
	mu           sync.Mutex // protects writes and closed
	closed       bool
	writeTimeout time.Duration
	logger       *core.Logger
}

func NewChatConn(conn *websocket.Conn, logger *core.Logger) *ChatConn {
	return &ChatConn{
		conn:         conn,
		writeTimeout: 10 * time.Second,
		logger:       logger.With(map[string]any{"remote": conn.RemoteAddr().String()}),
	}
}

// Emit implements chat.Emitter.
func (c *ChatConn) Emit(ctx context.Context, packet *core.EventPacket) error {
	switch event := packet.Event.(type) {
	case *chatevents.TextChunkEvent:
		return c.writeMessage(protocol.MsgTextChunk, event.Content)
	case *chatevents.AudioOutputEvent:
		return c.write(websocket.BinaryMessage, event.WAV)
	case *chatevents.TurnCompletedEvent:
		return c.writeMessage(protocol.MsgDone, "")
	case *chatevents.TurnFailedEvent:
		return c.writeMessage(protocol.MsgError, event.Error)
	default:
		return fmt.Errorf("websocket: unsupported event %s", packet.Event.GetId())
	}
}

func (c *ChatConn) writeMessage(msgType protocol.MessageType, content string) error {
	data, err := protocol.Marshal(msgType, content)
	if err != nil {
		return err
	}
	return c.write(websocket.TextMessage, data)
}

func (c *ChatConn) write(messageType int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}
	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteMessage(messageType, data); err != nil {
		return fmt.Errorf("websocket: write: %w", err)
	}
	return nil
}

// Serve reads requests and runs turns one after another until the client
// disconnects, sends empty text, or a turn fails. The socket is closed on return.
func (c *ChatConn) Serve(ctx context.Context, runner TurnRunner) error {
	defer c.Close()

	// Unblock ReadMessage when the server shuts down.
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	c.logger.Info("chat socket connected")
	for {
		messageType, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) || ctx.Err() != nil {
				c.logger.Info("chat socket closed by client")
				return nil
			}
			return fmt.Errorf("websocket: read: %w", err)
		}
		if messageType != websocket.TextMessage {
			c.logger.Debug("ignoring non-text frame")
			continue
		}

		req, err := protocol.UnmarshalChatRequest(msg)
		if err != nil {
			c.fail(ctx, err)
			return err
		}
		if req.Text == "" {
			c.logger.Info("empty request, closing chat socket")
			c.closeNormally()
			return nil
		}

		if err := runner.Run(ctx, req, c); err != nil {
			if errors.Is(err, chat.ErrEmptyText) {
				c.closeNormally()
				return nil
			}
			c.fail(ctx, err)
			return err
		}
	}
}

// fail makes a best-effort attempt to report err before the socket closes.
func (c *ChatConn) fail(ctx context.Context, err error) {
	c.logger.With(map[string]any{"error": err}).Warn("chat turn failed, closing socket")
	packet := core.NewEventPacket(&chatevents.TurnFailedEvent{Error: err.Error()}, "", "ChatConn")
	if sendErr := c.Emit(ctx, packet); sendErr != nil {
		c.logger.Debug("could not report failure", "error", sendErr)
	}
}

func (c *ChatConn) closeNormally() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

// Close shuts down the WebSocket connection
func (c *ChatConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}
