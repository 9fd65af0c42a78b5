package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/ignatzorin/vialert-backend/internal/dto"
	"github.com/ignatzorin/vialert-backend/internal/goroutine"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
	sendBuffer     = 32
)

// CommandHandler обрабатывает типизированные команды клиента.
type CommandHandler interface {
	HandleCommand(ctx context.Context, userID uuid.UUID, cmd dto.WSCommand)
}

// Client представляет одно подключение WebSocket.
type Client struct {
	conn      *websocket.Conn
	hub       *Hub
	userID    uuid.UUID
	send      chan []byte
	commands  CommandHandler
	closeOnce sync.Once
}

// NewClient создаёт нового клиента. commands может быть nil: тогда входящие сообщения игнорируются.
func NewClient(conn *websocket.Conn, hub *Hub, userID uuid.UUID, commands CommandHandler) *Client {
	return &Client{
		conn:     conn,
		hub:      hub,
		userID:   userID,
		send:     make(chan []byte, sendBuffer),
		commands: commands,
	}
}

func (c *Client) UserID() uuid.UUID {
	return c.userID
}

// Run запускает обработку входящих и исходящих сообщений и возвращается, когда соединение закрыто.
func (c *Client) Run(ctx context.Context) {
	goroutine.SafeGo(c.writePump)
	c.readPump(ctx)
}

// Close закрывает соединение.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	})
}

func (c *Client) readPump(ctx context.Context) {
	defer c.Close()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.WithError(err).WithField("user_id", c.userID).Debug("соединение оборвано")
			}
			return
		}

		var cmd dto.WSCommand
		if err := json.Unmarshal(raw, &cmd); err != nil {
			_ = c.hub.SendToUser(c.userID, EventError, map[string]string{"message": "некорректное сообщение"})
			continue
		}
		if c.commands != nil {
			c.commands.HandleCommand(ctx, c.userID, cmd)
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
