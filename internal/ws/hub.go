package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/goroutine"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/metrics"
)

// Имена событий, которые сервер отправляет клиенту.
const (
	EventAlerts    = "alerts"
	EventProfile   = "profile"
	EventProximity = "proximity"
	EventSpeak     = "speak"
	EventRoute     = "route"
	EventVote      = "vote"
	EventError     = "error"
)

const outboundBuffer = 256

// Hub управляет всеми WebSocket клиентами.
type Hub struct {
	mu         sync.RWMutex
	clients    map[uuid.UUID]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	outbound   chan message
	done       chan struct{}

	onLastDisconnect func(userID uuid.UUID)
	log              *logrus.Entry
}

type message struct {
	userID  uuid.UUID
	all     bool
	payload []byte
}

// envelope - формат всех сообщений: "type" содержит имя события, "data" - полезную нагрузку.
type envelope struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// NewHub создаёт новый хаб.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		outbound:   make(chan message, outboundBuffer),
		done:       make(chan struct{}),
		log:        logger.Component("ws"),
	}
}

// SetDisconnectHandler задаёт функцию, которую хаб вызывает, когда у пользователя закрылось последнее соединение.
func (h *Hub) SetDisconnectHandler(fn func(userID uuid.UUID)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onLastDisconnect = fn
}

// Run запускает главный цикл хаба до отмены ctx.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.outbound:
			h.deliver(msg)
		}
	}
}

// Register добавляет клиента.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	}
}

// Unregister удаляет клиента.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// SendToUser отправляет событие всем соединениям пользователя.
func (h *Hub) SendToUser(userID uuid.UUID, event string, data any) error {
	raw, err := encode(event, data)
	if err != nil {
		return err
	}
	h.enqueue(message{userID: userID, payload: raw})
	return nil
}

// Broadcast отправляет событие всем подключённым клиентам.
func (h *Hub) Broadcast(event string, data any) error {
	raw, err := encode(event, data)
	if err != nil {
		return err
	}
	h.enqueue(message{all: true, payload: raw})
	return nil
}

// ClientCount - число открытых соединений.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.clients {
		n += len(set)
	}
	return n
}

// IsOnline сообщает, есть ли у пользователя хотя бы одно соединение.
func (h *Hub) IsOnline(userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID]) > 0
}

func encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(envelope{Type: event, Data: data})
	if err != nil {
		return nil, fmt.Errorf("ws: не удалось сериализовать сообщение: %w", err)
	}
	return raw, nil
}

func (h *Hub) enqueue(msg message) {
	select {
	case h.outbound <- msg:
	case <-h.done:
	}
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.userID]; !ok {
		h.clients[client.userID] = make(map[*Client]struct{})
	}
	h.clients[client.userID][client] = struct{}{}
	metrics.WSClients.Inc()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	clients, ok := h.clients[client.userID]
	if ok {
		if _, present := clients[client]; !present {
			ok = false
		}
	}
	last := false
	if ok {
		delete(clients, client)
		close(client.send)
		metrics.WSClients.Dec()
		if len(clients) == 0 {
			delete(h.clients, client.userID)
			last = true
		}
	}
	handler := h.onLastDisconnect
	h.mu.Unlock()

	if last && handler != nil {
		userID := client.userID
		goroutine.SafeGo(func() { handler(userID) })
	}
}

func (h *Hub) deliver(msg message) {
	h.mu.RLock()
	var targets []*Client
	if msg.all {
		for _, set := range h.clients {
			for c := range set {
				targets = append(targets, c)
			}
		}
	} else {
		for c := range h.clients[msg.userID] {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, client := range targets {
		select {
		case client.send <- msg.payload:
		default:
			// Клиент не успевает читать: закрываем соединение.
			h.log.WithField("user_id", client.userID).Warn("буфер клиента переполнен, соединение закрыто")
			c := client
			goroutine.SafeGo(c.Close)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, set := range h.clients {
		for c := range set {
			close(c.send)
			metrics.WSClients.Dec()
		}
		delete(h.clients, userID)
	}
}
