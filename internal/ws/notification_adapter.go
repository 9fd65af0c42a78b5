package ws

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/dto"
	"github.com/ignatzorin/vialert-backend/internal/geo"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

// NotificationAdapter доставляет события сервисов через хаб.
// Последний видимый набор запоминается, чтобы отдать его новому соединению сразу.
type NotificationAdapter struct {
	hub *Hub

	mu       sync.RWMutex
	snapshot []dto.AlertResponse
}

var (
	_ service.SnapshotConsumer = (*NotificationAdapter)(nil)
	_ service.ProfileSender    = (*NotificationAdapter)(nil)
	_ service.NavigationSender = (*NotificationAdapter)(nil)
)

func NewNotificationAdapter(hub *Hub) *NotificationAdapter {
	return &NotificationAdapter{hub: hub, snapshot: []dto.AlertResponse{}}
}

// OnSnapshot рассылает видимый набор всем клиентам.
func (a *NotificationAdapter) OnSnapshot(_ context.Context, visible []*entity.Alert) {
	list := dto.NewAlertList(visible)

	a.mu.Lock()
	a.snapshot = list
	a.mu.Unlock()

	if err := a.hub.Broadcast(EventAlerts, list); err != nil {
		a.hub.log.WithError(err).Error("не удалось разослать снимок отчётов")
	}
}

// Snapshot возвращает последний разосланный набор.
func (a *NotificationAdapter) Snapshot() []dto.AlertResponse {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snapshot
}

func (a *NotificationAdapter) SendProfile(userID uuid.UUID, profile *entity.Profile) {
	a.send(userID, EventProfile, dto.NewProfileResponse(profile))
}

func (a *NotificationAdapter) SendProximity(userID uuid.UUID, p *geo.Proximity) {
	a.send(userID, EventProximity, dto.NewProximityResponse(p))
}

func (a *NotificationAdapter) SendRoute(userID uuid.UUID, route *valueobject.Route, onRoute int) {
	a.send(userID, EventRoute, dto.RouteResponse{Route: route, OnRoute: onRoute})
}

// Speak просит клиента прервать текущее сообщение и произнести новое.
func (a *NotificationAdapter) Speak(userID uuid.UUID, text string) {
	a.send(userID, EventSpeak, dto.SpeakEvent{Text: text, CancelPrevious: true})
}

// Welcome отправляет новому соединению текущий снимок и профиль.
func (a *NotificationAdapter) Welcome(userID uuid.UUID, profile *entity.Profile) {
	a.send(userID, EventAlerts, a.Snapshot())
	if profile != nil {
		a.SendProfile(userID, profile)
	}
}

func (a *NotificationAdapter) send(userID uuid.UUID, event string, data any) {
	if err := a.hub.SendToUser(userID, event, data); err != nil {
		a.hub.log.WithError(err).WithField("event", event).Error("не удалось отправить событие")
	}
}
