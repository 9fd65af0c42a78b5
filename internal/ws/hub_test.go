package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

type received struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

type fakeVoter struct {
	mu    sync.Mutex
	calls []string
}

func (f *fakeVoter) record(kind string, alertID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind+":"+alertID.String())
}

func (f *fakeVoter) Confirm(_ context.Context, alertID, _ uuid.UUID) (entity.VoteResult, error) {
	f.record("confirm", alertID)
	return entity.VoteResult{Applied: true, Promoted: true}, nil
}

func (f *fakeVoter) Dispute(_ context.Context, alertID, _ uuid.UUID) (entity.VoteResult, error) {
	f.record("dispute", alertID)
	return entity.VoteResult{Applied: true}, nil
}

type fakeTracker struct {
	mu   sync.Mutex
	last map[uuid.UUID]valueobject.LatLng
}

func (f *fakeTracker) UpdateLocation(_ context.Context, userID uuid.UUID, loc valueobject.LatLng) (service.NavigationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last[userID] = loc
	return service.NavigationState{}, nil
}

func (f *fakeTracker) get(userID uuid.UUID) (valueobject.LatLng, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	loc, ok := f.last[userID]
	return loc, ok
}

type wsFixture struct {
	hub     *Hub
	server  *httptest.Server
	voter   *fakeVoter
	tracker *fakeTracker
}

func newWSFixture(t *testing.T) *wsFixture {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())

	f := &wsFixture{
		hub:     NewHub(),
		voter:   &fakeVoter{},
		tracker: &fakeTracker{last: make(map[uuid.UUID]valueobject.LatLng)},
	}
	go f.hub.Run(ctx)

	commands := NewCommands(f.hub, f.voter, f.tracker)
	upgrader := websocket.Upgrader{}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := uuid.Parse(r.URL.Query().Get("user"))
		if err != nil {
			http.Error(w, "bad user", http.StatusBadRequest)
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, f.hub, userID, commands)
		if !f.hub.Register(client) {
			_ = conn.Close()
			return
		}
		client.Run(context.Background())
	}))

	t.Cleanup(func() {
		f.server.Close()
		cancel()
	})
	return f
}

func (f *wsFixture) dial(t *testing.T, userID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/?user=" + userID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) received {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg received
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestHub_SendToUserAndBroadcast(t *testing.T) {
	f := newWSFixture(t)
	ana, luis := uuid.New(), uuid.New()
	connAna := f.dial(t, ana)
	connLuis := f.dial(t, luis)

	require.Eventually(t, func() bool { return f.hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)
	assert.True(t, f.hub.IsOnline(ana))

	require.NoError(t, f.hub.SendToUser(ana, EventProfile, map[string]int{"trust_score": 100}))
	require.NoError(t, f.hub.Broadcast(EventAlerts, []string{}))

	assert.Equal(t, EventProfile, readEvent(t, connAna).Type)
	assert.Equal(t, EventAlerts, readEvent(t, connAna).Type)
	// Luis получает только рассылку.
	assert.Equal(t, EventAlerts, readEvent(t, connLuis).Type)
}

func TestHub_LastDisconnectHandler(t *testing.T) {
	f := newWSFixture(t)
	gone := make(chan uuid.UUID, 2)
	f.hub.SetDisconnectHandler(func(userID uuid.UUID) { gone <- userID })

	user := uuid.New()
	first := f.dial(t, user)
	second := f.dial(t, user)
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return f.hub.ClientCount() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Empty(t, gone)

	require.NoError(t, second.Close())
	select {
	case id := <-gone:
		assert.Equal(t, user, id)
	case <-time.After(2 * time.Second):
		t.Fatal("обработчик отключения не вызван")
	}
	assert.False(t, f.hub.IsOnline(user))
}

func TestCommands_OverWebsocket(t *testing.T) {
	f := newWSFixture(t)
	user := uuid.New()
	conn := f.dial(t, user)
	require.Eventually(t, func() bool { return f.hub.IsOnline(user) }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "location", "lat": -3.99313, "lng": -79.20422}))
	require.Eventually(t, func() bool {
		loc, ok := f.tracker.get(user)
		return ok && loc == valueobject.LatLng{Lat: -3.99313, Lng: -79.20422}
	}, time.Second, 5*time.Millisecond)

	alertID := uuid.New()
	require.NoError(t, conn.WriteJSON(map[string]any{"type": "confirm", "alert_id": alertID.String()}))
	vote := readEvent(t, conn)
	require.Equal(t, EventVote, vote.Type)
	var body struct {
		AlertID   uuid.UUID `json:"alert_id"`
		Direction string    `json:"direction"`
		Applied   bool      `json:"applied"`
		Promoted  bool      `json:"promoted"`
	}
	require.NoError(t, json.Unmarshal(vote.Data, &body))
	assert.Equal(t, alertID, body.AlertID)
	assert.Equal(t, "confirm", body.Direction)
	assert.True(t, body.Promoted)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "dispute", "alert_id": "nope"}))
	assert.Equal(t, EventError, readEvent(t, conn).Type)

	require.NoError(t, conn.WriteJSON(map[string]any{"type": "teleport"}))
	assert.Equal(t, EventError, readEvent(t, conn).Type)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("{")))
	assert.Equal(t, EventError, readEvent(t, conn).Type)

	f.voter.mu.Lock()
	defer f.voter.mu.Unlock()
	assert.Equal(t, []string{"confirm:" + alertID.String()}, f.voter.calls)
}

func TestNotificationAdapter_WelcomeAndSnapshot(t *testing.T) {
	f := newWSFixture(t)
	adapter := NewNotificationAdapter(f.hub)
	user := uuid.New()
	conn := f.dial(t, user)
	require.Eventually(t, func() bool { return f.hub.IsOnline(user) }, time.Second, 5*time.Millisecond)

	alert := &entity.Alert{ID: uuid.New(), Type: valueobject.AlertTypeAccident, Status: valueobject.AlertStatusActive}
	adapter.OnSnapshot(context.Background(), []*entity.Alert{alert})
	require.Len(t, adapter.Snapshot(), 1)

	msg := readEvent(t, conn)
	require.Equal(t, EventAlerts, msg.Type)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(msg.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "Accidente", list[0]["type_label"])

	adapter.Welcome(user, entity.NewProfile(user, time.Now()))
	assert.Equal(t, EventAlerts, readEvent(t, conn).Type)
	profile := readEvent(t, conn)
	assert.Equal(t, EventProfile, profile.Type)
	assert.Contains(t, string(profile.Data), `"tier":"ACTIVE"`)

	adapter.Speak(user, "Precaución, Accidente a 11 metros.")
	speak := readEvent(t, conn)
	assert.Equal(t, EventSpeak, speak.Type)
	assert.JSONEq(t, `{"text":"Precaución, Accidente a 11 metros.","cancel_previous":true}`, string(speak.Data))
}
