package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/repository/memory"
)

type recordingProfileSender struct {
	mu   sync.Mutex
	sent map[uuid.UUID]*entity.Profile
}

func (s *recordingProfileSender) SendProfile(userID uuid.UUID, p *entity.Profile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sent == nil {
		s.sent = make(map[uuid.UUID]*entity.Profile)
	}
	s.sent[userID] = p
}

func (s *recordingProfileSender) get(userID uuid.UUID) *entity.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sent[userID]
}

func TestChangeFeed_DisputeRemovesAccidentAndPushesProfile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := memory.NewStore()
	sender := &recordingProfileSender{}
	profiles := NewProfileService(store, sender)
	consumer := &recordingConsumer{}
	sweep := NewSweepService(store, consumer)
	alerts := NewAlertService(store, profiles, nil)

	feed := NewChangeFeed(store, sweep, profiles)
	done := make(chan struct{})
	go func() {
		feed.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return store.Subscribers() == 1 }, time.Second, 5*time.Millisecond)

	author := uuid.New()
	res, err := alerts.Submit(context.Background(), SubmitInput{
		Location: valueobject.LojaCenter,
		Type:     "accidente",
		AuthorID: author,
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		p := sender.get(author)
		return p != nil && p.ReportsCount == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Eventually(t, func() bool {
		last := consumer.last()
		return len(last) == 1 && last[0].ID == res.Alert.ID
	}, 2*time.Second, 10*time.Millisecond)

	_, err = alerts.Dispute(context.Background(), res.Alert.ID, uuid.New())
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		list, _ := store.ListAlerts(context.Background())
		return len(list) == 0 && len(consumer.last()) == 0
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop")
	}
	sweep.Wait()
}
