package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/repository/memory"
	"github.com/ignatzorin/vialert-backend/internal/storage"
)

var fixedNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func strPtr(s string) *string { return &s }

// offlineStore - хранилище, которое отказывает в записи, пока offline=true.
type offlineStore struct {
	*memory.Store
	mu      sync.Mutex
	offline bool
}

func (s *offlineStore) setOffline(v bool) {
	s.mu.Lock()
	s.offline = v
	s.mu.Unlock()
}

func (s *offlineStore) CreateAlert(ctx context.Context, a *entity.Alert) error {
	s.mu.Lock()
	off := s.offline
	s.mu.Unlock()
	if off {
		return apperror.Network(errors.New("connection refused"), "хранилище недоступно")
	}
	return s.Store.CreateAlert(ctx, a)
}

type alertFixture struct {
	store  *offlineStore
	queue  *storage.Outbox
	alerts *AlertService
}

func newAlertFixture(t *testing.T) *alertFixture {
	t.Helper()
	store := &offlineStore{Store: memory.NewStore()}

	db, err := storage.Open(storage.InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	queue := storage.NewOutbox(db)

	profiles := NewProfileService(store, nil)
	profiles.now = func() time.Time { return fixedNow }
	alerts := NewAlertService(store, profiles, queue)
	alerts.now = func() time.Time { return fixedNow }

	return &alertFixture{store: store, queue: queue, alerts: alerts}
}

func TestAlertService_Submit_PotholeByTrustedUser(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	author := uuid.New()

	res, err := f.alerts.Submit(ctx, SubmitInput{
		Location: valueobject.LatLng{Lat: -3.9931, Lng: -79.2042},
		Type:     "bache",
		AuthorID: author,
	})

	require.NoError(t, err)
	require.False(t, res.Queued)
	assert.Equal(t, valueobject.AlertStatusActive, res.Alert.Status)
	assert.Equal(t, fixedNow.Add(24*time.Hour), res.Alert.ExpiresAt)
	assert.Equal(t, author, *res.Alert.CreatedBy)

	p, err := f.store.GetProfile(ctx, author)
	require.NoError(t, err)
	assert.Equal(t, 100, p.TrustScore)
	assert.Equal(t, 1, p.ReportsCount)
}

func TestAlertService_Submit_ObservationUserGetsPending(t *testing.T) {
	f := newAlertFixture(t)
	author := uuid.New()
	f.store.SetProfile(&entity.Profile{ID: author, TrustScore: 30})

	res, err := f.alerts.Submit(context.Background(), SubmitInput{
		Location:        valueobject.LojaCenter,
		Type:            "control",
		DurationMinutes: 60,
		AuthorID:        author,
	})

	require.NoError(t, err)
	assert.Equal(t, valueobject.AlertStatusPending, res.Alert.Status)
	assert.Equal(t, fixedNow.Add(60*time.Minute), res.Alert.ExpiresAt)
}

func TestAlertService_Submit_BannedUserRejected(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	author := uuid.New()
	f.store.SetProfile(&entity.Profile{ID: author, TrustScore: 0})

	_, err := f.alerts.Submit(ctx, SubmitInput{Location: valueobject.LojaCenter, Type: "bache", AuthorID: author})

	assert.ErrorIs(t, err, apperror.ErrBanned)
	list, _ := f.store.ListAlerts(ctx)
	assert.Empty(t, list)
	p, _ := f.store.GetProfile(ctx, author)
	assert.Zero(t, p.ReportsCount)
}

func TestAlertService_Submit_Errors(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	_, err := f.alerts.Submit(ctx, SubmitInput{Location: valueobject.LojaCenter, Type: "bache"})
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)

	_, err = f.alerts.Submit(ctx, SubmitInput{
		Location: valueobject.LojaCenter,
		Type:     "falla",
		Subtype:  strPtr("Socavón"),
		AuthorID: uuid.New(),
	})
	assert.True(t, apperror.IsValidation(err))
}

func TestAlertService_Submit_QueuedWhenOffline(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	author := uuid.New()
	f.store.setOffline(true)

	res, err := f.alerts.Submit(ctx, SubmitInput{Location: valueobject.LojaCenter, Type: "accidente", AuthorID: author})
	require.NoError(t, err)
	assert.True(t, res.Queued)
	assert.NotEqual(t, uuid.Nil, res.QueueID)

	n, _ := f.queue.Len(ctx)
	assert.Equal(t, 1, n)

	// Пока связи нет, очередь не трогаем.
	sent, err := f.alerts.ReplayQueue(ctx)
	assert.True(t, apperror.IsNetwork(err))
	assert.Zero(t, sent)

	f.store.setOffline(false)
	sent, err = f.alerts.ReplayQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	n, _ = f.queue.Len(ctx)
	assert.Zero(t, n)

	list, _ := f.store.ListAlerts(ctx)
	require.Len(t, list, 1)
	assert.Equal(t, valueobject.AlertTypeAccident, list[0].Type)
	assert.True(t, list[0].CreatedAt.Equal(fixedNow))
}

func TestAlertService_Submit_InvalidNeverQueued(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	f.store.setOffline(true)

	_, err := f.alerts.Submit(ctx, SubmitInput{Location: valueobject.LojaCenter, Type: "ovni", AuthorID: uuid.New()})
	assert.True(t, apperror.IsValidation(err))

	n, _ := f.queue.Len(ctx)
	assert.Zero(t, n)
}

func TestAlertService_ReplayQueue_DropsExpired(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	f.store.setOffline(true)

	_, err := f.alerts.Submit(ctx, SubmitInput{
		Location:        valueobject.LojaCenter,
		Type:            "control",
		DurationMinutes: 30,
		AuthorID:        uuid.New(),
	})
	require.NoError(t, err)

	f.store.setOffline(false)
	f.alerts.now = func() time.Time { return fixedNow.Add(time.Hour) }

	sent, err := f.alerts.ReplayQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	n, _ := f.queue.Len(ctx)
	assert.Zero(t, n)
	list, _ := f.store.ListAlerts(ctx)
	assert.Empty(t, list)
}

// stuckQueue - очередь, из которой не удаётся удалить запись.
type stuckQueue struct {
	*storage.Outbox
}

func (stuckQueue) Remove(context.Context, storage.Entry) error {
	return errors.New("badger: read-only")
}

func TestAlertService_ReplayQueue_LogsFailedRemoval(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	_, err := f.queue.Enqueue(ctx, fixedNow, []byte("{broken"))
	require.NoError(t, err)

	log, hook := logtest.NewNullLogger()
	f.alerts.queue = stuckQueue{Outbox: f.queue}
	f.alerts.log = log.WithField("component", "alerts")

	sent, err := f.alerts.ReplayQueue(ctx)
	require.NoError(t, err)
	assert.Zero(t, sent)

	var removalErrors int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Message == "не удалось удалить запись очереди" {
			removalErrors++
			assert.NotNil(t, e.Data[logrus.ErrorKey])
		}
	}
	assert.Equal(t, 1, removalErrors)

	n, _ := f.queue.Len(ctx)
	assert.Equal(t, 1, n)
}

func TestAlertService_ThreeConcurrentConfirmsRewardOnce(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()
	creator := uuid.New()
	f.store.SetProfile(&entity.Profile{ID: creator, TrustScore: 30})

	res, err := f.alerts.Submit(ctx, SubmitInput{Location: valueobject.LojaCenter, Type: "bache", AuthorID: creator})
	require.NoError(t, err)
	require.Equal(t, valueobject.AlertStatusPending, res.Alert.Status)

	var wg sync.WaitGroup
	results := make([]entity.VoteResult, 3)
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r, err := f.alerts.Confirm(ctx, res.Alert.ID, uuid.New())
			assert.NoError(t, err)
			results[i] = r
		}(i)
	}
	wg.Wait()

	promoted := 0
	for _, r := range results {
		if r.Promoted {
			promoted++
		}
	}
	assert.Equal(t, 1, promoted)

	a, err := f.store.GetAlert(ctx, res.Alert.ID)
	require.NoError(t, err)
	assert.Equal(t, valueobject.AlertStatusActive, a.Status)
	assert.True(t, a.Rewarded)
	assert.Equal(t, 3, a.Votes)

	p, _ := f.store.GetProfile(ctx, creator)
	assert.Equal(t, 35, p.TrustScore)
}

func TestAlertService_VoteEdgeCases(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	r, err := f.alerts.Confirm(ctx, uuid.New(), uuid.New())
	assert.NoError(t, err)
	assert.False(t, r.Applied)

	_, err = f.alerts.Dispute(ctx, uuid.New(), uuid.Nil)
	assert.ErrorIs(t, err, apperror.ErrAuthRequired)

	res, err := f.alerts.Submit(ctx, SubmitInput{Location: valueobject.LojaCenter, Type: "bache", AuthorID: uuid.New()})
	require.NoError(t, err)

	voter := uuid.New()
	r, _ = f.alerts.Dispute(ctx, res.Alert.ID, voter)
	assert.True(t, r.Applied)
	r, _ = f.alerts.Dispute(ctx, res.Alert.ID, voter)
	assert.False(t, r.Applied)

	a, _ := f.store.GetAlert(ctx, res.Alert.ID)
	assert.Equal(t, 1, a.Reports)
}

func TestAlertService_ListVisibleHidesExpired(t *testing.T) {
	f := newAlertFixture(t)
	ctx := context.Background()

	_, err := f.alerts.Submit(ctx, SubmitInput{Location: valueobject.LojaCenter, Type: "control", DurationMinutes: 30, AuthorID: uuid.New()})
	require.NoError(t, err)
	_, err = f.alerts.Submit(ctx, SubmitInput{Location: valueobject.LojaCenter, Type: "bache", AuthorID: uuid.New()})
	require.NoError(t, err)

	f.alerts.now = func() time.Time { return fixedNow.Add(45 * time.Minute) }
	visible, err := f.alerts.ListVisible(ctx)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, valueobject.AlertTypePothole, visible[0].Type)
}
