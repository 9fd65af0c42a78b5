// Package memory - хранилище в памяти процесса для разработки и тестов.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/repository/common"
)

type Store struct {
	mu       sync.Mutex
	alerts   map[uuid.UUID]*entity.Alert
	profiles map[uuid.UUID]*entity.Profile
	notifier *common.Notifier
	now      func() time.Time
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		alerts:   make(map[uuid.UUID]*entity.Alert),
		profiles: make(map[uuid.UUID]*entity.Profile),
		notifier: common.NewNotifier(),
		now:      time.Now,
	}
}

func (s *Store) CreateAlert(_ context.Context, alert *entity.Alert) error {
	s.mu.Lock()
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	s.alerts[alert.ID] = alert.Clone()
	s.mu.Unlock()

	s.notifier.Publish(repository.ChangeEvent{Collection: repository.CollectionAlerts, Op: repository.OpInsert, ID: alert.ID})
	return nil
}

func (s *Store) GetAlert(_ context.Context, id uuid.UUID) (*entity.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[id]
	if !ok {
		return nil, apperror.ErrAlertNotFound
	}
	return a.Clone(), nil
}

// ListAlerts возвращает отчёты от новых к старым.
func (s *Store) ListAlerts(_ context.Context) ([]*entity.Alert, error) {
	s.mu.Lock()
	out := make([]*entity.Alert, 0, len(s.alerts))
	for _, a := range s.alerts {
		out = append(out, a.Clone())
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) DeleteAlert(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	_, ok := s.alerts[id]
	delete(s.alerts, id)
	s.mu.Unlock()

	if !ok {
		return apperror.ErrAlertNotFound
	}
	s.notifier.Publish(repository.ChangeEvent{Collection: repository.CollectionAlerts, Op: repository.OpDelete, ID: id})
	return nil
}

func (s *Store) ApplyVote(_ context.Context, id uuid.UUID, mutate repository.VoteMutation) (entity.VoteResult, error) {
	s.mu.Lock()
	a, ok := s.alerts[id]
	if !ok {
		s.mu.Unlock()
		return entity.VoteResult{}, apperror.ErrAlertNotFound
	}

	res := mutate(a)
	var rewarded *uuid.UUID
	if res.Applied && res.RewardTo != nil && res.RewardDelta != 0 {
		p := s.profileLocked(*res.RewardTo)
		p.TrustScore += res.RewardDelta
		p.UpdatedAt = s.now()
		rewarded = res.RewardTo
	}
	s.mu.Unlock()

	if res.Applied {
		s.notifier.Publish(repository.ChangeEvent{Collection: repository.CollectionAlerts, Op: repository.OpUpdate, ID: id})
	}
	if rewarded != nil {
		s.notifier.Publish(repository.ChangeEvent{Collection: repository.CollectionProfiles, Op: repository.OpUpdate, ID: *rewarded})
	}
	return res, nil
}

func (s *Store) GetProfile(_ context.Context, id uuid.UUID) (*entity.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return nil, apperror.ErrProfileNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) CreateProfileIfAbsent(_ context.Context, profile *entity.Profile) (*entity.Profile, error) {
	s.mu.Lock()
	p, ok := s.profiles[profile.ID]
	if !ok {
		cp := *profile
		s.profiles[profile.ID] = &cp
		p = &cp
	}
	out := *p
	s.mu.Unlock()

	if !ok {
		s.notifier.Publish(repository.ChangeEvent{Collection: repository.CollectionProfiles, Op: repository.OpInsert, ID: profile.ID})
	}
	return &out, nil
}

func (s *Store) IncrementReportsCount(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	p := s.profileLocked(id)
	p.ReportsCount++
	p.UpdatedAt = s.now()
	s.mu.Unlock()

	s.notifier.Publish(repository.ChangeEvent{Collection: repository.CollectionProfiles, Op: repository.OpUpdate, ID: id})
	return nil
}

// profileLocked возвращает профиль, создавая его со стартовыми значениями. Вызывать под s.mu.
func (s *Store) profileLocked(id uuid.UUID) *entity.Profile {
	p, ok := s.profiles[id]
	if !ok {
		p = entity.NewProfile(id, s.now())
		s.profiles[id] = p
	}
	return p
}

// SetProfile перезаписывает профиль целиком (сиды и тесты).
func (s *Store) SetProfile(p *entity.Profile) {
	s.mu.Lock()
	cp := *p
	s.profiles[p.ID] = &cp
	s.mu.Unlock()
	s.notifier.Publish(repository.ChangeEvent{Collection: repository.CollectionProfiles, Op: repository.OpUpdate, ID: p.ID})
}

func (s *Store) Subscribe(ctx context.Context) <-chan repository.ChangeEvent {
	return s.notifier.Subscribe(ctx)
}

// Subscribers - число активных подписок.
func (s *Store) Subscribers() int {
	return s.notifier.Subscribers()
}

func (s *Store) Ping(context.Context) error {
	return nil
}

func (s *Store) Close() error {
	s.notifier.Close()
	return nil
}
