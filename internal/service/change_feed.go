package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/logger"
)

// ChangeFeed слушает уведомления хранилища: изменения отчётов запускают очистку,
// изменения профилей уходят владельцам.
type ChangeFeed struct {
	store    repository.Store
	sweep    *SweepService
	profiles *ProfileService
	log      *logrus.Entry
}

func NewChangeFeed(store repository.Store, sweep *SweepService, profiles *ProfileService) *ChangeFeed {
	return &ChangeFeed{
		store:    store,
		sweep:    sweep,
		profiles: profiles,
		log:      logger.Component("change_feed"),
	}
}

// Run блокируется до отмены ctx или закрытия подписки.
func (f *ChangeFeed) Run(ctx context.Context) {
	events := f.store.Subscribe(ctx)

	// Начальный снимок.
	_, _ = f.sweep.Refresh(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				f.log.Info("подписка на изменения закрыта")
				return
			}
			f.handleBatch(ctx, f.drain(ev, events))
		}
	}
}

type changeBatch struct {
	alerts   bool
	profiles map[uuid.UUID]struct{}
}

// drain собирает уже накопившиеся события, чтобы пачка изменений дала один проход очистки.
func (f *ChangeFeed) drain(first repository.ChangeEvent, events <-chan repository.ChangeEvent) changeBatch {
	b := changeBatch{profiles: make(map[uuid.UUID]struct{})}
	b.add(first)
	for {
		select {
		case ev, ok := <-events:
			if !ok {
				return b
			}
			b.add(ev)
		default:
			return b
		}
	}
}

func (b *changeBatch) add(ev repository.ChangeEvent) {
	switch ev.Collection {
	case repository.CollectionAlerts:
		b.alerts = true
	case repository.CollectionProfiles:
		if ev.ID != uuid.Nil {
			b.profiles[ev.ID] = struct{}{}
		}
	}
}

func (f *ChangeFeed) handleBatch(ctx context.Context, b changeBatch) {
	if b.alerts {
		_, _ = f.sweep.Refresh(ctx)
	}
	if f.profiles == nil {
		return
	}
	for id := range b.profiles {
		f.profiles.Push(ctx, id)
	}
}
