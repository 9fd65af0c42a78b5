package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/goroutine"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/metrics"
)

// Причины удаления.
const (
	ReasonExpired      = "expired"
	ReasonOverDisputed = "over_disputed"
)

// SweepPlan - результат очистки над одним снимком.
type SweepPlan struct {
	Visible      []*entity.Alert
	Expired      []uuid.UUID
	OverDisputed []uuid.UUID
}

// PlanSweep делит снимок на видимые отчёты и отчёты на удаление.
// Отчёт, который и истёк, и набрал жалобы, попадает только в OverDisputed.
func PlanSweep(now time.Time, alerts []*entity.Alert) SweepPlan {
	plan := SweepPlan{Visible: make([]*entity.Alert, 0, len(alerts))}
	for _, a := range alerts {
		switch {
		case a.OverDisputed():
			plan.OverDisputed = append(plan.OverDisputed, a.ID)
		case a.IsExpired(now):
			plan.Expired = append(plan.Expired, a.ID)
		default:
			plan.Visible = append(plan.Visible, a)
		}
	}
	return plan
}

// SnapshotConsumer получает видимый набор после каждой очистки.
type SnapshotConsumer interface {
	OnSnapshot(ctx context.Context, visible []*entity.Alert)
}

// SweepService перечитывает отчёты, публикует видимый набор и удаляет лишнее.
type SweepService struct {
	store     repository.AlertRepository
	consumers []SnapshotConsumer
	now       func() time.Time
	log       *logrus.Entry

	deleteTimeout time.Duration
	// passMu упорядочивает проходы: снимок, прочитанный раньше, не публикуется после более нового.
	passMu sync.Mutex
	// inFlight не даёт запустить второе удаление того же отчёта, пока первое не завершилось.
	inFlight sync.Map
	wg       sync.WaitGroup
}

func NewSweepService(store repository.AlertRepository, consumers ...SnapshotConsumer) *SweepService {
	return &SweepService{
		store:         store,
		consumers:     consumers,
		now:           time.Now,
		log:           logger.Component("sweep"),
		deleteTimeout: 10 * time.Second,
	}
}

// Refresh - один проход очистки. Удаления запускаются в фоне и не ждутся.
func (s *SweepService) Refresh(ctx context.Context) (SweepPlan, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	started := time.Now()
	defer func() { metrics.SweepDuration.Observe(time.Since(started).Seconds()) }()

	alerts, err := s.store.ListAlerts(ctx)
	if err != nil {
		s.log.WithError(err).Warn("не удалось прочитать отчёты")
		return SweepPlan{}, err
	}

	plan := PlanSweep(s.now(), alerts)
	metrics.VisibleAlerts.Set(float64(len(plan.Visible)))

	for _, c := range s.consumers {
		c.OnSnapshot(ctx, plan.Visible)
	}

	for _, id := range plan.OverDisputed {
		s.deleteAsync(id, ReasonOverDisputed)
	}
	for _, id := range plan.Expired {
		s.deleteAsync(id, ReasonExpired)
	}

	if n := len(plan.Expired) + len(plan.OverDisputed); n > 0 {
		s.log.WithFields(logrus.Fields{
			"visible":       len(plan.Visible),
			"expired":       len(plan.Expired),
			"over_disputed": len(plan.OverDisputed),
		}).Debug("очистка запланировала удаления")
	}
	return plan, nil
}

func (s *SweepService) deleteAsync(id uuid.UUID, reason string) {
	if _, busy := s.inFlight.LoadOrStore(id, struct{}{}); busy {
		return
	}

	s.wg.Add(1)
	goroutine.SafeGo(func() {
		defer s.wg.Done()
		defer s.inFlight.Delete(id)

		ctx, cancel := context.WithTimeout(context.Background(), s.deleteTimeout)
		defer cancel()

		if err := s.store.DeleteAlert(ctx, id); err != nil {
			// Следующий проход попробует снова.
			s.log.WithError(err).WithFields(logrus.Fields{
				"alert_id": id,
				"reason":   reason,
			}).Warn("не удалось удалить отчёт")
			metrics.SweepDeletions.WithLabelValues(reason, metrics.ResultError).Inc()
			return
		}
		metrics.SweepDeletions.WithLabelValues(reason, metrics.ResultOK).Inc()
	})
}

// Wait дожидается фоновых удалений (остановка сервера и тесты).
func (s *SweepService) Wait() {
	s.wg.Wait()
}
