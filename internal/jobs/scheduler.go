// Package jobs управляет фоновыми задачами (cron): периодическая очистка отчётов
// и повторная отправка офлайн-очереди.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/metrics"
	"github.com/ignatzorin/vialert-backend/internal/service"
)

// Sweeper - проход очистки отчётов.
type Sweeper interface {
	Refresh(ctx context.Context) (service.SweepPlan, error)
}

// QueueReplayer повторяет отложенные отчёты.
type QueueReplayer interface {
	ReplayQueue(ctx context.Context) (int, error)
}

// QueueMeter сообщает размер очереди.
type QueueMeter interface {
	Len(ctx context.Context) (int, error)
}

// Schedules - cron выражения задач.
type Schedules struct {
	Sweep  string
	Outbox string
}

// Scheduler управляет фоновыми задачами.
type Scheduler struct {
	cron      *cron.Cron
	schedules Schedules
	sweeper   Sweeper
	replayer  QueueReplayer
	queue     QueueMeter
	timeout   time.Duration
	log       *logrus.Entry
}

// NewScheduler создаёт планировщик в часовом поясе Эквадора.
func NewScheduler(schedules Schedules, sweeper Sweeper, replayer QueueReplayer, queue QueueMeter) *Scheduler {
	log := logger.Component("cron")
	loc, err := time.LoadLocation("America/Guayaquil")
	if err != nil {
		log.WithError(err).Warn("Не удалось загрузить America/Guayaquil, используем UTC-5")
		loc = time.FixedZone("ECT", -5*60*60)
	}

	cronLog := cron.PrintfLogger(log)
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &Scheduler{
		cron:      c,
		schedules: schedules,
		sweeper:   sweeper,
		replayer:  replayer,
		queue:     queue,
		timeout:   30 * time.Second,
		log:       log,
	}
}

// Start регистрирует задачи и запускает планировщик. Задачи с пустым расписанием пропускаются.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.schedules.Sweep != "" && s.sweeper != nil {
		if _, err := s.cron.AddFunc(s.schedules.Sweep, func() { s.RunSweep(ctx) }); err != nil {
			return fmt.Errorf("jobs: расписание очистки %q: %w", s.schedules.Sweep, err)
		}
	}
	if s.schedules.Outbox != "" && s.replayer != nil {
		if _, err := s.cron.AddFunc(s.schedules.Outbox, func() { s.RunOutbox(ctx) }); err != nil {
			return fmt.Errorf("jobs: расписание очереди %q: %w", s.schedules.Outbox, err)
		}
	}

	s.cron.Start()
	s.log.WithFields(logrus.Fields{
		"sweep":  s.schedules.Sweep,
		"outbox": s.schedules.Outbox,
	}).Info("Планировщик задач запущен")
	return nil
}

// Stop останавливает планировщик и ждёт выполняющиеся задачи.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info("Планировщик задач остановлен")
}

// RunSweep - периодический проход очистки на случай, если уведомление об изменении потерялось.
func (s *Scheduler) RunSweep(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	plan, err := s.sweeper.Refresh(ctx)
	if err != nil {
		s.log.WithError(err).Error("[CRON] Ошибка очистки")
		return
	}
	s.log.WithFields(logrus.Fields{
		"visible":       len(plan.Visible),
		"expired":       len(plan.Expired),
		"over_disputed": len(plan.OverDisputed),
	}).Debug("[CRON] Очистка")
}

// RunOutbox отправляет накопленные офлайн отчёты и обновляет метрику размера очереди.
func (s *Scheduler) RunOutbox(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	sent, err := s.replayer.ReplayQueue(ctx)
	switch {
	case err != nil:
		s.log.WithError(err).Warn("[CRON] Очередь не отправлена")
	case sent > 0:
		s.log.WithField("sent", sent).Info("[CRON] Отложенные отчёты отправлены")
	}

	if s.queue == nil {
		return
	}
	if n, err := s.queue.Len(ctx); err == nil {
		metrics.OutboxSize.Set(float64(n))
	}
}
