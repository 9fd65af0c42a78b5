package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/domain/valueobject"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/metrics"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/storage"
)

// SubmissionQueue - офлайн-очередь отчётов.
type SubmissionQueue interface {
	Enqueue(ctx context.Context, queuedAt time.Time, payload []byte) (uuid.UUID, error)
	List(ctx context.Context) ([]storage.Entry, error)
	Remove(ctx context.Context, e storage.Entry) error
}

// SubmitInput - форма нового отчёта.
type SubmitInput struct {
	Location        valueobject.LatLng `json:"location"`
	Type            string             `json:"type"`
	Subtype         *string            `json:"subtype,omitempty"`
	Description     *string            `json:"description,omitempty"`
	DurationMinutes int                `json:"duration_minutes,omitempty"`
	Photo           *string            `json:"photo,omitempty"`
	AuthorID        uuid.UUID          `json:"author_id"`
}

// SubmitResult - отчёт сохранён, либо поставлен в очередь до восстановления связи.
type SubmitResult struct {
	Alert   *entity.Alert
	Queued  bool
	QueueID uuid.UUID
}

// AlertService - создание отчётов и голосование.
type AlertService struct {
	store    repository.Store
	profiles *ProfileService
	queue    SubmissionQueue
	now      func() time.Time
	log      *logrus.Entry
}

func NewAlertService(store repository.Store, profiles *ProfileService, queue SubmissionQueue) *AlertService {
	return &AlertService{
		store:    store,
		profiles: profiles,
		queue:    queue,
		now:      time.Now,
		log:      logger.Component("alerts"),
	}
}

// Submit проверяет форму, определяет стартовый статус по доверию автора и сохраняет отчёт.
// При недоступном хранилище отчёт уходит в офлайн-очередь, и вызывающий получает Queued.
func (s *AlertService) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	res, err := s.submitAt(ctx, in, s.now())
	if err == nil {
		metrics.AlertsSubmitted.WithLabelValues(typeLabel(in.Type), metrics.ResultOK).Inc()
		return res, nil
	}

	if !apperror.IsNetwork(err) || s.queue == nil {
		metrics.AlertsSubmitted.WithLabelValues(typeLabel(in.Type), metrics.ResultRejected).Inc()
		return nil, err
	}

	queueID, qErr := s.enqueue(ctx, in)
	if qErr != nil {
		s.log.WithError(qErr).Error("не удалось поставить отчёт в офлайн-очередь")
		metrics.AlertsSubmitted.WithLabelValues(typeLabel(in.Type), metrics.ResultError).Inc()
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"queue_id":  queueID,
		"author_id": in.AuthorID,
		"cause":     err.Error(),
	}).Warn("хранилище недоступно, отчёт поставлен в очередь")
	metrics.AlertsSubmitted.WithLabelValues(typeLabel(in.Type), metrics.ResultQueued).Inc()
	return &SubmitResult{Queued: true, QueueID: queueID}, nil
}

func (s *AlertService) submitAt(ctx context.Context, in SubmitInput, now time.Time) (*SubmitResult, error) {
	if in.AuthorID == uuid.Nil {
		return nil, apperror.ErrAuthRequired
	}

	// Форму проверяем до обращения к хранилищу: невалидный отчёт не должен попасть в очередь.
	params := entity.NewAlertParams{
		Type:            in.Type,
		Subtype:         in.Subtype,
		Description:     in.Description,
		Location:        in.Location,
		DurationMinutes: in.DurationMinutes,
		Photo:           in.Photo,
		AuthorID:        &in.AuthorID,
		AuthorScore:     valueobject.InitialTrustScore,
	}
	if _, err := entity.NewAlert(params, now); err != nil {
		return nil, err
	}

	profile, err := s.profiles.Ensure(ctx, in.AuthorID)
	if err != nil {
		return nil, err
	}
	if !profile.CanReport() {
		return nil, apperror.ErrBanned
	}

	params.AuthorScore = profile.TrustScore
	alert, err := entity.NewAlert(params, now)
	if err != nil {
		return nil, err
	}

	if err := s.store.CreateAlert(ctx, alert); err != nil {
		return nil, err
	}

	if err := s.store.IncrementReportsCount(ctx, in.AuthorID); err != nil {
		s.log.WithError(err).WithField("user_id", in.AuthorID).Warn("не удалось увеличить счётчик отчётов")
	}

	s.log.WithFields(logrus.Fields{
		"alert_id": alert.ID,
		"type":     alert.Type,
		"status":   alert.Status,
		"author":   in.AuthorID,
	}).Info("отчёт создан")

	return &SubmitResult{Alert: alert}, nil
}

type queuedSubmission struct {
	Input SubmitInput `json:"input"`
}

func (s *AlertService) enqueue(ctx context.Context, in SubmitInput) (uuid.UUID, error) {
	payload, err := json.Marshal(queuedSubmission{Input: in})
	if err != nil {
		return uuid.Nil, fmt.Errorf("alert service: marshal: %w", err)
	}
	return s.queue.Enqueue(ctx, s.now(), payload)
}

// ReplayQueue повторно отправляет отчёты из офлайн-очереди.
// Отчёт создаётся со временем постановки в очередь; уже истёкшие и невалидные отбрасываются.
// Сетевая ошибка прерывает проход: связь ещё не восстановилась.
func (s *AlertService) ReplayQueue(ctx context.Context) (int, error) {
	if s.queue == nil {
		return 0, nil
	}

	entries, err := s.queue.List(ctx)
	if err != nil {
		return 0, err
	}
	metrics.OutboxSize.Set(float64(len(entries)))

	sent, left := 0, len(entries)
	for _, e := range entries {
		log := s.log.WithField("queue_id", e.ID)

		var q queuedSubmission
		if err := json.Unmarshal(e.Payload, &q); err != nil {
			log.WithError(err).Error("повреждённая запись очереди, удаляем")
			left -= s.drop(ctx, log, e)
			continue
		}

		if queuedExpired(q.Input, e.QueuedAt, s.now()) {
			log.Info("отчёт в очереди истёк до отправки, удаляем")
			left -= s.drop(ctx, log, e)
			continue
		}

		_, err := s.submitAt(ctx, q.Input, e.QueuedAt)
		switch {
		case err == nil:
			sent++
			log.Info("отчёт из очереди отправлен")
		case apperror.IsNetwork(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
			metrics.OutboxSize.Set(float64(left))
			return sent, err
		default:
			log.WithError(err).Warn("отчёт из очереди отклонён")
		}
		left -= s.drop(ctx, log, e)
	}

	metrics.OutboxSize.Set(float64(left))
	return sent, nil
}

// drop удаляет запись из очереди и возвращает 1 при успехе.
// Неудача только логируется: запись останется до следующего прохода.
func (s *AlertService) drop(ctx context.Context, log *logrus.Entry, e storage.Entry) int {
	if err := s.queue.Remove(ctx, e); err != nil {
		log.WithError(err).Error("не удалось удалить запись очереди")
		return 0
	}
	return 1
}

// typeLabel ограничивает значения метки известными типами.
func typeLabel(raw string) string {
	if _, ok := valueobject.LookupAlertType(valueobject.AlertTypeID(raw)); ok {
		return raw
	}
	return "unknown"
}

func queuedExpired(in SubmitInput, queuedAt, now time.Time) bool {
	t, ok := valueobject.LookupAlertType(valueobject.AlertTypeID(in.Type))
	if !ok {
		return false
	}
	lifetime, err := t.Lifetime(in.DurationMinutes)
	if err != nil {
		return false
	}
	return !queuedAt.Add(lifetime).After(now)
}

// Confirm - «sigue ahí». Повторный голос и отсутствующий отчёт ничего не меняют.
func (s *AlertService) Confirm(ctx context.Context, alertID, voterID uuid.UUID) (entity.VoteResult, error) {
	return s.vote(ctx, "confirm", alertID, voterID, func(a *entity.Alert) entity.VoteResult {
		return a.Confirm(voterID)
	})
}

// Dispute - «ya no está». Удаляет отчёт не сам, а через очистку.
func (s *AlertService) Dispute(ctx context.Context, alertID, voterID uuid.UUID) (entity.VoteResult, error) {
	return s.vote(ctx, "dispute", alertID, voterID, func(a *entity.Alert) entity.VoteResult {
		return a.Dispute(voterID)
	})
}

func (s *AlertService) vote(ctx context.Context, direction string, alertID, voterID uuid.UUID, mutate repository.VoteMutation) (entity.VoteResult, error) {
	if voterID == uuid.Nil {
		return entity.VoteResult{}, apperror.ErrAuthRequired
	}

	res, err := s.store.ApplyVote(ctx, alertID, mutate)
	if err != nil {
		if apperror.IsNotFound(err) {
			metrics.Votes.WithLabelValues(direction, metrics.ResultNoop).Inc()
			return entity.VoteResult{}, nil
		}
		s.log.WithError(err).WithFields(logrus.Fields{
			"alert_id":  alertID,
			"direction": direction,
		}).Error("голос не учтён")
		metrics.Votes.WithLabelValues(direction, metrics.ResultError).Inc()
		return entity.VoteResult{}, err
	}

	if !res.Applied {
		metrics.Votes.WithLabelValues(direction, metrics.ResultNoop).Inc()
		return res, nil
	}

	metrics.Votes.WithLabelValues(direction, metrics.ResultOK).Inc()
	if res.Promoted {
		metrics.Promotions.Inc()
		s.log.WithFields(logrus.Fields{
			"alert_id":  alertID,
			"reward_to": res.RewardTo,
		}).Info("отчёт подтверждён сообществом")
	}
	return res, nil
}

// Get возвращает отчёт по идентификатору.
func (s *AlertService) Get(ctx context.Context, id uuid.UUID) (*entity.Alert, error) {
	return s.store.GetAlert(ctx, id)
}

// ListVisible возвращает видимый набор: без истёкших и набравших порог жалоб.
func (s *AlertService) ListVisible(ctx context.Context) ([]*entity.Alert, error) {
	alerts, err := s.store.ListAlerts(ctx)
	if err != nil {
		return nil, err
	}
	return PlanSweep(s.now(), alerts).Visible, nil
}
