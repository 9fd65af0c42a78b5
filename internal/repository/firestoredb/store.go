// Package firestoredb - хранилище отчётов и профилей в Cloud Firestore.
package firestoredb

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/ignatzorin/vialert-backend/internal/domain/entity"
	"github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/goroutine"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/pkg/apperror"
	"github.com/ignatzorin/vialert-backend/internal/repository/common"
)

// Config - параметры подключения.
type Config struct {
	ProjectID string
	// CredentialsBase64 - JSON сервисного аккаунта в base64. Пусто: Application Default Credentials.
	CredentialsBase64 string
}

type Store struct {
	client   *firestore.Client
	notifier *common.Notifier
	now      func() time.Time
	log      *logrus.Entry
	cancel   context.CancelFunc
}

var _ repository.Store = (*Store)(nil)

// New подключается к Firestore через Firebase Admin SDK и запускает слежение за коллекциями.
func New(ctx context.Context, cfg Config) (*Store, error) {
	var opts []option.ClientOption
	if cfg.CredentialsBase64 != "" {
		creds, err := base64.StdEncoding.DecodeString(cfg.CredentialsBase64)
		if err != nil {
			return nil, fmt.Errorf("firestore: не удалось декодировать учётные данные: %w", err)
		}
		opts = append(opts, option.WithCredentialsJSON(creds))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: не удалось инициализировать Firebase: %w", err)
	}
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("firestore: не удалось получить клиента: %w", err)
	}

	return NewWithClient(client), nil
}

// NewWithClient оборачивает готового клиента (эмулятор, тесты).
func NewWithClient(client *firestore.Client) *Store {
	watchCtx, cancel := context.WithCancel(context.Background())
	s := &Store{
		client:   client,
		notifier: common.NewNotifier(),
		now:      time.Now,
		log:      logger.Component("firestore"),
		cancel:   cancel,
	}
	for _, collection := range []string{repository.CollectionAlerts, repository.CollectionProfiles} {
		collection := collection
		goroutine.Go("firestore-watch-"+collection, func() { s.watch(watchCtx, collection) })
	}
	return s
}

func (s *Store) alerts() *firestore.CollectionRef {
	return s.client.Collection(repository.CollectionAlerts)
}

func (s *Store) profiles() *firestore.CollectionRef {
	return s.client.Collection(repository.CollectionProfiles)
}

func (s *Store) CreateAlert(ctx context.Context, alert *entity.Alert) error {
	if alert.ID == uuid.Nil {
		alert.ID = uuid.New()
	}
	if _, err := s.alerts().Doc(alert.ID.String()).Create(ctx, alertDocFrom(alert)); err != nil {
		return classify(err, nil)
	}
	return nil
}

func (s *Store) GetAlert(ctx context.Context, id uuid.UUID) (*entity.Alert, error) {
	snap, err := s.alerts().Doc(id.String()).Get(ctx)
	if err != nil {
		return nil, classify(err, apperror.ErrAlertNotFound)
	}
	return decodeAlert(snap)
}

// ListAlerts возвращает отчёты от новых к старым.
func (s *Store) ListAlerts(ctx context.Context) ([]*entity.Alert, error) {
	iter := s.alerts().OrderBy(fieldCreatedAt, firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var out []*entity.Alert
	for {
		snap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classify(err, nil)
		}
		alert, err := decodeAlert(snap)
		if err != nil {
			s.log.WithError(err).WithField("doc", snap.Ref.ID).Warn("пропускаем повреждённый отчёт")
			continue
		}
		out = append(out, alert)
	}
	return out, nil
}

func (s *Store) DeleteAlert(ctx context.Context, id uuid.UUID) error {
	// Предусловие Exists превращает удаление отсутствующего документа в NotFound.
	_, err := s.alerts().Doc(id.String()).Delete(ctx, firestore.Exists)
	return classify(err, apperror.ErrAlertNotFound)
}

// ApplyVote выполняет голос в транзакции Firestore. Все чтения идут до записей,
// поэтому профиль автора читается сразу после применения голоса к копии отчёта.
func (s *Store) ApplyVote(ctx context.Context, id uuid.UUID, mutate repository.VoteMutation) (entity.VoteResult, error) {
	var res entity.VoteResult
	alertRef := s.alerts().Doc(id.String())

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(alertRef)
		if err != nil {
			return err
		}
		alert, err := decodeAlert(snap)
		if err != nil {
			return err
		}

		res = mutate(alert)
		if !res.Applied {
			return nil
		}

		var (
			profileRef    *firestore.DocumentRef
			profileExists bool
		)
		if res.RewardTo != nil && res.RewardDelta != 0 {
			profileRef = s.profiles().Doc(res.RewardTo.String())
			_, err := tx.Get(profileRef)
			switch {
			case err == nil:
				profileExists = true
			case status.Code(err) != codes.NotFound:
				return err
			}
		}

		if err := tx.Set(alertRef, alertDocFrom(alert)); err != nil {
			return err
		}

		if profileRef == nil {
			return nil
		}
		now := s.now().UTC()
		if profileExists {
			return tx.Update(profileRef, []firestore.Update{
				{Path: fieldTrustScore, Value: firestore.Increment(res.RewardDelta)},
				{Path: fieldUpdatedAt, Value: now},
			})
		}
		p := entity.NewProfile(*res.RewardTo, now)
		p.TrustScore += res.RewardDelta
		return tx.Create(profileRef, profileDocFrom(p))
	})
	if err != nil {
		return entity.VoteResult{}, classify(err, apperror.ErrAlertNotFound)
	}
	return res, nil
}

func (s *Store) GetProfile(ctx context.Context, id uuid.UUID) (*entity.Profile, error) {
	snap, err := s.profiles().Doc(id.String()).Get(ctx)
	if err != nil {
		return nil, classify(err, apperror.ErrProfileNotFound)
	}
	var doc profileDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode profile %s: %w", id, err)
	}
	return doc.toEntity(id), nil
}

func (s *Store) CreateProfileIfAbsent(ctx context.Context, profile *entity.Profile) (*entity.Profile, error) {
	_, err := s.profiles().Doc(profile.ID.String()).Create(ctx, profileDocFrom(profile))
	if err != nil && status.Code(err) != codes.AlreadyExists {
		return nil, classify(err, nil)
	}
	return s.GetProfile(ctx, profile.ID)
}

func (s *Store) IncrementReportsCount(ctx context.Context, id uuid.UUID) error {
	ref := s.profiles().Doc(id.String())
	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		now := s.now().UTC()
		_, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			p := entity.NewProfile(id, now)
			p.ReportsCount = 1
			return tx.Create(ref, profileDocFrom(p))
		}
		if err != nil {
			return err
		}
		return tx.Update(ref, []firestore.Update{
			{Path: fieldReportsCount, Value: firestore.Increment(1)},
			{Path: fieldUpdatedAt, Value: now},
		})
	})
	return classify(err, nil)
}

func (s *Store) Subscribe(ctx context.Context) <-chan repository.ChangeEvent {
	return s.notifier.Subscribe(ctx)
}

func (s *Store) Ping(ctx context.Context) error {
	iter := s.profiles().Limit(1).Documents(ctx)
	defer iter.Stop()
	_, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return nil
	}
	return classify(err, nil)
}

func (s *Store) Close() error {
	s.cancel()
	s.notifier.Close()
	return s.client.Close()
}

// watch переводит снимки коллекции в события хранилища.
func (s *Store) watch(ctx context.Context, collection string) {
	for ctx.Err() == nil {
		iter := s.client.Collection(collection).Snapshots(ctx)
		s.consume(ctx, collection, iter)
		iter.Stop()

		select {
		case <-ctx.Done():
			return
		case <-time.After(watchRetryDelay):
		}
	}
}

const watchRetryDelay = 5 * time.Second

func (s *Store) consume(ctx context.Context, collection string, iter *firestore.QuerySnapshotIterator) {
	for {
		snap, err := iter.Next()
		if err != nil {
			if ctx.Err() == nil && status.Code(err) != codes.Canceled {
				s.log.WithError(err).WithField("collection", collection).Warn("слежение прервано, переподключаемся")
			}
			return
		}
		for _, change := range snap.Changes {
			id, err := uuid.Parse(change.Doc.Ref.ID)
			if err != nil {
				continue
			}
			s.notifier.Publish(repository.ChangeEvent{Collection: collection, Op: changeOp(change.Kind), ID: id})
		}
	}
}

func changeOp(kind firestore.DocumentChangeKind) string {
	switch kind {
	case firestore.DocumentAdded:
		return repository.OpInsert
	case firestore.DocumentRemoved:
		return repository.OpDelete
	default:
		return repository.OpUpdate
	}
}

func decodeAlert(snap *firestore.DocumentSnapshot) (*entity.Alert, error) {
	id, err := uuid.Parse(snap.Ref.ID)
	if err != nil {
		return nil, fmt.Errorf("alert id %q: %w", snap.Ref.ID, err)
	}
	var doc alertDoc
	if err := snap.DataTo(&doc); err != nil {
		return nil, fmt.Errorf("decode alert %s: %w", id, err)
	}
	return doc.toEntity(id), nil
}

// classify переводит gRPC статусы Firestore в ошибки приложения.
func classify(err error, notFound error) error {
	if err == nil {
		return nil
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	switch status.Code(err) {
	case codes.NotFound:
		if notFound != nil {
			return notFound
		}
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return apperror.Network(err, "хранилище недоступно")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperror.Network(err, "хранилище недоступно")
	}
	return err
}
