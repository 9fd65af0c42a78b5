package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	domainrepo "github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/goroutine"
	"github.com/ignatzorin/vialert-backend/internal/repository/common"
)

// PostgresStore собирает репозитории отчётов и профилей и ленту изменений на LISTEN/NOTIFY.
type PostgresStore struct {
	*AlertRepository
	*ProfileRepository

	db       *sqlx.DB
	listener *ChangeListener
	notifier *common.Notifier
	cancel   context.CancelFunc
}

var _ domainrepo.Store = (*PostgresStore)(nil)

// NewPostgresStore начинает слушать изменения сразу; dsn нужен отдельному соединению LISTEN.
func NewPostgresStore(db *sqlx.DB, dsn string) (*PostgresStore, error) {
	notifier := common.NewNotifier()
	listener, err := NewChangeListener(dsn, notifier)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	goroutine.Go("pg-listener", func() { listener.Run(ctx) })

	return &PostgresStore{
		AlertRepository:   NewAlertRepository(db),
		ProfileRepository: NewProfileRepository(db),
		db:                db,
		listener:          listener,
		notifier:          notifier,
		cancel:            cancel,
	}, nil
}

func (s *PostgresStore) Subscribe(ctx context.Context) <-chan domainrepo.ChangeEvent {
	return s.notifier.Subscribe(ctx)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return common.Classify(s.db.PingContext(ctx))
}

// Close останавливает LISTEN; пул соединений закрывает владелец *sqlx.DB.
func (s *PostgresStore) Close() error {
	s.cancel()
	err := s.listener.Close()
	s.notifier.Close()
	return err
}
