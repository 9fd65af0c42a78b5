package repository

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	domainrepo "github.com/ignatzorin/vialert-backend/internal/domain/repository"
	"github.com/ignatzorin/vialert-backend/internal/logger"
	"github.com/ignatzorin/vialert-backend/internal/repository/common"
)

// ChangesChannel - канал pg_notify, в который пишут триггеры из миграций.
const ChangesChannel = "vialert_changes"

const (
	listenerMinReconnect = 2 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

type changePayload struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id"`
}

// ChangeListener переводит уведомления PostgreSQL в события хранилища.
type ChangeListener struct {
	listener *pq.Listener
	notifier *common.Notifier
	log      *logrus.Entry
}

// NewChangeListener подписывается на ChangesChannel.
func NewChangeListener(dsn string, notifier *common.Notifier) (*ChangeListener, error) {
	log := logger.Component("pg-listener")
	l := pq.NewListener(dsn, listenerMinReconnect, listenerMaxReconnect, func(ev pq.ListenerEventType, err error) {
		switch ev {
		case pq.ListenerEventConnectionAttemptFailed, pq.ListenerEventDisconnected:
			log.WithError(err).Warn("соединение LISTEN потеряно")
		case pq.ListenerEventReconnected:
			log.Info("соединение LISTEN восстановлено")
		}
	})
	if err := l.Listen(ChangesChannel); err != nil {
		_ = l.Close()
		return nil, common.Classify(err)
	}
	return &ChangeListener{listener: l, notifier: notifier, log: log}, nil
}

// Run читает уведомления до отмены ctx.
func (c *ChangeListener) Run(ctx context.Context) {
	ticker := time.NewTicker(listenerPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-c.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// После переподключения часть уведомлений могла потеряться: просим всех перечитать.
				c.notifier.Publish(domainrepo.ChangeEvent{Collection: domainrepo.CollectionAlerts, Op: domainrepo.OpUpdate})
				continue
			}
			if ev, ok := parseChange(n.Extra); ok {
				c.notifier.Publish(ev)
			} else {
				c.log.WithField("payload", n.Extra).Warn("непонятное уведомление")
			}
		case <-ticker.C:
			if err := c.listener.Ping(); err != nil {
				c.log.WithError(err).Warn("ping LISTEN не прошёл")
			}
		}
	}
}

func (c *ChangeListener) Close() error {
	return c.listener.Close()
}

func parseChange(raw string) (domainrepo.ChangeEvent, bool) {
	var p changePayload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return domainrepo.ChangeEvent{}, false
	}
	switch p.Table {
	case domainrepo.CollectionAlerts, domainrepo.CollectionProfiles:
	default:
		return domainrepo.ChangeEvent{}, false
	}
	id, err := uuid.Parse(p.ID)
	if err != nil {
		return domainrepo.ChangeEvent{}, false
	}
	return domainrepo.ChangeEvent{Collection: p.Table, Op: strings.ToUpper(p.Op), ID: id}, true
}
