package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

const outboxPrefix = "outbox/"

// Entry - отложенная операция в очереди.
type Entry struct {
	ID       uuid.UUID       `json:"id"`
	QueuedAt time.Time       `json:"queued_at"`
	Payload  json.RawMessage `json:"payload"`
}

// Outbox хранит отчёты, которые не удалось отправить в основное хранилище.
// Ключи упорядочены по времени постановки, поэтому List отдаёт записи в порядке FIFO.
type Outbox struct {
	db *badger.DB
}

func NewOutbox(db *badger.DB) *Outbox {
	return &Outbox{db: db}
}

func outboxKey(queuedAt time.Time, id uuid.UUID) []byte {
	return []byte(fmt.Sprintf("%s%020d/%s", outboxPrefix, queuedAt.UnixNano(), id))
}

// Enqueue сохраняет запись и возвращает её идентификатор.
func (o *Outbox) Enqueue(ctx context.Context, queuedAt time.Time, payload []byte) (uuid.UUID, error) {
	if err := ctx.Err(); err != nil {
		return uuid.Nil, err
	}

	entry := Entry{ID: uuid.New(), QueuedAt: queuedAt.UTC(), Payload: payload}
	data, err := json.Marshal(entry)
	if err != nil {
		return uuid.Nil, fmt.Errorf("outbox: marshal: %w", err)
	}

	err = o.db.Update(func(txn *badger.Txn) error {
		return txn.Set(outboxKey(entry.QueuedAt, entry.ID), data)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("outbox: не удалось сохранить запись: %w", err)
	}
	return entry.ID, nil
}

// List возвращает все записи от старых к новым.
func (o *Outbox) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var entries []Entry
	err := o.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(outboxPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var e Entry
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("outbox: повреждённая запись %s: %w", it.Item().Key(), err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// Remove удаляет обработанную запись. Отсутствующая запись не считается ошибкой.
func (o *Outbox) Remove(ctx context.Context, e Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(outboxKey(e.QueuedAt, e.ID))
	})
}

// Len - размер очереди.
func (o *Outbox) Len(ctx context.Context) (int, error) {
	entries, err := o.List(ctx)
	return len(entries), err
}
