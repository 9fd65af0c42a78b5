package common

import (
	"context"
	"sync"

	"github.com/ignatzorin/vialert-backend/internal/domain/repository"
)

// subscriberBuffer - сколько уведомлений может скопиться у медленного подписчика.
const subscriberBuffer = 64

// Notifier раздаёт уведомления об изменениях всем подписчикам.
// Каждое уведомление означает «перечитай коллекцию», поэтому при переполнении
// буфера лишние события отбрасываются.
type Notifier struct {
	mu   sync.Mutex
	subs map[chan repository.ChangeEvent]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[chan repository.ChangeEvent]struct{})}
}

// Subscribe регистрирует подписчика; канал закрывается при отмене ctx.
func (n *Notifier) Subscribe(ctx context.Context) <-chan repository.ChangeEvent {
	ch := make(chan repository.ChangeEvent, subscriberBuffer)

	n.mu.Lock()
	n.subs[ch] = struct{}{}
	n.mu.Unlock()

	go func() {
		<-ctx.Done()
		n.mu.Lock()
		if _, ok := n.subs[ch]; ok {
			delete(n.subs, ch)
			close(ch)
		}
		n.mu.Unlock()
	}()

	return ch
}

// Publish не блокируется.
func (n *Notifier) Publish(ev repository.ChangeEvent) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close закрывает все каналы подписчиков.
func (n *Notifier) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs {
		delete(n.subs, ch)
		close(ch)
	}
}

// Subscribers - количество активных подписчиков.
func (n *Notifier) Subscribers() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.subs)
}
