package goroutine

import (
	"log"
	"runtime/debug"
	"sync"
)

// Logger принимает сообщения о перехваченных panic.
type Logger interface {
	Errorf(format string, args ...interface{})
}

// RecoveryHandler запускает фоновые задачи и не даёт panic уронить процесс.
type RecoveryHandler struct {
	mu     sync.RWMutex
	logger Logger
}

func NewRecoveryHandler(logger Logger) *RecoveryHandler {
	return &RecoveryHandler{logger: logger}
}

// SetLogger подменяет логгер (main подключает logrus после инициализации).
func (rh *RecoveryHandler) SetLogger(logger Logger) {
	rh.mu.Lock()
	defer rh.mu.Unlock()
	rh.logger = logger
}

// Go запускает fn в отдельной горутине. name попадает в лог при panic.
func (rh *RecoveryHandler) Go(name string, fn func()) {
	go rh.Run(name, fn)
}

// Run выполняет fn в текущей горутине и возвращает true, если случилась panic.
func (rh *RecoveryHandler) Run(name string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			rh.mu.RLock()
			l := rh.logger
			rh.mu.RUnlock()
			l.Errorf("panic в %s: %v\n%s", name, r, debug.Stack())
		}
	}()
	fn()
	return false
}

type stdLogger struct{}

func (stdLogger) Errorf(format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}

// DefaultRecoveryHandler пишет в стандартный log, пока main не подключит logrus.
var DefaultRecoveryHandler = NewRecoveryHandler(stdLogger{})

// SafeGo запускает безымянную фоновую задачу.
func SafeGo(fn func()) {
	DefaultRecoveryHandler.Go("goroutine", fn)
}

// Go запускает именованную фоновую задачу.
func Go(name string, fn func()) {
	DefaultRecoveryHandler.Go(name, fn)
}
