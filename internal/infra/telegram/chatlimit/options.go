package chatlimit

import (
	"time"

	"go.uber.org/zap"
)

// Option настраивает Worker при создании. Зеркалит паттерн
// internal/infra/throttle.Option — функциональные опции поверх приватных
// полей, без отдельного builder-типа.
type Option func(*Worker)

// WithClock подменяет источник времени воркера. Используется в тестах для
// детерминированного продвижения скользящих окон без реального sleep.
func WithClock(clock func() time.Time) Option {
	return func(w *Worker) {
		if clock != nil {
			w.clock = clock
		}
	}
}

// WithDelay переопределяет паузу между итерациями воркера (по умолчанию
// 250мс). Тесты используют маленькие значения, чтобы не ждать реальное
// время при проверке свойств liveness/FIFO.
func WithDelay(d time.Duration) Option {
	return func(w *Worker) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithLogger переопределяет логгер воркера (по умолчанию —
// internal/infra/logger.Logger()).
func WithLogger(log *zap.Logger) Option {
	return func(w *Worker) {
		if log != nil {
			w.log = log
		}
	}
}
