package chatlimit

import (
	"context"
	"sync"
)

// Governor — публичный API троттлинг-планировщика: держит отправляющий
// конец канала допуска и знает, как построить Future для конкретного
// ChatKey. Governor не оборачивает конкретного HTTP-клиента — эта
// ответственность лежит на internal/adapters/botapi/govern, которому
// Governor служит коллаборатором.
type Governor struct {
	admissions chan admission
	shutdown   chan struct{}
	closeOnce  sync.Once
	limits     Limits
}

// New создаёт Governor вместе с Worker, который вызывающий код обязан
// запустить сам — например, зарегистрировав его как узел
// internal/infra/lifecycle.Manager. Канал допуска ограничен L.PerSecOverall:
// это единственный механизм обратного давления на производителей.
func New(limits Limits, opts ...Option) (*Governor, *Worker) {
	limits = limits.normalize()
	g := &Governor{
		admissions: make(chan admission, limits.PerSecOverall),
		shutdown:   make(chan struct{}),
		limits:     limits,
	}
	w := newWorker(g.admissions, g.shutdown, limits, opts...)
	return g, w
}

// NewSpawned создаёт Governor и немедленно запускает его Worker в отдельной
// горутине, привязанной к ctx. Удобная обёртка над New, предпочтительная для
// простых вызывающих; код с
// управляемым жизненным циклом (internal/app) должен вместо этого
// использовать New и зарегистрировать возвращённый Worker как узел
// internal/infra/lifecycle.Manager, чтобы Shutdown мог скоординировать
// порядок остановки с остальными подсистемами.
func NewSpawned(ctx context.Context, limits Limits, opts ...Option) *Governor {
	g, w := New(limits, opts...)
	go w.Run(ctx)
	return g
}

// Limits возвращает лимиты, с которыми был создан Governor.
func (g *Governor) Limits() Limits {
	return g.limits
}

// Admit блокирует вызывающую горутину до тех пор, пока запрос к чату key не
// будет допущен планировщиком, либо ctx не будет отменён, либо Governor не
// перейдёт в деградированный режим (worker недоступен, см. Close). Это
// реализует весь протокол Registering→Pending→(логический Sent) за один
// вызов; возвращённый *Future несёт диагностический статус Degraded() и
// должен быть завершён через Finish() после фактического API-вызова.
func (g *Governor) Admit(ctx context.Context, key ChatKey) (*Future, error) {
	f := newFuture(g, key)
	if err := f.Admit(ctx); err != nil {
		return f, err
	}
	return f, nil
}

// Close инициирует остановку: закрывает shutdown ровно один раз. Идемпотентно.
// После Close все последующие Admit переходят в деградированный режим, а
// Worker.Run завершится, как только дренирует оставшийся бэклог.
func (g *Governor) Close() {
	g.closeOnce.Do(func() {
		close(g.shutdown)
	})
}
