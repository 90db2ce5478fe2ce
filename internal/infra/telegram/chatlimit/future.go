package chatlimit

import (
	"context"
	"errors"
	"sync/atomic"
)

// state перечисляет четыре состояния запроса в протоколе допуска. Состояние
// нужно только для диагностики и для того, чтобы запретить повторное
// использование Future после завершения.
type state int32

const (
	stateRegistering state = iota
	statePending
	stateSent
	stateDone
)

// ErrAlreadyDone возвращается Admit, если Future уже прошла через Sent/Done.
// Production-код никогда не должен сюда попадать.
var ErrAlreadyDone = errors.New("chatlimit: future already completed")

// Future — per-request протокол допуска: Registering → Pending → Sent →
// Done. Один Future используется ровно на один вызов Admit; после Admit
// вызывающий код сам выполняет логическую фазу Sent (реальный HTTP-вызов) и
// обязан вызвать Finish, чтобы зафиксировать Done для диагностики.
type Future struct {
	g        *Governor
	key      ChatKey
	st       atomic.Int32
	degraded bool
}

// newFuture создаёт Future в состоянии Registering. Само по себе создание не
// выполняет никакой работы; отправка в канал допуска происходит внутри Admit.
func newFuture(g *Governor, key ChatKey) *Future {
	f := &Future{g: g, key: key}
	f.st.Store(int32(stateRegistering))
	return f
}

// Admit выполняет Registering→Pending→(логический Sent): отправляет
// admission в канал воркера и ждёт сигнала о допуске либо отмены ctx.
//
// Деградированный режим: если Governor уже начал остановку (worker ушёл или
// уходит), Admit пропускает Registering/Pending и сразу возвращает nil —
// вызывающий код должен выполнить запрос без троттлинга. Degraded()
// позволяет это обнаружить для логов. Оба select'а реагируют на shutdown,
// потому что воркер может закрыть его в промежутке между отправкой admission
// и получением сигнала по adm.done — без второй проверки вызывающий код
// заблокировался бы навсегда на уже некому не адресованном admission.
//
// Повторный вызов Admit после Finish — программная ошибка, возвращается
// ErrAlreadyDone.
func (f *Future) Admit(ctx context.Context) error {
	if state(f.st.Load()) != stateRegistering {
		return ErrAlreadyDone
	}

	adm := newAdmission(f.key)

	select {
	case f.g.admissions <- adm:
		f.st.Store(int32(statePending))
	case <-f.g.shutdown:
		f.degraded = true
		f.st.Store(int32(stateSent))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-adm.done:
		f.st.Store(int32(stateSent))
		return nil
	case <-f.g.shutdown:
		// The worker may have drained its backlog and returned between our
		// send above and this select: the admission now sits in a buffered
		// channel with no reader, and adm.done will never close. Without
		// this branch a caller with no ctx deadline would hang forever.
		f.degraded = true
		f.st.Store(int32(stateSent))
		return nil
	case <-ctx.Done():
		// Dropping the future here is safe: the admission remains in the
		// worker's backlog (or a closed shutdown channel already covered
		// it above) and is harmlessly granted into a done channel nobody
		// reads anymore.
		return ctx.Err()
	}
}

// Degraded reports whether Admit bypassed throttling because the worker was
// no longer reachable (the governor has begun shutdown).
func (f *Future) Degraded() bool {
	return f.degraded
}

// Finish transitions the future to Done after the underlying API call has
// completed. Calling Admit again after Finish returns ErrAlreadyDone.
func (f *Future) Finish() {
	f.st.Store(int32(stateDone))
}
