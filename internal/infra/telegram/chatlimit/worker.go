package chatlimit

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tgrate/internal/infra/logger"
)

const (
	minuteWindow = time.Minute
	secondWindow = time.Second

	// defaultDelay — пауза между итерациями воркера: секунда/4, компромисс
	// между точностью допуска и нагрузкой на CPU простоями. Параметризуется
	// через WithDelay для тестов.
	defaultDelay = 250 * time.Millisecond
)

// historyEntry — одна запись о допущенном сообщении: какому чату и когда.
type historyEntry struct {
	key ChatKey
	at  time.Time
}

// Worker — единственная долгоживущая горутина, владеющая всем состоянием
// планировщика: скользящей историей H, поминутной раскладкой M, посекундной
// раскладкой S (пересчитывается на каждой итерации) и бэклогом Q. Никакие
// мьютексы не нужны, потому что всё это состояние читается и изменяется
// только изнутри Run.
type Worker struct {
	limits     Limits
	admissions <-chan admission
	shutdown   <-chan struct{}
	clock      func() time.Time
	delay      time.Duration
	log        *zap.Logger

	history []historyEntry
	perMin  map[ChatKey]uint32
	backlog []admission
}

// newWorker создаёт worker поверх канала допуска admissions и сигнала
// shutdown. shutdown закрывается ровно один раз, когда Governor начинает
// остановку; сам канал admissions никогда не закрывается — одновременная
// отправка в закрываемый канал из нескольких горутин-производителей привела
// бы к panic, поэтому закрытие смоделировано отдельным широковещательным
// сигналом. Настройки (часы, задержка итерации, логгер) применяются
// функциональными опциями, как это делает throttle.Throttler в
// internal/infra/throttle.
func newWorker(admissions <-chan admission, shutdown <-chan struct{}, limits Limits, opts ...Option) *Worker {
	w := &Worker{
		limits:     limits.normalize(),
		admissions: admissions,
		shutdown:   shutdown,
		clock:      time.Now,
		delay:      defaultDelay,
		log:        logger.Logger(),
		perMin:     make(map[ChatKey]uint32),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run запускает основной цикл воркера. Завершается, когда shutdown
// просигналил И бэклог пуст — то есть после того, как будут честно допущены
// все уже поставленные в очередь запросы. Отмена ctx прерывает цикл
// немедленно, не дожидаясь дренирования бэклога.
func (w *Worker) Run(ctx context.Context) {
	w.log.Info("chatlimit worker starting",
		zap.Uint32("per_sec_chat", w.limits.PerSecChat),
		zap.Uint32("per_min_chat", w.limits.PerMinChat),
		zap.Uint32("per_sec_overall", w.limits.PerSecOverall),
	)
	defer w.log.Info("chatlimit worker stopped")

	shuttingDown := false

	for !shuttingDown || len(w.backlog) > 0 {
		if !w.refill(ctx, &shuttingDown) {
			return // ctx cancelled while waiting for the first item
		}

		now := w.clock()
		minBack := now.Add(-minuteWindow)
		secBack := now.Add(-secondWindow)

		w.trimHistory(minBack)

		used := w.countSince(secBack)
		if used >= w.limits.PerSecOverall {
			// Global budget fully spent this second; nothing to do but wait.
			if !w.sleep(ctx) {
				return
			}
			continue
		}
		allowed := w.limits.PerSecOverall - used

		perSec := w.buildPerSecond(secBack)
		w.admit(now, perSec, &allowed)

		if !w.sleep(ctx) {
			return
		}
	}
}

// refill реализует двухфазный дренаж канала допуска: если
// бэклог пуст, воркер блокируется на первом элементе (либо на сигнале
// shutdown, либо на отмене ctx), а затем нон-блокирующе забирает всё, что
// уже скопилось, не раскручивая busy-loop на каждый отдельный запрос.
// Возвращает false, если ctx был отменён и цикл Run должен завершиться.
func (w *Worker) refill(ctx context.Context, shuttingDown *bool) bool {
	if len(w.backlog) == 0 {
		select {
		case <-ctx.Done():
			return false
		case <-w.shutdown:
			*shuttingDown = true
		case adm := <-w.admissions:
			w.backlog = append(w.backlog, adm)
		}
	}

	for {
		select {
		case adm := <-w.admissions:
			w.backlog = append(w.backlog, adm)
		default:
			return true
		}
	}
}

// trimHistory удаляет из H все записи старше minBack и соответствующим
// образом уменьшает M, удаляя нулевые записи. H отсортирована по времени
// поступления (append-only в конец), поэтому достаточно отрезать префикс.
func (w *Worker) trimHistory(minBack time.Time) {
	cut := 0
	for cut < len(w.history) && w.history[cut].at.Before(minBack) {
		key := w.history[cut].key
		if c, ok := w.perMin[key]; ok {
			if c <= 1 {
				delete(w.perMin, key)
			} else {
				w.perMin[key] = c - 1
			}
		}
		cut++
	}
	if cut > 0 {
		w.history = append([]historyEntry(nil), w.history[cut:]...)
	}
}

// countSince возвращает число записей H новее secBack — это используемая
// часть глобального бюджета.
func (w *Worker) countSince(secBack time.Time) uint32 {
	var used uint32
	for _, e := range w.history {
		if e.at.After(secBack) {
			used++
		}
	}
	return used
}

// buildPerSecond пересобирает посекундную раскладку S из суффикса H,
// попадающего в последнюю секунду. S существует только в рамках одной
// итерации и нигде не хранится между итерациями — пересчитывается заново на
// каждом проходе цикла.
func (w *Worker) buildPerSecond(secBack time.Time) map[ChatKey]uint32 {
	perSec := make(map[ChatKey]uint32)
	for _, e := range w.history {
		if e.at.After(secBack) {
			perSec[e.key]++
		}
	}
	return perSec
}

// admit проходит по бэклогу от головы к хвосту и допускает каждую запись,
// чьи per-chat счётчики (per-second и per-minute) ещё не исчерпаны, пока не
// исчерпан allowed (остаток глобального бюджета). Порядок прохода head→tail
// гарантирует per-chat FIFO: если голова для ключа K не допущена, allowed
// не меняется, но более позднюю запись ДЛЯ ТОГО ЖЕ K пропустить мы не можем
// раньше, не нарушив FIFO — а поскольку счётчики K монотонно не убывают в
// рамках итерации, она тоже останется не допущена. Записи с ДРУГИМ ключом
// могут быть допущены, не трогая порядок внутри K.
func (w *Worker) admit(now time.Time, perSec map[ChatKey]uint32, allowed *uint32) {
	if len(w.backlog) == 0 {
		return
	}

	remaining := make([]admission, 0, len(w.backlog))
	stop := false

	for _, adm := range w.backlog {
		if stop {
			remaining = append(remaining, adm)
			continue
		}

		key := adm.key
		eligible := perSec[key] < w.limits.PerSecChat && w.perMin[key] < w.limits.PerMinChat
		if !eligible {
			remaining = append(remaining, adm)
			continue
		}

		perSec[key]++
		w.perMin[key]++
		w.history = append(w.history, historyEntry{key: key, at: now})
		adm.grant()

		*allowed--
		if *allowed == 0 {
			stop = true
		}
	}

	w.backlog = remaining
}

// sleep пауза длительностью w.delay, прерываемая отменой ctx. Возвращает
// false, если ctx был отменён раньше таймера.
func (w *Worker) sleep(ctx context.Context) bool {
	timer := time.NewTimer(w.delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
