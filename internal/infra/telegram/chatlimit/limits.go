// Package chatlimit реализует троттлинг-планировщик для Telegram Bot API:
// воркер, держащий скользящую историю отправленных сообщений, и протокол
// допуска (admission), через который вызовы API дожидаются разрешения
// прежде чем реально уйти по сети. Гарантии: ни один из трёх лимитов
// Telegram (per-chat/sec, per-chat/min, overall/sec) не превышается, а
// порядок сообщений внутри одного чата не нарушается.
//
// См. https://core.telegram.org/bots/faq#my-bot-is-hitting-limits-how-do-i-avoid-this
package chatlimit

// Limits описывает три одновременно действующих лимита Telegram Bot API.
// Значения по умолчанию (Default) взяты из официального FAQ.
type Limits struct {
	// PerSecChat — сколько сообщений разрешено отправить в один чат за секунду.
	PerSecChat uint32
	// PerMinChat — сколько сообщений разрешено отправить в один чат за минуту
	// (скользящее окно, а не фиксированный бакет).
	PerMinChat uint32
	// PerSecOverall — общий лимит сообщений в секунду по всем чатам сразу.
	PerSecOverall uint32
}

// Default возвращает лимиты по умолчанию, рекомендованные Telegram: 1
// сообщение в чат в секунду, 20 в чат в минуту, 30 суммарно в секунду.
func Default() Limits {
	return Limits{
		PerSecChat:    1,
		PerMinChat:    20,
		PerSecOverall: 30,
	}
}

// normalize подставляет Default() для нулевых полей, чтобы нулевое значение
// Limits{} не приводило к воркеру, который никогда ничего не допускает.
func (l Limits) normalize() Limits {
	d := Default()
	if l.PerSecChat == 0 {
		l.PerSecChat = d.PerSecChat
	}
	if l.PerMinChat == 0 {
		l.PerMinChat = d.PerMinChat
	}
	if l.PerSecOverall == 0 {
		l.PerSecOverall = d.PerSecOverall
	}
	return l
}
