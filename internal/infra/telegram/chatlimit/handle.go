package chatlimit

// admission — пара (ключ чата, канал-сигнал), которую отправитель кладёт в
// канал допуска и которую worker держит в бэклоге до момента разрешения.
//
// Сигнал реализован как закрытие канала done: полезной нагрузки нет,
// получатель узнаёт о разрешении по самому факту закрытия. Закрыть канал —
// единственная операция, которую worker совершает над admission; если
// получатель уже ушёл (запрос future отменён вызывающим), закрытие канала, в
// который никто не слушает, — безопасный no-op в Go, поэтому явного
// обнаружения "повисших" получателей не требуется.
type admission struct {
	key  ChatKey
	done chan struct{}
}

// newAdmission создаёт новую пару допуска для ключа key.
func newAdmission(key ChatKey) admission {
	return admission{key: key, done: make(chan struct{})}
}

// grant закрывает канал сигнала, пробуждая ожидающую сторону. Закрытие уже
// закрытого канала привело бы к panic, но worker вызывает grant ровно один
// раз на admission (он удаляет запись из бэклога в момент допуска), поэтому
// двойного закрытия быть не может.
func (a admission) grant() {
	close(a.done)
}
