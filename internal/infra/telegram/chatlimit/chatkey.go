package chatlimit

import (
	"hash/maphash"
	"strconv"
)

// chatKeyKind различает два варианта идентификатора чата, которые worker
// видит как непрозрачные ключи карт.
type chatKeyKind uint8

const (
	kindID chatKeyKind = iota
	kindUsernameHash
)

// ChatKey — компактный, дёшево копируемый идентификатор чата, используемый
// внутри worker вместо исходного chat_id/@username. Два ChatKey равны тогда
// и только тогда, когда оба построены как ChatID с одним и тем же числом,
// либо оба построены как ChatUsername с равными по хешу именами.
//
// ВАЖНО (известное упрощение): ChatID(n) и ChatUsername(u), указывающие на
// один и тот же реальный чат, считаются РАЗНЫМИ ключами — мы не пытаемся их
// согласовывать. Вызывающим рекомендуется предпочитать числовые chat_id.
type ChatKey struct {
	kind chatKeyKind
	id   int64
	hash uint64
}

// chatKeySeed — общий seed для хеширования username в рамках процесса.
// Использование одного seed на все вызовы ChatUsername гарантирует, что
// одинаковые строки всегда хешируются в одно и то же значение (нужно для
// сравнения ChatKey по значению внутри worker'а).
var chatKeySeed = maphash.MakeSeed()

// ChatID строит ChatKey из числового идентификатора чата.
func ChatID(id int64) ChatKey {
	return ChatKey{kind: kindID, id: id}
}

// ChatUsername строит ChatKey из @username канала/супергруппы. Внутри
// хранится только хеш строки (collision-resistant для практических входов),
// чтобы ключ оставался маленьким и копируемым без аллокаций.
func ChatUsername(username string) ChatKey {
	var h maphash.Hash
	h.SetSeed(chatKeySeed)
	_, _ = h.WriteString(username)
	return ChatKey{kind: kindUsernameHash, hash: h.Sum64()}
}

// String — диагностическое представление, пригодное для логов.
func (k ChatKey) String() string {
	switch k.kind {
	case kindID:
		return "id:" + strconv.FormatInt(k.id, 10)
	default:
		return "uname#" + strconv.FormatUint(k.hash, 16)
	}
}
