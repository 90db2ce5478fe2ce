package govern

// retry.go — экстрактор ожиданий для internal/infra/throttle.Throttler,
// используемый NewRetryThrottler/SendWithRetry. Извлекает retry_after из
// Bot API ошибок и возвращает точную длительность паузы без джиттера, чтобы
// соблюдать серверное окно повтора ровно так, как его прислал Bot API.

import (
	"errors"
	"time"

	"tgrate/internal/infra/throttle"
)

// retryAfterProvider — облегчённый контракт для ошибок, которые могут нести
// параметр retry_after. *APIError реализует его через RetryAfter().
type retryAfterProvider interface {
	RetryAfter() time.Duration
}

// BotAPIRetryAfterExtractor создаёт throttle.WaitExtractor, извлекающий
// retry_after из ошибки через интерфейс retryAfterProvider. Возвращает
// (delay, true), если значение положительное; иначе (0, false), и
// троттлер применит общую стратегию экспоненциального backoff.
func BotAPIRetryAfterExtractor() throttle.WaitExtractor {
	return func(err error) (time.Duration, bool) {
		if err == nil {
			return 0, false
		}

		var provider retryAfterProvider
		if !errors.As(err, &provider) {
			return 0, false
		}

		wait := provider.RetryAfter()
		if wait <= 0 {
			return 0, false
		}
		return wait, true
	}
}
