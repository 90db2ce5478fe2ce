// Package govern — тонкий HTTP-клиент Telegram Bot API, пропускающий каждый
// вызов через chatlimit.Governor перед тем, как он уйдёт по сети. Троттлинг
// подключается через универсальную функцию Send, параметризованную типом
// payload, вместо отдельного клиентского метода на каждый вызов Bot API.
//
// HTTP-конвенция (POST JSON на https://api.telegram.org/bot<token>/<Method>)
// общая для всех методов Bot API, которые проходят через этот пакет.
package govern

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"tgrate/internal/infra/telegram/chatlimit"
	"tgrate/internal/infra/throttle"
)

// httpClientTimeout — таймаут HTTP-клиента для всех throttled-вызовов
// (getUpdates использует собственный клиент с более широким таймаутом — см.
// updates.go).
const httpClientTimeout = 30 * time.Second

// Client — точка входа для отправки throttled-запросов к Bot API. Держит
// готовый базовый URL (с учётом токена и /test DC), общий http.Client и
// Governor, который определяет, когда именно отправлять тот или иной запрос.
type Client struct {
	baseURL  string
	http     *http.Client
	governor *chatlimit.Governor
}

// New создаёт Client для заданного токена бота. testDC=true добавляет
// суффикс /test, как того требует Bot API для тестовой среды. governor
// обязателен: вызывающий код создаёт его через chatlimit.New и сам запускает
// возвращённый Worker (см. internal/app.App — узел "chatlimit_governor").
func New(token string, testDC bool, governor *chatlimit.Governor) *Client {
	if testDC {
		token += "/test"
	}
	return &Client{
		baseURL:  fmt.Sprintf("https://api.telegram.org/bot%s/", token),
		http:     &http.Client{Timeout: httpClientTimeout},
		governor: governor,
	}
}

// apiResponse — конверт ответа Bot API, общий для всех методов. Parameters
// заполняется только при ok=false и несёт машинно-читаемые детали ошибки —
// в первую очередь retry_after для кода 429.
type apiResponse[R any] struct {
	OK          bool            `json:"ok"`
	Result      R               `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *responseParams `json:"parameters,omitempty"`
}

type responseParams struct {
	RetryAfterSeconds int `json:"retry_after"`
}

// APIError — постоянная или временная ошибка, которую вернул сам Bot API
// (в отличие от сетевой ошибки транспорта).
type APIError struct {
	Code        int
	Description string

	// retryAfter хранит серверную рекомендацию подождать (код 429), 0 если
	// сервер её не прислал.
	retryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("bot api error %d: %s", e.Code, e.Description)
}

// RetryAfter реализует retryAfterProvider для throttle.WaitExtractor: когда
// Bot API отвечает 429 с parameters.retry_after, эта длительность ожидания
// передаётся наружу без джиттера, чтобы не сдвигать серверное окно повтора.
func (e *APIError) RetryAfter() time.Duration {
	return e.retryAfter
}

// StopRetry реализует throttle.StopRetryer: ошибки клиента (4xx кроме 429,
// которые всегда временные по природе flood control) не стоит повторять —
// повтор одного и того же неверного запроса не изменит результат.
func (e *APIError) StopRetry() bool {
	return e.Code >= 400 && e.Code < 500 && e.Code != http.StatusTooManyRequests
}

// Send выполняет один throttled-вызов Bot API: сначала допускается у
// Governor по ChatKey полезной нагрузки (Registering→Pending→Sent), затем
// выполняется сам HTTP-запрос, и наконец Future фиксируется как Done.
// Дженерик-параметр R — тип поля "result" ответа (Message, []Message, bool...).
//
// Отмена ctx прерывает ожидание в очереди Governor без выполнения запроса;
// после того как Governor допустил запрос, ctx по-прежнему управляет самим
// HTTP-вызовом через http.NewRequestWithContext.
func Send[R any](ctx context.Context, c *Client, p Payload) (R, error) {
	var zero R

	future, err := c.governor.Admit(ctx, p.ChatKey())
	if err != nil {
		return zero, fmt.Errorf("govern: admit %s: %w", p.Method(), err)
	}
	defer future.Finish()

	body, err := json.Marshal(p)
	if err != nil {
		return zero, fmt.Errorf("govern: encode %s payload: %w", p.Method(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+p.Method(), bytes.NewReader(body))
	if err != nil {
		return zero, fmt.Errorf("govern: build request for %s: %w", p.Method(), err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return zero, fmt.Errorf("govern: %s request: %w", p.Method(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return zero, fmt.Errorf("govern: read %s response: %w", p.Method(), err)
	}

	var decoded apiResponse[R]
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return zero, fmt.Errorf("govern: decode %s response: %w", p.Method(), err)
	}
	if !decoded.OK {
		apiErr := &APIError{Code: decoded.ErrorCode, Description: decoded.Description}
		if decoded.Parameters != nil && decoded.Parameters.RetryAfterSeconds > 0 {
			apiErr.retryAfter = time.Duration(decoded.Parameters.RetryAfterSeconds) * time.Second
		}
		return zero, apiErr
	}

	return decoded.Result, nil
}

// SendWithRetry wraps Send in r, retrying on transient failures (network
// errors, Bot API 429 with retry_after) according to r's backoff policy.
// Permanent API errors (StopRetry) and context cancellation pass straight
// through. Use NewRetryThrottler to build an r tuned for this client.
func SendWithRetry[R any](ctx context.Context, c *Client, r *throttle.Throttler, p Payload) (R, error) {
	var result R
	err := r.Do(ctx, func() error {
		var doErr error
		result, doErr = Send[R](ctx, c, p)
		return doErr
	})
	return result, err
}

// NewRetryThrottler builds a throttle.Throttler tuned for Bot API calls: rps
// caps the sustained rate of HTTP attempts (independent from the governor's
// per-chat/global admission, which already ran by the time Do's fn executes),
// and BotAPIRetryAfterExtractor lets 429 responses dictate the wait directly
// instead of falling back to generic exponential backoff.
func NewRetryThrottler(rps int, opts ...throttle.Option) *throttle.Throttler {
	allOpts := append([]throttle.Option{throttle.WithWaitExtractors(BotAPIRetryAfterExtractor())}, opts...)
	return throttle.New(rps, allOpts...)
}
