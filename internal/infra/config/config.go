// Пакет config отвечает за сбор и предоставление конфигурации клиента tgrate.
// Он:
//  1. читает переменные окружения из .env (через godotenv),
//  2. нормализует и валидирует входные значения, накапливая предупреждения
//     вместо падения на несущественных настройках,
//  3. предоставляет потокобезопасный доступ к результату через R/W мьютекс.
//
// Бизнес-контекст: клиент шлёт сообщения через Telegram Bot API и должен
// соблюдать клиентские лимиты скорости (per-chat per-second, per-chat
// per-minute, global per-second) прежде чем сервер их применит сам.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// EnvConfig описывает параметры, приходящие из окружения (.env): учётные
// данные бота, лог-уровень и лимиты допуска, применяемые chatlimit.Governor.
//
// NB: значения уже проходят минимальную валидацию и нормализацию в loadConfig.
// В рантайме по месту использования предполагается, что EnvConfig последователен.
type EnvConfig struct {
	LogLevel string
	BotToken string
	TestDC   bool

	ThrottleRPS           int
	ThrottlePerSecChat    int
	ThrottlePerMinChat    int
	ThrottlePerSecOverall int
}

// Config хранит конфигурацию среды.
//
// Потокобезопасность: публичные геттеры берут RLock.
type Config struct {
	Env      EnvConfig
	warnings []string     // предупреждения, накопленные при чтении окружения
	mu       sync.RWMutex // защита конкурентного доступа к конфигурации
}

// Значения по умолчанию для параметров окружения.
const (
	defaultThrottleRPS           = 1
	defaultThrottlePerSecChat    = 1
	defaultThrottlePerMinChat    = 20
	defaultThrottlePerSecOverall = 30
	defaultLogLevel              = "debug"
)

var (
	cfgInstance *Config
	cfgDone     bool
)

// Load — точка входа для инициализации глобальной конфигурации всего приложения.
// При первом вызове:
//  1. читает .env,
//  2. формирует EnvConfig,
//  3. фиксирует результат в singleton cfgInstance.
//
// Повторный вызов запрещён (возвращается ошибка), чтобы избежать гонок
// конфигурации на старте.
func Load(envPath string) error {
	if cfgDone {
		return errors.New("config already loaded")
	}
	if cfgInstance == nil {
		cfgInstance = &Config{}
	}
	cfgInstance.mu.Lock()
	defer cfgInstance.mu.Unlock()
	newCfg, err := loadConfig(envPath)
	cfgInstance = newCfg
	cfgDone = true
	return err
}

// loadConfig выполняет фактическую загрузку/валидацию без установки глобального
// состояния. Удобно для тестов: можно собрать временный Config и проверить его.
func loadConfig(envPath string) (*Config, error) {
	// .env is optional for this client: missing file just means the process
	// environment is used as-is.
	_ = godotenv.Load(envPath)

	botToken := strings.TrimSpace(os.Getenv("BOT_TOKEN"))
	if botToken == "" {
		return nil, errors.New("env BOT_TOKEN must be set")
	}

	var warnings []string

	logLevel := sanitizeLogLevel(os.Getenv("LOG_LEVEL"), &warnings)
	testDC := strings.EqualFold(strings.TrimSpace(os.Getenv("TEST_DC")), "true")
	throttleRPS := parseIntDefault("THROTTLE_RPS", defaultThrottleRPS, greaterThanZero, &warnings)
	throttlePerSecChat := parseIntDefault("THROTTLE_PER_SEC_CHAT", defaultThrottlePerSecChat, greaterThanZero, &warnings)
	throttlePerMinChat := parseIntDefault("THROTTLE_PER_MIN_CHAT", defaultThrottlePerMinChat, greaterThanZero, &warnings)
	throttlePerSecOverall := parseIntDefault("THROTTLE_PER_SEC_OVERALL", defaultThrottlePerSecOverall, greaterThanZero, &warnings)

	env := EnvConfig{
		LogLevel:              logLevel,
		BotToken:              botToken,
		TestDC:                testDC,
		ThrottleRPS:           throttleRPS,
		ThrottlePerSecChat:    throttlePerSecChat,
		ThrottlePerMinChat:    throttlePerMinChat,
		ThrottlePerSecOverall: throttlePerSecOverall,
	}

	cfg := &Config{
		Env:      env,
		warnings: warnings,
	}

	return cfg, nil
}

// Warnings возвращает накопленные предупреждения, возникшие при загрузке .env
// (например, когда подставлено значение по умолчанию). Возвращается копия.
func Warnings() []string {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	result := make([]string, len(cfgInstance.warnings))
	copy(result, cfgInstance.warnings)
	return result
}

// Env возвращает EnvConfig из глобального singleton. Это неизменяемый снимок
// на момент последней загрузки; для обновления надо перечитать конфиг целиком.
func Env() EnvConfig {
	cfgInstance.mu.RLock()
	defer cfgInstance.mu.RUnlock()
	return cfgInstance.Env
}

// parseIntDefault читает name как int. Если пусто/некорректно/не проходит
// дополнительную проверку validator — возвращает defaultVal и пишет предупреждение.
// Это позволяет не падать на несущественных настройках и иметь дефолты.
func parseIntDefault(name string, defaultVal int, validator func(int) bool, warnings *[]string) int {
	value := strings.TrimSpace(os.Getenv(name))
	if value == "" {
		appendWarningf(warnings, "env %s is not set; using default %d", name, defaultVal)
		return defaultVal
	}
	v, err := strconv.Atoi(value)
	if err != nil {
		appendWarningf(warnings, "env %s value %q is not a valid integer; using default %d", name, value, defaultVal)
		return defaultVal
	}
	if validator != nil && !validator(v) {
		appendWarningf(warnings, "env %s value %d does not satisfy constraints; using default %d", name, v, defaultVal)
		return defaultVal
	}
	return v
}

// appendWarningf — служебная функция для накопления предупреждений о некорректных
// переменных окружения. Список затем доступен через Warnings().
func appendWarningf(warnings *[]string, format string, args ...any) {
	if warnings == nil {
		return
	}
	*warnings = append(*warnings, fmt.Sprintf(format, args...))
}

// greaterThanZero — простой валидатор чисел, используется в parseIntDefault,
// чтобы навязать смысловые ограничения без падения приложения.
func greaterThanZero(v int) bool { return v > 0 }

// sanitizeLogLevel нормализует LOG_LEVEL и ограничивает значения набором
// {debug, info, warn, error}. Всё остальное превращается в defaultLogLevel.
func sanitizeLogLevel(level string, warnings *[]string) string {
	lvl := strings.ToLower(strings.TrimSpace(level))
	if lvl == "" {
		appendWarningf(warnings, "env LOG_LEVEL is not set; using default %q", defaultLogLevel)
		return defaultLogLevel
	}
	switch lvl {
	case "debug", "info", "warn", "error":
		return lvl
	default:
		appendWarningf(warnings, "env LOG_LEVEL value %q is invalid; using default %q", level, defaultLogLevel)
		return defaultLogLevel
	}
}
