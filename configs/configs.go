// Package configs provides application configuration loaded from environment variables.
// All configuration is externalized via environment variables for 12-factor app compliance.
package configs

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/navid-fn/tradereplay/internal/models"
)

// AppConfig holds all application configuration.
// Load it once at startup using AppLoad().
type AppConfig struct {
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	Server ServerConfig

	// PostgresDSN is used by the session repository and by the postgres bar store.
	PostgresDSN string `validate:"required_if=SessionStore postgres"`

	// ClickHouseDSN is only used when BarStore is "clickhouse".
	ClickHouseDSN string `validate:"required_if=BarStore clickhouse"`

	// BarStore selects the bar cache backend: postgres, clickhouse or memory.
	BarStore string `validate:"oneof=postgres clickhouse memory"`

	// SessionStore selects the session/trade backend: postgres or memory.
	SessionStore string `validate:"oneof=postgres memory"`

	Provider ProviderConfig
	Kafka    KafkaConfig
	Redis    RedisConfig
	Trading  TradingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port    string `validate:"required,numeric"`
	GinMode string `validate:"oneof=debug release test"`
}

// ProviderConfig holds market-data provider settings.
type ProviderConfig struct {
	// Name is the provider implementation: yahoo or polygon.
	Name string `validate:"oneof=yahoo polygon"`

	// Symbol is the Yahoo Finance ticker (e.g. "^GDAXI" for the DAX).
	Symbol string `validate:"required"`

	// PolygonSymbol is the Polygon ticker of the same index (e.g. "I:DAX").
	PolygonSymbol string
	PolygonAPIKey string `validate:"required_if=Name polygon"`

	// RequestsPerSecond throttles outbound provider calls.
	RequestsPerSecond float64 `validate:"gt=0"`

	Timeout time.Duration `validate:"gt=0"`
}

// KafkaConfig holds Kafka connection settings for trade events.
type KafkaConfig struct {
	// Broker is the Kafka broker address (e.g., "localhost:9092"). Empty disables events.
	Broker string

	// Topic is the Kafka topic for trade events.
	Topic string `validate:"required_with=Broker"`
}

// RedisConfig holds the optional replay slice cache settings.
type RedisConfig struct {
	// Addr is host:port. Empty disables the cache.
	Addr     string
	Password string
	DB       int `validate:"gte=0"`
	TTL      time.Duration
}

// TradingConfig holds the practice rules. Immutable at runtime.
type TradingConfig struct {
	ValidDays       []time.Weekday               `validate:"min=1"`
	DisplayTimezone string                       `validate:"required"`
	TimeWindows     map[string]models.TimeWindow `validate:"min=1"`

	StopLossPoints float64 `validate:"gt=0"`
	RewardMultiple float64 `validate:"gt=0"`

	// ResolutionTimeframe is the timeframe trades are resolved against.
	ResolutionTimeframe models.Timeframe `validate:"required"`

	// ReplayTimeframes are prepared for a scenario when none are requested.
	ReplayTimeframes []models.Timeframe `validate:"min=1"`

	ContextDaysBefore int `validate:"gte=0"`
	ContextDaysAfter  int `validate:"gte=0"`

	MaxDatesPerSession    int   `validate:"gt=0"`
	DefaultInitialCandles int   `validate:"gte=0"`
	ReplaySpeeds          []int `validate:"min=1,dive,gt=0"`
}

// Location resolves DisplayTimezone.
func (t TradingConfig) Location() (*time.Location, error) {
	return time.LoadLocation(t.DisplayTimezone)
}

// WindowKeys returns the configured window keys in sorted order.
func (t TradingConfig) WindowKeys() []string {
	keys := make([]string, 0, len(t.TimeWindows))
	for k := range t.TimeWindows {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultTimeWindows are the practice windows in UK local time.
func DefaultTimeWindows() map[string]models.TimeWindow {
	return map[string]models.TimeWindow{
		"morning_1": {
			Key:   "morning_1",
			Label: "08:00 - 09:00 BST",
			Start: models.ClockTime{Hour: 8},
			End:   models.ClockTime{Hour: 8, Minute: 59},
		},
		"morning_2": {
			Key:   "morning_2",
			Label: "09:00 - 10:00 BST",
			Start: models.ClockTime{Hour: 9},
			End:   models.ClockTime{Hour: 9, Minute: 59},
		},
		"afternoon_1": {
			Key:   "afternoon_1",
			Label: "14:00 - 15:00 BST",
			Start: models.ClockTime{Hour: 14},
			End:   models.ClockTime{Hour: 14, Minute: 59},
		},
		"afternoon_2": {
			Key:   "afternoon_2",
			Label: "15:00 - 16:00 BST",
			Start: models.ClockTime{Hour: 15},
			End:   models.ClockTime{Hour: 15, Minute: 59},
		},
	}
}

// DefaultTrading returns the built-in practice rules.
func DefaultTrading() TradingConfig {
	return TradingConfig{
		ValidDays:             []time.Weekday{time.Monday, time.Thursday, time.Friday},
		DisplayTimezone:       "Europe/London",
		TimeWindows:           DefaultTimeWindows(),
		StopLossPoints:        18,
		RewardMultiple:        3,
		ResolutionTimeframe:   models.TF3m,
		ReplayTimeframes:      []models.Timeframe{models.TF4h, models.TF1h, models.TF3m},
		ContextDaysBefore:     10,
		ContextDaysAfter:      1,
		MaxDatesPerSession:    50,
		DefaultInitialCandles: 5,
		ReplaySpeeds:          []int{1, 2, 5, 10},
	}
}

// getDatabaseDSN constructs the Postgres DSN from environment variables.
func getDatabaseDSN() string {
	if dsn := getEnv("POSTGRES_DSN", ""); dsn != "" {
		return dsn
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		getEnv("POSTGRES_HOST", "localhost"),
		getEnv("POSTGRES_PORT", "5432"),
		getEnv("POSTGRES_USER", "replay"),
		getEnv("POSTGRES_PASSWORD", "replay"),
		getEnv("POSTGRES_DB", "replay"),
		getEnv("POSTGRES_SSLMODE", "disable"),
	)
}

// getClickHouseDSN constructs the ClickHouse DSN from environment variables.
func getClickHouseDSN() string {
	return fmt.Sprintf(
		"clickhouse://%s:%s@%s:%s/%s?dial_timeout=10s&read_timeout=20s",
		getEnv("CLICKHOUSE_USER", "default"),
		getEnv("CLICKHOUSE_PASSWORD", ""),
		getEnv("CLICKHOUSE_HOST", "localhost"),
		getEnv("CLICKHOUSE_TCP_PORT", "9000"),
		getEnv("CLICKHOUSE_DB", "default"),
	)
}

// getTradingConfig overlays environment overrides on the built-in rules.
func getTradingConfig() (TradingConfig, error) {
	t := DefaultTrading()

	if v := getEnv("VALID_DAYS", ""); v != "" {
		days, err := parseWeekdays(v)
		if err != nil {
			return t, err
		}
		t.ValidDays = days
	}
	t.DisplayTimezone = getEnv("DISPLAY_TIMEZONE", t.DisplayTimezone)
	t.StopLossPoints = getEnvFloat("STOP_LOSS_POINTS", t.StopLossPoints)
	t.RewardMultiple = getEnvFloat("RISK_REWARD_RATIO", t.RewardMultiple)
	t.ContextDaysBefore = getEnvInt("CONTEXT_DAYS_BEFORE", t.ContextDaysBefore)
	t.ContextDaysAfter = getEnvInt("CONTEXT_DAYS_AFTER", t.ContextDaysAfter)
	t.MaxDatesPerSession = getEnvInt("MAX_DATES_PER_SESSION", t.MaxDatesPerSession)
	t.DefaultInitialCandles = getEnvInt("DEFAULT_INITIAL_CANDLES", t.DefaultInitialCandles)

	if v := getEnv("RESOLUTION_TIMEFRAME", ""); v != "" {
		tf, err := models.ParseTimeframe(v)
		if err != nil {
			return t, err
		}
		t.ResolutionTimeframe = tf
	}
	if v := getEnv("REPLAY_TIMEFRAMES", ""); v != "" {
		tfs, err := models.ParseTimeframes(v)
		if err != nil {
			return t, err
		}
		t.ReplayTimeframes = tfs
	}
	if v := getEnv("REPLAY_SPEEDS", ""); v != "" {
		var speeds []int
		for _, s := range getEnvList("REPLAY_SPEEDS") {
			n, err := strconv.Atoi(s)
			if err != nil {
				return t, fmt.Errorf("REPLAY_SPEEDS: %w", err)
			}
			speeds = append(speeds, n)
		}
		t.ReplaySpeeds = speeds
	}
	if path := getEnv("TIME_WINDOWS_FILE", ""); path != "" {
		windows, err := LoadTimeWindows(path)
		if err != nil {
			return t, err
		}
		t.TimeWindows = windows
	}

	return t, nil
}

// AppLoad loads all application configuration from environment variables.
// It attempts to load a .env file first (for local development).
// Call this once at application startup.
func AppLoad() (*AppConfig, error) {
	_ = godotenv.Load() // Ignore error - .env is optional

	trading, err := getTradingConfig()
	if err != nil {
		return nil, fmt.Errorf("trading config: %w", err)
	}

	cfg := &AppConfig{
		LogLevel: getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:    getEnv("SERVER_PORT", "8080"),
			GinMode: getEnv("GIN_MODE", "release"),
		},
		PostgresDSN:   getDatabaseDSN(),
		ClickHouseDSN: getClickHouseDSN(),
		BarStore:      getEnv("BAR_STORE", "postgres"),
		SessionStore:  getEnv("SESSION_STORE", "postgres"),
		Provider: ProviderConfig{
			Name:              getEnv("DATA_PROVIDER", "yahoo"),
			Symbol:            getEnv("SYMBOL", "^GDAXI"),
			PolygonSymbol:     getEnv("POLYGON_SYMBOL", "I:DAX"),
			PolygonAPIKey:     getEnv("POLYGON_API_KEY", ""),
			RequestsPerSecond: getEnvFloat("PROVIDER_RPS", 1),
			Timeout:           time.Duration(getEnvInt("PROVIDER_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		Kafka: KafkaConfig{
			Broker: getEnv("KAFKA_BROKER", ""),
			Topic:  getEnv("KAFKA_TRADE_TOPIC", "replay_trades"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			TTL:      time.Duration(getEnvInt("REDIS_TTL_SECONDS", 600)) * time.Second,
		},
		Trading: trading,
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks struct constraints and cross-field rules that tags cannot express.
func Validate(cfg *AppConfig) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := cfg.Trading.Location(); err != nil {
		return fmt.Errorf("invalid config: DISPLAY_TIMEZONE: %w", err)
	}
	if !cfg.Trading.ResolutionTimeframe.Valid() {
		return fmt.Errorf("invalid config: %w: %q", models.ErrUnknownTimeframe, cfg.Trading.ResolutionTimeframe)
	}
	for key, w := range cfg.Trading.TimeWindows {
		if w.End.Seconds() < w.Start.Seconds() {
			return fmt.Errorf("invalid config: window %q ends before it starts", key)
		}
	}
	return nil
}

type windowFileEntry struct {
	Label string `yaml:"label"`
	Start string `yaml:"start"`
	End   string `yaml:"end"`
}

// LoadTimeWindows reads a YAML window table:
//
//	morning_1:
//	  label: "08:00 - 09:00 BST"
//	  start: "08:00"
//	  end: "08:59"
func LoadTimeWindows(path string) (map[string]models.TimeWindow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read time windows: %w", err)
	}
	return ParseTimeWindows(data)
}

// ParseTimeWindows decodes the YAML window table format.
func ParseTimeWindows(data []byte) (map[string]models.TimeWindow, error) {
	var raw map[string]windowFileEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse time windows: %w", err)
	}
	windows := make(map[string]models.TimeWindow, len(raw))
	for key, e := range raw {
		start, err := models.ParseClockTime(e.Start)
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", key, err)
		}
		end, err := models.ParseClockTime(e.End)
		if err != nil {
			return nil, fmt.Errorf("window %q: %w", key, err)
		}
		label := e.Label
		if label == "" {
			label = fmt.Sprintf("%s - %s", start, end)
		}
		windows[key] = models.TimeWindow{Key: key, Label: label, Start: start, End: end}
	}
	return windows, nil
}

func parseWeekdays(s string) ([]time.Weekday, error) {
	names := map[string]time.Weekday{}
	for d := time.Sunday; d <= time.Saturday; d++ {
		names[strings.ToLower(d.String())] = d
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		d, ok := names[strings.ToLower(strings.TrimSpace(part))]
		if !ok {
			return nil, fmt.Errorf("unknown weekday %q", part)
		}
		days = append(days, d)
	}
	return days, nil
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as int or a default.
func getEnvInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvFloat returns the environment variable as float64 or a default.
func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList splits a comma separated variable, dropping empty items.
func getEnvList(key string) []string {
	var out []string
	for _, s := range strings.Split(getEnv(key, ""), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
