// Package config предоставляет структуры и функции для парсинга и загрузки конфига.
package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Драйверы хранилища записей и хранилища сессий.
const (
	RecordStoreREST     = "rest"
	RecordStorePostgres = "postgres"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config общая структура для хранения настроек
type Config struct {
	Env             string `yaml:"env" env-default:"local"`
	Backend         `yaml:"backend"`
	HTTPServer      `yaml:"http_server"`
	Refresh         `yaml:"refresh"`
	RecordStore     `yaml:"record_store"`
	SessionStore    `yaml:"session_store"`
	RabbitMQ        `yaml:"rabbitmq"`
	Locale          `yaml:"locale"`
	RateLimit       `yaml:"rate_limit"`
	RedisConnection `yaml:"redis_connection"`
}

// Backend — параметры подключения к размещённому сервису данных и идентификации.
// URL и APIKey можно переопределить переменными окружения.
type Backend struct {
	URL       string        `yaml:"url" env:"BACKEND_URL" env-required:"true"`
	APIKey    string        `yaml:"api_key" env:"BACKEND_API_KEY" env-required:"true"`
	JWTSecret string        `yaml:"jwt_secret" env:"BACKEND_JWT_SECRET"`
	Timeout   time.Duration `yaml:"timeout" env-default:"10s"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp" env-default:"localhost:8080"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp" env-default:"15s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

// Refresh задаёт периодическое обновление списка и токена.
type Refresh struct {
	Interval     time.Duration `yaml:"interval" env-default:"60s"`
	TokenLeeway  time.Duration `yaml:"token_leeway" env-default:"60s"`
	RetryBackoff time.Duration `yaml:"retry_backoff" env-default:"10s"`
}

// RecordStore выбирает драйвер хранилища подписчиков.
type RecordStore struct {
	Driver                  string `yaml:"driver" env-default:"rest"`
	StorageConnectionString string `yaml:"storage_connection_string" env:"STORAGE_CONNECTION_STRING"`
	MigrationsPath          string `yaml:"migrations_path" env-default:"./migrations"`
}

// SessionStore — где хранится пара токенов между перезапусками.
type SessionStore struct {
	Driver     string        `yaml:"driver" env-default:"memory"`
	SessionTTL time.Duration `yaml:"session_ttl" env-default:"720h"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// RabbitMQ — уведомления о скором окончании подписки. Пустой URL отключает их.
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url" env:"RABBITMQ_URL"`
	RabbitMQMaxRetries int           `yaml:"max_retries" env-default:"5"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay" env-default:"2s"`
}

// Locale задаёт форматирование сумм и дат.
type Locale struct {
	Tag      string `yaml:"tag" env-default:"ar-DZ"`
	Currency string `yaml:"currency" env-default:"د.ج"`
}

// RateLimit ограничивает частоту запросов к JSON API.
type RateLimit struct {
	RPS   float64 `yaml:"rps" env-default:"5"`
	Burst int     `yaml:"burst" env-default:"10"`
}

// Load читает конфиг из файла и переменных окружения и проверяет его.
func Load(configPath string) (*Config, error) {
	const op = "config.Load"

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("%s: file %s does not exist", op, configPath)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &cfg, nil
}

// MustLoad загружает конфиг по пути из CONFIG_PATH и завершает процесс при ошибке.
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	cfg, err := Load(configPath)
	if err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.RecordStore.Driver {
	case RecordStoreREST:
	case RecordStorePostgres:
		if c.StorageConnectionString == "" {
			return fmt.Errorf("record_store.storage_connection_string is required for driver %q", RecordStorePostgres)
		}
	default:
		return fmt.Errorf("unknown record_store.driver %q", c.RecordStore.Driver)
	}

	switch c.SessionStore.Driver {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.AddressRedis == "" {
			return fmt.Errorf("redis_connection.addressredis is required for driver %q", SessionStoreRedis)
		}
	default:
		return fmt.Errorf("unknown session_store.driver %q", c.SessionStore.Driver)
	}

	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be positive")
	}
	return nil
}

// String скрывает секреты, чтобы конфиг можно было писать в лог.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Env: %s\n"+
			"Backend:\n"+
			"  URL: %s\n"+
			"  APIKey: %s\n"+
			"  Timeout: %s\n"+
			"HTTPServer:\n"+
			"  Address: %s\n"+
			"  Timeout: %s\n"+
			"  IdleTimeout: %s\n"+
			"Refresh:\n"+
			"  Interval: %s\n"+
			"  TokenLeeway: %s\n"+
			"RecordStore: %s\n"+
			"SessionStore: %s\n"+
			"RabbitMQ enabled: %t\n"+
			"Locale: %s %s\n",
		c.Env,
		c.Backend.URL,
		mask(c.APIKey),
		c.Backend.Timeout,
		c.AddressHTTP,
		c.TimeoutHTTP,
		c.IdleTimeout,
		c.Refresh.Interval,
		c.TokenLeeway,
		c.RecordStore.Driver,
		c.SessionStore.Driver,
		c.RabbitMQURL != "",
		c.Tag,
		c.Currency,
	)
}

func mask(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return secret[:4] + "****"
}
