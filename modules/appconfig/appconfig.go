// Copyright 2025 Nhat-Nguyen Nguyen
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package appconfig

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"persons/modules/db/postgres"
	"persons/modules/db/redis"
	"persons/modules/flash"
	"persons/modules/hmac"
	"persons/modules/middleware/ratelimit"
	"persons/modules/server"
	"persons/modules/session"
	"persons/modules/telemetry"

	"github.com/caarlos0/env/v11"
)

type (
	StateBackend string
	PersonStore  string
)

const (
	// StateMemory keeps flash notices and rate-limit buckets in process.
	StateMemory StateBackend = "memory"
	// StateRedis shares them through Redis across instances.
	StateRedis StateBackend = "redis"

	StorePostgres PersonStore = "postgres"
	// StoreMemory loses every person on exit; meant for demos and local runs.
	StoreMemory PersonStore = "memory"
)

var (
	ErrStateBackend = errors.New("STATE_BACKEND must be redis or memory")
	ErrPersonStore  = errors.New("PERSON_STORE must be postgres or memory")
	ErrLogFormat    = errors.New("LOG_FORMAT must be text or json")
	ErrHTTPPort     = errors.New("HTTP_PORT out of range")
	ErrShortSecret  = fmt.Errorf("SESSION_SECRET must be at least %d bytes", hmac.MinKeyLen)
)

type (
	Config struct {
		Env       string `env:"ENV" envDefault:"dev"`
		LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
		LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

		HTTP HTTPConfig `envPrefix:"HTTP_"`

		// --- core infra ----
		PersonStore  PersonStore             `env:"PERSON_STORE" envDefault:"postgres"`
		Postgres     postgres.PostgresConfig `envPrefix:"POSTGRES_"`
		Redis        redis.RedisConfig       `envPrefix:"REDIS_"`
		StateBackend StateBackend            `env:"STATE_BACKEND" envDefault:"memory"`

		// --- web state ----
		Session session.SessionConfig `envPrefix:"SESSION_"`
		Flash   flash.FlashConfig     `envPrefix:"FLASH_"`

		// --- middlewares ----
		RateLimit ratelimit.Config `envPrefix:"RATE_LIMIT_"`

		// --- otel ----
		// since it has special naming conventions, we do not use prefix here
		Otel telemetry.Config
	}

	HTTPConfig struct {
		Host         string        `env:"HOST" envDefault:"0.0.0.0"`
		Port         int           `env:"PORT" envDefault:"8080"`
		ReadTimeout  time.Duration `env:"READ_TIMEOUT" envDefault:"10s"`
		WriteTimeout time.Duration `env:"WRITE_TIMEOUT" envDefault:"10s"`
	}
)

func Load() (*Config, error) {
	return load(env.Options{})
}

// LoadFrom reads the configuration from environ instead of the process
// environment.
func LoadFrom(environ map[string]string) (*Config, error) {
	return load(env.Options{Environment: environ})
}

func load(opts env.Options) (*Config, error) {
	cfg, err := env.ParseAsWithOptions[Config](opts)
	if err != nil {
		return nil, err
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(c *Config) error {
	var errs []error

	switch c.StateBackend {
	case StateMemory, StateRedis:
	default:
		errs = append(errs, fmt.Errorf("%w, got %q", ErrStateBackend, c.StateBackend))
	}
	switch c.PersonStore {
	case StorePostgres, StoreMemory:
	default:
		errs = append(errs, fmt.Errorf("%w, got %q", ErrPersonStore, c.PersonStore))
	}
	if _, err := c.Level(); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("%w, got %q", ErrLogFormat, c.LogFormat))
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > server.MAX_TCP_PORT {
		errs = append(errs, fmt.Errorf("%w: %d", ErrHTTPPort, c.HTTP.Port))
	}
	if len(c.Session.Secret) < hmac.MinKeyLen {
		errs = append(errs, ErrShortSecret)
	}
	if c.Env == "prod" && !c.Session.CookieSecure {
		slog.Warn("SESSION_COOKIE_SECURE is off in prod")
	}
	return errors.Join(errs...)
}

func (c *Config) Level() (slog.Level, error) {
	var l slog.Level
	err := l.UnmarshalText([]byte(c.LogLevel))
	return l, err
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := c.Level()
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	if strings.EqualFold(c.LogFormat, "json") {
		h = slog.NewJSONHandler(w, opts)
	} else {
		h = slog.NewTextHandler(w, opts)
	}
	return slog.New(h).With(slog.String("env", c.Env), slog.String("service", c.Otel.ServiceName))
}
