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

package postgres

import "time"

type (
	// Note: For env parsing to work, we must export all struct fields
	PostgresConfig struct {
		// WriteConfig is the primary. Writes and migrations always go there.
		WriteConfig PoolConfig `envPrefix:"PRIMARY_"`
		// ReadConfigs are optional replicas, e.g. POSTGRES_REPLICA_0_HOST.
		// Without any, reads use the primary.
		ReadConfigs []PoolConfig `envPrefix:"REPLICA_"`

		// MigrateOnStart applies pending dbmate migrations against the primary at boot.
		MigrateOnStart bool `env:"MIGRATE_ON_START" envDefault:"true"`
	}

	PoolConfig struct {
		Host            string        `env:"HOST"     envDefault:"localhost"`
		Port            uint16        `env:"PORT"     envDefault:"5432"`
		User            string        `env:"USER"     envDefault:"postgres"`
		Password        string        `env:"PASSWORD" envDefault:"postgres"`
		Database        string        `env:"DATABASE" envDefault:"postgres"`
		SSLMode         string        `env:"SSL_MODE" envDefault:"disable"`
		ApplicationName string        `env:"APPLICATION_NAME" envDefault:"persons"`
		PoolMaxConns    int           `env:"POOL_MAX_CONNS" envDefault:"5"`
		MaxConnLifetime time.Duration `env:"MAX_CONN_LIFETIME"`
	}
)
