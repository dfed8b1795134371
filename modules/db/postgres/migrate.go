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

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/url"
	"strconv"

	"github.com/amacneil/dbmate/v2/pkg/dbmate"
	_ "github.com/amacneil/dbmate/v2/pkg/driver/postgres"
)

var ErrNoMigrations = errors.New("postgres: no migration source configured")

// MigrationSource points dbmate at an embedded directory of *.sql files.
type MigrationSource struct {
	FS  fs.FS
	Dir string
}

// migrationURL is the lib/pq style URL dbmate expects; pgx-only parameters
// such as pool_max_conns are not accepted there.
func migrationURL(cfg *PoolConfig) *url.URL {
	q := url.Values{}
	if cfg.SSLMode != "" {
		q.Set("sslmode", cfg.SSLMode)
	}
	return &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(int(cfg.Port)),
		Path:     "/" + cfg.Database,
		RawQuery: q.Encode(),
	}
}

func (p *PostgresConnectionPool) migrator() (*dbmate.DB, error) {
	if p.migrations.FS == nil {
		return nil, ErrNoMigrations
	}
	m := dbmate.New(migrationURL(&p.writeConfig))
	m.FS = p.migrations.FS
	m.MigrationsDir = []string{p.migrations.Dir}
	m.AutoDumpSchema = false
	m.Log = slogWriter{}
	return m, nil
}

// MigrateUp implements db.ConnectionPool.
//
// dbmate does not take a context; ctx is only used for logging.
func (p *PostgresConnectionPool) MigrateUp(ctx context.Context) error {
	m, err := p.migrator()
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "applying migrations", slog.String("dir", p.migrations.Dir))
	if err := m.CreateAndMigrate(); err != nil {
		return fmt.Errorf("postgres: migrate up: %w", err)
	}
	return nil
}

// MigrateDown implements db.ConnectionPool. It rolls back the latest migration only.
func (p *PostgresConnectionPool) MigrateDown(ctx context.Context) error {
	m, err := p.migrator()
	if err != nil {
		return err
	}
	slog.InfoContext(ctx, "rolling back latest migration", slog.String("dir", p.migrations.Dir))
	if err := m.Rollback(); err != nil {
		return fmt.Errorf("postgres: migrate down: %w", err)
	}
	return nil
}

// slogWriter forwards dbmate's progress output to slog.
type slogWriter struct{}

var _ io.Writer = slogWriter{}

func (slogWriter) Write(b []byte) (int, error) {
	slog.Debug("dbmate", slog.String("output", string(b)))
	return len(b), nil
}
