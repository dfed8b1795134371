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

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"persons/core/person/adapters/persistence/memory"
	"persons/core/person/adapters/persistence/pg"
	"persons/core/person/adapters/web"
	"persons/core/person/domain"
	"persons/db/migrations"
	"persons/modules/appconfig"
	"persons/modules/clock"
	"persons/modules/db"
	"persons/modules/db/postgres"
	"persons/modules/db/redis"
	"persons/modules/db/redis/counter"
	"persons/modules/flash"
	"persons/modules/middleware"
	"persons/modules/middleware/ratelimit"
	rl "persons/modules/ratelimit"
	"persons/modules/server"
	"persons/modules/services"
	"persons/modules/session"
	"persons/modules/telemetry"
)

const redisKeyspace = "persons"

func main() {
	exitCode := 0
	defer func() {
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}()

	// cancel the context when these signals occur
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, os.Interrupt)
	defer cancel()

	// manual dependency injections, imo there's no need to over-engineer with DI frameworks like Fx or Wire
	clk := clock.RealClockProvider()

	// --- application config ----
	appConfig, err := appconfig.Load()
	if err != nil {
		slog.ErrorContext(ctx, "failed to load config", slog.Any("error", err))
		exitCode = 1
		return
	}
	slog.SetDefault(appConfig.NewLogger(os.Stdout))

	otelShutdown, err := telemetry.Init(ctx, appConfig.Otel)
	if err != nil {
		slog.ErrorContext(ctx, "telemetry not properly configured", slog.Any("error", err))
		exitCode = 1
		return
	}
	defer func() {
		if err := otelShutdown(context.WithoutCancel(ctx)); err != nil {
			slog.ErrorContext(ctx, "telemetry shutdown error", slog.Any("error", err))
		}
	}()

	// --- infrastructure ---

	var checks []db.HealthManager

	var store domain.PersonStore
	switch appConfig.PersonStore {
	case appconfig.StoreMemory:
		slog.WarnContext(ctx, "persons are kept in memory and lost on exit")
		store = memory.NewStore()
	default:
		connectionPool, err := postgres.New(
			ctx,
			&appConfig.Postgres,
			postgres.PostgresOptions{
				// replicas may sit behind pgBouncer in transaction mode
				ReaderOptions: []postgres.PgxConfigOption{
					postgres.WithPgBouncerSimpleProtocol(),
				},
				Migrations: postgres.MigrationSource{FS: migrations.FS, Dir: migrations.Dir},
			},
		)
		if err != nil {
			slog.ErrorContext(ctx, "database error", slog.Any("error", err))
			exitCode = 1
			return
		}
		defer func() {
			if err := connectionPool.Shutdown(ctx); err != nil {
				slog.ErrorContext(ctx, "database shutdown error", slog.Any("error", err))
			}
		}()

		if err := connectionPool.HealthCheck(ctx); err != nil {
			slog.ErrorContext(ctx, "database health check failed", slog.Any("error", err))
			exitCode = 1
			return
		}

		if appConfig.Postgres.MigrateOnStart {
			if err := connectionPool.MigrateUp(ctx); err != nil {
				slog.ErrorContext(ctx, "database migration failed", slog.Any("error", err))
				exitCode = 1
				return
			}
		}

		store = pg.NewPostgresPersonStore(connectionPool, pg.DefaultTable)
		checks = append(checks, connectionPool)
	}

	var (
		notices        flash.Store
		limiterFactory rl.LimiterFactory
	)
	switch appConfig.StateBackend {
	case appconfig.StateRedis:
		redisClient, err := redis.NewRueidisClient(ctx, appConfig.Redis)
		if err != nil {
			slog.ErrorContext(ctx, "redis not properly setup", slog.Any("error", err))
			exitCode = 1
			return
		}
		defer redisClient.Close()

		notices = flash.NewRedisStore(redisClient, appConfig.Flash.KeyPrefix, appConfig.Flash.TTL)
		redisCounter := counter.NewRedisCounterStore(redisClient, redisKeyspace)
		limiterFactory = rl.SlidingWindowFactory(clk, redisCounter, "ratelimit")
		checks = append(checks, redis.NewRedisKV(redisClient))
	default:
		notices = flash.NewMemoryStore(clk, appConfig.Flash.TTL)
		limiterFactory = rl.TokenBucketFactory(clk)
	}

	slog.DebugContext(ctx, "app rate limit config", slog.Any("rate_limit_config", appConfig.RateLimit))

	rtp, err := ratelimit.ParsePolicy(
		limiterFactory,
		&appConfig.RateLimit,
		ratelimit.ServeMuxRouteInfo,
		appConfig.RateLimit.KeyStrategies(),
	)
	if err != nil {
		slog.ErrorContext(ctx, "ratelimit config not properly parsed", slog.Any("error", err))
		exitCode = 1
		return
	}

	// --- application layer ---

	app, err := domain.NewApp(store, clk)
	if err != nil {
		slog.ErrorContext(ctx, "person service init error", slog.Any("error", err))
		exitCode = 1
		return
	}

	renderer, err := web.NewRenderer()
	if err != nil {
		slog.ErrorContext(ctx, "templates not parsed", slog.Any("error", err))
		exitCode = 1
		return
	}

	sessions, err := session.NewManager(appConfig.Session)
	if err != nil {
		slog.ErrorContext(ctx, "session setup error", slog.Any("error", err))
		exitCode = 1
		return
	}

	personHandler := web.NewHandler(web.NewPersonAction(app), renderer, notices, checks...)

	// Initialize HTTP metrics for middleware-based instrumentation
	httpMetrics, err := telemetry.NewHTTPMetrics(appConfig.Otel.ServiceName)
	if err != nil {
		slog.WarnContext(ctx, "failed to initialize HTTP metrics, continuing without metrics", slog.Any("error", err))
		httpMetrics = nil
	}

	srv, err := server.New(
		appConfig.HTTP.Host, appConfig.HTTP.Port,
		server.WithReadTimeout(appConfig.HTTP.ReadTimeout),
		server.WithWriteTimeout(appConfig.HTTP.WriteTimeout),
		server.WithServices(services.NewPersonWebService(personHandler, sessions)),
		server.WithGlobalMiddlewares(
			middleware.Telemetry(httpMetrics),
			middleware.Recovery(nil),
			ratelimit.NewRateLimitMiddleware(rtp),
		),
	)
	if err != nil {
		slog.ErrorContext(ctx, "init server error", slog.Any("error", err))
		exitCode = 1
		return
	}

	if err := srv.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "running server error", slog.Any("error", err))
		exitCode = 1
		return
	}
}
