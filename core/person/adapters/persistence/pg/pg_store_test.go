package pg

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"persons/core/person/domain"
	"persons/db/migrations"
	pgpool "persons/modules/db/postgres"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// setupStore starts Postgres, applies the embedded migrations and returns a
// store on top of the pool.
func setupStore(t *testing.T) *PostgresPersonStore {
	t.Helper()

	if os.Getenv("TEST_INTEGRATION") == "" {
		t.Skip("skipping integration test: TEST_INTEGRATION is not set")
	}

	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"docker.io/postgres:17-alpine",
		tcpostgres.WithDatabase("persons_test"),
		tcpostgres.WithUsername("persons"),
		tcpostgres.WithPassword("test-password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate postgres container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432")
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	cfg := &pgpool.PostgresConfig{
		WriteConfig: pgpool.PoolConfig{
			Host:         host,
			Port:         uint16(portNum),
			User:         "persons",
			Password:     "test-password",
			Database:     "persons_test",
			SSLMode:      "disable",
			PoolMaxConns: 4,
		},
	}

	pool, err := pgpool.New(ctx, cfg, pgpool.PostgresOptions{
		Migrations: pgpool.MigrationSource{FS: migrations.FS, Dir: migrations.Dir},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Shutdown(ctx) })

	require.NoError(t, pool.HealthCheck(ctx))
	require.NoError(t, pool.MigrateUp(ctx))

	return NewPostgresPersonStore(pool, "")
}

func birth(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestPostgresPersonStore_Lifecycle(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	all, err := store.FindAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)

	ada := &domain.Person{
		Name: "Ada", Surname: "Lovelace", BirthDate: birth(1815, time.December, 10), Age: 210,
		InsertTimestamp: now, UpdateTimestamp: now,
	}
	require.NoError(t, store.Upsert(ctx, ada))
	require.NotNil(t, ada.ID)

	alan := &domain.Person{
		Name: "Alan", Surname: "Turing", BirthDate: birth(1912, time.June, 23), Age: 114,
		InsertTimestamp: now, UpdateTimestamp: now,
	}
	require.NoError(t, store.Insert(ctx, alan))
	assert.Greater(t, *alan.ID, *ada.ID)

	got, err := store.FindByID(ctx, *ada.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ada", got.Name)
	assert.Equal(t, "1815-12-10", got.BirthDate.Format(time.DateOnly))
	assert.Equal(t, 210, got.Age)
	assert.True(t, now.Equal(got.InsertTimestamp))

	// update leaves insert_timestamp alone even when the caller changed it
	later := now.Add(time.Hour)
	ada.Name = "Augusta Ada"
	ada.InsertTimestamp = later
	ada.UpdateTimestamp = later
	require.NoError(t, store.Upsert(ctx, ada))

	got, err = store.FindByID(ctx, *ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "Augusta Ada", got.Name)
	assert.True(t, now.Equal(got.InsertTimestamp))
	assert.True(t, later.Equal(got.UpdateTimestamp))

	all, err = store.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, *ada.ID, *all[0].ID)
	assert.Equal(t, *alan.ID, *all[1].ID)

	require.NoError(t, store.DeleteByID(ctx, *ada.ID))
	got, err = store.FindByID(ctx, *ada.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestPostgresPersonStore_MissingRows(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	got, err := store.FindByID(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.NoError(t, store.DeleteByID(ctx, 7))

	id := int64(99)
	assert.NoError(t, store.Update(ctx, &domain.Person{ID: &id, Name: "x", Surname: "y", UpdateTimestamp: time.Now()}))
}

func TestPostgresPersonStore_NullBirthDate(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now()

	p := &domain.Person{Name: "No", Surname: "Date", InsertTimestamp: now, UpdateTimestamp: now}
	require.NoError(t, store.Insert(ctx, p))

	got, err := store.FindByID(ctx, *p.ID)
	require.NoError(t, err)
	assert.Nil(t, got.BirthDate)
}
