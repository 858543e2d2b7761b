package teststore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/mysql"
	"github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/usememos/supportbot/internal/profile"
	"github.com/usememos/supportbot/store"
	"github.com/usememos/supportbot/store/db"
)

// NewTestingStore returns a migrated store for the driver named by the
// DRIVER environment variable. sqlite is the default and needs nothing
// external; mysql and postgres start a container and skip without Docker.
func NewTestingStore(ctx context.Context, t *testing.T) *store.Store {
	t.Helper()
	profile := getTestingProfile(ctx, t)
	dbDriver, err := db.NewDBDriver(profile)
	if err != nil {
		t.Fatalf("failed to create db driver: %v", err)
	}

	s := store.New(dbDriver, profile)
	t.Cleanup(func() {
		_ = s.Close()
	})
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate db: %v", err)
	}
	return s
}

func getTestingProfile(ctx context.Context, t *testing.T) *profile.Profile {
	driver := getDriverFromEnv()
	p := &profile.Profile{
		Mode:   "dev",
		Data:   t.TempDir(),
		Driver: driver,
	}
	switch driver {
	case "mysql":
		p.DSN = startMySQL(ctx, t)
	case "postgres":
		p.DSN = startPostgres(ctx, t)
	default:
		p.Driver = "sqlite"
		p.DSN = filepath.Join(p.Data, "supportbot_test.db")
	}
	return p
}

func getDriverFromEnv() string {
	driver := os.Getenv("DRIVER")
	if driver == "" {
		driver = "sqlite"
	}
	return driver
}

func startMySQL(ctx context.Context, t *testing.T) string {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	container, err := mysql.Run(ctx, "mysql:8",
		mysql.WithDatabase("supportbot"),
		mysql.WithUsername("root"),
		mysql.WithPassword("supportbot"),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start mysql container: %v", err)
	}
	dsn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get mysql dsn: %v", err)
	}
	return dsn
}

func startPostgres(ctx context.Context, t *testing.T) string {
	testcontainers.SkipIfProviderIsNotHealthy(t)
	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("supportbot"),
		postgres.WithUsername("supportbot"),
		postgres.WithPassword("supportbot"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, container)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres dsn: %v", err)
	}
	return dsn
}
