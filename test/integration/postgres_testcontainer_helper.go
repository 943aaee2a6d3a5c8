//go:build integration

package integration

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"

	"github.com/sandeepkv93/taskgate/internal/config"
	"github.com/sandeepkv93/taskgate/internal/database"
)

const defaultPostgresTestImage = "docker.io/library/postgres:16-alpine"

type postgresIntegrationEnv struct {
	dsn string
	db  *gorm.DB

	container testcontainers.Container
}

func newPostgresIntegrationEnv(t *testing.T) *postgresIntegrationEnv {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)

	ctx := context.Background()
	image := os.Getenv("POSTGRES_TEST_IMAGE")
	if strings.TrimSpace(image) == "" {
		image = defaultPostgresTestImage
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image: image,
			Env: map[string]string{
				"POSTGRES_USER":     "taskgate",
				"POSTGRES_PASSWORD": "taskgate",
				"POSTGRES_DB":       "taskgate",
			},
			ExposedPorts: []string{"5432/tcp"},
			// postgres logs readiness once for the init server and once for
			// the real one.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("start postgres test container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve postgres host: %v", err)
	}
	mappedPort, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("resolve postgres port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://taskgate:taskgate@%s/taskgate?sslmode=disable", net.JoinHostPort(host, mappedPort.Port()))

	db, err := database.Open(&config.Config{
		DatabaseURL:       dsn,
		DBMaxOpenConns:    10,
		DBMaxIdleConns:    2,
		DBConnMaxLifetime: time.Minute,
	})
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = database.Close(db) })
	waitForPostgresReady(t, db)
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate postgres: %v", err)
	}

	return &postgresIntegrationEnv{dsn: dsn, db: db, container: container}
}

func waitForPostgresReady(t *testing.T, db *gorm.DB) {
	t.Helper()
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("postgres pool: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()

	for {
		err := sqlDB.PingContext(ctx)
		if err == nil {
			return
		}
		select {
		case <-ctx.Done():
			t.Fatalf("postgres readiness check timed out: %v", err)
		case <-ticker.C:
		}
	}
}
