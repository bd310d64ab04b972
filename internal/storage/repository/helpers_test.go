package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/magabrotheeeer/plan-subscriptions/internal/config"
	"github.com/magabrotheeeer/plan-subscriptions/internal/migrations"
	"github.com/magabrotheeeer/plan-subscriptions/internal/models"
)

const postgresPort = nat.Port("5432/tcp")

// TestDataFactory создаёт тестовые данные напрямую через SQL.
type TestDataFactory struct {
	storage *Storage
}

// NewTestDataFactory создает новую фабрику тестовых данных
func NewTestDataFactory(storage *Storage) *TestDataFactory {
	return &TestDataFactory{storage: storage}
}

// CreateUser создает тестового пользователя и возвращает его UID.
func (f *TestDataFactory) CreateUser(t *testing.T, email string, role models.Role) string {
	var uid string
	err := f.storage.DB.QueryRow(`INSERT INTO users (email, password_hash, role)
		VALUES ($1, 'hashedpassword', $2) RETURNING uid`, email, string(role)).Scan(&uid)
	require.NoError(t, err)
	return uid
}

// CreatePlan создает тестовый план. durationDays == 0 означает бессрочный план.
func (f *TestDataFactory) CreatePlan(t *testing.T, name string, planType models.PlanType, price float64, durationDays int, active bool) int64 {
	var duration any
	if durationDays > 0 {
		duration = durationDays
	}
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO subscription_plans (name, type, price, duration_days, is_active)
		VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		name, string(planType), price, duration, active).Scan(&id)
	require.NoError(t, err)
	return id
}

// CreateSubscription создает подписку в произвольном статусе.
func (f *TestDataFactory) CreateSubscription(t *testing.T, userUID string, planID int64, planType models.PlanType,
	status models.Status, start time.Time, end *time.Time) int64 {
	var id int64
	err := f.storage.DB.QueryRow(`INSERT INTO subscriptions
		(user_uid, plan_id, plan_type, status, start_date, end_date, auto_renew)
		VALUES ($1, $2, $3, $4, $5, $6, true) RETURNING id`,
		userUID, planID, string(planType), string(status), start, end).Scan(&id)
	require.NoError(t, err)
	return id
}

// TestVerification содержит общие функции для проверки результатов тестов
type TestVerification struct {
	storage *Storage
}

// NewTestVerification создает новый объект для проверки результатов
func NewTestVerification(storage *Storage) *TestVerification {
	return &TestVerification{storage: storage}
}

// VerifySubscriptionStatus проверяет статус подписки в БД.
func (v *TestVerification) VerifySubscriptionStatus(t *testing.T, id int64, expected models.Status) {
	var status string
	err := v.storage.DB.QueryRow(`SELECT status FROM subscriptions WHERE id = $1`, id).Scan(&status)
	require.NoError(t, err)
	require.Equal(t, string(expected), status)
}

// CountActive возвращает число строк active пользователя данного типа.
func (v *TestVerification) CountActive(t *testing.T, userUID string, planType models.PlanType) int {
	var n int
	err := v.storage.DB.QueryRow(`SELECT COUNT(*) FROM subscriptions
		WHERE user_uid = $1 AND plan_type = $2 AND status = 'active'`, userUID, string(planType)).Scan(&n)
	require.NoError(t, err)
	return n
}

// setupTestDatabase поднимает PostgreSQL в контейнере и применяет миграции.
func setupTestDatabase(t *testing.T) (*Storage, func()) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "postgres:15-alpine",
		ExposedPorts: []string{string(postgresPort)},
		Env: map[string]string{
			"POSTGRES_DB":       "testdb",
			"POSTGRES_USER":     "testuser",
			"POSTGRES_PASSWORD": "testpass",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort(postgresPort),
			wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		).WithDeadline(3 * time.Minute),
	}

	postgresContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "failed to start container")

	host, err := postgresContainer.Host(ctx)
	require.NoError(t, err)
	port, err := postgresContainer.MappedPort(ctx, postgresPort)
	require.NoError(t, err, "Failed to get port")

	cfg := config.Storage{
		StorageConnectionString: fmt.Sprintf("postgres://testuser:testpass@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns:            20,
		MaxIdleConns:            5,
		ConnMaxLifetime:         time.Hour,
		QueryTimeout:            10 * time.Second,
	}

	// Пробуем подключиться несколько раз с ретраями
	var storage *Storage
	for range 10 {
		storage, err = New(cfg)
		if err == nil {
			break
		}
		time.Sleep(time.Second)
	}
	require.NoError(t, err, "Failed to create storage after retries")

	migrationsPath, err := filepath.Abs("../../../migrations")
	require.NoError(t, err)
	require.NoError(t, migrations.Run(storage.DB, migrationsPath))

	cleanup := func() {
		_ = storage.Close()
		if err := postgresContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	}
	return storage, cleanup
}
