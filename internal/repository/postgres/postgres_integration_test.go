package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"LinkTrace-Backend/internal/database"
	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository"
)

// setupPostgres starts a disposable PostgreSQL container and returns a
// migrated storage over it.
func setupPostgres(t *testing.T) *PostgresStorage {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	container, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("linktrace_test"),
		tcpostgres.WithUsername("linktrace"),
		tcpostgres.WithPassword("linktrace"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(gormpostgres.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	log := zap.NewNop()
	require.NoError(t, database.AutoMigrate(db, log))
	require.NoError(t, database.SeedData(db, log))

	return New(db, log)
}

func TestPostgresStorage_Integration(t *testing.T) {
	store := setupPostgres(t)
	ctx := context.Background()

	tracker := &domain.Tracker{Name: "campaign"}
	require.NoError(t, store.CreateTracker(ctx, tracker))
	visitor := &domain.Visitor{Username: "alice"}
	require.NoError(t, store.CreateVisitor(ctx, visitor))

	t.Run("duplicate_visitor_rejected", func(t *testing.T) {
		err := store.CreateVisitor(ctx, &domain.Visitor{Username: "alice"})
		assert.ErrorIs(t, err, repository.ErrVisitorExists)
	})

	inst, err := store.AssignVisitor(ctx, tracker.ID, visitor.ID)
	require.NoError(t, err)
	require.Len(t, inst.UUID, 32)

	t.Run("duplicate_assignment_rejected", func(t *testing.T) {
		_, err := store.AssignVisitor(ctx, tracker.ID, visitor.ID)
		assert.ErrorIs(t, err, repository.ErrDuplicateAssignment)
	})

	t.Run("assignment_requires_existing_rows", func(t *testing.T) {
		_, err := store.AssignVisitor(ctx, 9999, visitor.ID)
		assert.ErrorIs(t, err, repository.ErrTrackerNotFound)

		_, err = store.AssignVisitor(ctx, tracker.ID, 9999)
		assert.ErrorIs(t, err, repository.ErrVisitorNotFound)
	})

	t.Run("lookup_by_uuid", func(t *testing.T) {
		got, err := store.GetInstanceByUUID(ctx, inst.UUID)
		require.NoError(t, err)
		assert.Equal(t, inst.ID, got.ID)

		_, err = store.GetInstanceByUUID(ctx, "ffffffffffffffffffffffffffffffff")
		assert.ErrorIs(t, err, repository.ErrInstanceNotFound)
	})

	t.Run("sentinel_seeded", func(t *testing.T) {
		sentinel, err := store.UnknownInstance(ctx)
		require.NoError(t, err)
		again, err := store.UnknownInstance(ctx)
		require.NoError(t, err)
		assert.Equal(t, sentinel.ID, again.ID)
	})

	t.Run("access_aggregates", func(t *testing.T) {
		early := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
		late := early.Add(time.Hour)

		for _, a := range []*domain.Access{
			{InstanceID: inst.ID, Time: &late, Result: domain.ResultSuccess, URL: "/t/h/u/gpx"},
			{InstanceID: inst.ID, Time: &early, Result: domain.ResultSuccess, URL: "/t/h/u/gpx"},
			{InstanceID: inst.ID, Time: &late, Result: domain.ResultErrorTarget, URL: "/t/h/u/bogus"},
			{InstanceID: inst.ID, Result: domain.ResultFailureHash, URL: "/t/h/u/gpx"},
		} {
			require.NoError(t, store.AppendAccess(ctx, a))
		}

		stats, err := store.InstanceStats(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.AccessCount)
		require.NotNil(t, stats.FirstAccess)
		assert.True(t, stats.FirstAccess.Equal(early))
		require.NotNil(t, stats.RecentAccess)
		assert.True(t, stats.RecentAccess.Equal(late))

		read, err := store.CountReadInstances(ctx, tracker.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), read)
	})

	t.Run("mark_notified", func(t *testing.T) {
		when := time.Now().UTC().Truncate(time.Microsecond)
		require.NoError(t, store.MarkNotified(ctx, inst.ID, when))

		got, err := store.GetInstanceByUUID(ctx, inst.UUID)
		require.NoError(t, err)
		require.NotNil(t, got.Notified)
		assert.True(t, got.Notified.Equal(when))
	})

	t.Run("emails", func(t *testing.T) {
		email := &domain.SentEmail{
			TrackerID: tracker.ID,
			FromEmail: "ops@example.com",
			Subject:   "hello",
			HTMLBody:  "<p>hi</p>",
		}
		require.NoError(t, store.SaveEmail(ctx, email))
		require.NotZero(t, email.ID)

		byTracker, err := store.GetEmailByTracker(ctx, tracker.ID)
		require.NoError(t, err)
		assert.Equal(t, email.ID, byTracker.ID)

		_, err = store.GetEmail(ctx, 999999)
		assert.ErrorIs(t, err, repository.ErrEmailNotFound)
	})

	t.Run("operators", func(t *testing.T) {
		op, err := store.CreateOperator(ctx, "admin@example.com", "hash")
		require.NoError(t, err)

		got, err := store.GetOperatorByEmail(ctx, "admin@example.com")
		require.NoError(t, err)
		assert.Equal(t, op.ID, got.ID)

		_, err = store.CreateOperator(ctx, "admin@example.com", "hash")
		assert.ErrorIs(t, err, repository.ErrOperatorExists)
	})
}
