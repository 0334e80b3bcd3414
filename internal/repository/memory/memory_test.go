package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository"
)

func seedPair(t *testing.T, s *MemStorage) (*domain.Tracker, *domain.Visitor) {
	t.Helper()
	ctx := context.Background()
	tracker := &domain.Tracker{Name: "campaign"}
	require.NoError(t, s.CreateTracker(ctx, tracker))
	visitor := &domain.Visitor{Username: "alice"}
	require.NoError(t, s.CreateVisitor(ctx, visitor))
	return tracker, visitor
}

func TestMemStorage_Operators(t *testing.T) {
	s := New()
	ctx := context.Background()

	op, err := s.CreateOperator(ctx, "Admin@Example.com", "hash")
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", op.Email)

	t.Run("duplicate_email", func(t *testing.T) {
		_, err := s.CreateOperator(ctx, "admin@example.com", "hash2")
		assert.ErrorIs(t, err, repository.ErrOperatorExists)
	})

	t.Run("lookup_case_insensitive", func(t *testing.T) {
		got, err := s.GetOperatorByEmail(ctx, "ADMIN@example.com")
		require.NoError(t, err)
		assert.Equal(t, op.ID, got.ID)
	})

	t.Run("not_found", func(t *testing.T) {
		_, err := s.GetOperatorByEmail(ctx, "nobody@example.com")
		assert.ErrorIs(t, err, repository.ErrOperatorNotFound)
	})
}

func TestMemStorage_AssignVisitor(t *testing.T) {
	s := New()
	ctx := context.Background()
	tracker, visitor := seedPair(t, s)

	inst, err := s.AssignVisitor(ctx, tracker.ID, visitor.ID)
	require.NoError(t, err)
	assert.Len(t, inst.UUID, 32)

	t.Run("uuid_is_lowercase_hex", func(t *testing.T) {
		for _, c := range inst.UUID {
			assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'))
		}
	})

	t.Run("duplicate_pair_rejected", func(t *testing.T) {
		_, err := s.AssignVisitor(ctx, tracker.ID, visitor.ID)
		assert.ErrorIs(t, err, repository.ErrDuplicateAssignment)
	})

	t.Run("same_visitor_other_tracker", func(t *testing.T) {
		other := &domain.Tracker{Name: "other"}
		require.NoError(t, s.CreateTracker(ctx, other))
		second, err := s.AssignVisitor(ctx, other.ID, visitor.ID)
		require.NoError(t, err)
		assert.NotEqual(t, inst.UUID, second.UUID)
	})

	t.Run("lookup_by_uuid", func(t *testing.T) {
		got, err := s.GetInstanceByUUID(ctx, inst.UUID)
		require.NoError(t, err)
		assert.Equal(t, inst.ID, got.ID)

		_, err = s.GetInstanceByUUID(ctx, "ffffffffffffffffffffffffffffffff")
		assert.ErrorIs(t, err, repository.ErrInstanceNotFound)
	})

	t.Run("unknown_tracker_rejected", func(t *testing.T) {
		_, err := s.AssignVisitor(ctx, 9999, visitor.ID)
		assert.ErrorIs(t, err, repository.ErrTrackerNotFound)
	})

	t.Run("unknown_visitor_rejected", func(t *testing.T) {
		_, err := s.AssignVisitor(ctx, tracker.ID, 9999)
		assert.ErrorIs(t, err, repository.ErrVisitorNotFound)
	})
}

func TestMemStorage_UnknownInstance(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, err := s.UnknownInstance(ctx)
	require.NoError(t, err)
	second, err := s.UnknownInstance(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "sentinel is created once")

	tracker, err := s.GetTracker(ctx, first.TrackerID)
	require.NoError(t, err)
	assert.Equal(t, domain.UnknownTrackerName, tracker.Name)
}

func TestMemStorage_InstanceStats(t *testing.T) {
	s := New()
	ctx := context.Background()
	tracker, visitor := seedPair(t, s)
	inst, err := s.AssignVisitor(ctx, tracker.ID, visitor.ID)
	require.NoError(t, err)

	t.Run("empty", func(t *testing.T) {
		stats, err := s.InstanceStats(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), stats.AccessCount)
		assert.Nil(t, stats.FirstAccess)
		assert.False(t, stats.WasAccessed())
	})

	early := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	late := early.Add(2 * time.Hour)

	record := func(result domain.AccessResult, when *time.Time) {
		require.NoError(t, s.AppendAccess(ctx, &domain.Access{
			InstanceID: inst.ID,
			Time:       when,
			Result:     result,
			URL:        "/t/h/u/gpx",
		}))
	}

	record(domain.ResultSuccess, &late)
	record(domain.ResultSuccess, &early)
	record(domain.ResultErrorTarget, &late)
	// verification failures carry no timestamp and are excluded
	record(domain.ResultFailureHash, nil)
	record(domain.ResultFailureUUID, nil)

	t.Run("counts_only_verified", func(t *testing.T) {
		stats, err := s.InstanceStats(ctx, inst.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.AccessCount)
		assert.Equal(t, early, *stats.FirstAccess)
		assert.Equal(t, late, *stats.RecentAccess)
		assert.True(t, stats.WasAccessed())
	})

	t.Run("ledger_keeps_everything", func(t *testing.T) {
		assert.Equal(t, 5, s.AccessCountFor(inst.ID))
	})
}

func TestMemStorage_CountReadInstances(t *testing.T) {
	s := New()
	ctx := context.Background()
	tracker, _ := seedPair(t, s)

	bob := &domain.Visitor{Username: "bob"}
	require.NoError(t, s.CreateVisitor(ctx, bob))
	carol := &domain.Visitor{Username: "carol"}
	require.NoError(t, s.CreateVisitor(ctx, carol))

	read, err := s.AssignVisitor(ctx, tracker.ID, bob.ID)
	require.NoError(t, err)
	_, err = s.AssignVisitor(ctx, tracker.ID, carol.ID)
	require.NoError(t, err)

	now := time.Now()
	require.NoError(t, s.AppendAccess(ctx, &domain.Access{
		InstanceID: read.ID,
		Time:       &now,
		Result:     domain.ResultSuccess,
	}))

	count, err := s.CountReadInstances(ctx, tracker.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestMemStorage_Emails(t *testing.T) {
	s := New()
	ctx := context.Background()
	tracker, _ := seedPair(t, s)

	email := &domain.SentEmail{
		TrackerID: tracker.ID,
		FromEmail: "ops@example.com",
		Subject:   "hello",
		HTMLBody:  "<p>hi</p>",
	}
	require.NoError(t, s.SaveEmail(ctx, email))
	require.NotZero(t, email.ID)

	got, err := s.GetEmail(ctx, email.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello", got.Subject)

	byTracker, err := s.GetEmailByTracker(ctx, tracker.ID)
	require.NoError(t, err)
	assert.Equal(t, email.ID, byTracker.ID)

	t.Run("not_found", func(t *testing.T) {
		_, err := s.GetEmail(ctx, 9999)
		assert.ErrorIs(t, err, repository.ErrEmailNotFound)
		_, err = s.GetEmailByTracker(ctx, 9999)
		assert.ErrorIs(t, err, repository.ErrEmailNotFound)
	})
}

func TestMemStorage_MarkNotified(t *testing.T) {
	s := New()
	ctx := context.Background()
	tracker, visitor := seedPair(t, s)
	inst, err := s.AssignVisitor(ctx, tracker.ID, visitor.ID)
	require.NoError(t, err)
	require.Nil(t, inst.Notified)

	when := time.Now()
	require.NoError(t, s.MarkNotified(ctx, inst.ID, when))

	got, err := s.GetInstanceByUUID(ctx, inst.UUID)
	require.NoError(t, err)
	require.NotNil(t, got.Notified)
	assert.Equal(t, when, *got.Notified)

	assert.ErrorIs(t, s.MarkNotified(ctx, 9999, when), repository.ErrInstanceNotFound)
}
