package mailer

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LinkTrace-Backend/internal/config"
	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository/memory"
)

// countingSender records sends and can fail the first N attempts.
type countingSender struct {
	mu       sync.Mutex
	sent     []*Message
	failures int
}

func (s *countingSender) Send(_ context.Context, msg *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return fmt.Errorf("transport unavailable")
	}
	s.sent = append(s.sent, msg)
	return nil
}

func (s *countingSender) sentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

func testMailerConfig() config.Mailer {
	return config.Mailer{
		Workers:         2,
		BufferSize:      8,
		RetryAttempts:   3,
		RetryDelay:      5 * time.Millisecond,
		ShutdownTimeout: 2 * time.Second,
	}
}

func newTestInstance(t *testing.T, store *memory.MemStorage) *domain.TrackingInstance {
	t.Helper()
	ctx := context.Background()
	tracker := &domain.Tracker{Name: "email-campaign"}
	require.NoError(t, store.CreateTracker(ctx, tracker))
	visitor := &domain.Visitor{Username: "alice"}
	require.NoError(t, store.CreateVisitor(ctx, visitor))
	inst, err := store.AssignVisitor(ctx, tracker.ID, visitor.ID)
	require.NoError(t, err)
	return inst
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestDispatcher_DeliversAndMarksNotified(t *testing.T) {
	store := memory.New()
	sender := &countingSender{}
	d := NewDispatcher(testMailerConfig(), sender, store, zap.NewNop())
	require.NoError(t, d.Start())
	defer d.Stop()

	inst := newTestInstance(t, store)

	err := d.Submit(&Job{
		Message:    &Message{To: "alice@example.com", Subject: "hi"},
		InstanceID: inst.ID,
	})
	require.NoError(t, err)

	waitFor(t, func() bool { return sender.sentCount() == 1 })
	waitFor(t, func() bool {
		got, err := store.GetInstanceByUUID(context.Background(), inst.UUID)
		return err == nil && got.Notified != nil
	})
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	store := memory.New()
	sender := &countingSender{failures: 2}
	d := NewDispatcher(testMailerConfig(), sender, store, zap.NewNop())
	require.NoError(t, d.Start())
	defer d.Stop()

	inst := newTestInstance(t, store)

	require.NoError(t, d.Submit(&Job{
		Message:    &Message{To: "alice@example.com"},
		InstanceID: inst.ID,
	}))

	// two failures, third attempt succeeds
	waitFor(t, func() bool { return sender.sentCount() == 1 })
}

func TestDispatcher_SubmitBeforeStart(t *testing.T) {
	d := NewDispatcher(testMailerConfig(), &countingSender{}, memory.New(), zap.NewNop())
	err := d.Submit(&Job{Message: &Message{To: "x@example.com"}})
	assert.Error(t, err)
}

func TestDispatcher_StartStop(t *testing.T) {
	d := NewDispatcher(testMailerConfig(), &countingSender{}, memory.New(), zap.NewNop())

	require.NoError(t, d.Start())
	assert.Error(t, d.Start(), "double start rejected")
	require.NoError(t, d.Stop())
	assert.Error(t, d.Stop(), "double stop rejected")
}

func TestDispatcher_Stats(t *testing.T) {
	d := NewDispatcher(testMailerConfig(), &countingSender{}, memory.New(), zap.NewNop())
	require.NoError(t, d.Start())
	defer d.Stop()

	stats := d.Stats()
	assert.Equal(t, true, stats["started"])
	assert.Equal(t, 2, stats["worker_count"])
	assert.Equal(t, 8, stats["queue_capacity"])
}
