package mailer

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository"
	"LinkTrace-Backend/internal/repository/memory"
)

// stubURLs issues recognizable fake URLs keyed by uuid.
type stubURLs struct{}

func (stubURLs) PixelPNGURL(uuid string) string    { return "http://track/px/" + uuid }
func (stubURLs) EmailRenderURL(uuid string) string { return "http://track/render/" + uuid }
func (stubURLs) EmailAckURL(uuid string) string    { return "http://track/ack/" + uuid }

func newTestService(t *testing.T) (*Service, *memory.MemStorage, *countingSender) {
	t.Helper()
	store := memory.New()
	sender := &countingSender{}
	d := NewDispatcher(testMailerConfig(), sender, store, zap.NewNop())
	require.NoError(t, d.Start())
	t.Cleanup(func() { d.Stop() })
	return NewService(store, stubURLs{}, d, zap.NewNop()), store, sender
}

func addVisitor(t *testing.T, store *memory.MemStorage, username, email string) {
	t.Helper()
	v := &domain.Visitor{Username: username}
	if email != "" {
		v.EmailAddress = &email
	}
	require.NoError(t, store.CreateVisitor(context.Background(), v))
}

func TestService_Compose(t *testing.T) {
	svc, store, sender := newTestService(t)
	ctx := context.Background()

	addVisitor(t, store, "alice", "alice@example.com")
	addVisitor(t, store, "bob", "bob@example.com")

	email, instances, err := svc.Compose(ctx, &ComposeRequest{
		FromEmail:  "ops@example.com",
		Subject:    "Launch",
		TextBody:   "We launched.",
		HTMLBody:   "<html><body><p>We launched.</p></body></html>",
		Recipients: []string{"alice", "bob"},
	})
	require.NoError(t, err)
	require.Len(t, instances, 2)

	t.Run("email_stored_under_dedicated_tracker", func(t *testing.T) {
		stored, err := store.GetEmailByTracker(ctx, email.TrackerID)
		require.NoError(t, err)
		assert.Equal(t, "Launch", stored.Subject)

		tracker, err := store.GetTracker(ctx, email.TrackerID)
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(tracker.Name, "_email_"))
	})

	t.Run("each_recipient_gets_own_instance", func(t *testing.T) {
		assert.NotEqual(t, instances[0].UUID, instances[1].UUID)
		for _, inst := range instances {
			assert.Equal(t, email.TrackerID, inst.TrackerID)
		}
	})

	t.Run("messages_personalized_per_instance", func(t *testing.T) {
		waitFor(t, func() bool { return sender.sentCount() == 2 })

		sender.mu.Lock()
		defer sender.mu.Unlock()
		for _, msg := range sender.sent {
			var inst *domain.TrackingInstance
			for _, candidate := range instances {
				if strings.Contains(msg.HTMLBody, candidate.UUID) {
					inst = candidate
					break
				}
			}
			require.NotNil(t, inst, "message carries no known instance uuid")

			// pixel and footer are injected inside the body element
			bodyEnd := strings.Index(msg.HTMLBody, "</body>")
			require.Greater(t, bodyEnd, 0)
			assert.Contains(t, msg.HTMLBody[:bodyEnd], "http://track/px/"+inst.UUID)
			assert.Contains(t, msg.HTMLBody[:bodyEnd], "http://track/ack/"+inst.UUID)
			assert.Contains(t, msg.HTMLBody[:bodyEnd], "http://track/render/"+inst.UUID)
			assert.Contains(t, msg.TextBody, "http://track/ack/"+inst.UUID)
		}
	})
}

func TestService_Compose_SkipsRecipientsWithoutEmail(t *testing.T) {
	svc, store, sender := newTestService(t)
	ctx := context.Background()

	addVisitor(t, store, "alice", "alice@example.com")
	addVisitor(t, store, "ghost", "")

	_, instances, err := svc.Compose(ctx, &ComposeRequest{
		FromEmail:  "ops@example.com",
		Subject:    "hello",
		HTMLBody:   "<p>hi</p>",
		Recipients: []string{"alice", "ghost"},
	})
	require.NoError(t, err)
	assert.Len(t, instances, 1)

	waitFor(t, func() bool { return sender.sentCount() == 1 })
}

func TestService_Compose_UnknownRecipient(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.Compose(context.Background(), &ComposeRequest{
		Subject:    "hello",
		HTMLBody:   "<p>hi</p>",
		Recipients: []string{"nobody"},
	})
	assert.ErrorIs(t, err, repository.ErrVisitorNotFound)
}

func TestService_Compose_NoRecipients(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, _, err := svc.Compose(context.Background(), &ComposeRequest{
		Subject:  "hello",
		HTMLBody: "<p>hi</p>",
	})
	assert.Error(t, err)
}

func TestService_Compose_NoBodyTag(t *testing.T) {
	svc, store, sender := newTestService(t)
	addVisitor(t, store, "alice", "alice@example.com")

	_, instances, err := svc.Compose(context.Background(), &ComposeRequest{
		Subject:    "plain",
		HTMLBody:   "<p>no body element</p>",
		Recipients: []string{"alice"},
	})
	require.NoError(t, err)
	require.Len(t, instances, 1)

	waitFor(t, func() bool { return sender.sentCount() == 1 })
	sender.mu.Lock()
	defer sender.mu.Unlock()
	assert.Contains(t, sender.sent[0].HTMLBody, "http://track/px/"+instances[0].UUID)
}

func TestService_Stats(t *testing.T) {
	svc, store, _ := newTestService(t)
	ctx := context.Background()

	addVisitor(t, store, "alice", "alice@example.com")
	addVisitor(t, store, "bob", "bob@example.com")

	email, instances, err := svc.Compose(ctx, &ComposeRequest{
		Subject:    "stats",
		HTMLBody:   "<body>x</body>",
		Recipients: []string{"alice", "bob"},
	})
	require.NoError(t, err)

	t.Run("unread_initially", func(t *testing.T) {
		stats, err := svc.Stats(ctx, email.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(2), stats.RecipientCount)
		assert.Equal(t, int64(0), stats.ReadCount)
		assert.Equal(t, int64(2), stats.UnreadCount)
	})

	t.Run("read_after_access", func(t *testing.T) {
		now := time.Now()
		require.NoError(t, store.AppendAccess(ctx, &domain.Access{
			InstanceID: instances[0].ID,
			Time:       &now,
			Result:     domain.ResultSuccess,
		}))

		stats, err := svc.Stats(ctx, email.ID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), stats.ReadCount)
		assert.Equal(t, int64(1), stats.UnreadCount)
	})

	t.Run("unknown_email", func(t *testing.T) {
		_, err := svc.Stats(ctx, 9999)
		assert.ErrorIs(t, err, repository.ErrEmailNotFound)
	})
}
