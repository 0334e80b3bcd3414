package mailer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository"
)

// URLBuilder issues the tracked URLs embedded into outgoing emails.
type URLBuilder interface {
	PixelPNGURL(uuid string) string
	EmailRenderURL(uuid string) string
	EmailAckURL(uuid string) string
}

// ComposeRequest describes one email campaign: the content plus the visitor
// usernames it goes to.
type ComposeRequest struct {
	FromEmail  string
	Subject    string
	TextBody   string
	HTMLBody   string
	Recipients []string
}

// Service composes tracked emails: it creates a dedicated tracker per email,
// assigns every recipient an instance, injects the tracking pixel and
// receipt link, and queues delivery.
type Service struct {
	storage    repository.Storage
	urls       URLBuilder
	dispatcher *Dispatcher
	log        *zap.Logger
}

func NewService(storage repository.Storage, urls URLBuilder, dispatcher *Dispatcher, log *zap.Logger) *Service {
	return &Service{
		storage:    storage,
		urls:       urls,
		dispatcher: dispatcher,
		log:        log,
	}
}

// Compose stores the email, assigns an instance per recipient and submits
// the personalized messages for delivery. Recipients without a stored email
// address are skipped.
func (s *Service) Compose(ctx context.Context, req *ComposeRequest) (*domain.SentEmail, []*domain.TrackingInstance, error) {
	if len(req.Recipients) == 0 {
		return nil, nil, fmt.Errorf("email needs at least one recipient")
	}

	tracker := &domain.Tracker{
		Name:     "_email_" + domain.NewInstanceUUID(),
		Comments: "auto-created for email: " + req.Subject,
	}
	if err := s.storage.CreateTracker(ctx, tracker); err != nil {
		return nil, nil, fmt.Errorf("failed to create email tracker: %w", err)
	}

	email := &domain.SentEmail{
		TrackerID: tracker.ID,
		FromEmail: req.FromEmail,
		Subject:   req.Subject,
		TextBody:  req.TextBody,
		HTMLBody:  req.HTMLBody,
	}
	if err := s.storage.SaveEmail(ctx, email); err != nil {
		return nil, nil, fmt.Errorf("failed to save email: %w", err)
	}

	instances := make([]*domain.TrackingInstance, 0, len(req.Recipients))
	for _, username := range req.Recipients {
		visitor, err := s.storage.GetVisitorByUsername(ctx, username)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to look up recipient %q: %w", username, err)
		}

		address := visitor.Email()
		if address == "" {
			s.log.Warn("recipient has no email address, skipping",
				zap.String("username", username))
			continue
		}

		instance, err := s.storage.AssignVisitor(ctx, tracker.ID, visitor.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to assign recipient %q: %w", username, err)
		}
		instances = append(instances, instance)

		msg := &Message{
			To:       address,
			From:     req.FromEmail,
			Subject:  req.Subject,
			TextBody: s.personalizeText(req.TextBody, instance.UUID),
			HTMLBody: s.personalizeHTML(req.HTMLBody, instance.UUID),
		}

		if err := s.dispatcher.Submit(&Job{Message: msg, InstanceID: instance.ID}); err != nil {
			return nil, nil, fmt.Errorf("failed to queue email for %q: %w", username, err)
		}
	}

	s.log.Info("email composed",
		zap.Int64("email_id", email.ID),
		zap.Int64("tracker_id", tracker.ID),
		zap.Int("recipients", len(instances)))

	return email, instances, nil
}

// Stats reports how many recipients an email reached and how many of them
// opened it.
func (s *Service) Stats(ctx context.Context, emailID int64) (*domain.EmailStats, error) {
	email, err := s.storage.GetEmail(ctx, emailID)
	if err != nil {
		return nil, fmt.Errorf("failed to load email: %w", err)
	}

	instances, err := s.storage.ListTrackerInstances(ctx, email.TrackerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list email instances: %w", err)
	}

	read, err := s.storage.CountReadInstances(ctx, email.TrackerID)
	if err != nil {
		return nil, fmt.Errorf("failed to count read instances: %w", err)
	}

	total := int64(len(instances))
	return &domain.EmailStats{
		RecipientCount: total,
		ReadCount:      read,
		UnreadCount:    total - read,
	}, nil
}

// personalizeHTML injects the tracking pixel and the receipt footer into
// the HTML body, right before </body> when present.
func (s *Service) personalizeHTML(body, uuid string) string {
	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" alt="" style="display:none">`, s.urls.PixelPNGURL(uuid))
	footer := fmt.Sprintf(`<p style="font-size:11px;color:#888"><a href="%s">Acknowledge receipt</a> &middot; <a href="%s">View in browser</a></p>`,
		s.urls.EmailAckURL(uuid), s.urls.EmailRenderURL(uuid))

	injected := footer + "\n" + pixel

	if idx := strings.LastIndex(strings.ToLower(body), "</body>"); idx != -1 {
		return body[:idx] + injected + body[idx:]
	}
	return body + "\n" + injected
}

// personalizeText appends the receipt link to the plain-text body.
func (s *Service) personalizeText(body, uuid string) string {
	return body + "\n\nAcknowledge receipt: " + s.urls.EmailAckURL(uuid) + "\n"
}
