package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"LinkTrace-Backend/internal/config"
	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository"
	"LinkTrace-Backend/internal/signer"
	"LinkTrace-Backend/internal/target"
)

// TrackingService issues tracking URLs and manages tracker/visitor
// assignments. Every URL it hands out verifies against the same signer the
// gateway uses.
type TrackingService struct {
	storage repository.Storage
	signer  *signer.Signer
	cfg     *config.Tracking
	log     *zap.Logger
}

func NewTrackingService(storage repository.Storage, s *signer.Signer, cfg *config.Tracking, log *zap.Logger) *TrackingService {
	return &TrackingService{
		storage: storage,
		signer:  s,
		cfg:     cfg,
		log:     log,
	}
}

// TrackedURL signs an arbitrary tail path for the given instance identifier
// and assembles the full URL.
func (s *TrackingService) TrackedURL(uuid, tail string) string {
	normalized := target.NormalizeTail(tail)
	hash := s.signer.Sign(uuid, normalized)
	return target.AssembleURL(s.cfg.BaseURL, s.cfg.AccessPrefix, hash, uuid, normalized)
}

// RedirectURL issues a tracked external redirect.
func (s *TrackingService) RedirectURL(uuid, scheme, domain, filepath string) (string, error) {
	tail, err := target.TailRedirect(scheme, domain, filepath)
	if err != nil {
		return "", err
	}
	return s.TrackedURL(uuid, tail), nil
}

// LocalRedirectURL issues a tracked redirect to a same-origin path.
func (s *TrackingService) LocalRedirectURL(uuid, path string) (string, error) {
	tail, err := target.TailLocalRedirect(path)
	if err != nil {
		return "", err
	}
	return s.TrackedURL(uuid, tail), nil
}

// HTMLURL issues a tracked static page URL.
func (s *TrackingService) HTMLURL(uuid, filepath string) string {
	return s.TrackedURL(uuid, target.TailHTML(filepath))
}

// PixelGIFURL issues a tracked GIF beacon URL.
func (s *TrackingService) PixelGIFURL(uuid string) string {
	return s.TrackedURL(uuid, target.TailPixelGIF)
}

// PixelPNGURL issues a tracked PNG beacon URL.
func (s *TrackingService) PixelPNGURL(uuid string) string {
	return s.TrackedURL(uuid, target.TailPixelPNG)
}

// EmailRenderURL issues the tracked web view URL of a sent email.
func (s *TrackingService) EmailRenderURL(uuid string) string {
	return s.TrackedURL(uuid, target.TailEmailRender)
}

// EmailAckURL issues the tracked read-receipt URL of a sent email.
func (s *TrackingService) EmailAckURL(uuid string) string {
	return s.TrackedURL(uuid, target.TailEmailAcknowledge)
}

// AssignVisitor binds a visitor to a tracker and returns the new instance
// with its fresh identifier.
func (s *TrackingService) AssignVisitor(ctx context.Context, trackerID, visitorID int64) (*domain.TrackingInstance, error) {
	instance, err := s.storage.AssignVisitor(ctx, trackerID, visitorID)
	if err != nil {
		return nil, fmt.Errorf("failed to assign visitor %d to tracker %d: %w", visitorID, trackerID, err)
	}

	s.log.Info("visitor assigned to tracker",
		zap.Int64("tracker_id", trackerID),
		zap.Int64("visitor_id", visitorID),
		zap.String("uuid", instance.UUID))

	return instance, nil
}

// InstanceStats returns the access aggregates of one instance.
func (s *TrackingService) InstanceStats(ctx context.Context, instanceID int64) (*domain.AccessStats, error) {
	stats, err := s.storage.InstanceStats(ctx, instanceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load instance stats: %w", err)
	}
	return stats, nil
}
