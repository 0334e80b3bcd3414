package repository

import (
	"LinkTrace-Backend/internal/domain"
	"context"
	"errors"
	"time"
)

var (
	ErrInstanceNotFound = errors.New("tracking instance not found")
	ErrTrackerNotFound  = errors.New("tracker not found")
	ErrVisitorNotFound  = errors.New("visitor not found")
	ErrVisitorExists    = errors.New("visitor already exists")
	ErrEmailNotFound    = errors.New("email not found")
	// ErrDuplicateAssignment is returned when a (tracker, visitor) pair is
	// assigned a second time. The uniqueness constraint lives in the storage
	// layer; callers treat this as a domain conflict, not a crash.
	ErrDuplicateAssignment = errors.New("visitor already assigned to tracker")
	ErrOperatorExists      = errors.New("operator already exists")
	ErrOperatorNotFound    = errors.New("operator not found")
)

type Storage interface {
	// Operator methods
	CreateOperator(ctx context.Context, email, passwordHash string) (*domain.Operator, error)
	GetOperatorByEmail(ctx context.Context, email string) (*domain.Operator, error)

	// Tracker methods
	CreateTracker(ctx context.Context, tracker *domain.Tracker) error
	GetTracker(ctx context.Context, id int64) (*domain.Tracker, error)
	ListTrackers(ctx context.Context) ([]*domain.Tracker, error)

	// Visitor methods
	CreateVisitor(ctx context.Context, visitor *domain.Visitor) error
	GetVisitorByUsername(ctx context.Context, username string) (*domain.Visitor, error)
	ListVisitors(ctx context.Context) ([]*domain.Visitor, error)

	// Instance methods
	AssignVisitor(ctx context.Context, trackerID, visitorID int64) (*domain.TrackingInstance, error)
	GetInstanceByUUID(ctx context.Context, uuid string) (*domain.TrackingInstance, error)
	ListTrackerInstances(ctx context.Context, trackerID int64) ([]*domain.TrackingInstance, error)
	MarkNotified(ctx context.Context, instanceID int64, when time.Time) error
	// UnknownInstance returns the sentinel instance used to record access
	// attempts whose identifier could not be resolved, creating it if absent.
	UnknownInstance(ctx context.Context) (*domain.TrackingInstance, error)

	// Access ledger methods
	AppendAccess(ctx context.Context, access *domain.Access) error
	InstanceStats(ctx context.Context, instanceID int64) (*domain.AccessStats, error)
	CountReadInstances(ctx context.Context, trackerID int64) (int64, error)

	// Email methods
	SaveEmail(ctx context.Context, email *domain.SentEmail) error
	GetEmail(ctx context.Context, id int64) (*domain.SentEmail, error)
	GetEmailByTracker(ctx context.Context, trackerID int64) (*domain.SentEmail, error)
}
