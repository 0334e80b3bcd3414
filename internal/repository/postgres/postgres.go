package postgres

import (
	"LinkTrace-Backend/internal/domain"
	"LinkTrace-Backend/internal/repository"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PostgresStorage implements the Storage interface on PostgreSQL.
type PostgresStorage struct {
	db  *gorm.DB
	log *zap.Logger
}

// New creates a new PostgreSQL storage instance
func New(db *gorm.DB, log *zap.Logger) *PostgresStorage {
	return &PostgresStorage{
		db:  db,
		log: log,
	}
}

// --- Operator Methods ---

func (s *PostgresStorage) CreateOperator(ctx context.Context, email, passwordHash string) (*domain.Operator, error) {
	email = strings.ToLower(email)

	var existing domain.Operator
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&existing).Error
	if err == nil {
		return nil, repository.ErrOperatorExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Error("failed to check operator existence", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to check operator: %w", err)
	}

	op := domain.Operator{
		Email:        email,
		PasswordHash: passwordHash,
		IsActive:     true,
	}
	if err := s.db.WithContext(ctx).Create(&op).Error; err != nil {
		s.log.Error("failed to create operator", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to create operator: %w", err)
	}

	s.log.Info("created operator", zap.Int64("operator_id", op.ID), zap.String("email", email))
	return &op, nil
}

func (s *PostgresStorage) GetOperatorByEmail(ctx context.Context, email string) (*domain.Operator, error) {
	var op domain.Operator

	err := s.db.WithContext(ctx).Where("email = ? AND is_active = ?", strings.ToLower(email), true).First(&op).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrOperatorNotFound
	}
	if err != nil {
		s.log.Error("failed to get operator", zap.String("email", email), zap.Error(err))
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}

	return &op, nil
}

// --- Tracker Methods ---

func (s *PostgresStorage) CreateTracker(ctx context.Context, tracker *domain.Tracker) error {
	if err := s.db.WithContext(ctx).Create(tracker).Error; err != nil {
		s.log.Error("failed to create tracker", zap.String("name", tracker.Name), zap.Error(err))
		return fmt.Errorf("failed to create tracker: %w", err)
	}

	s.log.Info("created tracker", zap.Int64("tracker_id", tracker.ID), zap.String("name", tracker.Name))
	return nil
}

func (s *PostgresStorage) GetTracker(ctx context.Context, id int64) (*domain.Tracker, error) {
	var tracker domain.Tracker

	err := s.db.WithContext(ctx).First(&tracker, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrTrackerNotFound
	}
	if err != nil {
		s.log.Error("failed to get tracker", zap.Int64("tracker_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get tracker: %w", err)
	}

	return &tracker, nil
}

func (s *PostgresStorage) ListTrackers(ctx context.Context) ([]*domain.Tracker, error) {
	var trackers []*domain.Tracker

	err := s.db.WithContext(ctx).Order("created_at DESC").Find(&trackers).Error
	if err != nil {
		s.log.Error("failed to list trackers", zap.Error(err))
		return nil, fmt.Errorf("failed to list trackers: %w", err)
	}

	return trackers, nil
}

// --- Visitor Methods ---

func (s *PostgresStorage) CreateVisitor(ctx context.Context, visitor *domain.Visitor) error {
	var existing domain.Visitor
	err := s.db.WithContext(ctx).Where("username = ?", visitor.Username).First(&existing).Error
	if err == nil {
		return repository.ErrVisitorExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Error("failed to check visitor existence", zap.String("username", visitor.Username), zap.Error(err))
		return fmt.Errorf("failed to check visitor: %w", err)
	}

	if err := s.db.WithContext(ctx).Create(visitor).Error; err != nil {
		s.log.Error("failed to create visitor", zap.String("username", visitor.Username), zap.Error(err))
		return fmt.Errorf("failed to create visitor: %w", err)
	}

	s.log.Info("created visitor", zap.Int64("visitor_id", visitor.ID), zap.String("username", visitor.Username))
	return nil
}

func (s *PostgresStorage) GetVisitorByUsername(ctx context.Context, username string) (*domain.Visitor, error) {
	var visitor domain.Visitor

	err := s.db.WithContext(ctx).Where("username = ?", username).First(&visitor).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrVisitorNotFound
	}
	if err != nil {
		s.log.Error("failed to get visitor", zap.String("username", username), zap.Error(err))
		return nil, fmt.Errorf("failed to get visitor: %w", err)
	}

	return &visitor, nil
}

func (s *PostgresStorage) ListVisitors(ctx context.Context) ([]*domain.Visitor, error) {
	var visitors []*domain.Visitor

	err := s.db.WithContext(ctx).Order("username ASC").Find(&visitors).Error
	if err != nil {
		s.log.Error("failed to list visitors", zap.Error(err))
		return nil, fmt.Errorf("failed to list visitors: %w", err)
	}

	return visitors, nil
}

// --- Instance Methods ---

// AssignVisitor creates the (tracker, visitor) tracking instance. The unique
// index on the pair turns a concurrent duplicate insert into a conflict
// error rather than a second row.
func (s *PostgresStorage) AssignVisitor(ctx context.Context, trackerID, visitorID int64) (*domain.TrackingInstance, error) {
	var tracker domain.Tracker
	err := s.db.WithContext(ctx).First(&tracker, trackerID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrTrackerNotFound
	}
	if err != nil {
		s.log.Error("failed to check tracker", zap.Int64("tracker_id", trackerID), zap.Error(err))
		return nil, fmt.Errorf("failed to check tracker: %w", err)
	}

	var visitor domain.Visitor
	err = s.db.WithContext(ctx).First(&visitor, visitorID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrVisitorNotFound
	}
	if err != nil {
		s.log.Error("failed to check visitor", zap.Int64("visitor_id", visitorID), zap.Error(err))
		return nil, fmt.Errorf("failed to check visitor: %w", err)
	}

	inst := domain.TrackingInstance{
		TrackerID: trackerID,
		VisitorID: visitorID,
		UUID:      domain.NewInstanceUUID(),
	}

	if err := s.db.WithContext(ctx).Create(&inst).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "idx_tracker_visitor") {
			return nil, repository.ErrDuplicateAssignment
		}
		s.log.Error("failed to assign visitor",
			zap.Int64("tracker_id", trackerID),
			zap.Int64("visitor_id", visitorID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to assign visitor: %w", err)
	}

	s.log.Info("assigned visitor to tracker",
		zap.Int64("tracker_id", trackerID),
		zap.Int64("visitor_id", visitorID),
		zap.String("uuid", inst.UUID))
	return &inst, nil
}

func (s *PostgresStorage) GetInstanceByUUID(ctx context.Context, uuid string) (*domain.TrackingInstance, error) {
	var inst domain.TrackingInstance

	err := s.db.WithContext(ctx).Where("uuid = ?", uuid).First(&inst).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrInstanceNotFound
	}
	if err != nil {
		s.log.Error("failed to get instance", zap.String("uuid", uuid), zap.Error(err))
		return nil, fmt.Errorf("failed to get instance: %w", err)
	}

	return &inst, nil
}

func (s *PostgresStorage) ListTrackerInstances(ctx context.Context, trackerID int64) ([]*domain.TrackingInstance, error) {
	var instances []*domain.TrackingInstance

	err := s.db.WithContext(ctx).Where("tracker_id = ?", trackerID).
		Order("created_at ASC").Find(&instances).Error
	if err != nil {
		s.log.Error("failed to list tracker instances", zap.Int64("tracker_id", trackerID), zap.Error(err))
		return nil, fmt.Errorf("failed to list tracker instances: %w", err)
	}

	return instances, nil
}

func (s *PostgresStorage) MarkNotified(ctx context.Context, instanceID int64, when time.Time) error {
	result := s.db.WithContext(ctx).Model(&domain.TrackingInstance{}).
		Where("id = ?", instanceID).Update("notified", when)
	if result.Error != nil {
		s.log.Error("failed to mark instance notified", zap.Int64("instance_id", instanceID), zap.Error(result.Error))
		return fmt.Errorf("failed to mark notified: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return repository.ErrInstanceNotFound
	}
	return nil
}

// UnknownInstance returns the sentinel instance, creating the sentinel
// tracker, visitor and instance on first use.
func (s *PostgresStorage) UnknownInstance(ctx context.Context) (*domain.TrackingInstance, error) {
	var inst *domain.TrackingInstance

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var visitor domain.Visitor
		err := tx.Where("username = ?", domain.UnknownVisitorName).First(&visitor).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			visitor = domain.Visitor{Username: domain.UnknownVisitorName}
			if err := tx.Create(&visitor).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		var tracker domain.Tracker
		err = tx.Where("name = ?", domain.UnknownTrackerName).First(&tracker).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			tracker = domain.Tracker{Name: domain.UnknownTrackerName}
			if err := tx.Create(&tracker).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		var found domain.TrackingInstance
		err = tx.Where("tracker_id = ? AND visitor_id = ?", tracker.ID, visitor.ID).First(&found).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			found = domain.TrackingInstance{
				TrackerID: tracker.ID,
				VisitorID: visitor.ID,
				UUID:      domain.NewInstanceUUID(),
			}
			if err := tx.Create(&found).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}

		inst = &found
		return nil
	})
	if err != nil {
		s.log.Error("failed to resolve unknown sentinel instance", zap.Error(err))
		return nil, fmt.Errorf("failed to resolve unknown instance: %w", err)
	}

	return inst, nil
}

// --- Access Ledger Methods ---

func (s *PostgresStorage) AppendAccess(ctx context.Context, access *domain.Access) error {
	if err := s.db.WithContext(ctx).Create(access).Error; err != nil {
		s.log.Error("failed to append access",
			zap.Int64("instance_id", access.InstanceID),
			zap.String("result", string(access.Result)),
			zap.Error(err))
		return fmt.Errorf("failed to append access: %w", err)
	}

	s.log.Debug("appended access",
		zap.Int64("instance_id", access.InstanceID),
		zap.String("result", string(access.Result)))
	return nil
}

// InstanceStats aggregates over counted classifications only; pre-hash
// failures never contribute to first/recent/count.
func (s *PostgresStorage) InstanceStats(ctx context.Context, instanceID int64) (*domain.AccessStats, error) {
	var row struct {
		FirstAccess  *time.Time `gorm:"column:first_access"`
		RecentAccess *time.Time `gorm:"column:recent_access"`
		AccessCount  int64      `gorm:"column:access_count"`
	}

	err := s.db.WithContext(ctx).
		Model(&domain.Access{}).
		Select("MIN(time) as first_access, MAX(time) as recent_access, COUNT(*) as access_count").
		Where("instance_id = ? AND result IN ?", instanceID,
			[]domain.AccessResult{domain.ResultSuccess, domain.ResultErrorTarget}).
		Scan(&row).Error
	if err != nil {
		s.log.Error("failed to aggregate instance stats", zap.Int64("instance_id", instanceID), zap.Error(err))
		return nil, fmt.Errorf("failed to aggregate stats: %w", err)
	}

	return &domain.AccessStats{
		FirstAccess:  row.FirstAccess,
		RecentAccess: row.RecentAccess,
		AccessCount:  row.AccessCount,
	}, nil
}

func (s *PostgresStorage) CountReadInstances(ctx context.Context, trackerID int64) (int64, error) {
	var count int64

	err := s.db.WithContext(ctx).
		Model(&domain.TrackingInstance{}).
		Where("tracker_id = ?", trackerID).
		Where("EXISTS (SELECT 1 FROM accesses WHERE accesses.instance_id = tracking_instances.id AND accesses.result IN ?)",
			[]domain.AccessResult{domain.ResultSuccess, domain.ResultErrorTarget}).
		Count(&count).Error
	if err != nil {
		s.log.Error("failed to count read instances", zap.Int64("tracker_id", trackerID), zap.Error(err))
		return 0, fmt.Errorf("failed to count read instances: %w", err)
	}

	return count, nil
}

// --- Email Methods ---

func (s *PostgresStorage) SaveEmail(ctx context.Context, email *domain.SentEmail) error {
	if err := s.db.WithContext(ctx).Create(email).Error; err != nil {
		s.log.Error("failed to save email", zap.Int64("tracker_id", email.TrackerID), zap.Error(err))
		return fmt.Errorf("failed to save email: %w", err)
	}

	s.log.Info("saved sent email", zap.Int64("email_id", email.ID), zap.Int64("tracker_id", email.TrackerID))
	return nil
}

func (s *PostgresStorage) GetEmail(ctx context.Context, id int64) (*domain.SentEmail, error) {
	var email domain.SentEmail

	err := s.db.WithContext(ctx).First(&email, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrEmailNotFound
	}
	if err != nil {
		s.log.Error("failed to get email", zap.Int64("email_id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get email: %w", err)
	}

	return &email, nil
}

func (s *PostgresStorage) GetEmailByTracker(ctx context.Context, trackerID int64) (*domain.SentEmail, error) {
	var email domain.SentEmail

	err := s.db.WithContext(ctx).Where("tracker_id = ?", trackerID).First(&email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrEmailNotFound
	}
	if err != nil {
		s.log.Error("failed to get email by tracker", zap.Int64("tracker_id", trackerID), zap.Error(err))
		return nil, fmt.Errorf("failed to get email by tracker: %w", err)
	}

	return &email, nil
}
