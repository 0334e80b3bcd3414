package database

import (
	"LinkTrace-Backend/internal/domain"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AutoMigrate runs automatic migrations for the domain models.
func AutoMigrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("starting database auto-migration")

	// Migration order matters because of foreign keys.
	models := []interface{}{
		&domain.Operator{},
		&domain.Tracker{},
		&domain.Visitor{},
		&domain.TrackingInstance{}, // depends on trackers and visitors
		&domain.Access{},           // depends on instances
		&domain.SentEmail{},        // depends on trackers
	}

	for i, model := range models {
		modelName := fmt.Sprintf("%T", model)
		log.Info("migrating model",
			zap.String("model", modelName),
			zap.Int("step", i+1),
			zap.Int("total", len(models)))

		if err := db.AutoMigrate(model); err != nil {
			log.Error("failed to migrate model",
				zap.String("model", modelName),
				zap.Error(err))
			return fmt.Errorf("failed to migrate model %s: %w", modelName, err)
		}
	}

	log.Info("database auto-migration completed successfully", zap.Int("migrated_models", len(models)))
	return nil
}

// SeedData creates the sentinel "unknown" tracker, visitor and instance used
// to record access attempts whose identifier never resolves.
func SeedData(db *gorm.DB, log *zap.Logger) error {
	log.Info("starting database seeding")

	var count int64
	db.Model(&domain.Tracker{}).Where("name = ?", domain.UnknownTrackerName).Count(&count)
	if count > 0 {
		log.Info("unknown sentinel already exists, skipping seeding")
		return nil
	}

	return db.Transaction(func(tx *gorm.DB) error {
		tracker := domain.Tracker{
			Name:     domain.UnknownTrackerName,
			Comments: "Sentinel tracker for access attempts with unresolvable identifiers.",
		}
		if err := tx.Create(&tracker).Error; err != nil {
			return fmt.Errorf("failed to seed unknown tracker: %w", err)
		}

		visitor := domain.Visitor{
			Username: domain.UnknownVisitorName,
			Comments: "Sentinel visitor for access attempts with unresolvable identifiers.",
		}
		if err := tx.Create(&visitor).Error; err != nil {
			return fmt.Errorf("failed to seed unknown visitor: %w", err)
		}

		inst := domain.TrackingInstance{
			TrackerID: tracker.ID,
			VisitorID: visitor.ID,
			UUID:      domain.NewInstanceUUID(),
		}
		if err := tx.Create(&inst).Error; err != nil {
			return fmt.Errorf("failed to seed unknown instance: %w", err)
		}

		log.Info("seeded unknown sentinel instance", zap.String("uuid", inst.UUID))
		return nil
	})
}
