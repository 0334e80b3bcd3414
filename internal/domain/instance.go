package domain

import (
	"encoding/hex"
	"time"

	"github.com/google/uuid"
)

// TrackingInstance joins exactly one Tracker with one Visitor. The pair is
// unique; the 32-character hexadecimal UUID is generated at creation and
// never changes, because issued URLs embed it.
type TrackingInstance struct {
	ID        int64      `gorm:"primaryKey;column:id" json:"id"`
	TrackerID int64      `gorm:"column:tracker_id;not null;uniqueIndex:idx_tracker_visitor" json:"tracker_id"`
	VisitorID int64      `gorm:"column:visitor_id;not null;uniqueIndex:idx_tracker_visitor" json:"visitor_id"`
	UUID      string     `gorm:"column:uuid;size:32;uniqueIndex;not null" json:"uuid"`
	Notified  *time.Time `gorm:"column:notified" json:"notified,omitempty"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// Relationships
	Tracker  *Tracker `gorm:"foreignKey:TrackerID" json:"tracker,omitempty"`
	Visitor  *Visitor `gorm:"foreignKey:VisitorID" json:"visitor,omitempty"`
	Accesses []Access `gorm:"foreignKey:InstanceID" json:"accesses,omitempty"`
}

// TableName returns the table name for GORM
func (TrackingInstance) TableName() string {
	return "tracking_instances"
}

// NewInstanceUUID generates a fresh 32-character lowercase hex identifier.
func NewInstanceUUID() string {
	u := uuid.New()
	return hex.EncodeToString(u[:])
}

// AccessStats are the derived statistics over an instance's access ledger.
// Only classifications that reached target dispatch are counted.
type AccessStats struct {
	FirstAccess  *time.Time `json:"first_access,omitempty"`
	RecentAccess *time.Time `json:"recent_access,omitempty"`
	AccessCount  int64      `json:"access_count"`
}

// WasAccessed reports whether the instance has at least one counted access.
func (s *AccessStats) WasAccessed() bool {
	return s.AccessCount > 0
}
