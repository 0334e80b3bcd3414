package domain

import "time"

// Tracker is a named tracked link or campaign. Every visitor associated with
// a tracker gets exactly one TrackingInstance whose UUID is embedded in the
// tracking URLs handed out for that visitor.
type Tracker struct {
	ID        int64     `gorm:"primaryKey;column:id" json:"id"`
	Name      string    `gorm:"column:name;size:256;not null" json:"name"`
	Comments  string    `gorm:"column:comments;type:text" json:"comments,omitempty"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// Relationships
	Instances []TrackingInstance `gorm:"foreignKey:TrackerID" json:"instances,omitempty"`
}

// TableName returns the table name for GORM
func (Tracker) TableName() string {
	return "trackers"
}

// UnknownTrackerName names the sentinel tracker that collects access
// attempts whose identifier could not be resolved.
const UnknownTrackerName = "_unknown"
