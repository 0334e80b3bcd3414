package domain

import "time"

// SentEmail is a sent tracked email. Each sent email owns the tracker that
// was auto-created for it; one tracking instance per recipient hangs off
// that tracker. The message content is frozen once sent.
type SentEmail struct {
	ID        int64     `gorm:"primaryKey;column:id" json:"id"`
	TrackerID int64     `gorm:"column:tracker_id;not null;uniqueIndex" json:"tracker_id"`
	FromEmail string    `gorm:"column:from_email" json:"from_email"`
	Subject   string    `gorm:"column:subject;size:256;not null" json:"subject"`
	TextBody  string    `gorm:"column:text_body;type:text" json:"text_body"`
	HTMLBody  string    `gorm:"column:html_body;type:text" json:"html_body"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// Relationships
	Tracker *Tracker `gorm:"foreignKey:TrackerID" json:"tracker,omitempty"`
}

// TableName returns the table name for GORM
func (SentEmail) TableName() string {
	return "sent_emails"
}

// EmailStats summarizes read state across an email's recipients. A recipient
// counts as "read" once their instance has at least one counted access.
type EmailStats struct {
	RecipientCount int64 `json:"recipient_count"`
	ReadCount      int64 `json:"read_count"`
	UnreadCount    int64 `json:"unread_count"`
}
