package domain

import "time"

// Visitor is an actor whose link accesses are tracked.
type Visitor struct {
	ID           int64     `gorm:"primaryKey;column:id" json:"id"`
	Username     string    `gorm:"column:username;size:64;uniqueIndex;not null" json:"username"`
	FirstName    string    `gorm:"column:first_name;size:64" json:"first_name,omitempty"`
	LastName     string    `gorm:"column:last_name;size:64" json:"last_name,omitempty"`
	EmailAddress *string   `gorm:"column:email_address" json:"email_address,omitempty"`
	Comments     string    `gorm:"column:comments;type:text" json:"comments,omitempty"`
	// MirrorsOperator marks visitors that mirror an operator account identity.
	MirrorsOperator bool      `gorm:"column:mirrors_operator;default:false" json:"mirrors_operator"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// Relationships
	Instances []TrackingInstance `gorm:"foreignKey:VisitorID" json:"instances,omitempty"`
}

// TableName returns the table name for GORM
func (Visitor) TableName() string {
	return "visitors"
}

// UnknownVisitorName names the sentinel visitor paired with the unknown
// tracker.
const UnknownVisitorName = "_unknown"

// Email returns the visitor's address or an empty string.
func (v *Visitor) Email() string {
	if v.EmailAddress != nil {
		return *v.EmailAddress
	}
	return ""
}
