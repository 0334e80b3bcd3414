package domain

import "time"

// AccessResult classifies the outcome of one tracking request.
type AccessResult string

const (
	// ResultSuccess means the target resolver ran and returned a non-error
	// response.
	ResultSuccess AccessResult = "success"
	// ResultFailureUUID means the identifier matched no known instance.
	ResultFailureUUID AccessResult = "failure_uuid"
	// ResultFailureHash means the identifier resolved but the signature did
	// not match the tail path.
	ResultFailureHash AccessResult = "failure_hash"
	// ResultErrorTarget means lookup and signature were valid but the target
	// resolver failed or answered with an error status.
	ResultErrorTarget AccessResult = "error_targetview"
)

// Counted reports whether the classification denotes a real visit attempt,
// i.e. one that reached the target resolver stage. Only counted rows feed
// the first/recent/count aggregates.
func (r AccessResult) Counted() bool {
	return r == ResultSuccess || r == ResultErrorTarget
}

// Access is one immutable row of the per-instance access ledger. Rows are
// appended exactly once per inbound tracking request and never updated or
// deleted afterwards.
type Access struct {
	ID         int64        `gorm:"primaryKey;column:id" json:"id"`
	InstanceID int64        `gorm:"column:instance_id;not null;index" json:"instance_id"`
	// Time is null when the attempt failed before hash verification, since
	// no real visit occurred.
	Time       *time.Time   `gorm:"column:time;index" json:"time,omitempty"`
	Result     AccessResult `gorm:"column:result;size:32;not null" json:"result"`
	URL        string       `gorm:"column:url;size:3000" json:"url"`
	IPAddress  *string      `gorm:"column:ip_address;size:64" json:"ip_address,omitempty"`
	UserAgent  *string      `gorm:"column:user_agent;type:text" json:"user_agent,omitempty"`
	Referer    *string      `gorm:"column:referer;size:500" json:"referer,omitempty"`
	DeviceType *string      `gorm:"column:device_type;size:10" json:"device_type,omitempty"`
	CreatedAt  time.Time    `gorm:"column:created_at;autoCreateTime" json:"created_at"`

	// Relationships
	Instance *TrackingInstance `gorm:"foreignKey:InstanceID" json:"instance,omitempty"`
}

// TableName returns the table name for GORM
func (Access) TableName() string {
	return "accesses"
}
