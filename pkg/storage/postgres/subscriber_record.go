package postgres

import "time"

// SubscriberRecord is one email address; Position keeps insertion order.
type SubscriberRecord struct {
	ID uint `gorm:"primaryKey"`

	Position int    `gorm:"not null;index:idx_subscriber_position"`
	Email    string `gorm:"type:text;not null;uniqueIndex:idx_subscriber_email"`

	RecordedAt time.Time `gorm:"autoCreateTime"`
}

// TableName overrides the default table name for GORM.
func (SubscriberRecord) TableName() string {
	return "subscriber_record"
}
