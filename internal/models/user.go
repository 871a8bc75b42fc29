package models

import "time"

// User is a read-only reference table: account creation and credentials
// live in the auth service, this schema only needs owner identities for
// conversations, files and the activity log.
type User struct {
	ID        uint64 `gorm:"primaryKey;autoIncrement" json:"id"`
	Email     string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Username  string `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	CreatedAt time.Time
}

func (User) TableName() string { return "users" }
