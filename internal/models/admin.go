package models

import "time"

// Admin is a backend operator account. Passwords are stored as sha256 hex.
type Admin struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Email        string    `gorm:"type:varchar(100);not null;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"type:char(64);not null" json:"-"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"-"`
}

func (Admin) TableName() string {
	return "admins"
}
