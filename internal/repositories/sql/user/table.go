package user

import (
	"time"

	"gorm.io/gorm"
)

const (
	tableName = "users"
	createdAt = "CreatedAt"
)

type User struct {
	ID           uint   `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"size:80;unique;not null"`
	Email        string `gorm:"size:120;unique;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	CreatedAt    time.Time
}

func (User) TableName() string {
	return tableName
}

func (User) BeforeCreate(tx *gorm.DB) (err error) {
	tx.Statement.SetColumn(createdAt, time.Now().UTC())
	return
}
