package user

import (
	"errors"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("user not found")

type Repository interface {
	Create(user *User) (uint, error)
	GetByEmail(email string) (*User, error)
	GetByUsername(username string) (*User, error)
}

type Users struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (Repository, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	return &Users{db: db}, nil
}

func (u *Users) Create(user *User) (uint, error) {
	result := u.db.Create(user)
	if result.Error != nil {
		return 0, result.Error
	}
	return user.ID, nil
}

func (u *Users) GetByEmail(email string) (*User, error) {
	return u.first("email = ?", email)
}

func (u *Users) GetByUsername(username string) (*User, error) {
	return u.first("username = ?", username)
}

func (u *Users) first(query string, arg string) (*User, error) {
	var user User
	result := u.db.Where(query, arg).First(&user)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &user, nil
}
