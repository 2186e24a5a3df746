package report

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

var ErrNotFound = errors.New("report not found")

type Repository interface {
	Create(report *Report) (uint, error)
	GetAll() ([]Report, error)
	GetByID(id uint) (*Report, error)
}

type Reports struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) (Repository, error) {
	if db == nil {
		return nil, errors.New("db cannot be nil")
	}
	return &Reports{db: db}, nil
}

// Create inserts report and returns its assigned id.
func (r *Reports) Create(report *Report) (uint, error) {
	result := r.db.Create(report)
	if result.Error != nil {
		return 0, fmt.Errorf("failed to create report: %w", result.Error)
	}
	return report.ID, nil
}

// GetAll returns every report, newest first.
func (r *Reports) GetAll() ([]Report, error) {
	var reports []Report
	result := r.db.Order("id desc").Find(&reports)
	return reports, result.Error
}

func (r *Reports) GetByID(id uint) (*Report, error) {
	var report Report
	result := r.db.Where("id = ?", id).First(&report)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}
	return &report, nil
}
