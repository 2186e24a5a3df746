package infra

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SQLConfig represents the configuration for a SQL database connection
type SQLConfig struct {
	Host     string
	Port     int
	DBName   string
	Username string
	Password string
}

// DSN renders the go-sql-driver/mysql connection string.
func (c SQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.DBName)
}

func (c SQLConfig) Validate() error {
	if c.Host == "" {
		return errors.New("mysql host not set")
	}
	if c.Port <= 0 {
		return errors.New("mysql port not set")
	}
	if c.DBName == "" {
		return errors.New("mysql db name not set")
	}
	if c.Username == "" {
		return errors.New("mysql username not set")
	}
	return nil
}

// CreateMySQLConnection opens a gorm connection and migrates models.
func CreateMySQLConnection(config SQLConfig, models ...interface{}) (*gorm.DB, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	db, err := gorm.Open(mysql.Open(config.DSN()), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mysql at %s:%d: %w", config.Host, config.Port, err)
	}
	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, fmt.Errorf("failed to migrate tables: %w", err)
		}
	}
	log.Info().Msgf("Connected to mysql %s:%d/%s", config.Host, config.Port, config.DBName)
	return db, nil
}
