package database

import (
	"fmt"
	"time"

	"pliego-extract-go/internal/config"
	"pliego-extract-go/internal/model"
	"pliego-extract-go/pkg/log"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

var DB *gorm.DB

// InitMySQL 初始化 MySQL 数据库连接，并迁移抽取结果表。
func InitMySQL(cfg config.MySQLConfig) error {
	db, err := gorm.Open(mysql.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return fmt.Errorf("failed to connect database: %w", err)
	}

	// 配置连接池
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&model.ExtractionRecord{}); err != nil {
		return fmt.Errorf("failed to migrate extraction_results: %w", err)
	}

	DB = db
	log.Info("MySQL database connected successfully")
	return nil
}
