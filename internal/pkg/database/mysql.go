// internal/pkg/database/mysql.go
package database

import (
	"errors"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"
	pkgerrors "github.com/pkg/errors"
	zlog "github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const mysqlDuplicateEntry = 1062

// Open 打开 MySQL 连接并配置连接池；models 非空时执行 AutoMigrate
func Open(dsn string, models ...any) (*gorm.DB, error) {
	cfg, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "parse mysql dsn")
	}
	// gorm 读写 time.Time 依赖 parseTime
	cfg.ParseTime = true

	db, err := gorm.Open(mysql.New(mysql.Config{DSN: cfg.FormatDSN(), DSNConfig: cfg}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "open mysql %s/%s", cfg.Addr, cfg.DBName)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "get sql.DB")
	}
	sqlDB.SetMaxOpenConns(50)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	if len(models) > 0 {
		if err := db.AutoMigrate(models...); err != nil {
			return nil, pkgerrors.Wrap(err, "auto migrate")
		}
	}
	zlog.Info().Str("addr", cfg.Addr).Str("db", cfg.DBName).Msg("✅ Connected to MySQL")
	return db, nil
}

// IsDuplicateKey 判断是否违反唯一索引，用于幂等写入
func IsDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var myErr *mysqldriver.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}
