package database

import (
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// =============================================================================
// 🔌 数据库连接入口
// =============================================================================

// 支持的数据库驱动
const (
	DriverPostgres = "postgres"
	DriverMySQL    = "mysql"
	DriverSQLite   = "sqlite"
)

// Config 数据库配置
type Config struct {
	// 驱动类型：postgres / mysql / sqlite
	Driver string `yaml:"driver" json:"driver"`

	// 连接串
	DSN string `yaml:"dsn" json:"dsn"`

	// 连接池配置
	Pool PoolConfig `yaml:"pool" json:"pool"`
}

// DefaultConfig 返回默认数据库配置
func DefaultConfig() Config {
	return Config{
		Driver: DriverSQLite,
		DSN:    "intelflow.db",
		Pool:   DefaultPoolConfig(),
	}
}

// Open 按配置打开数据库并返回连接池管理器
func Open(cfg Config, logger *zap.Logger) (*PoolManager, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database (%s): %w", cfg.Driver, err)
	}

	pool := cfg.Pool
	if strings.EqualFold(cfg.Driver, DriverSQLite) {
		// SQLite 单写者，多连接会各自打开独立的 :memory: 库
		pool.MaxOpenConns = 1
		pool.MaxIdleConns = 1
	}

	return NewPoolManager(db, pool, logger)
}

// dialectorFor 根据驱动类型选择 GORM 方言
func dialectorFor(cfg Config) (gorm.Dialector, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is required")
	}

	switch strings.ToLower(cfg.Driver) {
	case DriverPostgres:
		return postgres.Open(cfg.DSN), nil
	case DriverMySQL:
		return mysql.Open(cfg.DSN), nil
	case DriverSQLite, "":
		return sqlite.Open(cfg.DSN), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}
