package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// NewSQLiteDB 内存 sqlite，单连接（:memory: 每个连接是独立库）
func NewSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("打开 sqlite 失败: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("获取 sql.DB 失败: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

// DBHelper 数据库测试辅助工具
type DBHelper struct {
	DB *gorm.DB
}

// NewDBHelper 创建数据库辅助工具
func NewDBHelper(db *gorm.DB) *DBHelper {
	return &DBHelper{DB: db}
}

// DeleteAll 删除表中所有数据
func (h *DBHelper) DeleteAll(tableName string) error {
	return h.DB.Exec("DELETE FROM " + tableName).Error
}

// Count 统计记录数
func (h *DBHelper) Count(tableName string) (int64, error) {
	var count int64
	err := h.DB.Table(tableName).Count(&count).Error
	return count, err
}

// Exists 检查记录是否存在
func (h *DBHelper) Exists(tableName string, where string, args ...interface{}) (bool, error) {
	var count int64
	err := h.DB.Table(tableName).Where(where, args...).Count(&count).Error
	return count > 0, err
}
