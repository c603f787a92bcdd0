package repositories

import (
	"fmt"
	"strings"
	"testing"

	"zufang/app/models/payment"
	"zufang/app/models/room"
	"zufang/pkg/database"

	"gorm.io/driver/sqlite"
	gormlogger "gorm.io/gorm/logger"
)

// setupDB 用内存 SQLite 初始化全局数据库连接并迁移数据表
// 每个测试用独立命名的内存库，互不串库
func setupDB(t *testing.T) {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	database.Connect(sqlite.Open(dsn), gormlogger.Default.LogMode(gormlogger.Silent))
	// SQLite 串行写入，避免并发用例触发 table locked
	database.SQLDB.SetMaxOpenConns(1)

	err := database.AutoMigrate([]interface{}{
		&payment.Payment{},
		&room.Reservation{},
	})
	if err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
}
