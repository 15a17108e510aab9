package service

import (
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/nsxzhou1114/startpage-api/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testBaseURL = "http://files.test"

// newTestDB 每个测试使用独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// 内存数据库只在单个连接内有效
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, model.InitTables(db))
	return db
}

// recordingNotifier 记录推送的事件
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(eventType string, _ any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventType)
}

func (n *recordingNotifier) Events() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.events...)
}

func newTestCategoryService(t *testing.T, db *gorm.DB) (*CategoryService, *recordingNotifier) {
	t.Helper()
	notifier := &recordingNotifier{}
	svc := NewCategoryService(db, notifier)
	svc.baseURL = func() string { return testBaseURL }
	return svc, notifier
}

func uintPtr(v uint) *uint {
	return &v
}

// scopeOrders 按排序返回同级分类的 sort_order
func scopeOrders(t *testing.T, db *gorm.DB, parentID *uint) []int {
	t.Helper()
	var orders []int
	require.NoError(t, whereParent(db.Model(&model.Category{}), parentID).Order("sort_order, id").Pluck("sort_order", &orders).Error)
	return orders
}

// scopeIDs 按排序返回同级分类ID
func scopeIDs(t *testing.T, db *gorm.DB, parentID *uint) []uint {
	t.Helper()
	var ids []uint
	require.NoError(t, whereParent(db.Model(&model.Category{}), parentID).Order("sort_order, id").Pluck("id", &ids).Error)
	return ids
}

func contiguous(n int) []int {
	orders := make([]int, n)
	for i := range orders {
		orders[i] = i
	}
	return orders
}
