package service

import (
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reorder 将 activeID 从原位置移除后插入到 overID 所在位置，overID 为空或不在列表中时移动到最前
func Reorder(ids []uint, activeID uint, overID *uint) ([]uint, error) {
	oldIndex := indexOf(ids, activeID)
	if oldIndex < 0 {
		return nil, apperr.BadRequest("拖动项不在当前排序范围内")
	}

	newIndex := 0
	if overID != nil {
		if i := indexOf(ids, *overID); i >= 0 {
			newIndex = i
		}
	}

	result := make([]uint, 0, len(ids))
	result = append(result, ids[:oldIndex]...)
	result = append(result, ids[oldIndex+1:]...)

	if newIndex > len(result) {
		newIndex = len(result)
	}
	result = append(result, 0)
	copy(result[newIndex+1:], result[newIndex:])
	result[newIndex] = activeID

	return result, nil
}

func indexOf(ids []uint, id uint) int {
	for i, v := range ids {
		if v == id {
			return i
		}
	}
	return -1
}

// lockForUpdate 在支持行锁的数据库上追加 FOR UPDATE
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// persistOrder 按列表位置重写每一行的 sort_order
func persistOrder(tx *gorm.DB, table string, ids []uint) error {
	for index, id := range ids {
		if err := tx.Table(table).Where("id = ?", id).UpdateColumn("sort_order", index).Error; err != nil {
			return apperr.Internal("更新排序失败", err)
		}
	}
	return nil
}

// isContiguous 判断排序值是否为 0..n-1
func isContiguous(orders []int) bool {
	for i, order := range orders {
		if order != i {
			return false
		}
	}
	return true
}
