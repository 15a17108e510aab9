package dto

import "math"

const (
	// DefaultPageSize 默认每页数量
	DefaultPageSize = 10
	// MaxPageSize 每页最大数量
	MaxPageSize = 100
)

// PageQuery 分页参数，页码从0开始
type PageQuery struct {
	Page int `form:"page" binding:"omitempty,min=0"`
	Size int `form:"size" binding:"omitempty,min=0"`
}

// Normalize 修正分页参数
func (p *PageQuery) Normalize() {
	if p.Page < 0 {
		p.Page = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
}

// Offset 偏移量，溢出时返回 math.MaxInt，结果为空页
func (p *PageQuery) Offset() int {
	if p.Page <= 0 || p.Size <= 0 {
		return 0
	}
	if p.Page > math.MaxInt/p.Size {
		return math.MaxInt
	}
	return p.Page * p.Size
}

// ListResult 列表结果
type ListResult[T any] struct {
	Total int64 `json:"total"`
	Data  []T   `json:"data"`
}

// SortRequest 拖拽排序请求，Over 为空时移动到最前
type SortRequest struct {
	Active   uint  `json:"active" binding:"required"`
	Over     *uint `json:"over"`
	ParentID *uint `json:"parent_id"`
}

// TimeLayout 时间格式
const TimeLayout = "2006-01-02 15:04:05"
