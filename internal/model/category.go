package model

// Category 分类模型，ParentID 为空表示根分类
type Category struct {
	Base
	Name        string `gorm:"size:50;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	Icon        string `gorm:"size:255" json:"icon"`
	ParentID    *uint  `gorm:"index" json:"parent_id"`
	SortOrder   int    `gorm:"not null;default:0;index" json:"sort_order"`
}

// TableName 指定表名
func (Category) TableName() string {
	return "categories"
}
