package model

// Site 网站模型，SortOrder 在所属分类内有效
type Site struct {
	Base
	Name        string `gorm:"size:100;not null" json:"name"`
	URL         string `gorm:"size:1024;not null" json:"url"`
	Description string `gorm:"type:text" json:"description"`
	Icon        string `gorm:"size:255" json:"icon"`
	VisitCount  int64  `gorm:"not null;default:0" json:"visit_count"`
	SortOrder   int    `gorm:"not null;default:0" json:"sort_order"`
}

// TableName 指定表名
func (Site) TableName() string {
	return "sites"
}

// CategorySite 分类与网站关联
type CategorySite struct {
	CategoryID uint `gorm:"primaryKey;autoIncrement:false;index" json:"category_id"`
	SiteID     uint `gorm:"primaryKey;autoIncrement:false;index" json:"site_id"`
}

// TableName 指定表名
func (CategorySite) TableName() string {
	return "category_sites"
}
