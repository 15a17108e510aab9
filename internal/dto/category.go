package dto

// CategoryCreateRequest 创建分类请求
type CategoryCreateRequest struct {
	Name        string `json:"name" binding:"required,max=50"`
	Description string `json:"description" binding:"max=500"`
	Icon        string `json:"icon" binding:"omitempty,max=255"`
	ParentID    *uint  `json:"parent_id"`
}

// CategoryUpdateRequest 更新分类请求，空字符串表示不修改，parent_id 为0表示移动到根
type CategoryUpdateRequest struct {
	Name        string `json:"name" binding:"max=50"`
	Description string `json:"description" binding:"max=500"`
	Icon        string `json:"icon" binding:"omitempty,max=255"`
	ParentID    *uint  `json:"parent_id"`
}

// CategoryListRequest 分类列表请求
type CategoryListRequest struct {
	PageQuery
	Search string `form:"search" binding:"omitempty,max=50"`
	Flat   bool   `form:"flat"`
}

// CategoryResponse 分类响应，树形列表时包含子分类
type CategoryResponse struct {
	ID          uint                `json:"id"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	Icon        string              `json:"icon"`
	ParentID    *uint               `json:"parent_id"`
	SortOrder   int                 `json:"sort_order"`
	CreatedAt   string              `json:"created_at"`
	UpdatedAt   string              `json:"updated_at"`
	Children    []*CategoryResponse `json:"children,omitempty"`
}

// CategorySitesRequest 分类下网站查询
type CategorySitesRequest struct {
	Search string `form:"search" binding:"omitempty,max=50"`
}
