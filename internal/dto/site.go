package dto

// SiteCreateRequest 创建网站请求
type SiteCreateRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	URL         string `json:"url" binding:"required,max=1024"`
	Description string `json:"description" binding:"max=500"`
	Icon        string `json:"icon" binding:"omitempty,max=255"`
	CategoryID  uint   `json:"category_id" binding:"required"`
}

// SiteUpdateRequest 更新网站请求，空字符串表示不修改
type SiteUpdateRequest struct {
	Name        string `json:"name" binding:"max=100"`
	URL         string `json:"url" binding:"max=1024"`
	Description string `json:"description" binding:"max=500"`
	Icon        string `json:"icon" binding:"omitempty,max=255"`
	CategoryID  *uint  `json:"category_id"`
}

// SiteListRequest 网站列表请求
type SiteListRequest struct {
	PageQuery
	Search string `form:"search" binding:"omitempty,max=50"`
}

// SiteSearchRequest 网站全文搜索请求
type SiteSearchRequest struct {
	Q    string `form:"q" binding:"required,max=100"`
	Size int    `form:"size" binding:"omitempty,min=1,max=100"`
}

// SiteSortRequest 分类内网站排序请求
type SiteSortRequest struct {
	Active uint  `json:"active" binding:"required"`
	Over   *uint `json:"over"`
}

// SiteResponse 网站响应
type SiteResponse struct {
	ID           uint   `json:"id"`
	Name         string `json:"name"`
	URL          string `json:"url"`
	Description  string `json:"description"`
	Icon         string `json:"icon"`
	VisitCount   int64  `json:"visit_count"`
	SortOrder    int    `json:"sort_order"`
	CategoryID   uint   `json:"category_id,omitempty"`
	CategoryName string `json:"category_name,omitempty"`
	CreatedAt    string `json:"created_at,omitempty"`
	UpdatedAt    string `json:"updated_at,omitempty"`
}

// SiteMetaRequest 网站元信息请求
type SiteMetaRequest struct {
	URL string `form:"url" binding:"required,url"`
}

// SiteMetaResponse 网站元信息
type SiteMetaResponse struct {
	URL         string `json:"url"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}
