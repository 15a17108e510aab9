package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/internal/service"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"github.com/nsxzhou1114/startpage-api/pkg/response"
	"go.uber.org/zap"
)

// CategoryApi 分类API控制器
type CategoryApi struct {
	logger          *zap.SugaredLogger
	categoryService *service.CategoryService
	siteService     *service.SiteService
}

// NewCategoryApi 创建分类API控制器
func NewCategoryApi(categoryService *service.CategoryService, siteService *service.SiteService) *CategoryApi {
	return &CategoryApi{
		logger:          logger.GetSugaredLogger(),
		categoryService: categoryService,
		siteService:     siteService,
	}
}

// fail 记录非业务错误并返回响应
func (api *CategoryApi) fail(c *gin.Context, err error, message string) {
	if apperr.Is(err, apperr.KindInternal) {
		api.logger.Errorf("%s: %v", message, err)
	}
	response.FromError(c, err, message)
}

// Create 创建分类
func (api *CategoryApi) Create(c *gin.Context) {
	var req dto.CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	category, err := api.categoryService.Create(c.Request.Context(), &req)
	if err != nil {
		api.fail(c, err, "创建分类失败")
		return
	}

	response.Success(c, "创建成功", api.categoryService.Response(category))
}

// Update 更新分类
func (api *CategoryApi) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的分类ID")
	if !ok {
		return
	}

	var req dto.CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	category, err := api.categoryService.Update(c.Request.Context(), id, &req)
	if err != nil {
		api.fail(c, err, "更新分类失败")
		return
	}

	response.Success(c, "更新成功", api.categoryService.Response(category))
}

// Delete 删除分类，仍有网站关联时拒绝
func (api *CategoryApi) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的分类ID")
	if !ok {
		return
	}

	if err := api.categoryService.Delete(c.Request.Context(), id); err != nil {
		api.fail(c, err, "删除分类失败")
		return
	}

	response.Success(c, "删除成功", nil)
}

// GetByID 根据ID获取分类
func (api *CategoryApi) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的分类ID")
	if !ok {
		return
	}

	category, err := api.categoryService.GetByID(c.Request.Context(), id)
	if err != nil {
		api.fail(c, err, "获取分类失败")
		return
	}

	response.Success(c, "获取成功", api.categoryService.Response(category))
}

// List 获取分类列表，默认为树形
func (api *CategoryApi) List(c *gin.Context) {
	var req dto.CategoryListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := api.categoryService.List(c.Request.Context(), &req)
	if err != nil {
		api.fail(c, err, "获取分类列表失败")
		return
	}

	response.SuccessList(c, "获取成功", result.Data, result.Total)
}

// Sort 同级分类拖拽排序
func (api *CategoryApi) Sort(c *gin.Context) {
	var req dto.SortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	order, err := api.categoryService.Sort(c.Request.Context(), &req)
	if err != nil {
		api.fail(c, err, "分类排序失败")
		return
	}

	response.Success(c, "排序成功", order)
}

// Sites 获取分类下的网站
func (api *CategoryApi) Sites(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的分类ID")
	if !ok {
		return
	}

	var req dto.CategorySitesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}

	sites, err := api.siteService.ListByCategory(c.Request.Context(), id, req.Search)
	if err != nil {
		api.fail(c, err, "获取分类网站失败")
		return
	}

	response.SuccessList(c, "获取成功", sites, int64(len(sites)))
}

// SortSites 分类内网站拖拽排序
func (api *CategoryApi) SortSites(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的分类ID")
	if !ok {
		return
	}

	var req dto.SiteSortRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	order, err := api.siteService.Sort(c.Request.Context(), id, &req)
	if err != nil {
		api.fail(c, err, "网站排序失败")
		return
	}

	response.Success(c, "排序成功", order)
}
