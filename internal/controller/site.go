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

// SiteApi 网站API控制器
type SiteApi struct {
	logger      *zap.SugaredLogger
	siteService *service.SiteService
	metaService *service.SiteMetaService
}

// NewSiteApi 创建网站API控制器
func NewSiteApi(siteService *service.SiteService, metaService *service.SiteMetaService) *SiteApi {
	return &SiteApi{
		logger:      logger.GetSugaredLogger(),
		siteService: siteService,
		metaService: metaService,
	}
}

func (api *SiteApi) fail(c *gin.Context, err error, message string) {
	if apperr.Is(err, apperr.KindInternal) {
		api.logger.Errorf("%s: %v", message, err)
	}
	response.FromError(c, err, message)
}

// Create 创建网站
func (api *SiteApi) Create(c *gin.Context) {
	var req dto.SiteCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	site, err := api.siteService.Create(c.Request.Context(), &req)
	if err != nil {
		api.fail(c, err, "创建网站失败")
		return
	}

	response.Success(c, "创建成功", site)
}

// Update 更新网站
func (api *SiteApi) Update(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的网站ID")
	if !ok {
		return
	}

	var req dto.SiteUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BindError(c, err)
		return
	}

	site, err := api.siteService.Update(c.Request.Context(), id, &req)
	if err != nil {
		api.fail(c, err, "更新网站失败")
		return
	}

	response.Success(c, "更新成功", site)
}

// Delete 删除网站
func (api *SiteApi) Delete(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的网站ID")
	if !ok {
		return
	}

	if err := api.siteService.Delete(c.Request.Context(), id); err != nil {
		api.fail(c, err, "删除网站失败")
		return
	}

	response.Success(c, "删除成功", nil)
}

// GetByID 根据ID获取网站
func (api *SiteApi) GetByID(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的网站ID")
	if !ok {
		return
	}

	site, err := api.siteService.GetByID(c.Request.Context(), id)
	if err != nil {
		api.fail(c, err, "获取网站失败")
		return
	}

	response.Success(c, "获取成功", site)
}

// List 网站列表
func (api *SiteApi) List(c *gin.Context) {
	var req dto.SiteListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}

	result, err := api.siteService.List(c.Request.Context(), &req)
	if err != nil {
		api.fail(c, err, "获取网站列表失败")
		return
	}

	response.SuccessList(c, "获取成功", result.Data, result.Total)
}

// Search 全文搜索网站
func (api *SiteApi) Search(c *gin.Context) {
	var req dto.SiteSearchRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}

	sites, err := api.siteService.Search(c.Request.Context(), &req)
	if err != nil {
		api.fail(c, err, "搜索网站失败")
		return
	}

	response.SuccessList(c, "搜索成功", sites, int64(len(sites)))
}

// Visit 记录一次访问
func (api *SiteApi) Visit(c *gin.Context) {
	id, ok := parseID(c, "id", "无效的网站ID")
	if !ok {
		return
	}

	if err := api.siteService.RecordVisit(c.Request.Context(), id); err != nil {
		api.fail(c, err, "记录访问失败")
		return
	}

	response.Success(c, "记录成功", nil)
}

// Meta 抓取网址的标题、描述和图标
func (api *SiteApi) Meta(c *gin.Context) {
	var req dto.SiteMetaRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BindError(c, err)
		return
	}

	meta, err := api.metaService.Fetch(c.Request.Context(), req.URL)
	if err != nil {
		api.fail(c, err, "获取网站信息失败")
		return
	}

	response.Success(c, "获取成功", meta)
}
