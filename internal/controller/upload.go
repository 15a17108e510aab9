package controller

import (
	"github.com/gin-gonic/gin"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/internal/service"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"github.com/nsxzhou1114/startpage-api/pkg/response"
	"go.uber.org/zap"
)

// UploadApi 文件上传控制器
type UploadApi struct {
	logger        *zap.SugaredLogger
	uploadService *service.UploadService
}

// NewUploadApi 创建上传控制器
func NewUploadApi(uploadService *service.UploadService) *UploadApi {
	return &UploadApi{
		logger:        logger.GetSugaredLogger(),
		uploadService: uploadService,
	}
}

// Upload 上传图标
func (api *UploadApi) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "请选择要上传的文件", err)
		return
	}

	result, err := api.uploadService.Upload(c.Request.Context(), file)
	if err != nil {
		if apperr.Is(err, apperr.KindInternal) {
			api.logger.Errorf("上传文件失败: %v", err)
		}
		response.FromError(c, err, "上传文件失败")
		return
	}

	response.Success(c, "上传成功", result)
}
