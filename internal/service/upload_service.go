package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"go.uber.org/zap"
)

// 允许的类型及其扩展名
var uploadExtensions = map[string]string{
	"image/png":                "png",
	"image/jpeg":               "jpg",
	"image/gif":                "gif",
	"image/webp":               "webp",
	"image/svg+xml":            "svg",
	"image/x-icon":             "ico",
	"image/vnd.microsoft.icon": "ico",
	"image/bmp":                "bmp",
}

// UploadService 文件上传服务，文件名为内容的sha256
type UploadService struct {
	storage      Storage
	logger       *zap.SugaredLogger
	maxSize      int64
	allowedTypes map[string]bool
	baseURL      func() string
}

// NewUploadService 创建上传服务
func NewUploadService(cfg *config.UploadConfig, storage Storage) *UploadService {
	allowed := make(map[string]bool)
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(t)] = true
	}
	if len(allowed) == 0 {
		for t := range uploadExtensions {
			allowed[t] = true
		}
	}

	return &UploadService{
		storage:      storage,
		logger:       logger.GetSugaredLogger(),
		maxSize:      cfg.MaxSize,
		allowedTypes: allowed,
		baseURL:      config.UploadBaseURL,
	}
}

// contentType 优先使用请求声明的类型，未声明时按内容识别
func contentType(file *multipart.FileHeader, data []byte) string {
	ct := file.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = ct[:i]
	}
	return strings.ToLower(strings.TrimSpace(ct))
}

// extension 根据类型确定扩展名，未知类型使用原文件扩展名
func extension(ct, filename string) string {
	if ext, ok := uploadExtensions[ct]; ok {
		return ext
	}
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

// Upload 保存上传文件，相同内容只保存一次
func (s *UploadService) Upload(ctx context.Context, file *multipart.FileHeader) (*dto.UploadResponse, error) {
	if s.maxSize > 0 && file.Size > s.maxSize {
		return nil, apperr.BadRequest(fmt.Sprintf("文件大小超过限制，最大允许 %d KB", s.maxSize/1024))
	}

	src, err := file.Open()
	if err != nil {
		return nil, apperr.Internal("打开文件失败", err)
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return nil, apperr.Internal("读取文件数据失败", err)
	}
	if len(data) == 0 {
		return nil, apperr.BadRequest("文件内容为空")
	}

	ct := contentType(file, data)
	if !s.allowedTypes[ct] {
		return nil, apperr.BadRequest(fmt.Sprintf("不支持的文件类型: %s", ct))
	}
	ext := extension(ct, file.Filename)
	if ext == "" {
		return nil, apperr.BadRequest("无法识别文件扩展名")
	}

	sum := sha256.Sum256(data)
	filename := hex.EncodeToString(sum[:]) + "." + ext

	exists, err := s.storage.Exists(ctx, filename)
	if err != nil {
		return nil, apperr.Internal("检查文件失败", err)
	}
	if !exists {
		if err := s.storage.Put(ctx, filename, data, ct); err != nil {
			return nil, apperr.Internal("保存文件失败", err)
		}
		s.logger.Infof("文件上传成功: %s (%d bytes)", filename, len(data))
	}

	return &dto.UploadResponse{
		Filename: filename,
		URL:      NormalizeIcon(filename, s.baseURL()),
	}, nil
}
