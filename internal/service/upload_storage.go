package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/tencentyun/cos-go-sdk-v5"
)

// Storage 上传文件存储
type Storage interface {
	Exists(ctx context.Context, name string) (bool, error)
	Put(ctx context.Context, name string, data []byte, contentType string) error
}

// NewStorage 根据配置创建存储
func NewStorage(cfg *config.UploadConfig) (Storage, error) {
	switch cfg.Storage {
	case "", "local":
		return NewLocalStorage(cfg.Dir), nil
	case "cos":
		return NewCOSStorage(&cfg.COS)
	default:
		return nil, fmt.Errorf("不支持的存储类型: %s", cfg.Storage)
	}
}

// LocalStorage 本地磁盘存储
type LocalStorage struct {
	dir string
}

// NewLocalStorage 创建本地存储
func NewLocalStorage(dir string) *LocalStorage {
	return &LocalStorage{dir: dir}
}

// Exists 文件是否存在
func (s *LocalStorage) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.dir, name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Put 写入文件，先写临时文件再重命名
func (s *LocalStorage) Put(_ context.Context, name string, data []byte, _ string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("创建上传目录失败: %v", err)
	}

	tmp, err := os.CreateTemp(s.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("创建临时文件失败: %v", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("保存文件失败: %v", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("保存文件失败: %v", err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("保存文件失败: %v", err)
	}
	return os.Rename(tmp.Name(), filepath.Join(s.dir, name))
}

// COSStorage 腾讯云COS存储
type COSStorage struct {
	client *cos.Client
	prefix string
}

// NewCOSStorage 创建COS存储
func NewCOSStorage(cfg *config.COSStorage) (*COSStorage, error) {
	u, err := url.Parse(cfg.BucketURL)
	if err != nil || cfg.BucketURL == "" {
		return nil, fmt.Errorf("解析COS URL失败: %v", err)
	}

	client := cos.NewClient(&cos.BaseURL{BucketURL: u}, &http.Client{
		Transport: &cos.AuthorizationTransport{
			SecretID:  cfg.SecretID,
			SecretKey: cfg.SecretKey,
		},
	})

	prefix := strings.Trim(cfg.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &COSStorage{client: client, prefix: prefix}, nil
}

// Exists 对象是否存在
func (s *COSStorage) Exists(ctx context.Context, name string) (bool, error) {
	return s.client.Object.IsExist(ctx, s.prefix+name)
}

// Put 上传对象
func (s *COSStorage) Put(ctx context.Context, name string, data []byte, contentType string) error {
	opt := &cos.ObjectPutOptions{
		ObjectPutHeaderOptions: &cos.ObjectPutHeaderOptions{ContentType: contentType},
	}
	if _, err := s.client.Object.Put(ctx, s.prefix+name, bytes.NewReader(data), opt); err != nil {
		return fmt.Errorf("上传到腾讯云失败: %v", err)
	}
	return nil
}
