package database

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/avast/retry-go"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"go.uber.org/zap"
)

// ES 全局Elasticsearch客户端实例
var (
	ES    *elasticsearch.Client
	esOne sync.Once
)

// NewElasticsearch 创建客户端并检查集群可用，transport 为空时使用默认传输
func NewElasticsearch(cfg *config.ElasticsearchConfig, transport http.RoundTripper) (*elasticsearch.Client, error) {
	esConfig := elasticsearch.Config{
		Addresses: cfg.URLs,
		Transport: transport,
	}
	if cfg.Username != "" && cfg.Password != "" {
		esConfig.Username = cfg.Username
		esConfig.Password = cfg.Password
	}

	client, err := elasticsearch.NewClient(esConfig)
	if err != nil {
		return nil, fmt.Errorf("创建elasticsearch客户端失败: %v", err)
	}

	var status string
	err = retry.Do(
		func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			info, err := client.Info(client.Info.WithContext(ctx))
			if err != nil {
				return err
			}
			defer info.Body.Close()
			if info.IsError() {
				return fmt.Errorf("elasticsearch返回错误: %s", info.Status())
			}
			status = info.Status()
			return nil
		},
		retry.Attempts(3),
		retry.Delay(time.Second),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch健康检查失败: %v", err)
	}

	logger.Info("elasticsearch连接成功",
		zap.String("status", status),
		zap.Strings("addresses", cfg.URLs),
	)
	return client, nil
}

// GetES 获取Elasticsearch客户端实例，未启用时返回nil
func GetES() *elasticsearch.Client {
	cfg := config.GlobalConfig.Elasticsearch
	if !cfg.Enabled {
		return nil
	}
	var err error
	esOne.Do(func() {
		ES, err = NewElasticsearch(&cfg, nil)
		if err != nil {
			panic(fmt.Sprintf("elasticsearch初始化失败: %v", err))
		}
	})
	return ES
}
