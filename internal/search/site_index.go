package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/nsxzhou1114/startpage-api/internal/model"
)

// SiteIndex 网站全文索引
type SiteIndex struct {
	client *elasticsearch.Client
	index  string
}

// NewSiteIndex 创建网站索引
func NewSiteIndex(client *elasticsearch.Client, index string) *SiteIndex {
	model.SetSiteIndexName(index)
	return &SiteIndex{client: client, index: model.ESSite{}.ESIndexName()}
}

// EnsureIndex 索引不存在时创建
func (s *SiteIndex) EnsureIndex(ctx context.Context) error {
	return model.InitESIndices(ctx, s.client)
}

// Index 写入或覆盖网站文档
func (s *SiteIndex) Index(ctx context.Context, doc *model.ESSite) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(strconv.FormatUint(uint64(doc.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("写入网站索引失败: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("写入网站索引返回错误: %s", res.String())
	}
	return nil
}

// Delete 删除网站文档，文档不存在时忽略
func (s *SiteIndex) Delete(ctx context.Context, id uint) error {
	res, err := s.client.Delete(
		s.index,
		strconv.FormatUint(uint64(id), 10),
		s.client.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("删除网站索引失败: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("删除网站索引返回错误: %s", res.String())
	}
	return nil
}

// searchResult 搜索结果中需要的字段
type searchResult struct {
	Hits struct {
		Hits []struct {
			Source model.ESSite `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search 按名称、网址、描述搜索，返回按相关度排序的网站ID
func (s *SiteIndex) Search(ctx context.Context, keyword string, size int) ([]uint, error) {
	var buf bytes.Buffer
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":  keyword,
				"fields": []string{"name^3", "category_name^2", "description", "url"},
				"type":   "best_fields",
			},
		},
		"size": size,
		"sort": []map[string]interface{}{
			{"_score": map[string]interface{}{"order": "desc"}},
			{"visit_count": map[string]interface{}{"order": "desc"}},
		},
		"_source": []string{"id"},
	}
	if err := json.NewEncoder(&buf).Encode(query); err != nil {
		return nil, err
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("ES搜索错误: %s", res.String())
	}

	var result searchResult
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, err
	}

	ids := make([]uint, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		ids = append(ids, hit.Source.ID)
	}
	return ids, nil
}

// Reindex 清空后批量写入全部网站
func (s *SiteIndex) Reindex(ctx context.Context, docs []model.ESSite) error {
	res, err := s.client.Indices.Delete([]string{s.index}, s.client.Indices.Delete.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("删除网站索引失败: %w", err)
	}
	res.Body.Close()

	if err := s.EnsureIndex(ctx); err != nil {
		return err
	}
	if len(docs) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for i := range docs {
		meta := map[string]interface{}{
			"index": map[string]interface{}{"_index": s.index, "_id": strconv.FormatUint(uint64(docs[i].ID), 10)},
		}
		if err := enc.Encode(meta); err != nil {
			return err
		}
		if err := enc.Encode(&docs[i]); err != nil {
			return err
		}
	}

	bulk, err := s.client.Bulk(&buf, s.client.Bulk.WithContext(ctx), s.client.Bulk.WithRefresh("true"))
	if err != nil {
		return fmt.Errorf("批量写入网站索引失败: %w", err)
	}
	defer bulk.Body.Close()

	if bulk.IsError() {
		return fmt.Errorf("批量写入网站索引返回错误: %s", bulk.String())
	}
	return nil
}
