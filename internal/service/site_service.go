package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/internal/model"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"github.com/nsxzhou1114/startpage-api/pkg/cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const siteTable = "sites"

// SiteIndexer 网站全文索引
type SiteIndexer interface {
	Index(ctx context.Context, doc *model.ESSite) error
	Delete(ctx context.Context, id uint) error
	Search(ctx context.Context, keyword string, size int) ([]uint, error)
	Reindex(ctx context.Context, docs []model.ESSite) error
}

// SiteService 网站服务
type SiteService struct {
	db       *gorm.DB
	logger   *zap.SugaredLogger
	notifier Notifier
	index    SiteIndexer       // 未启用ES时为空
	filter   cache.BloomFilter // 网站ID存在性过滤，可为空
	baseURL  func() string
}

// NewSiteService 创建网站服务实例
func NewSiteService(db *gorm.DB, notifier Notifier, index SiteIndexer, filter cache.BloomFilter) *SiteService {
	return &SiteService{
		db:       db,
		logger:   logger.GetSugaredLogger(),
		notifier: notifierOrNoop(notifier),
		index:    index,
		filter:   filter,
		baseURL:  config.UploadBaseURL,
	}
}

// siteRow 网站及其所属分类
type siteRow struct {
	model.Site
	CategoryID   *uint
	CategoryName *string
}

// siteWithCategory 查询网站并关联分类名
func siteWithCategory(db *gorm.DB) *gorm.DB {
	return db.Table(siteTable).
		Select("sites.*, category_sites.category_id AS category_id, categories.name AS category_name").
		Joins("LEFT JOIN category_sites ON category_sites.site_id = sites.id").
		Joins("LEFT JOIN categories ON categories.id = category_sites.category_id")
}

func siteResponse(row *siteRow, baseURL string) *dto.SiteResponse {
	resp := &dto.SiteResponse{
		ID:          row.ID,
		Name:        row.Name,
		URL:         row.URL,
		Description: row.Description,
		Icon:        NormalizeIcon(row.Icon, baseURL),
		VisitCount:  row.VisitCount,
		SortOrder:   row.SortOrder,
		CreatedAt:   row.CreatedAt.Format(dto.TimeLayout),
		UpdatedAt:   row.UpdatedAt.Format(dto.TimeLayout),
	}
	if row.CategoryID != nil {
		resp.CategoryID = *row.CategoryID
	}
	if row.CategoryName != nil {
		resp.CategoryName = *row.CategoryName
	}
	return resp
}

// whereSiteCategory 限定分类内网站
func whereSiteCategory(db *gorm.DB, categoryID uint) *gorm.DB {
	return db.Joins("JOIN category_sites ON category_sites.site_id = sites.id").
		Where("category_sites.category_id = ?", categoryID)
}

// nextSiteOrder 分类内网站最大排序值+1
func nextSiteOrder(tx *gorm.DB, categoryID uint) (int, error) {
	var maxOrder sql.NullInt64
	row := whereSiteCategory(tx.Table(siteTable), categoryID).Select("MAX(sites.sort_order)").Row()
	if err := row.Scan(&maxOrder); err != nil {
		return 0, apperr.Internal("查询网站排序失败", err)
	}
	if !maxOrder.Valid {
		return 0, nil
	}
	return int(maxOrder.Int64) + 1, nil
}

// siteScopeIDs 按当前顺序返回分类内网站ID
func siteScopeIDs(tx *gorm.DB, categoryID uint) ([]uint, error) {
	var ids []uint
	query := whereSiteCategory(lockForUpdate(tx).Table(siteTable), categoryID)
	if err := query.Order("sites.sort_order, sites.id").Pluck("sites.id", &ids).Error; err != nil {
		return nil, apperr.Internal("查询分类内网站失败", err)
	}
	return ids, nil
}

// compactSiteScope 重写分类内网站排序为连续值
func compactSiteScope(tx *gorm.DB, categoryID uint) error {
	ids, err := siteScopeIDs(tx, categoryID)
	if err != nil {
		return err
	}
	return persistOrder(tx, siteTable, ids)
}

// findSite 查询网站，不存在时返回 NotFound
func findSite(tx *gorm.DB, id uint) (*model.Site, error) {
	var site model.Site
	if err := tx.First(&site, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("网站不存在")
		}
		return nil, apperr.Internal("查询网站失败", err)
	}
	return &site, nil
}

// siteCategoryIDs 网站关联的分类
func siteCategoryIDs(tx *gorm.DB, siteID uint) ([]uint, error) {
	var ids []uint
	if err := tx.Model(&model.CategorySite{}).Where("site_id = ?", siteID).Order("category_id").Pluck("category_id", &ids).Error; err != nil {
		return nil, apperr.Internal("查询网站分类失败", err)
	}
	return ids, nil
}

// Create 创建网站并关联到分类，排序值为分类内最大值+1
func (s *SiteService) Create(ctx context.Context, req *dto.SiteCreateRequest) (*dto.SiteResponse, error) {
	name := sanitizeText(req.Name)
	if name == "" {
		return nil, apperr.BadRequest("网站名称不能为空")
	}

	site := &model.Site{
		Name:        name,
		URL:         req.URL,
		Description: sanitizeText(req.Description),
		Icon:        StandardizeIcon(req.Icon, s.baseURL()),
	}

	unlock := scopeLocks.Lock(siteScopeKey(req.CategoryID))
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := categoryExists(tx, req.CategoryID)
		if err != nil {
			return err
		}
		if !exists {
			return apperr.BadRequest("分类不存在")
		}

		order, err := nextSiteOrder(tx, req.CategoryID)
		if err != nil {
			return err
		}
		site.SortOrder = order

		if err := tx.Create(site).Error; err != nil {
			return apperr.Internal("创建网站失败", err)
		}
		if err := tx.Create(&model.CategorySite{CategoryID: req.CategoryID, SiteID: site.ID}).Error; err != nil {
			return apperr.Internal("关联网站分类失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.filter != nil {
		_ = s.filter.Add(ctx, cache.IDKey(site.ID))
	}
	resp, err := s.GetByID(ctx, site.ID)
	if err != nil {
		return nil, err
	}
	s.syncIndex(ctx, resp)
	s.notifier.Notify(EventSiteCreated, resp)
	return resp, nil
}

// Update 更新网站，空字符串字段保持原值，修改分类时重新计算排序
func (s *SiteService) Update(ctx context.Context, id uint, req *dto.SiteUpdateRequest) (*dto.SiteResponse, error) {
	db := s.db.WithContext(ctx)
	if _, err := findSite(db, id); err != nil {
		return nil, err
	}
	oldCategories, err := siteCategoryIDs(db, id)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(oldCategories)+1)
	for _, categoryID := range oldCategories {
		keys = append(keys, siteScopeKey(categoryID))
	}
	if req.CategoryID != nil {
		keys = append(keys, siteScopeKey(*req.CategoryID))
	}
	unlock := scopeLocks.Lock(keys...)
	defer unlock()

	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := findSite(lockForUpdate(tx), id); err != nil {
			return err
		}

		updates := map[string]interface{}{}
		if name := sanitizeText(req.Name); name != "" {
			updates["name"] = name
		}
		if req.URL != "" {
			updates["url"] = req.URL
		}
		if description := sanitizeText(req.Description); description != "" {
			updates["description"] = description
		}
		if icon := StandardizeIcon(req.Icon, s.baseURL()); icon != "" {
			updates["icon"] = icon
		}

		current, err := siteCategoryIDs(tx, id)
		if err != nil {
			return err
		}

		moved := req.CategoryID != nil && !(len(current) == 1 && current[0] == *req.CategoryID)
		if moved {
			target := *req.CategoryID
			exists, err := categoryExists(tx, target)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.BadRequest("分类不存在")
			}

			order, err := nextSiteOrder(tx, target)
			if err != nil {
				return err
			}
			updates["sort_order"] = order

			// 单分类模型下只保留一条关联
			if err := tx.Where("site_id = ?", id).Delete(&model.CategorySite{}).Error; err != nil {
				return apperr.Internal("更新网站分类失败", err)
			}
			if err := tx.Create(&model.CategorySite{CategoryID: target, SiteID: id}).Error; err != nil {
				return apperr.Internal("更新网站分类失败", err)
			}
		}

		if len(updates) > 0 {
			if err := tx.Model(&model.Site{}).Where("id = ?", id).Updates(updates).Error; err != nil {
				return apperr.Internal("更新网站失败", err)
			}
		}

		if moved {
			for _, categoryID := range current {
				if categoryID == *req.CategoryID {
					continue
				}
				if err := compactSiteScope(tx, categoryID); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	resp, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.syncIndex(ctx, resp)
	s.notifier.Notify(EventSiteUpdated, resp)
	return resp, nil
}

// Delete 先删除关联再删除网站，并压缩原分类的排序
func (s *SiteService) Delete(ctx context.Context, id uint) error {
	db := s.db.WithContext(ctx)
	categories, err := siteCategoryIDs(db, id)
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(categories))
	for _, categoryID := range categories {
		keys = append(keys, siteScopeKey(categoryID))
	}
	unlock := scopeLocks.Lock(keys...)
	defer unlock()

	err = db.Transaction(func(tx *gorm.DB) error {
		if _, err := findSite(lockForUpdate(tx), id); err != nil {
			return err
		}

		current, err := siteCategoryIDs(tx, id)
		if err != nil {
			return err
		}

		if err := tx.Where("site_id = ?", id).Delete(&model.CategorySite{}).Error; err != nil {
			return apperr.Internal("删除网站关联失败", err)
		}
		if err := tx.Delete(&model.Site{}, id).Error; err != nil {
			return apperr.Internal("删除网站失败", err)
		}

		for _, categoryID := range current {
			if err := compactSiteScope(tx, categoryID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	if s.index != nil {
		if err := s.index.Delete(ctx, id); err != nil {
			s.logger.Warnf("删除网站索引失败: id=%d, err=%v", id, err)
		}
	}
	s.notifier.Notify(EventSiteDeleted, map[string]uint{"id": id})
	return nil
}

// RecordVisit 访问次数+1，是否存在以数据库更新结果为准
func (s *SiteService) RecordVisit(ctx context.Context, id uint) error {
	known := true
	if s.filter != nil {
		ok, err := s.filter.Test(ctx, cache.IDKey(id))
		if err != nil {
			s.logger.Warnf("布隆过滤器查询失败: id=%d, err=%v", id, err)
		}
		known = ok
	}

	result := s.db.WithContext(ctx).Model(&model.Site{}).
		Where("id = ?", id).
		UpdateColumn("visit_count", gorm.Expr("visit_count + ?", 1))
	if result.Error != nil {
		return apperr.Internal("记录访问失败", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.NotFound("网站不存在")
	}

	// 其他进程写入的网站不在过滤器中，补记
	if !known {
		if err := s.filter.Add(ctx, cache.IDKey(id)); err != nil {
			s.logger.Warnf("布隆过滤器写入失败: id=%d, err=%v", id, err)
		}
	}
	return nil
}

// GetByID 根据ID获取网站
func (s *SiteService) GetByID(ctx context.Context, id uint) (*dto.SiteResponse, error) {
	var rows []siteRow
	if err := siteWithCategory(s.db.WithContext(ctx)).Where("sites.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return nil, apperr.Internal("查询网站失败", err)
	}
	if len(rows) == 0 {
		return nil, apperr.NotFound("网站不存在")
	}
	return siteResponse(&rows[0], s.baseURL()), nil
}

// Sort 拖拽排序分类内网站，返回新的顺序
func (s *SiteService) Sort(ctx context.Context, categoryID uint, req *dto.SiteSortRequest) ([]uint, error) {
	unlock := scopeLocks.Lock(siteScopeKey(categoryID))
	defer unlock()

	var ordered []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := siteScopeIDs(tx, categoryID)
		if err != nil {
			return err
		}

		ordered, err = Reorder(ids, req.Active, req.Over)
		if err != nil {
			return err
		}
		return persistOrder(tx, siteTable, ordered)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(EventSiteSorted, map[string]any{"category_id": categoryID, "order": ordered})
	return ordered, nil
}

// List 网站列表，包含所属分类名
func (s *SiteService) List(ctx context.Context, req *dto.SiteListRequest) (*dto.ListResult[*dto.SiteResponse], error) {
	req.Normalize()
	db := s.db.WithContext(ctx)

	var (
		total int64
		rows  []siteRow
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return searchCondition(db.Table(siteTable), siteTable, req.Search).Count(&total).Error
	})
	g.Go(func() error {
		return searchCondition(siteWithCategory(db), siteTable, req.Search).
			Order("sites.id").
			Offset(req.Offset()).
			Limit(req.Size).
			Scan(&rows).Error
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("获取网站列表失败", err)
	}

	return &dto.ListResult[*dto.SiteResponse]{Total: total, Data: s.responses(rows)}, nil
}

// ListByCategory 分类下的网站，按排序值返回
func (s *SiteService) ListByCategory(ctx context.Context, categoryID uint, search string) ([]*dto.SiteResponse, error) {
	var rows []siteRow
	query := searchCondition(siteWithCategory(s.db.WithContext(ctx)), siteTable, search).
		Where("category_sites.category_id = ?", categoryID).
		Order("sites.sort_order, sites.id")
	if err := query.Scan(&rows).Error; err != nil {
		return nil, apperr.Internal("获取分类网站失败", err)
	}
	return s.responses(rows), nil
}

// Search 全文搜索网站，未启用ES或ES异常时退回数据库搜索
func (s *SiteService) Search(ctx context.Context, req *dto.SiteSearchRequest) ([]*dto.SiteResponse, error) {
	size := req.Size
	if size <= 0 {
		size = dto.DefaultPageSize
	}

	if s.index != nil {
		ids, err := s.index.Search(ctx, req.Q, size)
		if err == nil {
			return s.byIDs(ctx, ids)
		}
		s.logger.Warnf("ES搜索失败，使用数据库搜索: %v", err)
	}

	var rows []siteRow
	err := searchCondition(siteWithCategory(s.db.WithContext(ctx)), siteTable, req.Q).
		Order("sites.visit_count DESC, sites.id").
		Limit(size).
		Scan(&rows).Error
	if err != nil {
		return nil, apperr.Internal("搜索网站失败", err)
	}
	return s.responses(rows), nil
}

// byIDs 按给定顺序加载网站，已删除的网站跳过
func (s *SiteService) byIDs(ctx context.Context, ids []uint) ([]*dto.SiteResponse, error) {
	if len(ids) == 0 {
		return []*dto.SiteResponse{}, nil
	}

	var rows []siteRow
	if err := siteWithCategory(s.db.WithContext(ctx)).Where("sites.id IN ?", ids).Scan(&rows).Error; err != nil {
		return nil, apperr.Internal("查询网站失败", err)
	}

	byID := make(map[uint]*siteRow, len(rows))
	for i := range rows {
		byID[rows[i].ID] = &rows[i]
	}

	baseURL := s.baseURL()
	result := make([]*dto.SiteResponse, 0, len(ids))
	for _, id := range ids {
		if row, ok := byID[id]; ok {
			result = append(result, siteResponse(row, baseURL))
		}
	}
	return result, nil
}

func (s *SiteService) responses(rows []siteRow) []*dto.SiteResponse {
	baseURL := s.baseURL()
	result := make([]*dto.SiteResponse, 0, len(rows))
	for i := range rows {
		result = append(result, siteResponse(&rows[i], baseURL))
	}
	return result
}

// esDocument 网站索引文档，图标保存为文件名
func esDocument(resp *dto.SiteResponse, baseURL string) *model.ESSite {
	return &model.ESSite{
		ID:           resp.ID,
		Name:         resp.Name,
		URL:          resp.URL,
		Description:  resp.Description,
		Icon:         StandardizeIcon(resp.Icon, baseURL),
		CategoryID:   resp.CategoryID,
		CategoryName: resp.CategoryName,
		VisitCount:   resp.VisitCount,
	}
}

// syncIndex 同步网站到索引，失败只记录日志
func (s *SiteService) syncIndex(ctx context.Context, resp *dto.SiteResponse) {
	if s.index == nil {
		return
	}
	if err := s.index.Index(ctx, esDocument(resp, s.baseURL())); err != nil {
		s.logger.Warnf("同步网站索引失败: id=%d, err=%v", resp.ID, err)
	}
}

// Reindex 重建网站索引
func (s *SiteService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, apperr.BadRequest("未启用Elasticsearch")
	}

	var rows []siteRow
	if err := siteWithCategory(s.db.WithContext(ctx)).Order("sites.id").Scan(&rows).Error; err != nil {
		return 0, apperr.Internal("查询网站失败", err)
	}

	baseURL := s.baseURL()
	docs := make([]model.ESSite, 0, len(rows))
	for i := range rows {
		doc := esDocument(siteResponse(&rows[i], baseURL), baseURL)
		doc.UpdatedAt = rows[i].UpdatedAt
		docs = append(docs, *doc)
	}
	if err := s.index.Reindex(ctx, docs); err != nil {
		return 0, apperr.Internal("重建网站索引失败", err)
	}
	return len(docs), nil
}

// WarmFilter 用现有网站ID初始化布隆过滤器
func (s *SiteService) WarmFilter(ctx context.Context) error {
	if s.filter == nil {
		return nil
	}

	var ids []uint
	if err := s.db.WithContext(ctx).Model(&model.Site{}).Pluck("id", &ids).Error; err != nil {
		return apperr.Internal("查询网站失败", err)
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, cache.IDKey(id))
	}
	return s.filter.BatchAdd(ctx, keys)
}

// CompactScopes 修复排序值不连续的分类内网站，返回修复的范围数量
func (s *SiteService) CompactScopes(ctx context.Context) (int, error) {
	type orderRow struct {
		CategoryID uint
		SortOrder  int
	}
	var rows []orderRow
	err := s.db.WithContext(ctx).Table(siteTable).
		Select("category_sites.category_id AS category_id, sites.sort_order AS sort_order").
		Joins("JOIN category_sites ON category_sites.site_id = sites.id").
		Order("category_sites.category_id, sites.sort_order, sites.id").
		Scan(&rows).Error
	if err != nil {
		return 0, apperr.Internal("查询网站排序失败", err)
	}

	scopes := map[uint][]int{}
	categoryIDs := []uint{}
	for _, row := range rows {
		if _, ok := scopes[row.CategoryID]; !ok {
			categoryIDs = append(categoryIDs, row.CategoryID)
		}
		scopes[row.CategoryID] = append(scopes[row.CategoryID], row.SortOrder)
	}

	fixed := 0
	for _, categoryID := range categoryIDs {
		if isContiguous(scopes[categoryID]) {
			continue
		}
		unlock := scopeLocks.Lock(siteScopeKey(categoryID))
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return compactSiteScope(tx, categoryID)
		})
		unlock()
		if err != nil {
			return fixed, err
		}
		s.logger.Infof("已修复网站排序: category=%d", categoryID)
		fixed++
	}
	return fixed, nil
}
