package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/nsxzhou1114/startpage-api/internal/config"
	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/internal/logger"
	"github.com/nsxzhou1114/startpage-api/internal/model"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const categoryTable = "categories"

// CategoryService 分类服务
type CategoryService struct {
	db       *gorm.DB
	logger   *zap.SugaredLogger
	notifier Notifier
	baseURL  func() string
}

// NewCategoryService 创建分类服务实例
func NewCategoryService(db *gorm.DB, notifier Notifier) *CategoryService {
	return &CategoryService{
		db:       db,
		logger:   logger.GetSugaredLogger(),
		notifier: notifierOrNoop(notifier),
		baseURL:  config.UploadBaseURL,
	}
}

// normalizeParent parent_id 为0视为根分类
func normalizeParent(parentID *uint) *uint {
	if parentID == nil || *parentID == 0 {
		return nil
	}
	id := *parentID
	return &id
}

func sameParent(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// whereParent 限定同级范围
func whereParent(query *gorm.DB, parentID *uint) *gorm.DB {
	if parentID == nil {
		return query.Where("parent_id IS NULL")
	}
	return query.Where("parent_id = ?", *parentID)
}

// nextCategoryOrder 同级最大排序值+1，没有同级时为0
func nextCategoryOrder(tx *gorm.DB, parentID *uint) (int, error) {
	var maxOrder sql.NullInt64
	row := whereParent(tx.Model(&model.Category{}), parentID).Select("MAX(sort_order)").Row()
	if err := row.Scan(&maxOrder); err != nil {
		return 0, apperr.Internal("查询分类排序失败", err)
	}
	if !maxOrder.Valid {
		return 0, nil
	}
	return int(maxOrder.Int64) + 1, nil
}

// categoryScopeIDs 按当前顺序返回同级分类ID
func categoryScopeIDs(tx *gorm.DB, parentID *uint) ([]uint, error) {
	var ids []uint
	query := whereParent(lockForUpdate(tx).Model(&model.Category{}), parentID)
	if err := query.Order("sort_order, id").Pluck("id", &ids).Error; err != nil {
		return nil, apperr.Internal("查询同级分类失败", err)
	}
	return ids, nil
}

// compactCategoryScope 重写同级排序为连续值
func compactCategoryScope(tx *gorm.DB, parentID *uint) error {
	ids, err := categoryScopeIDs(tx, parentID)
	if err != nil {
		return err
	}
	return persistOrder(tx, categoryTable, ids)
}

// findCategory 查询分类，不存在时返回 NotFound
func findCategory(tx *gorm.DB, id uint) (*model.Category, error) {
	var category model.Category
	if err := tx.First(&category, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("分类不存在")
		}
		return nil, apperr.Internal("查询分类失败", err)
	}
	return &category, nil
}

// categoryExists 判断分类是否存在
func categoryExists(tx *gorm.DB, id uint) (bool, error) {
	var count int64
	if err := tx.Model(&model.Category{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, apperr.Internal("查询分类失败", err)
	}
	return count > 0, nil
}

// checkSiblingName 同级分类名不能重复
func checkSiblingName(tx *gorm.DB, name string, parentID *uint, excludeID uint) error {
	var count int64
	query := whereParent(tx.Model(&model.Category{}), parentID).Where("name = ?", name)
	if excludeID > 0 {
		query = query.Where("id <> ?", excludeID)
	}
	if err := query.Count(&count).Error; err != nil {
		return apperr.Internal("查询分类失败", err)
	}
	if count > 0 {
		return apperr.AlreadyExists("分类名已存在")
	}
	return nil
}

// isDescendant 判断 candidate 是否为 id 的后代
func isDescendant(tx *gorm.DB, id, candidate uint) (bool, error) {
	seen := map[uint]bool{}
	current := &candidate
	for current != nil {
		if *current == id {
			return true, nil
		}
		if seen[*current] {
			return false, nil
		}
		seen[*current] = true

		var parent model.Category
		if err := tx.Select("id", "parent_id").First(&parent, *current).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return false, nil
			}
			return false, apperr.Internal("查询分类失败", err)
		}
		current = parent.ParentID
	}
	return false, nil
}

// Create 创建分类，排序值为同级最大值+1
func (s *CategoryService) Create(ctx context.Context, req *dto.CategoryCreateRequest) (*model.Category, error) {
	name := sanitizeText(req.Name)
	if name == "" {
		return nil, apperr.BadRequest("分类名称不能为空")
	}
	parentID := normalizeParent(req.ParentID)

	category := &model.Category{
		Name:        name,
		Description: sanitizeText(req.Description),
		Icon:        StandardizeIcon(req.Icon, s.baseURL()),
		ParentID:    parentID,
	}

	unlock := scopeLocks.Lock(categoryScopeKey(parentID))
	defer unlock()

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if parentID != nil {
			exists, err := categoryExists(tx, *parentID)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.BadRequest("父分类不存在")
			}
		}

		if err := checkSiblingName(tx, name, parentID, 0); err != nil {
			return err
		}

		order, err := nextCategoryOrder(tx, parentID)
		if err != nil {
			return err
		}
		category.SortOrder = order

		if err := tx.Create(category).Error; err != nil {
			return apperr.Internal("创建分类失败", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(EventCategoryCreated, categoryResponse(category, s.baseURL()))
	return category, nil
}

// lockOwnScope 锁定分类所在的同级范围和 extra 范围
// 等锁期间分类被移动到其他父分类时，释放后按新的父分类重新加锁
func (s *CategoryService) lockOwnScope(ctx context.Context, id uint, extra ...string) (*model.Category, func(), error) {
	current, err := findCategory(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, nil, err
	}

	for {
		unlock := scopeLocks.Lock(append([]string{categoryScopeKey(current.ParentID)}, extra...)...)
		locked, err := findCategory(s.db.WithContext(ctx), id)
		if err != nil {
			unlock()
			return nil, nil, err
		}
		if sameParent(locked.ParentID, current.ParentID) {
			return locked, unlock, nil
		}
		unlock()
		current = locked
	}
}

// Update 更新分类，空字符串字段保持原值，修改父分类时重新计算排序
func (s *CategoryService) Update(ctx context.Context, id uint, req *dto.CategoryUpdateRequest) (*model.Category, error) {
	var (
		targetParent *uint
		extra        []string
	)
	if req.ParentID != nil {
		targetParent = normalizeParent(req.ParentID)
		if targetParent != nil && *targetParent == id {
			return nil, apperr.BadRequest("分类不能成为自己的父分类")
		}
		extra = append(extra, categoryScopeKey(targetParent))
	}

	current, unlock, err := s.lockOwnScope(ctx, id, extra...)
	if err != nil {
		return nil, err
	}
	defer unlock()
	if req.ParentID == nil {
		targetParent = current.ParentID
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		category, err := findCategory(lockForUpdate(tx), id)
		if err != nil {
			return err
		}
		oldParent := category.ParentID
		moved := req.ParentID != nil && !sameParent(oldParent, targetParent)

		updates := map[string]interface{}{}
		if name := sanitizeText(req.Name); name != "" && name != category.Name {
			updates["name"] = name
		}
		if description := sanitizeText(req.Description); description != "" {
			updates["description"] = description
		}
		if icon := StandardizeIcon(req.Icon, s.baseURL()); icon != "" {
			updates["icon"] = icon
		}

		if moved && targetParent != nil {
			exists, err := categoryExists(tx, *targetParent)
			if err != nil {
				return err
			}
			if !exists {
				return apperr.BadRequest("父分类不存在")
			}
			cyclic, err := isDescendant(tx, id, *targetParent)
			if err != nil {
				return err
			}
			if cyclic {
				return apperr.BadRequest("不能移动到自己的子分类下")
			}
		}

		// 改名或移动时检查目标范围内是否重名
		if _, renamed := updates["name"]; renamed || moved {
			name := category.Name
			if n, ok := updates["name"].(string); ok {
				name = n
			}
			if err := checkSiblingName(tx, name, targetParent, id); err != nil {
				return err
			}
		}

		if moved {
			order, err := nextCategoryOrder(tx, targetParent)
			if err != nil {
				return err
			}
			if targetParent == nil {
				updates["parent_id"] = nil
			} else {
				updates["parent_id"] = *targetParent
			}
			updates["sort_order"] = order
		}

		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&model.Category{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return apperr.Internal("更新分类失败", err)
		}

		if moved {
			return compactCategoryScope(tx, oldParent)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	category, err := findCategory(s.db.WithContext(ctx), id)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(EventCategoryUpdated, categoryResponse(category, s.baseURL()))
	return category, nil
}

// Delete 删除分类，仍有关联网站时拒绝删除，子分类不级联处理
func (s *CategoryService) Delete(ctx context.Context, id uint) error {
	_, unlock, err := s.lockOwnScope(ctx, id)
	if err != nil {
		return err
	}
	defer unlock()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		category, err := findCategory(lockForUpdate(tx), id)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&model.CategorySite{}).Where("category_id = ?", id).Count(&count).Error; err != nil {
			return apperr.Internal("查询分类关联失败", err)
		}
		if count > 0 {
			return apperr.BadRequest("Category is in use")
		}

		if err := tx.Delete(&model.Category{}, id).Error; err != nil {
			return apperr.Internal("删除分类失败", err)
		}

		return compactCategoryScope(tx, category.ParentID)
	})
	if err != nil {
		return err
	}

	s.notifier.Notify(EventCategoryDeleted, map[string]uint{"id": id})
	return nil
}

// GetByID 根据ID获取分类
func (s *CategoryService) GetByID(ctx context.Context, id uint) (*model.Category, error) {
	return findCategory(s.db.WithContext(ctx), id)
}

// Sort 拖拽排序同级分类，返回新的顺序
func (s *CategoryService) Sort(ctx context.Context, req *dto.SortRequest) ([]uint, error) {
	parentID := normalizeParent(req.ParentID)

	unlock := scopeLocks.Lock(categoryScopeKey(parentID))
	defer unlock()

	var ordered []uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ids, err := categoryScopeIDs(tx, parentID)
		if err != nil {
			return err
		}

		ordered, err = Reorder(ids, req.Active, req.Over)
		if err != nil {
			return err
		}
		return persistOrder(tx, categoryTable, ordered)
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(EventCategorySorted, map[string]any{"parent_id": parentID, "order": ordered})
	return ordered, nil
}

// likeEscaper 以 ! 作为LIKE转义符，各数据库写法一致
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

// containsPattern 转义通配符后的包含匹配
func containsPattern(search string) string {
	return "%" + likeEscaper.Replace(search) + "%"
}

// searchCondition 名称或描述包含关键字，不区分大小写
func searchCondition(query *gorm.DB, table, search string) *gorm.DB {
	if search == "" {
		return query
	}
	pattern := containsPattern(search)
	return query.Where("(LOWER("+table+".name) LIKE LOWER(?) ESCAPE '!' OR LOWER("+table+".description) LIKE LOWER(?) ESCAPE '!')", pattern, pattern)
}

// List 分类列表，树形模式按根分类分页
func (s *CategoryService) List(ctx context.Context, req *dto.CategoryListRequest) (*dto.ListResult[*dto.CategoryResponse], error) {
	req.Normalize()
	if req.Flat {
		return s.listFlat(ctx, req)
	}
	return s.listTree(ctx, req)
}

// listFlat 扁平列表
func (s *CategoryService) listFlat(ctx context.Context, req *dto.CategoryListRequest) (*dto.ListResult[*dto.CategoryResponse], error) {
	db := s.db.WithContext(ctx)

	var (
		total      int64
		categories []model.Category
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		return searchCondition(db.Model(&model.Category{}), categoryTable, req.Search).Count(&total).Error
	})
	g.Go(func() error {
		return searchCondition(db.Model(&model.Category{}), categoryTable, req.Search).
			Order("sort_order, id").
			Offset(req.Offset()).
			Limit(req.Size).
			Find(&categories).Error
	})
	if err := g.Wait(); err != nil {
		return nil, apperr.Internal("获取分类列表失败", err)
	}

	baseURL := s.baseURL()
	data := make([]*dto.CategoryResponse, 0, len(categories))
	for i := range categories {
		data = append(data, categoryResponse(&categories[i], baseURL))
	}
	return &dto.ListResult[*dto.CategoryResponse]{Total: total, Data: data}, nil
}

// listTree 树形列表，搜索时保留匹配分类的祖先与后代
func (s *CategoryService) listTree(ctx context.Context, req *dto.CategoryListRequest) (*dto.ListResult[*dto.CategoryResponse], error) {
	db := s.db.WithContext(ctx)

	var all []model.Category
	if err := db.Order("sort_order, id").Find(&all).Error; err != nil {
		return nil, apperr.Internal("获取分类列表失败", err)
	}
	forest := buildForest(all)

	if req.Search != "" {
		var matched []uint
		query := searchCondition(db.Model(&model.Category{}), categoryTable, req.Search)
		if err := query.Pluck("id", &matched).Error; err != nil {
			return nil, apperr.Internal("搜索分类失败", err)
		}

		keep := forest.ancestorsAndDescendants(matched)
		filtered := make([]model.Category, 0, len(keep))
		for _, c := range all {
			if keep[c.ID] {
				filtered = append(filtered, c)
			}
		}
		forest = buildForest(filtered)
	}

	total := int64(len(forest.roots))
	roots := []uint{}
	if start := req.Offset(); start >= 0 && start < len(forest.roots) {
		end := len(forest.roots)
		if req.Size < end-start {
			end = start + req.Size
		}
		roots = forest.roots[start:end]
	}

	return &dto.ListResult[*dto.CategoryResponse]{
		Total: total,
		Data:  forest.renderRoots(roots, s.baseURL()),
	}, nil
}

// Response 生成分类响应DTO
func (s *CategoryService) Response(category *model.Category) *dto.CategoryResponse {
	return categoryResponse(category, s.baseURL())
}

// CompactScopes 修复排序值不连续的同级分类，返回修复的范围数量
func (s *CategoryService) CompactScopes(ctx context.Context) (int, error) {
	var rows []model.Category
	if err := s.db.WithContext(ctx).Select("id", "parent_id", "sort_order").Order("sort_order, id").Find(&rows).Error; err != nil {
		return 0, apperr.Internal("查询分类失败", err)
	}

	type scope struct {
		parentID *uint
		orders   []int
	}
	scopes := map[string]*scope{}
	keys := []string{}
	for _, row := range rows {
		key := categoryScopeKey(row.ParentID)
		sc, ok := scopes[key]
		if !ok {
			sc = &scope{parentID: row.ParentID}
			scopes[key] = sc
			keys = append(keys, key)
		}
		sc.orders = append(sc.orders, row.SortOrder)
	}

	fixed := 0
	for _, key := range keys {
		sc := scopes[key]
		if isContiguous(sc.orders) {
			continue
		}
		unlock := scopeLocks.Lock(key)
		err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return compactCategoryScope(tx, sc.parentID)
		})
		unlock()
		if err != nil {
			return fixed, err
		}
		s.logger.Infof("已修复分类排序: scope=%s", key)
		fixed++
	}
	return fixed, nil
}
