package service

import (
	"context"
	"errors"
	"testing"

	"github.com/nsxzhou1114/startpage-api/internal/dto"
	"github.com/nsxzhou1114/startpage-api/internal/model"
	"github.com/nsxzhou1114/startpage-api/pkg/apperr"
	"github.com/nsxzhou1114/startpage-api/pkg/cache"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fakeIndexer 内存中的网站索引
type fakeIndexer struct {
	docs      map[uint]model.ESSite
	searchIDs []uint
	searchErr error
	reindexed []model.ESSite
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{docs: map[uint]model.ESSite{}}
}

func (f *fakeIndexer) Index(_ context.Context, doc *model.ESSite) error {
	f.docs[doc.ID] = *doc
	return nil
}

func (f *fakeIndexer) Delete(_ context.Context, id uint) error {
	delete(f.docs, id)
	return nil
}

func (f *fakeIndexer) Search(context.Context, string, int) ([]uint, error) {
	return f.searchIDs, f.searchErr
}

func (f *fakeIndexer) Reindex(_ context.Context, docs []model.ESSite) error {
	f.reindexed = docs
	return nil
}

type siteFixture struct {
	db         *gorm.DB
	sites      *SiteService
	categories *CategoryService
	index      *fakeIndexer
	filter     *cache.RedisBloomFilter
}

func newSiteFixture(t *testing.T) *siteFixture {
	t.Helper()
	db := newTestDB(t)
	index := newFakeIndexer()
	filter := cache.NewRedisBloomFilter(nil, cache.BloomFilterSiteKey, 1000, 0.001)

	sites := NewSiteService(db, nil, index, filter)
	sites.baseURL = func() string { return testBaseURL }
	categories, _ := newTestCategoryService(t, db)

	return &siteFixture{db: db, sites: sites, categories: categories, index: index, filter: filter}
}

func (f *siteFixture) createSite(t *testing.T, name string, categoryID uint) *dto.SiteResponse {
	t.Helper()
	site, err := f.sites.Create(context.Background(), &dto.SiteCreateRequest{
		Name:       name,
		URL:        "https://" + name + ".test",
		CategoryID: categoryID,
	})
	require.NoError(t, err)
	return site
}

// siteOrders 分类内网站ID与排序值
func (f *siteFixture) siteOrders(t *testing.T, categoryID uint) ([]uint, []int) {
	t.Helper()
	var rows []model.Site
	err := whereSiteCategory(f.db.Table(siteTable), categoryID).
		Select("sites.*").
		Order("sites.sort_order, sites.id").
		Find(&rows).Error
	require.NoError(t, err)

	ids := make([]uint, 0, len(rows))
	orders := make([]int, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
		orders = append(orders, row.SortOrder)
	}
	return ids, orders
}

func TestSiteCreate(t *testing.T) {
	f := newSiteFixture(t)
	a := mustCreateCategory(t, f.categories, "A", nil)
	b := mustCreateCategory(t, f.categories, "B", nil)

	first := f.createSite(t, "one", a.ID)
	second := f.createSite(t, "two", a.ID)
	other := f.createSite(t, "three", b.ID)

	assert.Equal(t, 0, first.SortOrder)
	assert.Equal(t, 1, second.SortOrder)
	assert.Equal(t, 0, other.SortOrder)
	assert.Equal(t, a.ID, first.CategoryID)
	assert.Equal(t, "A", first.CategoryName)

	var links []model.CategorySite
	require.NoError(t, f.db.Order("site_id").Find(&links).Error)
	assert.Equal(t, []model.CategorySite{
		{CategoryID: a.ID, SiteID: first.ID},
		{CategoryID: a.ID, SiteID: second.ID},
		{CategoryID: b.ID, SiteID: other.ID},
	}, links)

	assert.Contains(t, f.index.docs, first.ID)
	assert.Equal(t, "A", f.index.docs[first.ID].CategoryName)
}

func TestSiteCreateRequiresCategory(t *testing.T) {
	f := newSiteFixture(t)

	_, err := f.sites.Create(context.Background(), &dto.SiteCreateRequest{Name: "x", URL: "https://x.test", CategoryID: 42})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	var count int64
	require.NoError(t, f.db.Model(&model.Site{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestSiteUpdateIgnoresEmptyFields(t *testing.T) {
	f := newSiteFixture(t)
	a := mustCreateCategory(t, f.categories, "A", nil)

	site, err := f.sites.Create(context.Background(), &dto.SiteCreateRequest{
		Name: "Go", URL: "https://go.dev", Description: "language", Icon: "go.png", CategoryID: a.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, testBaseURL+"/go.png", site.Icon)

	updated, err := f.sites.Update(context.Background(), site.ID, &dto.SiteUpdateRequest{Name: "", URL: "", Description: "docs"})
	require.NoError(t, err)
	assert.Equal(t, "Go", updated.Name)
	assert.Equal(t, "https://go.dev", updated.URL)
	assert.Equal(t, "docs", updated.Description)
	assert.Equal(t, testBaseURL+"/go.png", updated.Icon)

	_, err = f.sites.Update(context.Background(), 999, &dto.SiteUpdateRequest{Name: "x"})
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSiteUpdateMovesCategory(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)
	b := mustCreateCategory(t, f.categories, "B", nil)

	s1 := f.createSite(t, "s1", a.ID)
	s2 := f.createSite(t, "s2", a.ID)
	s3 := f.createSite(t, "s3", a.ID)
	f.createSite(t, "b1", b.ID)

	moved, err := f.sites.Update(ctx, s1.ID, &dto.SiteUpdateRequest{CategoryID: &b.ID})
	require.NoError(t, err)
	assert.Equal(t, b.ID, moved.CategoryID)
	assert.Equal(t, 1, moved.SortOrder)

	ids, orders := f.siteOrders(t, a.ID)
	assert.Equal(t, []uint{s2.ID, s3.ID}, ids)
	assert.Equal(t, contiguous(2), orders)

	var links int64
	require.NoError(t, f.db.Model(&model.CategorySite{}).Where("site_id = ?", s1.ID).Count(&links).Error)
	assert.Equal(t, int64(1), links)

	_, err = f.sites.Update(ctx, s1.ID, &dto.SiteUpdateRequest{CategoryID: uintPtr(999)})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))

	// 分类未变化时不重新计算排序
	same, err := f.sites.Update(ctx, s1.ID, &dto.SiteUpdateRequest{CategoryID: &b.ID, Name: "renamed"})
	require.NoError(t, err)
	assert.Equal(t, 1, same.SortOrder)
	assert.Equal(t, "renamed", same.Name)
}

func TestSiteDelete(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)

	s1 := f.createSite(t, "s1", a.ID)
	s2 := f.createSite(t, "s2", a.ID)

	require.NoError(t, f.sites.Delete(ctx, s1.ID))

	var links int64
	require.NoError(t, f.db.Model(&model.CategorySite{}).Where("site_id = ?", s1.ID).Count(&links).Error)
	assert.Zero(t, links)

	ids, orders := f.siteOrders(t, a.ID)
	assert.Equal(t, []uint{s2.ID}, ids)
	assert.Equal(t, []int{0}, orders)
	assert.NotContains(t, f.index.docs, s1.ID)

	assert.True(t, apperr.Is(f.sites.Delete(ctx, s1.ID), apperr.KindNotFound))

	// 网站删除后分类可以删除
	require.NoError(t, f.sites.Delete(ctx, s2.ID))
	assert.NoError(t, f.categories.Delete(ctx, a.ID))
}

func TestSiteRecordVisit(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)
	site := f.createSite(t, "s1", a.ID)

	require.NoError(t, f.sites.RecordVisit(ctx, site.ID))
	require.NoError(t, f.sites.RecordVisit(ctx, site.ID))

	got, err := f.sites.GetByID(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.VisitCount)

	assert.True(t, apperr.Is(f.sites.RecordVisit(ctx, 999), apperr.KindNotFound))
}

func TestSiteRecordVisitWithoutFilter(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)
	site := f.createSite(t, "s1", a.ID)

	plain := NewSiteService(f.db, nil, nil, nil)
	require.NoError(t, plain.RecordVisit(ctx, site.ID))
	assert.True(t, apperr.Is(plain.RecordVisit(ctx, 999), apperr.KindNotFound))
}

func TestSiteWarmFilter(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()

	site := &model.Site{Name: "legacy", URL: "https://legacy.test"}
	require.NoError(t, f.db.Create(site).Error)
	ok, err := f.filter.Test(ctx, cache.IDKey(site.ID))
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, f.sites.WarmFilter(ctx))
	ok, err = f.filter.Test(ctx, cache.IDKey(site.ID))
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSiteRecordVisitOutsideFilter(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)

	// 绕过服务直接写入，例如 db import
	site := &model.Site{Name: "imported", URL: "https://imported.test"}
	require.NoError(t, f.db.Create(site).Error)
	require.NoError(t, f.db.Create(&model.CategorySite{CategoryID: a.ID, SiteID: site.ID}).Error)

	require.NoError(t, f.sites.RecordVisit(ctx, site.ID))
	got, err := f.sites.GetByID(ctx, site.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.VisitCount)

	ok, err := f.filter.Test(ctx, cache.IDKey(site.ID))
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, apperr.Is(f.sites.RecordVisit(ctx, 999), apperr.KindNotFound))
}

func TestSiteSort(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)
	b := mustCreateCategory(t, f.categories, "B", nil)

	s1 := f.createSite(t, "s1", a.ID)
	s2 := f.createSite(t, "s2", a.ID)
	s3 := f.createSite(t, "s3", a.ID)
	other := f.createSite(t, "b1", b.ID)

	ordered, err := f.sites.Sort(ctx, a.ID, &dto.SiteSortRequest{Active: s3.ID, Over: &s1.ID})
	require.NoError(t, err)
	assert.Equal(t, []uint{s3.ID, s1.ID, s2.ID}, ordered)

	ids, orders := f.siteOrders(t, a.ID)
	assert.Equal(t, ordered, ids)
	assert.Equal(t, contiguous(3), orders)

	_, err = f.sites.Sort(ctx, a.ID, &dto.SiteSortRequest{Active: other.ID})
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestSiteListAndListByCategory(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)
	b := mustCreateCategory(t, f.categories, "B", nil)

	s1 := f.createSite(t, "alpha", a.ID)
	s2 := f.createSite(t, "beta", a.ID)
	f.createSite(t, "gamma", b.ID)

	list, err := f.sites.List(ctx, &dto.SiteListRequest{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), list.Total)
	require.Len(t, list.Data, 3)
	assert.Equal(t, "A", list.Data[0].CategoryName)
	assert.Equal(t, "B", list.Data[2].CategoryName)

	page, err := f.sites.List(ctx, &dto.SiteListRequest{PageQuery: dto.PageQuery{Page: 1, Size: 2}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Len(t, page.Data, 1)

	searched, err := f.sites.List(ctx, &dto.SiteListRequest{Search: "ALP"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), searched.Total)
	assert.Equal(t, s1.ID, searched.Data[0].ID)

	_, err = f.sites.Sort(ctx, a.ID, &dto.SiteSortRequest{Active: s2.ID})
	require.NoError(t, err)
	inA, err := f.sites.ListByCategory(ctx, a.ID, "")
	require.NoError(t, err)
	require.Len(t, inA, 2)
	assert.Equal(t, s2.ID, inA[0].ID)
	assert.Equal(t, s1.ID, inA[1].ID)

	filtered, err := f.sites.ListByCategory(ctx, a.ID, "bet")
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, s2.ID, filtered[0].ID)

	empty, err := f.sites.ListByCategory(ctx, 999, "")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSiteSearchUsesIndex(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)

	s1 := f.createSite(t, "alpha", a.ID)
	s2 := f.createSite(t, "beta", a.ID)

	f.index.searchIDs = []uint{s2.ID, 999, s1.ID}
	result, err := f.sites.Search(ctx, &dto.SiteSearchRequest{Q: "anything"})
	require.NoError(t, err)
	require.Len(t, result, 2)
	assert.Equal(t, s2.ID, result[0].ID)
	assert.Equal(t, s1.ID, result[1].ID)

	// ES异常时使用数据库搜索
	f.index.searchErr = errors.New("es down")
	result, err = f.sites.Search(ctx, &dto.SiteSearchRequest{Q: "alp"})
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, s1.ID, result[0].ID)
}

func TestSiteReindex(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)
	f.createSite(t, "alpha", a.ID)
	f.createSite(t, "beta", a.ID)

	n, err := f.sites.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, f.index.reindexed, 2)
	assert.Equal(t, "A", f.index.reindexed[0].CategoryName)

	_, err = NewSiteService(f.db, nil, nil, nil).Reindex(ctx)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestSiteCompactScopes(t *testing.T) {
	f := newSiteFixture(t)
	ctx := context.Background()
	a := mustCreateCategory(t, f.categories, "A", nil)
	s1 := f.createSite(t, "s1", a.ID)
	f.createSite(t, "s2", a.ID)

	require.NoError(t, f.db.Model(&model.Site{}).Where("id = ?", s1.ID).UpdateColumn("sort_order", 3).Error)

	fixed, err := f.sites.CompactScopes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, fixed)

	_, orders := f.siteOrders(t, a.ID)
	assert.Equal(t, contiguous(2), orders)
}
